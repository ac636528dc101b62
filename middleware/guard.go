package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/authclient/route"
)

// RouteDecider evaluates a view path for the current session.
type RouteDecider interface {
	Decide(path string) route.Decision
}

type decisionContextKey struct{}

// DecisionFromContext returns the decision that admitted the request.
func DecisionFromContext(ctx context.Context) (route.Decision, bool) {
	d, ok := ctx.Value(decisionContextKey{}).(route.Decision)
	return d, ok
}

func Guard(decider RouteDecider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if decider == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			d := decider.Decide(r.URL.Path)
			if !d.Allowed {
				http.Redirect(w, r, d.Redirect, http.StatusFound)
				return
			}

			ctx := context.WithValue(r.Context(), decisionContextKey{}, d)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
