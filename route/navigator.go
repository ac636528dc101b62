package route

import (
	"context"
	"sync"
)

// Navigator replaces the current view with path.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// NavigatorFunc adapts a function to [Navigator].
type NavigatorFunc func(ctx context.Context, path string)

func (f NavigatorFunc) Navigate(ctx context.Context, path string) { f(ctx, path) }

// NopNavigator ignores every navigation.
type NopNavigator struct{}

func (NopNavigator) Navigate(context.Context, string) {}

// Serialized wraps a navigator so that concurrent callers are applied one at a time.
type Serialized struct {
	mu   sync.Mutex
	next Navigator
}

// Serialize returns nav wrapped in a [Serialized]. A nil nav becomes a no-op.
func Serialize(nav Navigator) *Serialized {
	if nav == nil {
		nav = NopNavigator{}
	}
	return &Serialized{next: nav}
}

func (s *Serialized) Navigate(ctx context.Context, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next.Navigate(ctx, path)
}
