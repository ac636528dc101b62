package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/", HTTPClient: srv.Client(), RefreshHTTPClient: srv.Client()})
	require.NoError(t, err)
	return c
}

func TestLoginSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, DefaultLoginPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body loginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice", body.Username)
		assert.Equal(t, "pw", body.Password)

		_ = json.NewEncoder(w).Encode(tokenPair{AccessToken: "A1", RefreshToken: "R1"})
	})

	creds, err := c.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "A1", creds.AccessToken)
	assert.Equal(t, "R1", creds.RefreshToken)
}

func TestLoginRejected(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		})
		_, err := c.Login(context.Background(), "alice", "bad")
		assert.ErrorIs(t, err, ErrInvalidCredentials, "status %d", status)
	}

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	_, err := c.Login(context.Background(), "alice", "pw")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, "boom", se.Body)
}

func TestLoginMalformedResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"accessToken":"A1"}`))
	})
	_, err := c.Login(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, ErrMalformedResponse)

	c = newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	_, err = c.Login(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestRefreshOnlyAccepts200(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultRefreshPath, r.URL.Path)
		var body refreshRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.RefreshToken != "R1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(tokenPair{AccessToken: "A2", RefreshToken: "R2"})
	})

	creds, err := c.Refresh(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, "A2", creds.AccessToken)

	_, err = c.Refresh(context.Background(), "stale")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)

	accepted := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(tokenPair{AccessToken: "A2", RefreshToken: "R2"})
	})
	_, err = accepted.Refresh(context.Background(), "R1")
	assert.ErrorAs(t, err, &se, "non-200 success codes are refresh failures")
}

func TestRegisterAndVerify(t *testing.T) {
	var got Registration
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case DefaultRegisterPath:
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusCreated)
		case DefaultVerifyPath:
			var body verifyRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body.ID != "abc" {
				w.WriteHeader(http.StatusNotFound)
			}
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	})

	err := c.Register(context.Background(), Registration{Username: "bob", UserRoleType: "DRIVER"})
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Username)
	assert.Equal(t, "DRIVER", got.UserRoleType)

	require.NoError(t, c.Verify(context.Background(), "abc"))
	var se *StatusError
	require.ErrorAs(t, c.Verify(context.Background(), "zzz"), &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Error(t, c.Verify(context.Background(), " "))
}

func TestTransportErrorIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Refresh(context.Background(), "R1")
	require.Error(t, err)
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

func TestNewValidatesBaseURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://x", "http://", "::bad"} {
		_, err := New(Config{BaseURL: raw})
		assert.Error(t, err, raw)
	}

	c, err := New(Config{BaseURL: "https://backoffice.local/api/", LoginPath: "custom/login"})
	require.NoError(t, err)
	assert.Equal(t, "https://backoffice.local/api/custom/login", c.URL(c.loginPath))
	assert.Equal(t, "https://backoffice.local/api/users/auth/refresh-token", c.URL(c.refreshPath))
}
