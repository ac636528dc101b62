// Package authapi calls the back-office user service auth endpoints: login, register,
// verify, and refresh-token.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/authclient/session"
)

// Default endpoint paths of the user service.
const (
	DefaultLoginPath    = "/users/auth/login"
	DefaultRegisterPath = "/users/auth/register"
	DefaultVerifyPath   = "/users/auth/verify"
	DefaultRefreshPath  = "/users/auth/refresh-token"
)

const maxResponseBytes = 1 << 20

var (
	// ErrInvalidCredentials is returned by Login on 401 or 403.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrMalformedResponse is returned when a success response lacks the token pair.
	ErrMalformedResponse = errors.New("malformed auth response")
)

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Config configures a [Client].
type Config struct {
	BaseURL      string
	LoginPath    string
	RegisterPath string
	VerifyPath   string
	RefreshPath  string
	// HTTPClient serves login, register and verify. It may be the gated client since those
	// paths are exempt.
	HTTPClient *http.Client
	// RefreshHTTPClient serves refresh-token and verify. It must not route through the gate.
	RefreshHTTPClient *http.Client
}

// Registration is the user-service registration payload.
type Registration struct {
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	JMBG          string `json:"jmbg"`
	BirthDate     string `json:"birthDate"`
	Gender        string `json:"gender"`
	MaritalStatus string `json:"maritalStatus"`
	Email         string `json:"email"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	UserRoleType  string `json:"userRoleType"`
	Icon          string `json:"icon"`
	IsEnabled     *bool  `json:"isEnabled,omitempty"`
	IsActive      *bool  `json:"isActive,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type verifyRequest struct {
	ID string `json:"id"`
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Client is a thin JSON client; it holds no session state.
type Client struct {
	base          *url.URL
	loginPath     string
	registerPath  string
	verifyPath    string
	refreshPath   string
	http          *http.Client
	refreshClient *http.Client
}

// New validates cfg and returns a [Client].
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse auth base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("auth base url must be http or https: %q", cfg.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("auth base url missing host: %q", cfg.BaseURL)
	}

	c := &Client{
		base:          base,
		loginPath:     orDefault(cfg.LoginPath, DefaultLoginPath),
		registerPath:  orDefault(cfg.RegisterPath, DefaultRegisterPath),
		verifyPath:    orDefault(cfg.VerifyPath, DefaultVerifyPath),
		refreshPath:   orDefault(cfg.RefreshPath, DefaultRefreshPath),
		http:          cfg.HTTPClient,
		refreshClient: cfg.RefreshHTTPClient,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 15 * time.Second}
	}
	if c.refreshClient == nil {
		c.refreshClient = &http.Client{}
	}
	return c, nil
}

// URL resolves path against the base URL.
func (c *Client) URL(path string) string {
	u := *c.base
	u.Path = c.base.Path + "/" + strings.TrimLeft(path, "/")
	return u.String()
}

// Login exchanges username and password for the initial token pair.
func (c *Client) Login(ctx context.Context, username, password string) (session.Credentials, error) {
	resp, err := c.post(ctx, c.http, c.loginPath, loginRequest{Username: username, Password: password})
	if err != nil {
		return session.Credentials{}, fmt.Errorf("login: %w", err)
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return session.Credentials{}, ErrInvalidCredentials
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return session.Credentials{}, statusError("login", resp)
	}
	return decodePair(resp)
}

// Register submits a new user account. Any non-2xx status is a [*StatusError].
func (c *Client) Register(ctx context.Context, reg Registration) error {
	resp, err := c.post(ctx, c.http, c.registerPath, reg)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError("register", resp)
	}
	return nil
}

// Verify confirms the account behind a verification link id.
func (c *Client) Verify(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("verify: empty id")
	}
	resp, err := c.post(ctx, c.refreshClient, c.verifyPath, verifyRequest{ID: id})
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError("verify", resp)
	}
	return nil
}

// Refresh exchanges refreshToken for a new pair. Only 200 counts as success.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (session.Credentials, error) {
	resp, err := c.post(ctx, c.refreshClient, c.refreshPath, refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return session.Credentials{}, fmt.Errorf("refresh: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return session.Credentials{}, statusError("refresh", resp)
	}
	return decodePair(resp)
}

func (c *Client) post(ctx context.Context, client *http.Client, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return client.Do(req)
}

func decodePair(resp *http.Response) (session.Credentials, error) {
	var pair tokenPair
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&pair); err != nil {
		return session.Credentials{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	creds := session.Credentials{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}
	if !creds.Valid() {
		return session.Credentials{}, ErrMalformedResponse
	}
	return creds, nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
