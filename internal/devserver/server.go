// Package devserver is an in-process back-office auth backend. It issues signed access
// tokens, rotates opaque refresh tokens, and serves one protected endpoint. Its refresh
// endpoint can be slowed down or made to fail so callers can exercise renewal paths.
package devserver

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authclient/permission"
	"github.com/MrEthical07/authclient/token"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Endpoint paths served by [Server].
const (
	LoginPath     = "/users/auth/login"
	RegisterPath  = "/users/auth/register"
	VerifyPath    = "/users/auth/verify"
	RefreshPath   = "/users/auth/refresh-token"
	ProtectedPath = "/api/profile"
)

// Config configures a [Server]. Zero values take the defaults.
type Config struct {
	AccessTTL time.Duration
	Logger    *zap.Logger
}

type user struct {
	id       string
	username string
	role     permission.Role
	password passwordHash
	verified bool
}

// Server is safe for concurrent use.
type Server struct {
	issuer    *token.Issuer
	codec     *token.Codec
	publicKey ed25519.PublicKey
	logger    *zap.Logger
	router    chi.Router

	accessTTL    atomic.Int64
	refreshDelay atomic.Int64
	refreshFail  atomic.Int32

	refreshCalls   atomic.Int64
	protectedCalls atomic.Int64

	mu      sync.Mutex
	users   map[string]*user
	pending map[string]string
	refresh map[string]string
	bearers []string
}

// New generates a signing key and returns an empty Server.
func New(cfg Config) (*Server, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	issuer, err := token.NewIssuer(token.IssuerConfig{
		SigningMethod: token.MethodEd25519,
		PrivateKey:    priv,
		Issuer:        "devserver",
	})
	if err != nil {
		return nil, err
	}
	codec, err := token.NewCodec(token.Config{
		SigningMethod: token.MethodEd25519,
		VerifyKey:     pub,
		Issuer:        "devserver",
	})
	if err != nil {
		return nil, err
	}

	s := &Server{
		issuer:    issuer,
		codec:     codec,
		publicKey: pub,
		logger:    cfg.Logger,
		users:     make(map[string]*user),
		pending:   make(map[string]string),
		refresh:   make(map[string]string),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	ttl := cfg.AccessTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	s.accessTTL.Store(int64(ttl))

	r := chi.NewRouter()
	r.Post(LoginPath, s.handleLogin)
	r.Post(RegisterPath, s.handleRegister)
	r.Post(VerifyPath, s.handleVerify)
	r.Post(RefreshPath, s.handleRefresh)
	r.Get(ProtectedPath, s.handleProtected)
	s.router = r
	return s, nil
}

// Handler returns the HTTP handler serving every endpoint.
func (s *Server) Handler() http.Handler {
	return s.router
}

// PublicKey is the Ed25519 key that verifies issued access tokens.
func (s *Server) PublicKey() ed25519.PublicKey {
	return s.publicKey
}

// AddUser registers a verified account.
func (s *Server) AddUser(username, password string, role permission.Role) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[username]; exists {
		return errors.New("user already exists")
	}
	s.users[username] = &user{
		id:       uuid.NewString(),
		username: username,
		role:     role,
		password: hash,
		verified: true,
	}
	return nil
}

// Credentials issues a pair for an existing user whose access token expires after ttl. A
// non-positive ttl yields an already-expired access token.
func (s *Server) Credentials(username string, ttl time.Duration) (access, refresh string, err error) {
	s.mu.Lock()
	u, ok := s.users[username]
	s.mu.Unlock()
	if !ok {
		return "", "", errors.New("unknown user")
	}
	return s.issuePair(u, ttl)
}

// SetAccessTTL changes the lifetime of access tokens issued from now on.
func (s *Server) SetAccessTTL(ttl time.Duration) {
	s.accessTTL.Store(int64(ttl))
}

// SetRefreshDelay holds every refresh response for d.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.refreshDelay.Store(int64(d))
}

// SetRefreshFailure makes the refresh endpoint answer with status. Zero restores success.
func (s *Server) SetRefreshFailure(status int) {
	s.refreshFail.Store(int32(status))
}

// RefreshCalls counts requests received by the refresh endpoint.
func (s *Server) RefreshCalls() int64 {
	return s.refreshCalls.Load()
}

// ProtectedCalls counts requests that reached the protected endpoint, authorized or not.
func (s *Server) ProtectedCalls() int64 {
	return s.protectedCalls.Load()
}

// Bearers returns the tokens presented to the protected endpoint, in arrival order.
func (s *Server) Bearers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bearers...)
}

// VerificationID returns the pending verification id for username.
func (s *Server) VerificationID(username string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, name := range s.pending {
		if name == username {
			return id, true
		}
	}
	return "", false
}

func (s *Server) issuePair(u *user, ttl time.Duration) (string, string, error) {
	access, err := s.issuer.Issue(u.id, u.username, u.role, ttl)
	if err != nil {
		return "", "", err
	}
	refresh := uuid.NewString()

	s.mu.Lock()
	s.refresh[refresh] = u.username
	s.mu.Unlock()
	return access, refresh, nil
}

/*
====================================
HANDLERS
====================================
*/

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	u, ok := s.users[req.Username]
	s.mu.Unlock()
	if !ok || !u.password.matches(req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !u.verified {
		writeError(w, http.StatusForbidden, "account not verified")
		return
	}

	access, refresh, err := s.issuePair(u, time.Duration(s.accessTTL.Load()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "issue token")
		return
	}
	s.logger.Debug("login", zap.String("username", u.username))
	writeJSON(w, http.StatusOK, tokenPair{AccessToken: access, RefreshToken: refresh})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username     string `json:"username"`
		Password     string `json:"password"`
		Email        string `json:"email"`
		UserRoleType string `json:"userRoleType"`
	}
	if !decode(w, r, &req) {
		return
	}
	role, ok := permission.ParseRole(req.UserRoleType)
	if !ok || strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid registration")
		return
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "hash password")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[req.Username]; exists {
		writeError(w, http.StatusConflict, "user already exists")
		return
	}
	u := &user{id: uuid.NewString(), username: req.Username, role: role, password: hash}
	s.users[u.username] = u
	s.pending[uuid.NewString()] = u.username
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.pending[req.ID]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown verification id")
		return
	}
	delete(s.pending, req.ID)
	s.users[name].verified = true
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)

	if d := time.Duration(s.refreshDelay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}
	if status := int(s.refreshFail.Load()); status != 0 {
		writeError(w, status, "refresh rejected")
		return
	}

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	name, ok := s.refresh[req.RefreshToken]
	delete(s.refresh, req.RefreshToken)
	u := s.users[name]
	s.mu.Unlock()
	if !ok || u == nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	access, refresh, err := s.issuePair(u, time.Duration(s.accessTTL.Load()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "issue token")
		return
	}
	s.logger.Debug("refresh", zap.String("username", u.username))
	writeJSON(w, http.StatusOK, tokenPair{AccessToken: access, RefreshToken: refresh})
}

func (s *Server) handleProtected(w http.ResponseWriter, r *http.Request) {
	s.protectedCalls.Add(1)

	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	s.bearers = append(s.bearers, raw)
	s.mu.Unlock()

	if !ok || s.codec.IsExpired(raw) {
		writeError(w, http.StatusUnauthorized, "missing or expired bearer token")
		return
	}
	claims, ok := s.codec.Decode(raw)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid bearer token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"sub":      claims.Subject,
		"username": claims.Username,
		"role":     claims.Role.String(),
	})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
