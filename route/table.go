package route

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MrEthical07/authclient/permission"
)

// Rule is the access policy of one view.
type Rule struct {
	// RequireAuth restricts the view to sessions with a recognized role.
	RequireAuth bool
	// Roles further restricts the view to these roles. Nil means any authenticated role.
	// A non-nil set implies RequireAuth.
	Roles *permission.RoleSet
	// PublicOnly sends sessions away to the authenticated landing (login page, verify page).
	PublicOnly bool
}

// Reason says why a [Decision] was reached.
type Reason int

const (
	ReasonAllowed Reason = iota
	ReasonUnknownRoute
	ReasonPublicOnly
	ReasonUnauthenticated
	ReasonWrongRole
)

func (r Reason) String() string {
	switch r {
	case ReasonAllowed:
		return "allowed"
	case ReasonUnknownRoute:
		return "unknown_route"
	case ReasonPublicOnly:
		return "public_only"
	case ReasonUnauthenticated:
		return "unauthenticated"
	case ReasonWrongRole:
		return "wrong_role"
	default:
		return "unknown"
	}
}

// Decision is the outcome of evaluating a path. Redirect is set only when Allowed is false.
type Decision struct {
	Allowed  bool
	Redirect string
	Reason   Reason
}

// Landings names the views sessions are redirected to.
type Landings struct {
	Login           string
	Unauthenticated string
	Authenticated   string
}

// DefaultLandings returns the back-office landings.
func DefaultLandings() Landings {
	return Landings{
		Login:           "/login",
		Unauthenticated: "/",
		Authenticated:   "/home",
	}
}

type entry struct {
	pattern  string
	segments []string
	rule     Rule
}

// Table maps view paths to rules. Patterns are slash-separated; a ":name" segment matches
// any single non-empty segment. Exact patterns win over parameterized ones, and among
// parameterized patterns the first registered match wins.
//
// A Table is safe for concurrent Decide calls. Handle fails once the table is frozen.
type Table struct {
	landings Landings

	mu      sync.RWMutex
	exact   map[string]Rule
	params  []entry
	pattern map[string]struct{}
	frozen  bool
}

// NewTable returns an empty table. Empty landing fields take the defaults.
func NewTable(landings Landings) *Table {
	def := DefaultLandings()
	if landings.Login == "" {
		landings.Login = def.Login
	}
	if landings.Unauthenticated == "" {
		landings.Unauthenticated = def.Unauthenticated
	}
	if landings.Authenticated == "" {
		landings.Authenticated = def.Authenticated
	}
	return &Table{
		landings: landings,
		exact:    make(map[string]Rule),
		pattern:  make(map[string]struct{}),
	}
}

// Landings returns the configured landings.
func (t *Table) Landings() Landings {
	return t.landings
}

// Handle registers rule for pattern.
func (t *Table) Handle(pattern string, rule Rule) error {
	if !strings.HasPrefix(pattern, "/") {
		return fmt.Errorf("route pattern must start with /: %q", pattern)
	}
	if rule.PublicOnly && (rule.RequireAuth || rule.Roles != nil) {
		return fmt.Errorf("route %q cannot be public-only and restricted", pattern)
	}
	if rule.Roles != nil {
		rule.RequireAuth = true
	}

	clean := normalize(pattern)
	segments := split(clean)
	for _, seg := range segments {
		if seg == ":" {
			return fmt.Errorf("route %q has an unnamed parameter", pattern)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return errors.New("route table frozen")
	}
	if _, dup := t.pattern[clean]; dup {
		return fmt.Errorf("route %q already registered", pattern)
	}
	t.pattern[clean] = struct{}{}

	if !strings.Contains(clean, "/:") {
		t.exact[clean] = rule
		return nil
	}
	t.params = append(t.params, entry{pattern: clean, segments: segments, rule: rule})
	return nil
}

// MustHandle is Handle for static tables; it panics on error.
func (t *Table) MustHandle(pattern string, rule Rule) {
	if err := t.Handle(pattern, rule); err != nil {
		panic(err)
	}
}

// Freeze makes the table read-only.
func (t *Table) Freeze() {
	t.mu.Lock()
	t.frozen = true
	t.mu.Unlock()
}

// Lookup returns the rule matching path.
func (t *Table) Lookup(path string) (Rule, string, bool) {
	clean := normalize(path)

	t.mu.RLock()
	defer t.mu.RUnlock()

	if rule, ok := t.exact[clean]; ok {
		return rule, clean, true
	}
	segments := split(clean)
	for _, e := range t.params {
		if match(e.segments, segments) {
			return e.rule, e.pattern, true
		}
	}
	return Rule{}, "", false
}

// Decide evaluates path for a session. hasRole doubles as "a session exists".
func (t *Table) Decide(path string, role permission.Role, hasRole bool) Decision {
	rule, _, ok := t.Lookup(path)
	if !ok {
		return Decision{Redirect: t.landings.Unauthenticated, Reason: ReasonUnknownRoute}
	}

	if rule.PublicOnly {
		if hasRole {
			return Decision{Redirect: t.landings.Authenticated, Reason: ReasonPublicOnly}
		}
		return Decision{Allowed: true, Reason: ReasonAllowed}
	}

	if !rule.RequireAuth {
		return Decision{Allowed: true, Reason: ReasonAllowed}
	}
	if !hasRole {
		return Decision{Redirect: t.landings.Unauthenticated, Reason: ReasonUnauthenticated}
	}
	if !CanEnter(rule.Roles, role, hasRole) {
		return Decision{Redirect: t.landings.Authenticated, Reason: ReasonWrongRole}
	}
	return Decision{Allowed: true, Reason: ReasonAllowed}
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}

func split(clean string) []string {
	if clean == "/" {
		return nil
	}
	return strings.Split(clean[1:], "/")
}

func match(pattern, path []string) bool {
	if len(pattern) != len(path) {
		return false
	}
	for i, seg := range pattern {
		if strings.HasPrefix(seg, ":") {
			if path[i] == "" {
				return false
			}
			continue
		}
		if seg != path[i] {
			return false
		}
	}
	return true
}
