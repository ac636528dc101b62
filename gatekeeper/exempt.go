package gatekeeper

import (
	"slices"
	"strings"
)

// Exemptions lists endpoints that bypass the gate entirely: no token is attached and no
// refresh is triggered.
type Exemptions struct {
	Suffixes  []string
	Substring []string
}

// DefaultExemptions returns the auth endpoints of the back-office user service.
func DefaultExemptions() Exemptions {
	return Exemptions{
		Suffixes:  []string{"/auth/login", "/auth/register", "/auth/token"},
		Substring: []string{"/auth/refresh-token"},
	}
}

// IsZero reports whether no exemption is listed.
func (e Exemptions) IsZero() bool {
	return len(e.Suffixes) == 0 && len(e.Substring) == 0
}

// WithSuffixes returns a copy of e that also exempts every non-empty path in paths.
func (e Exemptions) WithSuffixes(paths ...string) Exemptions {
	out := Exemptions{
		Suffixes:  append([]string(nil), e.Suffixes...),
		Substring: append([]string(nil), e.Substring...),
	}
	for _, p := range paths {
		if p != "" && !slices.Contains(out.Suffixes, p) {
			out.Suffixes = append(out.Suffixes, p)
		}
	}
	return out
}

// Match reports whether path is exempt.
func (e Exemptions) Match(path string) bool {
	for _, s := range e.Substring {
		if s != "" && strings.Contains(path, s) {
			return true
		}
	}
	for _, s := range e.Suffixes {
		if s != "" && strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}
