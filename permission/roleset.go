package permission

import "fmt"

// RoleSet is an immutable set of roles compiled against a [Registry].
type RoleSet struct {
	registry *Registry
	mask     Mask64
}

// NewRoleSet compiles roles into a set. Every role must be registered.
func NewRoleSet(registry *Registry, roles ...Role) (*RoleSet, error) {
	if registry == nil {
		return nil, fmt.Errorf("nil role registry")
	}
	set := &RoleSet{registry: registry}
	for _, role := range roles {
		bit, ok := registry.Bit(role)
		if !ok {
			return nil, fmt.Errorf("role not registered: %s", role)
		}
		set.mask.Set(bit)
	}
	return set, nil
}

// MustRoleSet is [NewRoleSet] for static tables; it panics on unregistered roles.
func MustRoleSet(registry *Registry, roles ...Role) *RoleSet {
	set, err := NewRoleSet(registry, roles...)
	if err != nil {
		panic(err)
	}
	return set
}

// Contains reports whether role is a member. A nil set contains nothing.
func (s *RoleSet) Contains(role Role) bool {
	if s == nil || s.registry == nil {
		return false
	}
	bit, ok := s.registry.Bit(role)
	if !ok {
		return false
	}
	return s.mask.Has(bit)
}

// Roles lists members in bit order.
func (s *RoleSet) Roles() []Role {
	if s == nil || s.registry == nil {
		return nil
	}
	out := make([]Role, 0, 8)
	for bit := 0; bit < maxRoleBits; bit++ {
		if !s.mask.Has(bit) {
			continue
		}
		if role, ok := s.registry.Name(bit); ok {
			out = append(out, role)
		}
	}
	return out
}

// Len returns the number of member roles.
func (s *RoleSet) Len() int {
	return len(s.Roles())
}
