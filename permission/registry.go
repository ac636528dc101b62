package permission

import (
	"errors"
	"sync"
)

const maxRoleBits = 64

// Registry maps role names to bit positions within a [Mask64].
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[Role]int
	bitToName map[int]Role
	frozen    bool
}

// NewRegistry creates an empty role [Registry].
func NewRegistry() *Registry {
	return &Registry{
		nameToBit: make(map[Role]int),
		bitToName: make(map[int]Role),
	}
}

// DefaultRegistry returns a frozen registry holding [KnownRoles].
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, role := range KnownRoles {
		// KnownRoles is unique and far below the bit limit.
		_, _ = r.Register(role)
	}
	r.Freeze()
	return r
}

// Register assigns the next available bit to the named role.
// Returns the assigned bit index. Must be called before [Registry.Freeze].
func (r *Registry) Register(role Role) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}

	if role == "" {
		return -1, errors.New("role name cannot be empty")
	}

	if _, exists := r.nameToBit[role]; exists {
		return -1, errors.New("role already registered")
	}

	nextBit := len(r.nameToBit)
	if nextBit >= maxRoleBits {
		return -1, errors.New("role limit exceeded")
	}

	r.nameToBit[role] = nextBit
	r.bitToName[nextBit] = role

	return nextBit, nil
}

// Bit returns the bit index for the named role, or false if not registered.
func (r *Registry) Bit(role Role) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[role]
	return bit, ok
}

// Name returns the role for the given bit index, or false if unassigned.
func (r *Registry) Name(bit int) (Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered roles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}
