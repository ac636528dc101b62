package permission

import "testing"

func TestParseRoleKnownAndUnknown(t *testing.T) {
	cases := []struct {
		raw  string
		want Role
		ok   bool
	}{
		{raw: "ADMINISTRATOR", want: RoleAdministrator, ok: true},
		{raw: " SALES_AGENT ", want: RoleSalesAgent, ok: true},
		{raw: "administrator", ok: false},
		{raw: "", ok: false},
		{raw: "ROOT", ok: false},
	}
	for _, tc := range cases {
		got, ok := ParseRole(tc.raw)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseRole(%q) = %q,%v want %q,%v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRegistryAssignsSequentialBits(t *testing.T) {
	r := NewRegistry()
	for i, role := range []Role{RoleManager, RoleDriver} {
		bit, err := r.Register(role)
		if err != nil {
			t.Fatalf("register %s: %v", role, err)
		}
		if bit != i {
			t.Fatalf("expected bit %d for %s, got %d", i, role, bit)
		}
	}
	if _, err := r.Register(RoleManager); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if _, err := r.Register(""); err == nil {
		t.Fatal("expected empty role to fail")
	}
	r.Freeze()
	if _, err := r.Register(RoleSubscriber); err == nil {
		t.Fatal("expected frozen registry to reject registration")
	}
	if got := r.Count(); got != 2 {
		t.Fatalf("expected 2 roles, got %d", got)
	}
}

func TestRoleSetMembership(t *testing.T) {
	reg := DefaultRegistry()
	set, err := NewRoleSet(reg, RoleAdministrator, RoleManager)
	if err != nil {
		t.Fatalf("new role set: %v", err)
	}
	if !set.Contains(RoleAdministrator) || !set.Contains(RoleManager) {
		t.Fatal("expected members to be contained")
	}
	if set.Contains(RoleSalesAgent) {
		t.Fatal("expected non-member to be rejected")
	}
	if set.Contains(Role("UNKNOWN")) {
		t.Fatal("expected unregistered role to be rejected")
	}
	if got := set.Len(); got != 2 {
		t.Fatalf("expected 2 members, got %d", got)
	}

	var nilSet *RoleSet
	if nilSet.Contains(RoleAdministrator) {
		t.Fatal("nil set must contain nothing")
	}

	if _, err := NewRoleSet(reg, Role("UNKNOWN")); err == nil {
		t.Fatal("expected unregistered role in set to fail")
	}
}

func TestMask64BoundsAreIgnored(t *testing.T) {
	var m Mask64
	m.Set(-1)
	m.Set(64)
	if m != 0 {
		t.Fatalf("expected out-of-range bits to be ignored, got %d", m)
	}
	m.Set(3)
	if !m.Has(3) {
		t.Fatal("expected bit 3")
	}
	if m.Has(-1) || m.Has(64) || m.Has(4) {
		t.Fatal("unexpected bit set")
	}
}
