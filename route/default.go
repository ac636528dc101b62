package route

import "github.com/MrEthical07/authclient/permission"

// DefaultTable returns the frozen back-office route table.
func DefaultTable() *Table {
	return DefaultTableWithLandings(DefaultLandings())
}

// DefaultTableWithLandings is [DefaultTable] with custom redirect targets.
func DefaultTableWithLandings(landings Landings) *Table {
	reg := permission.DefaultRegistry()
	managers := permission.MustRoleSet(reg, permission.RoleManager)
	admins := permission.MustRoleSet(reg, permission.RoleAdministrator)
	sales := permission.MustRoleSet(reg, permission.RoleSalesAgent)
	subscribers := permission.MustRoleSet(reg, permission.RoleSubscriber)

	public := Rule{PublicOnly: true}
	authed := Rule{RequireAuth: true}

	t := NewTable(landings)
	for _, p := range []string{"/", "/login", "/verify/:id"} {
		t.MustHandle(p, public)
	}

	t.MustHandle("/register", Rule{Roles: managers})

	for _, p := range []string{"/profile", "/claims", "/home", "/profile/:userRoleType"} {
		t.MustHandle(p, authed)
	}

	for _, p := range []string{
		"/currencies", "/currencies/new",
		"/countries", "/countries/:id", "/countries/new", "/countries/edit/:id",
		"/brands", "/brands/:id", "/brands/new", "/brands/edit/:id",
	} {
		t.MustHandle(p, Rule{Roles: admins})
	}

	for _, p := range []string{
		"/subscribers", "/policy-creation", "/policies", "/policies/:id",
		"/proposals", "/proposals/new",
	} {
		t.MustHandle(p, Rule{Roles: sales})
	}

	t.MustHandle("/policy", Rule{Roles: subscribers})

	t.Freeze()
	return t
}
