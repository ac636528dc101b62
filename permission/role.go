package permission

import "strings"

// Role is a role tag carried in the access token's "role" claim.
type Role string

const (
	RoleSubscriber                    Role = "SUBSCRIBER"
	RoleDriver                        Role = "DRIVER"
	RoleManager                       Role = "MANAGER"
	RoleClaimsAdjuster                Role = "CLAIMS_ADJUSTER"
	RoleSalesAgent                    Role = "SALES_AGENT"
	RoleCustomerServiceRepresentative Role = "CUSTOMER_SERVICE_REPRESENTATIVE"
	RoleAdministrator                 Role = "ADMINISTRATOR"
	RoleClaimHandler                  Role = "CLAIM_HANDLER"
)

// KnownRoles lists every role tag in registration order.
var KnownRoles = []Role{
	RoleSubscriber,
	RoleDriver,
	RoleManager,
	RoleClaimsAdjuster,
	RoleSalesAgent,
	RoleCustomerServiceRepresentative,
	RoleAdministrator,
	RoleClaimHandler,
}

// ParseRole maps a raw claim value to a known role. Matching is exact after trimming
// whitespace; unknown tags report false.
func ParseRole(raw string) (Role, bool) {
	raw = strings.TrimSpace(raw)
	for _, r := range KnownRoles {
		if string(r) == raw {
			return r, true
		}
	}
	return "", false
}

func (r Role) String() string {
	return string(r)
}
