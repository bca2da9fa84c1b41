package user

import "strings"

// Roles
const (
	// Admin
	RoleAdmin          = "admin:"
	RoleAdminOwner     = "admin:owner"
	RoleAdminPrincipal = "admin:principal"
	RoleAdminAccounts  = "admin:accounts"

	// Operator: front-desk staff collecting fees
	RoleOperator = "operator:"
)

var (
	AdminRoles    = []string{RoleAdmin, RoleAdminOwner, RoleAdminPrincipal, RoleAdminAccounts}
	OperatorRoles = []string{RoleOperator}
	AllRoles      = append(append([]string{}, AdminRoles...), OperatorRoles...)
)

// User is the authenticated actor behind a request: who collected a payment or granted a concession.
// Accounts live outside this service; a User is rebuilt from token claims.
type User struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles"`
}

func (u User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

func (u User) IsOperator() bool {
	return u.RoleStartsWith(RoleOperator)
}

// IsValidRole reports whether role is one of the known roles.
func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// DisplayName is what gets printed as `collected by` on receipts.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}
