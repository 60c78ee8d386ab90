// internal/models/roles.go

package models

// UserRole is the role of a user in the relief system
type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleVolunteer UserRole = "tinh_nguyen_vien"
	RoleCitizen   UserRole = "nguoi_dan"
)

// IsValid reports whether the role is a known role
func (r UserRole) IsValid() bool {
	switch r {
	case RoleAdmin, RoleVolunteer, RoleCitizen:
		return true
	}
	return false
}

func (r UserRole) String() string {
	return string(r)
}

// AllRoles returns the list of all available roles
func AllRoles() []UserRole {
	return []UserRole{
		RoleAdmin,
		RoleVolunteer,
		RoleCitizen,
	}
}

// RoleFromString converts a string into a UserRole
func RoleFromString(role string) (UserRole, bool) {
	r := UserRole(role)
	if r.IsValid() {
		return r, true
	}
	return "", false
}

// GetRoleTranslation returns the display name of a role for the UI
func GetRoleTranslation(role UserRole) string {
	translations := map[UserRole]string{
		RoleAdmin:     "Quản trị viên",
		RoleVolunteer: "Tình nguyện viên",
		RoleCitizen:   "Người dân",
	}
	if translation, exists := translations[role]; exists {
		return translation
	}
	return string(role)
}
