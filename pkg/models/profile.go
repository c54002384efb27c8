package models

import "time"

// Role is the access-level tag that gates UI and API visibility.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleManager        Role = "manager"
	RoleUser           Role = "user"
	RoleClient         Role = "client"
	RoleClientNoAccess Role = "client_no_access"
)

// AllRoles lists every role in descending order of privilege.
var AllRoles = []Role{RoleAdmin, RoleManager, RoleUser, RoleClient, RoleClientNoAccess}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// IsStaff reports whether r belongs to the internal team.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleUser
}

// IsClient reports whether r is one of the client roles.
func (r Role) IsClient() bool {
	return r == RoleClient || r == RoleClientNoAccess
}

// CanManage reports whether r may administer org-wide records.
func (r Role) CanManage() bool {
	return r == RoleAdmin || r == RoleManager
}

// Profile mirrors the profiles table. The backend creates the row on
// account activation; this service only reads and edits it.
type Profile struct {
	ID                  string    `json:"id" db:"id"`
	Email               string    `json:"email" db:"email"`
	FullName            string    `json:"full_name,omitempty" db:"full_name"`
	Phone               string    `json:"phone,omitempty" db:"phone"`
	Company             string    `json:"company,omitempty" db:"company"`
	AvatarURL           string    `json:"avatar_url,omitempty" db:"avatar_url"`
	Role                Role      `json:"role" db:"role"`
	OrgID               string    `json:"org_id,omitempty" db:"org_id"`
	IsActive            bool      `json:"is_active" db:"is_active"`
	OnboardingCompleted bool      `json:"onboarding_completed" db:"onboarding_completed"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// ProfileUpdate carries a partial profile edit. Nil fields are left as is.
type ProfileUpdate struct {
	FullName            *string `json:"full_name"`
	Phone               *string `json:"phone"`
	Company             *string `json:"company"`
	AvatarURL           *string `json:"avatar_url"`
	OnboardingCompleted *bool   `json:"onboarding_completed"`

	// admin only
	Role     *Role   `json:"role"`
	OrgID    *string `json:"org_id"`
	IsActive *bool   `json:"is_active"`
}

// Apply copies the set fields onto p. Privileged fields are applied only
// when allowPrivileged is true.
func (u ProfileUpdate) Apply(p *Profile, allowPrivileged bool) {
	if u.FullName != nil {
		p.FullName = *u.FullName
	}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
	if u.Company != nil {
		p.Company = *u.Company
	}
	if u.AvatarURL != nil {
		p.AvatarURL = *u.AvatarURL
	}
	if u.OnboardingCompleted != nil {
		p.OnboardingCompleted = *u.OnboardingCompleted
	}
	if !allowPrivileged {
		return
	}
	if u.Role != nil && u.Role.Valid() {
		p.Role = *u.Role
	}
	if u.OrgID != nil {
		p.OrgID = *u.OrgID
	}
	if u.IsActive != nil {
		p.IsActive = *u.IsActive
	}
}

// ProfileFilter narrows ListProfiles. Zero values match everything.
type ProfileFilter struct {
	OrgID string
	Roles []Role
}

// Matches reports whether p passes the filter.
func (f ProfileFilter) Matches(p Profile) bool {
	if f.OrgID != "" && p.OrgID != f.OrgID {
		return false
	}
	if len(f.Roles) == 0 {
		return true
	}
	for _, r := range f.Roles {
		if p.Role == r {
			return true
		}
	}
	return false
}
