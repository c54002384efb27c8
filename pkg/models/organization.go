package models

import (
	"strings"
	"time"
)

// Organization is the tenant boundary grouping users and their data.
type Organization struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserOrganization relates a user to one of the organizations they belong to.
type UserOrganization struct {
	ID           string        `json:"id" db:"id"`
	UserID       string        `json:"user_id" db:"user_id"`
	OrgID        string        `json:"org_id" db:"org_id"`
	IsPrimary    bool          `json:"is_primary" db:"is_primary"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	Organization *Organization `json:"organization,omitempty" db:"-"`
}

// Slugify derives a URL slug from an organization name.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
