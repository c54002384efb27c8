package database

import (
	"context"
	"errors"
	"fmt"

	"bizhub-backend/pkg/models"
)

// SeedOptions describes the bootstrap organization and its first admin.
// AdminID must match the auth user id the admin will sign in with.
type SeedOptions struct {
	OrgName    string
	AdminID    string
	AdminEmail string
	AdminName  string
}

// SeedResult reports what Seed created and what already existed.
type SeedResult struct {
	Organization    *models.Organization
	Admin           *models.Profile
	CreatedOrg      bool
	CreatedAdmin    bool
	AddedMembership bool
}

// Seed makes sure the bootstrap organization and admin exist. Running it
// twice is a no-op.
func Seed(ctx context.Context, db DatabaseInterface, opts SeedOptions) (*SeedResult, error) {
	if opts.OrgName == "" || opts.AdminID == "" || opts.AdminEmail == "" {
		return nil, errors.New("seed: org name, admin id and admin email are required")
	}
	res := &SeedResult{}

	slug := models.Slugify(opts.OrgName)
	orgs, err := db.ListOrganizations(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	for i := range orgs {
		if orgs[i].Slug == slug {
			res.Organization = &orgs[i]
			break
		}
	}
	if res.Organization == nil {
		org := &models.Organization{Name: opts.OrgName, Slug: slug}
		if err := db.CreateOrganization(ctx, org); err != nil {
			return nil, fmt.Errorf("seed organization: %w", err)
		}
		res.Organization, res.CreatedOrg = org, true
	}

	admin, err := db.GetProfile(ctx, opts.AdminID)
	switch {
	case errors.Is(err, ErrNotFound):
		admin = &models.Profile{
			ID:       opts.AdminID,
			Email:    opts.AdminEmail,
			FullName: opts.AdminName,
			Role:     models.RoleAdmin,
			OrgID:    res.Organization.ID,
			IsActive: true,
		}
		if err := db.CreateProfile(ctx, admin); err != nil {
			return nil, fmt.Errorf("seed admin: %w", err)
		}
		res.CreatedAdmin = true
	case err != nil:
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	res.Admin = admin

	err = db.AddUserOrganization(ctx, &models.UserOrganization{
		UserID:    admin.ID,
		OrgID:     res.Organization.ID,
		IsPrimary: admin.OrgID == "" || admin.OrgID == res.Organization.ID,
	})
	switch {
	case err == nil:
		res.AddedMembership = true
	case !errors.Is(err, ErrConflict):
		return nil, fmt.Errorf("seed membership: %w", err)
	}
	return res, nil
}
