package models

import "time"

// UserRole is the role a profile or store membership carries.
type UserRole string

const (
	RoleManager UserRole = "manager"
	RoleStaff   UserRole = "staff"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == RoleManager || r == RoleStaff
}

// UnnamedProfile is shown when a member never set a display name.
const UnnamedProfile = "이름 없음"

// Profile mirrors the identity provider user with app-level display data.
type Profile struct {
	ID        string    `db:"id" json:"id"`
	FullName  *string   `db:"full_name" json:"full_name,omitempty"`
	AvatarURL *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	Role      *UserRole `db:"role" json:"role,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayName returns the full name or the unnamed fallback.
func (p Profile) DisplayName() string {
	if p.FullName != nil && *p.FullName != "" {
		return *p.FullName
	}
	return UnnamedProfile
}

// ProfileSummary is the compact profile embedded in other views.
type ProfileSummary struct {
	ID        string  `db:"id" json:"id"`
	FullName  string  `db:"full_name" json:"full_name"`
	AvatarURL *string `db:"avatar_url" json:"avatar_url,omitempty"`
}

// Summary converts p to its compact form.
func (p Profile) Summary() ProfileSummary {
	return ProfileSummary{ID: p.ID, FullName: p.DisplayName(), AvatarURL: p.AvatarURL}
}

// UpsertProfileInput carries self-service profile changes.
type UpsertProfileInput struct {
	FullName  *string `json:"full_name" validate:"omitempty,max=100"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url"`
}
