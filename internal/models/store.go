package models

import "time"

// Store is a business location owned by a manager.
type Store struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Address   *string   `db:"address" json:"address,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StoreMember is a row of store_users.
type StoreMember struct {
	StoreID  string    `db:"store_id" json:"store_id"`
	UserID   string    `db:"user_id" json:"user_id"`
	Role     UserRole  `db:"role" json:"role"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// StaffMember is a store member with display data.
type StaffMember struct {
	UserID    string   `db:"user_id" json:"user_id"`
	Role      UserRole `db:"role" json:"role"`
	FullName  string   `db:"full_name" json:"full_name"`
	AvatarURL *string  `db:"avatar_url" json:"avatar_url,omitempty"`
}

// CreateStoreInput is the payload for creating a store as its owner.
type CreateStoreInput struct {
	Name    string  `json:"store_name" validate:"required,max=100"`
	Address *string `json:"store_address" validate:"omitempty,max=255"`
	Phone   *string `json:"store_phone" validate:"omitempty,max=30"`
}

// StoreContext is the resolved store and role for the acting user.
type StoreContext struct {
	Store *Store   `json:"store"`
	Role  UserRole `json:"role"`
}
