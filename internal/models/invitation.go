package models

import "time"

// Invitation is a code based ticket to join a store.
type Invitation struct {
	ID           string     `db:"id" json:"id"`
	StoreID      string     `db:"store_id" json:"store_id"`
	InviterID    string     `db:"inviter_id" json:"inviter_id"`
	InviteeEmail *string    `db:"invitee_email" json:"invitee_email,omitempty"`
	Role         UserRole   `db:"role" json:"role"`
	Code         string     `db:"code" json:"code"`
	MaxUses      int        `db:"max_uses" json:"max_uses"`
	Uses         int        `db:"uses" json:"uses"`
	ExpiresAt    *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// Redeemable reports whether the invitation can still be accepted at now.
func (i Invitation) Redeemable(now time.Time) bool {
	if i.Uses >= i.MaxUses {
		return false
	}
	if i.ExpiresAt != nil && !now.Before(*i.ExpiresAt) {
		return false
	}
	return true
}

// CreateInvitationInput is the payload for issuing an invitation.
type CreateInvitationInput struct {
	InviteeEmail *string   `json:"invitee_email" validate:"omitempty,email"`
	Role         UserRole  `json:"role" validate:"omitempty,oneof=manager staff"`
	MaxUses      int       `json:"max_uses" validate:"omitempty,min=1,max=100"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AcceptInvitationResult describes the membership created by an accepted code.
type AcceptInvitationResult struct {
	StoreID string   `json:"store_id"`
	Role    UserRole `json:"role"`
}

// InvitationMail is the payload of the invitation delivery job.
type InvitationMail struct {
	InvitationID string     `json:"invitation_id"`
	StoreID      string     `json:"store_id"`
	StoreName    string     `json:"store_name"`
	To           string     `json:"to"`
	Code         string     `json:"code"`
	Role         UserRole   `json:"role"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}
