package models

import (
	"errors"
	"fmt"
	"time"
)

// ExchangeStatus is the lifecycle state of an exchange request.
type ExchangeStatus string

const (
	ExchangeStatusPending   ExchangeStatus = "pending"
	ExchangeStatusApproved  ExchangeStatus = "approved"
	ExchangeStatusRejected  ExchangeStatus = "rejected"
	ExchangeStatusCancelled ExchangeStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s ExchangeStatus) Valid() bool {
	switch s {
	case ExchangeStatusPending, ExchangeStatusApproved, ExchangeStatusRejected, ExchangeStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition can leave s.
func (s ExchangeStatus) Terminal() bool {
	return s == ExchangeStatusApproved || s == ExchangeStatusRejected || s == ExchangeStatusCancelled
}

// ExchangeAction is an event applied to a pending request.
type ExchangeAction string

const (
	ExchangeActionCreate ExchangeAction = "create"
	ExchangeActionAccept ExchangeAction = "accept"
	ExchangeActionReject ExchangeAction = "reject"
	ExchangeActionCancel ExchangeAction = "cancel"
	ExchangeActionUpdate ExchangeAction = "update"
	ExchangeActionDelete ExchangeAction = "delete"
)

var (
	// ErrStaleTransition means the request already left pending.
	ErrStaleTransition = errors.New("exchange request is no longer pending")
	// ErrInvalidTransition means the action has no edge from the current state.
	ErrInvalidTransition = errors.New("invalid exchange transition")
)

var exchangeTransitions = map[ExchangeAction]ExchangeStatus{
	ExchangeActionAccept: ExchangeStatusApproved,
	ExchangeActionReject: ExchangeStatusRejected,
	ExchangeActionCancel: ExchangeStatusCancelled,
}

// Transition returns the state reached by applying action to from.
func Transition(from ExchangeStatus, action ExchangeAction) (ExchangeStatus, error) {
	to, ok := exchangeTransitions[action]
	if !ok {
		return from, fmt.Errorf("%w: %s", ErrInvalidTransition, action)
	}
	if from.Terminal() {
		return from, ErrStaleTransition
	}
	if from != ExchangeStatusPending {
		return from, fmt.Errorf("%w: from %q", ErrInvalidTransition, from)
	}
	return to, nil
}

// ActionFor maps a terminal target status to the action that reaches it.
func ActionFor(status ExchangeStatus) (ExchangeAction, bool) {
	for action, to := range exchangeTransitions {
		if to == status {
			return action, true
		}
	}
	return "", false
}

// ExchangeRequest is a proposal to hand off a shift.
type ExchangeRequest struct {
	ID           string         `db:"id" json:"id"`
	StoreID      string         `db:"store_id" json:"store_id"`
	RequesterID  string         `db:"requester_id" json:"requester_id"`
	ShiftID      string         `db:"shift_id" json:"shift_id"`
	TargetUserID *string        `db:"target_user_id" json:"target_user_id,omitempty"`
	Reason       *string        `db:"reason" json:"reason,omitempty"`
	Status       ExchangeStatus `db:"status" json:"status"`
	ApprovedBy   *string        `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt   *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// TargetedAt reports whether the request names userID as its target.
func (r ExchangeRequest) TargetedAt(userID string) bool {
	return r.TargetUserID != nil && *r.TargetUserID == userID
}

// Open reports whether anyone in the store may accept the request.
func (r ExchangeRequest) Open() bool {
	return r.TargetUserID == nil
}

// ExchangeTransition is the conditional write the storage layer applies atomically.
type ExchangeTransition struct {
	RequestID   string
	To          ExchangeStatus
	ApprovedBy  *string
	ApprovedAt  *time.Time
	RequesterID string
	// ReassignTo moves the underlying shift to this user in the same transaction.
	ReassignTo *string
}

// ShiftBrief is the shift detail joined into request views.
type ShiftBrief struct {
	ID        string    `db:"id" json:"id"`
	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
	Position  *string   `db:"position" json:"position,omitempty"`
}

// ExchangeRequestDetail is a request with its shift and display profiles.
type ExchangeRequestDetail struct {
	ExchangeRequest
	Shift     *ShiftBrief     `json:"shift,omitempty"`
	Requester *ProfileSummary `json:"requester,omitempty"`
	Target    *ProfileSummary `json:"target,omitempty"`
	Approver  *ProfileSummary `json:"approver,omitempty"`
}

// ExchangeFilter narrows manager listings.
type ExchangeFilter struct {
	StoreID     string
	Status      ExchangeStatus
	RequesterID string
	Limit       int
	Offset      int
}

// ExchangeSummary is the compact feed row.
type ExchangeSummary struct {
	ID        string         `db:"id" json:"id"`
	Status    ExchangeStatus `db:"status" json:"status"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// CreateExchangeInput is the payload for a new request.
type CreateExchangeInput struct {
	StoreID      string  `json:"store_id" validate:"required,uuid"`
	ShiftID      string  `json:"shift_id" validate:"required,uuid"`
	TargetUserID *string `json:"target_user_id" validate:"omitempty,uuid"`
	Reason       *string `json:"reason" validate:"omitempty,max=500"`
}

// UpdateExchangeInput is the manager generic transition payload.
type UpdateExchangeInput struct {
	Status     ExchangeStatus `json:"status" validate:"required,oneof=approved rejected cancelled"`
	ApprovedBy *string        `json:"approved_by" validate:"omitempty,uuid"`
	ApprovedAt *time.Time     `json:"approved_at"`
}
