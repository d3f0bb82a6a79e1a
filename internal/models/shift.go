package models

import "time"

// ShiftStatus tracks whether a manager confirmed a shift.
type ShiftStatus string

const (
	ShiftStatusPending   ShiftStatus = "pending"
	ShiftStatusConfirmed ShiftStatus = "confirmed"
)

// Shift is a scheduled work interval, optionally assigned to a user.
type Shift struct {
	ID        string      `db:"id" json:"id"`
	StoreID   string      `db:"store_id" json:"store_id"`
	UserID    *string     `db:"user_id" json:"user_id,omitempty"`
	StartTime time.Time   `db:"start_time" json:"start_time"`
	EndTime   time.Time   `db:"end_time" json:"end_time"`
	Position  *string     `db:"position" json:"position,omitempty"`
	Status    ShiftStatus `db:"status" json:"status"`
	Notes     *string     `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// Overlaps reports whether s and the inclusive interval [start, end] intersect.
// Shifts that only touch at a boundary overlap.
func (s Shift) Overlaps(start, end time.Time) bool {
	return !s.StartTime.After(end) && !s.EndTime.Before(start)
}

// AssignedTo reports whether the shift belongs to userID.
func (s Shift) AssignedTo(userID string) bool {
	return s.UserID != nil && *s.UserID == userID
}

// ShiftFilter narrows shift listings.
type ShiftFilter struct {
	StoreID   string
	UserID    string
	Position  string
	Status    ShiftStatus
	StartDate *time.Time
	EndDate   *time.Time
}

// OverlapQuery describes a candidate interval to check against existing shifts.
type OverlapQuery struct {
	StoreID   string
	UserID    *string
	Start     time.Time
	End       time.Time
	ExcludeID string
}

// ShiftInput is the payload for creating or updating a shift.
type ShiftInput struct {
	UserID    *string      `json:"user_id" validate:"omitempty,uuid"`
	StartTime time.Time    `json:"start_time" validate:"required"`
	EndTime   time.Time    `json:"end_time" validate:"required"`
	Position  *string      `json:"position" validate:"omitempty,max=50"`
	Status    *ShiftStatus `json:"status" validate:"omitempty,oneof=pending confirmed"`
	Notes     *string      `json:"notes" validate:"omitempty,max=500"`
}

// ShiftWithStaff pairs a shift with its assignee display name.
type ShiftWithStaff struct {
	Shift
	StaffName *string `db:"staff_name" json:"staff_name,omitempty"`
}
