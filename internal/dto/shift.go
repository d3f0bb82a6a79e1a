package dto

import "time"

// ShiftQuery mirrors the GET /shifts filters. Dates accept RFC3339 or YYYY-MM-DD.
type ShiftQuery struct {
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	UserID    string `form:"user_id"`
	Position  string `form:"position"`
	Status    string `form:"status" binding:"omitempty,oneof=pending confirmed"`
}

// RangeQuery is an inclusive time window.
type RangeQuery struct {
	Start string `form:"start"`
	End   string `form:"end"`
}

// ExportQuery selects the roster window and output format.
type ExportQuery struct {
	Start  string `form:"start" binding:"required"`
	End    string `form:"end" binding:"required"`
	Format string `form:"format"`
}

// OverlapCheckRequest is the POST /shifts/overlap payload. A missing user checks the whole store.
type OverlapCheckRequest struct {
	UserID    *string   `json:"user_id"`
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`
	ExcludeID string    `json:"exclude_id"`
}

// OverlapCheckResponse reports whether the candidate interval collides.
type OverlapCheckResponse struct {
	Overlap bool `json:"overlap"`
}
