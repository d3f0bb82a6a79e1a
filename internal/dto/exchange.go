package dto

// ExchangeQuery mirrors the manager listing filters.
type ExchangeQuery struct {
	Status      string `form:"status" binding:"omitempty,oneof=pending approved rejected cancelled"`
	RequesterID string `form:"requester_id"`
	Limit       int    `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset      int    `form:"offset" binding:"omitempty,min=0"`
}
