package dto

// AcceptInvitationRequest redeems an invitation code.
type AcceptInvitationRequest struct {
	Code string `json:"code" binding:"required"`
}

// SendInvitationRequest is the POST /api/invitations/send payload.
type SendInvitationRequest struct {
	InvitationID string `json:"invitationId"`
}

// SendInvitationResponse acknowledges a queued mail.
type SendInvitationResponse struct {
	Success bool `json:"success"`
}
