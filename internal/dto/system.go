package dto

// HealthResponse is the liveness/readiness payload.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
