package models

// WebSocket message types
const (
	WSTypeStatusUpdate = "status_update"
	WSTypeIdle         = "idle"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type StatusUpdate struct {
	State    string `json:"state"` // "ingesting" | "answering"
	StepName string `json:"step_name"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
