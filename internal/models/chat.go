package models

// Message is one transcript entry. Assistant replies and ingestion status
// lines have IsUser false.
type Message struct {
	Text   string `json:"text"`
	IsUser bool   `json:"is_user"`
}

// ChatRequest is the payload sent to the ask endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the full transcript after an event.
type ChatResponse struct {
	Messages []Message `json:"messages"`
}

type SessionResponse struct {
	SessionID string    `json:"session_id"`
	State     string    `json:"state"`
	Ready     bool      `json:"ready"`
	Input     string    `json:"input"`
	Messages  []Message `json:"messages"`
}
