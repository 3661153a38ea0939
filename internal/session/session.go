// Package session keeps per-browser chat state: the transcript, the pending
// input and the document assistant that answers questions.
package session

import (
	"context"
	"sync"
	"time"

	"chatpdf/internal/models"
)

// Assistant is the document question-answering engine owned by a session.
type Assistant interface {
	Ingest(ctx context.Context, path string) error
	Ask(ctx context.Context, question string) (string, error)
	Clear(ctx context.Context) error
	Ready() bool
}

type State string

const (
	StateEmpty     State = "empty"
	StateReady     State = "ready"
	StateAnswering State = "answering"
)

type Session struct {
	ID        string
	CreatedAt time.Time

	// events serializes UI events; data guards the fields below.
	events sync.Mutex
	data   sync.RWMutex

	history   []models.Message
	input     string
	answering bool
	assistant Assistant
}

func New(id string, assistant Assistant) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		history:   []models.Message{},
		assistant: assistant,
	}
}

// Lock starts an event. Only one event per session runs at a time.
func (s *Session) Lock() { s.events.Lock() }

func (s *Session) Unlock() { s.events.Unlock() }

func (s *Session) Assistant() Assistant { return s.assistant }

// History returns a copy of the transcript, oldest first.
func (s *Session) History() []models.Message {
	s.data.RLock()
	defer s.data.RUnlock()
	out := make([]models.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Append adds msgs to the transcript as one step.
func (s *Session) Append(msgs ...models.Message) {
	s.data.Lock()
	s.history = append(s.history, msgs...)
	s.data.Unlock()
}

func (s *Session) Input() string {
	s.data.RLock()
	defer s.data.RUnlock()
	return s.input
}

func (s *Session) SetInput(text string) {
	s.data.Lock()
	s.input = text
	s.data.Unlock()
}

func (s *Session) SetAnswering(answering bool) {
	s.data.Lock()
	s.answering = answering
	s.data.Unlock()
}

func (s *Session) State() State {
	s.data.RLock()
	answering := s.answering
	s.data.RUnlock()

	switch {
	case answering:
		return StateAnswering
	case s.assistant.Ready():
		return StateReady
	default:
		return StateEmpty
	}
}

// Reset empties the assistant's store, the transcript and the pending input.
// The transcript is only cleared once the assistant was cleared.
func (s *Session) Reset(ctx context.Context) error {
	if err := s.assistant.Clear(ctx); err != nil {
		return err
	}
	s.data.Lock()
	s.history = []models.Message{}
	s.input = ""
	s.answering = false
	s.data.Unlock()
	return nil
}
