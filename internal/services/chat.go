package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"chatpdf/internal/models"
	"chatpdf/internal/session"
)

// StatusPublisher pushes spinner events to the browser of a session.
type StatusPublisher interface {
	Publish(ctx context.Context, sessionID string, msg models.WSMessage)
}

// ChatService runs the two UI events of a session: uploading documents and
// asking a question. Events of one session never overlap.
type ChatService struct {
	publisher     StatusPublisher
	tempDir       string
	askTimeout    time.Duration
	ingestTimeout time.Duration
	now           func() time.Time
	log           *zap.Logger
}

func NewChatService(publisher StatusPublisher, tempDir string, askTimeout, ingestTimeout time.Duration, log *zap.Logger) *ChatService {
	return &ChatService{
		publisher:     publisher,
		tempDir:       tempDir,
		askTimeout:    askTimeout,
		ingestTimeout: ingestTimeout,
		now:           time.Now,
		log:           log,
	}
}

// IngestFiles resets the session and ingests files in order, appending one
// status message per ingested file. It stops at the first failure; status
// messages of files ingested before it are kept.
func (s *ChatService) IngestFiles(ctx context.Context, sess *session.Session, files []models.UploadedFile) error {
	if len(files) == 0 {
		return &ValidationError{Message: "At least one PDF file is required"}
	}
	for _, f := range files {
		if strings.TrimSpace(f.Name) == "" {
			return &ValidationError{Message: "Uploaded file has no name"}
		}
		if !IsPDF(f.Name, f.Data) {
			return &UnsupportedFormatError{File: f.Name}
		}
	}

	sess.Lock()
	defer sess.Unlock()
	defer s.publish(ctx, sess.ID, models.WSMessage{Type: models.WSTypeIdle})

	// One deadline covers the whole upload, however many files it holds.
	if s.ingestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.ingestTimeout)
		defer cancel()
	}

	if err := sess.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}

	for _, f := range files {
		s.publish(ctx, sess.ID, models.WSMessage{
			Type: models.WSTypeStatusUpdate,
			Payload: models.StatusUpdate{
				State:    "ingesting",
				StepName: fmt.Sprintf("Ingesting %s...", f.Name),
			},
		})

		elapsed, err := s.ingestOne(ctx, sess, f)
		if err != nil {
			s.log.Warn("ingestion failed",
				zap.String("session_id", sess.ID),
				zap.String("file", f.Name),
				zap.Error(err),
			)
			return &IngestError{File: f.Name, Err: err}
		}

		s.log.Info("document ingested",
			zap.String("session_id", sess.ID),
			zap.String("file", f.Name),
			zap.Duration("elapsed", elapsed),
		)
		sess.Append(models.Message{
			Text:   fmt.Sprintf("Ingested %s in %.2f seconds", f.Name, elapsed.Seconds()),
			IsUser: false,
		})
	}

	return nil
}

// ingestOne writes f to a temporary directory for the duration of one Ingest
// call. The file keeps the uploaded name so chunks carry it as their source.
// The directory is removed whether or not ingestion succeeds.
func (s *ChatService) ingestOne(ctx context.Context, sess *session.Session, f models.UploadedFile) (time.Duration, error) {
	dir, err := os.MkdirTemp(s.tempDir, "chatpdf-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, uploadFileName(f.Name))
	if err := os.WriteFile(path, f.Data, 0o600); err != nil {
		return 0, fmt.Errorf("failed to write temp file: %w", err)
	}

	start := s.now()
	if err := sess.Assistant().Ingest(ctx, path); err != nil {
		return 0, err
	}
	return s.now().Sub(start), nil
}

// uploadFileName strips any directory part a client put in the name.
func uploadFileName(name string) string {
	base := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, "\\", "/")))
	if base == "/" || base == "." || base == ".." {
		return "upload.pdf"
	}
	return base
}

// Ask answers input from the ingested documents and appends the question and
// the answer to the transcript. A whitespace-only input is ignored and
// returns a nil message.
func (s *ChatService) Ask(ctx context.Context, sess *session.Session, input string) (*models.Message, error) {
	sess.Lock()
	defer sess.Unlock()

	if !sess.Assistant().Ready() {
		return nil, ErrNoDocument
	}

	text := strings.TrimSpace(input)
	if text == "" {
		return nil, nil
	}

	sess.SetInput(text)
	sess.SetAnswering(true)
	defer sess.SetAnswering(false)
	defer s.publish(ctx, sess.ID, models.WSMessage{Type: models.WSTypeIdle})

	s.publish(ctx, sess.ID, models.WSMessage{
		Type: models.WSTypeStatusUpdate,
		Payload: models.StatusUpdate{
			State:    string(session.StateAnswering),
			StepName: "Thinking...",
		},
	})

	askCtx := ctx
	if s.askTimeout > 0 {
		var cancel context.CancelFunc
		askCtx, cancel = context.WithTimeout(ctx, s.askTimeout)
		defer cancel()
	}

	start := s.now()
	answer, err := sess.Assistant().Ask(askCtx, text)
	if err != nil {
		s.log.Warn("ask failed", zap.String("session_id", sess.ID), zap.Error(err))
		return nil, &AskError{Err: err}
	}
	s.log.Info("question answered",
		zap.String("session_id", sess.ID),
		zap.Duration("elapsed", s.now().Sub(start)),
	)

	reply := models.Message{Text: answer, IsUser: false}
	sess.Append(models.Message{Text: text, IsUser: true}, reply)
	sess.SetInput("")

	return &reply, nil
}

// Reset clears the session's documents and transcript.
func (s *ChatService) Reset(ctx context.Context, sess *session.Session) error {
	sess.Lock()
	defer sess.Unlock()
	return sess.Reset(ctx)
}

func (s *ChatService) publish(ctx context.Context, sessionID string, msg models.WSMessage) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(context.WithoutCancel(ctx), sessionID, msg)
}
