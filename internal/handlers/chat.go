package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"chatpdf/internal/middleware"
	"chatpdf/internal/models"
	"chatpdf/internal/session"
	"chatpdf/web"
)

type chatService interface {
	IngestFiles(ctx context.Context, sess *session.Session, files []models.UploadedFile) error
	Ask(ctx context.Context, sess *session.Session, input string) (*models.Message, error)
	Reset(ctx context.Context, sess *session.Session) error
}

type pageRenderer interface {
	Page(w io.Writer, view web.PageView) error
	Transcript(w io.Writer, history []models.Message) error
}

const maxAskBodyBytes = 64 << 10

type ChatHandler struct {
	chat           chatService
	renderer       pageRenderer
	maxUploadBytes int64
	log            *zap.Logger
}

func NewChatHandler(chat chatService, renderer pageRenderer, maxUploadBytes int64, log *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:           chat,
		renderer:       renderer,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

// Page renders the chat page for the current session.
func (h *ChatHandler) Page(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := h.renderer.Page(w, web.PageView{
		State:       string(sess.State()),
		Ready:       sess.Assistant().Ready(),
		Input:       sess.Input(),
		Messages:    sess.History(),
		MaxUploadMB: h.maxUploadBytes >> 20,
	})
	if err != nil {
		h.log.Error("failed to render page", zap.Error(err))
	}
}

// Transcript renders the message list as an HTML fragment.
func (h *ChatHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.Transcript(w, sess.History()); err != nil {
		h.log.Error("failed to render transcript", zap.Error(err))
	}
}

func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionResponse(middleware.GetSession(r.Context())))
}

// ResetSession clears the documents and the transcript of the session.
func (h *ChatHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	if err := h.chat.Reset(r.Context(), sess); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	writeJSON(w, http.StatusOK, models.ChatResponse{Messages: sess.History()})
}

// UploadDocuments ingests the PDFs of a multipart upload, replacing whatever
// the session held before.
func (h *ChatHandler) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if isTooLarge(err) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "Upload exceeds the size limit", r))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid multipart form", r))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "At least one PDF file is required", r))
		return
	}

	files := make([]models.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		data, err := readUpload(fh)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Failed to read uploaded file", r))
			return
		}
		files = append(files, models.UploadedFile{Name: fh.Filename, Data: data})
	}

	if err := h.chat.IngestFiles(r.Context(), sess, files); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Messages: sess.History()})
}

// Ask answers a question. A blank message is ignored with 204.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxAskBodyBytes)

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if isTooLarge(err) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("PAYLOAD_TOO_LARGE", "Message is too long", r))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	reply, err := h.chat.Ask(r.Context(), sess, req.Message)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	if reply == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Messages: sess.History()})
}

func sessionResponse(sess *session.Session) models.SessionResponse {
	return models.SessionResponse{
		SessionID: sess.ID,
		State:     string(sess.State()),
		Ready:     sess.Assistant().Ready(),
		Input:     sess.Input(),
		Messages:  sess.History(),
	}
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
