package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"chatpdf/internal/middleware"
	"chatpdf/internal/models"
	"chatpdf/internal/rag"
	"chatpdf/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	resp := errorResp(code, message, r)
	resp.Error.Fields = fields
	return resp
}

func handleServiceError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var (
		validationErr  *services.ValidationError
		unsupportedErr *services.UnsupportedFormatError
		ingestErr      *services.IngestError
		askErr         *services.AskError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", validationErr.Message, r))
	case errors.As(err, &unsupportedErr):
		writeJSON(w, http.StatusUnsupportedMediaType, errorRespWithFields("UNSUPPORTED_FORMAT",
			"Only PDF files are supported", map[string]string{"file": unsupportedErr.File}, r))
	case errors.Is(err, services.ErrNoDocument):
		writeJSON(w, http.StatusConflict, errorResp("NO_DOCUMENT", services.NoDocumentWarning, r))
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorResp("TIMEOUT", "The assistant took too long to respond", r))
	case errors.As(err, &ingestErr):
		msg := fmt.Sprintf("Failed to ingest %s", ingestErr.File)
		if errors.Is(err, rag.ErrNoText) {
			msg = fmt.Sprintf("%s contains no extractable text", ingestErr.File)
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorRespWithFields("INGEST_FAILED", msg,
			map[string]string{"file": ingestErr.File}, r))
	case errors.As(err, &askErr):
		writeJSON(w, http.StatusBadGateway, errorResp("AI_ERROR", "Failed to get AI response", r))
	default:
		log.Error("unexpected error",
			zap.String("path", r.URL.Path),
			zap.String("request_id", r.Header.Get(middleware.RequestIDHeader)),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}
