package services

import (
	"errors"
	"fmt"
)

// NoDocumentWarning is shown when a question arrives before any PDF was ingested.
const NoDocumentWarning = "Please upload a PDF first before asking questions."

var ErrNoDocument = errors.New(NoDocumentWarning)

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// UnsupportedFormatError rejects an upload that is not a PDF.
type UnsupportedFormatError struct {
	File string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%s is not a PDF file", e.File)
}

// IngestError reports the first file whose ingestion failed.
type IngestError struct {
	File string
	Err  error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("failed to ingest %s: %v", e.File, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

type AskError struct {
	Err error
}

func (e *AskError) Error() string {
	return fmt.Sprintf("failed to answer question: %v", e.Err)
}

func (e *AskError) Unwrap() error { return e.Err }
