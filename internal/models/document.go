package models

// UploadedFile is a PDF received from the upload control, held in memory
// until it is materialized for ingestion.
type UploadedFile struct {
	Name string
	Data []byte
}
