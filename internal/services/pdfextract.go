package services

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/crypto/blake2b"

	"chatpdf/internal/rag"
)

// PDFExtractService loads PDF files page by page. It implements rag.Loader.
type PDFExtractService struct{}

func NewPDFExtractService() *PDFExtractService {
	return &PDFExtractService{}
}

func (s *PDFExtractService) Load(ctx context.Context, path string) (*rag.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Parse(filepath.Base(path), data)
}

// Parse extracts the text of every page in data. Pages without text are
// kept with an empty Text so page numbers stay aligned.
func (s *PDFExtractService) Parse(name string, data []byte) (doc *rag.Document, err error) {
	// the pdf package panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("malformed pdf %s: %v", name, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	sum := blake2b.Sum256(data)
	doc = &rag.Document{
		ID:     hex.EncodeToString(sum[:]),
		Source: name,
	}

	totalPage := reader.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			doc.Pages = append(doc.Pages, rag.Page{Number: pageIndex})
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			content = ""
		}
		doc.Pages = append(doc.Pages, rag.Page{
			Number: pageIndex,
			Text:   normalizeExtractedText(content),
		})
	}

	return doc, nil
}

// IsPDF reports whether an upload looks like a PDF, by content or extension.
func IsPDF(name string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return true
	}
	return http.DetectContentType(data) == "application/pdf"
}

func normalizeExtractedText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	buf := bytes.Buffer{}

	emptyCount := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			emptyCount++
			if emptyCount > 1 {
				continue
			}
			buf.WriteString("\n")
			continue
		}
		emptyCount = 0
		buf.WriteString(trimmed)
		buf.WriteString("\n")
	}

	return strings.TrimSpace(buf.String())
}
