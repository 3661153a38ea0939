package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPDF(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		data     []byte
		expected bool
	}{
		{"extension", "paper.pdf", []byte("anything"), true},
		{"upper case extension", "PAPER.PDF", nil, true},
		{"sniffed content", "download", []byte("%PDF-1.7\n..."), true},
		{"text file", "notes.txt", []byte("hello"), false},
		{"image", "scan.png", []byte("\x89PNG\r\n\x1a\n"), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsPDF(tc.file, tc.data))
		})
	}
}

func TestNormalizeExtractedText(t *testing.T) {
	in := "  Title  \r\n\r\n\r\n  line one \rline two\n\n\n\n"
	assert.Equal(t, "Title\n\nline one\nline two", normalizeExtractedText(in))
}

func TestPDFExtractService_RejectsGarbage(t *testing.T) {
	s := NewPDFExtractService()

	doc, err := s.Parse("broken.pdf", []byte("this is not a pdf"))
	assert.Error(t, err)
	assert.Nil(t, doc)
}

func TestPDFExtractService_LoadMissingFile(t *testing.T) {
	s := NewPDFExtractService()

	_, err := s.Load(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}
