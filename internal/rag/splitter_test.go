package rag

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestRecursiveSplitter_Split(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		overlap  int
		text     string
		expected []string
	}{
		{
			name:     "short text stays whole",
			size:     100,
			overlap:  10,
			text:     "  A single short paragraph.  ",
			expected: []string{"A single short paragraph."},
		},
		{
			name:     "paragraphs split first",
			size:     12,
			overlap:  0,
			text:     "para one.\n\npara two.",
			expected: []string{"para one.", "para two."},
		},
		{
			name:     "word overlap carried into next chunk",
			size:     7,
			overlap:  3,
			text:     "aaa bbb ccc ddd",
			expected: []string{"aaa bbb", "bbb ccc", "ccc ddd"},
		},
		{
			name:     "falls back to characters without separators",
			size:     4,
			overlap:  0,
			text:     "abcdefghij",
			expected: []string{"abcd", "efgh", "ij"},
		},
		{
			name:     "empty text",
			size:     10,
			overlap:  0,
			text:     "   ",
			expected: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewRecursiveSplitter(tc.size, tc.overlap)
			assert.Equal(t, tc.expected, s.Split(tc.text))
		})
	}
}

func TestRecursiveSplitter_RespectsChunkSize(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("The quick brown fox jumps over the lazy dog. ")
		if i%7 == 0 {
			b.WriteString("\n\n")
		}
	}

	s := NewRecursiveSplitter(120, 20)
	chunks := s.Split(b.String())

	assert.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 120)
		assert.Equal(t, strings.TrimSpace(c), c)
	}
}

func TestRecursiveSplitter_CountsRunes(t *testing.T) {
	s := NewRecursiveSplitter(3, 0)
	assert.Equal(t, []string{"äöü", "ßé"}, s.Split("äöüßé"))
}

func TestNewRecursiveSplitter_NormalizesOptions(t *testing.T) {
	s := NewRecursiveSplitter(0, -5)
	assert.Equal(t, 1024, s.chunkSize)
	assert.Equal(t, 0, s.overlap)

	s = NewRecursiveSplitter(100, 100)
	assert.Equal(t, 10, s.overlap)
}
