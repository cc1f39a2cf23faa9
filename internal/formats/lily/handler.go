// Package lily implements the text notation pipeline: a mode-switching
// lexer, a recursive-descent parser, a canonical serializer, and the
// importer/exporter pair that converts between the parse tree and the
// document model.
package lily

import (
	"strings"

	"github.com/cadenza-tools/cadenza/core/score"
	"github.com/cadenza-tools/cadenza/internal/formats"
)

// FormatID is the registry key for this format.
const FormatID = "lily"

// Handler is the format boundary implementation.
type Handler struct{}

func init() {
	formats.Register(&Handler{})
}

// ID returns the registry key.
func (h *Handler) ID() string { return FormatID }

// Name returns the human-readable format name.
func (h *Handler) Name() string { return "LilyPond notation" }

// Extensions returns the file extensions claimed by the format.
func (h *Handler) Extensions() []string { return []string{".ly", ".ily"} }

// contentMarkers are commands that identify the format reliably; a bare
// music fragment is recognized by its brace-and-pitch shape instead.
var contentMarkers = []string{
	"\\version", "\\score", "\\relative", "\\new Staff", "\\chordmode",
	"\\lyricmode", "\\header", "\\clef", "\\time", "\\key",
}

// Detect reports whether the content looks like this format.
func (h *Handler) Detect(content []byte) bool {
	text := string(content)
	for _, marker := range contentMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// Import converts source bytes to a document-model score.
func (h *Handler) Import(content []byte) (*formats.Result, error) {
	sc, warnings, err := ImportScore(string(content))
	if err != nil {
		return nil, err
	}
	return &formats.Result{Score: sc, Warnings: warnings}, nil
}

// Export converts a document-model score to source bytes.
func (h *Handler) Export(s *score.Score) (*formats.Result, error) {
	text, warnings, err := ExportScore(s)
	if err != nil {
		return nil, err
	}
	return &formats.Result{Data: []byte(text), Warnings: warnings}, nil
}
