// Package musicxml implements the tree notation pipeline: an XPath-based
// importer over the partwise element layout and an exporter that renders
// the document model back to partwise XML.
package musicxml

import (
	"bytes"

	"github.com/cadenza-tools/cadenza/core/score"
	"github.com/cadenza-tools/cadenza/internal/formats"
)

// FormatID is the registry key for this format.
const FormatID = "musicxml"

// Handler is the format boundary implementation.
type Handler struct{}

func init() {
	formats.Register(&Handler{})
}

// ID returns the registry key.
func (h *Handler) ID() string { return FormatID }

// Name returns the human-readable format name.
func (h *Handler) Name() string { return "MusicXML" }

// Extensions returns the file extensions claimed by the format.
func (h *Handler) Extensions() []string { return []string{".xml", ".musicxml"} }

// Detect reports whether the content looks like partwise XML. The root
// element name is the discriminator; a timewise document is recognized
// but handled by the importer's own error path.
func (h *Handler) Detect(content []byte) bool {
	if !bytes.Contains(content, []byte("<?xml")) && !bytes.Contains(content, []byte("<score-")) {
		return false
	}
	return bytes.Contains(content, []byte("<score-partwise"))
}

// Import converts partwise XML bytes to a document-model score.
func (h *Handler) Import(content []byte) (*formats.Result, error) {
	sc, warnings, err := ImportScore(content)
	if err != nil {
		return nil, err
	}
	return &formats.Result{Score: sc, Warnings: warnings}, nil
}

// Export converts a document-model score to partwise XML bytes.
func (h *Handler) Export(s *score.Score) (*formats.Result, error) {
	data, warnings, err := ExportScore(s)
	if err != nil {
		return nil, err
	}
	return &formats.Result{Data: data, Warnings: warnings}, nil
}
