// Package formats defines the notation format boundary: every concrete
// format implements Format, registers itself at init time, and is looked
// up by ID or by content sniffing. The registry is the only coupling
// between the conversion pipelines and the CLI.
package formats

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cadenza-tools/cadenza/core/score"
)

// Result is the outcome of one import or export call: the payload plus
// the non-fatal fidelity warnings accumulated during conversion.
type Result struct {
	Score    *score.Score
	Data     []byte
	Warnings []string
}

// Format converts between an external notation encoding and the
// document model.
type Format interface {
	// ID is the stable registry key, e.g. "lily" or "musicxml".
	ID() string

	// Name is the human-readable format name.
	Name() string

	// Extensions lists the file extensions claimed by the format,
	// with leading dots.
	Extensions() []string

	// Detect reports whether the content looks like this format.
	Detect(content []byte) bool

	// Import converts source bytes to a document-model score.
	Import(content []byte) (*Result, error)

	// Export converts a document-model score to source bytes.
	Export(s *score.Score) (*Result, error)
}

var (
	mu       sync.RWMutex
	registry = make(map[string]Format)
)

// Register adds a format to the registry. It panics on a duplicate ID;
// registration happens in init functions where a duplicate is a
// programming error.
func Register(f Format) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := registry[f.ID()]; dup {
		panic(fmt.Sprintf("formats: duplicate registration of %q", f.ID()))
	}
	registry[f.ID()] = f
}

// Get returns the format registered under id.
func Get(id string) (Format, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("formats: unknown format %q", id)
	}
	return f, nil
}

// List returns all registered formats sorted by ID.
func List() []Format {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Format, 0, len(registry))
	for _, f := range registry {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Detect finds the format claiming the given content, trying extension
// hints first and content sniffing second.
func Detect(filename string, content []byte) (Format, error) {
	byExt := detectByExtension(filename)
	if byExt != nil && byExt.Detect(content) {
		return byExt, nil
	}
	for _, f := range List() {
		if f.Detect(content) {
			return f, nil
		}
	}
	if byExt != nil {
		return byExt, nil
	}
	return nil, fmt.Errorf("formats: no format detected for %q", filename)
}

func detectByExtension(filename string) Format {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return nil
	}
	ext := strings.ToLower(filename[idx:])
	for _, f := range List() {
		for _, e := range f.Extensions() {
			if strings.ToLower(e) == ext {
				return f
			}
		}
	}
	return nil
}
