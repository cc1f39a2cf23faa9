// Package convctx holds the request-scoped conversion context threaded
// through every importer and exporter walk. It owns the pending
// cross-reference tables (ties, slurs, tuplets, glissandos, tremolos),
// the bidirectional identifier maps, and the per-suffix identifier
// counters. A Context is created fresh for each conversion call and is
// never shared between calls.
package convctx

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cadenza-tools/cadenza/core/errors"
)

// PendingTie is an open tie start waiting for its continuation note.
// Ties are matched by pitch identity: the continuation must carry the
// same step, octave and alteration in the same part, staff and voice.
type PendingTie struct {
	OriginID string
	Part     string
	Staff    int
	Voice    int
	Step     string
	Octave   int
	Alter    int
}

// PendingSlur is an open slur start, keyed by part and slur number.
type PendingSlur struct {
	OriginID string
	Part     string
	Number   int
}

// PendingTuplet is an open tuplet start. The scope key is the source
// part, staff and local tuplet number; the stop search deliberately
// ignores the staff because a tuplet may finish on another staff.
type PendingTuplet struct {
	OriginID   string
	Part       string
	Staff      int
	Number     int
	StaffN     int // resolved document-model staff number
	Num        int
	Numbase    int
	Bracket    bool
	NumVisible bool
	Place      string
}

// PendingGliss is an open glissando or slide. Label preserves the
// source's spelling of the construct so export reproduces it verbatim.
type PendingGliss struct {
	OriginID  string
	Part      string
	Number    int
	StaffN    int
	LineStyle string
	Label     string
}

// PendingTremolo is the single-note tremolo waiting to attach to the
// next produced element. At most one is held at a time.
type PendingTremolo struct {
	Slashes int
}

// CompletedSpan is a matched start/stop pair ready for emission as a
// document-model cross-reference element.
type CompletedSpan struct {
	OriginID   string
	TerminusID string
	StaffN     int

	// Tuplet fields.
	Num        int
	Numbase    int
	Bracket    bool
	NumVisible bool
	Place      string

	// Glissando fields.
	LineStyle string
	Label     string

	// Tremolo fields.
	Slashes int
}

// Context is the mutable conversion state for one import or export call.
type Context struct {
	// RunID correlates log lines produced during one conversion.
	RunID string

	srcToDoc map[string]string
	docToSrc map[string]string
	counters map[string]int

	pendingTies    []PendingTie
	pendingSlurs   []PendingSlur
	pendingTuplets []PendingTuplet
	pendingGlisses []PendingGliss
	pendingTremolo *PendingTremolo

	completedTies    []CompletedSpan
	completedSlurs   []CompletedSpan
	completedTuplets []CompletedSpan
	completedGlisses []CompletedSpan

	warnings []*errors.UnresolvedError
}

// New creates an empty conversion context.
func New() *Context {
	return &Context{
		RunID:    uuid.NewString(),
		srcToDoc: make(map[string]string),
		docToSrc: make(map[string]string),
		counters: make(map[string]int),
	}
}

// NextID returns the next synthetic identifier for the given suffix
// category. Each suffix owns an independent counter so numbering in one
// category is unaffected by traffic in another.
func (c *Context) NextID(suffix string) string {
	c.counters[suffix]++
	return fmt.Sprintf("%s-%d", suffix, c.counters[suffix])
}

// MapID records a source-id to document-id correspondence in both
// directions.
func (c *Context) MapID(srcID, docID string) {
	if srcID == "" || docID == "" {
		return
	}
	c.srcToDoc[srcID] = docID
	c.docToSrc[docID] = srcID
}

// DocID resolves a source identifier to its document-model identifier.
func (c *Context) DocID(srcID string) (string, bool) {
	id, ok := c.srcToDoc[srcID]
	return id, ok
}

// SrcID resolves a document-model identifier back to its source identifier.
func (c *Context) SrcID(docID string) (string, bool) {
	id, ok := c.docToSrc[docID]
	return id, ok
}

// Ties

// StartTie records an open tie.
func (c *Context) StartTie(p PendingTie) {
	c.pendingTies = append(c.pendingTies, p)
}

// EndTie matches a tie stop against the open ties by pitch identity
// (part, staff, voice, step, octave, alteration). Candidates are tried
// in first-in-first-matched queue order; the matched record is promoted
// to a completed span. Returns false when no open tie matches.
func (c *Context) EndTie(terminusID, part string, staff, voice int, step string, octave, alter int) bool {
	for i, p := range c.pendingTies {
		if p.Part == part && p.Staff == staff && p.Voice == voice && p.Step == step && p.Octave == octave && p.Alter == alter {
			c.completedTies = append(c.completedTies, CompletedSpan{
				OriginID:   p.OriginID,
				TerminusID: terminusID,
				StaffN:     staff,
			})
			c.pendingTies = append(c.pendingTies[:i], c.pendingTies[i+1:]...)
			return true
		}
	}
	return false
}

// Slurs

// StartSlur records an open slur.
func (c *Context) StartSlur(p PendingSlur) {
	c.pendingSlurs = append(c.pendingSlurs, p)
}

// EndSlur matches a slur stop by part and number, FIFO.
func (c *Context) EndSlur(terminusID, part string, number int) bool {
	for i, p := range c.pendingSlurs {
		if p.Part == part && p.Number == number {
			c.completedSlurs = append(c.completedSlurs, CompletedSpan{
				OriginID:   p.OriginID,
				TerminusID: terminusID,
				Num:        p.Number,
			})
			c.pendingSlurs = append(c.pendingSlurs[:i], c.pendingSlurs[i+1:]...)
			return true
		}
	}
	return false
}

// Tuplets

// StartTuplet records an open tuplet.
func (c *Context) StartTuplet(p PendingTuplet) {
	c.pendingTuplets = append(c.pendingTuplets, p)
}

// EndTuplet matches a tuplet stop by part and local number. The staff is
// ignored on the stop search.
func (c *Context) EndTuplet(terminusID, part string, number int) bool {
	for i, p := range c.pendingTuplets {
		if p.Part == part && p.Number == number {
			c.completedTuplets = append(c.completedTuplets, CompletedSpan{
				OriginID:   p.OriginID,
				TerminusID: terminusID,
				StaffN:     p.StaffN,
				Num:        p.Num,
				Numbase:    p.Numbase,
				Bracket:    p.Bracket,
				NumVisible: p.NumVisible,
				Place:      p.Place,
			})
			c.pendingTuplets = append(c.pendingTuplets[:i], c.pendingTuplets[i+1:]...)
			return true
		}
	}
	return false
}

// CompleteTuplet seeds a completed tuplet directly from both endpoint
// identifiers, skipping the pending scan. Used when the source expresses
// the tuplet as a container rather than start/stop markers, and on the
// export path where the document model already carries both endpoints.
func (c *Context) CompleteTuplet(span CompletedSpan) {
	c.completedTuplets = append(c.completedTuplets, span)
}

// Glissandos

// StartGliss records an open glissando or slide.
func (c *Context) StartGliss(p PendingGliss) {
	c.pendingGlisses = append(c.pendingGlisses, p)
}

// EndGliss matches a glissando stop by part and number. The originating
// staff is ignored because a glissando may end on a different staff.
func (c *Context) EndGliss(terminusID, part string, number int) bool {
	for i, p := range c.pendingGlisses {
		if p.Part == part && p.Number == number {
			c.completedGlisses = append(c.completedGlisses, CompletedSpan{
				OriginID:   p.OriginID,
				TerminusID: terminusID,
				StaffN:     p.StaffN,
				LineStyle:  p.LineStyle,
				Label:      p.Label,
			})
			c.pendingGlisses = append(c.pendingGlisses[:i], c.pendingGlisses[i+1:]...)
			return true
		}
	}
	return false
}

// Tremolos

// SetTremolo holds a single-note tremolo to attach to the next element.
// A tremolo already held is replaced; the importer reports that case
// before overwriting.
func (c *Context) SetTremolo(p PendingTremolo) {
	c.pendingTremolo = &p
}

// TakeTremolo removes and returns the held tremolo, if any.
func (c *Context) TakeTremolo() (PendingTremolo, bool) {
	if c.pendingTremolo == nil {
		return PendingTremolo{}, false
	}
	p := *c.pendingTremolo
	c.pendingTremolo = nil
	return p, true
}

// Drains. Each returns the completed spans in discovery order and
// clears the list so records are emitted exactly once.

// DrainTies returns and clears the completed ties.
func (c *Context) DrainTies() []CompletedSpan {
	out := c.completedTies
	c.completedTies = nil
	return out
}

// DrainSlurs returns and clears the completed slurs.
func (c *Context) DrainSlurs() []CompletedSpan {
	out := c.completedSlurs
	c.completedSlurs = nil
	return out
}

// DrainTuplets returns and clears the completed tuplets.
func (c *Context) DrainTuplets() []CompletedSpan {
	out := c.completedTuplets
	c.completedTuplets = nil
	return out
}

// DrainGlisses returns and clears the completed glissandos.
func (c *Context) DrainGlisses() []CompletedSpan {
	out := c.completedGlisses
	c.completedGlisses = nil
	return out
}

// Warn records a non-fatal structural fidelity warning.
func (c *Context) Warn(w *errors.UnresolvedError) {
	c.warnings = append(c.warnings, w)
}

// Finish flags every pending record still open as unresolved and returns
// the accumulated warnings. A dangling start marker is a fidelity
// warning, not a hard failure.
func (c *Context) Finish() []*errors.UnresolvedError {
	for _, p := range c.pendingTies {
		c.warnings = append(c.warnings, errors.NewUnresolved("tie", p.OriginID,
			fmt.Sprintf("part %s staff %d voice %d %s oct %d alter %d", p.Part, p.Staff, p.Voice, p.Step, p.Octave, p.Alter)))
	}
	c.pendingTies = nil
	for _, p := range c.pendingSlurs {
		c.warnings = append(c.warnings, errors.NewUnresolved("slur", p.OriginID,
			fmt.Sprintf("part %s number %d", p.Part, p.Number)))
	}
	c.pendingSlurs = nil
	for _, p := range c.pendingTuplets {
		c.warnings = append(c.warnings, errors.NewUnresolved("tuplet", p.OriginID,
			fmt.Sprintf("part %s number %d", p.Part, p.Number)))
	}
	c.pendingTuplets = nil
	for _, p := range c.pendingGlisses {
		c.warnings = append(c.warnings, errors.NewUnresolved("glissando", p.OriginID,
			fmt.Sprintf("part %s number %d", p.Part, p.Number)))
	}
	c.pendingGlisses = nil
	if c.pendingTremolo != nil {
		c.warnings = append(c.warnings, errors.NewUnresolved("tremolo", "", "tremolo marker without a following event"))
		c.pendingTremolo = nil
	}
	return c.warnings
}
