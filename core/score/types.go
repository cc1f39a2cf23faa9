// Package score defines the hierarchical document model both notation
// pipelines convert to and from. The tree is exclusively owned: every
// element has exactly one parent, and relationships between distant
// elements are expressed as identifier references resolved by the
// conversion context, never as structural sharing.
package score

import "github.com/cadenza-tools/cadenza/core/duration"

// Element is anything in the document model that carries a stable
// identifier and can therefore be the target of a cross-reference.
type Element interface {
	ElementID() string
}

// Event is a note-level element that can appear in a layer's event list.
type Event interface {
	Element
	isEvent()
}

// Score is the document root.
type Score struct {
	ID           string  `json:"id"`
	Title        string  `json:"title,omitempty"`
	Composer     string  `json:"composer,omitempty"`
	SourceFormat string  `json:"source_format,omitempty"`
	SourceHash   string  `json:"source_hash,omitempty"`
	Parts        []*Part `json:"parts,omitempty"`
}

// Part is one instrument or voice group of the score.
type Part struct {
	ID       string     `json:"id"`
	Label    string     `json:"label,omitempty"`
	Measures []*Measure `json:"measures,omitempty"`
}

// Measure groups the staves of one part for one bar, plus the control
// events (cross-reference elements) anchored in that bar.
type Measure struct {
	ID            string    `json:"id"`
	N             int       `json:"n"`
	Clef          *Clef     `json:"clef,omitempty"`
	Key           *Key      `json:"key,omitempty"`
	Time          *TimeSig  `json:"time,omitempty"`
	Staves        []*Staff  `json:"staves,omitempty"`
	ControlEvents []Element `json:"control_events,omitempty"`
}

// Clef is a clef assignment at the start of a measure.
type Clef struct {
	Sign string `json:"sign"`
	Line int    `json:"line,omitempty"`
}

// Key is a key signature expressed as a count of fifths (negative = flats).
type Key struct {
	Fifths int    `json:"fifths"`
	Mode   string `json:"mode,omitempty"`
}

// TimeSig is a time signature.
type TimeSig struct {
	Beats    int `json:"beats"`
	BeatType int `json:"beat_type"`
}

// Staff is one staff of a measure.
type Staff struct {
	ID     string   `json:"id"`
	N      int      `json:"n"`
	Layers []*Layer `json:"layers,omitempty"`
}

// Layer is one voice within a staff; its events run in document order.
type Layer struct {
	ID     string  `json:"id"`
	N      int     `json:"n"`
	Events []Event `json:"events,omitempty"`
}

// Pitch identifies a written pitch: step letter, chromatic alteration in
// semitones, and octave (4 holds middle C).
type Pitch struct {
	Step   string `json:"step"`
	Alter  int    `json:"alter,omitempty"`
	Octave int    `json:"octave"`
}

// Note is a single pitched event.
type Note struct {
	ID    string            `json:"id"`
	Pitch Pitch             `json:"pitch"`
	Dur   duration.Duration `json:"dur"`
	// Cautionary and forced accidental display flags.
	Cautionary bool `json:"cautionary,omitempty"`
	Forced     bool `json:"forced,omitempty"`
}

// Rest is a silent event occupying its duration.
type Rest struct {
	ID  string            `json:"id"`
	Dur duration.Duration `json:"dur"`
}

// Space is an invisible event that advances time without printing
// anything. It is a distinct element kind and must never be merged into
// a neighboring rest or dropped.
type Space struct {
	ID  string            `json:"id"`
	Dur duration.Duration `json:"dur"`
}

// MultiRest is a multi-measure rest spanning Count measures.
type MultiRest struct {
	ID    string            `json:"id"`
	Dur   duration.Duration `json:"dur"`
	Count int               `json:"count"`
}

// Chord is several simultaneous notes sharing one duration.
type Chord struct {
	ID    string            `json:"id"`
	Dur   duration.Duration `json:"dur"`
	Notes []*Note           `json:"notes"`
}

// Beam groups a contiguous run of events under one beam. The grouped
// events are owned by the beam, in their original order.
type Beam struct {
	ID     string  `json:"id"`
	Events []Event `json:"events"`
}

// BTrem is a single-event tremolo: rapid repetition of one note or chord.
// Slashes is the number of tremolo beams (8 per slash subdivisions).
type BTrem struct {
	ID      string `json:"id"`
	Slashes int    `json:"slashes"`
	Child   Event  `json:"child"`
}

// Harmony is a chord symbol event (chord mode entry): a root plus a
// textual quality and optional bass for inversions. Quality and Bass are
// kept verbatim so the source spelling survives a round-trip.
type Harmony struct {
	ID      string            `json:"id"`
	Root    Pitch             `json:"root"`
	Quality string            `json:"quality,omitempty"`
	Bass    *Pitch            `json:"bass,omitempty"`
	BassRaw string            `json:"bass_raw,omitempty"`
	Dur     duration.Duration `json:"dur"`
}

// Syllable is a lyric event aligned with a note position.
type Syllable struct {
	ID   string            `json:"id"`
	Text string            `json:"text"`
	Dur  duration.Duration `json:"dur"`
	// Continuation marks the syllable that is followed by "--" (hyphen to
	// the next syllable) or "__" (extender line).
	Hyphen   bool `json:"hyphen,omitempty"`
	Extender bool `json:"extender,omitempty"`
}

// Cross-reference elements. Each carries the identifiers of its two
// endpoint events; it never contains them structurally.

// Tie joins two same-pitch events into one continuous sound.
type Tie struct {
	ID      string `json:"id"`
	StartID string `json:"start_id"`
	EndID   string `json:"end_id"`
}

// Slur is a phrase arc between two events.
type Slur struct {
	ID      string `json:"id"`
	StartID string `json:"start_id"`
	EndID   string `json:"end_id"`
	Number  int    `json:"number,omitempty"`
}

// Gliss is a continuous pitch slide between two events. Label preserves
// the source's own name for the line (glissando vs. slide) so export can
// reproduce it exactly.
type Gliss struct {
	ID        string `json:"id"`
	StartID   string `json:"start_id"`
	EndID     string `json:"end_id"`
	LineStyle string `json:"line_style,omitempty"`
	Label     string `json:"label,omitempty"`
}

// TupletSpan marks a run of events played Num in the time of Numbase.
type TupletSpan struct {
	ID         string `json:"id"`
	StartID    string `json:"start_id"`
	EndID      string `json:"end_id"`
	Num        int    `json:"num"`
	Numbase    int    `json:"numbase"`
	Bracket    bool   `json:"bracket,omitempty"`
	NumVisible bool   `json:"num_visible,omitempty"`
	Place      string `json:"place,omitempty"`
	StaffN     int    `json:"staff_n,omitempty"`
}

// TremoloSpan is a two-event (fingered) tremolo alternation.
type TremoloSpan struct {
	ID      string `json:"id"`
	StartID string `json:"start_id"`
	EndID   string `json:"end_id"`
	Slashes int    `json:"slashes,omitempty"`
}

// ElementID implementations.

func (s *Score) ElementID() string       { return s.ID }
func (p *Part) ElementID() string        { return p.ID }
func (m *Measure) ElementID() string     { return m.ID }
func (s *Staff) ElementID() string       { return s.ID }
func (l *Layer) ElementID() string       { return l.ID }
func (n *Note) ElementID() string        { return n.ID }
func (r *Rest) ElementID() string        { return r.ID }
func (s *Space) ElementID() string       { return s.ID }
func (m *MultiRest) ElementID() string   { return m.ID }
func (c *Chord) ElementID() string       { return c.ID }
func (b *Beam) ElementID() string        { return b.ID }
func (b *BTrem) ElementID() string       { return b.ID }
func (h *Harmony) ElementID() string     { return h.ID }
func (s *Syllable) ElementID() string    { return s.ID }
func (t *Tie) ElementID() string         { return t.ID }
func (s *Slur) ElementID() string        { return s.ID }
func (g *Gliss) ElementID() string       { return g.ID }
func (t *TupletSpan) ElementID() string  { return t.ID }
func (t *TremoloSpan) ElementID() string { return t.ID }

// Event markers. The set of event kinds is closed; consumers switch
// exhaustively over these types.

func (n *Note) isEvent()      {}
func (r *Rest) isEvent()      {}
func (s *Space) isEvent()     {}
func (m *MultiRest) isEvent() {}
func (c *Chord) isEvent()     {}
func (b *Beam) isEvent()      {}
func (b *BTrem) isEvent()     {}
func (h *Harmony) isEvent()   {}
func (s *Syllable) isEvent()  {}

// AddControlEvent attaches a cross-reference element to the measure.
func (m *Measure) AddControlEvent(el Element) {
	m.ControlEvents = append(m.ControlEvents, el)
}

// Leaves returns the flattened leaf events of a layer in document order,
// descending through beams and tremolo containers.
func (l *Layer) Leaves() []Event {
	var out []Event
	var walk func(evs []Event)
	walk = func(evs []Event) {
		for _, ev := range evs {
			switch e := ev.(type) {
			case *Beam:
				walk(e.Events)
			case *BTrem:
				walk([]Event{e.Child})
			default:
				out = append(out, ev)
			}
		}
	}
	walk(l.Events)
	return out
}
