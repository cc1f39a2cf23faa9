package lily

import (
	"fmt"
	"strings"

	"github.com/cadenza-tools/cadenza/core/duration"
	"github.com/cadenza-tools/cadenza/core/errors"
	"github.com/cadenza-tools/cadenza/core/score"
	"github.com/cadenza-tools/cadenza/internal/convctx"
	"github.com/cadenza-tools/cadenza/internal/logging"
)

// exporter rebuilds source text from the document model. Cross-reference
// control events are turned back into attached markers and containers.
type exporter struct {
	ctx *convctx.Context

	// marker lookup tables built from the control events of the part
	// being exported, keyed by endpoint event ID.
	tieStarts  map[string]bool
	slurStarts map[string]bool
	slurEnds   map[string]bool
	glissStart map[string]bool
	tupletAt   map[string]*score.TupletSpan

	warnings []string
}

// ExportScore renders a document-model score as source text.
func ExportScore(sc *score.Score) (string, []string, error) {
	exp := &exporter{ctx: convctx.New()}
	log := logging.GetLogger().With("run_id", exp.ctx.RunID, "format", FormatID)
	log.Debug("export started", "parts", len(sc.Parts))

	doc := &Document{}
	doc.Items = append(doc.Items, &VersionStatement{Version: "2.24.0"})

	if sc.Title != "" || sc.Composer != "" {
		header := &HeaderBlock{}
		if sc.Title != "" {
			header.Fields = append(header.Fields, HeaderField{Name: "title", Value: &ArgString{Value: sc.Title}})
		}
		if sc.Composer != "" {
			header.Fields = append(header.Fields, HeaderField{Name: "composer", Value: &ArgString{Value: sc.Composer}})
		}
		doc.Items = append(doc.Items, header)
	}

	block := &ScoreBlock{}
	sim := &Simultaneous{}
	for _, part := range sc.Parts {
		ctxBlock, err := exp.part(part)
		if err != nil {
			return "", nil, err
		}
		sim.Elements = append(sim.Elements, ctxBlock)
	}
	switch len(sim.Elements) {
	case 0:
	case 1:
		block.Elements = append(block.Elements, sim.Elements[0])
	default:
		block.Elements = append(block.Elements, sim)
	}
	doc.Items = append(doc.Items, block)

	log.Debug("export finished", "warnings", len(exp.warnings))
	return Serialize(doc), exp.warnings, nil
}

// part renders one part as a context block. The context type follows
// the part's content: chord symbols and lyrics get their own contexts.
func (exp *exporter) part(part *score.Part) (Music, error) {
	exp.index(part)

	kind := partKind(part)
	seq := &Sequential{}
	// The running duration starts at a quarter, matching the reading
	// default, so a leading quarter note stays implicit.
	lastDur := &duration.Duration{Base: 4}

	for i, measure := range part.Measures {
		if i > 0 {
			seq.Elements = append(seq.Elements, &BarCheck{})
		}
		exp.measureCommands(seq, measure)
		for _, staff := range measure.Staves {
			for _, layer := range staff.Layers {
				events, err := exp.events(layer.Events, &lastDur)
				if err != nil {
					return nil, err
				}
				seq.Elements = append(seq.Elements, events...)
			}
		}
	}

	var body Music = seq
	ctxType := "Staff"
	switch kind {
	case "harmony":
		ctxType = "ChordNames"
		body = &ModeBlock{Kind: "chordmode", Body: seq}
	case "lyrics":
		ctxType = "Lyrics"
		body = &ModeBlock{Kind: "lyricmode", Body: seq}
	}
	return &ContextBlock{Keyword: "new", Type: ctxType, Name: part.Label, Body: body}, nil
}

// index builds the marker tables from a part's control events.
func (exp *exporter) index(part *score.Part) {
	exp.tieStarts = map[string]bool{}
	exp.slurStarts = map[string]bool{}
	exp.slurEnds = map[string]bool{}
	exp.glissStart = map[string]bool{}
	exp.tupletAt = map[string]*score.TupletSpan{}

	for _, measure := range part.Measures {
		for _, el := range measure.ControlEvents {
			switch ce := el.(type) {
			case *score.Tie:
				exp.tieStarts[ce.StartID] = true
			case *score.Slur:
				exp.slurStarts[ce.StartID] = true
				exp.slurEnds[ce.EndID] = true
			case *score.Gliss:
				exp.glissStart[ce.StartID] = true
			case *score.TupletSpan:
				exp.tupletAt[ce.StartID] = ce
			case *score.TremoloSpan:
				exp.warn(fmt.Sprintf("two-note tremolo %s not representable, endpoints exported plain", ce.ID))
			}
		}
	}
}

func (exp *exporter) warn(msg string) {
	exp.warnings = append(exp.warnings, msg)
	logging.GetLogger().Warn("export warning", "run_id", exp.ctx.RunID, "detail", msg)
}

func (exp *exporter) measureCommands(seq *Sequential, m *score.Measure) {
	if m.Clef != nil {
		seq.Elements = append(seq.Elements, &Command{
			Name: "clef",
			Args: []Arg{&ArgSymbol{Name: clefName(m.Clef)}},
		})
	}
	if m.Key != nil {
		tonic, mode := keyPitch(m.Key)
		seq.Elements = append(seq.Elements, &Command{
			Name: "key",
			Args: []Arg{&ArgPitch{Pitch: tonic}, &ArgCommand{Name: mode}},
		})
	}
	if m.Time != nil {
		seq.Elements = append(seq.Elements, &Command{
			Name: "time",
			Args: []Arg{&ArgFraction{Num: m.Time.Beats, Den: m.Time.BeatType}},
		})
	}
}

// events renders a run of layer events, rebuilding tuplet containers
// from spans and beam brackets from beam containers.
func (exp *exporter) events(events []score.Event, lastDur **duration.Duration) ([]Music, error) {
	var out []Music
	for i := 0; i < len(events); i++ {
		ev := events[i]

		if span, ok := exp.tupletAt[ev.ElementID()]; ok {
			end := i
			for end < len(events) && events[end].ElementID() != span.EndID {
				end++
			}
			if end == len(events) {
				end = len(events) - 1
			}
			// The start event is rendered plain inside the container.
			delete(exp.tupletAt, ev.ElementID())
			inner, err := exp.events(events[i:end+1], lastDur)
			if err != nil {
				return nil, err
			}
			out = append(out, &Command{
				Name: "tuplet",
				Args: []Arg{
					&ArgFraction{Num: span.Num, Den: span.Numbase},
					&ArgMusic{Music: &Sequential{Elements: inner}},
				},
			})
			i = end
			continue
		}

		rendered, err := exp.event(ev, lastDur, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, rendered...)
	}
	return out, nil
}

// event renders one event. tremoloUnit is nonzero inside a single-event
// tremolo container.
func (exp *exporter) event(ev score.Event, lastDur **duration.Duration, tremoloUnit int) ([]Music, error) {
	switch e := ev.(type) {
	case *score.Note:
		note := &Note{
			Pitch: exp.pitch(e.Pitch, e.Forced, e.Cautionary),
			Dur:   exp.dur(e.Dur, lastDur),
			Post:  exp.posts(e.ID, tremoloUnit),
		}
		return []Music{note}, nil

	case *score.Rest:
		return []Music{&Rest{Dur: exp.dur(e.Dur, lastDur)}}, nil

	case *score.Space:
		return []Music{&Skip{Dur: exp.dur(e.Dur, lastDur)}}, nil

	case *score.MultiRest:
		// The measure count rides on a written multiplier, so the
		// duration is always spelled out.
		written := e.Dur
		if e.Count > 1 {
			written = written.WithMultiplier(e.Count, 1)
		}
		inherit := e.Dur
		*lastDur = &inherit
		return []Music{&MultiRest{Dur: &written}}, nil

	case *score.Chord:
		chord := &Chord{Dur: exp.dur(e.Dur, lastDur)}
		tied := false
		for _, note := range e.Notes {
			chord.Pitches = append(chord.Pitches, exp.pitch(note.Pitch, note.Forced, note.Cautionary))
			if exp.tieStarts[note.ID] {
				tied = true
			}
		}
		chord.Post = exp.posts(e.ID, tremoloUnit)
		if tied {
			chord.Post = append([]PostEvent{{Kind: PostTie}}, chord.Post...)
		}
		return []Music{chord}, nil

	case *score.Beam:
		var out []Music
		for _, child := range e.Events {
			rendered, err := exp.event(child, lastDur, 0)
			if err != nil {
				return nil, err
			}
			out = append(out, rendered...)
		}
		attachPost(out, 0, PostEvent{Kind: PostBeamOpen})
		attachPost(out, len(out)-1, PostEvent{Kind: PostBeamClose})
		return out, nil

	case *score.BTrem:
		unit := tremoloSubdivision(e)
		return exp.event(e.Child, lastDur, unit)

	case *score.Harmony:
		entry := &ChordEntry{
			Root: exp.pitch(e.Root, false, false),
			Dur:  exp.dur(e.Dur, lastDur),
		}
		if e.Quality != "" {
			entry.HasColon = true
			entry.Quality = e.Quality
		}
		if e.Bass != nil {
			bass := exp.pitch(*e.Bass, false, false)
			entry.Bass = &bass
		}
		return []Music{entry}, nil

	case *score.Syllable:
		return []Music{&Syllable{
			Text:     e.Text,
			Dur:      exp.dur(e.Dur, lastDur),
			Hyphen:   e.Hyphen,
			Extender: e.Extender,
		}}, nil

	default:
		return nil, errors.NewNotImplemented(fmt.Sprintf("event %T", ev))
	}
}

// attachPost appends a post-event to the note-like node at index i.
func attachPost(nodes []Music, i int, post PostEvent) {
	if i < 0 || i >= len(nodes) {
		return
	}
	switch n := nodes[i].(type) {
	case *Note:
		n.Post = append(n.Post, post)
	case *Chord:
		n.Post = append(n.Post, post)
	case *Rest:
		n.Post = append(n.Post, post)
	}
}

// posts rebuilds the attached markers of an event from the marker tables.
func (exp *exporter) posts(id string, tremoloUnit int) []PostEvent {
	var out []PostEvent
	if tremoloUnit > 0 {
		out = append(out, PostEvent{Kind: PostTremolo, Value: tremoloUnit})
	}
	if exp.tieStarts[id] {
		out = append(out, PostEvent{Kind: PostTie})
	}
	if exp.slurStarts[id] {
		out = append(out, PostEvent{Kind: PostSlurOpen})
	}
	if exp.slurEnds[id] {
		out = append(out, PostEvent{Kind: PostSlurClose})
	}
	if exp.glissStart[id] {
		out = append(out, PostEvent{Kind: PostGliss, Name: "glissando"})
	}
	return out
}

// dur emits a written duration only when it differs from the running
// value, mirroring duration inheritance on the way in. A zero duration
// means none was ever written (lyrics aligned to a melody) and emits
// nothing.
func (exp *exporter) dur(d duration.Duration, lastDur **duration.Duration) *duration.Duration {
	if d.Base == 0 {
		return nil
	}
	if *lastDur != nil && (*lastDur).Equal(d) {
		return nil
	}
	copied := d
	*lastDur = &copied
	return &copied
}

func (exp *exporter) pitch(p score.Pitch, forced, cautionary bool) Pitch {
	name := strings.ToLower(p.Step)
	switch {
	case p.Alter > 0:
		name += strings.Repeat("is", p.Alter)
	case p.Alter < 0:
		name += strings.Repeat("es", -p.Alter)
	}
	return Pitch{
		Name:       name,
		Octave:     p.Octave - 3,
		Forced:     forced,
		Cautionary: cautionary,
	}
}

// tremoloSubdivision recovers the written subdivision unit from a
// tremolo container's slash count and child duration.
func tremoloSubdivision(b *score.BTrem) int {
	base := 8
	switch child := b.Child.(type) {
	case *score.Note:
		if child.Dur.Base >= 8 {
			base = child.Dur.Base * 2
		}
	case *score.Chord:
		if child.Dur.Base >= 8 {
			base = child.Dur.Base * 2
		}
	}
	unit := base
	for s := 1; s < b.Slashes; s++ {
		unit *= 2
	}
	return unit
}

// partKind classifies a part by its leaf events.
func partKind(part *score.Part) string {
	for _, m := range part.Measures {
		for _, staff := range m.Staves {
			for _, layer := range staff.Layers {
				for _, ev := range layer.Leaves() {
					switch ev.(type) {
					case *score.Harmony:
						return "harmony"
					case *score.Syllable:
						return "lyrics"
					case *score.Note, *score.Chord, *score.Rest, *score.Space, *score.MultiRest:
						return "staff"
					}
				}
			}
		}
	}
	return "staff"
}

func clefName(c *score.Clef) string {
	switch {
	case c.Sign == "G" && (c.Line == 2 || c.Line == 0):
		return "treble"
	case c.Sign == "F" && (c.Line == 4 || c.Line == 0):
		return "bass"
	case c.Sign == "C" && c.Line == 3:
		return "alto"
	case c.Sign == "C" && c.Line == 4:
		return "tenor"
	case c.Sign == "percussion":
		return "percussion"
	default:
		return c.Sign
	}
}

// fifthsTonics maps a signature back to its major tonic spelling.
var fifthsTonics = map[int]string{
	-7: "ces", -6: "ges", -5: "des", -4: "aes", -3: "ees", -2: "bes", -1: "f",
	0: "c", 1: "g", 2: "d", 3: "a", 4: "e", 5: "b", 6: "fis", 7: "cis",
}

// keyPitch converts a signature to the written tonic and mode.
func keyPitch(k *score.Key) (Pitch, string) {
	mode := k.Mode
	if mode == "" {
		mode = "major"
	}
	fifths := k.Fifths
	if mode == "minor" {
		fifths += 3
	}
	name, ok := fifthsTonics[fifths]
	if !ok {
		name = "c"
	}
	return Pitch{Name: name}, mode
}
