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

// importer converts a parsed document into the document model. One
// importer serves one call; all cross-reference state lives in the
// conversion context.
type importer struct {
	ctx *convctx.Context
	sc  *score.Score

	// assignments collected from top-level name = music bindings,
	// resolved when an \identifier is encountered.
	assignments map[string]Music

	warnings []string
}

// voiceState is the per-voice walk state: the measure list under
// construction and the running defaults lily lets events inherit.
type voiceState struct {
	part     *score.Part
	measures []*score.Measure
	current  *score.Layer
	lastDur  duration.Duration

	// open manual beam: index of the first beamed event in the layer.
	beamStart int
	beamOpen  bool

	// a glissando on the previous note attaches to the next one.
	glissPending bool

	// eventMeasure locates the measure each produced event landed in, so
	// completed spans can be anchored where they start.
	eventMeasure map[string]*score.Measure
}

// ImportScore converts source text to a document-model score. Dangling
// cross-reference markers are reported as warnings on the result, never
// as errors.
func ImportScore(src string) (*score.Score, []string, error) {
	doc, err := Parse(src)
	if err != nil {
		return nil, nil, err
	}

	imp := &importer{
		ctx:         convctx.New(),
		sc:          &score.Score{SourceFormat: FormatID},
		assignments: map[string]Music{},
	}
	imp.sc.ID = imp.ctx.NextID("score")
	imp.sc.SourceHash = score.HashContent([]byte(src))

	log := logging.GetLogger().With("run_id", imp.ctx.RunID, "format", FormatID)
	log.Debug("import started", "items", len(doc.Items))

	imp.collectAssignments(doc)
	for _, item := range doc.Items {
		if err := imp.topLevel(item); err != nil {
			return nil, nil, err
		}
	}

	for _, w := range imp.ctx.Finish() {
		imp.warnings = append(imp.warnings, w.Error())
		log.Warn("unresolved cross-reference", "kind", w.Kind, "origin", w.Origin, "detail", w.Detail)
	}
	log.Debug("import finished", "parts", len(imp.sc.Parts), "warnings", len(imp.warnings))
	return imp.sc, imp.warnings, nil
}

func (imp *importer) collectAssignments(doc *Document) {
	for _, item := range doc.Items {
		if a, ok := item.(*Assignment); ok {
			if m, ok := a.Value.(*ArgMusic); ok {
				imp.assignments[a.Name] = m.Music
			}
		}
	}
}

// topLevel routes one top-level item. Headers feed score metadata;
// music content becomes parts.
func (imp *importer) topLevel(item Music) error {
	switch n := item.(type) {
	case *VersionStatement, *Assignment, *MarkupBlock:
		return nil

	case *HeaderBlock:
		imp.header(n)
		return nil

	case *ScoreBlock:
		for _, el := range n.Elements {
			if err := imp.topLevel(el); err != nil {
				return err
			}
		}
		return nil

	case *Simultaneous:
		for _, el := range n.Elements {
			if err := imp.topLevel(el); err != nil {
				return err
			}
		}
		return nil

	case *ContextBlock:
		return imp.contextPart(n)

	case *Identifier:
		target, ok := imp.assignments[n.Name]
		if !ok {
			imp.warn(errors.NewUnresolved("identifier", n.Name, "no assignment with this name"))
			return nil
		}
		return imp.topLevel(target)

	case *Sequential, *ModeBlock, *Note, *Rest, *Skip, *MultiRest, *Chord, *Command:
		return imp.musicPart("", item)

	default:
		return errors.NewConversion(fmt.Sprintf("%T", item), "unsupported at top level")
	}
}

func (imp *importer) header(h *HeaderBlock) {
	for _, f := range h.Fields {
		str, ok := f.Value.(*ArgString)
		if !ok {
			continue
		}
		switch f.Name {
		case "title":
			imp.sc.Title = str.Value
		case "composer":
			imp.sc.Composer = str.Value
		}
	}
}

// contextPart converts \new Staff / Voice / ChordNames / Lyrics into a
// part of its own.
func (imp *importer) contextPart(cb *ContextBlock) error {
	label := cb.Name
	if label == "" {
		label = cb.Type
	}
	return imp.musicPart(label, cb.Body)
}

// musicPart converts one music expression into a part.
func (imp *importer) musicPart(label string, body Music) error {
	part := &score.Part{ID: imp.ctx.NextID("part"), Label: label}
	vs := &voiceState{
		part:         part,
		lastDur:      duration.Duration{Base: 4},
		beamStart:    -1,
		eventMeasure: map[string]*score.Measure{},
	}
	vs.openMeasure(imp.ctx)

	if err := imp.walk(vs, body); err != nil {
		return err
	}
	imp.closeBeam(vs)
	imp.attachSpans(vs)

	// Drop a trailing measure that never received content.
	last := vs.measures[len(vs.measures)-1]
	if len(last.Staves[0].Layers[0].Events) == 0 && len(last.ControlEvents) == 0 &&
		last.Clef == nil && last.Key == nil && last.Time == nil && len(vs.measures) > 1 {
		vs.measures = vs.measures[:len(vs.measures)-1]
	}

	part.Measures = vs.measures
	imp.sc.Parts = append(imp.sc.Parts, part)
	return nil
}

func (vs *voiceState) openMeasure(ctx *convctx.Context) {
	m := &score.Measure{
		ID: ctx.NextID("measure"),
		N:  len(vs.measures) + 1,
	}
	staff := &score.Staff{ID: ctx.NextID("staff"), N: 1}
	layer := &score.Layer{ID: ctx.NextID("layer"), N: 1}
	staff.Layers = []*score.Layer{layer}
	m.Staves = []*score.Staff{staff}
	vs.measures = append(vs.measures, m)
	vs.current = layer
}

func (vs *voiceState) measure() *score.Measure {
	return vs.measures[len(vs.measures)-1]
}

func (imp *importer) warn(w *errors.UnresolvedError) {
	imp.warnings = append(imp.warnings, w.Error())
	logging.GetLogger().Warn("conversion warning", "run_id", imp.ctx.RunID, "detail", w.Error())
}

// walk converts one music node inside a voice.
func (imp *importer) walk(vs *voiceState, m Music) error {
	switch n := m.(type) {
	case *Sequential:
		for _, el := range n.Elements {
			if err := imp.walk(vs, el); err != nil {
				return err
			}
		}
		return nil

	case *Simultaneous:
		// Parallel content inside a single voice is flattened in order;
		// the explicit voice separator has no structural effect here.
		for _, el := range n.Elements {
			if err := imp.walk(vs, el); err != nil {
				return err
			}
		}
		return nil

	case *ModeBlock:
		return imp.walk(vs, n.Body)

	case *BarCheck:
		imp.closeBeam(vs)
		vs.openMeasure(imp.ctx)
		return nil

	case *Note:
		return imp.note(vs, n)

	case *Rest:
		dur := vs.takeDur(n.Dur)
		r := &score.Rest{ID: imp.ctx.NextID("rest"), Dur: dur}
		imp.emit(vs, r)
		return imp.postEvents(vs, r.ID, nil, n.Post)

	case *Skip:
		dur := vs.takeDur(n.Dur)
		imp.emit(vs, &score.Space{ID: imp.ctx.NextID("space"), Dur: dur})
		return nil

	case *MultiRest:
		dur := vs.takeDur(n.Dur)
		count := 1
		// R1*4 spans four measures; the multiplier is the count, not a
		// duration scale.
		if n.Dur != nil && len(n.Dur.Multipliers) > 0 {
			mult := n.Dur.Multipliers[len(n.Dur.Multipliers)-1]
			if mult.Den == 1 && mult.Num > 0 {
				count = mult.Num
				dur.Multipliers = dur.Multipliers[:len(dur.Multipliers)-1]
			}
		}
		imp.emit(vs, &score.MultiRest{ID: imp.ctx.NextID("mrest"), Dur: dur, Count: count})
		return nil

	case *Chord:
		return imp.chord(vs, n)

	case *ChordEntry:
		return imp.harmony(vs, n)

	case *Syllable:
		dur := duration.Duration{}
		if n.Dur != nil {
			dur = vs.takeDur(n.Dur)
		}
		imp.emit(vs, &score.Syllable{
			ID:       imp.ctx.NextID("syl"),
			Text:     n.Text,
			Dur:      dur,
			Hyphen:   n.Hyphen,
			Extender: n.Extender,
		})
		return nil

	case *Command:
		return imp.command(vs, n)

	case *Identifier:
		target, ok := imp.assignments[n.Name]
		if !ok {
			imp.warn(errors.NewUnresolved("identifier", n.Name, "no assignment with this name"))
			return nil
		}
		return imp.walk(vs, target)

	case *ContextBlock:
		// A nested context keeps writing into the enclosing voice.
		return imp.walk(vs, n.Body)

	case *Repeat:
		return imp.repeat(vs, n)

	case *SchemeMusic, *MarkupBlock, *VersionStatement, *Assignment:
		return nil

	case *ScoreBlock:
		for _, el := range n.Elements {
			if err := imp.walk(vs, el); err != nil {
				return err
			}
		}
		return nil

	default:
		return errors.NewConversion(fmt.Sprintf("%T", m), "unsupported music construct")
	}
}

// emit appends an event to the current layer and records its measure.
func (imp *importer) emit(vs *voiceState, ev score.Event) {
	vs.current.Events = append(vs.current.Events, ev)
	vs.eventMeasure[ev.ElementID()] = vs.measure()
}

// takeDur resolves an optional written duration against the running
// default, updating the default when one is written.
func (vs *voiceState) takeDur(d *duration.Duration) duration.Duration {
	if d != nil {
		vs.lastDur = *d
	}
	return vs.lastDur
}

func (imp *importer) note(vs *voiceState, n *Note) error {
	pitch, err := convertPitch(n.Pitch)
	if err != nil {
		return err
	}
	dur := vs.takeDur(n.Dur)
	note := &score.Note{
		ID:         imp.ctx.NextID("note"),
		Pitch:      pitch,
		Dur:        dur,
		Forced:     n.Pitch.Forced,
		Cautionary: n.Pitch.Cautionary,
	}

	// A note can terminate an open tie and simultaneously start a new
	// one; termination is checked first.
	imp.ctx.EndTie(note.ID, vs.part.ID, 1, 1, pitch.Step, pitch.Octave, pitch.Alter)
	imp.endGliss(vs, note.ID)

	event := imp.wrapTremolo(note, dur, postTremolo(n.Post))
	imp.emit(vs, event)
	return imp.postEvents(vs, note.ID, &pitch, n.Post)
}

func (imp *importer) chord(vs *voiceState, c *Chord) error {
	dur := vs.takeDur(c.Dur)
	chord := &score.Chord{ID: imp.ctx.NextID("chord"), Dur: dur}
	for _, p := range c.Pitches {
		pitch, err := convertPitch(p)
		if err != nil {
			return err
		}
		note := &score.Note{
			ID:         imp.ctx.NextID("note"),
			Pitch:      pitch,
			Dur:        dur,
			Forced:     p.Forced,
			Cautionary: p.Cautionary,
		}
		imp.ctx.EndTie(note.ID, vs.part.ID, 1, 1, pitch.Step, pitch.Octave, pitch.Alter)
		chord.Notes = append(chord.Notes, note)
	}
	imp.endGliss(vs, chord.ID)

	event := imp.wrapTremolo(chord, dur, postTremolo(c.Post))
	imp.emit(vs, event)

	// A tie on the chord opens one pending tie per chord note.
	for _, ev := range c.Post {
		if ev.Kind == PostTie {
			for _, note := range chord.Notes {
				imp.ctx.StartTie(convctx.PendingTie{
					OriginID: note.ID,
					Part:     vs.part.ID,
					Staff:    1,
					Voice:    1,
					Step:     note.Pitch.Step,
					Octave:   note.Pitch.Octave,
					Alter:    note.Pitch.Alter,
				})
			}
		}
	}
	return imp.postEvents(vs, chord.ID, nil, withoutTies(c.Post))
}

func postTremolo(events []PostEvent) int {
	for _, ev := range events {
		if ev.Kind == PostTremolo {
			return ev.Value
		}
	}
	return 0
}

func withoutTies(events []PostEvent) []PostEvent {
	out := make([]PostEvent, 0, len(events))
	for _, ev := range events {
		if ev.Kind != PostTie {
			out = append(out, ev)
		}
	}
	return out
}

// wrapTremolo wraps an event in a single-event tremolo container when a
// subdivision marker was written.
func (imp *importer) wrapTremolo(ev score.Event, dur duration.Duration, unit int) score.Event {
	if unit == 0 {
		return ev
	}
	slashes := 0
	base := dur.Base
	if base < 8 {
		base = 8
	} else {
		base *= 2
	}
	for u := base; u <= unit; u *= 2 {
		slashes++
	}
	if slashes < 1 {
		slashes = 1
	}
	return &score.BTrem{ID: imp.ctx.NextID("btrem"), Slashes: slashes, Child: ev}
}

// postEvents applies the attached markers of a note, rest or chord.
// pitch is nil for events without a single pitch identity.
func (imp *importer) postEvents(vs *voiceState, id string, pitch *score.Pitch, events []PostEvent) error {
	for _, ev := range events {
		switch ev.Kind {
		case PostTie:
			if pitch == nil {
				imp.warn(errors.NewUnresolved("tie", id, "tie on an element without pitch"))
				continue
			}
			imp.ctx.StartTie(convctx.PendingTie{
				OriginID: id,
				Part:     vs.part.ID,
				Staff:    1,
				Voice:    1,
				Step:     pitch.Step,
				Octave:   pitch.Octave,
				Alter:    pitch.Alter,
			})

		case PostSlurOpen:
			imp.ctx.StartSlur(convctx.PendingSlur{OriginID: id, Part: vs.part.ID, Number: 1})

		case PostSlurClose:
			if !imp.ctx.EndSlur(id, vs.part.ID, 1) {
				imp.warn(errors.NewUnresolved("slur", id, "slur close without open"))
			}

		case PostBeamOpen:
			vs.beamOpen = true
			vs.beamStart = len(vs.current.Events) - 1

		case PostBeamClose:
			if !vs.beamOpen {
				imp.warn(errors.NewUnresolved("beam", id, "beam close without open"))
				continue
			}
			end := len(vs.current.Events) - 1
			for _, grouped := range vs.current.Events[vs.beamStart : end+1] {
				if !score.Beamable(grouped) {
					imp.warn(errors.NewUnresolved("beam", id, "beamed event is a quarter note or longer"))
					break
				}
			}
			if _, err := vs.current.GroupBeam(imp.ctx.NextID("beam"), vs.beamStart, end); err != nil {
				return errors.Wrap(err, "grouping manual beam")
			}
			vs.beamOpen = false
			vs.beamStart = -1

		case PostGliss:
			imp.ctx.StartGliss(convctx.PendingGliss{
				OriginID: id,
				Part:     vs.part.ID,
				Number:   1,
				StaffN:   1,
				Label:    ev.Name,
			})
			vs.glissPending = true

		case PostTremolo:
			// handled when the event was produced

		case PostArticulation, PostDynamic, PostText:
			// ornaments and dynamics carry no cross-reference state
		}
	}
	return nil
}

// endGliss terminates the glissando opened by the previous note, if any.
func (imp *importer) endGliss(vs *voiceState, id string) {
	if !vs.glissPending {
		return
	}
	vs.glissPending = false
	if !imp.ctx.EndGliss(id, vs.part.ID, 1) {
		imp.warn(errors.NewUnresolved("glissando", id, "no matching open glissando"))
	}
}

// closeBeam abandons an unterminated manual beam at a measure boundary.
func (imp *importer) closeBeam(vs *voiceState) {
	if vs.beamOpen {
		imp.warn(errors.NewUnresolved("beam", "", "beam left open at measure boundary"))
		vs.beamOpen = false
		vs.beamStart = -1
	}
}

func (imp *importer) harmony(vs *voiceState, entry *ChordEntry) error {
	root, err := convertPitch(entry.Root)
	if err != nil {
		return err
	}
	dur := vs.takeDur(entry.Dur)
	h := &score.Harmony{
		ID:      imp.ctx.NextID("harm"),
		Root:    root,
		Quality: entry.Quality,
		Dur:     dur,
	}
	if entry.Bass != nil {
		bass, err := convertPitch(*entry.Bass)
		if err != nil {
			return err
		}
		h.Bass = &bass
		h.BassRaw = entry.Bass.Name
	}
	imp.emit(vs, h)
	return nil
}

func (imp *importer) command(vs *voiceState, cmd *Command) error {
	switch cmd.Name {
	case "time":
		if frac, ok := firstFraction(cmd.Args); ok {
			vs.measure().Time = &score.TimeSig{Beats: frac.Num, BeatType: frac.Den}
		}
		return nil

	case "key":
		return imp.key(vs, cmd.Args)

	case "clef":
		if len(cmd.Args) == 1 {
			vs.measure().Clef = convertClef(argText(cmd.Args[0]))
		}
		return nil

	case "tuplet":
		return imp.tuplet(vs, cmd.Args)

	case "relative":
		// Octave entry shorthand is accepted and passed through; pitches
		// inside are treated as written.
		if len(cmd.Args) > 0 {
			if m, ok := cmd.Args[len(cmd.Args)-1].(*ArgMusic); ok {
				return imp.walk(vs, m.Music)
			}
		}
		return nil

	case "tempo", "bar", "partial", "set", "override", "unset", "revert", "language", "\\":
		return nil

	default:
		imp.warn(errors.NewUnresolved("command", cmd.Name, "command ignored during conversion"))
		return nil
	}
}

func (imp *importer) key(vs *voiceState, args []Arg) error {
	if len(args) != 2 {
		return nil
	}
	pitchArg, ok := args[0].(*ArgPitch)
	if !ok {
		return nil
	}
	modeArg, ok := args[1].(*ArgCommand)
	if !ok {
		return nil
	}
	pitch, err := convertPitch(pitchArg.Pitch)
	if err != nil {
		return err
	}
	fifths, err := keyFifths(pitch, modeArg.Name)
	if err != nil {
		return err
	}
	vs.measure().Key = &score.Key{Fifths: fifths, Mode: modeArg.Name}
	return nil
}

// tuplet converts \tuplet n/d { ... }: the body events are produced
// first, then the span is seeded directly since both endpoints are known.
func (imp *importer) tuplet(vs *voiceState, args []Arg) error {
	if len(args) != 2 {
		return errors.NewConversion("tuplet", "expected ratio and body")
	}
	frac, ok := args[0].(*ArgFraction)
	if !ok {
		return errors.NewConversion("tuplet", "missing ratio")
	}
	body, ok := args[1].(*ArgMusic)
	if !ok {
		return errors.NewConversion("tuplet", "missing body")
	}

	before := len(vs.current.Events)
	if err := imp.walk(vs, body.Music); err != nil {
		return err
	}
	produced := vs.current.Events[before:]
	if len(produced) == 0 {
		return nil
	}

	imp.ctx.CompleteTuplet(convctx.CompletedSpan{
		OriginID:   produced[0].ElementID(),
		TerminusID: produced[len(produced)-1].ElementID(),
		StaffN:     1,
		Num:        frac.Num,
		Numbase:    frac.Den,
		Bracket:    true,
		NumVisible: true,
	})
	return nil
}

func (imp *importer) repeat(vs *voiceState, r *Repeat) error {
	times := 1
	if r.Kind == "unfold" {
		times = r.Count
	}
	for i := 0; i < times; i++ {
		if err := imp.walk(vs, r.Body); err != nil {
			return err
		}
	}
	for _, alt := range r.Alternatives {
		if err := imp.walk(vs, alt); err != nil {
			return err
		}
	}
	return nil
}

// attachSpans drains the completed cross-reference spans and anchors
// each as a control event in the measure holding its start.
func (imp *importer) attachSpans(vs *voiceState) {
	anchor := func(originID string) *score.Measure {
		if m, ok := vs.eventMeasure[originID]; ok {
			return m
		}
		return vs.measure()
	}
	for _, span := range imp.ctx.DrainTies() {
		anchor(span.OriginID).AddControlEvent(&score.Tie{
			ID:      imp.ctx.NextID("tie"),
			StartID: span.OriginID,
			EndID:   span.TerminusID,
		})
	}
	for _, span := range imp.ctx.DrainSlurs() {
		anchor(span.OriginID).AddControlEvent(&score.Slur{
			ID:      imp.ctx.NextID("slur"),
			StartID: span.OriginID,
			EndID:   span.TerminusID,
			Number:  span.Num,
		})
	}
	for _, span := range imp.ctx.DrainTuplets() {
		anchor(span.OriginID).AddControlEvent(&score.TupletSpan{
			ID:         imp.ctx.NextID("tupletspan"),
			StartID:    span.OriginID,
			EndID:      span.TerminusID,
			Num:        span.Num,
			Numbase:    span.Numbase,
			Bracket:    span.Bracket,
			NumVisible: span.NumVisible,
			Place:      span.Place,
			StaffN:     span.StaffN,
		})
	}
	for _, span := range imp.ctx.DrainGlisses() {
		anchor(span.OriginID).AddControlEvent(&score.Gliss{
			ID:        imp.ctx.NextID("gliss"),
			StartID:   span.OriginID,
			EndID:     span.TerminusID,
			LineStyle: span.LineStyle,
			Label:     span.Label,
		})
	}
}

func firstFraction(args []Arg) (*ArgFraction, bool) {
	for _, a := range args {
		if f, ok := a.(*ArgFraction); ok {
			return f, true
		}
	}
	return nil, false
}

func argText(a Arg) string {
	switch v := a.(type) {
	case *ArgString:
		return v.Value
	case *ArgSymbol:
		return v.Name
	}
	return ""
}

// convertPitch maps a written note name to the document-model pitch.
// Note names follow the default (Dutch) convention: "is" raises and
// "es" lowers by a semitone each, with the contractions "es" and "as".
func convertPitch(p Pitch) (score.Pitch, error) {
	name := strings.ToLower(p.Name)
	if name == "" {
		return score.Pitch{}, errors.NewConversion("pitch", "empty note name")
	}
	step := strings.ToUpper(name[:1])
	if step < "A" || step > "G" {
		return score.Pitch{}, errors.NewConversion("pitch", fmt.Sprintf("unknown note name %q", p.Name))
	}
	suffix := name[1:]

	// Contractions: "es" is e-flat, "as" is a-flat (and their doubles).
	if (step == "E" || step == "A") && strings.HasPrefix(suffix, "s") {
		suffix = "e" + suffix
	}

	alter := 0
	for suffix != "" {
		switch {
		case strings.HasPrefix(suffix, "is"):
			alter++
			suffix = suffix[2:]
		case strings.HasPrefix(suffix, "es"):
			alter--
			suffix = suffix[2:]
		default:
			return score.Pitch{}, errors.NewConversion("pitch", fmt.Sprintf("unknown note name %q", p.Name))
		}
	}

	// Unmarked c sits in octave 3; each ' raises and each , lowers.
	return score.Pitch{Step: step, Alter: alter, Octave: 3 + p.Octave}, nil
}

// majorFifths is the circle-of-fifths position of each step as a major
// tonic.
var majorFifths = map[string]int{
	"C": 0, "D": 2, "E": 4, "F": -1, "G": 1, "A": 3, "B": 5,
}

// keyFifths converts a tonic and mode to the signature's fifths count.
func keyFifths(tonic score.Pitch, mode string) (int, error) {
	base, ok := majorFifths[tonic.Step]
	if !ok {
		return 0, errors.NewConversion("key", fmt.Sprintf("unknown tonic %q", tonic.Step))
	}
	fifths := base + 7*tonic.Alter
	if mode == "minor" {
		fifths -= 3
	}
	return fifths, nil
}

// convertClef maps a clef name to sign and line.
func convertClef(name string) *score.Clef {
	switch name {
	case "treble", "violin", "G":
		return &score.Clef{Sign: "G", Line: 2}
	case "bass", "F":
		return &score.Clef{Sign: "F", Line: 4}
	case "alto", "C":
		return &score.Clef{Sign: "C", Line: 3}
	case "tenor":
		return &score.Clef{Sign: "C", Line: 4}
	case "percussion":
		return &score.Clef{Sign: "percussion"}
	default:
		return &score.Clef{Sign: name}
	}
}
