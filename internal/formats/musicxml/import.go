package musicxml

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cadenza-tools/cadenza/core/duration"
	"github.com/cadenza-tools/cadenza/core/errors"
	"github.com/cadenza-tools/cadenza/core/score"
	"github.com/cadenza-tools/cadenza/core/xml"
	"github.com/cadenza-tools/cadenza/internal/convctx"
	"github.com/cadenza-tools/cadenza/internal/logging"
)

// typeBases maps note type names to power-of-two duration bases.
var typeBases = map[string]int{
	"longa":   duration.BaseLonga,
	"breve":   duration.BaseBreve,
	"whole":   1,
	"half":    2,
	"quarter": 4,
	"eighth":  8,
	"16th":    16,
	"32nd":    32,
	"64th":    64,
	"128th":   128,
}

// importer walks a partwise tree and builds the document model. Numeric
// attributes are coerced leniently: a malformed number drops the
// attribute instead of failing the import.
type importer struct {
	ctx *convctx.Context
	sc  *score.Score

	// two-note tremolo starts are matched locally by part; the kind has
	// no representation in the shared pending tables.
	tremoloStarts map[string]tremoloStart

	warnings []string
}

type tremoloStart struct {
	originID string
	slashes  int
}

// ImportScore converts partwise XML content to a document-model score.
func ImportScore(content []byte) (*score.Score, []string, error) {
	doc, err := xml.ParseWithCharset(content)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parsing musicxml")
	}
	root, err := doc.XPathFirst("//score-partwise")
	if err != nil {
		return nil, nil, err
	}
	if root == nil {
		return nil, nil, errors.NewConversion("musicxml", "no score-partwise root element")
	}

	imp := &importer{
		ctx:           convctx.New(),
		sc:            &score.Score{SourceFormat: FormatID},
		tremoloStarts: map[string]tremoloStart{},
	}
	imp.sc.ID = imp.ctx.NextID("score")
	imp.sc.SourceHash = score.HashContent(content)

	log := logging.GetLogger().With("run_id", imp.ctx.RunID, "format", FormatID)

	if n, _ := root.XPathFirst("work/work-title"); n != nil {
		imp.sc.Title = strings.TrimSpace(n.Text())
	}
	if n, _ := root.XPathFirst("identification/creator[@type='composer']"); n != nil {
		imp.sc.Composer = strings.TrimSpace(n.Text())
	}

	labels := map[string]string{}
	scoreParts, _ := root.XPath("part-list/score-part")
	for _, sp := range scoreParts {
		if n, _ := sp.XPathFirst("part-name"); n != nil {
			labels[sp.Attr("id")] = strings.TrimSpace(n.Text())
		}
	}

	parts, err := root.XPath("part")
	if err != nil {
		return nil, nil, err
	}
	log.Debug("import started", "parts", len(parts))

	for _, partNode := range parts {
		if err := imp.part(partNode, labels[partNode.Attr("id")]); err != nil {
			return nil, nil, err
		}
	}

	for _, w := range imp.ctx.Finish() {
		imp.warnings = append(imp.warnings, w.Error())
		log.Warn("unresolved cross-reference", "kind", w.Kind, "origin", w.Origin, "detail", w.Detail)
	}
	for partID, start := range imp.tremoloStarts {
		w := errors.NewUnresolved("tremolo", start.originID, fmt.Sprintf("part %s", partID))
		imp.warnings = append(imp.warnings, w.Error())
		log.Warn("unresolved cross-reference", "kind", "tremolo", "origin", start.originID)
	}
	log.Debug("import finished", "warnings", len(imp.warnings))
	return imp.sc, imp.warnings, nil
}

// partState carries the walk state of one part.
type partState struct {
	part      *score.Part
	divisions int

	// eventMeasure anchors completed spans in their starting measure.
	eventMeasure map[string]*score.Measure

	// open beams keyed by staff/layer key, value is the start index.
	beamStarts map[string]int
}

func (imp *importer) warn(w *errors.UnresolvedError) {
	imp.warnings = append(imp.warnings, w.Error())
	logging.GetLogger().Warn("conversion warning", "run_id", imp.ctx.RunID, "detail", w.Error())
}

func (imp *importer) part(partNode *xml.Node, label string) error {
	srcID := partNode.Attr("id")
	ps := &partState{
		part:         &score.Part{ID: imp.ctx.NextID("part"), Label: label},
		divisions:    1,
		eventMeasure: map[string]*score.Measure{},
		beamStarts:   map[string]int{},
	}
	imp.ctx.MapID(srcID, ps.part.ID)

	measures, err := partNode.XPath("measure")
	if err != nil {
		return err
	}
	for _, mNode := range measures {
		if err := imp.measure(ps, mNode, srcID); err != nil {
			return err
		}
	}

	imp.attachSpans(ps)
	imp.sc.Parts = append(imp.sc.Parts, ps.part)
	return nil
}

func (imp *importer) measure(ps *partState, mNode *xml.Node, srcPart string) error {
	m := &score.Measure{
		ID: imp.ctx.NextID("measure"),
		N:  atoiOr(mNode.Attr("number"), len(ps.part.Measures)+1),
	}
	imp.ctx.MapID(srcPart+"/"+mNode.Attr("number"), m.ID)
	ps.part.Measures = append(ps.part.Measures, m)

	// staves and layers are materialized on demand as events name them.
	layerOf := func(staffN, voiceN int) *score.Layer {
		var staff *score.Staff
		for _, s := range m.Staves {
			if s.N == staffN {
				staff = s
				break
			}
		}
		if staff == nil {
			staff = &score.Staff{ID: imp.ctx.NextID("staff"), N: staffN}
			m.Staves = append(m.Staves, staff)
		}
		for _, l := range staff.Layers {
			if l.N == voiceN {
				return l
			}
		}
		layer := &score.Layer{ID: imp.ctx.NextID("layer"), N: voiceN}
		staff.Layers = append(staff.Layers, layer)
		return layer
	}

	var lastNote *score.Note // chord accumulation target
	var lastChord *score.Chord
	var lastLayer *score.Layer

	for _, child := range mNode.Children() {
		switch child.Name() {
		case "attributes":
			imp.attributes(ps, m, child)

		case "harmony":
			h := imp.harmony(child)
			if h != nil {
				layer := layerOf(1, 1)
				layer.Events = append(layer.Events, h)
				ps.eventMeasure[h.ID] = m
			}

		case "note":
			if err := imp.note(ps, m, child, layerOf, &lastNote, &lastChord, &lastLayer, srcPart); err != nil {
				return err
			}

		case "backup", "forward":
			// voice pointer movement; events carry explicit voice numbers
			lastNote, lastChord, lastLayer = nil, nil, nil

		case "barline", "direction", "print", "sound":
			// no document-model representation
		}
	}
	return nil
}

func (imp *importer) attributes(ps *partState, m *score.Measure, attr *xml.Node) {
	if n, _ := attr.XPathFirst("divisions"); n != nil {
		if v := atoiOr(n.Text(), 0); v > 0 {
			ps.divisions = v
		}
	}
	if n, _ := attr.XPathFirst("key/fifths"); n != nil {
		key := &score.Key{Fifths: atoiOr(n.Text(), 0)}
		if mode, _ := attr.XPathFirst("key/mode"); mode != nil {
			key.Mode = strings.TrimSpace(mode.Text())
		}
		m.Key = key
	}
	if n, _ := attr.XPathFirst("time"); n != nil {
		beats, _ := n.XPathFirst("beats")
		beatType, _ := n.XPathFirst("beat-type")
		if beats != nil && beatType != nil {
			m.Time = &score.TimeSig{
				Beats:    atoiOr(beats.Text(), 4),
				BeatType: atoiOr(beatType.Text(), 4),
			}
		}
	}
	if n, _ := attr.XPathFirst("clef"); n != nil {
		clef := &score.Clef{}
		if sign, _ := n.XPathFirst("sign"); sign != nil {
			clef.Sign = strings.TrimSpace(sign.Text())
		}
		if line, _ := n.XPathFirst("line"); line != nil {
			clef.Line = atoiOr(line.Text(), 0)
		}
		if clef.Sign != "" {
			m.Clef = clef
		}
	}
}

func (imp *importer) harmony(node *xml.Node) *score.Harmony {
	rootStep, _ := node.XPathFirst("root/root-step")
	if rootStep == nil {
		return nil
	}
	h := &score.Harmony{ID: imp.ctx.NextID("harm")}
	h.Root.Step = strings.TrimSpace(rootStep.Text())
	if alter, _ := node.XPathFirst("root/root-alter"); alter != nil {
		h.Root.Alter = atoiOr(alter.Text(), 0)
	}
	if kind, _ := node.XPathFirst("kind"); kind != nil {
		if text := kind.Attr("text"); text != "" {
			h.Quality = text
		} else {
			h.Quality = strings.TrimSpace(kind.Text())
		}
	}
	if bassStep, _ := node.XPathFirst("bass/bass-step"); bassStep != nil {
		bass := &score.Pitch{Step: strings.TrimSpace(bassStep.Text())}
		if alter, _ := node.XPathFirst("bass/bass-alter"); alter != nil {
			bass.Alter = atoiOr(alter.Text(), 0)
		}
		h.Bass = bass
	}
	return h
}

func (imp *importer) note(ps *partState, m *score.Measure, node *xml.Node,
	layerOf func(int, int) *score.Layer,
	lastNote **score.Note, lastChord **score.Chord, lastLayer **score.Layer,
	srcPart string) error {

	staffN := 1
	if n, _ := node.XPathFirst("staff"); n != nil {
		staffN = atoiOr(n.Text(), 1)
	}
	voiceN := 1
	if n, _ := node.XPathFirst("voice"); n != nil {
		voiceN = atoiOr(n.Text(), 1)
	}
	layer := layerOf(staffN, voiceN)

	dur := imp.noteDuration(ps, node)

	// Rests. An unprinted rest is an invisible spacer and keeps its own
	// element kind.
	if rest, _ := node.XPathFirst("rest"); rest != nil {
		var ev score.Event
		switch {
		case node.Attr("print-object") == "no":
			ev = &score.Space{ID: imp.ctx.NextID("space"), Dur: dur}
		case rest.Attr("measure") == "yes":
			ev = &score.MultiRest{ID: imp.ctx.NextID("mrest"), Dur: dur, Count: 1}
		default:
			ev = &score.Rest{ID: imp.ctx.NextID("rest"), Dur: dur}
		}
		layer.Events = append(layer.Events, ev)
		ps.eventMeasure[ev.ElementID()] = m
		*lastNote, *lastChord, *lastLayer = nil, nil, nil
		return nil
	}

	pitch, ok := imp.notePitch(node)
	if !ok {
		imp.warn(errors.NewUnresolved("note", imp.ctx.NextID("skip"), "note without pitch or rest"))
		return nil
	}

	note := &score.Note{ID: imp.ctx.NextID("note"), Pitch: pitch, Dur: dur}
	imp.ctx.MapID(node.Attr("id"), note.ID)

	isChord, _ := node.XPathFirst("chord")
	if isChord != nil && *lastNote != nil && *lastLayer == layer {
		// fold into (or start) a chord with the previous note
		if *lastChord == nil {
			chord := &score.Chord{ID: imp.ctx.NextID("chord"), Dur: (*lastNote).Dur}
			chord.Notes = append(chord.Notes, *lastNote)
			replaceLast(layer, *lastNote, chord)
			ps.eventMeasure[chord.ID] = m
			*lastChord = chord
		}
		(*lastChord).Notes = append((*lastChord).Notes, note)
	} else {
		layer.Events = append(layer.Events, note)
		ps.eventMeasure[note.ID] = m
		*lastChord = nil
	}
	*lastNote = note
	*lastLayer = layer

	imp.noteSpans(ps, node, note, staffN, voiceN, srcPart, layer)
	return nil
}

// replaceLast swaps the trailing event of a layer for its replacement.
func replaceLast(layer *score.Layer, old, repl score.Event) {
	for i := len(layer.Events) - 1; i >= 0; i-- {
		if layer.Events[i] == old {
			layer.Events[i] = repl
			return
		}
	}
}

func (imp *importer) notePitch(node *xml.Node) (score.Pitch, bool) {
	p, _ := node.XPathFirst("pitch")
	if p == nil {
		return score.Pitch{}, false
	}
	step, _ := p.XPathFirst("step")
	octave, _ := p.XPathFirst("octave")
	if step == nil || octave == nil {
		return score.Pitch{}, false
	}
	pitch := score.Pitch{
		Step:   strings.ToUpper(strings.TrimSpace(step.Text())),
		Octave: atoiOr(octave.Text(), 4),
	}
	if alter, _ := p.XPathFirst("alter"); alter != nil {
		pitch.Alter = atoiOr(alter.Text(), 0)
	}
	return pitch, true
}

// noteDuration derives the written duration: the type element when
// present, otherwise reconstructed from the divisions count.
func (imp *importer) noteDuration(ps *partState, node *xml.Node) duration.Duration {
	var dur duration.Duration
	if t, _ := node.XPathFirst("type"); t != nil {
		if base, ok := typeBases[strings.TrimSpace(t.Text())]; ok {
			dur.Base = base
		}
	}
	if dur.Base == 0 {
		dur = durationFromDivisions(ps.divisions, node)
	}
	dots, _ := node.XPath("dot")
	dur.Dots = len(dots)

	if tm, _ := node.XPathFirst("time-modification"); tm != nil {
		actual, _ := tm.XPathFirst("actual-notes")
		normal, _ := tm.XPathFirst("normal-notes")
		if actual != nil && normal != nil {
			a := atoiOr(actual.Text(), 0)
			n := atoiOr(normal.Text(), 0)
			if a > 0 && n > 0 {
				dur = dur.WithMultiplier(n, a)
			}
		}
	}
	return dur
}

// durationFromDivisions maps a divisions count to the nearest plain
// power-of-two base. Used only when the type element is absent.
func durationFromDivisions(divisions int, node *xml.Node) duration.Duration {
	d, _ := node.XPathFirst("duration")
	if d == nil || divisions <= 0 {
		return duration.Duration{Base: 4}
	}
	ticks := atoiOr(d.Text(), divisions)
	quarters := float64(ticks) / float64(divisions)
	base := 4
	switch {
	case quarters >= 4:
		base = 1
	case quarters >= 2:
		base = 2
	case quarters >= 1:
		base = 4
	case quarters >= 0.5:
		base = 8
	case quarters >= 0.25:
		base = 16
	case quarters >= 0.125:
		base = 32
	default:
		base = 64
	}
	return duration.Duration{Base: base}
}

// noteSpans processes the cross-reference markers of one note: ties,
// slurs, tuplets, glissandos and slides, tremolos, and beams.
func (imp *importer) noteSpans(ps *partState, node *xml.Node, note *score.Note,
	staffN, voiceN int, srcPart string, layer *score.Layer) {

	ties, _ := node.XPath("notations/tied")
	for _, tied := range ties {
		switch tied.Attr("type") {
		case "start":
			imp.ctx.StartTie(convctx.PendingTie{
				OriginID: note.ID,
				Part:     srcPart,
				Staff:    staffN,
				Voice:    voiceN,
				Step:     note.Pitch.Step,
				Octave:   note.Pitch.Octave,
				Alter:    note.Pitch.Alter,
			})
		case "stop":
			if !imp.ctx.EndTie(note.ID, srcPart, staffN, voiceN, note.Pitch.Step, note.Pitch.Octave, note.Pitch.Alter) {
				imp.warn(errors.NewUnresolved("tie", note.ID, "stop without matching start"))
			}
		}
	}

	slurs, _ := node.XPath("notations/slur")
	for _, slur := range slurs {
		number := atoiOr(slur.Attr("number"), 1)
		switch slur.Attr("type") {
		case "start":
			imp.ctx.StartSlur(convctx.PendingSlur{OriginID: note.ID, Part: srcPart, Number: number})
		case "stop":
			if !imp.ctx.EndSlur(note.ID, srcPart, number) {
				imp.warn(errors.NewUnresolved("slur", note.ID, "stop without matching start"))
			}
		}
	}

	tuplets, _ := node.XPath("notations/tuplet")
	for _, tup := range tuplets {
		number := atoiOr(tup.Attr("number"), 1)
		switch tup.Attr("type") {
		case "start":
			num, numbase := 3, 2
			if tm, _ := node.XPathFirst("time-modification"); tm != nil {
				if a, _ := tm.XPathFirst("actual-notes"); a != nil {
					num = atoiOr(a.Text(), 3)
				}
				if n, _ := tm.XPathFirst("normal-notes"); n != nil {
					numbase = atoiOr(n.Text(), 2)
				}
			}
			imp.ctx.StartTuplet(convctx.PendingTuplet{
				OriginID:   note.ID,
				Part:       srcPart,
				Staff:      staffN,
				Number:     number,
				StaffN:     staffN,
				Num:        num,
				Numbase:    numbase,
				Bracket:    tup.Attr("bracket") != "no",
				NumVisible: tup.Attr("show-number") != "none",
				Place:      tup.Attr("placement"),
			})
		case "stop":
			if !imp.ctx.EndTuplet(note.ID, srcPart, number) {
				imp.warn(errors.NewUnresolved("tuplet", note.ID, "stop without matching start"))
			}
		}
	}

	for _, name := range []string{"glissando", "slide"} {
		glisses, _ := node.XPath("notations/" + name)
		for _, gl := range glisses {
			number := atoiOr(gl.Attr("number"), 1)
			switch gl.Attr("type") {
			case "start":
				imp.ctx.StartGliss(convctx.PendingGliss{
					OriginID:  note.ID,
					Part:      srcPart,
					Number:    number,
					StaffN:    staffN,
					LineStyle: gl.Attr("line-type"),
					Label:     name,
				})
			case "stop":
				if !imp.ctx.EndGliss(note.ID, srcPart, number) {
					imp.warn(errors.NewUnresolved("glissando", note.ID, "stop without matching start"))
				}
			}
		}
	}

	if trem, _ := node.XPathFirst("notations/ornaments/tremolo"); trem != nil {
		slashes := atoiOr(trem.Text(), 1)
		switch trem.Attr("type") {
		case "", "single":
			wrapInBTrem(layer, note, imp.ctx.NextID("btrem"), slashes)
		case "start":
			imp.tremoloStarts[srcPart] = tremoloStart{originID: note.ID, slashes: slashes}
		case "stop":
			start, ok := imp.tremoloStarts[srcPart]
			if !ok {
				imp.warn(errors.NewUnresolved("tremolo", note.ID, "stop without matching start"))
				break
			}
			delete(imp.tremoloStarts, srcPart)
			anchor := ps.eventMeasure[start.originID]
			if anchor == nil {
				anchor = ps.part.Measures[len(ps.part.Measures)-1]
			}
			anchor.AddControlEvent(&score.TremoloSpan{
				ID:      imp.ctx.NextID("tremspan"),
				StartID: start.originID,
				EndID:   note.ID,
				Slashes: start.slashes,
			})
		}
	}

	imp.beams(ps, node, note, staffN, voiceN, layer)

	if lyric, _ := node.XPathFirst("lyric"); lyric != nil {
		imp.lyric(ps, lyric, note, layer)
	}
}

// beams tracks begin/end markers of beam number 1 and splices the run
// into a beam container when it closes.
func (imp *importer) beams(ps *partState, node *xml.Node, note *score.Note,
	staffN, voiceN int, layer *score.Layer) {

	beams, _ := node.XPath("beam")
	key := fmt.Sprintf("%d/%d", staffN, voiceN)
	for _, b := range beams {
		if atoiOr(b.Attr("number"), 1) != 1 {
			continue
		}
		switch strings.TrimSpace(b.Text()) {
		case "begin":
			ps.beamStarts[key] = indexOf(layer, note)
		case "end":
			start, ok := ps.beamStarts[key]
			if !ok {
				continue
			}
			delete(ps.beamStarts, key)
			end := indexOf(layer, note)
			if start < 0 || end < start {
				continue
			}
			if _, err := layer.GroupBeam(imp.ctx.NextID("beam"), start, end); err != nil {
				imp.warn(errors.NewUnresolved("beam", note.ID, err.Error()))
			}
		}
	}
}

func (imp *importer) lyric(ps *partState, lyric *xml.Node, note *score.Note, layer *score.Layer) {
	text, _ := lyric.XPathFirst("text")
	if text == nil {
		return
	}
	syl := &score.Syllable{
		ID:   imp.ctx.NextID("syl"),
		Text: strings.TrimSpace(text.Text()),
		Dur:  note.Dur,
	}
	if s, _ := lyric.XPathFirst("syllabic"); s != nil {
		v := strings.TrimSpace(s.Text())
		syl.Hyphen = v == "begin" || v == "middle"
	}
	if e, _ := lyric.XPathFirst("extend"); e != nil {
		syl.Extender = true
	}
	layer.Events = append(layer.Events, syl)
}

// wrapInBTrem replaces a note in its layer with a tremolo container.
func wrapInBTrem(layer *score.Layer, note *score.Note, id string, slashes int) {
	for i, ev := range layer.Events {
		if ev == score.Event(note) {
			layer.Events[i] = &score.BTrem{ID: id, Slashes: slashes, Child: note}
			return
		}
	}
}

// indexOf finds a note's position in a layer, looking through chord
// membership.
func indexOf(layer *score.Layer, note *score.Note) int {
	for i, ev := range layer.Events {
		switch e := ev.(type) {
		case *score.Note:
			if e == note {
				return i
			}
		case *score.Chord:
			for _, n := range e.Notes {
				if n == note {
					return i
				}
			}
		}
	}
	return -1
}

// attachSpans drains the completed spans into control events anchored in
// their starting measures.
func (imp *importer) attachSpans(ps *partState) {
	anchor := func(originID string) *score.Measure {
		if m, ok := ps.eventMeasure[originID]; ok {
			return m
		}
		return ps.part.Measures[len(ps.part.Measures)-1]
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

// atoiOr parses an integer leniently, returning def on any failure.
func atoiOr(s string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return v
}
