package musicxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"

	"github.com/cadenza-tools/cadenza/core/duration"
	"github.com/cadenza-tools/cadenza/core/errors"
	"github.com/cadenza-tools/cadenza/core/score"
	"github.com/cadenza-tools/cadenza/internal/convctx"
	"github.com/cadenza-tools/cadenza/internal/logging"
)

// exportDivisions is the fixed divisions-per-quarter used on output.
const exportDivisions = 480

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
	`<!DOCTYPE score-partwise PUBLIC "-//Recordare//DTD MusicXML 4.0 Partwise//EN" "http://www.musicxml.org/dtds/partwise.dtd">` + "\n"

// Serialization structs. Field order follows the partwise DTD so the
// emitted children come out in schema order.

type xScore struct {
	XMLName        xml.Name         `xml:"score-partwise"`
	Version        string           `xml:"version,attr"`
	Work           *xWork           `xml:"work,omitempty"`
	Identification *xIdentification `xml:"identification,omitempty"`
	PartList       xPartList        `xml:"part-list"`
	Parts          []xPart          `xml:"part"`
}

type xWork struct {
	Title string `xml:"work-title,omitempty"`
}

type xIdentification struct {
	Creators []xCreator `xml:"creator"`
}

type xCreator struct {
	Type string `xml:"type,attr"`
	Name string `xml:",chardata"`
}

type xPartList struct {
	ScoreParts []xScorePart `xml:"score-part"`
}

type xScorePart struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"part-name"`
}

type xPart struct {
	ID       string     `xml:"id,attr"`
	Measures []xMeasure `xml:"measure"`
}

type xMeasure struct {
	Number     int          `xml:"number,attr"`
	Attributes *xAttributes `xml:"attributes,omitempty"`
	Harmonies  []xHarmony   `xml:"harmony,omitempty"`
	Notes      []xNote      `xml:"note"`
}

type xAttributes struct {
	Divisions int    `xml:"divisions,omitempty"`
	Key       *xKey  `xml:"key,omitempty"`
	Time      *xTime `xml:"time,omitempty"`
	Clef      *xClef `xml:"clef,omitempty"`
}

type xKey struct {
	Fifths int    `xml:"fifths"`
	Mode   string `xml:"mode,omitempty"`
}

type xTime struct {
	Beats    int `xml:"beats"`
	BeatType int `xml:"beat-type"`
}

type xClef struct {
	Sign string `xml:"sign"`
	Line int    `xml:"line,omitempty"`
}

type xHarmony struct {
	Root xRoot  `xml:"root"`
	Kind xKind  `xml:"kind"`
	Bass *xBass `xml:"bass,omitempty"`
}

type xRoot struct {
	Step  string `xml:"root-step"`
	Alter int    `xml:"root-alter,omitempty"`
}

type xKind struct {
	Text  string `xml:"text,attr,omitempty"`
	Value string `xml:",chardata"`
}

type xBass struct {
	Step  string `xml:"bass-step"`
	Alter int    `xml:"bass-alter,omitempty"`
}

type xNote struct {
	PrintObject string     `xml:"print-object,attr,omitempty"`
	Chord       *xEmpty    `xml:"chord,omitempty"`
	Pitch       *xPitch    `xml:"pitch,omitempty"`
	Rest        *xRest     `xml:"rest,omitempty"`
	Duration    int        `xml:"duration"`
	Voice       int        `xml:"voice,omitempty"`
	Type        string     `xml:"type,omitempty"`
	Dots        []xEmpty   `xml:"dot"`
	TimeMod     *xTimeMod  `xml:"time-modification,omitempty"`
	Staff       int        `xml:"staff,omitempty"`
	Beams       []xBeam    `xml:"beam"`
	Notations   *xNotation `xml:"notations,omitempty"`
	Lyric       *xLyric    `xml:"lyric,omitempty"`
}

type xEmpty struct{}

type xPitch struct {
	Step   string `xml:"step"`
	Alter  int    `xml:"alter,omitempty"`
	Octave int    `xml:"octave"`
}

type xRest struct {
	Measure string `xml:"measure,attr,omitempty"`
}

type xTimeMod struct {
	ActualNotes int `xml:"actual-notes"`
	NormalNotes int `xml:"normal-notes"`
}

type xBeam struct {
	Number int    `xml:"number,attr"`
	Value  string `xml:",chardata"`
}

type xNotation struct {
	Tied       []xSpanMark  `xml:"tied,omitempty"`
	Slurs      []xSpanMark  `xml:"slur,omitempty"`
	Tuplets    []xTuplet    `xml:"tuplet,omitempty"`
	Glissandos []xGlissMark `xml:"glissando,omitempty"`
	Slides     []xGlissMark `xml:"slide,omitempty"`
	Ornaments  *xOrnaments  `xml:"ornaments,omitempty"`
}

type xSpanMark struct {
	Type   string `xml:"type,attr"`
	Number int    `xml:"number,attr,omitempty"`
}

type xTuplet struct {
	Type    string `xml:"type,attr"`
	Number  int    `xml:"number,attr,omitempty"`
	Bracket string `xml:"bracket,attr,omitempty"`
}

type xGlissMark struct {
	Type     string `xml:"type,attr"`
	Number   int    `xml:"number,attr,omitempty"`
	LineType string `xml:"line-type,attr,omitempty"`
}

type xOrnaments struct {
	Tremolo *xTremolo `xml:"tremolo,omitempty"`
}

type xTremolo struct {
	Type  string `xml:"type,attr,omitempty"`
	Value int    `xml:",chardata"`
}

type xLyric struct {
	Syllabic string  `xml:"syllabic,omitempty"`
	Text     string  `xml:"text"`
	Extend   *xEmpty `xml:"extend,omitempty"`
}

// exporter renders the document model as partwise XML.
type exporter struct {
	ctx *convctx.Context

	// per-part marker tables keyed by endpoint event ID.
	tieStart   map[string]bool
	tieStop    map[string]bool
	slurStart  map[string]int
	slurStop   map[string]int
	tupStart   map[string]*score.TupletSpan
	tupStop    map[string]*score.TupletSpan
	glissStart map[string]*score.Gliss
	glissStop  map[string]*score.Gliss
	tremStart  map[string]*score.TremoloSpan
	tremStop   map[string]*score.TremoloSpan

	warnings []string
}

// ExportScore renders a document-model score as partwise XML bytes.
func ExportScore(sc *score.Score) ([]byte, []string, error) {
	exp := &exporter{ctx: convctx.New()}
	log := logging.GetLogger().With("run_id", exp.ctx.RunID, "format", FormatID)
	log.Debug("export started", "parts", len(sc.Parts))

	out := &xScore{Version: "4.0"}
	if sc.Title != "" {
		out.Work = &xWork{Title: sc.Title}
	}
	if sc.Composer != "" {
		out.Identification = &xIdentification{
			Creators: []xCreator{{Type: "composer", Name: sc.Composer}},
		}
	}

	for i, part := range sc.Parts {
		id := fmt.Sprintf("P%d", i+1)
		exp.ctx.MapID(part.ID, id)
		name := part.Label
		if name == "" {
			name = id
		}
		out.PartList.ScoreParts = append(out.PartList.ScoreParts, xScorePart{ID: id, Name: name})

		xp, err := exp.part(part, id)
		if err != nil {
			return nil, nil, err
		}
		out.Parts = append(out.Parts, xp)
	}

	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, nil, errors.Wrap(err, "encoding musicxml")
	}
	buf.WriteString("\n")

	log.Debug("export finished", "warnings", len(exp.warnings))
	return buf.Bytes(), exp.warnings, nil
}

func (exp *exporter) warn(msg string) {
	exp.warnings = append(exp.warnings, msg)
	logging.GetLogger().Warn("export warning", "run_id", exp.ctx.RunID, "detail", msg)
}

func (exp *exporter) part(part *score.Part, id string) (xPart, error) {
	exp.index(part)
	xp := xPart{ID: id}

	for i, measure := range part.Measures {
		xm := xMeasure{Number: measure.N}
		if xm.Number == 0 {
			xm.Number = i + 1
		}

		attrs := &xAttributes{}
		if i == 0 {
			attrs.Divisions = exportDivisions
		}
		if measure.Key != nil {
			attrs.Key = &xKey{Fifths: measure.Key.Fifths, Mode: measure.Key.Mode}
		}
		if measure.Time != nil {
			attrs.Time = &xTime{Beats: measure.Time.Beats, BeatType: measure.Time.BeatType}
		}
		if measure.Clef != nil {
			attrs.Clef = &xClef{Sign: measure.Clef.Sign, Line: measure.Clef.Line}
		}
		if attrs.Divisions != 0 || attrs.Key != nil || attrs.Time != nil || attrs.Clef != nil {
			xm.Attributes = attrs
		}

		for _, staff := range measure.Staves {
			for _, layer := range staff.Layers {
				if err := exp.layer(&xm, layer, staff.N, layer.N); err != nil {
					return xPart{}, err
				}
			}
		}
		xp.Measures = append(xp.Measures, xm)
	}
	return xp, nil
}

func (exp *exporter) index(part *score.Part) {
	exp.tieStart = map[string]bool{}
	exp.tieStop = map[string]bool{}
	exp.slurStart = map[string]int{}
	exp.slurStop = map[string]int{}
	exp.tupStart = map[string]*score.TupletSpan{}
	exp.tupStop = map[string]*score.TupletSpan{}
	exp.glissStart = map[string]*score.Gliss{}
	exp.glissStop = map[string]*score.Gliss{}
	exp.tremStart = map[string]*score.TremoloSpan{}
	exp.tremStop = map[string]*score.TremoloSpan{}

	for _, measure := range part.Measures {
		for _, el := range measure.ControlEvents {
			switch ce := el.(type) {
			case *score.Tie:
				exp.tieStart[ce.StartID] = true
				exp.tieStop[ce.EndID] = true
			case *score.Slur:
				n := ce.Number
				if n == 0 {
					n = 1
				}
				exp.slurStart[ce.StartID] = n
				exp.slurStop[ce.EndID] = n
			case *score.TupletSpan:
				exp.tupStart[ce.StartID] = ce
				exp.tupStop[ce.EndID] = ce
			case *score.Gliss:
				exp.glissStart[ce.StartID] = ce
				exp.glissStop[ce.EndID] = ce
			case *score.TremoloSpan:
				exp.tremStart[ce.StartID] = ce
				exp.tremStop[ce.EndID] = ce
			}
		}
	}
}

// layer renders one layer's events into the measure.
func (exp *exporter) layer(xm *xMeasure, layer *score.Layer, staffN, voiceN int) error {
	for _, ev := range layer.Events {
		if err := exp.event(xm, ev, staffN, voiceN, "", 0); err != nil {
			return err
		}
	}
	return nil
}

// event renders one event. beamValue is the beam marker inherited from
// an enclosing beam container; tremoloSlashes from a tremolo container.
func (exp *exporter) event(xm *xMeasure, ev score.Event, staffN, voiceN int, beamValue string, tremoloSlashes int) error {
	switch e := ev.(type) {
	case *score.Note:
		note := exp.note(e, staffN, voiceN, beamValue, tremoloSlashes)
		xm.Notes = append(xm.Notes, note)
		return nil

	case *score.Chord:
		for i, n := range e.Notes {
			note := exp.note(n, staffN, voiceN, beamValue, tremoloSlashes)
			if i > 0 {
				note.Chord = &xEmpty{}
				note.Beams = nil
			}
			// spans indexed on the chord itself attach to its first note
			if i == 0 {
				exp.mergeChordSpans(&note, e.ID)
			}
			xm.Notes = append(xm.Notes, note)
		}
		return nil

	case *score.Rest:
		xm.Notes = append(xm.Notes, xNote{
			Rest:     &xRest{},
			Duration: ticks(e.Dur),
			Voice:    voiceN,
			Type:     typeName(e.Dur.Base),
			Dots:     dots(e.Dur.Dots),
			Staff:    staffN,
		})
		return nil

	case *score.Space:
		// Invisible spacers survive as unprinted rests.
		xm.Notes = append(xm.Notes, xNote{
			PrintObject: "no",
			Rest:        &xRest{},
			Duration:    ticks(e.Dur),
			Voice:       voiceN,
			Type:        typeName(e.Dur.Base),
			Dots:        dots(e.Dur.Dots),
			Staff:       staffN,
		})
		return nil

	case *score.MultiRest:
		for i := 0; i < maxInt(e.Count, 1); i++ {
			xm.Notes = append(xm.Notes, xNote{
				Rest:     &xRest{Measure: "yes"},
				Duration: ticks(e.Dur),
				Voice:    voiceN,
				Staff:    staffN,
			})
		}
		return nil

	case *score.Beam:
		for i, child := range e.Events {
			value := "continue"
			if i == 0 {
				value = "begin"
			} else if i == len(e.Events)-1 {
				value = "end"
			}
			if err := exp.event(xm, child, staffN, voiceN, value, 0); err != nil {
				return err
			}
		}
		return nil

	case *score.BTrem:
		return exp.event(xm, e.Child, staffN, voiceN, beamValue, maxInt(e.Slashes, 1))

	case *score.Harmony:
		xm.Harmonies = append(xm.Harmonies, exp.harmony(e))
		return nil

	case *score.Syllable:
		// Lyrics attach to the preceding note of the same measure.
		for i := len(xm.Notes) - 1; i >= 0; i-- {
			if xm.Notes[i].Pitch != nil && xm.Notes[i].Lyric == nil {
				xm.Notes[i].Lyric = lyric(e)
				return nil
			}
		}
		exp.warn(fmt.Sprintf("syllable %s has no note to attach to", e.ID))
		return nil

	default:
		return errors.NewNotImplemented(fmt.Sprintf("event %T", ev))
	}
}

// mergeChordSpans moves span markers recorded against a chord ID onto
// its rendered first note.
func (exp *exporter) mergeChordSpans(note *xNote, chordID string) {
	extra := exp.notations(chordID, 0)
	if extra == nil {
		return
	}
	if note.Notations == nil {
		note.Notations = extra
		return
	}
	note.Notations.Tied = append(note.Notations.Tied, extra.Tied...)
	note.Notations.Slurs = append(note.Notations.Slurs, extra.Slurs...)
	note.Notations.Tuplets = append(note.Notations.Tuplets, extra.Tuplets...)
	note.Notations.Glissandos = append(note.Notations.Glissandos, extra.Glissandos...)
	note.Notations.Slides = append(note.Notations.Slides, extra.Slides...)
}

func (exp *exporter) note(n *score.Note, staffN, voiceN int, beamValue string, tremoloSlashes int) xNote {
	note := xNote{
		Pitch: &xPitch{
			Step:   n.Pitch.Step,
			Alter:  n.Pitch.Alter,
			Octave: n.Pitch.Octave,
		},
		Duration: ticks(n.Dur),
		Voice:    voiceN,
		Type:     typeName(n.Dur.Base),
		Dots:     dots(n.Dur.Dots),
		TimeMod:  timeMod(n.Dur),
		Staff:    staffN,
	}
	if beamValue != "" && n.Dur.Base >= 8 {
		note.Beams = []xBeam{{Number: 1, Value: beamValue}}
	}
	note.Notations = exp.notations(n.ID, tremoloSlashes)
	return note
}

// notations builds the notations block for an event ID from the marker
// tables; nil when the event carries no markers.
func (exp *exporter) notations(id string, tremoloSlashes int) *xNotation {
	nt := &xNotation{}
	used := false

	if exp.tieStop[id] {
		nt.Tied = append(nt.Tied, xSpanMark{Type: "stop"})
		used = true
	}
	if exp.tieStart[id] {
		nt.Tied = append(nt.Tied, xSpanMark{Type: "start"})
		used = true
	}
	if n, ok := exp.slurStop[id]; ok {
		nt.Slurs = append(nt.Slurs, xSpanMark{Type: "stop", Number: n})
		used = true
	}
	if n, ok := exp.slurStart[id]; ok {
		nt.Slurs = append(nt.Slurs, xSpanMark{Type: "start", Number: n})
		used = true
	}
	if span, ok := exp.tupStop[id]; ok {
		nt.Tuplets = append(nt.Tuplets, xTuplet{Type: "stop", Number: 1, Bracket: bracketAttr(span)})
		used = true
	}
	if span, ok := exp.tupStart[id]; ok {
		nt.Tuplets = append(nt.Tuplets, xTuplet{Type: "start", Number: 1, Bracket: bracketAttr(span)})
		used = true
	}
	if g, ok := exp.glissStop[id]; ok {
		mark := xGlissMark{Type: "stop", Number: 1, LineType: g.LineStyle}
		if g.Label == "slide" {
			nt.Slides = append(nt.Slides, mark)
		} else {
			nt.Glissandos = append(nt.Glissandos, mark)
		}
		used = true
	}
	if g, ok := exp.glissStart[id]; ok {
		mark := xGlissMark{Type: "start", Number: 1, LineType: g.LineStyle}
		if g.Label == "slide" {
			nt.Slides = append(nt.Slides, mark)
		} else {
			nt.Glissandos = append(nt.Glissandos, mark)
		}
		used = true
	}
	if trem, ok := exp.tremStop[id]; ok {
		nt.Ornaments = &xOrnaments{Tremolo: &xTremolo{Type: "stop", Value: trem.Slashes}}
		used = true
	}
	if trem, ok := exp.tremStart[id]; ok {
		nt.Ornaments = &xOrnaments{Tremolo: &xTremolo{Type: "start", Value: trem.Slashes}}
		used = true
	}
	if tremoloSlashes > 0 {
		nt.Ornaments = &xOrnaments{Tremolo: &xTremolo{Type: "single", Value: tremoloSlashes}}
		used = true
	}

	if !used {
		return nil
	}
	return nt
}

func (exp *exporter) harmony(h *score.Harmony) xHarmony {
	out := xHarmony{
		Root: xRoot{Step: h.Root.Step, Alter: h.Root.Alter},
	}
	info, err := score.ParseQuality(h.Quality)
	if err != nil {
		exp.warn(fmt.Sprintf("harmony %s: %v", h.ID, err))
		out.Kind = xKind{Text: h.Quality, Value: "other"}
	} else {
		out.Kind = xKind{Text: h.Quality, Value: info.Kind()}
	}
	if h.Bass != nil {
		out.Bass = &xBass{Step: h.Bass.Step, Alter: h.Bass.Alter}
	}
	return out
}

func lyric(s *score.Syllable) *xLyric {
	l := &xLyric{Text: s.Text, Syllabic: "single"}
	if s.Hyphen {
		l.Syllabic = "begin"
	}
	if s.Extender {
		l.Extend = &xEmpty{}
	}
	return l
}

// ticks converts a duration to divisions-per-quarter counts.
func ticks(d duration.Duration) int {
	return int(math.Round(d.Beats() * exportDivisions))
}

// typeName maps a base back to the note type vocabulary.
func typeName(base int) string {
	for name, b := range typeBases {
		if b == base {
			return name
		}
	}
	return ""
}

func dots(n int) []xEmpty {
	if n <= 0 {
		return nil
	}
	return make([]xEmpty, n)
}

// timeMod renders the first ratio multiplier as a time modification.
func timeMod(d duration.Duration) *xTimeMod {
	for _, m := range d.Multipliers {
		if m.Den != 1 {
			return &xTimeMod{ActualNotes: m.Den, NormalNotes: m.Num}
		}
	}
	return nil
}

func bracketAttr(span *score.TupletSpan) string {
	if span.Bracket {
		return "yes"
	}
	return "no"
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
