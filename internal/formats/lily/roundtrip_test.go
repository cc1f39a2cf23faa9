package lily

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadenza-tools/cadenza/core/score"
)

// firstLayer returns the events of the first layer of a measure.
func firstLayer(t *testing.T, m *score.Measure) []score.Event {
	t.Helper()
	require.NotEmpty(t, m.Staves)
	require.NotEmpty(t, m.Staves[0].Layers)
	return m.Staves[0].Layers[0].Events
}

func TestImportBasicPart(t *testing.T) {
	sc, warnings, err := ImportScore(`\header { title = "Etude" composer = "Czerny" }
{ \clef "treble" \key g \major \time 3/4 g'4 a' b' | c''2. }`)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, "Etude", sc.Title)
	assert.Equal(t, "Czerny", sc.Composer)
	assert.Equal(t, FormatID, sc.SourceFormat)
	assert.NotEmpty(t, sc.ID)
	assert.NotEmpty(t, sc.SourceHash)

	require.Len(t, sc.Parts, 1)
	part := sc.Parts[0]
	require.Len(t, part.Measures, 2)

	m1 := part.Measures[0]
	assert.Equal(t, 1, m1.N)
	require.NotNil(t, m1.Clef)
	assert.Equal(t, "G", m1.Clef.Sign)
	assert.Equal(t, 2, m1.Clef.Line)
	require.NotNil(t, m1.Key)
	assert.Equal(t, 1, m1.Key.Fifths)
	assert.Equal(t, "major", m1.Key.Mode)
	require.NotNil(t, m1.Time)
	assert.Equal(t, 3, m1.Time.Beats)
	assert.Equal(t, 4, m1.Time.BeatType)

	events := firstLayer(t, m1)
	require.Len(t, events, 3)
	first, ok := events[0].(*score.Note)
	require.True(t, ok)
	assert.Equal(t, score.Pitch{Step: "G", Octave: 4}, first.Pitch)
	assert.Equal(t, 4, first.Dur.Base)

	m2 := part.Measures[1]
	events = firstLayer(t, m2)
	require.Len(t, events, 1)
	last, ok := events[0].(*score.Note)
	require.True(t, ok)
	assert.Equal(t, score.Pitch{Step: "C", Octave: 5}, last.Pitch)
	assert.Equal(t, 2, last.Dur.Base)
	assert.Equal(t, 1, last.Dur.Dots)
}

func TestImportPitchSpelling(t *testing.T) {
	tests := []struct {
		src  string
		want score.Pitch
	}{
		{"c4", score.Pitch{Step: "C", Octave: 3}},
		{"cis'4", score.Pitch{Step: "C", Alter: 1, Octave: 4}},
		{"bes,4", score.Pitch{Step: "B", Alter: -1, Octave: 2}},
		{"es4", score.Pitch{Step: "E", Alter: -1, Octave: 3}},
		{"as4", score.Pitch{Step: "A", Alter: -1, Octave: 3}},
		{"fisis4", score.Pitch{Step: "F", Alter: 2, Octave: 3}},
		{"eses4", score.Pitch{Step: "E", Alter: -2, Octave: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			sc, _, err := ImportScore("{ " + tt.src + " }")
			require.NoError(t, err)
			events := firstLayer(t, sc.Parts[0].Measures[0])
			note, ok := events[0].(*score.Note)
			require.True(t, ok)
			assert.Equal(t, tt.want, note.Pitch)
		})
	}
}

func TestImportInvalidPitchRejected(t *testing.T) {
	_, _, err := ImportScore("{ h4 }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "note name")
}

func TestImportDurationInheritance(t *testing.T) {
	sc, _, err := ImportScore("{ c8 d e4 f }")
	require.NoError(t, err)

	events := firstLayer(t, sc.Parts[0].Measures[0])
	require.Len(t, events, 4)
	bases := make([]int, 0, 4)
	for _, ev := range events {
		bases = append(bases, ev.(*score.Note).Dur.Base)
	}
	assert.Equal(t, []int{8, 8, 4, 4}, bases)
}

func TestImportSkipStaysDistinct(t *testing.T) {
	sc, warnings, err := ImportScore("{ c4 s4 r4 }")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	events := firstLayer(t, sc.Parts[0].Measures[0])
	require.Len(t, events, 3)
	assert.IsType(t, &score.Note{}, events[0])
	assert.IsType(t, &score.Space{}, events[1])
	assert.IsType(t, &score.Rest{}, events[2])
}

func TestImportMultiMeasureRest(t *testing.T) {
	sc, _, err := ImportScore("{ R1*4 }")
	require.NoError(t, err)

	events := firstLayer(t, sc.Parts[0].Measures[0])
	require.Len(t, events, 1)
	mr, ok := events[0].(*score.MultiRest)
	require.True(t, ok)
	assert.Equal(t, 4, mr.Count)
	assert.Equal(t, 1, mr.Dur.Base)
	assert.Empty(t, mr.Dur.Multipliers)
}

func TestImportTieResolution(t *testing.T) {
	sc, warnings, err := ImportScore("{ c'2~ c'2 }")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	m := sc.Parts[0].Measures[0]
	events := firstLayer(t, m)
	require.Len(t, events, 2)

	var tie *score.Tie
	for _, ce := range m.ControlEvents {
		if v, ok := ce.(*score.Tie); ok {
			tie = v
		}
	}
	require.NotNil(t, tie, "tie control event missing")
	assert.Equal(t, events[0].ElementID(), tie.StartID)
	assert.Equal(t, events[1].ElementID(), tie.EndID)
}

func TestImportUnmatchedTieWarns(t *testing.T) {
	// A dangling tie start is a warning, never an error, and the note
	// itself survives.
	sc, warnings, err := ImportScore("{ c4~ d4 }")
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "tie")

	events := firstLayer(t, sc.Parts[0].Measures[0])
	assert.Len(t, events, 2)
	assert.Empty(t, sc.Parts[0].Measures[0].ControlEvents)
}

func TestImportSlurAcrossMeasures(t *testing.T) {
	sc, warnings, err := ImportScore("{ c'4( d' | e' f') }")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	part := sc.Parts[0]
	require.Len(t, part.Measures, 2)

	// The slur anchors in the measure where it starts.
	var slur *score.Slur
	for _, ce := range part.Measures[0].ControlEvents {
		if v, ok := ce.(*score.Slur); ok {
			slur = v
		}
	}
	require.NotNil(t, slur)
	start := firstLayer(t, part.Measures[0])[0]
	end := firstLayer(t, part.Measures[1])[1]
	assert.Equal(t, start.ElementID(), slur.StartID)
	assert.Equal(t, end.ElementID(), slur.EndID)
}

func TestImportTupletSpan(t *testing.T) {
	sc, warnings, err := ImportScore("{ \\tuplet 3/2 { c'8 d' e' } }")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	m := sc.Parts[0].Measures[0]
	events := firstLayer(t, m)
	require.Len(t, events, 3)

	var span *score.TupletSpan
	for _, ce := range m.ControlEvents {
		if v, ok := ce.(*score.TupletSpan); ok {
			span = v
		}
	}
	require.NotNil(t, span)
	assert.Equal(t, 3, span.Num)
	assert.Equal(t, 2, span.Numbase)
	assert.Equal(t, events[0].ElementID(), span.StartID)
	assert.Equal(t, events[2].ElementID(), span.EndID)
}

func TestImportGlissando(t *testing.T) {
	sc, warnings, err := ImportScore("{ c'4\\glissando d'4 }")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	m := sc.Parts[0].Measures[0]
	events := firstLayer(t, m)

	var gliss *score.Gliss
	for _, ce := range m.ControlEvents {
		if v, ok := ce.(*score.Gliss); ok {
			gliss = v
		}
	}
	require.NotNil(t, gliss)
	assert.Equal(t, events[0].ElementID(), gliss.StartID)
	assert.Equal(t, events[1].ElementID(), gliss.EndID)
}

func TestImportManualBeam(t *testing.T) {
	sc, warnings, err := ImportScore("{ c'8[ d' e' f'] g'4 }")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	events := firstLayer(t, sc.Parts[0].Measures[0])
	require.Len(t, events, 2)
	beam, ok := events[0].(*score.Beam)
	require.True(t, ok)
	assert.Len(t, beam.Events, 4)
	assert.IsType(t, &score.Note{}, events[1])
}

func TestImportBeamOnLongNoteWarns(t *testing.T) {
	sc, warnings, err := ImportScore("{ c'8[ d'4 e'8] }")
	require.NoError(t, err)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "quarter note or longer")

	// The group is still produced; the warning is advisory.
	events := firstLayer(t, sc.Parts[0].Measures[0])
	require.Len(t, events, 1)
	assert.IsType(t, &score.Beam{}, events[0])
}

func TestImportBeamLeftOpenWarns(t *testing.T) {
	_, warnings, err := ImportScore("{ c'8[ d' | e'4 }")
	require.NoError(t, err)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "beam")
}

func TestImportSingleNoteTremolo(t *testing.T) {
	sc, warnings, err := ImportScore("{ c'4:16 }")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	events := firstLayer(t, sc.Parts[0].Measures[0])
	require.Len(t, events, 1)
	btrem, ok := events[0].(*score.BTrem)
	require.True(t, ok)
	assert.Equal(t, 2, btrem.Slashes)
	assert.IsType(t, &score.Note{}, btrem.Child)
}

func TestImportChordWithTie(t *testing.T) {
	sc, warnings, err := ImportScore("{ <c' e' g'>2~ <c' e' g'>2 }")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	m := sc.Parts[0].Measures[0]
	events := firstLayer(t, m)
	require.Len(t, events, 2)
	chord, ok := events[0].(*score.Chord)
	require.True(t, ok)
	require.Len(t, chord.Notes, 3)

	// One tie per chord note, each anchored note-to-note.
	ties := 0
	for _, ce := range m.ControlEvents {
		if _, ok := ce.(*score.Tie); ok {
			ties++
		}
	}
	assert.Equal(t, 3, ties)
}

func TestImportHarmonyPart(t *testing.T) {
	sc, warnings, err := ImportScore("\\new ChordNames \\chordmode { c2:maj7 d:m c1:dim7/f }")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.Len(t, sc.Parts, 1)
	assert.Equal(t, "ChordNames", sc.Parts[0].Label)
	events := firstLayer(t, sc.Parts[0].Measures[0])
	require.Len(t, events, 3)

	h1 := events[0].(*score.Harmony)
	assert.Equal(t, "maj7", h1.Quality)
	assert.Equal(t, "C", h1.Root.Step)
	assert.Equal(t, 2, h1.Dur.Base)

	h2 := events[1].(*score.Harmony)
	assert.Equal(t, "m", h2.Quality)
	assert.Equal(t, 2, h2.Dur.Base, "chord entries inherit duration")

	h3 := events[2].(*score.Harmony)
	assert.Equal(t, "dim7", h3.Quality)
	require.NotNil(t, h3.Bass)
	assert.Equal(t, "F", h3.Bass.Step)
	assert.Equal(t, "f", h3.BassRaw)
}

func TestImportChordModeWrittenDuration(t *testing.T) {
	sc, warnings, err := ImportScore("\\chordmode { c1 d:m }")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	events := firstLayer(t, sc.Parts[0].Measures[0])
	require.Len(t, events, 2)

	h1 := events[0].(*score.Harmony)
	assert.Equal(t, "C", h1.Root.Step)
	assert.Equal(t, 1, h1.Dur.Base, "written duration on the root")

	h2 := events[1].(*score.Harmony)
	assert.Equal(t, "m", h2.Quality)
	assert.Equal(t, 1, h2.Dur.Base, "chord entries inherit duration")
}

func TestImportTieStaysWithinPart(t *testing.T) {
	// A dangling tie in one staff must not resolve against a same-pitch
	// note in another staff's part.
	sc, warnings, err := ImportScore("<< \\new Staff { c'2~ } \\new Staff { c'2 } >>")
	require.NoError(t, err)
	require.Len(t, sc.Parts, 2)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "tie")
	for _, part := range sc.Parts {
		for _, m := range part.Measures {
			assert.Empty(t, m.ControlEvents)
		}
	}
}

func TestImportLyricsPart(t *testing.T) {
	sc, warnings, err := ImportScore("\\new Lyrics \\lyricmode { A -- ve Ma -- ri -- a __ }")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	events := firstLayer(t, sc.Parts[0].Measures[0])
	require.Len(t, events, 5)
	first := events[0].(*score.Syllable)
	assert.Equal(t, "A", first.Text)
	assert.True(t, first.Hyphen)
	last := events[4].(*score.Syllable)
	assert.Equal(t, "a", last.Text)
	assert.True(t, last.Extender)
}

func TestImportIdentifierResolution(t *testing.T) {
	sc, warnings, err := ImportScore("melody = { c'4 d'4 }\n\\score { \\melody }")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, sc.Parts, 1)
	assert.Len(t, firstLayer(t, sc.Parts[0].Measures[0]), 2)
}

func TestImportUnknownIdentifierWarns(t *testing.T) {
	sc, warnings, err := ImportScore("\\score { \\ghost }")
	require.NoError(t, err)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "ghost")
	assert.Empty(t, sc.Parts)
}

func TestImportUnfoldRepeat(t *testing.T) {
	sc, _, err := ImportScore("{ \\repeat unfold 3 { c'4 } }")
	require.NoError(t, err)
	assert.Len(t, firstLayer(t, sc.Parts[0].Measures[0]), 3)
}

func TestExportHeaderAndVersion(t *testing.T) {
	sc, _, err := ImportScore(`\header { title = "Air" composer = "Bach" } { c'1 }`)
	require.NoError(t, err)

	out, warnings, err := ExportScore(sc)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.True(t, strings.HasPrefix(out, "\\version"))
	assert.Contains(t, out, `title = "Air"`)
	assert.Contains(t, out, `composer = "Bach"`)
	assert.Contains(t, out, "\\score {")
}

func TestExportHarmonyUsesChordMode(t *testing.T) {
	sc, _, err := ImportScore("\\new ChordNames \\chordmode { c2:maj7 d:m/a }")
	require.NoError(t, err)

	out, _, err := ExportScore(sc)
	require.NoError(t, err)
	assert.Contains(t, out, "\\new ChordNames")
	assert.Contains(t, out, "\\chordmode")
	assert.Contains(t, out, "c2:maj7")
	assert.Contains(t, out, "d:m/a")
}

func TestExportLyricsUseLyricMode(t *testing.T) {
	sc, _, err := ImportScore("\\new Lyrics \\lyricmode { Ky -- ri -- e }")
	require.NoError(t, err)

	out, _, err := ExportScore(sc)
	require.NoError(t, err)
	assert.Contains(t, out, "\\new Lyrics")
	assert.Contains(t, out, "\\lyricmode")
	assert.Contains(t, out, "Ky -- ri -- e")

	// Syllables never carried a written duration, so none may appear.
	assert.NotContains(t, out, "Ky0")
	_, warnings, err := ImportScore(out)
	require.NoError(t, err)
	assert.Empty(t, warnings, "exported text produced warnings:\n%s", out)
}

func TestExportTupletRebuildsContainer(t *testing.T) {
	sc, _, err := ImportScore("{ \\tuplet 3/2 { c'8 d' e' } }")
	require.NoError(t, err)

	out, warnings, err := ExportScore(sc)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Contains(t, out, "\\tuplet 3/2 { c'8 d' e' }")
}

func TestExportFirstQuarterStaysImplicit(t *testing.T) {
	sc, _, err := ImportScore("\\new ChordNames \\chordmode { c:dim7/f }")
	require.NoError(t, err)

	out, _, err := ExportScore(sc)
	require.NoError(t, err)
	assert.Contains(t, out, "c:dim7/f")
	assert.NotContains(t, out, "c4:dim7/f")
}

// Import followed by export must preserve semantics: importing the
// exported text yields the same musical content.
func TestImportExportRoundtrip(t *testing.T) {
	sources := []string{
		"{ \\clef \"bass\" \\key d \\minor \\time 4/4 d2 a | d'1 }",
		"{ c'8[ d' e' f'] g'2~ | g'1 }",
		"{ \\tuplet 3/2 { c'8 d' e' } f'4( g' a') }",
		"{ c'4 s4 r4 R1*2 }",
		"{ c'4:16 <e' g'>4:32 }",
		"\\new ChordNames \\chordmode { c1:maj7 f:dim7/aes }",
		"\\new Lyrics \\lyricmode { glo -- ri -- a __ }",
		"{ c'4\\glissando g'4 }",
	}

	for _, src := range sources {
		sc, _, err := ImportScore(src)
		require.NoError(t, err, "source: %s", src)

		out, _, err := ExportScore(sc)
		require.NoError(t, err, "source: %s", src)

		again, warnings, err := ImportScore(out)
		require.NoError(t, err, "exported text failed to import:\n%s", out)
		assert.Empty(t, warnings, "exported text produced warnings:\n%s", out)

		require.Len(t, again.Parts, len(sc.Parts), "part count changed")
		for i := range sc.Parts {
			assert.Equal(t, len(sc.Parts[i].Measures), len(again.Parts[i].Measures),
				"measure count changed in part %d:\n%s", i, out)
			for j := range sc.Parts[i].Measures {
				before := eventShapes(sc.Parts[i].Measures[j])
				after := eventShapes(again.Parts[i].Measures[j])
				assert.Equal(t, before, after, "events changed in measure %d:\n%s", j, out)
			}
		}
	}
}

// eventShapes summarizes a measure's leaves by kind and duration, an
// identity that survives regenerated element IDs.
func eventShapes(m *score.Measure) []string {
	var shapes []string
	for _, staff := range m.Staves {
		for _, layer := range staff.Layers {
			for _, ev := range layer.Leaves() {
				switch e := ev.(type) {
				case *score.Note:
					shapes = append(shapes, "note "+e.Pitch.Step+" "+e.Dur.String())
				case *score.Rest:
					shapes = append(shapes, "rest "+e.Dur.String())
				case *score.Space:
					shapes = append(shapes, "space "+e.Dur.String())
				case *score.MultiRest:
					shapes = append(shapes, "mrest "+e.Dur.String())
				case *score.Chord:
					shapes = append(shapes, "chord "+e.Dur.String())
				case *score.Harmony:
					shapes = append(shapes, "harmony "+e.Quality)
				case *score.Syllable:
					shapes = append(shapes, "syl "+e.Text)
				}
			}
		}
	}
	return shapes
}
