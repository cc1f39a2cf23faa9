package lily

import (
	"testing"

	"github.com/cadenza-tools/cadenza/core/duration"
	"github.com/cadenza-tools/cadenza/core/errors"
)

// mustParseMusic parses a fragment or fails the test.
func mustParseMusic(t *testing.T, src string) Music {
	t.Helper()
	m, err := ParseMusic(src)
	if err != nil {
		t.Fatalf("ParseMusic(%q): %v", src, err)
	}
	return m
}

func TestParseNote(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		pitch  Pitch
		dur    *duration.Duration
	}{
		{
			name:  "bare pitch inherits duration",
			src:   "c",
			pitch: Pitch{Name: "c"},
		},
		{
			name:  "pitch with duration",
			src:   "d4",
			pitch: Pitch{Name: "d"},
			dur:   &duration.Duration{Base: 4},
		},
		{
			name:  "sharp with octave marks",
			src:   "fis''2",
			pitch: Pitch{Name: "fis", Octave: 2},
			dur:   &duration.Duration{Base: 2},
		},
		{
			name:  "flat below middle octave",
			src:   "bes,8",
			pitch: Pitch{Name: "bes", Octave: -1},
			dur:   &duration.Duration{Base: 8},
		},
		{
			name:  "double dotted eighth",
			src:   "c8..",
			pitch: Pitch{Name: "c"},
			dur:   &duration.Duration{Base: 8, Dots: 2},
		},
		{
			name:  "forced accidental",
			src:   "cis!4",
			pitch: Pitch{Name: "cis", Forced: true},
			dur:   &duration.Duration{Base: 4},
		},
		{
			name:  "cautionary accidental",
			src:   "ees?",
			pitch: Pitch{Name: "ees", Cautionary: true},
		},
		{
			name:  "stacked multipliers",
			src:   "c4*2/3*3",
			pitch: Pitch{Name: "c"},
			dur: &duration.Duration{Base: 4, Multipliers: []duration.Ratio{
				{Num: 2, Den: 3}, {Num: 3, Den: 1},
			}},
		},
		{
			name:  "breve",
			src:   "c\\breve",
			pitch: Pitch{Name: "c"},
			dur:   &duration.Duration{Base: duration.BaseBreve},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			note, ok := mustParseMusic(t, tt.src).(*Note)
			if !ok {
				t.Fatalf("expected *Note, got %T", mustParseMusic(t, tt.src))
			}
			if note.Pitch != tt.pitch {
				t.Errorf("pitch = %+v, want %+v", note.Pitch, tt.pitch)
			}
			switch {
			case tt.dur == nil && note.Dur != nil:
				t.Errorf("dur = %v, want inherited (nil)", note.Dur)
			case tt.dur != nil && note.Dur == nil:
				t.Errorf("dur = nil, want %v", tt.dur)
			case tt.dur != nil && !note.Dur.Equal(*tt.dur):
				t.Errorf("dur = %v, want %v", note.Dur, tt.dur)
			}
		})
	}
}

func TestParseDoubleDottedBeats(t *testing.T) {
	// "8.." must yield base 8 with two dots, worth 7/8 of a quarter beat.
	note := mustParseMusic(t, "c8..").(*Note)
	if note.Dur.Base != 8 || note.Dur.Dots != 2 {
		t.Fatalf("dur = %+v, want base 8 dots 2", note.Dur)
	}
	if got := note.Dur.Beats(); got != 0.875 {
		t.Errorf("Beats() = %v, want 0.875", got)
	}
}

func TestParseRestSkipMultiRest(t *testing.T) {
	seq := mustParseMusic(t, "{ r4 s4 R1*4 }").(*Sequential)
	if len(seq.Elements) != 3 {
		t.Fatalf("got %d elements, want 3", len(seq.Elements))
	}

	rest, ok := seq.Elements[0].(*Rest)
	if !ok || rest.Dur.Base != 4 {
		t.Errorf("element 0 = %#v, want rest of base 4", seq.Elements[0])
	}

	// A skip is a distinct node kind, never folded into a rest.
	skip, ok := seq.Elements[1].(*Skip)
	if !ok {
		t.Fatalf("element 1 = %T, want *Skip", seq.Elements[1])
	}
	if skip.Dur.Base != 4 {
		t.Errorf("skip dur = %v, want base 4", skip.Dur)
	}

	mr, ok := seq.Elements[2].(*MultiRest)
	if !ok {
		t.Fatalf("element 2 = %T, want *MultiRest", seq.Elements[2])
	}
	want := duration.Duration{Base: 1, Multipliers: []duration.Ratio{{Num: 4, Den: 1}}}
	if !mr.Dur.Equal(want) {
		t.Errorf("multirest dur = %v, want %v", mr.Dur, want)
	}
}

func TestParseChord(t *testing.T) {
	chord := mustParseMusic(t, "<c e g>2~").(*Chord)
	if len(chord.Pitches) != 3 {
		t.Fatalf("got %d pitches, want 3", len(chord.Pitches))
	}
	if chord.Pitches[0].Name != "c" || chord.Pitches[1].Name != "e" || chord.Pitches[2].Name != "g" {
		t.Errorf("pitches = %+v", chord.Pitches)
	}
	if chord.Dur.Base != 2 {
		t.Errorf("dur = %v, want base 2", chord.Dur)
	}
	if len(chord.Post) != 1 || chord.Post[0].Kind != PostTie {
		t.Errorf("post = %+v, want one tie", chord.Post)
	}
}

func TestParsePostEvents(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []PostEvent
	}{
		{
			name: "tie",
			src:  "c4~",
			want: []PostEvent{{Kind: PostTie}},
		},
		{
			name: "slur open and beam open",
			src:  "c8([",
			want: []PostEvent{{Kind: PostSlurOpen}, {Kind: PostBeamOpen}},
		},
		{
			name: "glissando",
			src:  "c4\\glissando",
			want: []PostEvent{{Kind: PostGliss, Name: "glissando"}},
		},
		{
			name: "tremolo subdivision",
			src:  "c4:16",
			want: []PostEvent{{Kind: PostTremolo, Value: 16}},
		},
		{
			name: "dynamic",
			src:  "c4\\ff",
			want: []PostEvent{{Kind: PostDynamic, Name: "ff"}},
		},
		{
			name: "articulation",
			src:  "c4\\staccato",
			want: []PostEvent{{Kind: PostArticulation, Name: "staccato"}},
		},
		{
			name: "shorthand staccato above",
			src:  "c4^.",
			want: []PostEvent{{Kind: PostArticulation, Direction: 1, Name: "staccato"}},
		},
		{
			name: "shorthand accent below",
			src:  "c4_>",
			want: []PostEvent{{Kind: PostArticulation, Direction: -1, Name: "accent"}},
		},
		{
			name: "fingering",
			src:  "c4-3",
			want: []PostEvent{{Kind: PostArticulation, Name: "3"}},
		},
		{
			name: "text script",
			src:  `c4^"dolce"`,
			want: []PostEvent{{Kind: PostText, Direction: 1, Markup: &MarkupString{Text: "dolce"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			note := mustParseMusic(t, tt.src).(*Note)
			if len(note.Post) != len(tt.want) {
				t.Fatalf("got %d post events, want %d: %+v", len(note.Post), len(tt.want), note.Post)
			}
			for i, ev := range note.Post {
				w := tt.want[i]
				if ev.Kind != w.Kind || ev.Direction != w.Direction || ev.Name != w.Name || ev.Value != w.Value {
					t.Errorf("post %d = %+v, want %+v", i, ev, w)
				}
				if w.Markup != nil {
					ms, ok := ev.Markup.(*MarkupString)
					wm := w.Markup.(*MarkupString)
					if !ok || ms.Text != wm.Text {
						t.Errorf("post %d markup = %#v, want %#v", i, ev.Markup, w.Markup)
					}
				}
			}
		})
	}
}

func TestParseInvalidTremoloSubdivision(t *testing.T) {
	for _, src := range []string{"c4:3", "c4:12", "c4:128"} {
		if _, err := ParseMusic(src); err == nil {
			t.Errorf("ParseMusic(%q): expected error, got nil", src)
		}
	}
}

func TestParseChordMode(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		root     string
		quality  string
		hasColon bool
		bassName string
	}{
		{
			name: "plain major",
			src:  "c",
			root: "c",
		},
		{
			name:     "minor triad",
			src:      "d:m",
			root:     "d",
			quality:  "m",
			hasColon: true,
		},
		{
			name:     "diminished seventh with inversion",
			src:      "c:dim7/f",
			root:     "c",
			quality:  "dim7",
			hasColon: true,
			bassName: "f",
		},
		{
			name:     "added note quality",
			src:      "c:6.9",
			root:     "c",
			quality:  "6.9",
			hasColon: true,
		},
		{
			name:     "removal quality",
			src:      "c:9^7",
			root:     "c",
			quality:  "9^7",
			hasColon: true,
		},
		{
			name:     "bare colon keeps empty quality",
			src:      "c:",
			root:     "c",
			hasColon: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode := mustParseMusic(t, "\\chordmode { "+tt.src+" }").(*ModeBlock)
			seq := mode.Body.(*Sequential)
			if len(seq.Elements) != 1 {
				t.Fatalf("got %d entries, want 1", len(seq.Elements))
			}
			entry, ok := seq.Elements[0].(*ChordEntry)
			if !ok {
				t.Fatalf("entry = %T, want *ChordEntry", seq.Elements[0])
			}
			if entry.Root.Name != tt.root {
				t.Errorf("root = %q, want %q", entry.Root.Name, tt.root)
			}
			if entry.Quality != tt.quality {
				t.Errorf("quality = %q, want %q", entry.Quality, tt.quality)
			}
			if entry.HasColon != tt.hasColon {
				t.Errorf("hasColon = %v, want %v", entry.HasColon, tt.hasColon)
			}
			switch {
			case tt.bassName == "" && entry.Bass != nil:
				t.Errorf("bass = %+v, want none", entry.Bass)
			case tt.bassName != "" && (entry.Bass == nil || entry.Bass.Name != tt.bassName):
				t.Errorf("bass = %+v, want %q", entry.Bass, tt.bassName)
			}
		})
	}
}

func TestParseLyricMode(t *testing.T) {
	mode := mustParseMusic(t, "\\lyricmode { A -- ve Ma -- ri -- a __ }").(*ModeBlock)
	seq := mode.Body.(*Sequential)
	if len(seq.Elements) != 5 {
		t.Fatalf("got %d syllables, want 5: %+v", len(seq.Elements), seq.Elements)
	}
	first := seq.Elements[0].(*Syllable)
	if first.Text != "A" || !first.Hyphen {
		t.Errorf("first syllable = %+v, want A with hyphen", first)
	}
	last := seq.Elements[4].(*Syllable)
	if last.Text != "a" || !last.Extender {
		t.Errorf("last syllable = %+v, want a with extender", last)
	}
}

func TestParseContainers(t *testing.T) {
	m := mustParseMusic(t, "<< { c4 d4 } \\\\ { e4 f4 } >>")
	sim, ok := m.(*Simultaneous)
	if !ok {
		t.Fatalf("got %T, want *Simultaneous", m)
	}
	if len(sim.Elements) != 3 {
		t.Fatalf("got %d elements, want 3 (two voices and the separator)", len(sim.Elements))
	}
	if _, ok := sim.Elements[0].(*Sequential); !ok {
		t.Errorf("element 0 = %T, want *Sequential", sim.Elements[0])
	}
	sep, ok := sim.Elements[1].(*Command)
	if !ok || sep.Name != "\\" {
		t.Errorf("element 1 = %#v, want voice separator command", sim.Elements[1])
	}
}

func TestParseCommands(t *testing.T) {
	doc, err := Parse(`\version "2.24.0"
\score {
  \new Staff {
    \time 3/4
    \key g \major
    \clef "treble"
    \tempo "Allegro" 4 = 120
    g4 a b |
    \tuplet 3/2 { c'8 b a }
  }
}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Items) != 2 {
		t.Fatalf("got %d top-level items, want 2", len(doc.Items))
	}

	ver, ok := doc.Items[0].(*VersionStatement)
	if !ok || ver.Version != "2.24.0" {
		t.Errorf("item 0 = %#v, want version statement", doc.Items[0])
	}

	sb, ok := doc.Items[1].(*ScoreBlock)
	if !ok {
		t.Fatalf("item 1 = %T, want *ScoreBlock", doc.Items[1])
	}
	ctx, ok := sb.Elements[0].(*ContextBlock)
	if !ok || ctx.Keyword != "new" || ctx.Type != "Staff" {
		t.Fatalf("score content = %#v, want new Staff context", sb.Elements[0])
	}

	seq := ctx.Body.(*Sequential)
	timeCmd := seq.Elements[0].(*Command)
	if timeCmd.Name != "time" {
		t.Errorf("command 0 = %q, want time", timeCmd.Name)
	}
	frac := timeCmd.Args[0].(*ArgFraction)
	if frac.Num != 3 || frac.Den != 4 {
		t.Errorf("time = %d/%d, want 3/4", frac.Num, frac.Den)
	}

	keyCmd := seq.Elements[1].(*Command)
	if keyCmd.Name != "key" {
		t.Errorf("command 1 = %q, want key", keyCmd.Name)
	}
	if pitch, ok := keyCmd.Args[0].(*ArgPitch); !ok || pitch.Pitch.Name != "g" {
		t.Errorf("key pitch = %#v, want g", keyCmd.Args[0])
	}
	if modeArg, ok := keyCmd.Args[1].(*ArgCommand); !ok || modeArg.Name != "major" {
		t.Errorf("key mode = %#v, want \\major", keyCmd.Args[1])
	}

	tuplet := seq.Elements[len(seq.Elements)-1].(*Command)
	if tuplet.Name != "tuplet" {
		t.Fatalf("last element = %q, want tuplet", tuplet.Name)
	}
	if frac := tuplet.Args[0].(*ArgFraction); frac.Num != 3 || frac.Den != 2 {
		t.Errorf("tuplet fraction = %d/%d, want 3/2", frac.Num, frac.Den)
	}
	if _, ok := tuplet.Args[1].(*ArgMusic); !ok {
		t.Errorf("tuplet body = %T, want *ArgMusic", tuplet.Args[1])
	}
}

func TestParseAssignmentAndIdentifier(t *testing.T) {
	doc, err := Parse("melody = { c4 d4 }\n\\score { \\melody }")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	asg, ok := doc.Items[0].(*Assignment)
	if !ok || asg.Name != "melody" {
		t.Fatalf("item 0 = %#v, want assignment to melody", doc.Items[0])
	}
	if _, ok := asg.Value.(*ArgMusic); !ok {
		t.Errorf("assignment value = %T, want *ArgMusic", asg.Value)
	}
	sb := doc.Items[1].(*ScoreBlock)
	ident, ok := sb.Elements[0].(*Identifier)
	if !ok || ident.Name != "melody" {
		t.Errorf("score content = %#v, want identifier melody", sb.Elements[0])
	}
}

func TestParseHeaderBlock(t *testing.T) {
	doc, err := Parse(`\header {
  title = "Nocturne"
  composer = "Field"
}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	hb := doc.Items[0].(*HeaderBlock)
	if len(hb.Fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(hb.Fields))
	}
	if hb.Fields[0].Name != "title" {
		t.Errorf("field 0 = %q, want title", hb.Fields[0].Name)
	}
	if s, ok := hb.Fields[0].Value.(*ArgString); !ok || s.Value != "Nocturne" {
		t.Errorf("title value = %#v, want Nocturne", hb.Fields[0].Value)
	}
}

func TestParseRelativeAndRepeat(t *testing.T) {
	m := mustParseMusic(t, "\\relative c' { c4 d e f }")
	rel, ok := m.(*Command)
	if !ok || rel.Name != "relative" {
		t.Fatalf("got %#v, want relative command", m)
	}
	if pitch, ok := rel.Args[0].(*ArgPitch); !ok || pitch.Pitch.Octave != 1 {
		t.Errorf("relative pitch = %#v, want c'", rel.Args[0])
	}

	m = mustParseMusic(t, "\\repeat volta 2 { c4 } \\alternative { { d4 } { e4 } }")
	rep, ok := m.(*Repeat)
	if !ok {
		t.Fatalf("got %T, want *Repeat", m)
	}
	if rep.Kind != "volta" || rep.Count != 2 {
		t.Errorf("repeat = %s x%d, want volta x2", rep.Kind, rep.Count)
	}
	if len(rep.Alternatives) != 2 {
		t.Errorf("got %d alternatives, want 2", len(rep.Alternatives))
	}
}

func TestParseMarkup(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		check func(t *testing.T, m Markup)
	}{
		{
			name: "word",
			src:  "\\markup Allegro",
			check: func(t *testing.T, m Markup) {
				if w, ok := m.(*MarkupWord); !ok || w.Text != "Allegro" {
					t.Errorf("got %#v, want word Allegro", m)
				}
			},
		},
		{
			name: "command with braced argument",
			src:  "\\markup \\bold { con brio }",
			check: func(t *testing.T, m Markup) {
				cmd, ok := m.(*MarkupCommand)
				if !ok || cmd.Name != "bold" {
					t.Fatalf("got %#v, want bold command", m)
				}
				line, ok := cmd.Args[0].(*MarkupLine)
				if !ok || len(line.Items) != 2 {
					t.Errorf("bold arg = %#v, want two-word line", cmd.Args[0])
				}
			},
		},
		{
			name: "two argument command",
			src:  "\\markup \\fontsize #2 rit.",
			check: func(t *testing.T, m Markup) {
				cmd, ok := m.(*MarkupCommand)
				if !ok || cmd.Name != "fontsize" || len(cmd.Args) != 2 {
					t.Fatalf("got %#v, want fontsize with 2 args", m)
				}
				if _, ok := cmd.Args[0].(*MarkupScheme); !ok {
					t.Errorf("arg 0 = %T, want *MarkupScheme", cmd.Args[0])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mb, ok := mustParseMusic(t, tt.src).(*MarkupBlock)
			if !ok {
				t.Fatalf("got %T, want *MarkupBlock", mustParseMusic(t, tt.src))
			}
			tt.check(t, mb.Body)
		})
	}
}

func TestParseMarkupPartial(t *testing.T) {
	// A command chain cut off by \etc is a reusable value, not an error.
	doc, err := Parse("emphasize = \\markup \\bold \\italic \\etc")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	asg := doc.Items[0].(*Assignment)
	markup := asg.Value.(*ArgMarkup)
	partial, ok := markup.Markup.(*MarkupPartial)
	if !ok {
		t.Fatalf("value = %#v, want *MarkupPartial", markup.Markup)
	}
	if len(partial.Chain) != 2 {
		t.Fatalf("chain length = %d, want 2", len(partial.Chain))
	}
	if partial.Chain[0].Name != "bold" || partial.Chain[1].Name != "italic" {
		t.Errorf("chain = %+v, want bold then italic", partial.Chain)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unclosed sequence", "{ c4 d4"},
		{"unclosed simultaneous", "<< c4"},
		{"unclosed chord", "<c e"},
		{"stray closing brace", "}"},
		{"dangling direction", "c4^"},
		{"non power-of-two duration", "c5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMusic(tt.src)
			if err == nil {
				t.Fatal("expected parse error, got nil")
			}
			if !errors.Is(err, errors.ErrParse) && !errors.Is(err, errors.ErrLex) {
				t.Errorf("error does not unwrap to a parse or lex sentinel: %v", err)
			}
		})
	}
}
