package lily

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSerializeMusicCanonicalForm(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"note with tie", "c4~", "c4~"},
		{"octaves and accidental flags", "{ fis''2 ees,? }", "{ fis''2 ees,? }"},
		{"double dotted", "c8..", "c8.."},
		{"multiplier chain", "c4*2/3*3", "c4*2/3*3"},
		{"rest skip multirest", "{ r4 s4 R1*4 }", "{ r4 s4 R1*4 }"},
		{"chord", "<c e g>2(", "<c e g>2("},
		{"post events keep order", "c8[(", "c8[("},
		{"shorthand articulation", "c4^.", "c4^\\staccato"},
		{"fingering keeps neutral dash", "c4-3", "c4-3"},
		{"dynamic", "c4\\mf", "c4\\mf"},
		{"text script", `c4_"dolce"`, `c4_"dolce"`},
		{"tremolo subdivision", "c4:16", "c4:16"},
		{"chord entry", "\\chordmode { c:dim7/f }", "\\chordmode { c:dim7/f }"},
		{"chord entry bare colon", "\\chordmode { c2: }", "\\chordmode { c2: }"},
		{"lyrics", "\\lyricmode { Ky -- ri -- e __ }", "\\lyricmode { Ky -- ri -- e __ }"},
		{"voice separator", "<< { c4 } \\\\ { e4 } >>", "<< { c4 } \\\\ { e4 } >>"},
		{"time signature", "\\time 6/8", "\\time 6/8"},
		{"key signature", "\\key ees \\major", "\\key ees \\major"},
		{"tempo metronome mark", "\\tempo \"Vivo\" 4. = 96", "\\tempo \"Vivo\" 4. = 96"},
		{"breve duration", "c\\breve", "c\\breve"},
		{"property override", "\\override Staff.NoteHead.style = #'cross", "\\override Staff.NoteHead.style = #'cross"},
		{"markup partial", "\\markup \\bold \\italic \\etc", "\\markup \\bold \\italic \\etc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseMusic(tt.src)
			require.NoError(t, err)
			require.Equal(t, tt.want, SerializeMusic(m))
		})
	}
}

// Serializing a parsed document and parsing the result must reproduce
// the same tree: the canonical form is a fixed point.
func TestSerializeRoundtrip(t *testing.T) {
	sources := []string{
		"{ c4 d8. e16 f2~ f1 }",

		"\\relative c' { c4( d e) f | g1 }",

		`\version "2.24.0"

\header {
  title = "Gymnopedie"
  composer = "Satie"
}

\score {
  \new Staff {
    \time 3/4
    \key d \major
    \clef "treble"
    d'4 fis' a' |
    \tuplet 3/2 { g'8 fis' e' } d'2
  }
}`,

		`\score {
  << \new Staff { c'1 } \new ChordNames \chordmode { c1:maj7 d:m/a } >>
}`,

		"melody = { c4 d4 }\n\\score { \\melody }",

		"\\repeat volta 2 { c4 d } \\alternative { { e2 } { f2 } }",

		"\\new Voice = \"alto\" { s1*8 }",

		"\\lyricmode { A -- ve ve -- rum cor -- pus __ }",

		"\\markup \\fontsize #2 \\bold { con moto }",

		"<< { c''4:32 d''4:32 } \\\\ { <e g>8[ <e g>] r4 } >>",
	}

	for _, src := range sources {
		doc, err := Parse(src)
		require.NoError(t, err, "source: %s", src)

		first := Serialize(doc)
		reparsed, err := Parse(first)
		require.NoError(t, err, "canonical form failed to parse:\n%s", first)

		second := Serialize(reparsed)
		require.Equal(t, first, second, "canonical form is not a fixed point")
		require.Equal(t, doc, reparsed, "reparse changed the tree")
	}
}

func TestSerializeQuotedStrings(t *testing.T) {
	doc, err := Parse(`\header { title = "he said \"now\"" }`)
	require.NoError(t, err)

	out := Serialize(doc)
	require.Contains(t, out, `"he said \"now\""`)

	reparsed, err := Parse(out)
	require.NoError(t, err)
	require.Equal(t, doc, reparsed)
}

func TestSerializeQuotesAwkwardSyllables(t *testing.T) {
	m := &ModeBlock{Kind: "lyricmode", Body: &Sequential{Elements: []Music{
		&Syllable{Text: "don't"},
		&Syllable{Text: "stop 2day"},
	}}}
	require.Equal(t, `\lyricmode { don't "stop 2day" }`, SerializeMusic(m))
}
