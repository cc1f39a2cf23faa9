package score

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// QualityInfo is the structured reading of a chord-symbol quality string.
// The verbatim spelling stays on Harmony.Quality; this type exists for
// consumers that need the meaning, such as the MusicXML harmony kind.
type QualityInfo struct {
	// Modifier is the quality word: "m", "dim", "aug", "maj", "sus", "".
	Modifier string `json:"modifier,omitempty"`

	// Extension is the headline extension number (7, 9, 11, 13), 0 when absent.
	Extension int `json:"extension,omitempty"`

	// Additions are steps added with dots: "6.9" yields [9] after extension 6.
	Additions []int `json:"additions,omitempty"`

	// Raised and Lowered are step alterations marked "+" and "-".
	Raised  []int `json:"raised,omitempty"`
	Lowered []int `json:"lowered,omitempty"`

	// Removals are steps removed with "^": "c:7^5".
	Removals []int `json:"removals,omitempty"`
}

// qualityGrammar parses chord quality text such as "m", "dim7", "maj9",
// "sus4", "6.9", "7+5" or "9^7".
//
//nolint:govet // participle grammar tags are not standard struct tags
type qualityGrammar struct {
	Modifier string         `parser:"@('m' | 'dim' | 'aug' | 'maj' | 'sus')?"`
	Steps    []qualityStep  `parser:"@@*"`
	Removals []qualityPunct `parser:"( '^' @@ ( '.' @@ )* )?"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type qualityStep struct {
	Dot     bool `parser:"( @'.' )?"`
	Raise   bool `parser:"( @'+'"`
	Lower   bool `parser:"| @'-' )?"`
	Degree  int  `parser:"@Int"`
	Trail   bool `parser:"@'+'?"`
	TrailLo bool `parser:"@'-'?"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type qualityPunct struct {
	Degree int `parser:"@Int"`
}

var qualityLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Word", Pattern: `[a-z]+`},
	{Name: "Punct", Pattern: `[.+^-]`},
})

var qualityParser = participle.MustBuild[qualityGrammar](
	participle.Lexer(qualityLexer),
	participle.UseLookahead(2),
)

// ParseQuality parses a chord-symbol quality string. An empty string is
// a plain major triad and parses to the zero QualityInfo.
func ParseQuality(s string) (*QualityInfo, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return &QualityInfo{}, nil
	}

	parsed, err := qualityParser.ParseString("", s)
	if err != nil {
		return nil, fmt.Errorf("invalid chord quality %q: %w", s, err)
	}

	info := &QualityInfo{Modifier: parsed.Modifier}
	for i, step := range parsed.Steps {
		switch {
		case step.Raise || step.Trail:
			info.Raised = append(info.Raised, step.Degree)
		case step.Lower || step.TrailLo:
			info.Lowered = append(info.Lowered, step.Degree)
		case i == 0 && !step.Dot:
			info.Extension = step.Degree
		default:
			info.Additions = append(info.Additions, step.Degree)
		}
	}
	for _, rem := range parsed.Removals {
		info.Removals = append(info.Removals, rem.Degree)
	}
	return info, nil
}

// Kind maps the quality to a MusicXML harmony kind name. Spellings
// without a direct kind fall back to the closest base triad; the
// verbatim quality text still travels alongside for exact round-trips.
func (q *QualityInfo) Kind() string {
	switch q.Modifier {
	case "m":
		switch q.Extension {
		case 7:
			return "minor-seventh"
		case 9:
			return "minor-ninth"
		case 11:
			return "minor-11th"
		case 13:
			return "minor-13th"
		case 6:
			return "minor-sixth"
		}
		return "minor"
	case "dim":
		if q.Extension == 7 {
			return "diminished-seventh"
		}
		return "diminished"
	case "aug":
		if q.Extension == 7 {
			return "augmented-seventh"
		}
		return "augmented"
	case "maj":
		switch q.Extension {
		case 9:
			return "major-ninth"
		case 11:
			return "major-11th"
		case 13:
			return "major-13th"
		}
		return "major-seventh"
	case "sus":
		if q.Extension == 2 {
			return "suspended-second"
		}
		return "suspended-fourth"
	}
	switch q.Extension {
	case 7:
		return "dominant"
	case 9:
		return "dominant-ninth"
	case 11:
		return "dominant-11th"
	case 13:
		return "dominant-13th"
	case 6:
		return "major-sixth"
	}
	return "major"
}
