package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuality(t *testing.T) {
	tests := []struct {
		in   string
		want QualityInfo
	}{
		{"", QualityInfo{}},
		{"m", QualityInfo{Modifier: "m"}},
		{"7", QualityInfo{Extension: 7}},
		{"m7", QualityInfo{Modifier: "m", Extension: 7}},
		{"dim7", QualityInfo{Modifier: "dim", Extension: 7}},
		{"maj9", QualityInfo{Modifier: "maj", Extension: 9}},
		{"sus4", QualityInfo{Modifier: "sus", Extension: 4}},
		{"6.9", QualityInfo{Extension: 6, Additions: []int{9}}},
		{"7.5+", QualityInfo{Extension: 7, Raised: []int{5}}},
		{"7.9-", QualityInfo{Extension: 7, Lowered: []int{9}}},
		{"9^7", QualityInfo{Extension: 9, Removals: []int{7}}},
		{"13^9.11", QualityInfo{Extension: 13, Removals: []int{9, 11}}},
	}

	for _, tt := range tests {
		t.Run("q_"+tt.in, func(t *testing.T) {
			got, err := ParseQuality(tt.in)
			require.NoError(t, err)
			assert.Equal(t, &tt.want, got)
		})
	}
}

func TestParseQualityRejectsGarbage(t *testing.T) {
	for _, in := range []string{"xyz", "!!?", "m$"} {
		_, err := ParseQuality(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestQualityKind(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "major"},
		{"m", "minor"},
		{"7", "dominant"},
		{"9", "dominant-ninth"},
		{"m7", "minor-seventh"},
		{"m6", "minor-sixth"},
		{"dim", "diminished"},
		{"dim7", "diminished-seventh"},
		{"aug", "augmented"},
		{"aug7", "augmented-seventh"},
		{"maj7", "major-seventh"},
		{"maj13", "major-13th"},
		{"sus2", "suspended-second"},
		{"sus4", "suspended-fourth"},
		{"6", "major-sixth"},
		{"6.9", "major-sixth"},
		{"9^7", "dominant-ninth"},
	}

	for _, tt := range tests {
		t.Run("kind_"+tt.in, func(t *testing.T) {
			info, err := ParseQuality(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, info.Kind())
		})
	}
}
