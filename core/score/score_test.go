package score

import (
	"testing"

	"github.com/cadenza-tools/cadenza/core/duration"
)

func mkNote(id, step string, oct int) *Note {
	return &Note{ID: id, Pitch: Pitch{Step: step, Octave: oct}, Dur: duration.New(8, 0)}
}

func TestGroupBeamSplicesInPlace(t *testing.T) {
	layer := &Layer{ID: "layer-1", N: 1}
	n1 := mkNote("n1", "c", 4)
	n2 := mkNote("n2", "d", 4)
	n3 := mkNote("n3", "e", 4)
	n4 := mkNote("n4", "f", 4)
	layer.Events = []Event{n1, n2, n3, n4}

	beam, err := layer.GroupBeam("b1", 1, 2)
	if err != nil {
		t.Fatalf("GroupBeam failed: %v", err)
	}

	if len(layer.Events) != 3 {
		t.Fatalf("expected 3 top-level events after grouping, got %d", len(layer.Events))
	}
	if layer.Events[0] != Event(n1) || layer.Events[2] != Event(n4) {
		t.Error("surrounding siblings disturbed by splice")
	}
	if layer.Events[1] != Event(beam) {
		t.Error("beam not spliced at the grouped range position")
	}
	if len(beam.Events) != 2 || beam.Events[0] != Event(n2) || beam.Events[1] != Event(n3) {
		t.Error("beam children are not the original events in order")
	}
}

func TestGroupBeamLeafMultisetPreserved(t *testing.T) {
	layer := &Layer{ID: "layer-1", N: 1}
	ids := []string{"n1", "n2", "n3", "n4", "n5"}
	for _, id := range ids {
		layer.Events = append(layer.Events, mkNote(id, "c", 4))
	}

	if _, err := layer.GroupBeam("b1", 0, 2); err != nil {
		t.Fatalf("GroupBeam failed: %v", err)
	}

	leaves := layer.Leaves()
	if len(leaves) != len(ids) {
		t.Fatalf("expected %d leaves, got %d", len(ids), len(leaves))
	}
	for i, id := range ids {
		if leaves[i].ElementID() != id {
			t.Errorf("leaf %d = %s, want %s", i, leaves[i].ElementID(), id)
		}
	}
}

func TestGroupBeamRangeErrors(t *testing.T) {
	layer := &Layer{Events: []Event{mkNote("n1", "c", 4)}}
	cases := [][2]int{{-1, 0}, {0, 1}, {1, 0}}
	for _, c := range cases {
		if _, err := layer.GroupBeam("b", c[0], c[1]); err == nil {
			t.Errorf("GroupBeam(%d, %d) should fail", c[0], c[1])
		}
	}
}

func TestBeamable(t *testing.T) {
	if Beamable(&Note{Dur: duration.New(4, 0)}) {
		t.Error("quarter note must not be beamable")
	}
	if !Beamable(&Note{Dur: duration.New(8, 0)}) {
		t.Error("eighth note should be beamable")
	}
	if !Beamable(&Chord{Dur: duration.New(16, 0)}) {
		t.Error("sixteenth chord should be beamable")
	}
	if Beamable(&Rest{Dur: duration.New(16, 0)}) {
		t.Error("rests are not beamed")
	}
}

func buildScore(ces ...Element) *Score {
	layer := &Layer{ID: "layer-1", N: 1, Events: []Event{
		mkNote("n1", "c", 4),
		mkNote("n2", "c", 4),
	}}
	return &Score{
		ID: "score-1",
		Parts: []*Part{{
			ID: "part-1",
			Measures: []*Measure{{
				ID:            "m1",
				N:             1,
				Staves:        []*Staff{{ID: "staff-1", N: 1, Layers: []*Layer{layer}}},
				ControlEvents: ces,
			}},
		}},
	}
}

func TestValidateCleanScore(t *testing.T) {
	s := buildScore(&Tie{ID: "tie-1", StartID: "n1", EndID: "n2"})
	if issues := s.Validate(); len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
}

func TestValidateCatchesBadSpans(t *testing.T) {
	s := buildScore(
		&Tie{ID: "tie-1", StartID: "n1", EndID: "n1"},
		&Slur{ID: "slur-1", StartID: "n1", EndID: "missing"},
		&TupletSpan{ID: "tup-1", StartID: "n1", EndID: "n2", Num: 0, Numbase: 2},
	)
	issues := s.Validate()
	if len(issues) != 3 {
		t.Fatalf("expected 3 issues, got %d: %v", len(issues), issues)
	}
}

func TestValidateDuplicateIDs(t *testing.T) {
	s := buildScore()
	layer := s.Parts[0].Measures[0].Staves[0].Layers[0]
	layer.Events = append(layer.Events, mkNote("n1", "d", 4))
	issues := s.Validate()
	if len(issues) == 0 {
		t.Fatal("expected duplicate id issue")
	}
}

func TestHashContentStable(t *testing.T) {
	a := HashContent([]byte("c'4 d'4"))
	b := HashContent([]byte("c'4 d'4"))
	if a != b {
		t.Error("hash must be deterministic")
	}
	if a == HashContent([]byte("c'4 e'4")) {
		t.Error("different content should hash differently")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}
