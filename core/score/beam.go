package score

import (
	"fmt"

	"github.com/cadenza-tools/cadenza/core/duration"
)

// GroupBeam replaces the events in [start, end] (inclusive indexes into
// l.Events) with a single Beam containing exactly those events in their
// original order. The beam is spliced in place so surrounding siblings
// keep their positions. The grouped events are moved, never copied or
// mutated.
func (l *Layer) GroupBeam(id string, start, end int) (*Beam, error) {
	if start < 0 || end >= len(l.Events) || start > end {
		return nil, fmt.Errorf("beam range [%d, %d] out of bounds for %d events", start, end, len(l.Events))
	}

	grouped := make([]Event, end-start+1)
	copy(grouped, l.Events[start:end+1])

	beam := &Beam{ID: id, Events: grouped}

	rest := append([]Event{beam}, l.Events[end+1:]...)
	l.Events = append(l.Events[:start:start], rest...)
	return beam, nil
}

// Beamable reports whether an event may participate in a beam group:
// notes and chords shorter than a quarter note.
func Beamable(ev Event) bool {
	var d duration.Duration
	switch e := ev.(type) {
	case *Note:
		d = e.Dur
	case *Chord:
		d = e.Dur
	default:
		return false
	}
	return d.Base >= 8
}
