package score

import (
	"fmt"
)

// ValidationIssue describes one structural problem found in a score tree.
type ValidationIssue struct {
	ElementID string
	Message   string
}

func (v ValidationIssue) String() string {
	if v.ElementID != "" {
		return fmt.Sprintf("%s: %s", v.ElementID, v.Message)
	}
	return v.Message
}

// Validate checks structural invariants of the document model: unique
// element identifiers, valid durations, and cross-reference elements
// whose endpoints exist, differ, and point at real events.
func (s *Score) Validate() []ValidationIssue {
	var issues []ValidationIssue
	seen := map[string]bool{}
	eventIDs := map[string]bool{}

	note := func(id, format string, args ...interface{}) {
		issues = append(issues, ValidationIssue{ElementID: id, Message: fmt.Sprintf(format, args...)})
	}

	checkID := func(id, kind string) {
		if id == "" {
			note("", "%s has empty id", kind)
			return
		}
		if seen[id] {
			note(id, "duplicate element id")
		}
		seen[id] = true
	}

	var checkEvent func(ev Event)
	checkEvent = func(ev Event) {
		switch e := ev.(type) {
		case *Note:
			checkID(e.ID, "note")
			eventIDs[e.ID] = true
			if !e.Dur.Valid() {
				note(e.ID, "invalid duration %v", e.Dur)
			}
		case *Rest:
			checkID(e.ID, "rest")
			eventIDs[e.ID] = true
			if !e.Dur.Valid() {
				note(e.ID, "invalid duration %v", e.Dur)
			}
		case *Space:
			checkID(e.ID, "space")
			eventIDs[e.ID] = true
		case *MultiRest:
			checkID(e.ID, "multi-rest")
			eventIDs[e.ID] = true
			if e.Count < 1 {
				note(e.ID, "multi-rest count %d < 1", e.Count)
			}
		case *Chord:
			checkID(e.ID, "chord")
			eventIDs[e.ID] = true
			if len(e.Notes) == 0 {
				note(e.ID, "empty chord")
			}
			for _, n := range e.Notes {
				checkID(n.ID, "chord note")
				eventIDs[n.ID] = true
			}
		case *Beam:
			checkID(e.ID, "beam")
			if len(e.Events) == 0 {
				note(e.ID, "empty beam")
			}
			for _, child := range e.Events {
				checkEvent(child)
			}
		case *BTrem:
			checkID(e.ID, "tremolo")
			if e.Child == nil {
				note(e.ID, "tremolo without child event")
			} else {
				checkEvent(e.Child)
			}
		case *Harmony:
			checkID(e.ID, "harmony")
			eventIDs[e.ID] = true
		case *Syllable:
			checkID(e.ID, "syllable")
			eventIDs[e.ID] = true
		}
	}

	checkSpan := func(id, kind, startID, endID string) {
		checkID(id, kind)
		if startID == endID {
			note(id, "%s start and end refer to the same element %q", kind, startID)
		}
	}

	type span struct {
		id, kind, startID, endID string
	}
	var spans []span

	for _, part := range s.Parts {
		checkID(part.ID, "part")
		for _, meas := range part.Measures {
			checkID(meas.ID, "measure")
			for _, staff := range meas.Staves {
				checkID(staff.ID, "staff")
				for _, layer := range staff.Layers {
					checkID(layer.ID, "layer")
					for _, ev := range layer.Events {
						checkEvent(ev)
					}
				}
			}
			for _, ce := range meas.ControlEvents {
				switch c := ce.(type) {
				case *Tie:
					checkSpan(c.ID, "tie", c.StartID, c.EndID)
					spans = append(spans, span{c.ID, "tie", c.StartID, c.EndID})
				case *Slur:
					checkSpan(c.ID, "slur", c.StartID, c.EndID)
					spans = append(spans, span{c.ID, "slur", c.StartID, c.EndID})
				case *Gliss:
					checkSpan(c.ID, "glissando", c.StartID, c.EndID)
					spans = append(spans, span{c.ID, "glissando", c.StartID, c.EndID})
				case *TupletSpan:
					checkSpan(c.ID, "tuplet", c.StartID, c.EndID)
					spans = append(spans, span{c.ID, "tuplet", c.StartID, c.EndID})
					if c.Num < 1 || c.Numbase < 1 {
						note(c.ID, "tuplet ratio %d/%d invalid", c.Num, c.Numbase)
					}
				case *TremoloSpan:
					checkSpan(c.ID, "tremolo span", c.StartID, c.EndID)
					spans = append(spans, span{c.ID, "tremolo span", c.StartID, c.EndID})
				default:
					note(ce.ElementID(), "unknown control event type %T", ce)
				}
			}
		}
	}

	// Endpoint existence is checked after the full walk so forward
	// references within a measure are fine.
	for _, sp := range spans {
		if !eventIDs[sp.startID] {
			note(sp.id, "%s start references unknown event %q", sp.kind, sp.startID)
		}
		if !eventIDs[sp.endID] {
			note(sp.id, "%s end references unknown event %q", sp.kind, sp.endID)
		}
	}

	return issues
}
