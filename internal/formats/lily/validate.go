package lily

import (
	"fmt"

	"github.com/cadenza-tools/cadenza/core/duration"
	"github.com/cadenza-tools/cadenza/core/errors"
)

// ValidationIssue is one structural problem found in a parse tree.
type ValidationIssue struct {
	Path    string // dotted location, e.g. "score[0].sequential[2].note"
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate runs a structural sanity pass over a parsed document. It
// checks duration well-formedness, empty containers, chord shape and
// partial markup placement. The pass is independent of import and
// export; a document with issues may still convert.
func Validate(doc *Document) []ValidationIssue {
	v := &validator{}
	for i, item := range doc.Items {
		v.music(item, fmt.Sprintf("item[%d]", i))
	}
	return v.issues
}

type validator struct {
	issues []ValidationIssue
}

func (v *validator) report(path, format string, args ...interface{}) {
	v.issues = append(v.issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) dur(d *duration.Duration, path string) {
	if d == nil {
		return
	}
	if !d.Valid() {
		v.report(path, "invalid duration %s", d)
	}
}

func (v *validator) music(m Music, path string) {
	switch n := m.(type) {
	case *Note:
		v.dur(n.Dur, path+".note")
		v.posts(n.Post, path+".note")
	case *Rest:
		v.dur(n.Dur, path+".rest")
		v.posts(n.Post, path+".rest")
	case *Skip:
		v.dur(n.Dur, path+".skip")
	case *MultiRest:
		v.dur(n.Dur, path+".multirest")
	case *Chord:
		if len(n.Pitches) == 0 {
			v.report(path+".chord", "chord has no pitches")
		}
		v.dur(n.Dur, path+".chord")
		v.posts(n.Post, path+".chord")
	case *Sequential:
		if len(n.Elements) == 0 {
			v.report(path+".sequential", "empty sequential block")
		}
		for i, el := range n.Elements {
			v.music(el, fmt.Sprintf("%s.sequential[%d]", path, i))
		}
	case *Simultaneous:
		if len(n.Elements) == 0 {
			v.report(path+".simultaneous", "empty simultaneous block")
		}
		for i, el := range n.Elements {
			v.music(el, fmt.Sprintf("%s.simultaneous[%d]", path, i))
		}
	case *Repeat:
		if n.Count < 1 {
			v.report(path+".repeat", "repeat count %d is less than 1", n.Count)
		}
		v.music(n.Body, path+".repeat.body")
		for i, alt := range n.Alternatives {
			v.music(alt, fmt.Sprintf("%s.repeat.alt[%d]", path, i))
		}
	case *ContextBlock:
		v.music(n.Body, path+".context."+n.Type)
	case *ModeBlock:
		v.music(n.Body, path+"."+n.Kind)
	case *ChordEntry:
		v.dur(n.Dur, path+".chordentry")
		if n.HasColon && n.Quality == "" {
			v.report(path+".chordentry", "colon with empty chord quality")
		}
	case *Syllable:
		v.dur(n.Dur, path+".syllable")
	case *Command:
		for i, arg := range n.Args {
			v.arg(arg, fmt.Sprintf("%s.\\%s.arg[%d]", path, n.Name, i))
		}
	case *Assignment:
		v.arg(n.Value, path+"."+n.Name)
	case *ScoreBlock:
		if len(n.Elements) == 0 {
			v.report(path+".score", "empty score block")
		}
		for i, el := range n.Elements {
			v.music(el, fmt.Sprintf("%s.score[%d]", path, i))
		}
	case *HeaderBlock:
		for _, f := range n.Fields {
			v.arg(f.Value, path+".header."+f.Name)
		}
	case *MarkupBlock:
		v.markup(n.Body, path+".markup", true)
	case *BarCheck, *Identifier, *SchemeMusic, *VersionStatement:
		// leaf; nothing to check
	}
}

func (v *validator) arg(a Arg, path string) {
	switch n := a.(type) {
	case *ArgMusic:
		v.music(n.Music, path)
	case *ArgMarkup:
		v.markup(n.Markup, path, false)
	case *ArgDuration:
		if !n.Dur.Valid() {
			v.report(path, "invalid duration %s", n.Dur)
		}
	case *ArgFraction:
		if n.Den == 0 {
			v.report(path, "fraction with zero denominator")
		}
	}
}

func (v *validator) posts(posts []PostEvent, path string) {
	for _, p := range posts {
		if p.Kind == PostText && p.Markup != nil {
			v.markup(p.Markup, path+".text", false)
		}
	}
}

// markup checks markup structure. topLevel marks markup that prints
// directly; a partial chain there has no argument to receive and would
// render nothing.
func (v *validator) markup(m Markup, path string, topLevel bool) {
	switch n := m.(type) {
	case *MarkupPartial:
		if len(n.Chain) == 0 {
			v.report(path, "empty partial markup chain")
		}
		if topLevel {
			v.report(path, "partial markup chain in printing position")
		}
		for _, call := range n.Chain {
			for j, arg := range call.Args {
				v.markup(arg, fmt.Sprintf("%s.\\%s.arg[%d]", path, call.Name, j), false)
			}
		}
	case *MarkupCommand:
		for i, arg := range n.Args {
			v.markup(arg, fmt.Sprintf("%s.\\%s.arg[%d]", path, n.Name, i), false)
		}
	case *MarkupLine:
		for i, item := range n.Items {
			v.markup(item, fmt.Sprintf("%s.line[%d]", path, i), false)
		}
	case *MarkupList:
		for i, item := range n.Items {
			v.markup(item, fmt.Sprintf("%s.list[%d]", path, i), topLevel)
		}
	case *MarkupScore:
		for i, el := range n.Elements {
			v.music(el, fmt.Sprintf("%s.score[%d]", path, i))
		}
	}
}

// ValidateSource parses and validates source text in one call. A parse
// failure is returned as the error; validation issues are returned as
// strings so callers report them as warnings.
func ValidateSource(src string) ([]string, error) {
	doc, err := Parse(src)
	if err != nil {
		return nil, errors.Wrap(err, "validating source")
	}
	issues := Validate(doc)
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.String()
	}
	return out, nil
}
