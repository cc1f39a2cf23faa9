package lily

import (
	"strconv"
	"strings"

	"github.com/cadenza-tools/cadenza/core/duration"
)

// Serialize renders a document back to source text. The output is
// canonical: formatting is fully determined by the tree, so serializing
// a freshly parsed document and parsing the result yields an equal tree.
func Serialize(doc *Document) string {
	s := &serializer{}
	for i, item := range doc.Items {
		if i > 0 {
			s.sb.WriteString("\n\n")
		}
		s.music(item)
	}
	s.sb.WriteString("\n")
	return s.sb.String()
}

// SerializeMusic renders a single music expression.
func SerializeMusic(m Music) string {
	s := &serializer{}
	s.music(m)
	return s.sb.String()
}

type serializer struct {
	sb     strings.Builder
	indent int
}

func (s *serializer) newline() {
	s.sb.WriteString("\n")
	for i := 0; i < s.indent; i++ {
		s.sb.WriteString("  ")
	}
}

func (s *serializer) music(m Music) {
	switch n := m.(type) {
	case *Note:
		s.pitch(n.Pitch)
		s.dur(n.Dur)
		s.postEvents(n.Post)

	case *Rest:
		s.sb.WriteString("r")
		s.dur(n.Dur)
		s.postEvents(n.Post)

	case *Skip:
		s.sb.WriteString("s")
		s.dur(n.Dur)

	case *MultiRest:
		s.sb.WriteString("R")
		s.dur(n.Dur)

	case *Chord:
		s.sb.WriteString("<")
		for i, p := range n.Pitches {
			if i > 0 {
				s.sb.WriteString(" ")
			}
			s.pitch(p)
		}
		s.sb.WriteString(">")
		s.dur(n.Dur)
		s.postEvents(n.Post)

	case *Sequential:
		s.container("{", "}", n.Elements)

	case *Simultaneous:
		s.container("<<", ">>", n.Elements)

	case *Repeat:
		s.sb.WriteString("\\repeat ")
		s.sb.WriteString(n.Kind)
		s.sb.WriteString(" ")
		s.sb.WriteString(strconv.Itoa(n.Count))
		s.sb.WriteString(" ")
		s.music(n.Body)
		if len(n.Alternatives) > 0 {
			s.sb.WriteString(" \\alternative ")
			s.container("{", "}", n.Alternatives)
		}

	case *ContextBlock:
		s.sb.WriteString("\\")
		s.sb.WriteString(n.Keyword)
		s.sb.WriteString(" ")
		s.sb.WriteString(n.Type)
		if n.Name != "" {
			s.sb.WriteString(" = ")
			s.quoted(n.Name)
		}
		if n.With != nil {
			s.sb.WriteString(" \\with ")
			s.music(n.With)
		}
		s.sb.WriteString(" ")
		s.music(n.Body)

	case *BarCheck:
		s.sb.WriteString("|")

	case *ModeBlock:
		s.sb.WriteString("\\")
		s.sb.WriteString(n.Kind)
		s.sb.WriteString(" ")
		s.music(n.Body)

	case *ChordEntry:
		s.pitch(n.Root)
		s.dur(n.Dur)
		if n.HasColon {
			s.sb.WriteString(":")
			s.sb.WriteString(n.Quality)
		}
		if n.Bass != nil {
			s.sb.WriteString("/")
			s.pitch(*n.Bass)
		}

	case *Syllable:
		s.syllableText(n.Text)
		s.dur(n.Dur)
		if n.Hyphen {
			s.sb.WriteString(" --")
		}
		if n.Extender {
			s.sb.WriteString(" __")
		}

	case *Command:
		s.command(n)

	case *Identifier:
		s.sb.WriteString("\\")
		s.sb.WriteString(n.Name)

	case *SchemeMusic:
		s.sb.WriteString("#")
		s.sb.WriteString(schemeRaw(n.Value))

	case *Assignment:
		s.sb.WriteString(n.Name)
		s.sb.WriteString(" = ")
		s.arg(n.Value)

	case *ScoreBlock:
		s.sb.WriteString("\\score {")
		s.indent++
		for _, el := range n.Elements {
			s.newline()
			s.music(el)
		}
		s.indent--
		s.newline()
		s.sb.WriteString("}")

	case *HeaderBlock:
		s.sb.WriteString("\\header {")
		s.indent++
		for _, f := range n.Fields {
			s.newline()
			s.sb.WriteString(f.Name)
			s.sb.WriteString(" = ")
			s.arg(f.Value)
		}
		s.indent--
		s.newline()
		s.sb.WriteString("}")

	case *MarkupBlock:
		if list, ok := n.Body.(*MarkupList); ok {
			s.sb.WriteString("\\markuplist ")
			s.markup(&MarkupLine{Items: list.Items})
			return
		}
		s.sb.WriteString("\\markup ")
		s.markup(n.Body)

	case *VersionStatement:
		s.sb.WriteString("\\version ")
		s.quoted(n.Version)
	}
}

// container renders a delimited music list: single line when every
// element is a plain event, one element per line otherwise.
func (s *serializer) container(open, close string, elems []Music) {
	if len(elems) == 0 {
		s.sb.WriteString(open)
		s.sb.WriteString(" ")
		s.sb.WriteString(close)
		return
	}
	if inlineAll(elems) {
		s.sb.WriteString(open)
		for _, el := range elems {
			s.sb.WriteString(" ")
			s.music(el)
		}
		s.sb.WriteString(" ")
		s.sb.WriteString(close)
		return
	}
	s.sb.WriteString(open)
	s.indent++
	for _, el := range elems {
		s.newline()
		s.music(el)
	}
	s.indent--
	s.newline()
	s.sb.WriteString(close)
}

// inlineAll reports whether a music list consists only of simple events
// that read naturally on one line. A braced group counts as simple when
// its own elements do, so << { c4 } \\ { e4 } >> stays on one line.
func inlineAll(elems []Music) bool {
	for _, el := range elems {
		switch n := el.(type) {
		case *Note, *Rest, *Skip, *MultiRest, *Chord, *BarCheck,
			*ChordEntry, *Syllable, *Identifier, *SchemeMusic:
		case *Sequential:
			if !inlineAll(n.Elements) {
				return false
			}
		case *Command:
			for _, a := range n.Args {
				if _, ok := a.(*ArgMusic); ok {
					return false
				}
			}
		default:
			return false
		}
	}
	return true
}

func (s *serializer) pitch(p Pitch) {
	s.sb.WriteString(p.Name)
	for i := 0; i < p.Octave; i++ {
		s.sb.WriteString("'")
	}
	for i := 0; i > p.Octave; i-- {
		s.sb.WriteString(",")
	}
	if p.Forced {
		s.sb.WriteString("!")
	}
	if p.Cautionary {
		s.sb.WriteString("?")
	}
}

func (s *serializer) dur(d *duration.Duration) {
	if d == nil {
		return
	}
	s.sb.WriteString(d.String())
}

func (s *serializer) postEvents(events []PostEvent) {
	for _, ev := range events {
		switch ev.Kind {
		case PostTie:
			s.sb.WriteString("~")
		case PostSlurOpen:
			s.sb.WriteString("(")
		case PostSlurClose:
			s.sb.WriteString(")")
		case PostBeamOpen:
			s.sb.WriteString("[")
		case PostBeamClose:
			s.sb.WriteString("]")
		case PostGliss:
			s.sb.WriteString("\\glissando")
		case PostTremolo:
			s.sb.WriteString(":")
			s.sb.WriteString(strconv.Itoa(ev.Value))
		case PostArticulation:
			if articulationNames[ev.Name] {
				s.direction(ev.Direction, false)
				s.sb.WriteString("\\")
				s.sb.WriteString(ev.Name)
			} else {
				// Fingering: the digit itself, always behind a direction mark.
				s.direction(ev.Direction, true)
				s.sb.WriteString(ev.Name)
			}
		case PostDynamic:
			s.direction(ev.Direction, false)
			s.sb.WriteString("\\")
			s.sb.WriteString(ev.Name)
		case PostText:
			s.direction(ev.Direction, true)
			if str, ok := ev.Markup.(*MarkupString); ok {
				s.quoted(str.Text)
			} else {
				s.sb.WriteString("\\markup ")
				s.markup(ev.Markup)
			}
		}
	}
}

// direction writes the ^ / _ / - prefix. The dash is emitted even for
// neutral direction when the following token needs it to read as a
// post-event.
func (s *serializer) direction(dir int, dashWhenNeutral bool) {
	switch {
	case dir > 0:
		s.sb.WriteString("^")
	case dir < 0:
		s.sb.WriteString("_")
	case dashWhenNeutral:
		s.sb.WriteString("-")
	}
}

func (s *serializer) command(c *Command) {
	if c.Name == "\\" {
		s.sb.WriteString("\\\\")
		return
	}
	s.sb.WriteString("\\")
	s.sb.WriteString(c.Name)

	switch c.Name {
	case "tempo":
		s.tempoArgs(c.Args)
		return
	case "set", "override":
		if len(c.Args) == 2 {
			s.sb.WriteString(" ")
			s.arg(c.Args[0])
			s.sb.WriteString(" = ")
			s.arg(c.Args[1])
			return
		}
	}

	for _, a := range c.Args {
		s.sb.WriteString(" ")
		s.arg(a)
	}
}

// tempoArgs handles the metronome-mark equals sign: \tempo "x" 4 = 96.
func (s *serializer) tempoArgs(args []Arg) {
	for i := 0; i < len(args); i++ {
		s.sb.WriteString(" ")
		s.arg(args[i])
		if _, ok := args[i].(*ArgDuration); ok && i+1 < len(args) {
			s.sb.WriteString(" =")
		}
	}
}

func (s *serializer) arg(a Arg) {
	switch v := a.(type) {
	case *ArgString:
		s.quoted(v.Value)
	case *ArgNumber:
		s.sb.WriteString(strconv.Itoa(v.Value))
	case *ArgFraction:
		s.sb.WriteString(strconv.Itoa(v.Num))
		s.sb.WriteString("/")
		s.sb.WriteString(strconv.Itoa(v.Den))
	case *ArgSymbol:
		s.sb.WriteString(v.Name)
	case *ArgPitch:
		s.pitch(v.Pitch)
	case *ArgDuration:
		s.sb.WriteString(v.Dur.String())
	case *ArgCommand:
		s.sb.WriteString("\\")
		s.sb.WriteString(v.Name)
	case *ArgMusic:
		s.music(v.Music)
	case *ArgMarkup:
		s.sb.WriteString("\\markup ")
		s.markup(v.Markup)
	case *ArgScheme:
		s.sb.WriteString("#")
		s.sb.WriteString(schemeRaw(v.Value))
	}
}

func (s *serializer) markup(m Markup) {
	switch v := m.(type) {
	case *MarkupWord:
		s.sb.WriteString(v.Text)
	case *MarkupString:
		s.quoted(v.Text)
	case *MarkupNumber:
		s.sb.WriteString(v.Raw)
	case *MarkupIdent:
		s.sb.WriteString("\\")
		s.sb.WriteString(v.Name)
	case *MarkupScheme:
		s.sb.WriteString("#")
		s.sb.WriteString(schemeRaw(v.Value))
	case *MarkupCommand:
		s.sb.WriteString("\\")
		s.sb.WriteString(v.Name)
		for _, arg := range v.Args {
			s.sb.WriteString(" ")
			s.markup(arg)
		}
	case *MarkupLine:
		s.sb.WriteString("{")
		for _, item := range v.Items {
			s.sb.WriteString(" ")
			s.markup(item)
		}
		s.sb.WriteString(" }")
	case *MarkupList:
		s.sb.WriteString("{")
		for _, item := range v.Items {
			s.sb.WriteString(" ")
			s.markup(item)
		}
		s.sb.WriteString(" }")
	case *MarkupScore:
		s.sb.WriteString("\\score {")
		for _, el := range v.Elements {
			s.sb.WriteString(" ")
			s.music(el)
		}
		s.sb.WriteString(" }")
	case *MarkupPartial:
		for i, call := range v.Chain {
			if i > 0 {
				s.sb.WriteString(" ")
			}
			s.sb.WriteString("\\")
			s.sb.WriteString(call.Name)
			for _, arg := range call.Args {
				s.sb.WriteString(" ")
				s.markup(arg)
			}
		}
		s.sb.WriteString(" \\etc")
	}
}

// syllableText writes a lyric word, quoting it when it contains
// characters lyric-word tokenization would not accept.
func (s *serializer) syllableText(text string) {
	if text == "" || !plainLyricWord(text) {
		s.quoted(text)
		return
	}
	s.sb.WriteString(text)
}

func plainLyricWord(text string) bool {
	for i := 0; i < len(text); i++ {
		if !isLyricWordChar(text[i]) || isDigit(text[i]) {
			return false
		}
	}
	return true
}

// quoted writes a double-quoted string with the escapes the lexer
// understands.
func (s *serializer) quoted(text string) {
	s.sb.WriteString("\"")
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '"':
			s.sb.WriteString("\\\"")
		case '\\':
			s.sb.WriteString("\\\\")
		case '\n':
			s.sb.WriteString("\\n")
		case '\t':
			s.sb.WriteString("\\t")
		default:
			s.sb.WriteByte(text[i])
		}
	}
	s.sb.WriteString("\"")
}
