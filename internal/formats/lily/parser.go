package lily

import (
	"strconv"

	"github.com/cadenza-tools/cadenza/core/duration"
	"github.com/cadenza-tools/cadenza/core/errors"
)

// Parser is a recursive-descent parser over the lexer's token stream:
// one function per grammar production family. A parse error aborts the
// current parse unit; no resynchronization is attempted.
type Parser struct {
	lex *Lexer
}

// Parse parses a complete source file.
func Parse(src string) (*Document, error) {
	p := &Parser{lex: NewLexer(src)}
	return p.parseDocument()
}

// ParseMusic parses a single music expression, for callers that work on
// fragments rather than whole files.
func ParseMusic(src string) (Music, error) {
	p := &Parser{lex: NewLexer(src)}
	m, err := p.parseMusicExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return m, nil
}

func (p *Parser) parseDocument() (*Document, error) {
	doc := &Document{}
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == EOF {
			return doc, nil
		}
		item, err := p.parseMusicExpr()
		if err != nil {
			return nil, err
		}
		doc.Items = append(doc.Items, item)
	}
}

func (p *Parser) expectEOF() error {
	tok, err := p.lex.Peek()
	if err != nil {
		return err
	}
	if tok.Kind != EOF {
		return errors.NewParse(tok.Offset, "end of input", tok.Text)
	}
	return nil
}

func (p *Parser) expect(kind Kind) (Token, error) {
	tok, err := p.lex.Next()
	if err != nil {
		return Token{}, err
	}
	if tok.Kind != kind {
		return Token{}, errors.NewParse(tok.Offset, kind.String(), tok.Text)
	}
	return tok, nil
}

// parseMusicExpr parses one music expression: an event, a container, a
// command application, or (in note mode) an assignment.
func (p *Parser) parseMusicExpr() (Music, error) {
	tok, err := p.lex.Next()
	if err != nil {
		return nil, err
	}

	switch tok.Kind {
	case OpenBrace:
		return p.parseSequentialRest()

	case OpenSimul:
		return p.parseSimultaneousRest()

	case OpenAngle:
		return p.parseChordRest()

	case Pipe:
		return &BarCheck{}, nil

	case Scheme:
		return &SchemeMusic{Value: parseSchemeValue(tok.Text)}, nil

	case String:
		if p.lex.Mode() == ModeLyrics {
			return p.parseSyllableRest(tok.Text)
		}
		return nil, errors.NewParse(tok.Offset, "music expression", tok.Text)

	case Word:
		return p.parseWordExpr(tok)

	case CmdName:
		return p.parseCommandExpr(tok)

	default:
		return nil, errors.NewParse(tok.Offset, "music expression", tok.Text)
	}
}

// parseSequentialRest parses { ... } after the opening brace.
func (p *Parser) parseSequentialRest() (Music, error) {
	seq := &Sequential{}
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == CloseBrace {
			p.lex.Next()
			return seq, nil
		}
		if tok.Kind == EOF {
			return nil, errors.NewParse(tok.Offset, "} closing music sequence", "")
		}
		el, err := p.parseMusicExpr()
		if err != nil {
			return nil, err
		}
		seq.Elements = append(seq.Elements, el)
	}
}

// parseSimultaneousRest parses << ... >> after the opening token.
func (p *Parser) parseSimultaneousRest() (Music, error) {
	sim := &Simultaneous{}
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == CloseSimul {
			p.lex.Next()
			return sim, nil
		}
		if tok.Kind == EOF {
			return nil, errors.NewParse(tok.Offset, ">> closing simultaneous music", "")
		}
		el, err := p.parseMusicExpr()
		if err != nil {
			return nil, err
		}
		sim.Elements = append(sim.Elements, el)
	}
}

// parseChordRest parses < pitches > duration post-events after the
// opening angle bracket.
func (p *Parser) parseChordRest() (Music, error) {
	chord := &Chord{}
	for {
		tok, err := p.lex.Next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == CloseAngle {
			break
		}
		if tok.Kind != Word {
			return nil, errors.NewParse(tok.Offset, "pitch or > closing chord", tok.Text)
		}
		pitch, err := p.parsePitchMarks(tok.Text)
		if err != nil {
			return nil, err
		}
		chord.Pitches = append(chord.Pitches, pitch)
	}
	dur, err := p.parseOptDuration()
	if err != nil {
		return nil, err
	}
	chord.Dur = dur
	post, err := p.parsePostEvents()
	if err != nil {
		return nil, err
	}
	chord.Post = post
	return chord, nil
}

// parseWordExpr handles a bare word, whose meaning depends on the lexer
// mode: a pitch or rest name in note mode, a chord root in chord mode, a
// syllable in lyric mode, or an assignment target anywhere a word is
// followed by '='.
func (p *Parser) parseWordExpr(tok Token) (Music, error) {
	next, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if next.Kind == Equals && p.lex.Mode() != ModeLyrics && p.lex.Mode() != ModeChords {
		p.lex.Next()
		value, err := p.parseArgValue()
		if err != nil {
			return nil, err
		}
		return &Assignment{Name: tok.Text, Value: value}, nil
	}

	switch p.lex.Mode() {
	case ModeChords:
		return p.parseChordEntry(tok)
	case ModeLyrics:
		return p.parseSyllableRest(tok.Text)
	}

	switch tok.Text {
	case "r":
		dur, err := p.parseOptDuration()
		if err != nil {
			return nil, err
		}
		post, err := p.parsePostEvents()
		if err != nil {
			return nil, err
		}
		return &Rest{Dur: dur, Post: post}, nil
	case "s":
		dur, err := p.parseOptDuration()
		if err != nil {
			return nil, err
		}
		return &Skip{Dur: dur}, nil
	case "R":
		dur, err := p.parseOptDuration()
		if err != nil {
			return nil, err
		}
		return &MultiRest{Dur: dur}, nil
	}

	pitch, err := p.parsePitchMarks(tok.Text)
	if err != nil {
		return nil, err
	}
	dur, err := p.parseOptDuration()
	if err != nil {
		return nil, err
	}
	post, err := p.parsePostEvents()
	if err != nil {
		return nil, err
	}
	return &Note{Pitch: pitch, Dur: dur, Post: post}, nil
}

// parsePitchMarks consumes the octave marks and accidental display flags
// following a pitch name.
func (p *Parser) parsePitchMarks(name string) (Pitch, error) {
	pitch := Pitch{Name: name}
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return pitch, err
		}
		switch tok.Kind {
		case Quote:
			pitch.Octave++
		case Comma:
			pitch.Octave--
		case Exclam:
			pitch.Forced = true
		case Question:
			pitch.Cautionary = true
		default:
			return pitch, nil
		}
		p.lex.Next()
	}
}

// parseOptDuration parses an optional duration: a power-of-two base (or
// \breve / \longa), trailing dots, and stacked *n or *n/d multipliers
// applied left to right.
func (p *Parser) parseOptDuration() (*duration.Duration, error) {
	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}

	var dur duration.Duration
	switch {
	case tok.Kind == Number:
		p.lex.Next()
		base, convErr := strconv.Atoi(tok.Text)
		if convErr != nil {
			return nil, errors.NewParse(tok.Offset, "duration", tok.Text)
		}
		dur.Base = base
	case tok.Kind == CmdName && tok.Text == "breve":
		p.lex.Next()
		dur.Base = duration.BaseBreve
	case tok.Kind == CmdName && tok.Text == "longa":
		p.lex.Next()
		dur.Base = duration.BaseLonga
	default:
		return nil, nil
	}

	for {
		next, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if next.Kind != Dot {
			break
		}
		p.lex.Next()
		dur.Dots++
	}

	for {
		next, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if next.Kind != Star {
			break
		}
		p.lex.Next()
		numTok, err := p.expect(Number)
		if err != nil {
			return nil, err
		}
		num, _ := strconv.Atoi(numTok.Text)
		den := 1
		slash, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if slash.Kind == Slash {
			p.lex.Next()
			denTok, err := p.expect(Number)
			if err != nil {
				return nil, err
			}
			den, _ = strconv.Atoi(denTok.Text)
		}
		dur = dur.WithMultiplier(num, den)
	}

	if !dur.Valid() {
		return nil, errors.NewParse(tok.Offset, "power-of-two duration", tok.Text)
	}
	return &dur, nil
}

// Dynamics recognized as post-events.
var dynamicNames = map[string]bool{
	"ppppp": true, "pppp": true, "ppp": true, "pp": true, "p": true,
	"mp": true, "mf": true,
	"f": true, "ff": true, "fff": true, "ffff": true, "fffff": true,
	"fp": true, "sf": true, "sff": true, "sp": true, "spp": true,
	"sfz": true, "rfz": true, "fz": true,
	"<": true, ">": true, "!": true,
}

// Articulations recognized as post-events.
var articulationNames = map[string]bool{
	"accent": true, "marcato": true, "staccatissimo": true, "espressivo": true,
	"staccato": true, "tenuto": true, "portato": true, "upbow": true,
	"downbow": true, "flageolet": true, "open": true, "stopped": true,
	"turn": true, "reverseturn": true, "trill": true, "prall": true,
	"mordent": true, "prallprall": true, "prallmordent": true,
	"fermata": true, "shortfermata": true, "longfermata": true,
	"verylongfermata": true, "segno": true, "coda": true, "varcoda": true,
	"arpeggio": true,
}

// Shorthand articulation characters after a direction dash.
var shorthandArticulations = map[Kind]string{
	Dot:        "staccato",
	Dash:       "tenuto",
	CloseAngle: "accent",
	Caret:      "marcato",
	Underscore: "portato",
	Plus:       "stopped",
	Exclam:     "staccatissimo",
}

// parsePostEvents collects the markers attached after a note, rest or
// chord: ties, slur and beam brackets, glissandos, tremolo subdivisions,
// articulations, dynamics, and text scripts.
func (p *Parser) parsePostEvents() ([]PostEvent, error) {
	var events []PostEvent
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case Tilde:
			p.lex.Next()
			events = append(events, PostEvent{Kind: PostTie})
		case OpenParen:
			p.lex.Next()
			events = append(events, PostEvent{Kind: PostSlurOpen})
		case CloseParen:
			p.lex.Next()
			events = append(events, PostEvent{Kind: PostSlurClose})
		case OpenBracket:
			p.lex.Next()
			events = append(events, PostEvent{Kind: PostBeamOpen})
		case CloseBracket:
			p.lex.Next()
			events = append(events, PostEvent{Kind: PostBeamClose})
		case Colon:
			p.lex.Next()
			numTok, err := p.expect(Number)
			if err != nil {
				return nil, err
			}
			value, convErr := strconv.Atoi(numTok.Text)
			if convErr != nil || value != 0 && (value < 8 || value > 64 || value&(value-1) != 0) {
				return nil, errors.NewParse(numTok.Offset, "tremolo subdivision", numTok.Text)
			}
			events = append(events, PostEvent{Kind: PostTremolo, Value: value})
		case Caret, Underscore, Dash:
			ev, ok, err := p.parseDirectedPostEvent(tok.Kind)
			if err != nil {
				return nil, err
			}
			if !ok {
				return events, nil
			}
			events = append(events, ev)
		case CmdName:
			switch {
			case tok.Text == "glissando":
				p.lex.Next()
				events = append(events, PostEvent{Kind: PostGliss, Name: "glissando"})
			case dynamicNames[tok.Text]:
				p.lex.Next()
				events = append(events, PostEvent{Kind: PostDynamic, Name: tok.Text})
			case articulationNames[tok.Text]:
				p.lex.Next()
				events = append(events, PostEvent{Kind: PostArticulation, Name: tok.Text})
			default:
				return events, nil
			}
		default:
			return events, nil
		}
	}
}

// parseDirectedPostEvent handles ^x, _x and -x forms. The caller has
// peeked the direction token; it is only consumed when the following
// token really forms a post-event, so a bare "-" (e.g. lyric content
// boundary) is left for the caller.
func (p *Parser) parseDirectedPostEvent(dirKind Kind) (PostEvent, bool, error) {
	dirTok, err := p.lex.Next()
	if err != nil {
		return PostEvent{}, false, err
	}
	direction := 0
	switch dirKind {
	case Caret:
		direction = 1
	case Underscore:
		direction = -1
	}

	tok, err := p.lex.Next()
	if err != nil {
		return PostEvent{}, false, err
	}
	if name, ok := shorthandArticulations[tok.Kind]; ok {
		return PostEvent{Kind: PostArticulation, Direction: direction, Name: name}, true, nil
	}
	switch tok.Kind {
	case String:
		return PostEvent{Kind: PostText, Direction: direction, Markup: &MarkupString{Text: tok.Text}}, true, nil
	case Number:
		// Fingering.
		return PostEvent{Kind: PostArticulation, Direction: direction, Name: tok.Text}, true, nil
	case CmdName:
		if tok.Text == "markup" {
			m, err := p.parseMarkupAfterKeyword()
			if err != nil {
				return PostEvent{}, false, err
			}
			return PostEvent{Kind: PostText, Direction: direction, Markup: m}, true, nil
		}
		if articulationNames[tok.Text] {
			return PostEvent{Kind: PostArticulation, Direction: direction, Name: tok.Text}, true, nil
		}
		if dynamicNames[tok.Text] {
			return PostEvent{Kind: PostDynamic, Direction: direction, Name: tok.Text}, true, nil
		}
	}
	return PostEvent{}, false, errors.NewParse(dirTok.Offset, "post-event after direction modifier", tok.Text)
}

// parseChordEntry parses one chord-mode symbol after its root word:
// root, optional duration, :quality, /bass. The quality and bass
// spelling are kept verbatim.
func (p *Parser) parseChordEntry(rootTok Token) (Music, error) {
	root, err := p.parsePitchMarks(rootTok.Text)
	if err != nil {
		return nil, err
	}
	entry := &ChordEntry{Root: root}

	dur, err := p.parseOptDuration()
	if err != nil {
		return nil, err
	}
	entry.Dur = dur

	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == Colon {
		p.lex.Next()
		entry.HasColon = true
		qual, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if qual.Kind == Word || qual.Kind == Number {
			p.lex.Next()
			entry.Quality = qual.Text
		}
	}

	tok, err = p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == Slash {
		p.lex.Next()
		bassTok, err := p.expect(Word)
		if err != nil {
			return nil, err
		}
		bass, err := p.parsePitchMarks(bassTok.Text)
		if err != nil {
			return nil, err
		}
		entry.Bass = &bass
	}

	return entry, nil
}

// parseSyllableRest parses the rest of a lyric event after its text:
// optional duration and the -- / __ continuation markers.
func (p *Parser) parseSyllableRest(text string) (Music, error) {
	syl := &Syllable{Text: text}
	dur, err := p.parseOptDuration()
	if err != nil {
		return nil, err
	}
	syl.Dur = dur

	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case HyphenHyphen:
		p.lex.Next()
		syl.Hyphen = true
	case UnderUnder:
		p.lex.Next()
		syl.Extender = true
	}
	return syl, nil
}
