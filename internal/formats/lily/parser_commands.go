package lily

import (
	"strconv"
	"strings"

	"github.com/cadenza-tools/cadenza/core/errors"
)

// parseCommandExpr dispatches a backslash command in music position.
// Commands with known argument shapes are parsed into typed Command
// nodes; anything else is an Identifier reference to an assigned
// expression.
func (p *Parser) parseCommandExpr(tok Token) (Music, error) {
	switch tok.Text {
	case "version":
		str, err := p.expect(String)
		if err != nil {
			return nil, err
		}
		return &VersionStatement{Version: str.Text}, nil

	case "header":
		return p.parseHeaderBlock()

	case "score":
		return p.parseScoreBlock()

	case "markup":
		m, err := p.parseMarkupAfterKeyword()
		if err != nil {
			return nil, err
		}
		return &MarkupBlock{Body: m}, nil

	case "markuplist":
		m, err := p.parseMarkupAfterKeyword()
		if err != nil {
			return nil, err
		}
		if line, ok := m.(*MarkupLine); ok {
			return &MarkupBlock{Body: &MarkupList{Items: line.Items}}, nil
		}
		return &MarkupBlock{Body: &MarkupList{Items: []Markup{m}}}, nil

	case "new", "context":
		return p.parseContextBlock(tok.Text)

	case "repeat":
		return p.parseRepeat()

	case "chordmode", "chords":
		return p.parseModeBlock(ModeChords, tok.Text)

	case "lyricmode", "lyrics", "addlyrics":
		return p.parseModeBlock(ModeLyrics, tok.Text)

	case "relative":
		return p.parseRelative()

	case "tuplet":
		return p.parseTuplet()

	case "time":
		frac, err := p.parseFraction()
		if err != nil {
			return nil, err
		}
		return &Command{Name: "time", Args: []Arg{frac}}, nil

	case "key":
		pitchTok, err := p.expect(Word)
		if err != nil {
			return nil, err
		}
		pitch, err := p.parsePitchMarks(pitchTok.Text)
		if err != nil {
			return nil, err
		}
		modeTok, err := p.expect(CmdName)
		if err != nil {
			return nil, err
		}
		return &Command{Name: "key", Args: []Arg{&ArgPitch{Pitch: pitch}, &ArgCommand{Name: modeTok.Text}}}, nil

	case "clef", "bar", "language":
		arg, err := p.parseStringOrSymbol()
		if err != nil {
			return nil, err
		}
		return &Command{Name: tok.Text, Args: []Arg{arg}}, nil

	case "tempo":
		return p.parseTempo()

	case "partial":
		dur, err := p.parseOptDuration()
		if err != nil {
			return nil, err
		}
		if dur == nil {
			return nil, errors.NewParse(p.lex.Offset(), "duration after \\partial", "")
		}
		return &Command{Name: "partial", Args: []Arg{&ArgDuration{Dur: *dur}}}, nil

	case "set", "override":
		return p.parsePropertyCommand(tok.Text, true)

	case "unset", "revert":
		return p.parsePropertyCommand(tok.Text, false)

	case "\\":
		return &Command{Name: "\\"}, nil

	case "etc":
		return nil, errors.NewParse(tok.Offset, "markup context for \\etc", tok.Text)

	default:
		return &Identifier{Name: tok.Text}, nil
	}
}

// parseHeaderBlock parses \header { name = value ... }.
func (p *Parser) parseHeaderBlock() (Music, error) {
	if _, err := p.expect(OpenBrace); err != nil {
		return nil, err
	}
	block := &HeaderBlock{}
	for {
		tok, err := p.lex.Next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == CloseBrace {
			return block, nil
		}
		if tok.Kind != Word {
			return nil, errors.NewParse(tok.Offset, "header field name or }", tok.Text)
		}
		if _, err := p.expect(Equals); err != nil {
			return nil, err
		}
		value, err := p.parseArgValue()
		if err != nil {
			return nil, err
		}
		block.Fields = append(block.Fields, HeaderField{Name: tok.Text, Value: value})
	}
}

// parseScoreBlock parses \score { ... }.
func (p *Parser) parseScoreBlock() (Music, error) {
	if _, err := p.expect(OpenBrace); err != nil {
		return nil, err
	}
	block := &ScoreBlock{}
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == CloseBrace {
			p.lex.Next()
			return block, nil
		}
		if tok.Kind == EOF {
			return nil, errors.NewParse(tok.Offset, "} closing \\score", "")
		}
		el, err := p.parseMusicExpr()
		if err != nil {
			return nil, err
		}
		block.Elements = append(block.Elements, el)
	}
}

// parseContextBlock parses \new Type [= "name"] [\with { ... }] body.
func (p *Parser) parseContextBlock(keyword string) (Music, error) {
	typeTok, err := p.expect(Word)
	if err != nil {
		return nil, err
	}
	block := &ContextBlock{Keyword: keyword, Type: typeTok.Text}

	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == Equals {
		p.lex.Next()
		nameTok, err := p.lex.Next()
		if err != nil {
			return nil, err
		}
		if nameTok.Kind != String && nameTok.Kind != Word {
			return nil, errors.NewParse(nameTok.Offset, "context name", nameTok.Text)
		}
		block.Name = nameTok.Text
	}

	tok, err = p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == CmdName && tok.Text == "with" {
		p.lex.Next()
		with, err := p.parseMusicExpr()
		if err != nil {
			return nil, err
		}
		block.With = with
	}

	body, err := p.parseMusicExpr()
	if err != nil {
		return nil, err
	}
	block.Body = body
	return block, nil
}

// parseRepeat parses \repeat kind count body [\alternative { ... }].
func (p *Parser) parseRepeat() (Music, error) {
	kindTok, err := p.expect(Word)
	if err != nil {
		return nil, err
	}
	countTok, err := p.expect(Number)
	if err != nil {
		return nil, err
	}
	count, convErr := strconv.Atoi(countTok.Text)
	if convErr != nil || count < 1 {
		return nil, errors.NewParse(countTok.Offset, "repeat count", countTok.Text)
	}
	body, err := p.parseMusicExpr()
	if err != nil {
		return nil, err
	}
	rep := &Repeat{Kind: kindTok.Text, Count: count, Body: body}

	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == CmdName && tok.Text == "alternative" {
		p.lex.Next()
		if _, err := p.expect(OpenBrace); err != nil {
			return nil, err
		}
		for {
			tok, err := p.lex.Peek()
			if err != nil {
				return nil, err
			}
			if tok.Kind == CloseBrace {
				p.lex.Next()
				break
			}
			alt, err := p.parseMusicExpr()
			if err != nil {
				return nil, err
			}
			rep.Alternatives = append(rep.Alternatives, alt)
		}
	}
	return rep, nil
}

// parseModeBlock parses a mode-switching command and its braced body.
// The mode is pushed before the opening brace is consumed and popped at
// the matching close, so the body tokenizes under the new mode.
func (p *Parser) parseModeBlock(mode Mode, kindName string) (Music, error) {
	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind != OpenBrace {
		return nil, errors.NewParse(tok.Offset, "{ after \\"+kindName, tok.Text)
	}
	p.lex.PushMode(mode)
	defer p.lex.PopMode()

	p.lex.Next()
	body, err := p.parseSequentialRest()
	if err != nil {
		return nil, err
	}
	return &ModeBlock{Kind: kindName, Body: body}, nil
}

// parseRelative parses \relative [pitch] music.
func (p *Parser) parseRelative() (Music, error) {
	cmd := &Command{Name: "relative"}
	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == Word {
		p.lex.Next()
		pitch, err := p.parsePitchMarks(tok.Text)
		if err != nil {
			return nil, err
		}
		cmd.Args = append(cmd.Args, &ArgPitch{Pitch: pitch})
	}
	body, err := p.parseMusicExpr()
	if err != nil {
		return nil, err
	}
	cmd.Args = append(cmd.Args, &ArgMusic{Music: body})
	return cmd, nil
}

// parseTuplet parses \tuplet n/d music.
func (p *Parser) parseTuplet() (Music, error) {
	frac, err := p.parseFraction()
	if err != nil {
		return nil, err
	}
	body, err := p.parseMusicExpr()
	if err != nil {
		return nil, err
	}
	return &Command{Name: "tuplet", Args: []Arg{frac, &ArgMusic{Music: body}}}, nil
}

// parseTempo parses \tempo ["text"] [duration = number].
func (p *Parser) parseTempo() (Music, error) {
	cmd := &Command{Name: "tempo"}

	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == String {
		p.lex.Next()
		cmd.Args = append(cmd.Args, &ArgString{Value: tok.Text})
		tok, err = p.lex.Peek()
		if err != nil {
			return nil, err
		}
	}

	if tok.Kind == Number {
		dur, err := p.parseOptDuration()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(Equals); err != nil {
			return nil, err
		}
		bpmTok, err := p.expect(Number)
		if err != nil {
			return nil, err
		}
		bpm, _ := strconv.Atoi(bpmTok.Text)
		cmd.Args = append(cmd.Args, &ArgDuration{Dur: *dur}, &ArgNumber{Value: bpm})
	}

	if len(cmd.Args) == 0 {
		return nil, errors.NewParse(tok.Offset, "tempo text or metronome mark", tok.Text)
	}
	return cmd, nil
}

// parsePropertyCommand parses \set/\override path = value and
// \unset/\revert path.
func (p *Parser) parsePropertyCommand(name string, hasValue bool) (Music, error) {
	var path strings.Builder
	first, err := p.expect(Word)
	if err != nil {
		return nil, err
	}
	path.WriteString(first.Text)
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind != Dot {
			break
		}
		p.lex.Next()
		seg, err := p.expect(Word)
		if err != nil {
			return nil, err
		}
		path.WriteByte('.')
		path.WriteString(seg.Text)
	}

	cmd := &Command{Name: name, Args: []Arg{&ArgSymbol{Name: path.String()}}}
	if hasValue {
		if _, err := p.expect(Equals); err != nil {
			return nil, err
		}
		value, err := p.parseArgValue()
		if err != nil {
			return nil, err
		}
		cmd.Args = append(cmd.Args, value)
	}
	return cmd, nil
}

// parseFraction parses n/d.
func (p *Parser) parseFraction() (Arg, error) {
	numTok, err := p.expect(Number)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(Slash); err != nil {
		return nil, err
	}
	denTok, err := p.expect(Number)
	if err != nil {
		return nil, err
	}
	num, _ := strconv.Atoi(numTok.Text)
	den, _ := strconv.Atoi(denTok.Text)
	if num < 1 || den < 1 {
		return nil, errors.NewParse(numTok.Offset, "positive fraction", numTok.Text+"/"+denTok.Text)
	}
	return &ArgFraction{Num: num, Den: den}, nil
}

// parseStringOrSymbol accepts a quoted string or a bare word argument.
func (p *Parser) parseStringOrSymbol() (Arg, error) {
	tok, err := p.lex.Next()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case String:
		return &ArgString{Value: tok.Text}, nil
	case Word:
		return &ArgSymbol{Name: tok.Text}, nil
	}
	return nil, errors.NewParse(tok.Offset, "string or symbol", tok.Text)
}

// parseArgValue parses the right-hand side of an assignment, header
// field, or property command: a string, number, embedded expression,
// markup, or music expression.
func (p *Parser) parseArgValue() (Arg, error) {
	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case String:
		p.lex.Next()
		return &ArgString{Value: tok.Text}, nil
	case Number:
		p.lex.Next()
		n, convErr := strconv.Atoi(tok.Text)
		if convErr != nil {
			return nil, errors.NewParse(tok.Offset, "number", tok.Text)
		}
		return &ArgNumber{Value: n}, nil
	case Scheme:
		p.lex.Next()
		return &ArgScheme{Value: parseSchemeValue(tok.Text)}, nil
	case CmdName:
		if tok.Text == "markup" || tok.Text == "markuplist" {
			p.lex.Next()
			m, err := p.parseMarkupAfterKeyword()
			if err != nil {
				return nil, err
			}
			return &ArgMarkup{Markup: m}, nil
		}
	}
	music, err := p.parseMusicExpr()
	if err != nil {
		return nil, err
	}
	return &ArgMusic{Music: music}, nil
}
