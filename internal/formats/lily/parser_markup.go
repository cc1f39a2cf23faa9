package lily

import (
	"github.com/cadenza-tools/cadenza/core/errors"
)

// markupArity fixes the argument count per markup command. Commands not
// listed take one argument. Only the shapes that matter for argument
// grouping are tracked; unknown commands default to one so nested
// content still parses.
var markupArity = map[string]int{
	"strut":         0,
	"null":          0,
	"hspace":        1,
	"vspace":        1,
	"fontsize":      2,
	"magnify":       2,
	"scale":         2,
	"translate":     2,
	"raise":         2,
	"lower":         2,
	"pad-around":    2,
	"pad-markup":    2,
	"halign":        2,
	"combine":       2,
	"with-color":    2,
	"override":      2,
	"rotate":        2,
	"auto-footnote": 2,
	"general-align": 3,
}

// parseMarkupAfterKeyword parses the argument of \markup or \markuplist.
// The markup mode stays pushed for the whole expression so word
// tokenization follows markup rules.
func (p *Parser) parseMarkupAfterKeyword() (Markup, error) {
	p.lex.PushMode(ModeMarkup)
	defer p.lex.PopMode()

	m, err := p.parseMarkup()
	if err != nil {
		return nil, err
	}
	if _, ok := m.(*markupEtc); ok {
		return nil, errors.NewParse(p.lex.Offset(), "markup content", "\\etc")
	}
	return m, nil
}

// parseMarkup parses one markup expression: a word, string, number,
// braced line, embedded expression, or command application.
func (p *Parser) parseMarkup() (Markup, error) {
	tok, err := p.lex.Next()
	if err != nil {
		return nil, err
	}

	switch tok.Kind {
	case Word:
		return &MarkupWord{Text: tok.Text}, nil

	case String:
		return &MarkupString{Text: tok.Text}, nil

	case Number:
		return &MarkupNumber{Raw: tok.Text}, nil

	case Scheme:
		return &MarkupScheme{Value: parseSchemeValue(tok.Text)}, nil

	case OpenBrace:
		line := &MarkupLine{}
		for {
			next, err := p.lex.Peek()
			if err != nil {
				return nil, err
			}
			if next.Kind == CloseBrace {
				p.lex.Next()
				return line, nil
			}
			if next.Kind == EOF {
				return nil, errors.NewParse(next.Offset, "} closing markup list", "")
			}
			item, err := p.parseMarkup()
			if err != nil {
				return nil, err
			}
			if _, ok := item.(*markupEtc); ok {
				return nil, errors.NewParse(next.Offset, "markup content", "\\etc")
			}
			line.Items = append(line.Items, item)
		}

	case CmdName:
		return p.parseMarkupCommand(tok)

	default:
		return nil, errors.NewParse(tok.Offset, "markup expression", tok.Text)
	}
}

// parseMarkupCommand parses a \name application in markup position,
// including the embedded-score form and partial chains cut off by \etc.
func (p *Parser) parseMarkupCommand(tok Token) (Markup, error) {
	switch tok.Text {
	case "etc":
		return &markupEtc{}, nil
	case "score":
		return p.parseMarkupScore()
	}

	arity, known := markupArity[tok.Text]
	if !known {
		arity = 1
	}

	// A known command with zero arguments, or an unknown command followed
	// by something that cannot start markup, is an identifier reference.
	if arity == 0 {
		return &MarkupCommand{Name: tok.Text}, nil
	}
	if !known {
		next, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if !startsMarkup(next.Kind) {
			return &MarkupIdent{Name: tok.Text}, nil
		}
	}

	args := make([]Markup, 0, arity)
	for i := 0; i < arity; i++ {
		arg, err := p.parseMarkup()
		if err != nil {
			return nil, err
		}
		if _, ok := arg.(*markupEtc); ok {
			if i != arity-1 {
				return nil, errors.NewParse(p.lex.Offset(), "markup argument", "\\etc")
			}
			return &MarkupPartial{Chain: []PartialCall{{Name: tok.Text, Args: args}}}, nil
		}
		if partial, ok := arg.(*MarkupPartial); ok {
			if i != arity-1 {
				return nil, errors.NewParse(p.lex.Offset(), "markup argument", "partial chain")
			}
			chain := append([]PartialCall{{Name: tok.Text, Args: args}}, partial.Chain...)
			return &MarkupPartial{Chain: chain}, nil
		}
		args = append(args, arg)
	}
	return &MarkupCommand{Name: tok.Text, Args: args}, nil
}

// parseMarkupScore parses \score { ... } inside markup. The body is
// ordinary music, so note mode is pushed for its extent.
func (p *Parser) parseMarkupScore() (Markup, error) {
	open, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if open.Kind != OpenBrace {
		return nil, errors.NewParse(open.Offset, "{ after \\score", open.Text)
	}
	p.lex.PushMode(ModeNotes)
	defer p.lex.PopMode()

	p.lex.Next()
	ms := &MarkupScore{}
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == CloseBrace {
			p.lex.Next()
			return ms, nil
		}
		if tok.Kind == EOF {
			return nil, errors.NewParse(tok.Offset, "} closing markup score", "")
		}
		el, err := p.parseMusicExpr()
		if err != nil {
			return nil, err
		}
		ms.Elements = append(ms.Elements, el)
	}
}

// startsMarkup reports whether a token kind can begin a markup
// expression.
func startsMarkup(k Kind) bool {
	switch k {
	case Word, String, Number, Scheme, OpenBrace, CmdName:
		return true
	}
	return false
}
