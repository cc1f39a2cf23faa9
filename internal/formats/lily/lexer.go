package lily

import (
	"strings"

	"github.com/cadenza-tools/cadenza/core/errors"
)

// Lexer converts source text into a token stream. It keeps an explicit
// mode stack: the parser pushes a mode when it enters a mode-switching
// construct (\chordmode, \lyricmode, \markup, ...) and pops it at the
// matching close. One lexical error is surfaced per call; the lexer does
// not recover on its own.
type Lexer struct {
	src   string
	pos   int
	modes []Mode

	peeked    *Token
	peekedErr error

	// afterColon widens the next word charset in chord mode so
	// qualities like "dim7" or "6.9" come out as a single token.
	afterColon bool
}

// NewLexer creates a lexer over src starting in note mode.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src, modes: []Mode{ModeNotes}}
}

// Mode returns the active lexer mode.
func (l *Lexer) Mode() Mode {
	return l.modes[len(l.modes)-1]
}

// PushMode enters a grammar mode. Transitions are driven by the parser
// on specific tokens, never by global flags.
func (l *Lexer) PushMode(m Mode) {
	l.modes = append(l.modes, m)
}

// PopMode leaves the current grammar mode. The base note mode is never
// popped.
func (l *Lexer) PopMode() {
	if len(l.modes) > 1 {
		l.modes = l.modes[:len(l.modes)-1]
	}
}

// Offset returns the byte offset of the next token to be produced.
func (l *Lexer) Offset() int {
	if l.peeked != nil {
		return l.peeked.Offset
	}
	return l.pos
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() (Token, error) {
	if l.peeked == nil && l.peekedErr == nil {
		tok, err := l.scan()
		if err != nil {
			l.peekedErr = err
		} else {
			l.peeked = &tok
		}
	}
	if l.peekedErr != nil {
		return Token{}, l.peekedErr
	}
	return *l.peeked, nil
}

// Next returns the next token, consuming it.
func (l *Lexer) Next() (Token, error) {
	if l.peeked != nil || l.peekedErr != nil {
		tok, err := l.peeked, l.peekedErr
		l.peeked, l.peekedErr = nil, nil
		if err != nil {
			return Token{}, err
		}
		return *tok, nil
	}
	return l.scan()
}

func (l *Lexer) scan() (Token, error) {
	if err := l.skipBlanks(); err != nil {
		return Token{}, err
	}
	start := l.pos
	if l.pos >= len(l.src) {
		return Token{Kind: EOF, Offset: start}, nil
	}

	c := l.src[l.pos]
	mode := l.Mode()

	// The widened chord-quality charset applies to exactly one token
	// after a chord-mode colon.
	afterColon := l.afterColon
	l.afterColon = false
	if afterColon && mode == ModeChords && isQualityChar(c) {
		end := l.pos
		for end < len(l.src) && isQualityChar(l.src[end]) {
			end++
		}
		text := l.src[l.pos:end]
		l.pos = end
		return Token{Kind: Word, Text: text, Offset: start}, nil
	}

	switch {
	case c == '"':
		return l.scanString()

	case c == '\\':
		return l.scanCommand()

	case c == '#':
		return l.scanScheme()

	case c == '{':
		l.pos++
		return Token{Kind: OpenBrace, Text: "{", Offset: start}, nil
	case c == '}':
		l.pos++
		return Token{Kind: CloseBrace, Text: "}", Offset: start}, nil

	case c == '<':
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '<' {
			l.pos += 2
			return Token{Kind: OpenSimul, Text: "<<", Offset: start}, nil
		}
		l.pos++
		return Token{Kind: OpenAngle, Text: "<", Offset: start}, nil
	case c == '>':
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '>' {
			l.pos += 2
			return Token{Kind: CloseSimul, Text: ">>", Offset: start}, nil
		}
		l.pos++
		return Token{Kind: CloseAngle, Text: ">", Offset: start}, nil
	}

	if mode == ModeLyrics {
		if tok, ok := l.scanLyricContinuation(start); ok {
			return tok, nil
		}
		if !isDigit(c) && isLyricWordChar(c) {
			return l.scanLyricWord()
		}
	}

	if isDigit(c) {
		return l.scanNumberOrWord()
	}

	if isLetter(c) {
		return l.scanWord()
	}

	var punct = map[byte]Kind{
		'(': OpenParen, ')': CloseParen,
		'[': OpenBracket, ']': CloseBracket,
		'~': Tilde, '/': Slash, ':': Colon, '*': Star,
		'.': Dot, '=': Equals, '|': Pipe,
		'\'': Quote, ',': Comma,
		'^': Caret, '_': Underscore, '-': Dash,
		'!': Exclam, '?': Question, '+': Plus,
	}
	if kind, ok := punct[c]; ok {
		l.pos++
		if kind == Colon && mode == ModeChords {
			l.afterColon = true
		}
		return Token{Kind: kind, Text: string(c), Offset: start}, nil
	}

	return Token{}, errors.NewLex(start, "unexpected character "+string(c))
}

// skipBlanks consumes whitespace, line comments (% ...) and block
// comments (%{ ... %}).
func (l *Lexer) skipBlanks() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.pos++
		case c == '%':
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == '{' {
				end := strings.Index(l.src[l.pos+2:], "%}")
				if end < 0 {
					return errors.NewLex(l.pos, "unterminated block comment")
				}
				l.pos += 2 + end + 2
				continue
			}
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *Lexer) scanString() (Token, error) {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '"':
			l.pos++
			return Token{Kind: String, Text: sb.String(), Offset: start}, nil
		case '\\':
			if l.pos+1 >= len(l.src) {
				return Token{}, errors.NewLex(start, "unterminated string")
			}
			esc := l.src[l.pos+1]
			switch esc {
			case '"', '\\':
				sb.WriteByte(esc)
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				return Token{}, errors.NewLex(l.pos, "invalid escape \\"+string(esc))
			}
			l.pos += 2
		case '\n':
			return Token{}, errors.NewLex(start, "unterminated string")
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
	return Token{}, errors.NewLex(start, "unterminated string")
}

func (l *Lexer) scanCommand() (Token, error) {
	start := l.pos
	l.pos++ // backslash
	if l.pos >= len(l.src) {
		return Token{}, errors.NewLex(start, "stray backslash at end of input")
	}
	// Symbolic commands: hairpins, their terminator, and the voice
	// separator \\ inside simultaneous music.
	switch l.src[l.pos] {
	case '<', '>', '!', '\\':
		text := string(l.src[l.pos])
		l.pos++
		return Token{Kind: CmdName, Text: text, Offset: start}, nil
	}
	end := l.pos
	for end < len(l.src) {
		if isLetter(l.src[end]) {
			end++
			continue
		}
		// Hyphenated command names like \center-column.
		if l.src[end] == '-' && end+1 < len(l.src) && isLetter(l.src[end+1]) && end > l.pos {
			end++
			continue
		}
		break
	}
	if end == l.pos {
		return Token{}, errors.NewLex(start, "stray backslash")
	}
	text := l.src[l.pos:end]
	l.pos = end
	return Token{Kind: CmdName, Text: text, Offset: start}, nil
}

// scanScheme captures one embedded expression datum following '#'. The
// interior of parenthesized forms is kept verbatim so the serializer can
// reproduce it byte for byte.
func (l *Lexer) scanScheme() (Token, error) {
	start := l.pos
	l.pos++ // '#'
	if l.pos >= len(l.src) {
		return Token{}, errors.NewLex(start, "incomplete scheme expression")
	}

	from := l.pos

	// Embedded music-or-markup: #{ ... #} captured verbatim.
	if l.src[l.pos] == '{' {
		end := strings.Index(l.src[l.pos:], "#}")
		if end < 0 {
			return Token{}, errors.NewLex(start, "unterminated embedded block")
		}
		l.pos += end + 2
		return Token{Kind: Scheme, Text: l.src[from:l.pos], Offset: start}, nil
	}

	if l.src[l.pos] == '\'' {
		l.pos++
		if l.pos >= len(l.src) {
			return Token{}, errors.NewLex(start, "incomplete scheme expression")
		}
	}

	if l.src[l.pos] == '(' {
		depth := 0
		for l.pos < len(l.src) {
			switch l.src[l.pos] {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					l.pos++
					return Token{Kind: Scheme, Text: l.src[from:l.pos], Offset: start}, nil
				}
			case '"':
				if err := l.skipSchemeString(); err != nil {
					return Token{}, err
				}
				continue
			}
			l.pos++
		}
		return Token{}, errors.NewLex(start, "unbalanced parentheses in scheme expression")
	}

	if l.src[l.pos] == '"' {
		if err := l.skipSchemeString(); err != nil {
			return Token{}, err
		}
		return Token{Kind: Scheme, Text: l.src[from:l.pos], Offset: start}, nil
	}

	end := l.pos
	for end < len(l.src) && !isSchemeDelimiter(l.src[end]) {
		end++
	}
	if end == from {
		return Token{}, errors.NewLex(start, "incomplete scheme expression")
	}
	l.pos = end
	return Token{Kind: Scheme, Text: l.src[from:end], Offset: start}, nil
}

// skipSchemeString advances past a double-quoted string inside a scheme
// datum, honoring backslash escapes. The raw text is preserved.
func (l *Lexer) skipSchemeString() error {
	start := l.pos
	l.pos++ // opening quote
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '\\':
			l.pos += 2
		case '"':
			l.pos++
			return nil
		default:
			l.pos++
		}
	}
	return errors.NewLex(start, "unterminated string in scheme expression")
}

func (l *Lexer) scanNumberOrWord() (Token, error) {
	start := l.pos
	end := l.pos
	for end < len(l.src) && isDigit(l.src[end]) {
		end++
	}
	// In markup mode a run like "2nd" is a word, not a number.
	if l.Mode() == ModeMarkup && end < len(l.src) && isMarkupWordChar(l.src[end]) {
		for end < len(l.src) && isMarkupWordChar(l.src[end]) {
			end++
		}
		text := l.src[start:end]
		l.pos = end
		return Token{Kind: Word, Text: text, Offset: start}, nil
	}
	text := l.src[start:end]
	l.pos = end
	return Token{Kind: Number, Text: text, Offset: start}, nil
}

func (l *Lexer) scanWord() (Token, error) {
	start := l.pos
	end := l.pos
	switch l.Mode() {
	case ModeMarkup:
		for end < len(l.src) && isMarkupWordChar(l.src[end]) {
			end++
		}
	default:
		for end < len(l.src) && isLetter(l.src[end]) {
			end++
		}
	}
	text := l.src[start:end]
	l.pos = end
	return Token{Kind: Word, Text: text, Offset: start}, nil
}

func (l *Lexer) scanLyricWord() (Token, error) {
	start := l.pos
	end := l.pos
	for end < len(l.src) && isLyricWordChar(l.src[end]) && !isDigit(l.src[end]) {
		end++
	}
	text := l.src[start:end]
	l.pos = end
	return Token{Kind: Word, Text: text, Offset: start}, nil
}

// scanLyricContinuation recognizes the standalone "--" and "__" tokens of
// lyric mode. A hyphen or underscore inside a syllable is word content.
func (l *Lexer) scanLyricContinuation(start int) (Token, bool) {
	rest := l.src[l.pos:]
	for _, cont := range []struct {
		text string
		kind Kind
	}{{"--", HyphenHyphen}, {"__", UnderUnder}} {
		if strings.HasPrefix(rest, cont.text) {
			after := l.pos + 2
			if after >= len(l.src) || isBlank(l.src[after]) {
				l.pos = after
				return Token{Kind: cont.kind, Text: cont.text, Offset: start}, true
			}
		}
	}
	return Token{}, false
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAlnum(c byte) bool {
	return isLetter(c) || isDigit(c)
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func isSchemeDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '(', ')', '{', '}', '[', ']', '"':
		return true
	}
	return false
}

func isQualityChar(c byte) bool {
	return isAlnum(c) || c == '.' || c == '+' || c == '^'
}

func isMarkupWordChar(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '{', '}', '"', '\\', '%', '#', '<', '>':
		return false
	}
	return c > ' '
}

func isLyricWordChar(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '{', '}', '"', '\\', '%', '#', '<', '>', '|', '=':
		return false
	}
	return c > ' '
}
