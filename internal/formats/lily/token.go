package lily

import "fmt"

// Kind classifies a lexical token.
type Kind int

// Token kinds. The same source characters may produce different kinds
// depending on the active lexer mode.
const (
	EOF Kind = iota
	Word
	Number
	String
	CmdName // \name, text holds the name without the backslash
	Scheme  // one embedded expression datum, text holds it verbatim without the leading #
	OpenBrace
	CloseBrace
	OpenSimul  // <<
	CloseSimul // >>
	OpenAngle
	CloseAngle
	OpenParen
	CloseParen
	OpenBracket
	CloseBracket
	Tilde
	Slash
	Colon
	Star
	Dot
	Equals
	Pipe
	Quote
	Comma
	Caret
	Underscore
	Dash
	Exclam
	Question
	Plus
	HyphenHyphen // lyric syllable hyphen "--"
	UnderUnder   // lyric extender "__"
)

var kindNames = map[Kind]string{
	EOF:          "end of input",
	Word:         "word",
	Number:       "number",
	String:       "string",
	CmdName:      "command",
	Scheme:       "scheme expression",
	OpenBrace:    "{",
	CloseBrace:   "}",
	OpenSimul:    "<<",
	CloseSimul:   ">>",
	OpenAngle:    "<",
	CloseAngle:   ">",
	OpenParen:    "(",
	CloseParen:   ")",
	OpenBracket:  "[",
	CloseBracket: "]",
	Tilde:        "~",
	Slash:        "/",
	Colon:        ":",
	Star:         "*",
	Dot:          ".",
	Equals:       "=",
	Pipe:         "|",
	Quote:        "'",
	Comma:        ",",
	Caret:        "^",
	Underscore:   "_",
	Dash:         "-",
	Exclam:       "!",
	Question:     "?",
	Plus:         "+",
	HyphenHyphen: "--",
	UnderUnder:   "__",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is one lexical unit with its byte offset into the source.
type Token struct {
	Kind   Kind
	Text   string
	Offset int
}

// Mode selects how bare words and punctuation tokenize. A bare word is a
// pitch name in note mode, a chord root or quality in chord mode, and a
// syllable in lyric mode.
type Mode int

// Lexer modes.
const (
	ModeNotes Mode = iota
	ModeChords
	ModeLyrics
	ModeMarkup
)

func (m Mode) String() string {
	switch m {
	case ModeNotes:
		return "notes"
	case ModeChords:
		return "chords"
	case ModeLyrics:
		return "lyrics"
	case ModeMarkup:
		return "markup"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}
