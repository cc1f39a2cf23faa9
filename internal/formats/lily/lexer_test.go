package lily

import (
	"strings"
	"testing"

	"github.com/cadenza-tools/cadenza/core/errors"
)

// lexAll drains the lexer and returns all tokens up to EOF.
func lexAll(t *testing.T, lex *Lexer) []Token {
	t.Helper()
	var toks []Token
	for {
		tok, err := lex.Next()
		if err != nil {
			t.Fatalf("unexpected lex error: %v", err)
		}
		if tok.Kind == EOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

func TestLexerBasicTokens(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		kinds []Kind
		texts []string
	}{
		{
			name:  "notes with durations",
			src:   "c4 d8. e",
			kinds: []Kind{Word, Number, Word, Number, Dot, Word},
			texts: []string{"c", "4", "d", "8", ".", "e"},
		},
		{
			name:  "octave marks and accidental flags",
			src:   "c' des,!",
			kinds: []Kind{Word, Quote, Word, Comma, Exclam},
			texts: []string{"c", "'", "des", ",", "!"},
		},
		{
			name:  "braces and simultaneous",
			src:   "{ << c >> }",
			kinds: []Kind{OpenBrace, OpenSimul, Word, CloseSimul, CloseBrace},
			texts: []string{"{", "<<", "c", ">>", "}"},
		},
		{
			name:  "angle chord brackets",
			src:   "<c e g>2",
			kinds: []Kind{OpenAngle, Word, Word, Word, CloseAngle, Number},
			texts: []string{"<", "c", "e", "g", ">", "2"},
		},
		{
			name:  "commands",
			src:   "\\time 4/4 \\clef treble",
			kinds: []Kind{CmdName, Number, Slash, Number, CmdName, Word},
			texts: []string{"time", "4", "/", "4", "clef", "treble"},
		},
		{
			name:  "hyphenated command name",
			src:   "\\center-column",
			kinds: []Kind{CmdName},
			texts: []string{"center-column"},
		},
		{
			name:  "voice separator",
			src:   "\\\\",
			kinds: []Kind{CmdName},
			texts: []string{"\\"},
		},
		{
			name:  "quoted string with escapes",
			src:   `"aria \"da capo\""`,
			kinds: []Kind{String},
			texts: []string{`aria "da capo"`},
		},
		{
			name:  "post events",
			src:   "c4~ d( e) f[ g]",
			kinds: []Kind{Word, Number, Tilde, Word, OpenParen, Word, CloseParen, Word, OpenBracket, Word, CloseBracket},
			texts: []string{"c", "4", "~", "d", "(", "e", ")", "f", "[", "g", "]"},
		},
		{
			name:  "bar check and multiplier",
			src:   "R1*4 |",
			kinds: []Kind{Word, Number, Star, Number, Pipe},
			texts: []string{"R", "1", "*", "4", "|"},
		},
		{
			name:  "line comment skipped",
			src:   "c4 % a remark\nd4",
			kinds: []Kind{Word, Number, Word, Number},
			texts: []string{"c", "4", "d", "4"},
		},
		{
			name:  "block comment skipped",
			src:   "c %{ several\nlines %} d",
			kinds: []Kind{Word, Word},
			texts: []string{"c", "d"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks := lexAll(t, NewLexer(tt.src))
			if len(toks) != len(tt.kinds) {
				t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(tt.kinds), toks)
			}
			for i, tok := range toks {
				if tok.Kind != tt.kinds[i] {
					t.Errorf("token %d kind = %v, want %v", i, tok.Kind, tt.kinds[i])
				}
				if tok.Text != tt.texts[i] {
					t.Errorf("token %d text = %q, want %q", i, tok.Text, tt.texts[i])
				}
			}
		})
	}
}

func TestLexerSchemeCapture(t *testing.T) {
	tests := []struct {
		name string
		src  string
		text string
	}{
		{"boolean true", "##t", "#t"},
		{"boolean false", "##f", "#f"},
		{"integer", "#42", "42"},
		{"quoted symbol", "#'cross", "'cross"},
		{"parenthesized form verbatim", "#(set-color '(0.5 0.5 0.5))", "(set-color '(0.5 0.5 0.5))"},
		{"string datum", `#"a string"`, `"a string"`},
		{"embedded block", "#{ c4 d4 #}", "{ c4 d4 #}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lex := NewLexer(tt.src)
			tok, err := lex.Next()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tok.Kind != Scheme {
				t.Fatalf("kind = %v, want scheme", tok.Kind)
			}
			if tok.Text != tt.text {
				t.Errorf("text = %q, want %q", tok.Text, tt.text)
			}
		})
	}
}

func TestLexerChordQualityAfterColon(t *testing.T) {
	// The colon widens the next word charset so the whole quality is one
	// token, then the charset reverts.
	lex := NewLexer("c:dim7 d:6.9 e:9^7")
	lex.PushMode(ModeChords)

	var got []string
	for {
		tok, err := lex.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tok.Kind == EOF {
			break
		}
		got = append(got, tok.Text)
	}

	want := []string{"c", ":", "dim7", "d", ":", "6.9", "e", ":", "9^7"}
	if len(got) != len(want) {
		t.Fatalf("tokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLexerChordRootKeepsDurationSeparate(t *testing.T) {
	// The root word is letters only; a written duration after it stays
	// its own number token.
	lex := NewLexer("c1 d:m")
	lex.PushMode(ModeChords)

	toks := lexAll(t, lex)
	want := []struct {
		kind Kind
		text string
	}{
		{Word, "c"}, {Number, "1"},
		{Word, "d"}, {Colon, ":"}, {Word, "m"},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, tok := range toks {
		if tok.Kind != want[i].kind || tok.Text != want[i].text {
			t.Errorf("token %d = (%v, %q), want (%v, %q)", i, tok.Kind, tok.Text, want[i].kind, want[i].text)
		}
	}
}

func TestLexerLyricMode(t *testing.T) {
	lex := NewLexer("A -- ve Ma -- ri -- a __")
	lex.PushMode(ModeLyrics)

	toks := lexAll(t, lex)
	want := []struct {
		kind Kind
		text string
	}{
		{Word, "A"}, {HyphenHyphen, "--"}, {Word, "ve"},
		{Word, "Ma"}, {HyphenHyphen, "--"}, {Word, "ri"},
		{HyphenHyphen, "--"}, {Word, "a"}, {UnderUnder, "__"},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, tok := range toks {
		if tok.Kind != want[i].kind || tok.Text != want[i].text {
			t.Errorf("token %d = (%v, %q), want (%v, %q)", i, tok.Kind, tok.Text, want[i].kind, want[i].text)
		}
	}
}

func TestLexerModeStack(t *testing.T) {
	lex := NewLexer("")
	if lex.Mode() != ModeNotes {
		t.Fatalf("initial mode = %v, want notes", lex.Mode())
	}
	lex.PushMode(ModeChords)
	lex.PushMode(ModeMarkup)
	if lex.Mode() != ModeMarkup {
		t.Errorf("mode = %v, want markup", lex.Mode())
	}
	lex.PopMode()
	if lex.Mode() != ModeChords {
		t.Errorf("mode = %v, want chords", lex.Mode())
	}
	lex.PopMode()
	lex.PopMode() // base mode is never popped
	if lex.Mode() != ModeNotes {
		t.Errorf("mode = %v, want notes", lex.Mode())
	}
}

func TestLexerPeekDoesNotConsume(t *testing.T) {
	lex := NewLexer("c4")
	p1, err := lex.Peek()
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	p2, err := lex.Peek()
	if err != nil {
		t.Fatalf("second peek: %v", err)
	}
	if p1 != p2 {
		t.Errorf("repeated peeks differ: %+v vs %+v", p1, p2)
	}
	n, err := lex.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if n != p1 {
		t.Errorf("next = %+v, want peeked %+v", n, p1)
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"unterminated string", `"never closed`, "unterminated string"},
		{"string broken by newline", "\"line\nbreak\"", "unterminated string"},
		{"invalid escape", `"\q"`, "invalid escape"},
		{"stray backslash", "\\ ", "stray backslash"},
		{"unterminated block comment", "%{ forever", "unterminated block comment"},
		{"unbalanced scheme parens", "#(open", "unbalanced parentheses"},
		{"unterminated embedded block", "#{ c4", "unterminated embedded block"},
		{"stray character", "§", "unexpected character"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lex := NewLexer(tt.src)
			var err error
			for err == nil {
				var tok Token
				tok, err = lex.Next()
				if err == nil && tok.Kind == EOF {
					t.Fatal("expected a lex error, got EOF")
				}
			}
			if !errors.Is(err, errors.ErrLex) {
				t.Errorf("error does not unwrap to ErrLex: %v", err)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error = %q, want substring %q", err, tt.msg)
			}
		})
	}
}

func TestLexerOffsets(t *testing.T) {
	lex := NewLexer("  c4 \\time")
	tok, err := lex.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if tok.Offset != 2 {
		t.Errorf("first offset = %d, want 2", tok.Offset)
	}
	tok, _ = lex.Next() // 4
	if tok.Offset != 3 {
		t.Errorf("number offset = %d, want 3", tok.Offset)
	}
	tok, _ = lex.Next() // \time
	if tok.Offset != 5 {
		t.Errorf("command offset = %d, want 5", tok.Offset)
	}
}
