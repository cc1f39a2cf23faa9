package lily

// Markup is the closed variant type for markup content.
type Markup interface {
	isMarkup()
}

// MarkupWord is a bare word.
type MarkupWord struct {
	Text string
}

// MarkupString is a quoted string.
type MarkupString struct {
	Text string
}

// MarkupCommand is \name applied to its arguments. The argument count is
// fixed per command (see markupArity); the final argument is usually the
// content the command styles.
type MarkupCommand struct {
	Name string
	Args []Markup
}

// MarkupLine is a braced markup list: { a b c }.
type MarkupLine struct {
	Items []Markup
}

// MarkupScore is an embedded score: \score { ... } inside markup.
type MarkupScore struct {
	Elements []Music
}

// MarkupList is \markuplist content: a list of markups treated as one value.
type MarkupList struct {
	Items []Markup
}

// MarkupScheme is an embedded expression fragment in markup position.
type MarkupScheme struct {
	Value SchemeValue
}

// MarkupNumber is a numeric literal in markup position. The raw text is
// preserved for exact round-trips.
type MarkupNumber struct {
	Raw string
}

// MarkupIdent is a reference to an assigned markup: \myTitle.
type MarkupIdent struct {
	Name string
}

// PartialCall is one command of a partial chain, with the arguments that
// were supplied before the chain was cut off.
type PartialCall struct {
	Name string
	Args []Markup
}

// MarkupPartial is a command chain terminated by \etc instead of a final
// content argument. It denotes a reusable markup function and is a valid
// value, not an error.
type MarkupPartial struct {
	Chain []PartialCall
}

func (*MarkupWord) isMarkup()    {}
func (*MarkupString) isMarkup()  {}
func (*MarkupCommand) isMarkup() {}
func (*MarkupLine) isMarkup()    {}
func (*MarkupScore) isMarkup()   {}
func (*MarkupList) isMarkup()    {}
func (*MarkupScheme) isMarkup()  {}
func (*MarkupNumber) isMarkup()  {}
func (*MarkupIdent) isMarkup()   {}
func (*MarkupPartial) isMarkup() {}

// markupEtc is the internal marker produced when \etc is read where a
// markup argument was expected. It never escapes the parser.
type markupEtc struct{}

func (*markupEtc) isMarkup() {}

// SchemeValue is the closed variant type for embedded expression
// fragments. Parsing is deliberately shallow: parenthesized forms are
// balanced and kept as opaque text rather than evaluated.
type SchemeValue interface {
	isScheme()
}

// SchemeBool is #t or #f (written ##t / ##f in source).
type SchemeBool struct {
	Value bool
}

// SchemeInt is an integer literal.
type SchemeInt struct {
	Value int
}

// SchemeFloat is a floating point literal; Raw keeps the source spelling.
type SchemeFloat struct {
	Value float64
	Raw   string
}

// SchemeString is a string literal; Raw keeps the source spelling with
// quotes and escapes intact.
type SchemeString struct {
	Raw string
}

// SchemeSymbol is a quoted symbol: 'name.
type SchemeSymbol struct {
	Name string
}

// SchemeIdent is a bare identifier.
type SchemeIdent struct {
	Name string
}

// SchemeList is a parenthesized form captured verbatim, including the
// parentheses. It is never evaluated.
type SchemeList struct {
	Raw string
}

// SchemeEmbedded is embedded music-or-markup (#{ ... #}) captured verbatim.
type SchemeEmbedded struct {
	Raw string
}

// SchemeOpaque is the fallback for any datum the shallow parser does not
// classify; the raw text round-trips unchanged.
type SchemeOpaque struct {
	Raw string
}

func (*SchemeBool) isScheme()     {}
func (*SchemeInt) isScheme()      {}
func (*SchemeFloat) isScheme()    {}
func (*SchemeString) isScheme()   {}
func (*SchemeSymbol) isScheme()   {}
func (*SchemeIdent) isScheme()    {}
func (*SchemeList) isScheme()     {}
func (*SchemeEmbedded) isScheme() {}
func (*SchemeOpaque) isScheme()   {}
