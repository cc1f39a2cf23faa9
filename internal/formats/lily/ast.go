package lily

import (
	"github.com/cadenza-tools/cadenza/core/duration"
)

// Music is the closed variant type for musical content. Every consumer
// switches exhaustively over the concrete types below; each node owns
// its children outright, so the tree is acyclic and freely movable.
type Music interface {
	isMusic()
}

// Pitch is a note name as written: the bare name word (which may carry
// alteration suffixes like "is"/"es"), octave marks, and accidental
// display flags.
type Pitch struct {
	Name       string // e.g. "c", "cis", "ees"
	Octave     int    // count of ' marks minus count of , marks
	Forced     bool   // trailing !
	Cautionary bool   // trailing ?
}

// PostKind classifies an event attached after a note, rest or chord.
type PostKind int

// Post-event kinds.
const (
	PostTie PostKind = iota
	PostSlurOpen
	PostSlurClose
	PostBeamOpen
	PostBeamClose
	PostGliss
	PostTremolo
	PostArticulation
	PostDynamic
	PostText
)

// PostEvent is a marker following a note: ties, slur and beam brackets,
// glissandos, tremolo subdivisions, articulations, dynamics, and text
// scripts.
type PostEvent struct {
	Kind      PostKind
	Direction int    // -1 for _, +1 for ^, 0 for - or none
	Name      string // articulation or dynamic name; "glissando" label for PostGliss
	Value     int    // tremolo unit duration for PostTremolo
	Markup    Markup // text script content for PostText
}

// Note is a single pitched event.
type Note struct {
	Pitch Pitch
	Dur   *duration.Duration // nil when the duration is inherited
	Post  []PostEvent
}

// Rest is a printed rest ("r").
type Rest struct {
	Dur  *duration.Duration
	Post []PostEvent
}

// Skip is an invisible spacer ("s"). It must survive conversion as a
// distinct element, never merged into a neighboring rest.
type Skip struct {
	Dur *duration.Duration
}

// MultiRest is a whole-measure rest ("R"), possibly spanning several
// measures via a duration multiplier.
type MultiRest struct {
	Dur *duration.Duration
}

// Chord is a simultaneous stack of pitches sharing one duration.
type Chord struct {
	Pitches []Pitch
	Dur     *duration.Duration
	Post    []PostEvent
}

// Sequential is a braced music list: { a b c }.
type Sequential struct {
	Elements []Music
}

// Simultaneous is a parallel music list: << a \\ b >>.
type Simultaneous struct {
	Elements []Music
}

// Repeat is \repeat kind count body, optionally with alternatives.
type Repeat struct {
	Kind         string // "volta", "unfold", "tremolo", "percent"
	Count        int
	Body         Music
	Alternatives []Music
}

// ContextBlock introduces or addresses a notation context:
// \new Staff { ... } or \context Voice = "melody" { ... }.
type ContextBlock struct {
	Keyword string // "new" or "context"
	Type    string // "Staff", "Voice", "ChordNames", ...
	Name    string // optional = "name"
	With    Music  // optional \with { ... } block
	Body    Music
}

// BarCheck is the "|" token between events.
type BarCheck struct{}

// ModeBlock wraps music entered in another input mode, e.g.
// \chordmode { ... } or \lyricmode { ... }.
type ModeBlock struct {
	Kind string // the command as written: "chordmode", "chords", "lyricmode", "lyrics", "addlyrics"
	Body Music
}

// ChordEntry is one chord-mode symbol such as "c:dim7/f": a root, an
// optional duration, a verbatim quality text and an optional bass for
// inversions. Quality and bass spelling round-trip exactly.
type ChordEntry struct {
	Root     Pitch
	Dur      *duration.Duration
	HasColon bool
	Quality  string
	Bass     *Pitch
}

// Syllable is one lyric-mode word with optional duration and the
// continuation markers that follow it.
type Syllable struct {
	Text     string
	Dur      *duration.Duration
	Hyphen   bool // followed by --
	Extender bool // followed by __
}

// Command is a generic backslash command with typed arguments, e.g.
// \time 4/4, \clef "treble", \key c \major, \tuplet 3/2 { ... }.
type Command struct {
	Name string
	Args []Arg
}

// Identifier is a reference to an assigned music expression: \melody.
type Identifier struct {
	Name string
}

// SchemeMusic is an embedded expression fragment in music position.
type SchemeMusic struct {
	Value SchemeValue
}

// Assignment binds a name at top level: melody = { ... }.
type Assignment struct {
	Name  string
	Value Arg
}

// ScoreBlock is \score { ... }.
type ScoreBlock struct {
	Elements []Music
}

// HeaderBlock is \header { ... } with ordered field assignments.
type HeaderBlock struct {
	Fields []HeaderField
}

// HeaderField is one header assignment; the value is a string, markup,
// or scheme fragment.
type HeaderField struct {
	Name  string
	Value Arg
}

// MarkupBlock is markup in music or top-level position.
type MarkupBlock struct {
	Body Markup
}

// VersionStatement records \version "2.24.0" verbatim.
type VersionStatement struct {
	Version string
}

func (*Note) isMusic()             {}
func (*Rest) isMusic()             {}
func (*Skip) isMusic()             {}
func (*MultiRest) isMusic()        {}
func (*Chord) isMusic()            {}
func (*Sequential) isMusic()       {}
func (*Simultaneous) isMusic()     {}
func (*Repeat) isMusic()           {}
func (*ContextBlock) isMusic()     {}
func (*BarCheck) isMusic()         {}
func (*ModeBlock) isMusic()        {}
func (*ChordEntry) isMusic()       {}
func (*Syllable) isMusic()         {}
func (*Command) isMusic()          {}
func (*Identifier) isMusic()       {}
func (*SchemeMusic) isMusic()      {}
func (*Assignment) isMusic()       {}
func (*ScoreBlock) isMusic()       {}
func (*HeaderBlock) isMusic()      {}
func (*MarkupBlock) isMusic()      {}
func (*VersionStatement) isMusic() {}

// Arg is the closed variant type for command and assignment arguments.
type Arg interface {
	isArg()
}

// ArgString is a quoted string argument.
type ArgString struct {
	Value string
}

// ArgNumber is an integer argument.
type ArgNumber struct {
	Value int
}

// ArgFraction is a numeric fraction argument like 3/2 or 4/4.
type ArgFraction struct {
	Num, Den int
}

// ArgSymbol is a bare word argument, e.g. the "treble" in \clef treble.
type ArgSymbol struct {
	Name string
}

// ArgPitch is a pitch argument, e.g. the "c" in \key c \major.
type ArgPitch struct {
	Pitch Pitch
}

// ArgCommand is a nested command argument, e.g. the \major in \key c \major.
type ArgCommand struct {
	Name string
}

// ArgDuration is a duration argument, e.g. the "4." in \tempo 4. = 96.
type ArgDuration struct {
	Dur duration.Duration
}

// ArgMusic is a music argument (braced or single expression).
type ArgMusic struct {
	Music Music
}

// ArgMarkup is a markup argument.
type ArgMarkup struct {
	Markup Markup
}

// ArgScheme is an embedded expression argument.
type ArgScheme struct {
	Value SchemeValue
}

func (*ArgString) isArg()   {}
func (*ArgNumber) isArg()   {}
func (*ArgFraction) isArg() {}
func (*ArgSymbol) isArg()   {}
func (*ArgPitch) isArg()    {}
func (*ArgDuration) isArg() {}
func (*ArgCommand) isArg()  {}
func (*ArgMusic) isArg()    {}
func (*ArgMarkup) isArg()   {}
func (*ArgScheme) isArg()   {}

// Document is a parsed source file: an ordered list of top-level items.
type Document struct {
	Items []Music
}
