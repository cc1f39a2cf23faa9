// Package duration provides the note value model shared by the notation
// pipelines: a power-of-two base value, augmentation dots, and an ordered
// list of rational multipliers.
package duration

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Named long values. Base normally holds the power-of-two denominator of
// the note value (1 = whole, 2 = half, ... 128); values longer than a
// whole note use these negative markers.
const (
	BaseBreve = -1 // twice a whole note
	BaseLonga = -2 // four times a whole note
)

// MaxBase is the shortest representable note value.
const MaxBase = 128

// Ratio is a rational duration multiplier.
type Ratio struct {
	Num int `json:"num"`
	Den int `json:"den"`
}

// String renders the multiplier the way it appears in source text.
func (r Ratio) String() string {
	if r.Den == 1 {
		return strconv.Itoa(r.Num)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Duration is a note value: base, dot count, and stacked multipliers
// applied left to right.
type Duration struct {
	Base        int     `json:"base"`
	Dots        int     `json:"dots,omitempty"`
	Multipliers []Ratio `json:"multipliers,omitempty"`
}

// New creates a Duration with the given base and dot count.
func New(base, dots int) Duration {
	return Duration{Base: base, Dots: dots}
}

// Valid reports whether the base is a power of two <= MaxBase or a named
// long value, with a non-negative dot count and well-formed multipliers.
func (d Duration) Valid() bool {
	if d.Dots < 0 {
		return false
	}
	for _, m := range d.Multipliers {
		if m.Num <= 0 || m.Den <= 0 {
			return false
		}
	}
	switch d.Base {
	case BaseBreve, BaseLonga:
		return true
	}
	if d.Base < 1 || d.Base > MaxBase {
		return false
	}
	return d.Base&(d.Base-1) == 0
}

// Beats returns the duration in quarter-note beats: 4/base for the plain
// value, times 2-2^(-dots) for the dots, then each multiplier in order.
func (d Duration) Beats() float64 {
	var beats float64
	switch d.Base {
	case BaseBreve:
		beats = 8
	case BaseLonga:
		beats = 16
	default:
		beats = 4 / float64(d.Base)
	}
	beats *= 2 - math.Pow(2, -float64(d.Dots))
	for _, m := range d.Multipliers {
		beats *= float64(m.Num) / float64(m.Den)
	}
	return beats
}

// WithMultiplier returns a copy of d with an additional multiplier appended.
func (d Duration) WithMultiplier(num, den int) Duration {
	ms := make([]Ratio, len(d.Multipliers), len(d.Multipliers)+1)
	copy(ms, d.Multipliers)
	d.Multipliers = append(ms, Ratio{Num: num, Den: den})
	return d
}

// Equal reports structural equality including multiplier order.
func (d Duration) Equal(o Duration) bool {
	if d.Base != o.Base || d.Dots != o.Dots || len(d.Multipliers) != len(o.Multipliers) {
		return false
	}
	for i, m := range d.Multipliers {
		if m != o.Multipliers[i] {
			return false
		}
	}
	return true
}

// String renders the duration in canonical source form, e.g. "8..*2/3".
func (d Duration) String() string {
	var sb strings.Builder
	switch d.Base {
	case BaseBreve:
		sb.WriteString("\\breve")
	case BaseLonga:
		sb.WriteString("\\longa")
	default:
		sb.WriteString(strconv.Itoa(d.Base))
	}
	for i := 0; i < d.Dots; i++ {
		sb.WriteByte('.')
	}
	for _, m := range d.Multipliers {
		sb.WriteByte('*')
		sb.WriteString(m.String())
	}
	return sb.String()
}
