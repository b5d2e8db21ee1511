package belief

import (
	"math/bits"
	"strings"

	"github.com/facebookresearch/Hanabi-SPARTA/card"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

// Set is a bitset over the 25 card identities; bit i stands for
// card.FromIndex(i).
type Set uint32

const All Set = 1<<card.NumIdentities - 1

func Single(c card.Card) Set {
	return 1 << c.Index()
}

// ColorMask returns every identity of the given color.
func ColorMask(c card.Color) Set {
	return Set(1<<card.NumValues-1) << (int(c) * card.NumValues)
}

// ValueMask returns every identity of the given value.
func ValueMask(v card.Value) Set {
	var s Set
	for c := range card.NumColors {
		s |= Single(card.Card{Color: card.Color(c), Value: v})
	}
	return s
}

// HintMask returns the identities a hint move names. It is empty for any
// other kind of move.
func HintMask(m move.Move) Set {
	switch m.Action() {
	case move.MoveTypeHintColor:
		return ColorMask(m.Color())
	case move.MoveTypeHintValue:
		return ValueMask(m.Value())
	}
	return 0
}

func (s Set) Has(c card.Card) bool {
	return s&Single(c) != 0
}

func (s Set) Len() int {
	return bits.OnesCount32(uint32(s))
}

func (s Set) Empty() bool {
	return s == 0
}

// Only returns the single member of s, if s has exactly one.
func (s Set) Only() (card.Card, bool) {
	if s.Len() != 1 {
		return card.Card{}, false
	}
	return card.FromIndex(bits.TrailingZeros32(uint32(s))), true
}

func (s Set) Cards() []card.Card {
	out := make([]card.Card, 0, s.Len())
	for v := uint32(s); v != 0; v &= v - 1 {
		out = append(out, card.FromIndex(bits.TrailingZeros32(v)))
	}
	return out
}

// Filter keeps the members for which keep returns true.
func (s Set) Filter(keep func(card.Card) bool) Set {
	var out Set
	for v := uint32(s); v != 0; v &= v - 1 {
		i := bits.TrailingZeros32(v)
		if keep(card.FromIndex(i)) {
			out |= 1 << i
		}
	}
	return out
}

// Exhausted returns the identities whose every copy is accounted for in comp.
func Exhausted(comp card.Composition) Set {
	var s Set
	for i, n := range comp {
		if int(n) >= card.Multiplicity(card.FromIndex(i).Value) {
			s |= 1 << i
		}
	}
	return s
}

func (s Set) String() string {
	if s == All {
		return "*"
	}
	cs := s.Cards()
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return "{" + strings.Join(parts, ",") + "}"
}
