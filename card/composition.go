package card

import (
	"fmt"
	"strings"
)

// Composition counts cards by identity. It is used for the remaining deck,
// the discard pile and the unseen pool of a given observer.
type Composition [NumIdentities]int8

// FullComposition is the composition of a complete, undealt deck.
func FullComposition() Composition {
	var c Composition
	for i := range NumIdentities {
		c[i] = int8(Multiplicity(FromIndex(i).Value))
	}
	return c
}

func (c *Composition) Add(cd Card) {
	c[cd.Index()]++
}

// Remove takes a card out of the composition. It returns false if there was
// no copy left to remove.
func (c *Composition) Remove(cd Card) bool {
	i := cd.Index()
	if c[i] == 0 {
		return false
	}
	c[i]--
	return true
}

func (c Composition) Count(cd Card) int {
	return int(c[cd.Index()])
}

func (c Composition) Total() int {
	t := 0
	for _, n := range c {
		t += int(n)
	}
	return t
}

// Minus returns c - o, clamped at zero.
func (c Composition) Minus(o Composition) Composition {
	for i := range c {
		c[i] = max(0, c[i]-o[i])
	}
	return c
}

// Cards expands the composition in identity order.
func (c Composition) Cards() []Card {
	out := make([]Card, 0, c.Total())
	for i, n := range c {
		for range n {
			out = append(out, FromIndex(i))
		}
	}
	return out
}

func (c Composition) String() string {
	var sb strings.Builder
	for col := range NumColors {
		if col > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%c:", Color(col).Letter())
		for v := 1; v <= NumValues; v++ {
			fmt.Fprintf(&sb, "%d", c.Count(Card{Color(col), Value(v)}))
		}
	}
	return sb.String()
}
