package card

import (
	"math/rand"
)

// NewDeck returns the 50 cards in a fixed order (color-major, value-minor).
func NewDeck() []Card {
	comp := FullComposition()
	return comp.Cards()
}

// ShuffledDeck returns a deck permuted by the given seed. The permutation
// uses j = r mod (i+1) so that a seed reproduces the same deal on every
// platform. Cards are drawn from the end of the returned slice.
func ShuffledDeck(seed int64) []Card {
	d := NewDeck()
	Shuffle(d, rand.New(rand.NewSource(seed)))
	return d
}

// Source is the subset of a random generator that Shuffle needs.
type Source interface {
	Uint64() uint64
}

func Shuffle(cards []Card, src Source) {
	for i := range cards {
		j := int(src.Uint64() % uint64(i+1))
		cards[i], cards[j] = cards[j], cards[i]
	}
}
