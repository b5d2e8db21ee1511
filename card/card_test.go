package card

import (
	"math/rand"
	"testing"

	"github.com/matryer/is"
)

func TestIndexRoundTrip(t *testing.T) {
	is := is.New(t)
	for i := range NumIdentities {
		c := FromIndex(i)
		is.True(c.Valid())
		is.Equal(c.Index(), i)
	}
}

func TestParse(t *testing.T) {
	is := is.New(t)
	c, err := Parse("b5")
	is.NoErr(err)
	is.Equal(c, Card{Blue, 5})
	is.Equal(c.String(), "b5")

	c, err = Parse("o3")
	is.NoErr(err)
	is.Equal(c, Card{Orange, 3})

	_, err = Parse("x3")
	is.True(err != nil)
	_, err = Parse("r6")
	is.True(err != nil)
	_, err = Parse("r")
	is.True(err != nil)
}

func TestFullComposition(t *testing.T) {
	is := is.New(t)
	comp := FullComposition()
	is.Equal(comp.Total(), DeckSize)
	is.Equal(comp.Count(Card{Red, 1}), 3)
	is.Equal(comp.Count(Card{Green, 4}), 2)
	is.Equal(comp.Count(Card{Blue, 5}), 1)
	is.True(comp.Remove(Card{Blue, 5}))
	is.True(!comp.Remove(Card{Blue, 5}))
	is.Equal(comp.Total(), DeckSize-1)
}

func TestShuffledDeckDeterministic(t *testing.T) {
	is := is.New(t)
	a := ShuffledDeck(42)
	b := ShuffledDeck(42)
	c := ShuffledDeck(43)
	is.Equal(a, b)
	is.True(CardsString(a) != CardsString(c))

	var comp Composition
	for _, cd := range a {
		comp.Add(cd)
	}
	is.Equal(comp, FullComposition())
}

func TestShuffleIsPermutation(t *testing.T) {
	is := is.New(t)
	d := NewDeck()
	Shuffle(d, rand.New(rand.NewSource(7)))
	var comp Composition
	for _, cd := range d {
		comp.Add(cd)
	}
	is.Equal(comp, FullComposition())
}

func TestCompositionValueMethods(t *testing.T) {
	is := is.New(t)
	is.Equal(FullComposition().Count(Card{Red, 1}), 3)

	full := FullComposition()
	var gone Composition
	gone.Add(Card{Red, 1})
	gone.Add(Card{Blue, 5})
	gone.Add(Card{Blue, 5})
	left := full.Minus(gone)
	is.Equal(left.Count(Card{Red, 1}), 2)
	is.Equal(left.Count(Card{Blue, 5}), 0)
	is.Equal(left.Total(), DeckSize-2)
	is.Equal(full, FullComposition())

	counts := map[string]Composition{"deck": full}
	is.Equal(counts["deck"].Total(), DeckSize)
	is.Equal(len(counts["deck"].Cards()), DeckSize)
}
