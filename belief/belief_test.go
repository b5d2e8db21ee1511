package belief

import (
	"testing"

	"github.com/matryer/is"

	"github.com/facebookresearch/Hanabi-SPARTA/card"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

func TestSetBasics(t *testing.T) {
	is := is.New(t)
	r1 := card.Card{Color: card.Red, Value: 1}
	b5 := card.Card{Color: card.Blue, Value: 5}
	s := Single(r1) | Single(b5)
	is.Equal(s.Len(), 2)
	is.True(s.Has(r1))
	is.Equal(s.Cards(), []card.Card{r1, b5})
	_, ok := s.Only()
	is.True(!ok)
	only, ok := Single(b5).Only()
	is.True(ok)
	is.Equal(only, b5)
	is.Equal(ColorMask(card.Red).Len(), 5)
	is.Equal(ValueMask(3).Len(), 5)
	is.Equal(ColorMask(card.Green)&ValueMask(2), Single(card.Card{Color: card.Green, Value: 2}))
	is.Equal(All.Len(), card.NumIdentities)
}

func TestDeduceCascade(t *testing.T) {
	is := is.New(t)
	b5 := card.Card{Color: card.Blue, Value: 5}
	b4 := card.Card{Color: card.Blue, Value: 4}
	// card 0 is known to be b5; card 1 is b4 or b5; card 2 is b4, b5 or r1.
	// b5 has one copy, so card 1 must be b4; both b4s are then accounted
	// for once a b4 is also visible, leaving card 2 as r1.
	r1 := card.Card{Color: card.Red, Value: 1}
	var visible card.Composition
	visible.Add(b4)
	got := Deduce([]Set{Single(b5), Single(b4) | Single(b5), Single(b4) | Single(b5) | Single(r1)}, visible)
	is.Equal(got[0], Single(b5))
	is.Equal(got[1], Single(b4))
	is.Equal(got[2], Single(r1))
}

func TestTrackerCascade(t *testing.T) {
	is := is.New(t)
	tr := New(2)
	b5 := card.Card{Color: card.Blue, Value: 5}
	b4 := card.Card{Color: card.Blue, Value: 4}
	// player 0 holds ids 10 (b5) and 11 (b4); player 1 holds 12 (b4)
	tr.Update(Event{Kind: EventDrawn, Player: 0, CardID: 10, Card: b5})
	tr.Update(Event{Kind: EventDrawn, Player: 0, CardID: 11, Card: b4})
	tr.Update(Event{Kind: EventDrawn, Player: 1, CardID: 12, Card: b4})

	blues := ColorMask(card.Blue)
	removed := tr.Update(Event{Kind: EventHint, Player: 0, Match: ValueMask(5), Touched: []int{10}, Untouched: []int{11}})
	is.True(removed > 0)
	is.Equal(tr.CandidatesFor(0, 10), ValueMask(5))
	tr.Update(Event{Kind: EventHint, Player: 0, Match: blues, Touched: []int{10, 11}})
	is.Equal(tr.CandidatesFor(0, 10), Single(b5))
	// 11 is blue, not a five; player 0 sees one b4 in player 1's hand
	is.Equal(tr.CandidatesFor(0, 11), blues&^ValueMask(5))

	// player 1 draws every b1, b2 and b3, leaving b4 as the only option
	b3 := card.Card{Color: card.Blue, Value: 3}
	tr.Update(Event{Kind: EventDrawn, Player: 1, CardID: 13, Card: b3})
	tr.Update(Event{Kind: EventDrawn, Player: 1, CardID: 14, Card: b3})
	for _, b := range []card.Card{{Color: card.Blue, Value: 1}, {Color: card.Blue, Value: 2}} {
		for id := 20; id < 20+card.Multiplicity(b.Value); id++ {
			tr.Update(Event{Kind: EventDrawn, Player: 1, CardID: id + int(b.Value)*5, Card: b})
		}
	}
	is.Equal(tr.CandidatesFor(0, 11), Single(b4))
	// the public observer sees none of the hands
	is.True(tr.CandidatesFor(tr.PublicObserver(), 11).Len() > 1)
	// player 1 sees the card
	is.Equal(tr.CandidatesFor(1, 11), Single(b4))
}

func TestRestoreMatchesIncremental(t *testing.T) {
	is := is.New(t)
	deck := card.ShuffledDeck(5)
	tr := New(2)
	hands := [][]int{{49, 48, 47}, {46, 45, 44}}
	for p, h := range hands {
		for _, id := range h {
			tr.Update(Event{Kind: EventDrawn, Player: p, CardID: id, Card: deck[id]})
		}
	}
	c := deck[46]
	var touched, untouched []int
	for _, id := range hands[1] {
		if deck[id].Color == c.Color {
			touched = append(touched, id)
		} else {
			untouched = append(untouched, id)
		}
	}
	tr.Update(Event{Kind: EventHint, Player: 1, Match: ColorMask(c.Color), Touched: touched, Untouched: untouched})

	hinted := make([]Set, card.DeckSize)
	for id := range hinted {
		hinted[id] = tr.Hinted(id)
	}
	rt := Restore(hands, deck, hinted, card.Composition{})
	for o := 0; o < tr.NumObservers(); o++ {
		for _, h := range hands {
			for _, id := range h {
				is.Equal(rt.CandidatesFor(o, id), tr.CandidatesFor(o, id))
			}
		}
	}
}

func TestHintMask(t *testing.T) {
	is := is.New(t)
	greens := HintMask(move.NewColorHintMove(1, card.Green))
	is.Equal(greens, ColorMask(card.Green))
	is.Equal(greens.Len(), card.NumValues)
	is.True(greens.Has(card.Card{Color: card.Green, Value: 3}))
	is.True(!greens.Has(card.Card{Color: card.Red, Value: 3}))

	fours := HintMask(move.NewValueHintMove(1, 4))
	is.Equal(fours, ValueMask(4))
	is.Equal(fours.Len(), card.NumColors)

	is.True(HintMask(move.NewPlayMove(0)).Empty())
}
