package game

import (
	"errors"
	"fmt"

	"github.com/facebookresearch/Hanabi-SPARTA/belief"
	"github.com/facebookresearch/Hanabi-SPARTA/card"
)

var ErrBadDeal = errors.New("deal does not match view")

// NewFromView builds a complete game from a player's view plus a guess at the
// hidden information: the observer's own hand and the order of the remaining
// deck (deck[len-1] is drawn first). Rollouts run on such games. Belief
// trackers are restored from the view's hint constraints rather than
// replayed.
func NewFromView(v *View, own []card.Card, deck []card.Card) (*Game, error) {
	if len(own) != len(v.HandIDs[v.Observer]) {
		return nil, fmt.Errorf("%w: hand of %d cards, want %d", ErrBadDeal, len(own), len(v.HandIDs[v.Observer]))
	}
	if len(deck) != v.Deck {
		return nil, fmt.Errorf("%w: deck of %d cards, want %d", ErrBadDeal, len(deck), v.Deck)
	}
	g := &Game{
		rules:          v.Rules,
		seed:           -1,
		deckSize:       v.Deck,
		hands:          make([][]int, len(v.HandIDs)),
		piles:          v.Piles,
		discards:       v.Discards,
		revealed:       v.Revealed(),
		hints:          v.Hints,
		mistakes:       v.Mistakes,
		onturn:         v.OnTurn,
		turnnum:        v.TurnNum,
		finalCountdown: v.Countdown,
		over:           v.Over,
		history:        v.History[:len(v.History):len(v.History)],
	}
	copy(g.cards[:], deck)
	for _, d := range v.History {
		if d.CardID >= 0 {
			g.cards[d.CardID] = d.Card
		}
	}
	hinted := make([]belief.Set, card.DeckSize)
	for i := range hinted {
		hinted[i] = belief.All
	}
	for p, ids := range v.HandIDs {
		g.hands[p] = append(make([]int, 0, v.Rules.HandSize), ids...)
		for s, id := range ids {
			if p == v.Observer {
				g.cards[id] = own[s]
			} else {
				g.cards[id] = v.Hands[p][s]
			}
			hinted[id] = v.Hinted[p][s]
		}
	}
	g.tracker = belief.Restore(g.hands, g.cards[:], hinted, g.revealed)
	return g, nil
}
