package game

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/facebookresearch/Hanabi-SPARTA/belief"
	"github.com/facebookresearch/Hanabi-SPARTA/card"
)

var ErrBadSetup = errors.New("bad setup")

// Setup describes a position to start a game from, without a history.
type Setup struct {
	Hands    [][]card.Card
	Piles    [card.NumColors]card.Value
	Discards []card.Card
	Hints    int
	Mistakes int
	OnTurn   int
	// DeckSize is how many of the unaccounted cards remain to be drawn;
	// -1 keeps all of them.
	DeckSize int
	// Seed orders the remaining deck.
	Seed int64
}

// NewGameFromSetup builds a game in the described position. The cards not in
// a hand, on a pile or in the discards form the deck, shuffled by the
// setup's seed.
func NewGameFromSetup(rules *Rules, s Setup) (*Game, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if len(s.Hands) != rules.NumPlayers {
		return nil, fmt.Errorf("%w: %d hands for %d players", ErrBadSetup, len(s.Hands), rules.NumPlayers)
	}
	if s.Hints < 0 || s.Hints > rules.MaxHints || s.Mistakes < 0 || s.Mistakes > rules.MaxMistakes {
		return nil, fmt.Errorf("%w: %d hints, %d mistakes remaining", ErrBadSetup, s.Hints, s.Mistakes)
	}
	if s.OnTurn < 0 || s.OnTurn >= rules.NumPlayers {
		return nil, fmt.Errorf("%w: player %d on turn", ErrBadSetup, s.OnTurn)
	}

	remaining := card.FullComposition()
	take := func(c card.Card) error {
		if !c.Valid() || !remaining.Remove(c) {
			return fmt.Errorf("%w: too many %s", ErrBadSetup, c)
		}
		return nil
	}
	var revealed, discards card.Composition
	for c, top := range s.Piles {
		for v := card.Value(1); v <= top; v++ {
			x := card.Card{Color: card.Color(c), Value: v}
			if err := take(x); err != nil {
				return nil, err
			}
			revealed.Add(x)
		}
	}
	for _, x := range s.Discards {
		if err := take(x); err != nil {
			return nil, err
		}
		revealed.Add(x)
		discards.Add(x)
	}
	for p, hand := range s.Hands {
		if len(hand) == 0 || len(hand) > rules.HandSize {
			return nil, fmt.Errorf("%w: player %d holds %d cards", ErrBadSetup, p, len(hand))
		}
		for _, x := range hand {
			if err := take(x); err != nil {
				return nil, err
			}
		}
	}

	deck := remaining.Cards()
	card.Shuffle(deck, rand.New(rand.NewSource(s.Seed)))
	if s.DeckSize >= 0 {
		if s.DeckSize > len(deck) {
			return nil, fmt.Errorf("%w: deck of %d, only %d cards left", ErrBadSetup, s.DeckSize, len(deck))
		}
		deck = deck[:s.DeckSize]
	}

	g := &Game{
		rules:    rules,
		seed:     s.Seed,
		deckSize: len(deck),
		hands:    make([][]int, rules.NumPlayers),
		piles:    s.Piles,
		discards: discards,
		revealed: revealed,
		hints:    s.Hints,
		mistakes: s.Mistakes,
		onturn:   s.OnTurn,
	}
	copy(g.cards[:], deck)
	next := len(deck)
	hinted := make([]belief.Set, card.DeckSize)
	for i := range hinted {
		hinted[i] = belief.All
	}
	for p, hand := range s.Hands {
		g.hands[p] = make([]int, 0, rules.HandSize)
		for _, x := range hand {
			g.cards[next] = x
			g.hands[p] = append(g.hands[p], next)
			next++
		}
	}
	g.tracker = belief.Restore(g.hands, g.cards[:], hinted, revealed)
	g.over = g.mistakes == 0 || g.pileTotal() == card.MaxScore
	return g, nil
}
