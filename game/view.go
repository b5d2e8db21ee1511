package game

import (
	"github.com/facebookresearch/Hanabi-SPARTA/belief"
	"github.com/facebookresearch/Hanabi-SPARTA/card"
)

// View is what one player is allowed to know: every public counter, the full
// history, every other player's cards, and candidate sets for their own.
// A View is an immutable snapshot; it shares nothing mutable with the Game
// that produced it.
type View struct {
	Rules     *Rules
	Observer  int
	OnTurn    int
	TurnNum   int
	Hints     int
	Mistakes  int
	Deck      int
	Countdown int
	Over      bool

	Piles    [card.NumColors]card.Value
	Discards card.Composition

	// HandIDs holds the card ids of every hand; ids are public.
	HandIDs [][]int
	// Hands holds the cards of every hand; the observer's own entries are
	// zero values.
	Hands [][]card.Card
	// Own holds the observer's candidate sets for their own slots.
	Own []belief.Set
	// Public holds the common-knowledge candidate sets of every slot.
	Public [][]belief.Set
	// Hinted holds the raw hint constraint on every slot.
	Hinted [][]belief.Set

	History []Delta
}

// ViewFor builds the given player's view of the game.
func (g *Game) ViewFor(p int) *View {
	n := g.rules.NumPlayers
	pub := g.tracker.PublicObserver()
	v := &View{
		Rules:     g.rules,
		Observer:  p,
		OnTurn:    g.onturn,
		TurnNum:   g.turnnum,
		Hints:     g.hints,
		Mistakes:  g.mistakes,
		Deck:      g.deckSize,
		Countdown: g.finalCountdown,
		Over:      g.over,
		Piles:     g.piles,
		Discards:  g.discards,
		HandIDs:   make([][]int, n),
		Hands:     make([][]card.Card, n),
		Public:    make([][]belief.Set, n),
		Hinted:    make([][]belief.Set, n),
		History:   g.History(),
	}
	for q, hand := range g.hands {
		v.HandIDs[q] = append([]int(nil), hand...)
		v.Hands[q] = make([]card.Card, len(hand))
		v.Public[q] = make([]belief.Set, len(hand))
		v.Hinted[q] = make([]belief.Set, len(hand))
		for s, id := range hand {
			if q != p {
				v.Hands[q][s] = g.cards[id]
			}
			v.Public[q][s] = g.tracker.CandidatesFor(pub, id)
			v.Hinted[q][s] = g.tracker.Hinted(id)
		}
	}
	v.Own = make([]belief.Set, len(g.hands[p]))
	for s, id := range g.hands[p] {
		v.Own[s] = g.tracker.CandidatesFor(p, id)
	}
	return v
}

func (v *View) NumPlayers() int    { return v.Rules.NumPlayers }
func (v *View) PlayerOnTurn() int  { return v.OnTurn }
func (v *View) HintStones() int    { return v.Hints }
func (v *View) MaxHintStones() int { return v.Rules.MaxHints }
func (v *View) HandSize(p int) int { return len(v.HandIDs[p]) }

func (v *View) CardAt(p, slot int) (card.Card, bool) {
	if p == v.Observer || slot < 0 || slot >= len(v.Hands[p]) {
		return card.Card{}, false
	}
	return v.Hands[p][slot], true
}

// MyTurn is true when the observer is on turn.
func (v *View) MyTurn() bool {
	return !v.Over && v.OnTurn == v.Observer
}

func (v *View) Score() int {
	t := 0
	for _, p := range v.Piles {
		t += int(p)
	}
	return scoreOf(v.Rules, t, v.Mistakes)
}

// Revealed is the composition of every played and discarded card.
func (v *View) Revealed() card.Composition {
	comp := v.Discards
	for c, top := range v.Piles {
		for val := card.Value(1); val <= top; val++ {
			comp.Add(card.Card{Color: card.Color(c), Value: val})
		}
	}
	return comp
}

// Visible is the composition of every card the observer can see.
func (v *View) Visible() card.Composition {
	comp := v.Revealed()
	for q, hand := range v.Hands {
		if q == v.Observer {
			continue
		}
		for _, c := range hand {
			comp.Add(c)
		}
	}
	return comp
}

// Unseen is the composition of the observer's own hand plus the deck.
func (v *View) Unseen() card.Composition {
	return card.FullComposition().Minus(v.Visible())
}

func (v *View) IsPlayable(c card.Card) bool {
	return v.Piles[c.Color]+1 == c.Value
}

// IsDead is true for a card that can never be played: its pile is past it,
// or a lower card of its color is gone for good.
func (v *View) IsDead(c card.Card) bool {
	if c.Value <= v.Piles[c.Color] {
		return true
	}
	for val := v.Piles[c.Color] + 1; val < c.Value; val++ {
		lower := card.Card{Color: c.Color, Value: val}
		if v.Discards.Count(lower) >= card.Multiplicity(val) {
			return true
		}
	}
	return false
}

// IsCritical is true for a live card whose every other copy is discarded.
func (v *View) IsCritical(c card.Card) bool {
	return !v.IsDead(c) && v.Discards.Count(c) == card.Multiplicity(c.Value)-1
}

// MaxAchievable is the best score still reachable given the discards.
func (v *View) MaxAchievable() int {
	t := 0
	for c := range card.NumColors {
		top := v.Piles[c]
		for val := top + 1; val <= card.NumValues; val++ {
			if v.Discards.Count(card.Card{Color: card.Color(c), Value: val}) >= card.Multiplicity(val) {
				break
			}
			top = val
		}
		t += int(top)
	}
	return t
}

// ViewAs returns the view of another seat under the hypothesis that the
// observer's own hand is assumed. The other seat's own candidate sets are
// rederived from the hint constraints and what that seat would see.
func (v *View) ViewAs(other int, assumed []card.Card) *View {
	w := *v
	w.Observer = other
	w.Hands = make([][]card.Card, len(v.Hands))
	copy(w.Hands, v.Hands)
	w.Hands[v.Observer] = append([]card.Card(nil), assumed...)
	w.Hands[other] = make([]card.Card, len(v.Hands[other]))
	w.Own = belief.Deduce(v.Hinted[other], w.Visible())
	return &w
}

// Assume returns the observer's view under the hypothesis that seat, which
// must be another player, holds hand. The observer's own candidate sets are
// rederived for the changed cards in sight.
func (v *View) Assume(seat int, hand []card.Card) *View {
	w := *v
	w.Hands = make([][]card.Card, len(v.Hands))
	copy(w.Hands, v.Hands)
	w.Hands[seat] = append([]card.Card(nil), hand...)
	w.Own = belief.Deduce(v.Hinted[v.Observer], w.Visible())
	return &w
}

// Unrevealed is the composition of every card not yet played or discarded:
// what a spectator who sees no hands knows about hands and deck together.
func (v *View) Unrevealed() card.Composition {
	return card.FullComposition().Minus(v.Revealed())
}
