// Package game encapsulates the mechanics of Hanabi: dealing, applying
// validated moves, scoring, and deciding when the game is over. The Game is
// the only authority over game state. Agents never see it; they get
// immutable per-player Views.
package game

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/facebookresearch/Hanabi-SPARTA/belief"
	"github.com/facebookresearch/Hanabi-SPARTA/card"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

// Game is the authoritative game state.
type Game struct {
	rules *Rules
	seed  int64

	// cards holds the identity of every card id. A card id is the card's
	// position in the initial shuffled deck, so ids [0, deckSize) are the
	// undrawn cards and the next card drawn is deckSize-1.
	cards    [card.DeckSize]card.Card
	deckSize int

	hands    [][]int
	piles    [card.NumColors]card.Value
	discards card.Composition
	revealed card.Composition

	hints    int
	mistakes int

	onturn         int
	turnnum        int
	finalCountdown int
	over           bool

	history []Delta
	tracker *belief.Tracker
}

// NewGame deals a fresh game from the seed. Player 0 moves first.
func NewGame(rules *Rules, seed int64) (*Game, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	g := &Game{
		rules:    rules,
		seed:     seed,
		deckSize: card.DeckSize,
		hints:    rules.MaxHints,
		mistakes: rules.MaxMistakes,
		hands:    make([][]int, rules.NumPlayers),
		tracker:  belief.New(rules.NumPlayers),
	}
	copy(g.cards[:], card.ShuffledDeck(seed))
	for p := range rules.NumPlayers {
		g.hands[p] = make([]int, 0, rules.HandSize)
		for range rules.HandSize {
			g.draw(p)
		}
	}
	log.Debug().Int64("seed", seed).Int("players", rules.NumPlayers).Msg("dealt-game")
	return g, nil
}

// Start is shorthand for a game with default rules.
func Start(seed int64, numPlayers int) (*Game, error) {
	rules, err := NewRules(numPlayers)
	if err != nil {
		return nil, err
	}
	return NewGame(rules, seed)
}

func (g *Game) draw(p int) (int, int) {
	if g.deckSize == 0 {
		return -1, 0
	}
	g.deckSize--
	id := g.deckSize
	g.hands[p] = append(g.hands[p], id)
	removed := g.tracker.Update(belief.Event{Kind: belief.EventDrawn, Player: p, CardID: id, Card: g.cards[id]})
	return id, removed
}

func (g *Game) removeSlot(p, slot int) int {
	id := g.hands[p][slot]
	g.hands[p] = append(g.hands[p][:slot], g.hands[p][slot+1:]...)
	return id
}

// ApplyMove validates and applies a move for the player on turn.
func (g *Game) ApplyMove(m move.Move) (Delta, error) {
	return g.ApplyMoveAs(g.onturn, m)
}

// ApplyMoveAs validates and applies a move on behalf of a player. An illegal
// move returns an *IllegalMoveError and leaves the game untouched. Any move
// after the game is over is a protocol violation.
func (g *Game) ApplyMoveAs(player int, m move.Move) (Delta, error) {
	if g.over {
		return Delta{}, fmt.Errorf("%w: move %s after game over", ErrProtocolViolation, m.ShortDescription())
	}
	if err := Validate(g, player, m); err != nil {
		return Delta{}, err
	}
	d := Delta{Turn: g.turnnum, Actor: player, Move: m, CardID: -1, DrawnID: -1}

	switch m.Action() {
	case move.MoveTypePlay, move.MoveTypeDiscard:
		id := g.removeSlot(player, m.Slot())
		c := g.cards[id]
		d.CardID, d.Card = id, c
		g.revealed.Add(c)
		if m.Action() == move.MoveTypePlay && g.piles[c.Color]+1 == c.Value {
			g.piles[c.Color] = c.Value
			d.Success = true
			if c.Value == card.NumValues && g.hints < g.rules.MaxHints {
				g.hints++
			}
		} else {
			g.discards.Add(c)
			if m.Action() == move.MoveTypePlay {
				g.mistakes--
			} else {
				g.hints++
			}
		}
		d.BeliefDelta += g.tracker.Update(belief.Event{Kind: belief.EventRevealed, CardID: id, Card: c})
		var removed int
		d.DrawnID, removed = g.draw(player)
		d.BeliefDelta += removed

	case move.MoveTypeHintColor, move.MoveTypeHintValue:
		g.hints--
		t := m.Target()
		var untouched []int
		for slot, id := range g.hands[t] {
			if m.Touches(g.cards[id]) {
				d.Touched = append(d.Touched, id)
				d.TouchedSlots = append(d.TouchedSlots, slot)
			} else {
				untouched = append(untouched, id)
			}
		}
		d.BeliefDelta = g.tracker.Update(belief.Event{
			Kind: belief.EventHint, Player: t, Match: belief.HintMask(m),
			Touched: d.Touched, Untouched: untouched})
	}

	d.HintsAfter, d.MistakesAfter = g.hints, g.mistakes
	g.history = append(g.history, d)
	g.onturn = (g.onturn + 1) % g.rules.NumPlayers
	g.turnnum++
	if g.deckSize == 0 {
		g.finalCountdown++
	}
	g.over = g.mistakes == 0 || g.pileTotal() == card.MaxScore ||
		(g.deckSize == 0 && g.finalCountdown == g.rules.NumPlayers+1)
	return d, nil
}

func (g *Game) pileTotal() int {
	t := 0
	for _, v := range g.piles {
		t += int(v)
	}
	return t
}

// Score is the sum of the piles, adjusted if the team ran out of mistake
// tokens.
func (g *Game) Score() int {
	return scoreOf(g.rules, g.pileTotal(), g.mistakes)
}

func scoreOf(r *Rules, total, mistakes int) int {
	if mistakes > 0 {
		return total
	}
	if r.Bomb0 {
		return 0
	}
	return max(0, total-r.BombD)
}

func (g *Game) IsOver() bool                      { return g.over }
func (g *Game) Rules() *Rules                     { return g.rules }
func (g *Game) Seed() int64                       { return g.seed }
func (g *Game) NumPlayers() int                   { return g.rules.NumPlayers }
func (g *Game) PlayerOnTurn() int                 { return g.onturn }
func (g *Game) Turn() int                         { return g.turnnum }
func (g *Game) HintStones() int                   { return g.hints }
func (g *Game) MaxHintStones() int                { return g.rules.MaxHints }
func (g *Game) MistakesRemaining() int            { return g.mistakes }
func (g *Game) DeckRemaining() int                { return g.deckSize }
func (g *Game) FinalCountdown() int               { return g.finalCountdown }
func (g *Game) Piles() [card.NumColors]card.Value { return g.piles }
func (g *Game) Discards() card.Composition        { return g.discards }
func (g *Game) Tracker() *belief.Tracker          { return g.tracker }

func (g *Game) HandSize(p int) int {
	return len(g.hands[p])
}

// CardAt sees every card; the engine is omniscient.
func (g *Game) CardAt(p, slot int) (card.Card, bool) {
	if slot < 0 || slot >= len(g.hands[p]) {
		return card.Card{}, false
	}
	return g.cards[g.hands[p][slot]], true
}

// Hand returns the true cards in a player's hand.
func (g *Game) Hand(p int) []card.Card {
	out := make([]card.Card, len(g.hands[p]))
	for i, id := range g.hands[p] {
		out[i] = g.cards[id]
	}
	return out
}

// History returns the move history. The returned slice must not be
// modified.
func (g *Game) History() []Delta {
	return g.history[:len(g.history):len(g.history)]
}

// Copy returns a structurally independent copy of the game. Nothing done to
// the copy affects the original.
func (g *Game) Copy() *Game {
	c := *g
	c.hands = make([][]int, len(g.hands))
	for i, h := range g.hands {
		c.hands[i] = append(make([]int, 0, g.rules.HandSize), h...)
	}
	c.history = g.History()
	c.tracker = g.tracker.Copy()
	return &c
}
