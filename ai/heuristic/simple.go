package heuristic

import (
	"context"

	"github.com/facebookresearch/Hanabi-SPARTA/ai/turnplayer"
	"github.com/facebookresearch/Hanabi-SPARTA/belief"
	"github.com/facebookresearch/Hanabi-SPARTA/card"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

// SimpleBot treats every hint as "play these cards", except a value hint
// that reclaims a hint stone.
type SimpleBot struct {
	t table
}

func NewSimpleBot() *SimpleBot {
	return &SimpleBot{t: newTable()}
}

func (b *SimpleBot) Name() string       { return "SimpleBot" }
func (b *SimpleBot) SeatAgnostic() bool { return true }

func (b *SimpleBot) Clone() turnplayer.AITurnPlayer {
	c := *b
	return &c
}

func (b *SimpleBot) ObserveMove(before *game.View, d game.Delta, after *game.View) {
	b.t.sync(before)
	switch d.Move.Action() {
	case move.MoveTypePlay:
		b.wipeOutPlayables(before, d.Card)
	case move.MoveTypeHintColor:
		next := before.Piles[d.Move.Color()] + 1
		for _, id := range d.Touched {
			k := &b.t.knols[id]
			k.narrow(belief.ColorMask(d.Move.Color()))
			if next <= card.NumValues {
				k.narrow(belief.ValueMask(next))
			}
			k.playable = true
		}
	case move.MoveTypeHintValue:
		if isReclaim(before, d) {
			return
		}
		for _, id := range d.Touched {
			k := &b.t.knols[id]
			k.narrow(belief.ValueMask(d.Move.Value()))
			k.playable = true
		}
	}
}

// wipeOutPlayables clears the playable mark of every card that might be a
// copy of the card just played.
func (b *SimpleBot) wipeOutPlayables(v *game.View, played card.Card) {
	for _, ids := range v.HandIDs {
		for _, id := range ids {
			k := &b.t.knols[id]
			if !k.playable {
				continue
			}
			if val, ok := k.value(); ok && val == card.NumValues {
				continue
			}
			if k.set&belief.ColorMask(played.Color) == 0 || k.set&belief.ValueMask(played.Value) == 0 {
				continue
			}
			k.playable = false
		}
	}
}

func (b *SimpleBot) Decide(ctx context.Context, v *game.View) (move.Move, error) {
	b.t.sync(v)
	me := v.Observer

	best, bestValue := -1, card.NumValues+1
	for s := range v.HandIDs[me] {
		k := b.t.at(v, me, s)
		if k.playable && k.valueOr(0) < bestValue {
			best, bestValue = s, k.valueOr(0)
		}
	}
	if best >= 0 {
		return move.NewPlayMove(best), nil
	}
	if v.Hints > 0 {
		if h := b.bestHint(v); h.score > 0 {
			return h.m, nil
		}
	}
	if v.Hints >= v.Rules.MaxHints {
		return reclaimHint(v), nil
	}
	return move.NewDiscardMove(0), nil
}

// bestHint looks for a hint that names playable cards the receiver does not
// know about, and nothing unplayable.
func (b *SimpleBot) bestHint(v *game.View) hint {
	n := v.NumPlayers()
	best := noHint()
	for i := 1; i < n; i++ {
		partner := (v.Observer + i) % n
		hand := v.Hands[partner]
		score := func(m move.Move) int {
			info := 0
			for s, c := range hand {
				if !m.Touches(c) {
					continue
				}
				if !v.IsPlayable(c) {
					return -1
				}
				if !b.t.at(v, partner, s).playable {
					info++
				}
			}
			return info
		}
		for c := range card.NumColors {
			m := move.NewColorHintMove(partner, card.Color(c))
			if sc := score(m); sc > best.score {
				best = hint{score: sc, m: m}
			}
		}
		for val := card.Value(1); val <= card.NumValues; val++ {
			m := move.NewValueHintMove(partner, val)
			if sc := score(m); sc > best.score {
				best = hint{score: sc, m: m}
			}
		}
	}
	return best
}
