package heuristic

import (
	"context"

	"github.com/facebookresearch/Hanabi-SPARTA/ai/turnplayer"
	"github.com/facebookresearch/Hanabi-SPARTA/belief"
	"github.com/facebookresearch/Hanabi-SPARTA/card"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

var holmesMysteryLimits = [4]int{-99, 1, 1, 1}

// HolmesBot adds warnings to SimpleBot's conventions: a value hint that
// touches the card its receiver would discard next, when that card could be
// the last copy of something, says "keep this card".
type HolmesBot struct {
	t table
}

func NewHolmesBot() *HolmesBot {
	return &HolmesBot{t: newTable()}
}

func (b *HolmesBot) Name() string       { return "HolmesBot" }
func (b *HolmesBot) SeatAgnostic() bool { return true }

func (b *HolmesBot) Clone() turnplayer.AITurnPlayer {
	c := *b
	return &c
}

// A card is valuable when it is the last copy of something not yet played,
// and worthless once its pile has reached it.
func holmesValuable(v *game.View, c card.Card) bool {
	return c.Value > v.Piles[c.Color] && v.Discards.Count(c) == card.Multiplicity(c.Value)-1
}

func holmesWorthless(v *game.View, c card.Card) bool {
	return c.Value <= v.Piles[c.Color]
}

// refresh brings the table up to date with v: public facts, cards located by
// elimination, and flags implied by what is left.
func (b *HolmesBot) refresh(v *game.View) {
	restrict := func(k *knol) {
		if k.valuable {
			k.narrow(k.set.Filter(func(c card.Card) bool { return holmesValuable(v, c) }))
		}
		if k.playable {
			k.narrow(k.set.Filter(v.IsPlayable))
		}
		if k.worthless {
			k.narrow(k.set.Filter(func(c card.Card) bool { return holmesWorthless(v, c) }))
		}
	}
	for {
		b.t.settle(v, restrict)
		if !b.updateFlags(v) {
			return
		}
	}
}

func (b *HolmesBot) updateFlags(v *game.View) bool {
	changed := false
	for _, ids := range v.HandIDs {
		for _, id := range ids {
			k := &b.t.knols[id]
			if k.worthless {
				continue
			}
			if !k.playable && !k.valuable {
				if w, _ := judge(k.set, func(c card.Card) bool { return holmesWorthless(v, c) }); w == yes {
					k.worthless = true
					changed = true
					continue
				}
			}
			if !k.valuable {
				if x, _ := judge(k.set, func(c card.Card) bool { return holmesValuable(v, c) }); x == yes {
					k.valuable = true
					changed = true
				}
			}
			if !k.playable {
				if x, _ := judge(k.set, v.IsPlayable); x == yes {
					k.playable = true
					changed = true
				}
			}
		}
	}
	return changed
}

func (b *HolmesBot) couldBeValuable(v *game.View, k *knol, val card.Value) bool {
	if !val.Valid() {
		return false
	}
	for c := range card.NumColors {
		x := card.Card{Color: card.Color(c), Value: val}
		if k.set.Has(x) && holmesValuable(v, x) {
			return true
		}
	}
	return false
}

// nextDiscardIndex returns the slot a player would discard next, or -1 if
// they have something to play or throw away, or nothing but valuable cards.
func (b *HolmesBot) nextDiscardIndex(v *game.View, p int) int {
	for s := range v.HandIDs[p] {
		if k := b.t.at(v, p, s); k.playable || k.worthless {
			return -1
		}
	}
	for s := range v.HandIDs[p] {
		if !b.t.at(v, p, s).valuable {
			return s
		}
	}
	return -1
}

func (b *HolmesBot) ObserveMove(before *game.View, d game.Delta, after *game.View) {
	b.refresh(before)
	to := d.Move.Target()
	switch d.Move.Action() {
	case move.MoveTypePlay:
		if before.IsPlayable(d.Card) && !holmesValuable(before, d.Card) {
			b.wipeOutPlayables(before, d.Card)
		}
	case move.MoveTypeHintColor:
		next := before.Piles[d.Move.Color()] + 1
		mask := belief.ColorMask(d.Move.Color())
		for s := range before.HandIDs[to] {
			k := b.t.at(before, to, s)
			if !touchesSlot(d, s) {
				k.narrow(belief.All &^ mask)
				continue
			}
			k.narrow(mask)
			if _, ok := k.value(); !ok && !k.worthless && next <= card.NumValues {
				k.narrow(belief.ValueMask(next))
			}
		}
	case move.MoveTypeHintValue:
		val := d.Move.Value()
		discardIndex := b.nextDiscardIndex(before, to)
		isWarning := discardIndex >= 0 && touchesSlot(d, discardIndex) &&
			b.couldBeValuable(before, b.t.at(before, to, discardIndex), val)
		if isReclaim(before, d) {
			return
		}
		if isWarning {
			k := b.t.at(before, to, discardIndex)
			k.valuable = true
			if val == lowestPlayableValue(before) {
				k.playable = true
			}
		}
		mask := belief.ValueMask(val)
		for s := range before.HandIDs[to] {
			k := b.t.at(before, to, s)
			if !touchesSlot(d, s) {
				k.narrow(belief.All &^ mask)
				continue
			}
			k.narrow(mask)
			if _, ok := k.color(); !ok && !isWarning && !k.worthless {
				k.playable = true
			}
		}
	}
}

func (b *HolmesBot) wipeOutPlayables(v *game.View, played card.Card) {
	for _, ids := range v.HandIDs {
		for _, id := range ids {
			k := &b.t.knols[id]
			if k.playable && !k.valuable && k.set.Has(played) {
				k.playable = false
			}
		}
	}
}

func (b *HolmesBot) Decide(ctx context.Context, v *game.View) (move.Move, error) {
	b.refresh(v)
	me := v.Observer

	if m, ok := b.valuableWarning(v); ok {
		return m, nil
	}
	best, bestValue := -1, card.NumValues+1
	for s := range v.HandIDs[me] {
		k := b.t.at(v, me, s)
		if k.playable && k.valueOr(-1) < bestValue {
			best, bestValue = s, k.valueOr(-1)
		}
	}
	if best >= 0 {
		return move.NewPlayMove(best), nil
	}
	if v.Hints > 0 {
		bh := noHint()
		for i := 1; i < v.NumPlayers(); i++ {
			if h := b.bestHintForPlayer(v, (me+i)%v.NumPlayers()); h.score > bh.score {
				bh = h
			}
		}
		if bh.score > 0 {
			return bh.m, nil
		}
	}
	if v.Deck <= mysteryDeckLimit(holmesMysteryLimits, v.Mistakes) {
		for s := len(v.HandIDs[me]) - 1; s >= 0; s-- {
			k := b.t.at(v, me, s)
			if k.worthless || k.known() {
				continue
			}
			return move.NewPlayMove(s), nil
		}
	}
	if v.Hints >= v.Rules.MaxHints {
		return reclaimHint(v), nil
	}
	for s := range v.HandIDs[me] {
		if b.t.at(v, me, s).worthless {
			return move.NewDiscardMove(s), nil
		}
	}
	for s := range v.HandIDs[me] {
		if !b.t.at(v, me, s).valuable {
			return move.NewDiscardMove(s), nil
		}
	}
	// Everything is valuable: give up the card that blocks progress least.
	best = 0
	for s := range v.HandIDs[me] {
		if b.t.at(v, me, s).valueOr(-1) > b.t.at(v, me, best).valueOr(-1) {
			best = s
		}
	}
	return move.NewDiscardMove(best), nil
}

// valuableWarning protects the left partner's next discard if it is the
// last copy of a card, preferably with a hint that gives them a play.
func (b *HolmesBot) valuableWarning(v *game.View) (move.Move, bool) {
	left := (v.Observer + 1) % v.NumPlayers()
	di := b.nextDiscardIndex(v, left)
	if di < 0 {
		return move.Move{}, false
	}
	target := v.Hands[left][di]
	if !holmesValuable(v, target) || v.Hints == 0 {
		return move.Move{}, false
	}
	if h := b.bestHintForPlayer(v, left); h.score > 0 {
		return h.m, true
	}
	return move.NewValueHintMove(left, target.Value), true
}

func (b *HolmesBot) bestHintForPlayer(v *game.View, partner int) hint {
	hand := v.Hands[partner]
	best := noHint()

	// Value hints that would read as a warning are off the table.
	avoid := card.Value(0)
	if di := b.nextDiscardIndex(v, partner); di >= 0 {
		avoid = hand[di].Value
		if !b.couldBeValuable(v, b.t.at(v, partner, di), avoid) {
			avoid = 0
		}
	}

	score := func(m move.Move, misleads func(k *knol) bool) int {
		info := 0
		for s, c := range hand {
			if !m.Touches(c) {
				continue
			}
			k := b.t.at(v, partner, s)
			if v.IsPlayable(c) && !k.playable {
				info++
			} else if !v.IsPlayable(c) && misleads(k) {
				return -1
			}
		}
		return info
	}
	for c := range card.NumColors {
		m := move.NewColorHintMove(partner, card.Color(c))
		sc := score(m, func(k *knol) bool {
			_, ok := k.value()
			return !ok && !k.worthless
		})
		if sc > best.score {
			best = hint{score: sc, m: m}
		}
	}
	for val := card.Value(1); val <= card.NumValues; val++ {
		if val == avoid {
			continue
		}
		m := move.NewValueHintMove(partner, val)
		sc := score(m, func(k *knol) bool {
			_, ok := k.color()
			return !ok && !k.worthless
		})
		if sc > best.score {
			best = hint{score: sc, m: m}
		}
	}
	return best
}
