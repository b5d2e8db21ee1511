// Package heuristic implements the rule-table agents: SimpleBot, HolmesBot
// and SmartBot. None of them search. They keep per-card knowledge built only
// from public information and the table's hinting conventions, so everyone
// at the table computes the same knowledge and one instance can decide for
// any seat.
package heuristic

import (
	"github.com/facebookresearch/Hanabi-SPARTA/belief"
	"github.com/facebookresearch/Hanabi-SPARTA/card"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

type tri int8

const (
	no tri = iota
	maybe
	yes
)

// knol is what the table knows about one card: the identities still
// possible under the hints and the conventions, plus convention flags.
type knol struct {
	set       belief.Set
	playable  bool
	valuable  bool
	worthless bool
}

func (k knol) color() (card.Color, bool) {
	c := card.Color(-1)
	for _, x := range k.set.Cards() {
		if c >= 0 && x.Color != c {
			return 0, false
		}
		c = x.Color
	}
	return c, c >= 0
}

func (k knol) value() (card.Value, bool) {
	v := card.Value(0)
	for _, x := range k.set.Cards() {
		if v > 0 && x.Value != v {
			return 0, false
		}
		v = x.Value
	}
	return v, v > 0
}

// valueOr returns the card's value, or def if it is not pinned down.
func (k knol) valueOr(def int) int {
	if v, ok := k.value(); ok {
		return int(v)
	}
	return def
}

func (k knol) known() bool {
	_, ok := k.set.Only()
	return ok
}

// narrow intersects the set with mask unless that would leave nothing.
func (k *knol) narrow(mask belief.Set) {
	if s := k.set & mask; !s.Empty() {
		k.set = s
	}
}

// judge classifies the members of s by pred. An empty set means the table
// has been misled; it is treated as a coin flip.
func judge(s belief.Set, pred func(card.Card) bool) (tri, float64) {
	n, y := 0, 0
	for _, c := range s.Cards() {
		n++
		if pred(c) {
			y++
		}
	}
	switch {
	case n == 0:
		return maybe, 0.5
	case y == n:
		return yes, 1
	case y == 0:
		return no, 0
	}
	return maybe, float64(y) / float64(n)
}

// table holds a knol for every card id.
type table struct {
	knols [card.DeckSize]knol
}

func newTable() table {
	var t table
	for i := range t.knols {
		t.knols[i].set = belief.All
	}
	return t
}

func (t *table) at(v *game.View, p, slot int) *knol {
	return &t.knols[v.HandIDs[p][slot]]
}

// sync folds the public candidate sets into the knowledge of every held
// card. A card whose conventions contradict the public facts loses them.
func (t *table) sync(v *game.View) {
	for p, ids := range v.HandIDs {
		for s, id := range ids {
			k := &t.knols[id]
			pub := v.Public[p][s]
			if k.set&pub == 0 {
				*k = knol{set: pub}
				continue
			}
			k.set &= pub
		}
	}
}

// settle syncs and then removes from every unidentified card the identities
// whose copies are all revealed or identified elsewhere, repeating until
// nothing changes. restrict, if set, narrows an unidentified card further.
func (t *table) settle(v *game.View, restrict func(*knol)) {
	t.sync(v)
	revealed := v.Revealed()
	for {
		located := revealed
		for _, ids := range v.HandIDs {
			for _, id := range ids {
				if c, ok := t.knols[id].set.Only(); ok {
					located.Add(c)
				}
			}
		}
		gone := belief.Exhausted(located)
		changed := false
		for _, ids := range v.HandIDs {
			for _, id := range ids {
				k := &t.knols[id]
				if k.known() {
					continue
				}
				before := k.set
				k.narrow(belief.All &^ gone)
				if restrict != nil {
					restrict(k)
				}
				changed = changed || k.set != before
			}
		}
		if !changed {
			return
		}
	}
}

// hinted applies a hint to a copy of the receiver's knowledge.
func hinted(ks []knol, hand []card.Card, m move.Move) []knol {
	out := append([]knol(nil), ks...)
	mask := belief.HintMask(m)
	for i, c := range hand {
		if m.Touches(c) {
			out[i].narrow(mask)
		} else {
			out[i].narrow(belief.All &^ mask)
		}
	}
	return out
}

func (t *table) hand(v *game.View, p int) []knol {
	out := make([]knol, len(v.HandIDs[p]))
	for s, id := range v.HandIDs[p] {
		out[s] = t.knols[id]
	}
	return out
}

// hint is a candidate hint and how good it looks.
type hint struct {
	score int
	m     move.Move
}

func noHint() hint {
	return hint{score: -1}
}

func touchesSlot(d game.Delta, slot int) bool {
	for _, s := range d.TouchedSlots {
		if s == slot {
			return true
		}
	}
	return false
}

// isReclaim is true for a value hint given back to the previous player at
// maximum hint stones, touching their oldest card. It only exists to let
// the hinter burn a stone and carries no meaning.
func isReclaim(before *game.View, d game.Delta) bool {
	n := before.NumPlayers()
	to := d.Move.Target()
	return before.Hints >= before.Rules.MaxHints &&
		d.Actor == (to+1)%n && touchesSlot(d, 0)
}

// reclaimHint is the value hint on the right partner's oldest card.
func reclaimHint(v *game.View) move.Move {
	n := v.NumPlayers()
	right := (v.Observer + n - 1) % n
	return move.NewValueHintMove(right, v.Hands[right][0].Value)
}

func lowestPlayableValue(v *game.View) card.Value {
	lowest := card.Value(card.NumValues + 1)
	for _, top := range v.Piles {
		lowest = min(lowest, top+1)
	}
	return lowest
}

// mysteryDeckLimit returns how small the deck must be before a bot gambles on
// an unknown card, given the mistakes remaining.
func mysteryDeckLimit(limits [4]int, mistakes int) int {
	return limits[max(0, min(mistakes, len(limits)-1))]
}
