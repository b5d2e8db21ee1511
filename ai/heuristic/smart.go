package heuristic

import (
	"context"

	"github.com/facebookresearch/Hanabi-SPARTA/ai/turnplayer"
	"github.com/facebookresearch/Hanabi-SPARTA/belief"
	"github.com/facebookresearch/Hanabi-SPARTA/card"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

var smartMysteryLimits = [4]int{-99, 1, 1, 3}

// SmartBot refines HolmesBot. A hint marks only the newest touched card that
// might be playable, and hints are scored by how many possibilities they
// remove. A player expecting a warning who does not get one learns that
// their next discard is safe. Discarding a card known to be playable tells
// the one player holding the same card as their newest to play it.
// Playability, value and worthlessness are judged from the remaining
// possibilities rather than stored as flags.
type SmartBot struct {
	t table
}

func NewSmartBot() *SmartBot {
	return &SmartBot{t: newTable()}
}

func (b *SmartBot) Name() string       { return "SmartBot" }
func (b *SmartBot) SeatAgnostic() bool { return true }

func (b *SmartBot) Clone() turnplayer.AITurnPlayer {
	c := *b
	return &c
}

type smartJudge struct {
	v *game.View
}

func (j smartJudge) playable(s belief.Set) (tri, float64)  { return judge(s, j.v.IsPlayable) }
func (j smartJudge) valuable(s belief.Set) (tri, float64)  { return judge(s, j.v.IsCritical) }
func (j smartJudge) worthless(s belief.Set) (tri, float64) { return judge(s, j.v.IsDead) }

// possibilities counts the identities left; a contradiction counts as many.
func possibilities(s belief.Set) int {
	if s.Empty() {
		return 10
	}
	return s.Len()
}

// eyesight narrows the table's knowledge of one of the observer's own cards
// with what the observer alone can see.
func (b *SmartBot) eyesight(v *game.View, slot int) belief.Set {
	s := b.t.at(v, v.Observer, slot).set
	if e := s & v.Own[slot]; !e.Empty() {
		return e
	}
	return s
}

func (b *SmartBot) setIsPlayable(v *game.View, k *knol) {
	k.narrow(k.set.Filter(v.IsPlayable))
}

func (b *SmartBot) setIsValuable(v *game.View, k *knol, valuable bool) {
	k.narrow(k.set.Filter(func(c card.Card) bool { return v.IsCritical(c) == valuable }))
}

func (b *SmartBot) couldBeValuableWithValue(v *game.View, k *knol, val card.Value) bool {
	if !val.Valid() || k.set&belief.ValueMask(val) == 0 {
		return false
	}
	j := smartJudge{v}
	if x, _ := j.valuable(k.set); x != maybe {
		return false
	}
	x, _ := j.valuable(k.set & belief.ValueMask(val))
	return x != no
}

// nextDiscardIndex returns the slot a player would discard next, or -1 if
// they should play or throw away something, or hold only valuable cards.
func (b *SmartBot) nextDiscardIndex(v *game.View, p int) int {
	j := smartJudge{v}
	best, bestFitness := -1, 0.0
	for s := range v.HandIDs[p] {
		k := b.t.at(v, p, s)
		if x, _ := j.playable(k.set); x == yes {
			return -1
		}
		w, pw := j.worthless(k.set)
		if w == yes {
			return -1
		}
		if x, _ := j.valuable(k.set); x == yes {
			continue
		}
		if fitness := 100 + pw; fitness > bestFitness {
			best, bestFitness = s, fitness
		}
	}
	return best
}

// noValuableWarningWasGiven: the player after from expected a warning if
// their next discard were valuable. Anything else tells them it is not.
func (b *SmartBot) noValuableWarningWasGiven(v *game.View, from int) {
	if v.Deck == 0 || v.Hints == 0 {
		return
	}
	expecting := (from + 1) % v.NumPlayers()
	if di := b.nextDiscardIndex(v, expecting); di >= 0 {
		b.setIsValuable(v, b.t.at(v, expecting, di), false)
	}
}

func (b *SmartBot) ObserveMove(before *game.View, d game.Delta, after *game.View) {
	b.t.settle(before, nil)
	switch d.Move.Action() {
	case move.MoveTypePlay:
		b.noValuableWarningWasGiven(before, d.Actor)
	case move.MoveTypeDiscard:
		b.noValuableWarningWasGiven(before, d.Actor)
		b.observeDiscardFinesse(before, d)
	case move.MoveTypeHintColor:
		b.observeHint(before, d, false, false)
	case move.MoveTypeHintValue:
		to := d.Move.Target()
		expecting := (d.Actor + 1) % before.NumPlayers()
		di := b.nextDiscardIndex(before, expecting)
		reclaim := isReclaim(before, d)
		isWarning := !reclaim && to == expecting && di >= 0 && touchesSlot(d, di) &&
			b.couldBeValuableWithValue(before, b.t.at(before, to, di), d.Move.Value())
		if isWarning {
			b.setIsValuable(before, b.t.at(before, to, di), true)
		}
		b.observeHint(before, d, isWarning, reclaim)
	}
}

// observeDiscardFinesse: throwing away a card known to be playable says
// another player holds the same card as their newest. If none in sight
// does, the observer does.
func (b *SmartBot) observeDiscardFinesse(v *game.View, d game.Delta) {
	k := b.t.at(v, d.Actor, d.Move.Slot())
	if !k.known() {
		return
	}
	if x, _ := (smartJudge{v}).playable(k.set); x != yes {
		return
	}
	for p, hand := range v.Hands {
		if p == d.Actor || p == v.Observer || len(hand) == 0 {
			continue
		}
		if hand[len(hand)-1] == d.Card {
			b.t.at(v, p, len(hand)-1).narrow(belief.Single(d.Card))
			return
		}
	}
	if n := len(v.HandIDs[v.Observer]); v.Observer != d.Actor && n > 0 {
		b.t.at(v, v.Observer, n-1).narrow(belief.Single(d.Card))
	}
}

// discardFinesse discards a known playable card that exactly one other
// player holds as their newest, so that player learns theirs is playable
// without a hint being spent.
func (b *SmartBot) discardFinesse(v *game.View) (move.Move, bool) {
	if v.Hints >= v.Rules.MaxHints {
		return move.Move{}, false
	}
	var newest []card.Card
	for i := 1; i < v.NumPlayers(); i++ {
		if hand := v.Hands[(v.Observer+i)%v.NumPlayers()]; len(hand) > 0 {
			newest = append(newest, hand[len(hand)-1])
		}
	}
	j := smartJudge{v}
	for s := range v.HandIDs[v.Observer] {
		k := b.t.at(v, v.Observer, s)
		c, ok := k.set.Only()
		if !ok {
			continue
		}
		if x, _ := j.valuable(k.set); x != no {
			continue
		}
		if x, _ := j.playable(k.set); x != yes {
			continue
		}
		held := 0
		for _, o := range newest {
			if o == c {
				held++
			}
		}
		if held == 1 {
			return move.NewDiscardMove(s), true
		}
	}
	return move.Move{}, false
}

// observeHint applies a hint. Unless the hint was a warning or a reclaim,
// and unless it already exposed a playable card, the newest touched card
// that might be playable is playable.
func (b *SmartBot) observeHint(before *game.View, d game.Delta, isWarning, reclaim bool) {
	j := smartJudge{before}
	to := d.Move.Target()
	mask := belief.HintMask(d.Move)
	identified := false
	inferred := -1
	for s := len(before.HandIDs[to]) - 1; s >= 0; s-- {
		k := b.t.at(before, to, s)
		was, _ := j.playable(k.set)
		if touchesSlot(d, s) {
			k.narrow(mask)
		} else {
			k.narrow(belief.All &^ mask)
		}
		if was != maybe {
			continue
		}
		now, _ := j.playable(k.set)
		switch {
		case now == yes:
			identified = true
		case now == maybe && touchesSlot(d, s) && inferred < 0:
			inferred = s
		}
	}
	if !isWarning && !reclaim && !identified && inferred >= 0 {
		b.setIsPlayable(before, b.t.at(before, to, inferred))
	}
	if to != (d.Actor+1)%before.NumPlayers() {
		b.noValuableWarningWasGiven(before, d.Actor)
	}
}

func (b *SmartBot) Decide(ctx context.Context, v *game.View) (move.Move, error) {
	b.t.settle(v, nil)

	if v.Deck == 0 {
		if m, ok := b.playLowestPlayable(v); ok {
			return m, nil
		}
		if m, ok := b.playMystery(v); ok {
			return m, nil
		}
	}
	if m, ok := b.valuableWarning(v); ok {
		return m, nil
	}
	if m, ok := b.discardFinesse(v); ok {
		return m, nil
	}
	if m, ok := b.playLowestPlayable(v); ok {
		return m, nil
	}
	if v.Hints > 0 {
		best := noHint()
		for i := 1; i < v.NumPlayers(); i++ {
			if h := b.bestHintForPlayer(v, (v.Observer+i)%v.NumPlayers()); h.score > best.score {
				best = h
			}
		}
		if best.score > 0 {
			return best.m, nil
		}
	}
	if m, ok := b.playMystery(v); ok {
		return m, nil
	}
	if v.Hints >= v.Rules.MaxHints {
		return reclaimHint(v), nil
	}
	if m, ok := b.discardWorthless(v); ok {
		return m, nil
	}
	if di := b.nextDiscardIndex(v, v.Observer); di >= 0 {
		return move.NewDiscardMove(di), nil
	}
	// Everything is valuable: give up the card that blocks progress least.
	me := v.Observer
	best := 0
	for s := range v.HandIDs[me] {
		if b.t.at(v, me, s).valueOr(-1) > b.t.at(v, me, best).valueOr(-1) {
			best = s
		}
	}
	return move.NewDiscardMove(best), nil
}

// playLowestPlayable prefers cards only the observer knows are playable,
// then lower values.
func (b *SmartBot) playLowestPlayable(v *game.View) (move.Move, bool) {
	j := smartJudge{v}
	best, bestFitness := -1, 0.0
	for s := range v.HandIDs[v.Observer] {
		k := b.t.at(v, v.Observer, s)
		pub, _ := j.playable(k.set)
		if pub == no {
			continue
		}
		eye := knol{set: b.eyesight(v, s)}
		if x, _ := j.playable(eye.set); x != yes {
			continue
		}
		fitness := float64(6 - eye.valueOr(-1))
		if pub != yes {
			fitness += 100
		}
		if fitness > bestFitness {
			best, bestFitness = s, fitness
		}
	}
	if best < 0 {
		return move.Move{}, false
	}
	return move.NewPlayMove(best), true
}

func (b *SmartBot) playMystery(v *game.View) (move.Move, bool) {
	if v.Deck > mysteryDeckLimit(smartMysteryLimits, v.Mistakes) {
		return move.Move{}, false
	}
	j := smartJudge{v}
	best, bestFitness := -1, 0.0
	for s := len(v.HandIDs[v.Observer]) - 1; s >= 0; s-- {
		if x, p := j.playable(b.eyesight(v, s)); x == maybe && p > bestFitness {
			best, bestFitness = s, p
		}
	}
	if best < 0 {
		return move.Move{}, false
	}
	return move.NewPlayMove(best), true
}

func (b *SmartBot) discardWorthless(v *game.View) (move.Move, bool) {
	j := smartJudge{v}
	best, bestFitness := -1, 0.0
	for s := range v.HandIDs[v.Observer] {
		k := b.t.at(v, v.Observer, s)
		w, pw := j.worthless(k.set)
		if w == no {
			continue
		}
		if w == maybe {
			if x, _ := j.worthless(b.eyesight(v, s)); x != yes {
				continue
			}
		}
		if fitness := 2 - pw; fitness > bestFitness {
			best, bestFitness = s, fitness
		}
	}
	if best < 0 {
		return move.Move{}, false
	}
	return move.NewDiscardMove(best), true
}

func (b *SmartBot) valuableWarning(v *game.View) (move.Move, bool) {
	if v.Hints == 0 {
		return move.Move{}, false
	}
	left := (v.Observer + 1) % v.NumPlayers()
	di := b.nextDiscardIndex(v, left)
	if di < 0 {
		return move.Move{}, false
	}
	target := v.Hands[left][di]
	if !v.IsCritical(target) {
		return move.Move{}, false
	}
	if h := b.bestHintForPlayer(v, left); h.score > 0 {
		return h.m, true
	}
	return move.NewValueHintMove(left, target.Value), true
}

// bestHintForPlayer scores every color and value present in the partner's
// hand by the possibilities it removes. A hint is only allowed if it either
// exposes a playable card or its newest ambiguous touched card really is
// playable.
func (b *SmartBot) bestHintForPlayer(v *game.View, partner int) hint {
	j := smartJudge{v}
	hand := v.Hands[partner]
	old := b.t.hand(v, partner)

	avoid := card.Value(0)
	if partner == (v.Observer+1)%v.NumPlayers() {
		if di := b.nextDiscardIndex(v, partner); di >= 0 {
			avoid = hand[di].Value
			if !b.couldBeValuableWithValue(v, &old[di], avoid) {
				avoid = 0
			}
		}
	}

	okay := func(m move.Move, next []knol) bool {
		if m.Action() == move.MoveTypeHintValue && m.Value() == avoid {
			return false
		}
		reveals := false
		misleading := maybe
		for s := len(hand) - 1; s >= 0; s-- {
			if x, _ := j.playable(old[s].set); x != maybe {
				continue
			}
			x, _ := j.playable(next[s].set)
			switch {
			case x == yes:
				reveals = true
			case x == maybe && m.Touches(hand[s]) && misleading == maybe:
				misleading = yes
				if v.IsPlayable(hand[s]) {
					misleading = no
				}
			}
		}
		return reveals || misleading == no
	}

	best := noHint()
	consider := func(m move.Move) {
		next := hinted(old, hand, m)
		if !okay(m, next) {
			return
		}
		fitness := 0
		for s := range old {
			fitness += possibilities(old[s].set) - possibilities(next[s].set)
		}
		if fitness > best.score {
			best = hint{score: fitness, m: m}
		}
	}
	var colors [card.NumColors]bool
	var values [card.NumValues + 1]bool
	for _, c := range hand {
		colors[c.Color] = true
		values[c.Value] = true
	}
	for c := range card.NumColors {
		if colors[c] {
			consider(move.NewColorHintMove(partner, card.Color(c)))
		}
	}
	for val := card.Value(1); val <= card.NumValues; val++ {
		if values[val] {
			consider(move.NewValueHintMove(partner, val))
		}
	}
	return best
}
