package heuristic

import (
	"cmp"
	"context"
	"math/bits"
	"slices"

	"github.com/facebookresearch/Hanabi-SPARTA/ai/turnplayer"
	"github.com/facebookresearch/Hanabi-SPARTA/belief"
	"github.com/facebookresearch/Hanabi-SPARTA/card"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

// InfoBot plays a hat-guessing convention. Every player derives, from
// public knowledge alone, a question about each other hand. A hint is read
// as a number: the sum, modulo the number of hints the hinter could tell
// apart, of the answers for every hand but the hinter's. Each receiver
// subtracts the answers it can see and is left with its own. A discard of
// one of several publicly useless cards carries a number the same way.
type InfoBot struct {
	// info holds the public possibilities of every card, by card id.
	info [card.DeckSize]belief.Set
}

func NewInfoBot() *InfoBot {
	b := &InfoBot{}
	for i := range b.info {
		b.info[i] = belief.All
	}
	return b
}

func (b *InfoBot) Name() string       { return "InfoBot" }
func (b *InfoBot) SeatAgnostic() bool { return true }

func (b *InfoBot) Clone() turnplayer.AITurnPlayer {
	c := *b
	return &c
}

// cardTable is what is known of one card: the identities it may have,
// weighted by the copies of each that are unaccounted for.
type cardTable struct {
	set    belief.Set
	counts *card.Composition
}

func (t cardTable) possible() belief.Set {
	return t.set.Filter(func(c card.Card) bool { return t.counts.Count(c) > 0 })
}

func (t cardTable) weight() int {
	w := 0
	for _, c := range t.set.Cards() {
		w += t.counts.Count(c)
	}
	return w
}

// mean is the weighted mean of score. It is NaN for a card that can be
// nothing.
func (t cardTable) mean(score func(card.Card) float64) float64 {
	total, weight := 0.0, 0
	for _, c := range t.set.Cards() {
		n := t.counts.Count(c)
		total += float64(n) * score(c)
		weight += n
	}
	return total / float64(weight)
}

func (t cardTable) chance(pred func(card.Card) bool) float64 {
	return t.mean(func(c card.Card) float64 {
		if pred(c) {
			return 1
		}
		return 0
	})
}

func (t cardTable) determined() bool {
	return t.possible().Len() == 1
}

// hand returns the tables of p's cards, weighted by counts.
func (b *InfoBot) hand(v *game.View, p int, counts *card.Composition) []cardTable {
	out := make([]cardTable, len(v.HandIDs[p]))
	for s, id := range v.HandIDs[p] {
		out[s] = cardTable{set: b.info[id], counts: counts}
	}
	return out
}

func (b *InfoBot) store(v *game.View, p int, hand []cardTable) {
	for s, id := range v.HandIDs[p] {
		b.info[id] = hand[s].set
	}
}

// modInfo is a number known modulo modulus.
type modInfo struct {
	modulus int
	value   int
}

func (m *modInfo) combine(o modInfo) {
	m.value = m.value*o.modulus + o.value
	m.modulus *= o.modulus
}

// split takes the leading digit in base n off m.
func (m *modInfo) split(n int) modInfo {
	m.modulus = max(1, m.modulus/n)
	d := m.value / m.modulus
	m.value -= d * m.modulus
	return modInfo{modulus: n, value: min(d, n-1)}
}

func (m *modInfo) add(o modInfo) {
	m.value = (m.value + o.value) % m.modulus
}

func (m *modInfo) sub(o modInfo) {
	m.value = ((m.value-o.value)%m.modulus + m.modulus) % m.modulus
}

// question is asked of one card of a hand. Its answer is below infoAmount.
type question interface {
	infoAmount() int
	answer(hand []card.Card, v *game.View) int
	learn(answer int, hand []cardTable, v *game.View)
}

func answerInfo(q question, hand []card.Card, v *game.View) modInfo {
	m := q.infoAmount()
	return modInfo{modulus: m, value: min(m-1, q.answer(hand, v))}
}

type playableQuestion struct {
	slot int
}

func (q playableQuestion) infoAmount() int { return 2 }

func (q playableQuestion) answer(hand []card.Card, v *game.View) int {
	if v.IsPlayable(hand[q.slot]) {
		return 1
	}
	return 0
}

func (q playableQuestion) learn(answer int, hand []cardTable, v *game.View) {
	t := &hand[q.slot]
	t.set = t.set.Filter(func(c card.Card) bool { return v.IsPlayable(c) == (answer == 1) })
}

// partitionQuestion asks which block of a partition of its possibilities a
// card is in. Live identities are dealt round the blocks; dead ones share
// a block of their own.
type partitionQuestion struct {
	slot   int
	blocks int
	block  [card.NumIdentities]int
}

func newPartitionQuestion(slot, maxBlocks int, t cardTable, v *game.View) *partitionQuestion {
	q := &partitionQuestion{slot: slot}
	hasDead := t.chance(v.IsDead) != 0
	live := maxBlocks
	if hasDead {
		live--
	}
	live = max(1, live)
	poss := t.possible().Cards()
	cur := 0
	for _, c := range poss {
		if v.IsDead(c) {
			continue
		}
		q.block[c.Index()] = cur
		cur = (cur + 1) % live
		q.blocks = min(q.blocks+1, live)
	}
	if hasDead {
		for _, c := range poss {
			if v.IsDead(c) {
				q.block[c.Index()] = q.blocks
			}
		}
		q.blocks++
	}
	return q
}

func (q *partitionQuestion) infoAmount() int { return q.blocks }

func (q *partitionQuestion) answer(hand []card.Card, v *game.View) int {
	return q.block[hand[q.slot].Index()]
}

func (q *partitionQuestion) learn(answer int, hand []cardTable, v *game.View) {
	t := &hand[q.slot]
	t.set = t.set.Filter(func(c card.Card) bool { return q.block[c.Index()] == answer })
}

type cardOdds struct {
	slot       int
	table      cardTable
	play       float64
	dead       float64
	determined bool
}

// oddsOf counts a card that can be nothing as determined; it is not worth
// asking about either.
func oddsOf(slot int, t cardTable, v *game.View) cardOdds {
	return cardOdds{
		slot:       slot,
		table:      t,
		play:       t.chance(v.IsPlayable),
		dead:       t.chance(v.IsDead),
		determined: t.possible().Len() <= 1,
	}
}

// byPlayChance puts the likeliest playable card first, then the oldest.
func byPlayChance(a, b cardOdds) int {
	if c := cmp.Compare(b.play, a.play); c != 0 {
		return c
	}
	return cmp.Compare(a.slot, b.slot)
}

// questions lists what to ask of a hand given total distinct answers. It
// asks whether likely cards are playable unless one is known to be, then
// partitions the rest until the answers are used up.
func (b *InfoBot) questions(total int, v *game.View, hand []cardTable) []question {
	var qs []question
	remaining := total
	add := func(q question) bool {
		remaining /= q.infoAmount()
		qs = append(qs, q)
		return remaining <= 1
	}

	odds := make([]cardOdds, len(hand))
	knownPlayable := false
	for s, t := range hand {
		odds[s] = oddsOf(s, t, v)
		if odds[s].play == 1 {
			knownPlayable = true
		}
	}
	if !knownPlayable {
		var ask []cardOdds
		for _, o := range odds {
			if o.determined || o.dead == 1 || o.play == 1 || o.play < 0.2 {
				continue
			}
			ask = append(ask, o)
		}
		slices.SortStableFunc(ask, byPlayChance)
		for _, o := range ask {
			if add(playableQuestion{slot: o.slot}) {
				return qs
			}
		}
	}

	var ask []cardOdds
	for _, o := range odds {
		if o.determined || o.dead == 1 {
			continue
		}
		ask = append(ask, o)
	}
	slices.SortStableFunc(ask, byPlayChance)
	for _, o := range ask {
		if add(newPartitionQuestion(o.slot, remaining, o.table, v)) {
			return qs
		}
	}
	return qs
}

func (b *InfoBot) answersFor(p, total int, qs []question, v *game.View) modInfo {
	ans := modInfo{modulus: 1}
	for _, q := range qs {
		ans.combine(answerInfo(q, v.Hands[p], v))
	}
	ans.modulus = total
	return ans
}

// hintSum adds up the answers of every hand but the observer's.
func (b *InfoBot) hintSum(total int, v *game.View, counts *card.Composition) modInfo {
	sum := modInfo{modulus: total}
	for p := range v.NumPlayers() {
		if p == v.Observer {
			continue
		}
		qs := b.questions(total, v, b.hand(v, p, counts))
		sum.add(b.answersFor(p, total, qs, v))
	}
	return sum
}

// updateFromHintSum reads a sum sent by the player on turn of v.
func (b *InfoBot) updateFromHintSum(v *game.View, sum modInfo, counts *card.Composition) {
	hinter, me := v.OnTurn, v.Observer
	for p := range v.NumPlayers() {
		if p == hinter || p == me {
			continue
		}
		hand := b.hand(v, p, counts)
		qs := b.questions(sum.modulus, v, hand)
		sum.sub(b.answersFor(p, sum.modulus, qs, v))
		for _, q := range qs {
			q.learn(q.answer(v.Hands[p], v), hand, v)
		}
		b.store(v, p, hand)
	}
	if me == hinter {
		return
	}
	hand := b.hand(v, me, counts)
	qs := b.questions(sum.modulus, v, hand)
	product := 1
	for _, q := range qs {
		product *= q.infoAmount()
	}
	sum.modulus = max(product, sum.value+1)
	for _, q := range qs {
		q.learn(sum.split(q.infoAmount()).value, hand, v)
	}
	b.store(v, me, hand)
}

// hintStrategy maps the hints a player can be given onto numbers below
// count.
type hintStrategy interface {
	count() int
	encode(v *game.View, to, n int) []move.Move
	decode(d game.Delta) int
}

// slotHint singles out one card. A value or color hint on it means 0 or
// 1, a hint missing it means 2, or 2 and 3 for value and color hints when
// split.
type slotHint struct {
	slot  int
	split bool
}

func (h slotHint) count() int {
	if h.split {
		return 4
	}
	return 3
}

func (h slotHint) encode(v *game.View, to, n int) []move.Move {
	hand := v.Hands[to]
	c := hand[h.slot]
	switch n {
	case 0:
		return []move.Move{move.NewValueHintMove(to, c.Value)}
	case 1:
		return []move.Move{move.NewColorHintMove(to, c.Color)}
	}
	var out []move.Move
	for _, o := range hand {
		if o.Color != c.Color && (!h.split || n == 3) {
			out = append(out, move.NewColorHintMove(to, o.Color))
		}
		if o.Value != c.Value && (!h.split || n == 2) {
			out = append(out, move.NewValueHintMove(to, o.Value))
		}
	}
	return out
}

func (h slotHint) decode(d game.Delta) int {
	value := d.Move.Action() == move.MoveTypeHintValue
	switch {
	case touchesSlot(d, h.slot) && value:
		return 0
	case touchesSlot(d, h.slot):
		return 1
	case value || !h.split:
		return 2
	}
	return 3
}

func hintIndexScore(t cardTable, v *game.View) int {
	if t.chance(v.IsDead) == 1 || t.determined() {
		return 0
	}
	var features uint
	for _, c := range t.possible().Cards() {
		features |= 1<<uint(c.Color) | 1<<(uint(c.Value)+card.NumColors)
	}
	return bits.OnesCount(features)
}

func indexForHint(hand []cardTable, v *game.View) int {
	best, bestScore := 0, -1
	for s, t := range hand {
		if sc := hintIndexScore(t, v); sc > bestScore {
			best, bestScore = s, sc
		}
	}
	return best
}

// setPacking gives each card of a largest set whose possible colors are
// disjoint a number of its own, and the same for values. A color or value
// hint on one of those cards then names it unambiguously.
type setPacking struct {
	n      int
	colors [card.NumColors]int
	values [card.NumValues + 1]int
}

// disjointRows returns, as a slot mask, the largest set of cards that
// never share a feature among their possibilities.
func disjointRows(hand []cardTable, feature func(card.Card) int) uint {
	best, bestLen := uint(1), 1
	for rows := uint(3); rows < 1<<len(hand); rows++ {
		n := bits.OnesCount(rows)
		if n <= bestLen {
			continue
		}
		disjoint := true
		var seen uint
		for s, t := range hand {
			if rows&(1<<s) == 0 {
				continue
			}
			for _, c := range t.possible().Cards() {
				f := uint(1) << feature(c)
				if seen&f != 0 {
					disjoint = false
				}
				seen |= f
			}
		}
		if disjoint {
			best, bestLen = rows, n
		}
	}
	return best
}

func newSetPacking(hand []cardTable) *setPacking {
	colorRows := disjointRows(hand, func(c card.Card) int { return int(c.Color) })
	valueRows := disjointRows(hand, func(c card.Card) int { return int(c.Value) })
	h := &setPacking{}
	for i := range h.colors {
		h.colors[i] = -1
	}
	for i := range h.values {
		h.values[i] = -1
	}
	for s, t := range hand {
		if colorRows&(1<<s) != 0 {
			for _, c := range t.possible().Cards() {
				h.colors[c.Color] = h.n
			}
			h.n++
		}
		if valueRows&(1<<s) != 0 {
			for _, c := range t.possible().Cards() {
				h.values[c.Value] = h.n
			}
			h.n++
		}
	}
	h.n = max(1, h.n)

	// hints no chosen card can take still carry their plain meaning
	cur := 0
	for i := range h.colors {
		if h.colors[i] < 0 {
			h.colors[i] = cur
			cur = (cur + 1) % h.n
		}
	}
	for val := 1; val <= card.NumValues; val++ {
		if h.values[val] < 0 {
			h.values[val] = cur
			cur = (cur + 1) % h.n
		}
	}
	return h
}

func (h *setPacking) count() int { return h.n }

func (h *setPacking) encode(v *game.View, to, n int) []move.Move {
	var out []move.Move
	for _, c := range v.Hands[to] {
		if h.colors[c.Color] == n {
			out = append(out, move.NewColorHintMove(to, c.Color))
		}
		if h.values[c.Value] == n {
			out = append(out, move.NewValueHintMove(to, c.Value))
		}
	}
	return out
}

func (h *setPacking) decode(d game.Delta) int {
	if d.Move.Action() == move.MoveTypeHintColor {
		return h.colors[d.Move.Color()]
	}
	return h.values[d.Move.Value()]
}

func (b *InfoBot) hintStrategy(v *game.View, p int, counts *card.Composition) hintStrategy {
	hand := b.hand(v, p, counts)
	if sp := newSetPacking(hand); sp.count() > 4 {
		return sp
	}
	oneColor := false
	for c := range card.NumColors {
		if !slices.ContainsFunc(hand, func(t cardTable) bool {
			return t.possible()&belief.ColorMask(card.Color(c)) == 0
		}) {
			oneColor = true
			break
		}
	}
	oneValue := false
	for val := card.Value(1); val <= card.NumValues; val++ {
		if !slices.ContainsFunc(hand, func(t cardTable) bool {
			return t.possible()&belief.ValueMask(val) == 0
		}) {
			oneValue = true
			break
		}
	}
	return slotHint{slot: indexForHint(hand, v), split: !oneColor && !oneValue}
}

// strategies returns the hint strategy for every player after from, in
// turn order, and the number of hints they tell apart together.
func (b *InfoBot) strategies(v *game.View, from int, counts *card.Composition) ([]hintStrategy, int) {
	n := v.NumPlayers()
	out := make([]hintStrategy, 0, n-1)
	total := 0
	for i := range n - 1 {
		hs := b.hintStrategy(v, (from+1+i)%n, counts)
		out = append(out, hs)
		total += hs.count()
	}
	return out, total
}

func (b *InfoBot) inferFromHint(v *game.View, d game.Delta) {
	counts := v.Unrevealed()
	n := v.NumPlayers()
	strats, total := b.strategies(v, d.Actor, &counts)
	i := (n + d.Move.Target() - d.Actor - 1) % n
	offset := 0
	for _, hs := range strats[:i] {
		offset += hs.count()
	}
	b.updateFromHintSum(v, modInfo{modulus: total, value: offset + strats[i].decode(d)}, &counts)
}

// giveHint encodes the sum of every other hand's answers. Of the hints
// that encode it, the one that narrows the receiver's cards most wins.
func (b *InfoBot) giveHint(v *game.View) move.Move {
	n, me := v.NumPlayers(), v.Observer
	counts := v.Unrevealed()
	strats, total := b.strategies(v, me, &counts)
	sum := b.hintSum(total, v, &counts)
	k, i := sum.value, 0
	for k >= strats[i].count() {
		k -= strats[i].count()
		i++
	}
	to := (me + 1 + i) % n
	hand := v.Hands[to]

	tables := b.hand(v, to, &counts)
	for _, q := range b.questions(3*(n-1), v, tables) {
		q.learn(q.answer(hand, v), tables, v)
	}

	best, bestGoodness, found := move.Move{}, -1.0, false
	for _, m := range strats[i].encode(v, to, k) {
		mask := belief.HintMask(m)
		goodness := 1.0
		for s, t := range tables {
			if t.chance(v.IsDead) == 1 || t.determined() {
				continue
			}
			before := t.weight()
			if m.Touches(hand[s]) {
				t.set &= mask
			} else {
				t.set &^= mask
			}
			bonus := 1.0
			if t.determined() || t.chance(v.IsDead) == 1 {
				bonus = 2
			}
			goodness *= bonus * float64(before) / float64(t.weight())
		}
		if goodness > bestGoodness {
			best, bestGoodness, found = m, goodness, true
		}
	}
	if !found {
		return move.NewColorHintMove(to, hand[0].Color)
	}
	return best
}

// uselessSlots lists the cards known to be dead or duplicated in hand.
func uselessSlots(v *game.View, hand []cardTable) []int {
	var useless []int
	var seen [card.NumIdentities]int
	for s, t := range hand {
		if t.chance(v.IsDead) == 1 {
			useless = append(useless, s)
			continue
		}
		if c, ok := t.possible().Only(); ok {
			if o := seen[c.Index()]; o > 0 {
				useless = append(useless, s, o-1)
			} else {
				seen[c.Index()] = s + 1
			}
		}
	}
	slices.Sort(useless)
	return slices.Compact(useless)
}

func othersHold(v *game.View, pred func(card.Card) bool) bool {
	for p, hand := range v.Hands {
		if p != v.Observer && slices.ContainsFunc(hand, pred) {
			return true
		}
	}
	return false
}

// playScore is how badly c should be played: low cards, and cards nobody
// else holds a copy of, first.
func playScore(v *game.View, c card.Card) float64 {
	with := 1
	if v.Deck > 0 {
		for p, hand := range v.Hands {
			if p != v.Observer && slices.Contains(hand, c) {
				with++
			}
		}
	}
	return (10 - float64(c.Value)) / float64(with)
}

func (b *InfoBot) ObserveMove(before *game.View, d game.Delta, after *game.View) {
	switch d.Move.Action() {
	case move.MoveTypeHintColor, move.MoveTypeHintValue:
		b.inferFromHint(before, d)
		mask := belief.HintMask(d.Move)
		for s, id := range before.HandIDs[d.Move.Target()] {
			if touchesSlot(d, s) {
				b.info[id] &= mask
			} else {
				b.info[id] &^= mask
			}
		}
	case move.MoveTypeDiscard:
		counts := before.Unrevealed()
		useless := uselessSlots(before, b.hand(before, d.Actor, &counts))
		if len(useless) > 1 {
			value := max(0, slices.Index(useless, d.Move.Slot()))
			b.updateFromHintSum(before, modInfo{modulus: len(useless), value: value}, &counts)
		}
	}
}

func (b *InfoBot) Decide(ctx context.Context, v *game.View) (move.Move, error) {
	me := v.Observer
	unseen := v.Unseen()
	private := b.hand(v, me, &unseen)

	best, bestScore := -1, -1.0
	for s, t := range private {
		if t.chance(v.IsPlayable) != 1 {
			continue
		}
		if sc := t.mean(func(c card.Card) float64 { return playScore(v, c) }); sc > bestScore {
			best, bestScore = s, sc
		}
	}
	if best >= 0 {
		return move.NewPlayMove(best), nil
	}

	// discards that still leave every card of a perfect game in play
	spare := card.DeckSize - card.MaxScore - v.NumPlayers()*v.Rules.HandSize
	discarded := v.Discards.Total()
	if v.Mistakes > 1 && discarded <= spare {
		for s, t := range private {
			if t.chance(func(c card.Card) bool { return v.IsPlayable(c) || v.IsDead(c) }) != 1 {
				continue
			}
			if p := t.chance(v.IsPlayable); p > 0.75 && p > bestScore {
				best, bestScore = s, p
			}
		}
		if best >= 0 {
			return move.NewPlayMove(best), nil
		}
	}

	if v.Hints >= v.Rules.MaxHints {
		return b.giveHint(v), nil
	}

	unrevealed := v.Unrevealed()
	publicUseless := uselessSlots(v, b.hand(v, me, &unrevealed))
	useless := uselessSlots(v, private)
	discardUseless := func() (move.Move, bool) {
		if len(publicUseless) > 1 {
			sum := b.hintSum(len(publicUseless), v, &unrevealed)
			return move.NewDiscardMove(publicUseless[sum.value]), true
		}
		if len(useless) > 0 {
			return move.NewDiscardMove(useless[0]), true
		}
		return move.Move{}, false
	}

	if discarded <= spare {
		if m, ok := discardUseless(); ok {
			return m, nil
		}
	}
	if v.Hints > 0 && othersHold(v, v.IsPlayable) {
		return b.giveHint(v), nil
	}
	if m, ok := discardUseless(); ok {
		return m, nil
	}

	for s, t := range private {
		seen := t.chance(func(c card.Card) bool {
			return othersHold(v, func(o card.Card) bool { return o == c })
		})
		dispensable := t.chance(func(c card.Card) bool { return !v.IsCritical(c) })
		value := t.mean(func(c card.Card) float64 { return float64(c.Value) })
		if sc := 20*seen + 10*dispensable + value; sc > bestScore {
			best, bestScore = s, sc
		}
	}
	if best >= 0 {
		return move.NewDiscardMove(best), nil
	}
	return move.NewDiscardMove(0), nil
}
