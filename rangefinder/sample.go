package rangefinder

import (
	"encoding/binary"
	"math/rand/v2"
	"slices"
	"sort"

	"github.com/cespare/xxhash"

	"github.com/facebookresearch/Hanabi-SPARTA/belief"
	"github.com/facebookresearch/Hanabi-SPARTA/card"
)

// drawOne takes one card out of comp, restricted to set, with probability
// proportional to its count. It returns the card and the number of cards
// it was chosen from.
func drawOne(rng *rand.Rand, comp *card.Composition, set belief.Set) (card.Card, float64, bool) {
	z := 0
	for _, c := range set.Cards() {
		z += comp.Count(c)
	}
	if z == 0 {
		return card.Card{}, 0, false
	}
	pick := rng.IntN(z)
	for _, c := range set.Cards() {
		pick -= comp.Count(c)
		if pick < 0 {
			comp.Remove(c)
			return c, float64(z), true
		}
	}
	panic("unreachable")
}

// sampleHand draws a hand slot by slot from comp, each slot restricted to
// its candidate set. The returned weight corrects for the restriction, so
// that weighted samples are distributed like uniformly dealt hands that
// agree with the sets.
func sampleHand(rng *rand.Rand, comp card.Composition, sets []belief.Set) ([]card.Card, float64, bool) {
	hand := make([]card.Card, len(sets))
	w := 1.0
	for i, s := range sets {
		c, z, ok := drawOne(rng, &comp, s)
		if !ok {
			return nil, 0, false
		}
		hand[i] = c
		w *= z
	}
	return hand, w, true
}

// enumerateHands lists every hand that agrees with sets and can be dealt
// from comp, weighted like sampleHand's hands once duplicates are folded. It
// gives up once there are more than limit.
func enumerateHands(comp card.Composition, sets []belief.Set, limit int) ([]Particle, bool) {
	var out []Particle
	hand := make([]card.Card, len(sets))
	var walk func(slot int, w float64) bool
	walk = func(slot int, w float64) bool {
		if slot == len(sets) {
			if len(out) >= limit {
				return false
			}
			out = append(out, Particle{Hand: slices.Clone(hand), Weight: w})
			return true
		}
		for _, c := range sets[slot].Cards() {
			n := comp.Count(c)
			if n == 0 {
				continue
			}
			comp.Remove(c)
			hand[slot] = c
			ok := walk(slot+1, w*float64(n))
			comp.Add(c)
			if !ok {
				return false
			}
		}
		return true
	}
	if !walk(0, 1) {
		return nil, false
	}
	return out, true
}

func handKey(hand []card.Card) uint64 {
	var buf [8]byte
	d := xxhash.New()
	for _, c := range hand {
		binary.LittleEndian.PutUint16(buf[:2], uint16(c.Index()))
		d.Write(buf[:2])
	}
	return d.Sum64()
}

// addParticle appends p to ps, or folds its weight into an existing
// particle holding the same hand. seen maps hand keys to indexes in ps.
func addParticle(ps []Particle, seen map[uint64]int, p Particle) []Particle {
	k := handKey(p.Hand)
	if i, ok := seen[k]; ok && slices.Equal(ps[i].Hand, p.Hand) {
		ps[i].Weight += p.Weight
		return ps
	}
	seen[k] = len(ps)
	return append(ps, p)
}

// Range is an immutable snapshot of a range finder, ready to sample from.
// It is safe for concurrent use.
type Range struct {
	hands   [][]card.Card
	weights []float64
	// cum[i] is the total weight of hands before i, normalised to 1.
	cum []float64
}

// Range takes a snapshot of the current hypotheses.
func (r *RangeFinder) Range() *Range {
	hands := make([][]card.Card, len(r.particles))
	weights := make([]float64, len(r.particles))
	for i, p := range r.particles {
		hands[i] = p.Hand
		weights[i] = p.Weight
	}
	return NewRange(hands, weights)
}

// NewRange builds a range from hands and their weights. Hands of zero weight
// are dropped.
func NewRange(hands [][]card.Card, weights []float64) *Range {
	rg := &Range{}
	total := 0.0
	for i, h := range hands {
		if weights[i] <= 0 {
			continue
		}
		rg.hands = append(rg.hands, h)
		rg.weights = append(rg.weights, weights[i])
		total += weights[i]
	}
	rg.cum = make([]float64, len(rg.hands))
	acc := 0.0
	for i, w := range rg.weights {
		rg.cum[i] = acc / total
		acc += w
	}
	return rg
}

func (rg *Range) Size() int {
	if rg == nil {
		return 0
	}
	return len(rg.hands)
}

func (rg *Range) Hand(i int) []card.Card { return rg.hands[i] }
func (rg *Range) Weight(i int) float64   { return rg.weights[i] }

// Sample draws a hand by weight. The range must not be empty.
func (rg *Range) Sample(rng *rand.Rand) []card.Card {
	x := rng.Float64()
	i := sort.SearchFloat64s(rg.cum, x)
	// SearchFloat64s finds the first cum >= x; we want the last cum <= x.
	if i == len(rg.cum) || rg.cum[i] > x {
		i--
	}
	return rg.hands[max(0, i)]
}

// Privatize turns a public range into the private one of a player who also
// sees partner, the cards of the other hand. public is the composition the
// public range was drawn from. Each hypothesis is reweighted by how much
// likelier it is once partner's cards are out of the pool; hypotheses that
// need one of partner's cards are dropped.
func (rg *Range) Privatize(partner []card.Card, public card.Composition) *Range {
	private := public
	for _, c := range partner {
		private.Remove(c)
	}
	weights := make([]float64, len(rg.hands))
	for i, h := range rg.hands {
		if old := prior(h, public); old > 0 {
			weights[i] = rg.weights[i] * prior(h, private) / old
		}
	}
	return NewRange(rg.hands, weights)
}

// prior is proportional to the chance of dealing hand, in order, from comp.
func prior(hand []card.Card, comp card.Composition) float64 {
	p := 1.0
	for _, c := range hand {
		p *= float64(comp.Count(c))
		comp.Remove(c)
	}
	return p
}
