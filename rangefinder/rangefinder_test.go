package rangefinder

import (
	"context"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/facebookresearch/Hanabi-SPARTA/ai/heuristic"
	"github.com/facebookresearch/Hanabi-SPARTA/ai/turnplayer"
	"github.com/facebookresearch/Hanabi-SPARTA/belief"
	"github.com/facebookresearch/Hanabi-SPARTA/card"
	"github.com/facebookresearch/Hanabi-SPARTA/config"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

func testConfig(particles int, unc float64) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Set(config.ConfigRangeParticles, particles)
	cfg.Set(config.ConfigPartnerUniformUnc, unc)
	cfg.Set(config.ConfigThreads, 2)
	return cfg
}

func consistent(hand []card.Card, sets []belief.Set) bool {
	if len(hand) != len(sets) {
		return false
	}
	for i, c := range hand {
		if !sets[i].Has(c) {
			return false
		}
	}
	return true
}

func TestResetParticlesMatchCandidates(t *testing.T) {
	is := is.New(t)
	g, err := game.Start(42, 2)
	is.NoErr(err)
	c, _ := g.CardAt(1, 0)
	_, err = g.ApplyMove(move.NewColorHintMove(1, c.Color))
	is.NoErr(err)

	v := g.ViewFor(1)
	rf := &RangeFinder{}
	rf.Init(1, ModePrivate, testConfig(300, 0), 1)
	rf.Reset(v)
	is.True(rf.Size() > 0)
	is.True(rf.Size() <= 300)
	seen := map[uint64]bool{}
	for _, p := range rf.Particles() {
		is.True(p.Weight > 0)
		is.True(consistent(p.Hand, v.Own))
		k := handKey(p.Hand)
		is.True(!seen[k]) // hands are deduplicated
		seen[k] = true
	}
}

func TestSameSeedSameParticles(t *testing.T) {
	is := is.New(t)
	g, err := game.Start(3, 3)
	is.NoErr(err)
	v := g.ViewFor(2)
	a, b := &RangeFinder{}, &RangeFinder{}
	a.Init(2, ModePublic, testConfig(100, 0), 12345)
	b.Init(2, ModePublic, testConfig(100, 0), 12345)
	a.Reset(v)
	b.Reset(g.ViewFor(0))
	is.Equal(a.Size(), b.Size())
	for i := range a.Particles() {
		is.True(slices.Equal(a.Particles()[i].Hand, b.Particles()[i].Hand))
		is.Equal(a.Particles()[i].Weight, b.Particles()[i].Weight)
	}
}

func TestHintAndOwnPlay(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	g, err := game.Start(42, 2)
	is.NoErr(err)
	rf := &RangeFinder{}
	rf.Init(1, ModePrivate, testConfig(500, 0), 9)
	rf.Reset(g.ViewFor(1))

	step := func(m move.Move) game.Delta {
		before := g.ViewFor(1)
		d, err := g.ApplyMove(m)
		is.NoErr(err)
		is.NoErr(rf.Observe(ctx, before, d, g.ViewFor(1), nil))
		return d
	}

	c, _ := g.CardAt(1, 2)
	d := step(move.NewValueHintMove(1, c.Value))
	for _, p := range rf.Particles() {
		for slot, pc := range p.Hand {
			is.Equal(pc.Value == c.Value, slices.Contains(d.TouchedSlots, slot))
		}
	}

	// seat 1 plays its first card and draws
	step(move.NewPlayMove(0))
	v := g.ViewFor(1)
	for _, p := range rf.Particles() {
		is.Equal(len(p.Hand), g.HandSize(1))
		is.True(consistent(p.Hand, v.Own))
	}
}

func TestPartnerActionFilter(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	g, err := game.Start(7, 2)
	is.NoErr(err)
	bp := heuristic.NewSmartBot()
	rf := &RangeFinder{}
	rf.Init(1, ModePrivate, testConfig(200, 0), 5)
	rf.Reset(g.ViewFor(1))

	for turn := 0; turn < 6 && !g.IsOver(); turn++ {
		v := g.ViewFor(g.PlayerOnTurn())
		m, err := turnplayer.GenBestStaticTurn(ctx, bp.Clone(), v)
		is.NoErr(err)
		before := g.ViewFor(1)
		d, err := g.ApplyMove(m)
		is.NoErr(err)
		is.NoErr(rf.Observe(ctx, before, d, g.ViewFor(1), bp))
		if d.Actor == 0 && rf.Resamples() == 0 {
			for _, p := range rf.Particles() {
				hv, ok := HypotheticalView(before, 1, p.Hand, 0)
				is.True(ok)
				cf, err := turnplayer.GenBestStaticTurn(ctx, bp.Clone(), hv)
				is.NoErr(err)
				is.Equal(cf, m) // surviving hypotheses explain the partner's move
			}
		}
		bp.ObserveMove(v, d, g.ViewFor(g.PlayerOnTurn()))
	}
	is.True(rf.Iterations() > 0)
}

func TestRangeSampleAndPrivatize(t *testing.T) {
	is := is.New(t)
	r1 := card.Card{Color: card.Red, Value: 1}
	b5 := card.Card{Color: card.Blue, Value: 5}
	g2 := card.Card{Color: card.Green, Value: 2}
	hands := [][]card.Card{{r1, g2}, {b5, g2}, {r1, r1}}
	rg := NewRange(hands, []float64{1, 3, 0})
	is.Equal(rg.Size(), 2) // zero weights are dropped

	rng := rand.New(rand.NewPCG(1, 2))
	counts := map[card.Card]int{}
	for range 4000 {
		counts[rg.Sample(rng)[0]]++
	}
	is.True(counts[b5] > 2*counts[r1])

	// the partner holds the only blue 5
	priv := rg.Privatize([]card.Card{b5}, card.FullComposition())
	is.Equal(priv.Size(), 1)
	is.True(slices.Equal(priv.Hand(0), []card.Card{r1, g2}))
}

func TestAnalyzeInferences(t *testing.T) {
	is := is.New(t)
	g, err := game.Start(11, 2)
	is.NoErr(err)
	rf := &RangeFinder{}
	rf.Init(0, ModePrivate, testConfig(100, 0), 3)
	is.Equal(rf.AnalyzeInferences(true), "No inference details.")
	rf.Reset(g.ViewFor(0))
	is.True(strings.Contains(rf.AnalyzeInferences(true), "Expected %"))
	is.True(strings.Contains(rf.AnalyzeInferences(false), "About as expected:"))
}

func TestExactRangeKeepsTrueHand(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	bp := heuristic.NewSmartBot()
	checked := 0
	for seed := int64(1); seed <= 5 && checked == 0; seed++ {
		g, err := game.Start(seed, 2)
		is.NoErr(err)
		// play until only a couple of cards are left to draw
		for !g.IsOver() && g.DeckRemaining() > 2 {
			v := g.ViewFor(g.PlayerOnTurn())
			m, err := turnplayer.GenBestStaticTurn(ctx, bp.Clone(), v)
			is.NoErr(err)
			_, err = g.ApplyMove(m)
			is.NoErr(err)
		}
		if g.IsOver() {
			continue
		}

		rf := &RangeFinder{}
		rf.Init(0, ModePrivate, testConfig(5000, 1), uint64(seed))
		rf.Reset(g.ViewFor(0))
		is.True(rf.Exact())
		is.True(rf.Contains(g.Hand(0)))
		for _, p := range rf.Particles() {
			is.True(consistent(p.Hand, g.ViewFor(0).Own))
		}

		for !g.IsOver() {
			v := g.ViewFor(g.PlayerOnTurn())
			m, err := turnplayer.GenBestStaticTurn(ctx, bp.Clone(), v)
			is.NoErr(err)
			before := g.ViewFor(0)
			d, err := g.ApplyMove(m)
			is.NoErr(err)
			is.NoErr(rf.Observe(ctx, before, d, g.ViewFor(0), bp))
			is.True(rf.Exact())
			is.True(rf.Contains(g.Hand(0)))
			is.Equal(rf.Resamples(), 0)
			checked++
		}
	}
	is.True(checked > 0)
}

func TestEnumerateHandsGivesUp(t *testing.T) {
	is := is.New(t)
	sets := []belief.Set{belief.All, belief.All, belief.All}
	_, ok := enumerateHands(card.FullComposition(), sets, 100)
	is.True(!ok)

	r1 := card.Card{Color: card.Red, Value: 1}
	r5 := card.Card{Color: card.Red, Value: 5}
	var comp card.Composition
	comp.Add(r1)
	comp.Add(r1)
	comp.Add(r5)
	ps, ok := enumerateHands(comp, []belief.Set{belief.All, belief.Single(r1)}, 100)
	is.True(ok)
	is.Equal(len(ps), 2)
	weights := map[card.Card]float64{}
	for _, p := range ps {
		is.Equal(p.Hand[1], r1)
		weights[p.Hand[0]] = p.Weight
	}
	// r1 r1 can be dealt two ways, r5 r1 two ways as well
	is.Equal(weights[r1], 2.0)
	is.Equal(weights[r5], 2.0)
}
