// Package rangefinder keeps a weighted set of hypotheses ("particles") about
// the cards in one seat's hand, and narrows it as the game goes on: hints
// rule hands out, newly seen cards make some hands less likely, and a
// partner's move can be checked against what a blueprint policy would have
// done had the hand been the hypothesised one.
package rangefinder

import (
	"context"
	"errors"
	"math/rand/v2"
	"runtime"
	"slices"

	"github.com/pbnjay/memory"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/facebookresearch/Hanabi-SPARTA/ai/turnplayer"
	"github.com/facebookresearch/Hanabi-SPARTA/belief"
	"github.com/facebookresearch/Hanabi-SPARTA/card"
	"github.com/facebookresearch/Hanabi-SPARTA/config"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

var ErrRangeExhausted = errors.New("no hand hypothesis is consistent with the game")

// Mode says whose information a range is built from.
type Mode int

const (
	// ModePrivate ranges belong to the seat itself: everything that seat
	// sees is taken into account.
	ModePrivate Mode = iota
	// ModePublic ranges use public information only. Every player computes
	// the same public range for a seat.
	ModePublic
)

const (
	// bytes per particle, generously, for the memory cap
	particleBytes = 256
	// sampling attempts per particle wanted on a reset
	resetAttempts = 4
)

// Particle is one hypothesis about a hand, in slot order.
type Particle struct {
	Hand   []card.Card
	Weight float64
}

type RangeFinder struct {
	seat    int
	mode    Mode
	threads int

	maxParticles int
	partnerUnc   float64

	src       *rand.PCG
	rng       *rand.Rand
	particles []Particle
	// exact is set while the particles are every hand the range allows,
	// not a sample of them.
	exact bool

	// counters
	iterationCount int
	resamples      int
	lastComp       card.Composition
}

// Init prepares an empty range for seat. seed fixes every random choice
// the range makes, so two range finders given the same seed and the same
// observations hold identical particles.
func (r *RangeFinder) Init(seat int, mode Mode, cfg *config.Config, seed uint64) {
	r.seat = seat
	r.mode = mode
	r.threads = max(1, runtime.NumCPU()-1)
	r.maxParticles = cfg.GetInt(config.ConfigRangeParticles)
	r.partnerUnc = cfg.GetFloat64(config.ConfigPartnerUniformUnc)
	if t := cfg.GetInt(config.ConfigThreads); t > 0 {
		r.threads = t
	}
	if free := memory.FreeMemory(); free > 0 {
		// leave most of the memory to the search
		memCap := int(free / 8 / particleBytes)
		if memCap < r.maxParticles {
			log.Warn().Int("wanted", r.maxParticles).Int("cap", memCap).Msg("range-capped-by-memory")
			r.maxParticles = max(1, memCap)
		}
	}
	r.src = rand.NewPCG(seed, uint64(seat))
	r.rng = rand.New(r.src)
	r.particles = nil
	r.exact = false
}

func (r *RangeFinder) SetThreads(t int) {
	r.threads = max(1, t)
}

// SetMaxParticles overrides the particle budget, memory cap included.
// Ranges that must come out the same on every machine use it.
func (r *RangeFinder) SetMaxParticles(n int) {
	r.maxParticles = max(1, n)
}

// SetPartnerUnc sets the share of weight kept by hypotheses under which the
// partner's blueprint would have moved differently. 0 drops them.
func (r *RangeFinder) SetPartnerUnc(unc float64) {
	r.partnerUnc = unc
}

func (r *RangeFinder) Seat() int       { return r.seat }
func (r *RangeFinder) Size() int       { return len(r.particles) }
func (r *RangeFinder) Resamples() int  { return r.resamples }
func (r *RangeFinder) Iterations() int { return r.iterationCount }
func (r *RangeFinder) Exact() bool     { return r.exact }

// Particles returns the current hypotheses. The caller must not modify them.
func (r *RangeFinder) Particles() []Particle {
	return r.particles
}

// Copy returns an independent range finder in the same state.
func (r *RangeFinder) Copy() *RangeFinder {
	c := *r
	src := *r.src
	c.src = &src
	c.rng = rand.New(c.src)
	c.particles = slices.Clone(r.particles)
	return &c
}

// pool is the composition the seat's hand and the deck are drawn from, as
// far as this range knows.
func (r *RangeFinder) pool(v *game.View) card.Composition {
	if r.mode == ModePublic {
		return v.Unrevealed()
	}
	return v.Unseen()
}

func (r *RangeFinder) candidates(v *game.View) []belief.Set {
	if r.mode == ModePublic {
		return v.Public[r.seat]
	}
	return v.Own
}

// Reset throws all hypotheses away and builds fresh ones consistent with v:
// every possible hand if there are no more than the particle budget, else a
// sample.
func (r *RangeFinder) Reset(v *game.View) {
	r.lastComp = r.pool(v)
	sets := r.candidates(v)
	if ps, ok := enumerateHands(r.lastComp, sets, r.maxParticles); ok && len(ps) > 0 {
		r.particles = ps
		r.exact = true
		log.Debug().Int("seat", r.seat).Int("particles", len(ps)).Msg("range-reset-exact")
		return
	}
	r.exact = false
	ps := make([]Particle, 0, r.maxParticles)
	seen := map[uint64]int{}
	for range r.maxParticles * resetAttempts {
		if len(ps) >= r.maxParticles {
			break
		}
		hand, w, ok := sampleHand(r.rng, r.lastComp, sets)
		if !ok {
			continue
		}
		ps = addParticle(ps, seen, Particle{Hand: hand, Weight: w})
	}
	r.particles = ps
	log.Debug().Int("seat", r.seat).Int("particles", len(ps)).Msg("range-reset")
}

// Contains reports whether hand is one of the hypotheses.
func (r *RangeFinder) Contains(hand []card.Card) bool {
	return slices.ContainsFunc(r.particles, func(p Particle) bool {
		return slices.Equal(p.Hand, hand)
	})
}

// Observe narrows the range with one applied move. before and after are the
// views of the range owner; partner, if not nil, is the blueprint used to
// check the actor's move, in its state from before the move.
func (r *RangeFinder) Observe(ctx context.Context, before *game.View, d game.Delta,
	after *game.View, partner turnplayer.AITurnPlayer) error {

	logger := zerolog.Ctx(ctx)
	oldSize := len(r.particles)

	if d.Actor != r.seat && partner != nil && r.partnerUnc < 1 {
		if err := r.filterByAction(ctx, before, d.Move, d.Actor, partner); err != nil {
			return err
		}
	}
	if d.Move.IsHint() && d.Move.Target() == r.seat {
		r.filterByHint(d)
	}
	switch d.Move.Action() {
	case move.MoveTypePlay, move.MoveTypeDiscard:
		if d.Actor == r.seat {
			r.removeCard(d.Move.Slot(), d.Card)
			if d.DrawnID >= 0 {
				r.drawCard(after)
			}
		}
		r.reveal(before, after, d)
	}
	r.lastComp = r.pool(after)

	if len(r.particles) == 0 {
		logger.Warn().Int("seat", r.seat).Int("turn", d.Turn).Msg("range-exhausted-resampling")
		r.resamples++
		r.Reset(after)
		if len(r.particles) == 0 {
			return ErrRangeExhausted
		}
	}
	logger.Debug().Int("seat", r.seat).Int("turn", d.Turn).Int("before", oldSize).
		Int("after", len(r.particles)).Msg("belief-filtered")
	return nil
}

// Filter keeps the hypotheses keep accepts. If none is left the range is
// resampled from v and ErrRangeExhausted is returned when that fails too.
func (r *RangeFinder) Filter(v *game.View, keep func(hand []card.Card) bool) error {
	r.particles = lo.Filter(r.particles, func(p Particle, _ int) bool {
		return keep(p.Hand)
	})
	if len(r.particles) == 0 {
		log.Warn().Int("seat", r.seat).Int("turn", v.TurnNum).Msg("range-exhausted-resampling")
		r.resamples++
		r.Reset(v)
		if len(r.particles) == 0 {
			return ErrRangeExhausted
		}
	}
	return nil
}

func (r *RangeFinder) filterByHint(d game.Delta) {
	r.particles = lo.Filter(r.particles, func(p Particle, _ int) bool {
		for slot, c := range p.Hand {
			if d.Move.Touches(c) != slices.Contains(d.TouchedSlots, slot) {
				return false
			}
		}
		return true
	})
}

// removeCard keeps the hypotheses that had c in slot and takes it out.
func (r *RangeFinder) removeCard(slot int, c card.Card) {
	kept := r.particles[:0]
	for _, p := range r.particles {
		if slot >= len(p.Hand) || p.Hand[slot] != c {
			continue
		}
		p.Hand = slices.Delete(slices.Clone(p.Hand), slot, slot+1)
		kept = append(kept, p)
	}
	r.particles = kept
}

// drawCard appends a card to every hypothesis, drawn from what is left of
// the pool once the rest of the hypothesised hand is taken out. An exact
// range is extended by every card that could have been drawn, as long as
// that fits the particle budget.
func (r *RangeFinder) drawCard(after *game.View) {
	pool := r.pool(after)
	sets := r.candidates(after)
	newest := sets[len(sets)-1]
	if r.exact {
		if out, ok := r.expandDraw(pool, newest); ok {
			r.particles = out
			return
		}
		r.exact = false
	}
	seen := map[uint64]int{}
	out := make([]Particle, 0, len(r.particles))
	for _, p := range r.particles {
		rest := pool
		ok := true
		for _, c := range p.Hand {
			if !rest.Remove(c) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		total := rest.Total()
		c, z, ok := drawOne(r.rng, &rest, newest)
		if !ok {
			continue
		}
		out = addParticle(out, seen, Particle{
			Hand:   append(p.Hand, c),
			Weight: p.Weight * z / float64(total),
		})
	}
	r.particles = out
}

func (r *RangeFinder) expandDraw(pool card.Composition, newest belief.Set) ([]Particle, bool) {
	seen := map[uint64]int{}
	out := make([]Particle, 0, len(r.particles))
	for _, p := range r.particles {
		rest := pool
		ok := true
		for _, c := range p.Hand {
			if !rest.Remove(c) {
				ok = false
				break
			}
		}
		total := rest.Total()
		if !ok || total == 0 {
			continue
		}
		for _, c := range newest.Cards() {
			n := rest.Count(c)
			if n == 0 {
				continue
			}
			out = addParticle(out, seen, Particle{
				Hand:   append(slices.Clone(p.Hand), c),
				Weight: p.Weight * float64(n) / float64(total),
			})
			if len(out) > r.maxParticles {
				return nil, false
			}
		}
	}
	return out, true
}

// reveal reweights the hypotheses by the likelihood of a card that just
// came into sight: the fewer copies a hypothesis leaves for the deck, the
// less likely it is.
func (r *RangeFinder) reveal(before, after *game.View, d game.Delta) {
	var c card.Card
	switch {
	case r.mode == ModePrivate && d.Actor != r.seat && d.DrawnID >= 0:
		// the actor's replacement card comes into the owner's sight
		hand := after.Hands[d.Actor]
		c = hand[len(hand)-1]
	case r.mode == ModePublic && d.Actor != r.seat:
		c = d.Card
	default:
		return
	}
	if !c.Valid() {
		return
	}
	remaining := r.pool(before).Count(c)
	if remaining == 0 {
		return
	}
	kept := r.particles[:0]
	for _, p := range r.particles {
		in := lo.Count(p.Hand, c)
		if in > 0 {
			p.Weight *= float64(remaining-in) / float64(remaining)
		}
		if p.Weight > 0 {
			kept = append(kept, p)
		}
	}
	r.particles = kept
}
