package rangefinder

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/facebookresearch/Hanabi-SPARTA/ai/turnplayer"
	"github.com/facebookresearch/Hanabi-SPARTA/card"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

// HypotheticalView returns actor's view under the hypothesis that seat
// holds hand, built from v. v must be the view of seat or of actor; any
// other observer lacks a hand it would need.
func HypotheticalView(v *game.View, seat int, hand []card.Card, actor int) (*game.View, bool) {
	switch v.Observer {
	case seat:
		return v.ViewAs(actor, hand), true
	case actor:
		return v.Assume(seat, hand), true
	}
	return nil, false
}

// filterByAction asks the blueprint what actor would have done under each
// hypothesis. Hypotheses under which it would have moved differently keep
// only the partner-uniform-unc share of their weight.
func (r *RangeFinder) filterByAction(ctx context.Context, before *game.View, m move.Move,
	actor int, partner turnplayer.AITurnPlayer) error {

	logger := zerolog.Ctx(ctx)
	mismatch := make([]bool, len(r.particles))
	var checked atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for t := range r.threads {
		g.Go(func() error {
			for i := t; i < len(r.particles); i += r.threads {
				if err := gctx.Err(); err != nil {
					return err
				}
				hv, ok := HypotheticalView(before, r.seat, r.particles[i].Hand, actor)
				if !ok {
					continue
				}
				cf, err := turnplayer.GenBestStaticTurn(gctx, partner.Clone(), hv)
				if err != nil {
					return err
				}
				mismatch[i] = cf != m
				checked.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	r.iterationCount += int(checked.Load())

	oldSize := len(r.particles)
	mismatches := 0
	kept := r.particles[:0]
	for i, p := range r.particles {
		if mismatch[i] {
			p.Weight *= r.partnerUnc
			mismatches++
		}
		if p.Weight > 0 {
			kept = append(kept, p)
		}
	}
	r.particles = kept
	logger.Debug().Int("seat", r.seat).Int("actor", actor).Str("move", m.ShortDescription()).
		Int("mismatches", mismatches).Int("before", oldSize).Int("after", len(kept)).
		Msg("partner-action-filtered")
	return nil
}
