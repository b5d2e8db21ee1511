package montecarlo

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/facebookresearch/Hanabi-SPARTA/ai/turnplayer"
	"github.com/facebookresearch/Hanabi-SPARTA/card"
	"github.com/facebookresearch/Hanabi-SPARTA/config"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
	"github.com/facebookresearch/Hanabi-SPARTA/rangefinder"
)

// BotStats are a search bot's running totals over a game.
type BotStats struct {
	Searches     int
	ChangedMoves int
	// ScoreDifference sums, over changed moves, the searched mean of the
	// chosen move minus that of the blueprint move. It is biased upwards;
	// the Unbiased sums come from a second, independent search.
	ScoreDifference         float64
	UnbiasedScoreDifference float64
	UnbiasedWinDifference   float64
	TotalIters              int
	Warnings                int
	// LastWarning is the latest range or sampling failure.
	LastWarning error
}

func (st *BotStats) warn(errs ...error) {
	for _, err := range errs {
		st.Warnings++
		st.LastWarning = err
	}
}

// SearchBot plays like its blueprint, except that on its own turns it
// searches, assuming every other seat plays the blueprint.
type SearchBot struct {
	seat     int
	cfg      *config.Config
	bp       turnplayer.AITurnPlayer
	rf       *rangefinder.RangeFinder
	searcher *Searcher
	seed     uint64
	gameID   string
	inited   bool

	decisionLog io.Writer
	trueHand    func() []card.Card

	stats BotStats
}

func NewSearchBot(seat int, bp turnplayer.AITurnPlayer, cfg *config.Config, seed uint64) (*SearchBot, error) {
	if !turnplayer.IsSeatAgnostic(bp) {
		return nil, fmt.Errorf("blueprint %s cannot play every seat", bp.Name())
	}
	rf := &rangefinder.RangeFinder{}
	rf.Init(seat, rangefinder.ModePrivate, cfg, seed)
	return &SearchBot{
		seat:     seat,
		cfg:      cfg,
		bp:       bp,
		rf:       rf,
		searcher: NewSearcher(ParamsFromConfig(cfg)),
		seed:     seed,
	}, nil
}

func (s *SearchBot) Name() string { return "SearchBot" }

func (s *SearchBot) SetGameID(id string) { s.gameID = id }

// SetDecisionLog makes the bot write a search line for every decision. w
// must be safe for concurrent writes if it is shared.
func (s *SearchBot) SetDecisionLog(w io.Writer) { s.decisionLog = w }

// SetTrueHand gives the bot a way to peek at its hand, used to check its
// beliefs when check-beliefs is on.
func (s *SearchBot) SetTrueHand(f func() []card.Card) { s.trueHand = f }

func (s *SearchBot) Searcher() *Searcher                   { return s.searcher }
func (s *SearchBot) RangeFinder() *rangefinder.RangeFinder { return s.rf }
func (s *SearchBot) Stats() BotStats                       { return s.stats }

// BeliefSummary tabulates the range against the cards left.
func (s *SearchBot) BeliefSummary() string {
	return s.rf.AnalyzeInferences(false)
}

func (s *SearchBot) ensureInit(v *game.View) {
	if s.inited {
		return
	}
	s.rf.Reset(v)
	s.inited = true
}

func (s *SearchBot) ObserveMove(before *game.View, d game.Delta, after *game.View) {
	if before.Observer != s.seat {
		log.Error().Int("seat", s.seat).Int("observer", before.Observer).Msg("search-bot-given-foreign-view")
		s.bp.ObserveMove(before, d, after)
		return
	}
	s.ensureInit(before)
	ctx := log.Logger.WithContext(context.Background())
	if err := s.rf.Observe(ctx, before, d, after, s.bp); err != nil {
		log.Warn().Err(err).Int("seat", s.seat).Int("turn", d.Turn).Msg("range-observe-failed")
		s.stats.warn(err)
	}
	s.bp.ObserveMove(before, d, after)
	if s.cfg.GetBool(config.ConfigCheckBeliefs) {
		s.checkBeliefs(after)
	}
	if after.Over {
		log.Info().Int("seat", s.seat).Str("game", s.gameID).Int("searches", s.stats.Searches).
			Int("changed", s.stats.ChangedMoves).Float64("score-diff", s.stats.ScoreDifference).
			Float64("unbiased-score-diff", s.stats.UnbiasedScoreDifference).
			Int("iterations", s.stats.TotalIters).Int("resamples", s.rf.Resamples()).
			Msg("search-bot-summary")
	}
}

// checkBeliefs panics if the true hand is ruled out by the candidate sets
// of v, and logs hypotheses that are.
func (s *SearchBot) checkBeliefs(v *game.View) {
	if s.trueHand == nil {
		return
	}
	hand := s.trueHand()
	for slot, c := range hand {
		if !v.Own[slot].Has(c) {
			panic(fmt.Sprintf("seat %d turn %d: slot %d holds %s, outside its candidates %s",
				s.seat, v.TurnNum, slot, c, v.Own[slot]))
		}
	}
	bad := 0
	for _, p := range s.rf.Particles() {
		for slot, c := range p.Hand {
			if !v.Own[slot].Has(c) {
				bad++
				break
			}
		}
	}
	if bad > 0 {
		log.Error().Int("seat", s.seat).Int("turn", v.TurnNum).Int("inconsistent", bad).Msg("range-inconsistent")
	}
	if !s.rf.Contains(hand) {
		log.Debug().Int("seat", s.seat).Int("turn", v.TurnNum).Msg("true-hand-not-sampled")
	}
}

func (s *SearchBot) request(v *game.View) *Request {
	s.ensureInit(v)
	return &Request{
		View:      v,
		Blueprint: s.bp,
		Range:     s.rf.Range(),
		Seed:      s.seed<<16 ^ uint64(v.TurnNum),
	}
}

// Analyze searches v the way Decide would, without keeping statistics.
func (s *SearchBot) Analyze(ctx context.Context, v *game.View) (*SearchResult, error) {
	return s.searcher.Search(ctx, s.request(v))
}

func (s *SearchBot) Decide(ctx context.Context, v *game.View) (move.Move, error) {
	logger := zerolog.Ctx(ctx)
	req := s.request(v)
	res, err := s.searcher.Search(ctx, req)
	if err != nil {
		return move.Move{}, err
	}
	s.stats.Searches++
	s.stats.TotalIters += res.Iterations
	s.stats.warn(res.Warnings...)

	if res.Move != res.Blueprint {
		s.stats.ChangedMoves++
		s.stats.ScoreDifference += res.Stats(res.Move).Mean() - res.Stats(res.Blueprint).Mean()
		if s.searcher.Params().DoubleSearch {
			second := *req
			second.Seed = ^req.Seed
			res2, err := s.searcher.Search(ctx, &second)
			if err != nil {
				return move.Move{}, err
			}
			if a, b := res2.Stats(res.Move), res2.Stats(res.Blueprint); a != nil && b != nil {
				s.stats.UnbiasedScoreDifference += a.Mean() - b.Mean()
				s.stats.UnbiasedWinDifference += a.WinRate() - b.WinRate()
			}
			s.stats.TotalIters += res2.Iterations
		}
		logger.Info().Int("seat", s.seat).Int("turn", v.TurnNum).Str("blueprint", res.Blueprint.ShortDescription()).
			Str("chosen", res.Move.ShortDescription()).Msg("search-changed-move")
	}
	if s.decisionLog != nil {
		io.WriteString(s.decisionLog, SearchLine(s.gameID, v.TurnNum, s.seat, res))
	}
	return res.Move, nil
}

func (s *SearchBot) Clone() turnplayer.AITurnPlayer {
	c := *s
	c.bp = s.bp.Clone()
	c.rf = s.rf.Copy()
	return &c
}
