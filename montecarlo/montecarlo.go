// Package montecarlo implements the search bots: for the player on turn it
// samples hands from a range, plays every legal move on each sample, and
// lets a blueprint policy finish the game. The move with the best average
// outcome wins, but the blueprint's own move gets a head start.
package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/facebookresearch/Hanabi-SPARTA/ai/turnplayer"
	"github.com/facebookresearch/Hanabi-SPARTA/card"
	"github.com/facebookresearch/Hanabi-SPARTA/config"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
	"github.com/facebookresearch/Hanabi-SPARTA/rangefinder"
	"github.com/facebookresearch/Hanabi-SPARTA/stats"
)

/*
	How to search:

	For iteration in iterations:
		sample a hand from the range and shuffle the rest of the unseen
		cards into a deck. every candidate uses the same hand and deck.
		For move in candidate moves that are not pruned:
			build a game from the view and the sample, play the move
			let the blueprint play every seat until the game is over,
			or for a fixed number of turns
			record the outcome

	Iterations run in batches, one per worker. After each batch the
	outcomes are added up in iteration order and hopeless candidates are
	pruned, so the result does not depend on how the workers were
	scheduled.
*/

var (
	ErrSamplingExhausted = errors.New("no deal is consistent with the range")
	ErrNotOnTurn         = errors.New("searching player is not on turn")
)

// Params are the knobs of one search.
type Params struct {
	// Rollouts is the budget: candidate moves times iterations.
	Rollouts int
	// Thresh is the head start of the blueprint move, in points.
	Thresh float64
	// Depth limits rollouts to that many turns after the candidate move;
	// 0 plays to the end of the game.
	Depth int
	// EvalWeight scores a cut-off rollout as its score plus this share of
	// the points still reachable.
	EvalWeight   float64
	Baseline     bool
	UCB          bool
	OptimizeWins bool
	DoubleSearch bool
	Threads      int
	TimeBudget   time.Duration
}

func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		Rollouts:     cfg.GetInt(config.ConfigSearchN),
		Thresh:       cfg.GetFloat64(config.ConfigSearchThresh),
		Depth:        cfg.GetInt(config.ConfigSearchDepth),
		EvalWeight:   cfg.GetFloat64(config.ConfigSearchEvalWeight),
		Baseline:     cfg.GetBool(config.ConfigSearchBaseline),
		UCB:          cfg.GetBool(config.ConfigUCB),
		OptimizeWins: cfg.GetBool(config.ConfigOptimizeWins),
		DoubleSearch: cfg.GetBool(config.ConfigDoubleSearch),
		Threads:      max(1, cfg.GetInt(config.ConfigThreads)),
		TimeBudget:   cfg.GetDuration(config.ConfigSearchTime),
	}
}

// LogIteration is a struct meant for serializing to a log-file, for debug
// and other purposes.
type LogIteration struct {
	Iteration int       `yaml:"iteration"`
	Hand      string    `yaml:"hand"`
	Moves     []LogMove `yaml:"moves,flow"`
}

type LogMove struct {
	Move  string  `yaml:"move"`
	Score float64 `yaml:"score"`
}

type SimmedMove struct {
	move       move.Move
	scoreStats stats.Statistic
	winStats   stats.Statistic
	bias       float64
	pruned     bool
}

func (sm *SimmedMove) Move() move.Move { return sm.move }
func (sm *SimmedMove) Mean() float64   { return sm.scoreStats.Mean() }

// Value is the mean plus the head start, if any.
func (sm *SimmedMove) Value() float64    { return sm.scoreStats.Mean() + sm.bias }
func (sm *SimmedMove) WinRate() float64  { return sm.winStats.Mean() }
func (sm *SimmedMove) Iterations() int   { return sm.scoreStats.Iterations() }
func (sm *SimmedMove) Pruned() bool      { return sm.pruned }
func (sm *SimmedMove) Stdev() float64    { return sm.scoreStats.Stdev() }
func (sm *SimmedMove) StdError() float64 { return sm.scoreStats.StandardError() }

func (sm *SimmedMove) String() string {
	return fmt.Sprintf("%-16s %6.2f +/- %5.2f (%d)%s", sm.move.ShortDescription(), sm.Mean(),
		sm.StdError(), sm.Iterations(), map[bool]string{true: " pruned", false: ""}[sm.pruned])
}

// Request is one decision to search.
type Request struct {
	// View is the searcher's view; the searcher must be on turn.
	View *game.View
	// Blueprint plays every seat in the rollouts, from its state as of
	// View. It is cloned, never modified.
	Blueprint turnplayer.AITurnPlayer
	// Range holds the hands the searcher might have.
	Range *rangefinder.Range
	// Seed fixes the samples.
	Seed uint64
	// Frame, if set, is a move the caller only needs to rule in or out.
	// The search stops as soon as it is pruned.
	Frame *move.Move
}

type SearchResult struct {
	Move      move.Move
	Blueprint move.Move
	Moves     []*SimmedMove
	// Iterations counts rollouts.
	Iterations     int
	BudgetExceeded bool
	// FrameBailed is set when the Frame move was pruned.
	FrameBailed bool
	Warnings    []error
}

// Stats returns the statistics of m, or nil if m was not a candidate.
func (r *SearchResult) Stats(m move.Move) *SimmedMove {
	for _, sm := range r.Moves {
		if sm.move == m {
			return sm
		}
	}
	return nil
}

// Searcher runs searches. It holds no per-search state and may be shared.
type Searcher struct {
	params Params

	logMu     sync.Mutex
	logStream io.Writer

	iterationCount atomic.Int64
}

func NewSearcher(p Params) *Searcher {
	p.Threads = max(1, p.Threads)
	return &Searcher{params: p}
}

func (s *Searcher) Params() Params { return s.params }

// SetLogStream makes every search write its iterations, as YAML, to l.
func (s *Searcher) SetLogStream(l io.Writer) {
	s.logMu.Lock()
	s.logStream = l
	s.logMu.Unlock()
}

// Iterations counts the rollouts of every search so far.
func (s *Searcher) Iterations() int {
	return int(s.iterationCount.Load())
}

type outcome struct {
	skipped bool
	value   float64
	win     bool
}

func (s *Searcher) Search(ctx context.Context, req *Request) (*SearchResult, error) {
	logger := zerolog.Ctx(ctx)
	v := req.View
	if !v.MyTurn() {
		return nil, ErrNotOnTurn
	}
	bpMove, err := turnplayer.GenBestStaticTurn(ctx, req.Blueprint.Clone(), v)
	if err != nil {
		return nil, err
	}
	moves := game.LegalMoves(v)
	res := &SearchResult{Move: bpMove, Blueprint: bpMove, Moves: make([]*SimmedMove, len(moves))}
	bpIdx, frameIdx := -1, -1
	for i, m := range moves {
		res.Moves[i] = &SimmedMove{move: m}
		if m == bpMove {
			bpIdx = i
			res.Moves[i].bias = s.params.Thresh
		}
		if req.Frame != nil && m == *req.Frame {
			frameIdx = i
		}
	}
	if bpIdx < 0 {
		return nil, fmt.Errorf("blueprint move %v is not among the legal moves", bpMove)
	}
	if len(moves) == 1 {
		return res, nil
	}
	if req.Range.Size() == 0 {
		logger.Warn().Int("turn", v.TurnNum).Int("player", v.Observer).Msg("sampling-exhausted")
		res.Warnings = append(res.Warnings, ErrSamplingExhausted)
		return res, nil
	}

	if s.params.TimeBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.params.TimeBudget)
		defer cancel()
	}
	tstart := time.Now()

	rounds := max(1, s.params.Rollouts/len(moves))
	batch := s.params.Threads
	live := len(moves)
	for start := 0; start < rounds && live > 1 && !res.FrameBailed; start += batch {
		if ctx.Err() != nil {
			res.BudgetExceeded = true
			break
		}
		end := min(start+batch, rounds)
		rows := make([][]outcome, end-start)
		g, gctx := errgroup.WithContext(ctx)
		for it := start; it < end; it++ {
			g.Go(func() error {
				row, err := s.simSingleIteration(gctx, req, res.Moves, it)
				rows[it-start] = row
				return err
			})
		}
		if err := g.Wait(); err != nil {
			if errors.Is(err, ErrSamplingExhausted) {
				logger.Warn().Err(err).Int("turn", v.TurnNum).Msg("sampling-exhausted")
				res.Warnings = append(res.Warnings, err)
				break
			}
			if ctx.Err() != nil {
				res.BudgetExceeded = true
				break
			}
			return nil, err
		}
		n := res.Iterations
		for i, row := range rows {
			s.accumulate(res, row, bpIdx)
			s.logIteration(ctx, start+i, req, res.Moves, row)
		}
		s.iterationCount.Add(int64(res.Iterations - n))
		live = s.prune(res, bpIdx)
		if frameIdx >= 0 && res.Moves[frameIdx].pruned {
			res.FrameBailed = true
		}
	}

	if res.Iterations > 0 {
		best := -1
		for i, sm := range res.Moves {
			if sm.pruned {
				continue
			}
			if best < 0 || sm.Value() > res.Moves[best].Value() {
				best = i
			}
		}
		if best >= 0 {
			res.Move = res.Moves[best].move
		}
	}

	for _, sm := range res.Moves {
		logger.Debug().Str("candidate", sm.String()).Msg("search-candidate")
	}
	logger.Info().Int("turn", v.TurnNum).Int("player", v.Observer).
		Str("blueprint", bpMove.ShortDescription()).Str("chosen", res.Move.ShortDescription()).
		Int("iterations", res.Iterations).Bool("budget-exceeded", res.BudgetExceeded).
		Dur("elapsed", time.Since(tstart)).Msg("search-ended")
	return res, nil
}

// dealDeck shuffles the cards unseen by the searcher, other than hand, into
// a deck.
func dealDeck(v *game.View, hand []card.Card, rng *rand.Rand) ([]card.Card, error) {
	pool := v.Unseen()
	for _, c := range hand {
		if !pool.Remove(c) {
			return nil, fmt.Errorf("%w: no %s left for the hand", ErrSamplingExhausted, c)
		}
	}
	deck := pool.Cards()
	if len(deck) != v.Deck {
		return nil, fmt.Errorf("%w: %d cards left for a deck of %d", ErrSamplingExhausted, len(deck), v.Deck)
	}
	card.Shuffle(deck, rng)
	return deck, nil
}

func (s *Searcher) simSingleIteration(ctx context.Context, req *Request, moves []*SimmedMove,
	iteration int) ([]outcome, error) {

	rng := rand.New(rand.NewPCG(req.Seed, uint64(iteration)))
	hand := req.Range.Sample(rng)
	deck, err := dealDeck(req.View, hand, rng)
	if err != nil {
		return nil, err
	}
	row := make([]outcome, len(moves))
	for i, sm := range moves {
		if sm.pruned {
			row[i].skipped = true
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row[i], err = s.rollout(ctx, req, hand, deck, sm.move)
		if err != nil {
			return nil, err
		}
	}
	return row, nil
}

func (s *Searcher) rollout(ctx context.Context, req *Request, hand, deck []card.Card, m move.Move) (outcome, error) {
	g, err := game.NewFromView(req.View, hand, deck)
	if err != nil {
		return outcome{}, err
	}
	bp := req.Blueprint.Clone()
	d, err := g.ApplyMove(m)
	if err != nil {
		return outcome{}, err
	}
	bp.ObserveMove(req.View, d, g.ViewFor(g.PlayerOnTurn()))
	if err := turnplayer.PlayOut(ctx, g, bp, s.params.Depth); err != nil {
		return outcome{}, err
	}
	return s.evaluate(g), nil
}

func (s *Searcher) evaluate(g *game.Game) outcome {
	score := g.Score()
	o := outcome{value: float64(score), win: g.IsOver() && score == card.MaxScore}
	if !g.IsOver() && s.params.EvalWeight != 0 {
		v := g.ViewFor(g.PlayerOnTurn())
		o.value += s.params.EvalWeight * float64(v.MaxAchievable()-score)
	}
	return o
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (s *Searcher) accumulate(res *SearchResult, row []outcome, bpIdx int) {
	bp := row[bpIdx]
	for i, sm := range res.Moves {
		o := row[i]
		if o.skipped {
			continue
		}
		x := o.value
		switch {
		case s.params.OptimizeWins:
			x = b2f(o.win)
		case s.params.Baseline:
			x -= bp.value
		}
		sm.scoreStats.Push(x)
		sm.winStats.Push(b2f(o.win))
		res.Iterations++
	}
}

func (s *Searcher) logIteration(ctx context.Context, iteration int, req *Request, moves []*SimmedMove, row []outcome) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	if s.logStream == nil {
		return
	}
	// the sample is cheap to redraw
	rng := rand.New(rand.NewPCG(req.Seed, uint64(iteration)))
	li := LogIteration{Iteration: iteration, Hand: card.CardsString(req.Range.Sample(rng))}
	for i, sm := range moves {
		if row[i].skipped {
			continue
		}
		li.Moves = append(li.Moves, LogMove{Move: sm.move.ShortDescription(), Score: row[i].value})
	}
	out, err := yaml.Marshal([]LogIteration{li})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("marshalling log")
		return
	}
	s.logStream.Write(out)
}
