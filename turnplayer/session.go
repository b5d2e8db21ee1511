package turnplayer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/facebookresearch/Hanabi-SPARTA/ai/bot"
	aiturnplayer "github.com/facebookresearch/Hanabi-SPARTA/ai/turnplayer"
	"github.com/facebookresearch/Hanabi-SPARTA/belief"
	"github.com/facebookresearch/Hanabi-SPARTA/card"
	"github.com/facebookresearch/Hanabi-SPARTA/config"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/handoff"
	"github.com/facebookresearch/Hanabi-SPARTA/montecarlo"
)

// ErrSessionEnded is returned by Run when End stopped the game early.
var ErrSessionEnded = errors.New("session ended")

// Result is the outcome of one game.
type Result struct {
	GameID            string
	Seed              int64
	Players           int
	Bot               string
	Score             int
	MistakesRemaining int
	HintsRemaining    int
	Turns             int
	DeckRemaining     int
	Bombed            bool
	History           []game.Delta
	// Warnings counts the times a search agent fell back because its range
	// ran dry or no deal could be sampled; LastWarning is the latest.
	Warnings    int
	LastWarning error
}

// Telemetry is what a display may show of one seat. It is a copy.
type Telemetry struct {
	Seat    int
	Agent   string
	State   handoff.State
	View    *game.View
	Beliefs string
}

// BeliefSummarizer is implemented by agents that can describe what they
// believe about their own hand.
type BeliefSummarizer interface {
	BeliefSummary() string
}

// statsReporter is implemented by the search agents.
type statsReporter interface {
	Stats() montecarlo.BotStats
}

// seatReport is what the session keeps of an agent between its turns, so
// that readers never touch an agent while it decides or observes.
type seatReport struct {
	beliefs  string
	stats    montecarlo.BotStats
	hasStats bool
}

// Session is one game between agents. The driver goroutine owns the game;
// each agent decides on its own goroutine and gets views through a handoff
// channel.
type Session struct {
	ID  string
	cfg *config.Config

	mu       sync.RWMutex
	game     *game.Game
	agents   []aiturnplayer.AITurnPlayer
	channels []*handoff.Channel
	botName  string
	ended    bool

	repMu   sync.Mutex
	reports []seatReport

	runOnce sync.Once
	endOnce sync.Once
	cancel  context.CancelFunc
	result  Result
	err     error
}

// Start deals a game and makes its agents from cfg and opts.
func Start(cfg *config.Config, opts *GameOptions, bopts bot.Options) (*Session, error) {
	opts.SetDefaults(cfg)
	g, err := opts.NewGame(cfg)
	if err != nil {
		return nil, err
	}
	if bopts.GameID == "" {
		bopts.GameID = uuid.NewString()
	}
	bopts.Seed = g.Seed()
	if cfg.GetBool(config.ConfigCheckBeliefs) && bopts.TrueHand == nil {
		bopts.TrueHand = g.Hand
	}
	bopts.Bot = opts.Bot
	agents, err := bot.NewAgents(cfg, g.NumPlayers(), bopts)
	if err != nil {
		return nil, err
	}
	s := StartWith(cfg, g, agents)
	s.ID = bopts.GameID
	s.botName = opts.Bot
	return s, nil
}

// StartWith makes a session of an existing game and agents, one per seat.
func StartWith(cfg *config.Config, g *game.Game, agents []aiturnplayer.AITurnPlayer) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		cfg:      cfg,
		game:     g,
		agents:   agents,
		channels: make([]*handoff.Channel, len(agents)),
		reports:  make([]seatReport, len(agents)),
	}
	names := make([]string, len(agents))
	for i, a := range agents {
		s.channels[i] = handoff.New(i)
		names[i] = a.Name()
		s.report(i)
	}
	s.botName = strings.Join(names, "+")
	return s
}

// Run plays the game to the end. A second call returns the first result.
func (s *Session) Run(ctx context.Context) (Result, error) {
	s.runOnce.Do(func() {
		s.result, s.err = s.run(ctx)
	})
	return s.result, s.err
}

func (s *Session) run(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	logger := zerolog.Ctx(ctx).With().Str("game", s.ID).Logger()
	ctx = logger.WithContext(ctx)

	eg, ctx := errgroup.WithContext(ctx)
	for seat := range s.agents {
		eg.Go(func() error {
			return s.agentLoop(ctx, seat)
		})
	}
	eg.Go(func() error {
		defer s.closeChannels()
		return s.drive(ctx)
	})
	if err := eg.Wait(); err != nil {
		s.mu.RLock()
		ended := s.ended
		s.mu.RUnlock()
		if ended {
			return s.Result(), ErrSessionEnded
		}
		return Result{}, err
	}
	res := s.Result()
	logger.Info().Int("score", res.Score).Int("turns", res.Turns).
		Int("mistakes-remaining", res.MistakesRemaining).Msg("game-ended")
	return res, nil
}

func (s *Session) agentLoop(ctx context.Context, seat int) error {
	ch := s.channels[seat]
	a := s.agents[seat]
	for {
		v, err := ch.Await(ctx)
		if errors.Is(err, handoff.ErrGameOver) {
			return nil
		}
		if err != nil {
			return err
		}
		m, err := a.Decide(ctx, v)
		if err != nil {
			return fmt.Errorf("%s (seat %d): %w", a.Name(), seat, err)
		}
		s.report(seat)
		if err := ch.Submit(m); err != nil {
			return err
		}
	}
}

func (s *Session) drive(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	for {
		s.mu.RLock()
		over := s.game.IsOver()
		p := s.game.PlayerOnTurn()
		before := make([]*game.View, len(s.agents))
		for seat := range s.agents {
			before[seat] = s.game.ViewFor(seat)
		}
		s.mu.RUnlock()
		if over {
			return nil
		}

		ch := s.channels[p]
		if err := ch.Notify(before[p]); err != nil {
			return err
		}
		m, err := ch.AwaitMove(ctx)
		if err != nil {
			return err
		}

		s.mu.Lock()
		d, err := s.game.ApplyMove(m)
		if errors.Is(err, game.ErrIllegalMove) {
			logger.Warn().Err(err).Int("seat", p).Str("bot", s.agents[p].Name()).Msg("illegal-move-replaced")
			if m, err = aiturnplayer.SafeMove(before[p]); err == nil {
				d, err = s.game.ApplyMove(m)
			}
		}
		after := make([]*game.View, len(s.agents))
		if err == nil {
			for seat := range s.agents {
				after[seat] = s.game.ViewFor(seat)
			}
		}
		s.mu.Unlock()
		if err != nil {
			return err
		}
		logger.Debug().Stringer("move", d).Int("belief-delta", d.BeliefDelta).Msg("move-applied")

		// agents only observe while they wait for their turn
		for seat, a := range s.agents {
			a.ObserveMove(before[seat], d, after[seat])
			s.report(seat)
		}
		if err := ch.Ack(after[p]); err != nil {
			return err
		}
	}
}

func (s *Session) closeChannels() {
	for _, ch := range s.channels {
		ch.Close()
	}
}

// End stops the game, if it is still running. It may be called any number
// of times.
func (s *Session) End() {
	s.endOnce.Do(func() {
		s.mu.Lock()
		cancel := s.cancel
		s.ended = !s.game.IsOver()
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		s.closeChannels()
		log.Debug().Str("game", s.ID).Msg("session-ended")
	})
}

// report records what readers may see of the agent in seat. Only the
// goroutine that currently owns the agent calls it.
func (s *Session) report(seat int) {
	a := s.agents[seat]
	var r seatReport
	if bs, ok := a.(BeliefSummarizer); ok {
		r.beliefs = bs.BeliefSummary()
	}
	if sr, ok := a.(statsReporter); ok {
		r.stats, r.hasStats = sr.Stats(), true
	}
	s.repMu.Lock()
	s.reports[seat] = r
	s.repMu.Unlock()
}

// Result describes the game as it stands.
func (s *Session) Result() Result {
	s.repMu.Lock()
	warnings := 0
	var last error
	for _, r := range s.reports {
		if r.hasStats {
			warnings += r.stats.Warnings
			if r.stats.LastWarning != nil {
				last = r.stats.LastWarning
			}
		}
	}
	s.repMu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	g := s.game
	return Result{
		GameID:            s.ID,
		Seed:              g.Seed(),
		Players:           g.NumPlayers(),
		Bot:               s.botName,
		Score:             g.Score(),
		MistakesRemaining: g.MistakesRemaining(),
		HintsRemaining:    g.HintStones(),
		Turns:             g.Turn(),
		DeckRemaining:     g.DeckRemaining(),
		Bombed:            g.MistakesRemaining() == 0,
		History:           g.History(),
		Warnings:          warnings,
		LastWarning:       last,
	}
}

// Snapshot returns what a display may show of seat.
func (s *Session) Snapshot(seat int) Telemetry {
	s.mu.RLock()
	v := s.game.ViewFor(seat)
	s.mu.RUnlock()
	t := Telemetry{
		Seat:  seat,
		Agent: s.agents[seat].Name(),
		State: s.channels[seat].State(),
		View:  v,
	}
	if _, ok := s.agents[seat].(BeliefSummarizer); ok {
		s.repMu.Lock()
		t.Beliefs = s.reports[seat].beliefs
		s.repMu.Unlock()
	} else {
		t.Beliefs = OwnBeliefs(v)
	}
	return t
}

// OwnBeliefs lists the candidates of each of the observer's slots.
func OwnBeliefs(v *game.View) string {
	var sb strings.Builder
	for slot, set := range v.Own {
		fmt.Fprintf(&sb, "slot %d: %s\n", slot, describe(set))
	}
	return sb.String()
}

func describe(set belief.Set) string {
	if c, ok := set.Only(); ok {
		return c.String()
	}
	return fmt.Sprintf("%s (%d)", card.CardsString(set.Cards()), set.Len())
}

func (s *Session) Game() *game.Game {
	return s.game
}

func (s *Session) Agents() []aiturnplayer.AITurnPlayer {
	return s.agents
}
