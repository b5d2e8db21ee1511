package turnplayer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/facebookresearch/Hanabi-SPARTA/ai/bot"
	"github.com/facebookresearch/Hanabi-SPARTA/ai/heuristic"
	aiturnplayer "github.com/facebookresearch/Hanabi-SPARTA/ai/turnplayer"
	"github.com/facebookresearch/Hanabi-SPARTA/config"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/handoff"
	"github.com/facebookresearch/Hanabi-SPARTA/montecarlo"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
	"github.com/facebookresearch/Hanabi-SPARTA/rangefinder"
)

func TestSessionPlaysAGame(t *testing.T) {
	is := is.New(t)
	cfg := config.DefaultConfig()
	s, err := Start(cfg, &GameOptions{Players: 3, Seed: 42, Bot: "SmartBot"}, bot.Options{})
	is.NoErr(err)
	is.True(s.ID != "")

	res, err := s.Run(context.Background())
	is.NoErr(err)
	is.True(s.Game().IsOver())
	is.Equal(res.GameID, s.ID)
	is.Equal(res.Seed, int64(42))
	is.Equal(res.Players, 3)
	is.Equal(res.Bot, "SmartBot")
	is.True(res.Score >= 0 && res.Score <= 25)
	is.Equal(len(res.History), res.Turns)

	// a second run does not replay the game
	again, err := s.Run(context.Background())
	is.NoErr(err)
	is.Equal(again.Turns, res.Turns)

	for seat := range 3 {
		is.Equal(s.Snapshot(seat).State, handoff.GameOver)
	}
	s.End()
	s.End()
}

func TestSessionIsReproducible(t *testing.T) {
	is := is.New(t)
	cfg := config.DefaultConfig()
	play := func() Result {
		s, err := Start(cfg, &GameOptions{Players: 2, Seed: 7, Bot: "HolmesBot"}, bot.Options{})
		is.NoErr(err)
		res, err := s.Run(context.Background())
		is.NoErr(err)
		return res
	}
	a, b := play(), play()
	is.Equal(a.Score, b.Score)
	is.Equal(game.HistoryMoves(a.History), game.HistoryMoves(b.History))
}

func TestSnapshotBeforeRun(t *testing.T) {
	is := is.New(t)
	cfg := config.DefaultConfig()
	s, err := Start(cfg, &GameOptions{Players: 2, Seed: 3, Bot: "SimpleBot"}, bot.Options{})
	is.NoErr(err)
	tel := s.Snapshot(1)
	is.Equal(tel.Seat, 1)
	is.Equal(tel.Agent, "SimpleBot")
	is.Equal(tel.State, handoff.WaitingForOpponent)
	is.Equal(tel.View.Observer, 1)
	is.True(strings.Contains(tel.Beliefs, "slot 0:"))
}

// stallBot never decides until its context is cancelled.
type stallBot struct {
	deciding chan struct{}
}

func (b *stallBot) Name() string                                   { return "StallBot" }
func (b *stallBot) ObserveMove(*game.View, game.Delta, *game.View) {}
func (b *stallBot) Clone() aiturnplayer.AITurnPlayer               { return b }
func (b *stallBot) Decide(ctx context.Context, v *game.View) (move.Move, error) {
	close(b.deciding)
	<-ctx.Done()
	return move.Move{}, ctx.Err()
}

func TestEndStopsARunningSession(t *testing.T) {
	is := is.New(t)
	cfg := config.DefaultConfig()
	g, err := game.Start(5, 2)
	is.NoErr(err)
	stall := &stallBot{deciding: make(chan struct{})}
	agents := []aiturnplayer.AITurnPlayer{stall, stall}
	s := StartWith(cfg, g, agents)
	is.Equal(s.Result().Bot, "StallBot+StallBot")

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background())
		done <- err
	}()
	<-stall.deciding
	is.Equal(s.Snapshot(0).State, handoff.Deciding)
	s.End()
	err = <-done
	is.True(errors.Is(err, ErrSessionEnded))
	is.Equal(s.Result().Turns, 0)
}

func TestSnapshotWhileJointSearchDecides(t *testing.T) {
	is := is.New(t)
	cfg := config.DefaultConfig()
	cfg.Set(config.ConfigSearchN, 40)
	cfg.Set(config.ConfigSearchDepth, 4)
	cfg.Set(config.ConfigRangeParticles, 40)
	cfg.Set(config.ConfigRangeMax, 12)
	cfg.Set(config.ConfigJointSearchN, 40)
	cfg.Set(config.ConfigThreads, 2)
	s, err := Start(cfg, &GameOptions{Players: 2, Seed: 8, Bot: "JointSearchBot"}, bot.Options{})
	is.NoErr(err)

	stop := make(chan struct{})
	polled := make(chan int)
	go func() {
		n := 0
		for {
			select {
			case <-stop:
				polled <- n
				return
			default:
			}
			for seat := range 2 {
				tel := s.Snapshot(seat)
				_ = tel.Beliefs
				_ = s.Result()
			}
			n++
			time.Sleep(time.Millisecond)
		}
	}()
	res, err := s.Run(context.Background())
	close(stop)
	is.True(<-polled > 0)
	is.NoErr(err)
	is.True(s.Game().IsOver())
	is.True(res.Warnings >= 0)
	for seat := range 2 {
		is.True(s.Snapshot(seat).Beliefs != "")
	}
}

// warningBot plays SmartBot and reports search warnings it never had.
type warningBot struct {
	aiturnplayer.AITurnPlayer
	stats montecarlo.BotStats
}

func (b *warningBot) Stats() montecarlo.BotStats { return b.stats }

func TestResultCountsSearchWarnings(t *testing.T) {
	is := is.New(t)
	cfg := config.DefaultConfig()
	g, err := game.Start(4, 2)
	is.NoErr(err)
	agents := []aiturnplayer.AITurnPlayer{
		&warningBot{heuristic.NewSmartBot(), montecarlo.BotStats{Warnings: 2, LastWarning: rangefinder.ErrRangeExhausted}},
		heuristic.NewSmartBot(),
	}
	s := StartWith(cfg, g, agents)
	res, err := s.Run(context.Background())
	is.NoErr(err)
	is.Equal(res.Warnings, 2)
	is.True(errors.Is(res.LastWarning, rangefinder.ErrRangeExhausted))

	plain, err := Start(cfg, &GameOptions{Players: 2, Seed: 4, Bot: "SmartBot"}, bot.Options{})
	is.NoErr(err)
	res, err = plain.Run(context.Background())
	is.NoErr(err)
	is.Equal(res.Warnings, 0)
	is.Equal(res.LastWarning, nil)
}
