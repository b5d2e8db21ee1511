// Package automatic plays computer vs computer games in bulk and writes a
// line per game, and a line per search decision, to a log file.
package automatic

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/facebookresearch/Hanabi-SPARTA/ai/bot"
	"github.com/facebookresearch/Hanabi-SPARTA/config"
	"github.com/facebookresearch/Hanabi-SPARTA/turnplayer"
)

// GameHeader is the first line of a game log.
const GameHeader = "gameID,seed,players,bot,score,mistakesRemaining,hintsRemaining,turns,deckRemaining,bombed\n"

// GameRunner plays games one at a time and reports them on its log
// channel.
type GameRunner struct {
	config  *config.Config
	options turnplayer.GameOptions
	logchan chan string
	// searchLog passes search decision lines on to logchan.
	searchLog *lineWriter
	// iterLog, if set, receives every search iteration.
	iterLog io.Writer
	last    turnplayer.Result
}

// NewGameRunner just instantiates and initializes a game runner.
func NewGameRunner(logchan chan string, cfg *config.Config) *GameRunner {
	r := &GameRunner{logchan: logchan, config: cfg}
	r.options.SetDefaults(cfg)
	if logchan != nil {
		r.searchLog = &lineWriter{ch: logchan}
	}
	return r
}

// SetOptions replaces the game options; zero fields take config defaults.
func (r *GameRunner) SetOptions(opts turnplayer.GameOptions) {
	opts.SetDefaults(r.config)
	r.options = opts
}

// SetIterationLog makes search agents write their iterations to w, which
// must be safe for concurrent use.
func (r *GameRunner) SetIterationLog(w io.Writer) {
	r.iterLog = w
}

// PlayGame plays one game from seed to the end.
func (r *GameRunner) PlayGame(ctx context.Context, seed int64) (turnplayer.Result, error) {
	opts := r.options
	opts.Seed = seed
	bopts := bot.Options{SearchLog: r.iterLog}
	if r.searchLog != nil {
		bopts.DecisionLog = r.searchLog
	}
	s, err := turnplayer.Start(r.config, &opts, bopts)
	if err != nil {
		return turnplayer.Result{}, err
	}
	defer s.End()
	res, err := s.Run(ctx)
	if err != nil {
		return res, err
	}
	r.last = res
	if r.logchan != nil {
		r.logchan <- ResultLine(res)
	}
	return res, nil
}

// LastResult is the result of the last game played to the end.
func (r *GameRunner) LastResult() turnplayer.Result {
	return r.last
}

// ResultLine formats a game result as a line of the game log.
func ResultLine(res turnplayer.Result) string {
	return fmt.Sprintf("%s,%d,%d,%s,%d,%d,%d,%d,%d,%t\n",
		res.GameID, res.Seed, res.Players, res.Bot, res.Score,
		res.MistakesRemaining, res.HintsRemaining, res.Turns,
		res.DeckRemaining, res.Bombed)
}

// lineWriter passes whole lines to a log channel. Every Write must be one
// or more complete lines.
type lineWriter struct {
	ch chan string
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.ch <- string(p)
	return len(p), nil
}

// lockedWriter serializes writes from many searchers.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
