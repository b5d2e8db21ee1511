package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/facebookresearch/Hanabi-SPARTA/ai/bot"
	"github.com/facebookresearch/Hanabi-SPARTA/config"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/montecarlo"
)

var searchOptions = map[string]string{
	"n":       config.ConfigSearchN,
	"threads": config.ConfigThreads,
	"depth":   config.ConfigSearchDepth,
	"thresh":  config.ConfigSearchThresh,
}

// search analyzes the position of the player on turn in the background:
// `search [-n rollouts] [-threads n] [-depth turns] [-thresh points]`,
// or `search stop|show|log`.
func (sc *ShellController) search(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) > 0 {
		return sc.searchControl(cmd.args[0])
	}
	if !sc.IsPlaying() {
		return nil, errNoGame
	}
	if sc.isSearching() {
		return nil, errSearching
	}
	for opt, vals := range cmd.options {
		key, ok := searchOptions[opt]
		if !ok {
			return nil, errors.New("option " + opt + " not recognized")
		}
		sc.config.Set(key, vals[0])
	}
	sb, v, err := sc.buildSearchBot()
	if err != nil {
		return nil, err
	}
	sc.startSearch(sb, v)
	return msg("Search started. Please do `search show` to see the results so far."), nil
}

// buildSearchBot builds a search bot for the player on turn and brings it up
// to date by replaying the game since it was dealt or loaded.
func (sc *ShellController) buildSearchBot() (*montecarlo.SearchBot, *game.View, error) {
	code, err := bot.ParseBotCode(sc.config.GetString(config.ConfigBlueprintBot))
	if err != nil {
		return nil, nil, err
	}
	bp, err := bot.NewBlueprint(code)
	if err != nil {
		return nil, nil, err
	}
	seat := sc.game.PlayerOnTurn()
	sb, err := montecarlo.NewSearchBot(seat, bp, sc.config, uint64(sc.game.Seed())<<8|uint64(seat))
	if err != nil {
		return nil, nil, err
	}
	sb.SetGameID(sc.gameID)
	g := sc.start.Copy()
	for _, d := range sc.game.History() {
		before := g.ViewFor(seat)
		applied, err := g.ApplyMove(d.Move)
		if err != nil {
			return nil, nil, err
		}
		sb.ObserveMove(before, applied, g.ViewFor(seat))
	}
	return sb, g.ViewFor(seat), nil
}

func (sc *ShellController) startSearch(sb *montecarlo.SearchBot, v *game.View) {
	ctx, cancel := context.WithCancel(log.Logger.WithContext(context.Background()))
	done := make(chan struct{})

	sc.searchMu.Lock()
	sc.searching = true
	sc.searchCancel = cancel
	sc.searchDone = done
	sc.searchBot = sb
	sc.lastSearch = nil
	if sc.searchLogFile != nil {
		sb.Searcher().SetLogStream(sc.searchLogFile)
	}
	sc.searchMu.Unlock()

	ticker := time.NewTicker(10 * time.Second)
	go func() {
		defer close(done)
		defer ticker.Stop()
		res, err := sb.Analyze(ctx, v)
		sc.searchMu.Lock()
		sc.searching = false
		sc.lastSearch = res
		sc.searchMu.Unlock()
		if err != nil {
			log.Err(err).Msg("search-failed")
			return
		}
		log.Info().Int("iterations", res.Iterations).Str("move", res.Move.ShortDescription()).Msg("search-finished")
		log.Debug().Msg("search thread exiting...")
	}()

	go func() {
		for {
			select {
			case <-done:
				log.Debug().Msg("ticker thread exiting...")
				return
			case <-ticker.C:
				log.Info().Msgf("Searcher is at %v iterations...", sb.Searcher().Iterations())
			}
		}
	}()
}

func (sc *ShellController) stopSearch() {
	sc.searchMu.Lock()
	cancel := sc.searchCancel
	done := sc.searchDone
	sc.searchMu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (sc *ShellController) searchControl(arg string) (*Response, error) {
	switch arg {
	case "log":
		if sc.isSearching() {
			return nil, errors.New("please stop the search before making any log changes")
		}
		f, err := os.Create(SearchLog)
		if err != nil {
			return nil, err
		}
		sc.searchLogFile = f
		return msg("search will log to " + SearchLog), nil
	case "stop":
		if !sc.isSearching() {
			return nil, errors.New("no running search to stop")
		}
		sc.stopSearch()
		if sc.searchLogFile != nil {
			err := sc.searchLogFile.Close()
			sc.searchLogFile = nil
			if err != nil {
				return nil, err
			}
		}
		return msg(sc.searchResults()), nil
	case "show":
		return msg(sc.searchResults()), nil
	}
	return nil, fmt.Errorf("search argument %q not recognized", arg)
}

func (sc *ShellController) searchResults() string {
	sc.searchMu.Lock()
	defer sc.searchMu.Unlock()
	if sc.searching {
		return fmt.Sprintf("Still searching; %d iterations so far.", sc.searchBot.Searcher().Iterations())
	}
	res := sc.lastSearch
	if res == nil {
		return "No search results."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-16s %6s    %5s  %s\n", "Move", "Mean", "Err", "Iters")
	for _, m := range res.Moves {
		sb.WriteString(m.String())
		if m.Move() == res.Blueprint {
			sb.WriteString(" (blueprint)")
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Best: %s after %d rollouts", res.Move.ShortDescription(), res.Iterations)
	if res.BudgetExceeded {
		sb.WriteString(" (stopped early)")
	}
	return sb.String()
}
