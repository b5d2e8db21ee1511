// Package bot builds agents by name, the way a game driver asks for them.
package bot

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/facebookresearch/Hanabi-SPARTA/ai/heuristic"
	"github.com/facebookresearch/Hanabi-SPARTA/ai/turnplayer"
	"github.com/facebookresearch/Hanabi-SPARTA/cache"
	"github.com/facebookresearch/Hanabi-SPARTA/card"
	"github.com/facebookresearch/Hanabi-SPARTA/config"
	"github.com/facebookresearch/Hanabi-SPARTA/montecarlo"
)

var (
	ErrUnknownBot   = errors.New("unknown bot")
	ErrBadBlueprint = errors.New("blueprint must be a heuristic bot")
)

// Options carry what agents of one game share beyond the config.
type Options struct {
	// Bot overrides the bot named by the config.
	Bot    string
	GameID string
	// Seed is the deal seed; search bots derive their own seeds from it.
	Seed int64
	// DecisionLog receives a search line per search decision.
	DecisionLog io.Writer
	// SearchLog receives every search iteration as YAML.
	SearchLog io.Writer
	// Cache memoizes joint-search checks. A fresh one is made per game if
	// nil.
	Cache *cache.Cache
	// TrueHand, if set, lets search bots check their beliefs.
	TrueHand func(seat int) []card.Card
}

// NewBlueprint makes a heuristic bot.
func NewBlueprint(code BotCode) (turnplayer.AITurnPlayer, error) {
	switch code {
	case SimpleBot:
		return heuristic.NewSimpleBot(), nil
	case HolmesBot:
		return heuristic.NewHolmesBot(), nil
	case SmartBot:
		return heuristic.NewSmartBot(), nil
	case InfoBot:
		return heuristic.NewInfoBot(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrBadBlueprint, code)
}

func blueprintFromConfig(cfg *config.Config) (turnplayer.AITurnPlayer, error) {
	code, err := ParseBotCode(cfg.GetString(config.ConfigBlueprintBot))
	if err != nil {
		return nil, err
	}
	return NewBlueprint(code)
}

// New makes the agent code for seat.
func New(code BotCode, seat, numPlayers int, cfg *config.Config, opts Options) (turnplayer.AITurnPlayer, error) {
	if IsBlueprint(code) {
		return NewBlueprint(code)
	}
	bp, err := blueprintFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	switch code {
	case SearchBot:
		sb, err := montecarlo.NewSearchBot(seat, bp, cfg, uint64(opts.Seed)<<8|uint64(seat))
		if err != nil {
			return nil, err
		}
		sb.SetGameID(opts.GameID)
		if opts.DecisionLog != nil {
			sb.SetDecisionLog(opts.DecisionLog)
		}
		if opts.SearchLog != nil {
			sb.Searcher().SetLogStream(opts.SearchLog)
		}
		if opts.TrueHand != nil {
			sb.SetTrueHand(func() []card.Card { return opts.TrueHand(seat) })
		}
		return sb, nil
	case JointSearchBot:
		c := opts.Cache
		if c == nil {
			c = cache.New()
		}
		jb, err := montecarlo.NewJointSearchBot(seat, numPlayers, bp, cfg, c)
		if err != nil {
			return nil, err
		}
		jb.SetGameID(opts.GameID)
		if opts.DecisionLog != nil {
			jb.SetDecisionLog(opts.DecisionLog)
		}
		if opts.SearchLog != nil {
			jb.Searcher().SetLogStream(opts.SearchLog)
		}
		return jb, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownBot, code)
}

// SearchSeats returns which seats search when the bot is a SearchBot:
// every seat with search-all, else search-player, where negative values
// count from the last seat.
func SearchSeats(cfg *config.Config, numPlayers int) ([]bool, error) {
	seats := make([]bool, numPlayers)
	if cfg.GetBool(config.ConfigSearchAll) {
		for i := range seats {
			seats[i] = true
		}
		return seats, nil
	}
	p := cfg.GetInt(config.ConfigSearchPlayer)
	if p < 0 {
		p += numPlayers
	}
	if p < 0 || p >= numPlayers {
		return nil, fmt.Errorf("search player %d out of range for %d players",
			cfg.GetInt(config.ConfigSearchPlayer), numPlayers)
	}
	seats[p] = true
	return seats, nil
}

// NewAgents makes one agent per seat from the config. A SearchBot searches
// for the seats SearchSeats picks; the other seats play the blueprint.
// Joint search bots play both seats of a two-player game and share one
// cache.
func NewAgents(cfg *config.Config, numPlayers int, opts Options) ([]turnplayer.AITurnPlayer, error) {
	name := opts.Bot
	if name == "" {
		name = cfg.GetString(config.ConfigBot)
	}
	code, err := ParseBotCode(name)
	if err != nil {
		return nil, err
	}
	agents := make([]turnplayer.AITurnPlayer, numPlayers)
	switch code {
	case SearchBot:
		seats, err := SearchSeats(cfg, numPlayers)
		if err != nil {
			return nil, err
		}
		for s := range agents {
			if !seats[s] {
				if agents[s], err = blueprintFromConfig(cfg); err != nil {
					return nil, err
				}
				continue
			}
			if agents[s], err = New(code, s, numPlayers, cfg, opts); err != nil {
				return nil, err
			}
		}
	case JointSearchBot:
		if opts.Cache == nil {
			opts.Cache = cache.New()
		}
		fallthrough
	default:
		for s := range agents {
			if agents[s], err = New(code, s, numPlayers, cfg, opts); err != nil {
				return nil, err
			}
		}
	}
	names := make([]string, numPlayers)
	for s, a := range agents {
		names[s] = a.Name()
	}
	log.Debug().Strs("agents", names).Str("game", opts.GameID).Msg("agents-created")
	return agents, nil
}
