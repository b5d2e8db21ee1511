package turnplayer

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"

	"github.com/facebookresearch/Hanabi-SPARTA/config"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
)

// GameOptions are the settings of one game that a driver may change
// between games.
type GameOptions struct {
	Players int
	// Seed is the deal seed; -1 picks a random one when the game starts.
	Seed     int64
	HandSize int
	Bot      string
}

func (opts *GameOptions) SetDefaults(cfg *config.Config) {
	if opts.Players == 0 {
		opts.Players = cfg.GetInt(config.ConfigPlayers)
	}
	if opts.Seed == 0 {
		opts.Seed = cfg.GetInt64(config.ConfigSeed)
	}
	if opts.HandSize == 0 {
		opts.HandSize = cfg.GetInt(config.ConfigHandSizeOverride)
	}
	if opts.Bot == "" {
		opts.Bot = cfg.GetString(config.ConfigBot)
		log.Debug().Msgf("using default bot %v", opts.Bot)
	}
}

func (opts *GameOptions) SetPlayers(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if n < game.MinPlayers || n > game.MaxPlayers {
		return fmt.Errorf("%d players is not supported; use %d to %d", n, game.MinPlayers, game.MaxPlayers)
	}
	opts.Players = n
	return nil
}

func (opts *GameOptions) SetSeed(s string) error {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	opts.Seed = n
	return nil
}

// RandomSeed is a non-negative deal seed from the system generator.
func RandomSeed() int64 {
	return int64(frand.Uint64n(1 << 62))
}

// Rules builds the rules of a game with these options.
func (opts *GameOptions) Rules(cfg *config.Config) (*game.Rules, error) {
	r, err := game.RulesFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	r.NumPlayers = opts.Players
	r.HandSize = game.HandSizeFor(opts.Players)
	if opts.HandSize > 0 {
		r.HandSize = opts.HandSize
	}
	return r, r.Validate()
}

// NewGame deals a game; a seed of -1 is replaced by a random one.
func (opts *GameOptions) NewGame(cfg *config.Config) (*game.Game, error) {
	rules, err := opts.Rules(cfg)
	if err != nil {
		return nil, err
	}
	seed := opts.Seed
	if seed < 0 {
		seed = RandomSeed()
	}
	return game.NewGame(rules, seed)
}
