package config

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ConfigSeed              = "seed"
	ConfigPlayers           = "players"
	ConfigHandSizeOverride  = "hand-size-override"
	ConfigBot               = "bot"
	ConfigBlueprintBot      = "bpbot"
	ConfigSearchPlayer      = "search-player"
	ConfigSearchAll         = "search-all"
	ConfigSearchThresh      = "search-thresh"
	ConfigSearchN           = "search-n"
	ConfigSearchTime        = "search-time"
	ConfigSearchDepth       = "search-depth"
	ConfigSearchEvalWeight  = "search-eval-weight"
	ConfigSearchBaseline    = "search-baseline"
	ConfigUCB               = "ucb"
	ConfigOptimizeWins      = "optimize-wins"
	ConfigDoubleSearch      = "double-search"
	ConfigPartnerUniformUnc = "partner-uniform-unc"
	ConfigRangeParticles    = "range-particles"
	ConfigRangeMax          = "range-max"
	ConfigJointSearchSeed   = "joint-search-seed"
	ConfigJointSearchN      = "joint-search-n"
	ConfigMemoizeRange      = "memoize-range-search"
	ConfigThreads           = "threads"
	ConfigBomb0             = "bomb0"
	ConfigBombD             = "bombd"
	ConfigGames             = "games"
	ConfigLogFile           = "log-file"
	ConfigSearchLog         = "search-log"
	ConfigNatsURL           = "nats-url"
	ConfigBotChannel        = "bot-channel"
	ConfigDebug             = "debug"
	ConfigCheckBeliefs      = "check-beliefs"
	ConfigConfigFile        = "config"
)

// Config wraps a viper instance. Keys are kebab-cased; the matching
// environment variables are upper-cased with a HANABI_ prefix, e.g.
// HANABI_SEARCH_THRESH.
type Config struct {
	sync.Mutex
	viper.Viper
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(ConfigSeed, -1)
	v.SetDefault(ConfigPlayers, 2)
	v.SetDefault(ConfigHandSizeOverride, -1)
	v.SetDefault(ConfigBot, "SmartBot")
	v.SetDefault(ConfigBlueprintBot, "SmartBot")
	v.SetDefault(ConfigSearchPlayer, -1)
	v.SetDefault(ConfigSearchAll, false)
	v.SetDefault(ConfigSearchThresh, 0.1)
	v.SetDefault(ConfigSearchN, 10000)
	v.SetDefault(ConfigSearchTime, time.Duration(0))
	v.SetDefault(ConfigSearchDepth, 0)
	v.SetDefault(ConfigSearchEvalWeight, 0.0)
	v.SetDefault(ConfigSearchBaseline, false)
	v.SetDefault(ConfigUCB, true)
	v.SetDefault(ConfigOptimizeWins, false)
	v.SetDefault(ConfigDoubleSearch, false)
	v.SetDefault(ConfigPartnerUniformUnc, 0.0)
	v.SetDefault(ConfigRangeParticles, 2000)
	v.SetDefault(ConfigRangeMax, 2000)
	v.SetDefault(ConfigJointSearchSeed, 12345)
	v.SetDefault(ConfigJointSearchN, 1000)
	v.SetDefault(ConfigMemoizeRange, true)
	v.SetDefault(ConfigThreads, max(1, runtime.NumCPU()))
	v.SetDefault(ConfigBomb0, false)
	v.SetDefault(ConfigBombD, 1)
	v.SetDefault(ConfigGames, 100)
	v.SetDefault(ConfigLogFile, "/tmp/hanabi_games.csv")
	v.SetDefault(ConfigSearchLog, "")
	v.SetDefault(ConfigNatsURL, "nats://localhost:4222")
	v.SetDefault(ConfigBotChannel, "hanabi.bot")
	v.SetDefault(ConfigDebug, false)
	v.SetDefault(ConfigCheckBeliefs, false)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("HANABI")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// DefaultConfig returns a config with defaults and environment overrides.
// It is what tests should use.
func DefaultConfig() *Config {
	return &Config{Viper: *newViper()}
}

// Load parses command-line flags, the environment, and an optional YAML
// config file, in that order of precedence.
func (c *Config) Load(args []string) error {
	c.Viper = *newViper()

	fs := pflag.NewFlagSet("hanabi", pflag.ContinueOnError)
	fs.Int64(ConfigSeed, -1, "deal seed; -1 picks a random seed")
	fs.Int(ConfigPlayers, 2, "number of players (2-5)")
	fs.Int(ConfigHandSizeOverride, -1, "override the hand size; -1 derives it from the player count")
	fs.String(ConfigBot, "SmartBot", "agent for every seat (SimpleBot, HolmesBot, SmartBot, InfoBot, SearchBot, JointSearchBot)")
	fs.String(ConfigBlueprintBot, "SmartBot", "blueprint policy used by search agents and their rollouts")
	fs.Int(ConfigSearchPlayer, -1, "seat that searches; negative values count from the last seat")
	fs.Bool(ConfigSearchAll, false, "every seat searches")
	fs.Float64(ConfigSearchThresh, 0.1, "expected-score margin required to deviate from the blueprint")
	fs.Int(ConfigSearchN, 10000, "rollout budget per decision")
	fs.Duration(ConfigSearchTime, 0, "wall-clock budget per decision; 0 means unbounded")
	fs.Int(ConfigSearchDepth, 0, "rollout turn limit; 0 plays rollouts to the end of the game")
	fs.Float64(ConfigSearchEvalWeight, 0.0, "weight of the reachable-score term when a rollout is cut off")
	fs.Bool(ConfigSearchBaseline, false, "score candidates relative to the blueprint on the same sample")
	fs.Bool(ConfigUCB, true, "prune candidates whose upper bound is below the best lower bound")
	fs.Bool(ConfigOptimizeWins, false, "maximize the probability of a perfect score rather than the mean score")
	fs.Bool(ConfigDoubleSearch, false, "confirm a deviation with a second, independent search")
	fs.Float64(ConfigPartnerUniformUnc, 0.0, "weight kept by hand hypotheses inconsistent with a partner's blueprint move")
	fs.Int(ConfigRangeParticles, 2000, "hand hypotheses kept per searcher")
	fs.Int(ConfigRangeMax, 2000, "largest range a joint searcher will re-simulate")
	fs.Int64(ConfigJointSearchSeed, 12345, "shared seed for joint search")
	fs.Int(ConfigJointSearchN, 1000, "rollouts per joint search decision")
	fs.Bool(ConfigMemoizeRange, true, "memoize joint-search range pruning")
	fs.Int(ConfigThreads, max(1, runtime.NumCPU()), "search worker threads")
	fs.Bool(ConfigBomb0, false, "score zero when the mistake tokens run out")
	fs.Int(ConfigBombD, 1, "points lost when the mistake tokens run out")
	fs.Int(ConfigGames, 100, "games to play in automatic mode")
	fs.String(ConfigLogFile, "/tmp/hanabi_games.csv", "game log output file")
	fs.String(ConfigSearchLog, "", "optional YAML search log file")
	fs.String(ConfigNatsURL, "nats://localhost:4222", "NATS server for remote agents")
	fs.String(ConfigBotChannel, "hanabi.bot", "NATS subject remote agents listen on")
	fs.Bool(ConfigDebug, false, "debug logging on")
	fs.Bool(ConfigCheckBeliefs, false, "panic if a searcher's range loses the true hand")
	fs.String(ConfigConfigFile, "", "optional YAML config file")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.BindPFlags(fs); err != nil {
		return err
	}
	if f := c.GetString(ConfigConfigFile); f != "" {
		c.SetConfigFile(f)
		c.SetConfigType("yaml")
		if err := c.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	}
	return nil
}

// SanitizedSettings returns all settings as a sorted list of key=value pairs,
// suitable for logging.
func (c *Config) SanitizedSettings() string {
	settings := c.AllSettings()
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, settings[k])
	}
	return strings.Join(parts, " ")
}
