package game

import (
	"errors"
	"fmt"

	"github.com/facebookresearch/Hanabi-SPARTA/config"
)

const (
	MinPlayers         = 2
	MaxPlayers         = 5
	DefaultMaxHints    = 8
	DefaultMaxMistakes = 3
)

var ErrBadRules = errors.New("bad rules")

// Rules is the immutable rule set of a game. Games and the views they hand
// out share one *Rules.
type Rules struct {
	NumPlayers  int
	HandSize    int
	MaxHints    int
	MaxMistakes int
	// Bomb0 makes a game that runs out of mistake tokens score zero.
	Bomb0 bool
	// BombD is subtracted from the score of a game that runs out of
	// mistake tokens, when Bomb0 is off.
	BombD int
}

// HandSizeFor is 5 for two or three players and 4 otherwise.
func HandSizeFor(numPlayers int) int {
	if numPlayers <= 3 {
		return 5
	}
	return 4
}

func NewRules(numPlayers int) (*Rules, error) {
	r := &Rules{
		NumPlayers:  numPlayers,
		HandSize:    HandSizeFor(numPlayers),
		MaxHints:    DefaultMaxHints,
		MaxMistakes: DefaultMaxMistakes,
		BombD:       1,
	}
	return r, r.Validate()
}

// RulesFromConfig builds rules from the player count, hand size override and
// bomb-out settings in cfg.
func RulesFromConfig(cfg *config.Config) (*Rules, error) {
	r, err := NewRules(cfg.GetInt(config.ConfigPlayers))
	if err != nil {
		return nil, err
	}
	if hs := cfg.GetInt(config.ConfigHandSizeOverride); hs > 0 {
		r.HandSize = hs
	}
	r.Bomb0 = cfg.GetBool(config.ConfigBomb0)
	r.BombD = cfg.GetInt(config.ConfigBombD)
	return r, r.Validate()
}

func (r *Rules) Validate() error {
	if r.NumPlayers < MinPlayers || r.NumPlayers > MaxPlayers {
		return fmt.Errorf("%w: %d players", ErrBadRules, r.NumPlayers)
	}
	if r.HandSize < 1 || r.HandSize*r.NumPlayers > 50 {
		return fmt.Errorf("%w: hand size %d", ErrBadRules, r.HandSize)
	}
	if r.MaxHints < 1 || r.MaxMistakes < 1 {
		return fmt.Errorf("%w: token limits", ErrBadRules)
	}
	return nil
}
