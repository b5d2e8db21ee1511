package bot

import (
	"fmt"
	"strings"
)

// BotCode names an agent.
type BotCode int

const (
	SimpleBot BotCode = iota
	HolmesBot
	SmartBot
	SearchBot
	JointSearchBot
	InfoBot
)

var botNames = []string{"SimpleBot", "HolmesBot", "SmartBot", "SearchBot", "JointSearchBot", "InfoBot"}

func (b BotCode) String() string {
	if int(b) < len(botNames) {
		return botNames[b]
	}
	return fmt.Sprintf("BotCode(%d)", int(b))
}

// ParseBotCode accepts a bot name in any case.
func ParseBotCode(name string) (BotCode, error) {
	for i, n := range botNames {
		if strings.EqualFold(n, name) {
			return BotCode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownBot, name)
}

func HasSearch(b BotCode) bool {
	switch b {
	case SearchBot, JointSearchBot:
		return true
	}
	return false
}

func IsJoint(b BotCode) bool {
	return b == JointSearchBot
}

// IsBlueprint is true for the bots that can play every seat of a rollout.
func IsBlueprint(b BotCode) bool {
	return !HasSearch(b)
}
