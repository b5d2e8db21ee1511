package bot

import (
	"errors"
	"testing"

	"github.com/matryer/is"

	"github.com/facebookresearch/Hanabi-SPARTA/config"
	"github.com/facebookresearch/Hanabi-SPARTA/montecarlo"
)

func TestParseBotCode(t *testing.T) {
	is := is.New(t)
	for i, n := range botNames {
		code, err := ParseBotCode(n)
		is.NoErr(err)
		is.Equal(code, BotCode(i))
		is.Equal(code.String(), n)
	}
	code, err := ParseBotCode("smartbot")
	is.NoErr(err)
	is.Equal(code, SmartBot)
	_, err = ParseBotCode("ElizaBot")
	is.True(errors.Is(err, ErrUnknownBot))
}

func TestSearchSeats(t *testing.T) {
	is := is.New(t)
	cfg := config.DefaultConfig()
	seats, err := SearchSeats(cfg, 3)
	is.NoErr(err)
	is.Equal(seats, []bool{false, false, true})

	cfg.Set(config.ConfigSearchPlayer, 0)
	seats, err = SearchSeats(cfg, 3)
	is.NoErr(err)
	is.Equal(seats, []bool{true, false, false})

	cfg.Set(config.ConfigSearchPlayer, 4)
	_, err = SearchSeats(cfg, 3)
	is.True(err != nil)

	cfg.Set(config.ConfigSearchAll, true)
	seats, err = SearchSeats(cfg, 2)
	is.NoErr(err)
	is.Equal(seats, []bool{true, true})
}

func TestNewAgents(t *testing.T) {
	is := is.New(t)
	cfg := config.DefaultConfig()
	cfg.Set(config.ConfigBot, "SearchBot")
	cfg.Set(config.ConfigBlueprintBot, "HolmesBot")
	agents, err := NewAgents(cfg, 3, Options{Seed: 9})
	is.NoErr(err)
	is.Equal(len(agents), 3)
	is.Equal(agents[0].Name(), "HolmesBot")
	is.Equal(agents[1].Name(), "HolmesBot")
	_, ok := agents[2].(*montecarlo.SearchBot)
	is.True(ok)

	cfg.Set(config.ConfigBot, "JointSearchBot")
	agents, err = NewAgents(cfg, 2, Options{})
	is.NoErr(err)
	for _, a := range agents {
		_, ok := a.(*montecarlo.JointSearchBot)
		is.True(ok)
	}
	_, err = NewAgents(cfg, 3, Options{})
	is.True(errors.Is(err, montecarlo.ErrJointPlayers))

	cfg.Set(config.ConfigBot, "SimpleBot")
	agents, err = NewAgents(cfg, 4, Options{})
	is.NoErr(err)
	is.Equal(agents[3].Name(), "SimpleBot")
}

func TestSearchNeedsHeuristicBlueprint(t *testing.T) {
	is := is.New(t)
	cfg := config.DefaultConfig()
	cfg.Set(config.ConfigBlueprintBot, "SearchBot")
	_, err := New(SearchBot, 0, 2, cfg, Options{})
	is.True(errors.Is(err, ErrBadBlueprint))
}

func TestInfoBotAsBlueprint(t *testing.T) {
	is := is.New(t)
	cfg := config.DefaultConfig()
	cfg.Set(config.ConfigBot, "SearchBot")
	cfg.Set(config.ConfigBlueprintBot, "InfoBot")
	agents, err := NewAgents(cfg, 2, Options{Seed: 3})
	is.NoErr(err)
	is.Equal(agents[0].Name(), "InfoBot")
	_, ok := agents[1].(*montecarlo.SearchBot)
	is.True(ok)

	code, err := ParseBotCode("infobot")
	is.NoErr(err)
	is.True(IsBlueprint(code))
}
