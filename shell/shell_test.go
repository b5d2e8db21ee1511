package shell

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/facebookresearch/Hanabi-SPARTA/config"
)

func TestExtractFields(t *testing.T) {
	is := is.New(t)
	type testdata struct {
		line   string
		expCmd *shellcmd
		expErr error
	}
	cases := []testdata{
		{"", nil, errNoData},
		{"autoplay -file /path/to/log.txt",
			&shellcmd{"autoplay", nil, CmdOptions{"file": {"/path/to/log.txt"}}},
			nil},
		{"autoplay stop",
			&shellcmd{"autoplay", []string{"stop"}, CmdOptions{}},
			nil},
		{"search show -threads 4 ",
			&shellcmd{"search", []string{"show"}, CmdOptions{"threads": {"4"}}},
			nil,
		},
		{"new 2 -1",
			&shellcmd{"new", []string{"2", "-1"}, CmdOptions{}},
			nil},
		{"autoplay -games 10 -file",
			nil, errWrongOptionSyntax},
	}
	for _, t := range cases {
		cmd, err := extractFields(t.line)
		is.Equal(cmd, t.expCmd)
		is.Equal(err, t.expErr)
	}
}

func testController() (*ShellController, *bytes.Buffer) {
	var out bytes.Buffer
	cfg := config.DefaultConfig()
	cfg.Set(config.ConfigPlayers, 2)
	cfg.Set(config.ConfigBot, "SmartBot")
	return newController(cfg, &out), &out
}

func TestPlayAGameByHandAndByBot(t *testing.T) {
	is := is.New(t)
	sc, _ := testController()

	_, err := sc.Execute("play 0")
	is.Equal(err, errNoGame)

	resp, err := sc.Execute("new 2 42")
	is.NoErr(err)
	is.True(strings.Contains(resp.message, "seed 42"))
	is.True(sc.IsPlaying())
	is.True(sc.gameID != "")

	resp, err = sc.Execute("p 0")
	is.NoErr(err)
	is.True(resp.message != "")
	is.Equal(len(sc.game.History()), 1)

	resp, err = sc.Execute("history")
	is.NoErr(err)
	is.Equal(strings.Count(resp.message, "\n"), 1)

	_, err = sc.Execute("hint 7 red")
	is.True(err != nil)
	is.Equal(len(sc.game.History()), 1)

	_, err = sc.Execute("aiplay 2")
	is.NoErr(err)
	is.Equal(len(sc.game.History()), 3)

	resp, err = sc.Execute("aiplay all")
	is.NoErr(err)
	is.True(sc.game.IsOver())
	is.True(strings.Contains(resp.message, "Game over."))
	is.True(!sc.IsPlaying())

	_, err = sc.Execute("aiplay")
	is.Equal(err, errNoGame)
}

func TestSameSeedSameDeal(t *testing.T) {
	is := is.New(t)
	a, _ := testController()
	b, _ := testController()
	for _, sc := range []*ShellController{a, b} {
		_, err := sc.Execute("new 3 11")
		is.NoErr(err)
		_, err = sc.Execute("aiplay all")
		is.NoErr(err)
	}
	is.Equal(a.game.Score(), b.game.Score())
	is.Equal(len(a.game.History()), len(b.game.History()))
}

func TestShowAndBeliefs(t *testing.T) {
	is := is.New(t)
	sc, _ := testController()
	_, err := sc.Execute("new 2 3")
	is.NoErr(err)

	resp, err := sc.Execute("show")
	is.NoErr(err)
	is.True(strings.Contains(resp.message, "Player 1:"))

	resp, err = sc.Execute("show 1")
	is.NoErr(err)
	is.True(strings.Contains(resp.message, "(you)"))

	_, err = sc.Execute("show 5")
	is.True(err != nil)

	resp, err = sc.Execute("beliefs 1")
	is.NoErr(err)
	is.True(strings.Contains(resp.message, "slot 0:"))
}

func TestLoadPosition(t *testing.T) {
	is := is.New(t)
	sc, _ := testController()

	_, err := sc.Execute("position")
	is.Equal(err, errNoGame)

	_, err = sc.Execute("load r1r2r3r4r5/b1b2b3b4b5 1/0/0/2/0 y1g3 6/2 turn 1;deck 12;seed 7;")
	is.NoErr(err)
	is.Equal(sc.game.PlayerOnTurn(), 1)
	is.Equal(sc.game.HintStones(), 6)

	resp, err := sc.Execute("position")
	is.NoErr(err)
	is.True(strings.HasPrefix(resp.message, "r1r2r3r4r5/b1b2b3b4b5 1/0/0/2/0 "))
	is.True(strings.HasSuffix(resp.message, " 6/2 turn 1;deck 12;"))

	_, err = sc.Execute("aiplay all")
	is.NoErr(err)
	is.True(sc.game.IsOver())

	_, err = sc.Execute("load r1r2r3 0/0/0/0/0 - 8/3")
	is.True(err != nil)
}

func TestSetOptions(t *testing.T) {
	is := is.New(t)
	sc, _ := testController()

	resp, err := sc.Execute("set players 3")
	is.NoErr(err)
	is.Equal(resp.message, "set players to 3")

	resp, err = sc.Execute("set bot holmesbot")
	is.NoErr(err)
	is.Equal(resp.message, "set bot to HolmesBot")

	_, err = sc.Execute("set players 9")
	is.True(err != nil)
	_, err = sc.Execute("set bot DeepBlue")
	is.True(err != nil)

	resp, err = sc.Execute("set")
	is.NoErr(err)
	is.True(strings.Contains(resp.message, "players: 3"))

	resp, err = sc.Execute("new")
	is.NoErr(err)
	is.Equal(sc.game.NumPlayers(), 3)
	is.Equal(sc.agents[0].Name(), "HolmesBot")
}

func TestSearchCommand(t *testing.T) {
	is := is.New(t)
	sc, _ := testController()
	sc.config.Set(config.ConfigRangeParticles, 50)

	_, err := sc.Execute("search")
	is.Equal(err, errNoGame)

	_, err = sc.Execute("new 2 5")
	is.NoErr(err)
	_, err = sc.Execute("aiplay 3")
	is.NoErr(err)

	_, err = sc.Execute("search -n 200 -threads 2")
	is.NoErr(err)
	is.Equal(sc.config.GetInt(config.ConfigSearchN), 200)
	is.True(sc.waitSearch(2 * time.Minute))

	resp, err := sc.Execute("search show")
	is.NoErr(err)
	is.True(strings.Contains(resp.message, "Best:"))
	is.True(strings.Contains(resp.message, "(blueprint)"))

	_, err = sc.Execute("search -bogus 1")
	is.True(err != nil)
}

func TestScript(t *testing.T) {
	is := is.New(t)
	sc, _ := testController()
	script := filepath.Join(t.TempDir(), "play.lua")
	err := os.WriteFile(script, []byte(`
hanabi_new("2 9")
local r = hanabi_move("play 0")
if string.sub(r, 1, 5) == "ERROR" then
	error(r)
end
hanabi_aiplay("all")
if not hanabi_over() then
	error("game not over")
end
if hanabi_score() < 0 or hanabi_turn() < 2 then
	error("bad game")
end
`), 0o644)
	is.NoErr(err)

	resp, err := sc.Execute("script " + script)
	is.NoErr(err)
	is.Equal(resp.message, "Script ran successfully.")
	is.True(sc.game.IsOver())
	is.Equal(sc.game.Seed(), int64(9))
}

func TestHelp(t *testing.T) {
	is := is.New(t)
	sc, _ := testController()

	resp, err := sc.Execute("help")
	is.NoErr(err)
	is.True(strings.HasPrefix(resp.message, "Usage:"))

	resp, err = sc.Execute("help search")
	is.NoErr(err)
	is.True(strings.Contains(resp.message, "-threads"))

	resp, err = sc.Execute("help nothing")
	is.NoErr(err)
	is.True(strings.Contains(resp.message, "no help text"))

	_, err = sc.Execute("frobnicate")
	is.True(err != nil)
}

func TestCompleter(t *testing.T) {
	is := is.New(t)
	sc, _ := testController()
	c := NewShellCompleter(sc)

	complete := func(line string) []string {
		matches, _ := c.Do([]rune(line), len(line))
		out := make([]string, len(matches))
		for i, m := range matches {
			out[i] = string(m)
		}
		return out
	}
	is.Equal(complete("sea"), []string{"rch"})
	is.Equal(complete("set bot Sm"), []string{"artBot"})
	is.Equal(complete("search -th"), []string{"reads", "resh"})
	is.Equal(complete("hint 1 gr"), []string{"een"})
	is.Equal(complete("aiplay "), []string{"all"})
}
