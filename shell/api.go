package shell

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/facebookresearch/Hanabi-SPARTA/ai/bot"
	aiturnplayer "github.com/facebookresearch/Hanabi-SPARTA/ai/turnplayer"
	"github.com/facebookresearch/Hanabi-SPARTA/automatic"
	"github.com/facebookresearch/Hanabi-SPARTA/config"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
	"github.com/facebookresearch/Hanabi-SPARTA/position"
	"github.com/facebookresearch/Hanabi-SPARTA/turnplayer"
)

type Response struct {
	message string
}

type CmdOptions map[string][]string

func (c CmdOptions) String(key string) string {
	v := c[key]
	if len(v) > 0 {
		return v[0]
	}
	return ""
}

func (c CmdOptions) Int(key string) (int, error) {
	v := c[key]
	if len(v) == 0 {
		return 0, errors.New(key + " not found in options")
	}
	return strconv.Atoi(v[0])
}

func (c CmdOptions) IntDefault(key string, defaultI int) (int, error) {
	v := c[key]
	if len(v) == 0 {
		return defaultI, nil
	}
	return strconv.Atoi(v[0])
}

func (c CmdOptions) Bool(key string) bool {
	v := c[key]
	if len(v) == 0 {
		return false
	}
	return strings.ToLower(v[0]) == "true"
}

func msg(message string) *Response {
	return &Response{message: message}
}

func (sc *ShellController) help(cmd *shellcmd) (*Response, error) {
	var sb strings.Builder
	if len(cmd.args) == 0 {
		usage(&sb)
	} else {
		usageTopic(&sb, cmd.args[0])
	}
	return msg(sb.String()), nil
}

// Set changes one of the shell options and returns its new value.
func (sc *ShellController) Set(key string, args []string) (string, error) {
	var err error
	switch key {
	case "players":
		err = sc.options.SetPlayers(args[0])
	case "seed":
		err = sc.options.SetSeed(args[0])
	case "bot":
		var code bot.BotCode
		code, err = bot.ParseBotCode(args[0])
		if err == nil {
			sc.options.Bot = code.String()
		}
	default:
		err = errors.New("that option does not exist")
	}
	if err != nil {
		return "", err
	}
	_, val := sc.options.Show(key)
	return val, nil
}

func (sc *ShellController) set(cmd *shellcmd) (*Response, error) {
	if cmd.args == nil {
		return msg(sc.options.ToDisplayText()), nil
	}
	opt := cmd.args[0]
	if len(cmd.args) == 1 {
		_, val := sc.options.Show(opt)
		return msg(val), nil
	}
	ret, err := sc.Set(opt, cmd.args[1:])
	if err != nil {
		return nil, err
	}
	return msg("set " + opt + " to " + ret), nil
}

// newGame deals a game: `new [players] [seed]`. The shell's bot plays
// whatever seats the user does not move for.
func (sc *ShellController) newGame(cmd *shellcmd) (*Response, error) {
	if sc.isSearching() {
		return nil, errSearching
	}
	opts := sc.options.GameOptions
	if len(cmd.args) > 0 {
		if err := opts.SetPlayers(cmd.args[0]); err != nil {
			return nil, err
		}
	}
	if len(cmd.args) > 1 {
		if err := opts.SetSeed(cmd.args[1]); err != nil {
			return nil, err
		}
	}
	p, err := turnplayer.BaseTurnPlayerFromOptions(&opts, sc.config)
	if err != nil {
		return nil, err
	}
	if err := sc.startGame(p, opts.Bot); err != nil {
		return nil, err
	}
	return msg(fmt.Sprintf("New %d-player game, seed %d\n%s", p.NumPlayers(), p.Seed(), p.ToDisplayText())), nil
}

// load sets up a position written in position notation, e.g.
// `load r1r2r3r4r5/b1b2b3b4b5 0/0/0/0/0 - 8/3 turn 1;deck 20`.
func (sc *ShellController) load(cmd *shellcmd) (*Response, error) {
	if sc.isSearching() {
		return nil, errSearching
	}
	if len(cmd.args) == 0 {
		return nil, errors.New("please provide a position")
	}
	pos, err := position.Parse(nil, strings.Join(cmd.args, " "))
	if err != nil {
		return nil, err
	}
	p := &turnplayer.BaseTurnPlayer{}
	p.SetGame(pos.Game)
	if err := sc.startGame(p, sc.options.Bot); err != nil {
		return nil, err
	}
	return msg(p.ToDisplayText()), nil
}

func (sc *ShellController) startGame(p *turnplayer.BaseTurnPlayer, botName string) error {
	gid := uuid.NewString()
	agents, err := bot.NewAgents(sc.config, p.NumPlayers(), bot.Options{
		Bot:    botName,
		GameID: gid,
		Seed:   p.Seed(),
	})
	if err != nil {
		return err
	}
	sc.game = p
	sc.start = p.Copy()
	sc.gameID = gid
	sc.agents = agents
	sc.lastSearch = nil
	log.Debug().Str("game", gid).Int64("seed", p.Seed()).Int("players", p.NumPlayers()).Msg("shell-new-game")
	return nil
}

// position prints the current position in position notation.
func (sc *ShellController) position(cmd *shellcmd) (*Response, error) {
	if sc.game == nil {
		return nil, errNoGame
	}
	return msg(position.String(sc.game.Game)), nil
}

func (sc *ShellController) seatArg(cmd *shellcmd, idx int) (int, error) {
	if len(cmd.args) <= idx {
		return sc.game.PlayerOnTurn(), nil
	}
	seat, err := strconv.Atoi(cmd.args[idx])
	if err != nil {
		return 0, err
	}
	if seat < 0 || seat >= sc.game.NumPlayers() {
		return 0, fmt.Errorf("no seat %d in a %d-player game", seat, sc.game.NumPlayers())
	}
	return seat, nil
}

// show prints the whole table, or what one seat sees.
func (sc *ShellController) show(cmd *shellcmd) (*Response, error) {
	if sc.game == nil {
		return nil, errNoGame
	}
	if len(cmd.args) == 0 {
		return msg(sc.game.ToDisplayText()), nil
	}
	seat, err := sc.seatArg(cmd, 0)
	if err != nil {
		return nil, err
	}
	return msg(sc.game.ViewFor(seat).ToDisplayText()), nil
}

func (sc *ShellController) history(cmd *shellcmd) (*Response, error) {
	if sc.game == nil {
		return nil, errNoGame
	}
	h := sc.game.History()
	if len(h) == 0 {
		return msg("No moves yet."), nil
	}
	var sb strings.Builder
	for _, d := range h {
		sb.WriteString(d.String())
		sb.WriteString("\n")
	}
	return msg(sb.String()), nil
}

// beliefs shows what a seat's agent believes about its own hand.
func (sc *ShellController) beliefs(cmd *shellcmd) (*Response, error) {
	if sc.game == nil {
		return nil, errNoGame
	}
	seat, err := sc.seatArg(cmd, 0)
	if err != nil {
		return nil, err
	}
	if bs, ok := sc.agents[seat].(turnplayer.BeliefSummarizer); ok {
		return msg(bs.BeliefSummary()), nil
	}
	return msg(turnplayer.OwnBeliefs(sc.game.ViewFor(seat))), nil
}

func (sc *ShellController) gid(cmd *shellcmd) (*Response, error) {
	if sc.game == nil {
		return nil, errNoGame
	}
	return msg(sc.gameID), nil
}

// commit applies m for the player on turn and lets every agent observe it.
func (sc *ShellController) commit(m move.Move) (game.Delta, error) {
	n := sc.game.NumPlayers()
	before := make([]*game.View, n)
	for seat := range before {
		before[seat] = sc.game.ViewFor(seat)
	}
	d, err := sc.game.ApplyMove(m)
	if err != nil {
		return d, err
	}
	for seat, a := range sc.agents {
		a.ObserveMove(before[seat], d, sc.game.ViewFor(seat))
	}
	return d, nil
}

func (sc *ShellController) afterMove(d game.Delta) string {
	out := d.String() + "\n"
	if sc.game.IsOver() {
		out += fmt.Sprintf("Game over. Final score %d.\n", sc.game.Score())
	}
	return out
}

// move makes a move by hand for the player on turn.
func (sc *ShellController) move(cmd *shellcmd) (*Response, error) {
	if !sc.IsPlaying() {
		return nil, errNoGame
	}
	if sc.isSearching() {
		return nil, errSearching
	}
	m, err := sc.game.ParseMove(append([]string{cmd.cmd}, cmd.args...))
	if err != nil {
		return nil, err
	}
	d, err := sc.commit(m)
	if err != nil {
		return nil, err
	}
	return msg(sc.afterMove(d)), nil
}

// aiplay lets the agents make the next moves: `aiplay [n]`, or
// `aiplay all` to finish the game.
func (sc *ShellController) aiplay(cmd *shellcmd) (*Response, error) {
	if !sc.IsPlaying() {
		return nil, errNoGame
	}
	if sc.isSearching() {
		return nil, errSearching
	}
	n := 1
	if len(cmd.args) > 0 {
		if cmd.args[0] == "all" {
			n = math.MaxInt
		} else {
			var err error
			if n, err = strconv.Atoi(cmd.args[0]); err != nil {
				return nil, err
			}
		}
	}
	ctx := log.Logger.WithContext(context.Background())
	var sb strings.Builder
	for i := 0; i < n && sc.game.IsPlaying(); i++ {
		p := sc.game.PlayerOnTurn()
		v := sc.game.ViewFor(p)
		m, err := sc.agents[p].Decide(ctx, v)
		if err != nil {
			return nil, err
		}
		if err := game.Validate(sc.game, p, m); err != nil {
			log.Warn().Err(err).Int("seat", p).Str("bot", sc.agents[p].Name()).Msg("illegal-move-replaced")
			if m, err = aiturnplayer.SafeMove(v); err != nil {
				return nil, err
			}
		}
		d, err := sc.commit(m)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&sb, "%s: %s", sc.agents[p].Name(), sc.afterMove(d))
	}
	return msg(strings.TrimSuffix(sb.String(), "\n")), nil
}

// autoplay runs a batch of games in the background, logging results to a
// file: `autoplay [-games n] [-threads n] [-file path] [-bot name]`, or
// `autoplay stop`.
func (sc *ShellController) autoplay(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) > 0 && cmd.args[0] == "stop" {
		if automatic.IsPlaying.Value() == 0 || sc.autoplayCancel == nil {
			return nil, errors.New("no games are running")
		}
		sc.autoplayCancel()
		return msg("Stopping autoplay."), nil
	}
	games, err := cmd.options.IntDefault("games", sc.config.GetInt(config.ConfigGames))
	if err != nil {
		return nil, err
	}
	threads, err := cmd.options.IntDefault("threads", sc.config.GetInt(config.ConfigThreads))
	if err != nil {
		return nil, err
	}
	file := cmd.options.String("file")
	if file == "" {
		file = sc.config.GetString(config.ConfigLogFile)
	}
	opts := sc.options.GameOptions
	if b := cmd.options.String("bot"); b != "" {
		code, err := bot.ParseBotCode(b)
		if err != nil {
			return nil, err
		}
		opts.Bot = code.String()
	}
	sc.config.Set(config.ConfigGames, games)
	sc.config.Set(config.ConfigThreads, threads)

	ctx, cancel := context.WithCancel(context.Background())
	if err := automatic.StartCompVCompGames(ctx, sc.config, opts, file); err != nil {
		cancel()
		return nil, err
	}
	sc.autoplayCancel = cancel
	return msg(fmt.Sprintf("Playing %d games of %s on %d threads. Results go to %s;\n"+
		"run `analyze %s` to summarize them.", games, opts.Bot, threads, file, file)), nil
}

func (sc *ShellController) analyze(cmd *shellcmd) (*Response, error) {
	file := sc.config.GetString(config.ConfigLogFile)
	if len(cmd.args) > 0 {
		file = cmd.args[0]
	}
	out, err := automatic.AnalyzeLogFile(file)
	if err != nil {
		return nil, err
	}
	return msg(out), nil
}
