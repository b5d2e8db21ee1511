package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/facebookresearch/Hanabi-SPARTA/config"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/turnplayer"
)

// SelfPlayer is the seat of the person at the shell; bots take the rest.
const SelfPlayer = 0

type ShellResponse struct {
	message string
}

func Msg(message string) *ShellResponse {
	return &ShellResponse{message: message}
}

// ShellController plays one person against remote bots.
type ShellController struct {
	l       *readline.Instance
	config  *config.Config
	options turnplayer.GameOptions
	player  *turnplayer.BaseTurnPlayer
	gameID  string
	bots    []*RemotePlayer
	client  MoveRequester
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func writeln(msg string, w io.Writer) {
	io.WriteString(w, msg)
	io.WriteString(w, "\n")
}

func (sc *ShellController) showMessage(msg string) {
	writeln(msg, sc.l.Stderr())
}

func (sc *ShellController) showError(err error) {
	sc.showMessage("Error: " + err.Error())
}

func NewShellController(cfg *config.Config) (*ShellController, error) {
	l, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[31mhanabi>\033[0m ",
		HistoryFile:     "/tmp/hanabi_bot_readline.tmp",
		EOFPrompt:       "exit",
		InterruptPrompt: "^C",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return nil, err
	}
	sc := &ShellController{l: l, config: cfg}
	sc.options.SetDefaults(cfg)
	return sc, nil
}

func (sc *ShellController) IsPlaying() bool {
	return sc.player != nil && sc.player.IsPlaying()
}

func (sc *ShellController) IsBotOnTurn() bool {
	return sc.IsPlaying() && sc.player.PlayerOnTurn() != SelfPlayer
}

// apply plays m and lets every bot observe it.
func (sc *ShellController) apply(fields []string) error {
	g := sc.player.Game
	before := make([]*game.View, g.NumPlayers())
	for p := range before {
		before[p] = g.ViewFor(p)
	}
	d, err := sc.player.Play(fields)
	if err != nil {
		return err
	}
	for p, b := range sc.bots {
		if b != nil {
			b.ObserveMove(before[p], d, g.ViewFor(p))
		}
	}
	sc.showMessage(d.String())
	return nil
}

func (sc *ShellController) getMove(ctx context.Context) error {
	p := sc.player.PlayerOnTurn()
	sc.showMessage(fmt.Sprintf("Requesting move from bot %d", p))
	m, err := sc.bots[p].Decide(ctx, sc.player.ViewFor(p))
	if err != nil {
		sc.showMessage("Bot returned error: " + err.Error())
		return err
	}
	sc.showMessage("Bot returned move: " + m.ShortDescription())
	if err := sc.apply(strings.Fields(m.ShortDescription())); err != nil {
		return err
	}
	if !sc.IsPlaying() {
		sc.showMessage(sc.gameOver())
	}
	return nil
}

func (sc *ShellController) gameOver() string {
	g := sc.player.Game
	return fmt.Sprintf("Game over. Score: %d, mistakes remaining: %d", g.Score(), g.MistakesRemaining())
}

func (sc *ShellController) newGame(args []string) (*ShellResponse, error) {
	opts := sc.options
	if len(args) > 0 {
		if err := opts.SetPlayers(args[0]); err != nil {
			return nil, err
		}
	}
	if len(args) > 1 {
		if err := opts.SetSeed(args[1]); err != nil {
			return nil, err
		}
	}
	p, err := turnplayer.BaseTurnPlayerFromOptions(&opts, sc.config)
	if err != nil {
		return nil, err
	}
	sc.player = p
	sc.gameID = uuid.NewString()
	sc.bots = make([]*RemotePlayer, p.NumPlayers())
	for seat := range sc.bots {
		if seat != SelfPlayer {
			sc.bots[seat] = NewRemotePlayer(sc.client, opts.Bot, sc.gameID, p.Game)
		}
	}
	return sc.show()
}

func (sc *ShellController) show() (*ShellResponse, error) {
	if sc.player == nil {
		return nil, errors.New("no game; type new")
	}
	return Msg(sc.player.ViewFor(SelfPlayer).ToDisplayText()), nil
}

func (sc *ShellController) move(fields []string) (*ShellResponse, error) {
	if !sc.IsPlaying() {
		return nil, errors.New("game is over")
	}
	if sc.player.PlayerOnTurn() != SelfPlayer {
		return nil, errors.New("not your turn")
	}
	if err := sc.apply(fields); err != nil {
		return nil, err
	}
	if !sc.IsPlaying() {
		return Msg(sc.gameOver()), nil
	}
	return nil, nil
}

func (sc *ShellController) handle(line string) (*ShellResponse, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}
	cmd := fields[0]
	args := fields[1:]
	switch cmd {
	case "new", "n":
		return sc.newGame(args)
	case "show", "s":
		return sc.show()
	case "play", "p", "discard", "d", "hint", "h":
		return sc.move(fields)
	default:
		msg := fmt.Sprintf("command %v not found", strconv.Quote(cmd))
		log.Info().Msg(msg)
		return nil, errors.New(msg)
	}
}

// Loop reads commands until exit; bots move as soon as they are on turn.
func (sc *ShellController) Loop(ctx context.Context, channel string, sig chan os.Signal) {
	defer sc.l.Close()

	nc, err := Connect(ctx, sc.config)
	if err != nil {
		sc.showError(err)
		sig <- syscall.SIGINT
		return
	}
	defer nc.Close()
	sc.client = NewClient(nc, channel, time.Minute)

	for {
		if sc.IsBotOnTurn() {
			if err := sc.getMove(ctx); err != nil {
				sc.showError(err)
				// the person may start a new game
				sc.player = nil
			}
			continue
		}

		line, err := sc.l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				sig <- syscall.SIGINT
				break
			}
			continue
		} else if err == io.EOF {
			sig <- syscall.SIGINT
			break
		}
		line = strings.TrimSpace(line)

		if line == "exit" {
			sig <- syscall.SIGINT
			break
		}
		resp, err := sc.handle(line)
		if err != nil {
			sc.showError(err)
		} else if resp != nil {
			sc.showMessage(resp.message)
		}
	}
	log.Debug().Msgf("Exiting readline loop...")
}
