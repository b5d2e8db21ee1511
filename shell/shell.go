// Package shell is an interactive driver. It deals games, steps through
// them with agents or by hand, searches positions and runs batches of
// games in the background.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog/log"

	aiturnplayer "github.com/facebookresearch/Hanabi-SPARTA/ai/turnplayer"
	"github.com/facebookresearch/Hanabi-SPARTA/config"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/montecarlo"
	"github.com/facebookresearch/Hanabi-SPARTA/turnplayer"
)

const SearchLog = "/tmp/hanabi_searchlog.yaml"

var (
	errNoData            = errors.New("no data in this line")
	errWrongOptionSyntax = errors.New("wrong format; all options need arguments")
	errNoGame            = errors.New("please start a game first with the `new` command")
	errSearching         = errors.New("a search is running; please do a `search stop` first")
)

// ShellOptions are the game settings the `set` command changes.
type ShellOptions struct {
	turnplayer.GameOptions
}

func (opts *ShellOptions) Show(key string) (bool, string) {
	switch key {
	case "players":
		return true, fmt.Sprintf("%d", opts.Players)
	case "seed":
		return true, fmt.Sprintf("%d", opts.Seed)
	case "bot":
		return true, opts.Bot
	default:
		return false, "No such option: " + key
	}
}

func (opts *ShellOptions) ToDisplayText() string {
	keys := []string{"players", "seed", "bot"}
	out := strings.Builder{}
	out.WriteString("Settings:\n")
	for _, key := range keys {
		_, val := opts.Show(key)
		out.WriteString("  " + key + ": ")
		out.WriteString(val + "\n")
	}
	return out.String()
}

type ShellController struct {
	l      *readline.Instance
	out    io.Writer
	config *config.Config

	options *ShellOptions

	game   *turnplayer.BaseTurnPlayer
	start  *game.Game
	gameID string
	agents []aiturnplayer.AITurnPlayer

	searchMu      sync.Mutex
	searching     bool
	searchCancel  context.CancelFunc
	searchDone    chan struct{}
	searchLogFile *os.File
	searchBot     *montecarlo.SearchBot
	lastSearch    *montecarlo.SearchResult

	autoplayCancel context.CancelFunc
}

type shellcmd struct {
	cmd     string
	args    []string
	options CmdOptions
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func showMessage(msg string, w io.Writer) {
	io.WriteString(w, msg)
	io.WriteString(w, "\n")
}

// newController makes a shell that writes to out and reads nothing. The
// readline loop and scripts drive it through Execute.
func newController(cfg *config.Config, out io.Writer) *ShellController {
	opts := &ShellOptions{}
	opts.SetDefaults(cfg)
	return &ShellController{out: out, config: cfg, options: opts}
}

func NewShellController(cfg *config.Config) (*ShellController, error) {
	sc := newController(cfg, os.Stderr)
	l, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[31mhanabi>\033[0m ",
		HistoryFile:     "/tmp/hanabi_readline.tmp",
		EOFPrompt:       "exit",
		InterruptPrompt: "^C",
		AutoComplete:    NewShellCompleter(sc),

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return nil, err
	}
	sc.l = l
	sc.out = l.Stderr()
	return sc, nil
}

func (sc *ShellController) showMessage(msg string) {
	showMessage(msg, sc.out)
}

func (sc *ShellController) showError(err error) {
	sc.showMessage("Error: " + err.Error())
}

func (sc *ShellController) IsPlaying() bool {
	return sc.game != nil && sc.game.IsPlaying()
}

func (sc *ShellController) isSearching() bool {
	sc.searchMu.Lock()
	defer sc.searchMu.Unlock()
	return sc.searching
}

func extractFields(line string) (*shellcmd, error) {
	fields, err := shellquote.Split(line)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, errNoData
	}
	cmd := fields[0]
	var args []string
	options := CmdOptions{}
	for idx := 1; idx < len(fields); idx++ {
		f := fields[idx]
		if isOption(f) {
			if idx == len(fields)-1 {
				return nil, errWrongOptionSyntax
			}
			key := f[1:]
			options[key] = append(options[key], fields[idx+1])
			idx++
			continue
		}
		args = append(args, f)
	}
	return &shellcmd{cmd: cmd, args: args, options: options}, nil
}

// isOption tells -threads from a negative number such as a -1 seed.
func isOption(f string) bool {
	return len(f) > 1 && f[0] == '-' && (f[1] < '0' || f[1] > '9')
}

// Execute runs one command line.
func (sc *ShellController) Execute(line string) (*Response, error) {
	cmd, err := extractFields(line)
	if err != nil {
		return nil, err
	}
	return sc.dispatch(cmd)
}

func (sc *ShellController) dispatch(cmd *shellcmd) (*Response, error) {
	switch cmd.cmd {
	case "help":
		return sc.help(cmd)
	case "new", "n":
		return sc.newGame(cmd)
	case "show", "s":
		return sc.show(cmd)
	case "load":
		return sc.load(cmd)
	case "position":
		return sc.position(cmd)
	case "history":
		return sc.history(cmd)
	case "beliefs":
		return sc.beliefs(cmd)
	case "set":
		return sc.set(cmd)
	case "gid":
		return sc.gid(cmd)
	case "play", "p", "discard", "d", "hint", "h":
		return sc.move(cmd)
	case "aiplay", "a":
		return sc.aiplay(cmd)
	case "search":
		return sc.search(cmd)
	case "autoplay":
		return sc.autoplay(cmd)
	case "analyze":
		return sc.analyze(cmd)
	case "script":
		return sc.script(cmd)
	}
	return nil, fmt.Errorf("command %q not found", cmd.cmd)
}

func (sc *ShellController) Loop(sig chan os.Signal) {
	defer sc.l.Close()

	for {
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
		if line == "" {
			continue
		}
		if line == "exit" || line == "bye" {
			sig <- syscall.SIGINT
			break
		}
		resp, err := sc.Execute(line)
		if err != nil {
			sc.showError(err)
			continue
		}
		if resp != nil {
			sc.showMessage(resp.message)
		}
	}
	sc.Cleanup()
	log.Debug().Msgf("Exiting readline loop...")
}

// Cleanup stops anything running in the background.
func (sc *ShellController) Cleanup() {
	if sc.isSearching() {
		sc.stopSearch()
	}
	if sc.autoplayCancel != nil {
		sc.autoplayCancel()
	}
}

// waitSearch blocks until the running search, if any, is done, or d
// passes.
func (sc *ShellController) waitSearch(d time.Duration) bool {
	sc.searchMu.Lock()
	done := sc.searchDone
	sc.searchMu.Unlock()
	if done == nil {
		return true
	}
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
