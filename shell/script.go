package shell

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
)

func getShell(L *lua.LState) *ShellController {
	shell := L.GetGlobal("hanabi_shell")
	ud, ok := shell.(*lua.LUserData)
	if !ok {
		panic("luserdata not right type")
	}
	sc, ok := ud.Value.(*ShellController)
	if !ok {
		panic("shellcontroller not right type")
	}
	return sc
}

// luaCommand wraps a shell command as a Lua function that takes the
// command's arguments as one string and returns its output.
func luaCommand(name string) lua.LGFunction {
	return func(L *lua.LState) int {
		line := name
		if L.GetTop() > 0 {
			line += " " + L.ToString(1)
		}
		sc := getShell(L)
		r, err := sc.Execute(line)
		if err != nil {
			log.Err(err).Str("command", name).Msg("error-executing-command")
			L.Push(lua.LString("ERROR: " + err.Error()))
			return 1
		}
		L.Push(lua.LString(r.message))
		// return number of results pushed to stack.
		return 1
	}
}

func Score(L *lua.LState) int {
	sc := getShell(L)
	if sc.game == nil {
		L.Push(lua.LNumber(0))
		return 1
	}
	L.Push(lua.LNumber(sc.game.Score()))
	return 1
}

func Over(L *lua.LState) int {
	sc := getShell(L)
	L.Push(lua.LBool(sc.game == nil || sc.game.IsOver()))
	return 1
}

func Turn(L *lua.LState) int {
	sc := getShell(L)
	if sc.game == nil {
		L.Push(lua.LNumber(0))
		return 1
	}
	L.Push(lua.LNumber(sc.game.Turn()))
	return 1
}

// Move makes a move by hand, e.g. hanabi_move("hint 1 red").
func Move(L *lua.LState) int {
	sc := getShell(L)
	r, err := sc.Execute(L.ToString(1))
	if err != nil {
		log.Err(err).Msg("error-executing-move")
		L.Push(lua.LString("ERROR: " + err.Error()))
		return 1
	}
	L.Push(lua.LString(r.message))
	return 1
}

// SearchWait waits up to the given number of seconds, 600 by default, for
// the running search and returns its results.
func SearchWait(L *lua.LState) int {
	sc := getShell(L)
	sc.waitSearch(time.Duration(L.OptInt(1, 600)) * time.Second)
	L.Push(lua.LString(sc.searchResults()))
	return 1
}

var luaCommands = []string{"new", "load", "position", "show", "history", "beliefs", "set", "gid", "aiplay", "search", "autoplay", "analyze"}

func (sc *ShellController) script(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) == 0 {
		return nil, errors.New("please provide a script file")
	}
	filepath := cmd.args[0]
	L := lua.NewState()
	defer L.Close()
	lsc := L.NewUserData()
	lsc.Value = sc
	L.SetGlobal("hanabi_shell", lsc)
	for _, name := range luaCommands {
		L.SetGlobal("hanabi_"+name, L.NewFunction(luaCommand(name)))
	}
	L.SetGlobal("hanabi_move", L.NewFunction(Move))
	L.SetGlobal("hanabi_score", L.NewFunction(Score))
	L.SetGlobal("hanabi_over", L.NewFunction(Over))
	L.SetGlobal("hanabi_turn", L.NewFunction(Turn))
	L.SetGlobal("hanabi_search_wait", L.NewFunction(SearchWait))

	if err := L.DoFile(filepath); err != nil {
		return nil, err
	}
	return msg("Script ran successfully."), nil
}
