package shell

import (
	"strings"

	"github.com/kballard/go-shellquote"
)

// ShellCompleter provides context-aware autocomplete for shell commands
type ShellCompleter struct {
	sc *ShellController
}

func NewShellCompleter(sc *ShellController) *ShellCompleter {
	return &ShellCompleter{sc: sc}
}

// CommandMetadata holds autocomplete information for a command
type CommandMetadata struct {
	Options []string
	Args    []string
}

var commandMetadata = map[string]CommandMetadata{
	"search": {
		Options: []string{"-n", "-threads", "-depth", "-thresh"},
		Args:    []string{"show", "stop", "log"},
	},
	"autoplay": {
		Options: []string{"-games", "-threads", "-bot", "-file"},
		Args:    []string{"stop"},
	},
	"set": {
		Args: []string{"players", "seed", "bot"},
	},
	"aiplay": {
		Args: []string{"all"},
	},
	"help": {
		Args: []string{"new", "hint", "search", "autoplay", "set", "script"},
	},
}

var commandNames = []string{
	"help", "new", "load", "position", "show", "history", "beliefs", "set", "gid",
	"play", "discard", "hint", "aiplay", "search", "autoplay", "analyze", "script",
	"exit",
}

var botNames = []string{"SimpleBot", "HolmesBot", "SmartBot", "SearchBot", "JointSearchBot", "InfoBot"}

var hintValues = []string{"red", "orange", "yellow", "green", "blue", "1", "2", "3", "4", "5"}

// Do implements the readline.AutoComplete interface
func (c *ShellCompleter) Do(line []rune, pos int) ([][]rune, int) {
	text := string(line[:pos])

	fields, err := shellquote.Split(text)
	if err != nil {
		// unbalanced quotes
		fields = strings.Fields(text)
	}
	endsWithSpace := len(text) > 0 && text[len(text)-1] == ' '

	var prefix string
	var completions []string

	if len(fields) == 0 || (len(fields) == 1 && !endsWithSpace) {
		if len(fields) == 1 {
			prefix = fields[0]
		}
		completions = commandNames
	} else {
		cmdName := fields[0]
		if !endsWithSpace {
			prefix = fields[len(fields)-1]
		}
		var lastCompleteField string
		if endsWithSpace {
			lastCompleteField = fields[len(fields)-1]
		} else if len(fields) > 1 {
			lastCompleteField = fields[len(fields)-2]
		}

		switch {
		case lastCompleteField == "-bot" || (cmdName == "set" && lastCompleteField == "bot"):
			completions = botNames
		case (cmdName == "hint" || cmdName == "h") && len(fields)+boolInt(endsWithSpace) == 3:
			completions = hintValues
		}

		if completions == nil {
			if metadata, exists := commandMetadata[cmdName]; exists {
				if strings.HasPrefix(prefix, "-") || len(metadata.Args) == 0 {
					completions = metadata.Options
				} else {
					completions = metadata.Args
				}
			}
		}
	}

	var matches [][]rune
	for _, completion := range completions {
		if strings.HasPrefix(completion, prefix) {
			// Return only the part that needs to be added
			matches = append(matches, []rune(completion[len(prefix):]))
		}
	}
	return matches, len(prefix)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
