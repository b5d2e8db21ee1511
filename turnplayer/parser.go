package turnplayer

import (
	"fmt"
	"strings"

	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

var abbreviations = map[string]string{
	"p": "play",
	"d": "discard",
	"h": "hint",
}

// ParseMove reads a move typed by a person, e.g. "play 2", "d 0" or
// "h 1 red", and checks it is legal for the player on turn.
func ParseMove(v game.Position, fields []string) (move.Move, error) {
	if len(fields) == 0 {
		return move.Move{}, move.ErrUnrecognizedMove
	}
	f := append([]string(nil), fields...)
	if long, ok := abbreviations[strings.ToLower(f[0])]; ok {
		f[0] = long
	}
	m, err := move.Parse(f)
	if err != nil {
		return move.Move{}, fmt.Errorf("unrecognized move %q: %w", strings.Join(fields, " "), err)
	}
	if err := game.Validate(v, v.PlayerOnTurn(), m); err != nil {
		return move.Move{}, err
	}
	return m, nil
}
