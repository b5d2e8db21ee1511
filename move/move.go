package move

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/facebookresearch/Hanabi-SPARTA/card"
)

// MoveType is a type of move; a play, a discard, or one of the two hints.
type MoveType uint8

const (
	MoveTypePlay MoveType = iota
	MoveTypeDiscard
	MoveTypeHintColor
	MoveTypeHintValue
)

var ErrUnrecognizedMove = errors.New("unrecognized move")

func (t MoveType) String() string {
	switch t {
	case MoveTypePlay:
		return "play"
	case MoveTypeDiscard:
		return "discard"
	case MoveTypeHintColor:
		return "hint-color"
	case MoveTypeHintValue:
		return "hint-value"
	}
	return "unknown"
}

// Move is a single Hanabi action. The acting player is implicit: it is
// always the player on turn. Moves are small values and compare with ==.
type Move struct {
	action MoveType
	// slot is the hand index for plays and discards.
	slot int
	// target is the absolute seat index for hints.
	target int
	color  card.Color
	value  card.Value
}

func NewPlayMove(slot int) Move {
	return Move{action: MoveTypePlay, slot: slot, target: -1}
}

func NewDiscardMove(slot int) Move {
	return Move{action: MoveTypeDiscard, slot: slot, target: -1}
}

func NewColorHintMove(target int, c card.Color) Move {
	return Move{action: MoveTypeHintColor, slot: -1, target: target, color: c}
}

func NewValueHintMove(target int, v card.Value) Move {
	return Move{action: MoveTypeHintValue, slot: -1, target: target, value: v}
}

func (m Move) Action() MoveType  { return m.action }
func (m Move) Slot() int         { return m.slot }
func (m Move) Target() int       { return m.target }
func (m Move) Color() card.Color { return m.color }
func (m Move) Value() card.Value { return m.value }

func (m Move) IsHint() bool {
	return m.action == MoveTypeHintColor || m.action == MoveTypeHintValue
}

// Touches returns whether a hint names the given card.
func (m Move) Touches(c card.Card) bool {
	switch m.action {
	case MoveTypeHintColor:
		return c.Color == m.color
	case MoveTypeHintValue:
		return c.Value == m.value
	}
	return false
}

// Index packs the move into a small integer, useful as a map key or for
// stable ordering of candidate lists. Hints are ordered after plays and
// discards.
func (m Move) Index() int {
	switch m.action {
	case MoveTypePlay:
		return m.slot
	case MoveTypeDiscard:
		return 8 + m.slot
	case MoveTypeHintColor:
		return 16 + m.target*16 + int(m.color)
	default:
		return 16 + m.target*16 + 8 + int(m.value)
	}
}

// ShortDescription is the text form accepted by Parse.
func (m Move) ShortDescription() string {
	switch m.action {
	case MoveTypePlay:
		return fmt.Sprintf("play %d", m.slot)
	case MoveTypeDiscard:
		return fmt.Sprintf("discard %d", m.slot)
	case MoveTypeHintColor:
		return fmt.Sprintf("hint %d %s", m.target, m.color)
	case MoveTypeHintValue:
		return fmt.Sprintf("hint %d %d", m.target, m.value)
	}
	return "?"
}

func (m Move) String() string {
	return "<" + m.ShortDescription() + ">"
}

// Parse reads a move from its fields, e.g. ["play", "2"], ["hint", "1",
// "red"] or ["hint", "1", "3"].
func Parse(fields []string) (Move, error) {
	if len(fields) == 0 {
		return Move{}, ErrUnrecognizedMove
	}
	switch strings.ToLower(fields[0]) {
	case "play", "discard":
		if len(fields) != 2 {
			break
		}
		slot, err := strconv.Atoi(fields[1])
		if err != nil {
			return Move{}, fmt.Errorf("%w: bad slot %q", ErrUnrecognizedMove, fields[1])
		}
		if strings.ToLower(fields[0]) == "play" {
			return NewPlayMove(slot), nil
		}
		return NewDiscardMove(slot), nil
	case "hint":
		if len(fields) != 3 {
			break
		}
		target, err := strconv.Atoi(fields[1])
		if err != nil {
			return Move{}, fmt.Errorf("%w: bad target %q", ErrUnrecognizedMove, fields[1])
		}
		if v, err := strconv.Atoi(fields[2]); err == nil {
			if !card.Value(v).Valid() {
				return Move{}, fmt.Errorf("%w: bad value %d", ErrUnrecognizedMove, v)
			}
			return NewValueHintMove(target, card.Value(v)), nil
		}
		c, err := card.ParseColor(fields[2])
		if err != nil {
			return Move{}, fmt.Errorf("%w: %w", ErrUnrecognizedMove, err)
		}
		return NewColorHintMove(target, c), nil
	}
	return Move{}, fmt.Errorf("%w: %s", ErrUnrecognizedMove, strings.Join(fields, " "))
}

// FromString is a convenience wrapper around Parse.
func FromString(s string) (Move, error) {
	return Parse(strings.Fields(s))
}
