package game

import (
	"errors"
	"fmt"

	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

var (
	// ErrIllegalMove is matched by every *IllegalMoveError. It is
	// recoverable: the caller picks another move.
	ErrIllegalMove = errors.New("illegal move")
	// ErrProtocolViolation is fatal to the game instance.
	ErrProtocolViolation = errors.New("protocol violation")
)

type IllegalReason uint8

const (
	ReasonWrongPlayer IllegalReason = iota + 1
	ReasonSlotOutOfRange
	ReasonNoHintStones
	ReasonDiscardAtMaxHints
	ReasonBadTarget
	ReasonHintSelf
	ReasonBadHintValue
	ReasonEmptyHint
)

func (r IllegalReason) String() string {
	switch r {
	case ReasonWrongPlayer:
		return "not this player's turn"
	case ReasonSlotOutOfRange:
		return "slot out of range"
	case ReasonNoHintStones:
		return "no hint stones left"
	case ReasonDiscardAtMaxHints:
		return "cannot discard with all hint stones available"
	case ReasonBadTarget:
		return "no such player"
	case ReasonHintSelf:
		return "cannot hint yourself"
	case ReasonBadHintValue:
		return "bad hint color or value"
	case ReasonEmptyHint:
		return "hint touches no cards"
	}
	return "unknown"
}

type IllegalMoveError struct {
	Reason IllegalReason
	Player int
	Move   move.Move
}

func (e *IllegalMoveError) Error() string {
	return fmt.Sprintf("illegal move %s by player %d: %s", e.Move.ShortDescription(), e.Player, e.Reason)
}

func (e *IllegalMoveError) Is(target error) bool {
	return target == ErrIllegalMove
}

func illegal(reason IllegalReason, player int, m move.Move) error {
	return &IllegalMoveError{Reason: reason, Player: player, Move: m}
}
