package game

import (
	"github.com/samber/lo"

	"github.com/facebookresearch/Hanabi-SPARTA/card"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

// Position is the read-only state a move is validated against. Both the
// authoritative *Game and a player's *View satisfy it, so agents prune
// candidates with exactly the checks the engine enforces.
type Position interface {
	NumPlayers() int
	PlayerOnTurn() int
	HintStones() int
	MaxHintStones() int
	HandSize(player int) int
	// CardAt returns the card in a slot, or false if it is hidden from
	// this position's point of view.
	CardAt(player, slot int) (card.Card, bool)
}

// Validate is the one move validator. It returns nil or an
// *IllegalMoveError.
func Validate(pos Position, player int, m move.Move) error {
	if player != pos.PlayerOnTurn() {
		return illegal(ReasonWrongPlayer, player, m)
	}
	switch m.Action() {
	case move.MoveTypePlay, move.MoveTypeDiscard:
		if m.Slot() < 0 || m.Slot() >= pos.HandSize(player) {
			return illegal(ReasonSlotOutOfRange, player, m)
		}
		if m.Action() == move.MoveTypeDiscard && pos.HintStones() >= pos.MaxHintStones() {
			return illegal(ReasonDiscardAtMaxHints, player, m)
		}
		return nil
	case move.MoveTypeHintColor, move.MoveTypeHintValue:
		if pos.HintStones() <= 0 {
			return illegal(ReasonNoHintStones, player, m)
		}
		t := m.Target()
		if t < 0 || t >= pos.NumPlayers() {
			return illegal(ReasonBadTarget, player, m)
		}
		if t == player {
			return illegal(ReasonHintSelf, player, m)
		}
		if m.Action() == move.MoveTypeHintColor && (m.Color() < 0 || int(m.Color()) >= card.NumColors) {
			return illegal(ReasonBadHintValue, player, m)
		}
		if m.Action() == move.MoveTypeHintValue && !m.Value().Valid() {
			return illegal(ReasonBadHintValue, player, m)
		}
		for s := range pos.HandSize(t) {
			if c, ok := pos.CardAt(t, s); ok && m.Touches(c) {
				return nil
			}
		}
		return illegal(ReasonEmptyHint, player, m)
	}
	return illegal(ReasonBadHintValue, player, m)
}

// AllMoves lists every syntactically possible move for the player on turn,
// legal or not.
func AllMoves(pos Position) []move.Move {
	p := pos.PlayerOnTurn()
	var out []move.Move
	for s := range pos.HandSize(p) {
		out = append(out, move.NewPlayMove(s))
	}
	for s := range pos.HandSize(p) {
		out = append(out, move.NewDiscardMove(s))
	}
	for i := 1; i < pos.NumPlayers(); i++ {
		t := (p + i) % pos.NumPlayers()
		for c := range card.NumColors {
			out = append(out, move.NewColorHintMove(t, card.Color(c)))
		}
		for v := 1; v <= card.NumValues; v++ {
			out = append(out, move.NewValueHintMove(t, card.Value(v)))
		}
	}
	return out
}

// LegalMoves filters AllMoves through Validate.
func LegalMoves(pos Position) []move.Move {
	p := pos.PlayerOnTurn()
	return lo.Filter(AllMoves(pos), func(m move.Move, _ int) bool {
		return Validate(pos, p, m) == nil
	})
}
