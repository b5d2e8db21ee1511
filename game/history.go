package game

import (
	"fmt"

	"github.com/facebookresearch/Hanabi-SPARTA/card"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

// Delta is the public result of one applied move. The move history is the
// ordered list of deltas; entries are never modified once appended.
type Delta struct {
	Turn  int
	Actor int
	Move  move.Move
	// CardID and Card describe the played or discarded card; CardID is -1
	// for hints.
	CardID int
	Card   card.Card
	// Success is true for a play that extended its pile.
	Success bool
	// Touched lists the card ids and slots named by a hint.
	Touched      []int
	TouchedSlots []int
	// DrawnID is the id of the replacement card, or -1 if the deck was empty.
	DrawnID int
	// HintsAfter and MistakesAfter are the token counts after the move.
	HintsAfter    int
	MistakesAfter int
	// BeliefDelta is the number of candidate identities the move eliminated
	// across all observers.
	BeliefDelta int
}

func (d Delta) String() string {
	switch d.Move.Action() {
	case move.MoveTypePlay:
		res := "misplay"
		if d.Success {
			res = "ok"
		}
		return fmt.Sprintf("t%d p%d play %d (%s, %s)", d.Turn, d.Actor, d.Move.Slot(), d.Card, res)
	case move.MoveTypeDiscard:
		return fmt.Sprintf("t%d p%d discard %d (%s)", d.Turn, d.Actor, d.Move.Slot(), d.Card)
	}
	return fmt.Sprintf("t%d p%d %s slots %v", d.Turn, d.Actor, d.Move.ShortDescription(), d.TouchedSlots)
}

// HistoryMoves extracts the moves of a history, in order. Together with the
// seed they are enough to replay a game.
func HistoryMoves(h []Delta) []move.Move {
	out := make([]move.Move, len(h))
	for i, d := range h {
		out[i] = d.Move
	}
	return out
}

// Replay starts a new game from the seed and applies the moves in order.
func Replay(rules *Rules, seed int64, moves []move.Move) (*Game, error) {
	g, err := NewGame(rules, seed)
	if err != nil {
		return nil, err
	}
	for i, m := range moves {
		if _, err := g.ApplyMove(m); err != nil {
			return nil, fmt.Errorf("replaying move %d: %w", i, err)
		}
	}
	return g, nil
}
