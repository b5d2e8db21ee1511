package turnplayer

import (
	"context"

	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

// AITurnPlayer is the capability every agent implements, from the rule-table
// heuristics to the search bots.
//
// An agent sees the game only through Views. ObserveMove is called once for
// every move applied to the game, including the agent's own, with the views
// from just before and just after the move. Those are the agent's own
// views, except for seat-agnostic agents, which may be given the views of
// whoever is on turn. Decide is only called when the
// view's observer is on turn.
type AITurnPlayer interface {
	Name() string
	ObserveMove(before *game.View, d game.Delta, after *game.View)
	Decide(ctx context.Context, v *game.View) (move.Move, error)
	// Clone returns an independent copy that can observe and decide without
	// affecting the original.
	Clone() AITurnPlayer
}

// SeatAgnostic is implemented by agents whose observed state is built from
// public information only. One instance may then decide for every seat,
// which is how rollouts use heuristic blueprints.
type SeatAgnostic interface {
	AITurnPlayer
	SeatAgnostic() bool
}

// IsSeatAgnostic reports whether p can decide for any seat.
func IsSeatAgnostic(p AITurnPlayer) bool {
	sa, ok := p.(SeatAgnostic)
	return ok && sa.SeatAgnostic()
}
