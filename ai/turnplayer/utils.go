package turnplayer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

var ErrNoLegalMove = errors.New("no legal move")

// SafeMove returns the first legal move for the player on turn of v. Every
// position that is not over has one: a player can always play a card.
func SafeMove(v *game.View) (move.Move, error) {
	legal := game.LegalMoves(v)
	if len(legal) == 0 {
		return move.Move{}, ErrNoLegalMove
	}
	return legal[0], nil
}

// GenBestStaticTurn asks p for the move of the observer of v, who must be on
// turn. A move the validator would reject is replaced by SafeMove and logged;
// agents are expected never to get there.
func GenBestStaticTurn(ctx context.Context, p AITurnPlayer, v *game.View) (move.Move, error) {
	m, err := p.Decide(ctx, v)
	if err != nil {
		return move.Move{}, err
	}
	if verr := game.Validate(v, v.Observer, m); verr != nil {
		log.Warn().Err(verr).Str("bot", p.Name()).Int("turn", v.TurnNum).Msg("bot-chose-illegal-move")
		return SafeMove(v)
	}
	return m, nil
}

// PlayOut continues g with p deciding for every seat, until the game is over
// or maxTurns more turns have been played (0 means no limit). p must be
// seat agnostic; it is fed every move it makes.
func PlayOut(ctx context.Context, g *game.Game, p AITurnPlayer, maxTurns int) error {
	if !IsSeatAgnostic(p) {
		return fmt.Errorf("bot %s cannot play every seat", p.Name())
	}
	v := g.ViewFor(g.PlayerOnTurn())
	for t := 0; !g.IsOver() && (maxTurns == 0 || t < maxTurns); t++ {
		m, err := GenBestStaticTurn(ctx, p, v)
		if err != nil {
			return err
		}
		d, err := g.ApplyMove(m)
		if err != nil {
			return err
		}
		next := g.ViewFor(g.PlayerOnTurn())
		p.ObserveMove(v, d, next)
		v = next
	}
	return nil
}
