package bot

import (
	"context"

	"github.com/facebookresearch/Hanabi-SPARTA/ai/turnplayer"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

// RemotePlayer is a seat played by a bot elsewhere. It remembers the moves
// it observes and sends them with every request.
type RemotePlayer struct {
	mover    MoveRequester
	gameID   string
	bot      string
	seed     int64
	players  int
	handSize int
	moves    []move.Move
}

// NewRemotePlayer seats bot, played through mover, in game g.
func NewRemotePlayer(mover MoveRequester, bot, gameID string, g *game.Game) *RemotePlayer {
	return &RemotePlayer{
		mover:    mover,
		gameID:   gameID,
		bot:      bot,
		seed:     g.Seed(),
		players:  g.NumPlayers(),
		handSize: g.Rules().HandSize,
		moves:    game.HistoryMoves(g.History()),
	}
}

func (r *RemotePlayer) Name() string {
	return "Remote" + r.bot
}

func (r *RemotePlayer) ObserveMove(before *game.View, d game.Delta, after *game.View) {
	r.moves = append(r.moves, d.Move)
}

func (r *RemotePlayer) Decide(ctx context.Context, v *game.View) (move.Move, error) {
	return r.mover.RequestMove(ctx, &Request{
		GameID:   r.gameID,
		Bot:      r.bot,
		Seed:     r.seed,
		Players:  r.players,
		HandSize: r.handSize,
		Seat:     v.Observer,
		Moves:    append([]move.Move(nil), r.moves...),
	})
}

func (r *RemotePlayer) Clone() turnplayer.AITurnPlayer {
	c := *r
	c.moves = append([]move.Move(nil), r.moves...)
	return &c
}
