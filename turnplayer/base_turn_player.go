package turnplayer

import (
	"github.com/facebookresearch/Hanabi-SPARTA/config"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

// Basic game. Make moves by hand.

type BaseTurnPlayer struct {
	*game.Game
}

// BaseTurnPlayerFromOptions is a good entry point
func BaseTurnPlayerFromOptions(opts *GameOptions, cfg *config.Config) (*BaseTurnPlayer, error) {
	opts.SetDefaults(cfg)
	g, err := opts.NewGame(cfg)
	if err != nil {
		return nil, err
	}
	return &BaseTurnPlayer{g}, nil
}

// Play parses and applies a move for the player on turn.
func (p *BaseTurnPlayer) Play(fields []string) (game.Delta, error) {
	m, err := ParseMove(p.Game, fields)
	if err != nil {
		return game.Delta{}, err
	}
	return p.ApplyMove(m)
}

func (p *BaseTurnPlayer) ParseMove(fields []string) (move.Move, error) {
	return ParseMove(p.Game, fields)
}

func (p *BaseTurnPlayer) IsPlaying() bool {
	return p.Game != nil && !p.IsOver()
}

func (p *BaseTurnPlayer) SetGame(g *game.Game) {
	p.Game = g
}
