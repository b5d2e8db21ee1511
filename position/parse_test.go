package position

import (
	"errors"
	"testing"

	"github.com/matryer/is"

	"github.com/facebookresearch/Hanabi-SPARTA/card"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
)

func TestParse(t *testing.T) {
	is := is.New(t)
	pos, err := Parse(nil, "r1r2r3r4r5/b1b2b3b4b5 1/0/0/2/0 y1g3 6/2 turn 1;deck 12;seed 7;")
	is.NoErr(err)
	is.Equal(pos.NumPlayers(), 2)
	is.Equal(pos.Hand(1)[4], card.Card{Color: card.Blue, Value: 5})
	is.Equal(pos.Piles()[card.Red], card.Value(1))
	is.Equal(pos.Piles()[card.Green], card.Value(2))
	is.Equal(pos.HintStones(), 6)
	is.Equal(pos.MistakesRemaining(), 2)
	is.Equal(pos.PlayerOnTurn(), 1)
	is.Equal(pos.DeckRemaining(), 12)
	d := pos.Discards()
	is.Equal(d.Total(), 2)
	is.Equal(pos.Opcodes["seed"], "7")
}

func TestParseDefaultsDeck(t *testing.T) {
	is := is.New(t)
	pos, err := Parse(nil, "r1r2r3r4/b1b2b3b4/g1g2g3g4/y1y2y3y4 0/0/0/0/0 - 8/3")
	is.NoErr(err)
	is.Equal(pos.Rules().HandSize, 4)
	is.Equal(pos.DeckRemaining(), card.DeckSize-16)
	is.Equal(pos.PlayerOnTurn(), 0)
}

func TestRoundTrip(t *testing.T) {
	is := is.New(t)
	g, err := game.Start(42, 3)
	is.NoErr(err)
	s := String(g)
	pos, err := Parse(nil, s)
	is.NoErr(err)
	is.Equal(String(pos.Game), s)
	for p := range 3 {
		is.Equal(pos.Hand(p), g.Hand(p))
	}
}

func TestParseErrors(t *testing.T) {
	is := is.New(t)
	for _, s := range []string{
		"r1r2r3r4r5/b1b2b3b4b5 0/0/0/0/0 -",
		"r1r2r3r4r5/b5b2b3b4b5 0/0/0/0/0 - 8/3",
		"r1r2r3r4r5/b1b2b3b4b5 0/0/0/0 - 8/3",
		"r1r2r3r4r5/b1b2b3b4b5 0/0/0/0/0 - 9/3",
		"r1r2r3r4r5/b1b2b3b4b 0/0/0/0/0 - 8/3",
		"r1r2r3r4r5/b1b2b3b4b5 0/0/0/0/0 - 8/3 turn x;",
	} {
		_, err := Parse(nil, s)
		is.True(err != nil)
	}
	_, err := Parse(nil, "r1r2r3r4r5/b5b2b3b4b5 0/0/0/0/0 - 8/3")
	is.True(errors.Is(err, game.ErrBadSetup))
}
