package move

import (
	"errors"
	"testing"

	"github.com/matryer/is"

	"github.com/facebookresearch/Hanabi-SPARTA/card"
)

func TestParse(t *testing.T) {
	is := is.New(t)
	type tc struct {
		in  string
		exp Move
	}
	cases := []tc{
		{"play 2", NewPlayMove(2)},
		{"discard 0", NewDiscardMove(0)},
		{"hint 1 red", NewColorHintMove(1, card.Red)},
		{"hint 3 b", NewColorHintMove(3, card.Blue)},
		{"hint 1 3", NewValueHintMove(1, 3)},
		{"PLAY 4", NewPlayMove(4)},
	}
	for _, c := range cases {
		m, err := FromString(c.in)
		is.NoErr(err)
		is.Equal(m, c.exp)
	}
	for _, bad := range []string{"", "play", "play x", "hint 1", "hint 1 9", "hint 1 purple", "pass"} {
		_, err := FromString(bad)
		is.True(errors.Is(err, ErrUnrecognizedMove))
	}
}

func TestShortDescriptionRoundTrip(t *testing.T) {
	is := is.New(t)
	moves := []Move{
		NewPlayMove(0), NewDiscardMove(4),
		NewColorHintMove(2, card.Yellow), NewValueHintMove(1, 5),
	}
	seen := map[int]bool{}
	for _, m := range moves {
		back, err := FromString(m.ShortDescription())
		is.NoErr(err)
		is.Equal(back, m)
		is.True(!seen[m.Index()])
		seen[m.Index()] = true
	}
}

func TestTouches(t *testing.T) {
	is := is.New(t)
	r3 := card.Card{Color: card.Red, Value: 3}
	is.True(NewColorHintMove(1, card.Red).Touches(r3))
	is.True(!NewColorHintMove(1, card.Blue).Touches(r3))
	is.True(NewValueHintMove(1, 3).Touches(r3))
	is.True(!NewPlayMove(0).Touches(r3))
}
