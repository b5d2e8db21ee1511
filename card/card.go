// Package card contains the Hanabi card model: colors, values, the fixed
// deck composition and a seeded, portable deck shuffle.
package card

import (
	"errors"
	"fmt"
	"strings"
)

type Color int8

const (
	Red Color = iota
	Orange
	Yellow
	Green
	Blue
)

const (
	NumColors = 5
	NumValues = 5
	// NumIdentities is the size of the (color, value) universe.
	NumIdentities = NumColors * NumValues
	DeckSize      = 50
	MaxScore      = NumColors * NumValues
)

var colorNames = [NumColors]string{"red", "orange", "yellow", "green", "blue"}

var ErrBadCard = errors.New("could not parse card")

func (c Color) String() string {
	if c < 0 || int(c) >= NumColors {
		return "?"
	}
	return colorNames[c]
}

// Letter is the one-letter abbreviation used in compact card strings.
func (c Color) Letter() byte {
	if c < 0 || int(c) >= NumColors {
		return '?'
	}
	return colorNames[c][0]
}

func ParseColor(s string) (Color, error) {
	s = strings.ToLower(s)
	for i, n := range colorNames {
		if s == n || (len(s) == 1 && s[0] == n[0]) {
			return Color(i), nil
		}
	}
	return 0, fmt.Errorf("%w: color %q", ErrBadCard, s)
}

// Value is a card rank from 1 to 5.
type Value int8

func (v Value) Valid() bool {
	return v >= 1 && v <= NumValues
}

// Multiplicity returns how many copies of each card of value v exist per color.
func Multiplicity(v Value) int {
	switch v {
	case 1:
		return 3
	case 2, 3, 4:
		return 2
	case 5:
		return 1
	}
	return 0
}

type Card struct {
	Color Color
	Value Value
}

// Index maps a card onto the dense range [0, NumIdentities).
func (c Card) Index() int {
	return int(c.Color)*NumValues + int(c.Value) - 1
}

func FromIndex(i int) Card {
	return Card{Color: Color(i / NumValues), Value: Value(i%NumValues + 1)}
}

func (c Card) Valid() bool {
	return c.Color >= 0 && int(c.Color) < NumColors && c.Value.Valid()
}

func (c Card) String() string {
	return fmt.Sprintf("%c%d", c.Color.Letter(), c.Value)
}

// Parse reads a compact card string such as "r1" or "b5".
func Parse(s string) (Card, error) {
	if len(s) != 2 {
		return Card{}, fmt.Errorf("%w: %q", ErrBadCard, s)
	}
	col, err := ParseColor(s[:1])
	if err != nil {
		return Card{}, err
	}
	v := Value(s[1] - '0')
	if !v.Valid() {
		return Card{}, fmt.Errorf("%w: value in %q", ErrBadCard, s)
	}
	return Card{Color: col, Value: v}, nil
}

func CardsString(cards []Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
