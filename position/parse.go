// Package position reads and writes a one-line notation for Hanabi
// positions:
//
//	<hands> <piles> <discards> <hints>/<mistakes> [opcodes]
//
// Hands are separated by slashes, each a run of two-character cards
// (r1o3b5). Piles are five slash-separated heights in color order. Discards
// are a run of cards, or "-" for none. Opcodes are semicolon-separated:
// "turn N" puts player N on turn, "deck N" leaves N cards to draw and
// "seed N" orders the deck.
package position

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/facebookresearch/Hanabi-SPARTA/card"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
)

var ErrBadPosition = errors.New("bad position")

type ParsedPosition struct {
	*game.Game
	Opcodes map[string]string
}

// Parse returns a game in the position described by s. rules may be nil, in
// which case default rules for the number of hands are used.
func Parse(rules *game.Rules, s string) (*ParsedPosition, error) {
	fields := strings.SplitN(strings.TrimSpace(s), " ", 5)
	if len(fields) < 4 {
		return nil, fmt.Errorf("%w: must have at least 4 space-separated fields", ErrBadPosition)
	}
	setup := game.Setup{DeckSize: -1}

	for _, h := range strings.Split(fields[0], "/") {
		hand, err := parseCards(h)
		if err != nil {
			return nil, err
		}
		setup.Hands = append(setup.Hands, hand)
	}

	piles := strings.Split(fields[1], "/")
	if len(piles) != card.NumColors {
		return nil, fmt.Errorf("%w: need %d piles, got %d", ErrBadPosition, card.NumColors, len(piles))
	}
	for i, p := range piles {
		h, err := strconv.Atoi(p)
		if err != nil || h < 0 || h > card.NumValues {
			return nil, fmt.Errorf("%w: pile %q", ErrBadPosition, p)
		}
		setup.Piles[i] = card.Value(h)
	}

	if fields[2] != "-" {
		d, err := parseCards(fields[2])
		if err != nil {
			return nil, err
		}
		setup.Discards = d
	}

	tokens := strings.Split(fields[3], "/")
	if len(tokens) != 2 {
		return nil, fmt.Errorf("%w: tokens must be hints/mistakes", ErrBadPosition)
	}
	var err error
	if setup.Hints, err = strconv.Atoi(tokens[0]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadPosition, err)
	}
	if setup.Mistakes, err = strconv.Atoi(tokens[1]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadPosition, err)
	}

	var ops []string
	if len(fields) == 5 {
		ops = strings.Split(fields[4], ";")
	}
	opcodes := map[string]string{}
	for _, op := range ops {
		op := strings.TrimSpace(op)
		if len(op) == 0 {
			continue
		}
		opWithParams := strings.SplitN(op, " ", 2)
		if len(opWithParams) != 2 {
			return nil, fmt.Errorf("%w: wrong number of arguments for %s operation", ErrBadPosition, opWithParams[0])
		}
		n, err := strconv.ParseInt(opWithParams[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrBadPosition, opWithParams[0], err)
		}
		switch opWithParams[0] {
		case "turn":
			setup.OnTurn = int(n)
		case "deck":
			setup.DeckSize = int(n)
		case "seed":
			setup.Seed = n
		default:
			log.Debug().Str("op", opWithParams[0]).Msg("ignoring-unknown-opcode")
			continue
		}
		opcodes[opWithParams[0]] = opWithParams[1]
	}

	if rules == nil {
		if rules, err = game.NewRules(len(setup.Hands)); err != nil {
			return nil, err
		}
	}
	g, err := game.NewGameFromSetup(rules, setup)
	if err != nil {
		return nil, err
	}
	return &ParsedPosition{Game: g, Opcodes: opcodes}, nil
}

func parseCards(s string) ([]card.Card, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: %q is not a run of cards", ErrBadPosition, s)
	}
	out := make([]card.Card, 0, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		c, err := card.Parse(s[i : i+2])
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// String writes the position of g, including the player on turn and the deck
// size. The order of the deck is not recorded.
func String(g *game.Game) string {
	var sb strings.Builder
	for p := range g.NumPlayers() {
		if p > 0 {
			sb.WriteByte('/')
		}
		for _, c := range g.Hand(p) {
			sb.WriteString(c.String())
		}
	}
	sb.WriteByte(' ')
	for i, top := range g.Piles() {
		if i > 0 {
			sb.WriteByte('/')
		}
		sb.WriteString(strconv.Itoa(int(top)))
	}
	sb.WriteByte(' ')
	discards := g.Discards()
	if d := discards.Cards(); len(d) > 0 {
		for _, c := range d {
			sb.WriteString(c.String())
		}
	} else {
		sb.WriteByte('-')
	}
	fmt.Fprintf(&sb, " %d/%d turn %d;deck %d;", g.HintStones(), g.MistakesRemaining(), g.PlayerOnTurn(), g.DeckRemaining())
	return sb.String()
}
