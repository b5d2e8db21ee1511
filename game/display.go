package game

import (
	"fmt"
	"strings"

	"github.com/facebookresearch/Hanabi-SPARTA/card"
)

// PilesString renders the piles as e.g. "0r 2o 1y 0g 5b".
func PilesString(piles [card.NumColors]card.Value) string {
	parts := make([]string, card.NumColors)
	for c, v := range piles {
		parts[c] = fmt.Sprintf("%d%c", v, card.Color(c).Letter())
	}
	return strings.Join(parts, " ")
}

// ToDisplayText renders the view for a terminal. Hidden cards show their
// candidate count.
func (v *View) ToDisplayText() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Turn %d  Score %d  Hints %d/%d  Mistakes left %d  Deck %d\n",
		v.TurnNum, v.Score(), v.Hints, v.Rules.MaxHints, v.Mistakes, v.Deck)
	fmt.Fprintf(&sb, "Piles: %s\n", PilesString(v.Piles))
	fmt.Fprintf(&sb, "Discards: %s\n", v.Discards.String())
	for p := range v.HandIDs {
		marker := "  "
		if p == v.OnTurn && !v.Over {
			marker = "> "
		}
		fmt.Fprintf(&sb, "%sPlayer %d:", marker, p)
		for s := range v.HandIDs[p] {
			if p == v.Observer {
				fmt.Fprintf(&sb, " ??(%d)", v.Own[s].Len())
			} else {
				fmt.Fprintf(&sb, " %s(%d)", v.Hands[p][s], v.Public[p][s].Len())
			}
		}
		if p == v.Observer {
			sb.WriteString("  (you)")
		}
		sb.WriteString("\n")
	}
	if n := len(v.History); n > 0 {
		fmt.Fprintf(&sb, "Last: %s\n", v.History[n-1])
	}
	if v.Over {
		sb.WriteString("Game over.\n")
	}
	return sb.String()
}

// ToDisplayText renders the full, omniscient state.
func (g *Game) ToDisplayText() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Turn %d  Score %d  Hints %d/%d  Mistakes left %d  Deck %d\n",
		g.turnnum, g.Score(), g.hints, g.rules.MaxHints, g.mistakes, g.deckSize)
	fmt.Fprintf(&sb, "Piles: %s\n", PilesString(g.piles))
	for p := range g.hands {
		fmt.Fprintf(&sb, "Player %d: %s\n", p, card.CardsString(g.Hand(p)))
	}
	return sb.String()
}
