package game

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/matryer/is"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facebookresearch/Hanabi-SPARTA/belief"
	"github.com/facebookresearch/Hanabi-SPARTA/card"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

func randomLegalMove(g *Game, r *rand.Rand) move.Move {
	legal := LegalMoves(g)
	return legal[r.Intn(len(legal))]
}

func TestNewGame(t *testing.T) {
	is := is.New(t)
	g, err := Start(42, 2)
	is.NoErr(err)
	is.Equal(g.HandSize(0), 5)
	is.Equal(g.HandSize(1), 5)
	is.Equal(g.DeckRemaining(), 40)
	is.Equal(g.HintStones(), 8)
	is.Equal(g.MistakesRemaining(), 3)
	is.Equal(g.PlayerOnTurn(), 0)
	is.True(!g.IsOver())

	g4, err := Start(42, 4)
	is.NoErr(err)
	is.Equal(g4.HandSize(3), 4)
	is.Equal(g4.DeckRemaining(), 34)
}

func TestBadRules(t *testing.T) {
	is := is.New(t)
	_, err := Start(1, 1)
	is.True(errors.Is(err, ErrBadRules))
	_, err = Start(1, 6)
	is.True(errors.Is(err, ErrBadRules))
}

func TestIllegalMoves(t *testing.T) {
	g, err := Start(42, 3)
	require.NoError(t, err)
	c0, _ := g.CardAt(1, 0)

	absent := card.Color(-1)
	for c := range card.NumColors {
		found := false
		for _, hc := range g.Hand(1) {
			if hc.Color == card.Color(c) {
				found = true
			}
		}
		if !found {
			absent = card.Color(c)
			break
		}
	}

	type tc struct {
		name   string
		player int
		m      move.Move
		reason IllegalReason
	}
	cases := []tc{
		{"wrong player", 1, move.NewPlayMove(0), ReasonWrongPlayer},
		{"slot too high", 0, move.NewPlayMove(5), ReasonSlotOutOfRange},
		{"negative slot", 0, move.NewPlayMove(-1), ReasonSlotOutOfRange},
		{"discard at max hints", 0, move.NewDiscardMove(0), ReasonDiscardAtMaxHints},
		{"hint self", 0, move.NewValueHintMove(0, 1), ReasonHintSelf},
		{"no such player", 0, move.NewValueHintMove(3, 1), ReasonBadTarget},
		{"bad value", 0, move.NewValueHintMove(1, 6), ReasonBadHintValue},
	}
	if absent >= 0 {
		cases = append(cases, tc{"empty hint", 0, move.NewColorHintMove(1, absent), ReasonEmptyHint})
	}
	before := g.ViewFor(0)
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := g.ApplyMoveAs(c.player, c.m)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrIllegalMove))
			var ime *IllegalMoveError
			require.True(t, errors.As(err, &ime))
			assert.Equal(t, c.reason, ime.Reason)
		})
	}
	// rejected moves never touch the state
	assert.Equal(t, before, g.ViewFor(0))

	_, err = g.ApplyMove(move.NewValueHintMove(1, c0.Value))
	assert.NoError(t, err)
}

func TestColorHintCollapsesBelief(t *testing.T) {
	is := is.New(t)
	g, err := Start(42, 2)
	is.NoErr(err)
	hinted := g.Hand(1)[0].Color
	d, err := g.ApplyMove(move.NewColorHintMove(1, hinted))
	is.NoErr(err)
	is.True(len(d.Touched) > 0)
	is.Equal(g.HintStones(), 7)

	v := g.ViewFor(1)
	mask := belief.ColorMask(hinted)
	for s, c := range g.Hand(1) {
		cands := v.Own[s]
		is.True(cands.Has(c))
		if c.Color == hinted {
			is.Equal(cands&^mask, belief.Set(0))
		} else {
			is.Equal(cands&mask, belief.Set(0))
		}
	}
	// the hinter sees the cards themselves
	v0 := g.ViewFor(0)
	for s, c := range g.Hand(1) {
		vc, ok := v0.CardAt(1, s)
		is.True(ok)
		is.Equal(vc, c)
	}
	_, ok := v0.CardAt(0, 0)
	is.True(!ok)
}

func findMisplay(g *Game, p int) int {
	piles := g.Piles()
	for s, c := range g.Hand(p) {
		if piles[c.Color]+1 != c.Value {
			return s
		}
	}
	return -1
}

func TestMistakeLimitEndsGame(t *testing.T) {
	g, err := Start(42, 2)
	require.NoError(t, err)
	for !g.IsOver() {
		p := g.PlayerOnTurn()
		var m move.Move
		if s := findMisplay(g, p); s >= 0 {
			m = move.NewPlayMove(s)
		} else if g.HintStones() < g.MaxHintStones() {
			m = move.NewDiscardMove(0)
		} else {
			m = LegalMoves(g)[len(LegalMoves(g))-1]
		}
		_, err := g.ApplyMove(m)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, g.MistakesRemaining())
	assert.True(t, g.DeckRemaining() > 0)

	_, err = g.ApplyMove(move.NewPlayMove(0))
	assert.True(t, errors.Is(err, ErrProtocolViolation))
	_, err = g.ApplyMove(move.NewValueHintMove(1, 1))
	assert.True(t, errors.Is(err, ErrProtocolViolation))
}

func TestBombScoring(t *testing.T) {
	is := is.New(t)
	r := &Rules{NumPlayers: 2, BombD: 1}
	is.Equal(scoreOf(r, 10, 1), 10)
	is.Equal(scoreOf(r, 10, 0), 9)
	is.Equal(scoreOf(r, 0, 0), 0)
	r.Bomb0 = true
	is.Equal(scoreOf(r, 10, 0), 0)
}

func TestDeckExhaustedOneMoreTurnEach(t *testing.T) {
	for _, players := range []int{2, 3, 5} {
		g, err := Start(7, players)
		require.NoError(t, err)
		emptiedAt := -1
		var afterEmpty []int
		for !g.IsOver() {
			var m move.Move
			if g.HintStones() < g.MaxHintStones() && g.HandSize(g.PlayerOnTurn()) > 0 {
				m = move.NewDiscardMove(0)
			} else {
				m = LegalMoves(g)[len(LegalMoves(g))-1]
				require.True(t, m.IsHint())
			}
			d, err := g.ApplyMove(m)
			require.NoError(t, err)
			if emptiedAt >= 0 {
				afterEmpty = append(afterEmpty, d.Actor)
			}
			if emptiedAt < 0 && g.DeckRemaining() == 0 {
				emptiedAt = d.Turn
			}
		}
		require.True(t, emptiedAt >= 0)
		assert.Len(t, afterEmpty, players)
		seen := map[int]bool{}
		for _, a := range afterEmpty {
			seen[a] = true
		}
		assert.Len(t, seen, players)
		assert.True(t, g.MistakesRemaining() > 0)
		assert.True(t, g.HintStones() > 0)
	}
}

func TestValidatorRejectsHintsWithoutStones(t *testing.T) {
	is := is.New(t)
	for seed := int64(0); seed < 20; seed++ {
		r := rand.New(rand.NewSource(seed))
		g, err := Start(seed, 2+int(seed%4))
		is.NoErr(err)
		for !g.IsOver() {
			if g.HintStones() == 0 {
				for _, m := range AllMoves(g) {
					if !m.IsHint() {
						continue
					}
					err := Validate(g, g.PlayerOnTurn(), m)
					var ime *IllegalMoveError
					is.True(errors.As(err, &ime))
					is.Equal(ime.Reason, ReasonNoHintStones)
				}
			}
			// hints are favored so the stones run out often
			legal := LegalMoves(g)
			m := legal[r.Intn(len(legal))]
			for _, c := range legal {
				if c.IsHint() && r.Intn(2) == 0 {
					m = c
					break
				}
			}
			_, err := g.ApplyMove(m)
			is.NoErr(err)
		}
	}
}

func TestBeliefContainsTrueIdentity(t *testing.T) {
	is := is.New(t)
	for seed := int64(0); seed < 30; seed++ {
		r := rand.New(rand.NewSource(seed))
		g, err := Start(seed, 2+int(seed%4))
		is.NoErr(err)
		tr := g.Tracker()
		for !g.IsOver() {
			_, err := g.ApplyMove(randomLegalMove(g, r))
			is.NoErr(err)
			for o := 0; o < tr.NumObservers(); o++ {
				for p := range g.NumPlayers() {
					for s, id := range g.hands[p] {
						c, _ := g.CardAt(p, s)
						is.True(tr.CandidatesFor(o, id).Has(c))
					}
				}
			}
		}
	}
}

func TestDeductionMatchesFromScratch(t *testing.T) {
	is := is.New(t)
	for seed := int64(100); seed < 130; seed++ {
		r := rand.New(rand.NewSource(seed))
		g, err := Start(seed, 2+int(seed%4))
		is.NoErr(err)
		for !g.IsOver() {
			_, err := g.ApplyMove(randomLegalMove(g, r))
			is.NoErr(err)
			for p := range g.NumPlayers() {
				v := g.ViewFor(p)
				is.Equal(belief.Deduce(v.Hinted[p], v.Visible()), v.Own)
				// another seat rebuilding p's view from the truth agrees
				other := (p + 1) % g.NumPlayers()
				w := g.ViewFor(other).ViewAs(p, g.Hand(other))
				is.Equal(w.Own, v.Own)
			}
		}
	}
}

func TestReplayIsDeterministic(t *testing.T) {
	is := is.New(t)
	for seed := int64(0); seed < 10; seed++ {
		r := rand.New(rand.NewSource(seed + 1000))
		players := 2 + int(seed%4)
		g, err := Start(seed, players)
		is.NoErr(err)
		for !g.IsOver() {
			_, err := g.ApplyMove(randomLegalMove(g, r))
			is.NoErr(err)
		}
		moves := HistoryMoves(g.History())

		h, err := Start(seed, players)
		is.NoErr(err)
		for i, m := range moves {
			d, err := h.ApplyMove(m)
			is.NoErr(err)
			is.Equal(d, g.History()[i])
		}
		for p := range players {
			is.Equal(h.ViewFor(p), g.ViewFor(p))
		}
		is.Equal(h.Score(), g.Score())

		rules, _ := NewRules(players)
		k, err := Replay(rules, seed, moves)
		is.NoErr(err)
		is.Equal(k.Score(), g.Score())
		is.True(k.IsOver())
	}
}

func TestCopyIsIndependent(t *testing.T) {
	is := is.New(t)
	g, err := Start(3, 3)
	is.NoErr(err)
	before := g.ViewFor(0)
	c := g.Copy()
	r := rand.New(rand.NewSource(3))
	for !c.IsOver() {
		_, err := c.ApplyMove(randomLegalMove(c, r))
		is.NoErr(err)
	}
	is.Equal(g.ViewFor(0), before)
	is.Equal(len(g.History()), 0)
}

func TestNewFromViewMatchesTruth(t *testing.T) {
	is := is.New(t)
	r := rand.New(rand.NewSource(11))
	g, err := Start(11, 3)
	is.NoErr(err)
	for range 12 {
		_, err := g.ApplyMove(randomLegalMove(g, r))
		is.NoErr(err)
	}
	v := g.ViewFor(g.PlayerOnTurn())
	deck := append([]card.Card(nil), g.cards[:g.deckSize]...)
	sim, err := NewFromView(v, g.Hand(v.Observer), deck)
	is.NoErr(err)
	for p := range 3 {
		is.Equal(sim.ViewFor(p), g.ViewFor(p))
	}
	for !g.IsOver() {
		m := randomLegalMove(g, r)
		d1, err := g.ApplyMove(m)
		is.NoErr(err)
		d2, err := sim.ApplyMove(m)
		is.NoErr(err)
		is.Equal(d1, d2)
	}
	is.Equal(sim.Score(), g.Score())
	is.True(sim.IsOver())

	_, err = NewFromView(v, nil, deck)
	is.True(errors.Is(err, ErrBadDeal))
}
