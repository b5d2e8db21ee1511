package montecarlo

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/matryer/is"
	"gopkg.in/yaml.v3"

	"github.com/facebookresearch/Hanabi-SPARTA/ai/heuristic"
	"github.com/facebookresearch/Hanabi-SPARTA/ai/turnplayer"
	"github.com/facebookresearch/Hanabi-SPARTA/cache"
	"github.com/facebookresearch/Hanabi-SPARTA/card"
	"github.com/facebookresearch/Hanabi-SPARTA/config"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/rangefinder"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Set(config.ConfigSearchN, 400)
	cfg.Set(config.ConfigSearchDepth, 6)
	cfg.Set(config.ConfigRangeParticles, 100)
	cfg.Set(config.ConfigThreads, 3)
	return cfg
}

// playSeats plays a game with one bot per seat. Every bot observes every
// move through its own views.
func playSeats(t *testing.T, g *game.Game, bots []turnplayer.AITurnPlayer) {
	is := is.New(t)
	ctx := context.Background()
	for turns := 0; !g.IsOver(); turns++ {
		is.True(turns < 200)
		p := g.PlayerOnTurn()
		before := make([]*game.View, len(bots))
		for s := range bots {
			before[s] = g.ViewFor(s)
		}
		m, err := bots[p].Decide(ctx, before[p])
		is.NoErr(err)
		is.NoErr(game.Validate(before[p], p, m))
		d, err := g.ApplyMove(m)
		is.NoErr(err)
		for s, b := range bots {
			b.ObserveMove(before[s], d, g.ViewFor(s))
		}
	}
}

// advance plays n turns of the blueprint and returns the view of the
// player on turn.
func advance(t *testing.T, g *game.Game, n int) *game.View {
	is := is.New(t)
	bp := heuristic.NewSmartBot()
	ctx := context.Background()
	for range n {
		v := g.ViewFor(g.PlayerOnTurn())
		m, err := turnplayer.GenBestStaticTurn(ctx, bp, v)
		is.NoErr(err)
		d, err := g.ApplyMove(m)
		is.NoErr(err)
		bp.ObserveMove(v, d, g.ViewFor(g.PlayerOnTurn()))
	}
	return g.ViewFor(g.PlayerOnTurn())
}

// blueprintAt replays the game so far into a fresh blueprint.
func blueprintAt(t *testing.T, g *game.Game) turnplayer.AITurnPlayer {
	is := is.New(t)
	bp := heuristic.NewSmartBot()
	replay, err := game.Start(g.Seed(), g.NumPlayers())
	is.NoErr(err)
	for _, d := range g.History() {
		v := replay.ViewFor(replay.PlayerOnTurn())
		dd, err := replay.ApplyMove(d.Move)
		is.NoErr(err)
		bp.ObserveMove(v, dd, replay.ViewFor(replay.PlayerOnTurn()))
	}
	return bp
}

func privateRange(v *game.View, cfg *config.Config) *rangefinder.Range {
	rf := &rangefinder.RangeFinder{}
	rf.Init(v.Observer, rangefinder.ModePrivate, cfg, 99)
	rf.Reset(v)
	return rf.Range()
}

func searchRequest(t *testing.T, seed int64, turns int) (*Request, *config.Config) {
	is := is.New(t)
	g, err := game.Start(seed, 2)
	is.NoErr(err)
	v := advance(t, g, turns)
	cfg := testConfig()
	return &Request{View: v, Blueprint: blueprintAt(t, g), Range: privateRange(v, cfg), Seed: 1}, cfg
}

func TestSearchIsReproducible(t *testing.T) {
	is := is.New(t)
	req, cfg := searchRequest(t, 3, 4)
	s := NewSearcher(ParamsFromConfig(cfg))
	ctx := context.Background()

	r1, err := s.Search(ctx, req)
	is.NoErr(err)
	r2, err := s.Search(ctx, req)
	is.NoErr(err)
	is.Equal(r1.Move, r2.Move)
	is.Equal(r1.Iterations, r2.Iterations)
	is.True(r1.Iterations > 0)
	for i, sm := range r1.Moves {
		is.Equal(sm.Mean(), r2.Moves[i].Mean())
		is.Equal(sm.Pruned(), r2.Moves[i].Pruned())
	}
	is.Equal(s.Iterations(), r1.Iterations+r2.Iterations)
}

func TestSearchHeadStartKeepsBlueprint(t *testing.T) {
	is := is.New(t)
	req, cfg := searchRequest(t, 8, 2)
	p := ParamsFromConfig(cfg)
	p.Thresh = 100
	res, err := NewSearcher(p).Search(context.Background(), req)
	is.NoErr(err)
	is.Equal(res.Move, res.Blueprint)
	is.True(res.Stats(res.Blueprint) != nil)
}

func TestSearchScoresAreInRange(t *testing.T) {
	is := is.New(t)
	req, cfg := searchRequest(t, 11, 6)
	p := ParamsFromConfig(cfg)
	p.Depth = 0
	p.UCB = false
	res, err := NewSearcher(p).Search(context.Background(), req)
	is.NoErr(err)
	rounds := max(1, p.Rollouts/len(res.Moves))
	for _, sm := range res.Moves {
		is.Equal(sm.Iterations(), rounds)
		is.True(sm.Mean() >= 0 && sm.Mean() <= card.MaxScore)
		is.True(sm.WinRate() >= 0 && sm.WinRate() <= 1)
		is.True(!sm.Pruned())
	}
	is.Equal(res.Iterations, rounds*len(res.Moves))
}

func TestSearchBaselineZeroForBlueprint(t *testing.T) {
	is := is.New(t)
	req, cfg := searchRequest(t, 12, 3)
	p := ParamsFromConfig(cfg)
	p.Baseline = true
	res, err := NewSearcher(p).Search(context.Background(), req)
	is.NoErr(err)
	bp := res.Stats(res.Blueprint)
	is.Equal(bp.Mean(), 0.0)
	is.True(!bp.Pruned())
}

func TestSearchNotOnTurn(t *testing.T) {
	is := is.New(t)
	req, cfg := searchRequest(t, 3, 0)
	g, err := game.Start(3, 2)
	is.NoErr(err)
	req.View = g.ViewFor(1)
	_, err = NewSearcher(ParamsFromConfig(cfg)).Search(context.Background(), req)
	is.True(errors.Is(err, ErrNotOnTurn))
}

func TestSearchWithoutRangeFallsBack(t *testing.T) {
	is := is.New(t)
	req, cfg := searchRequest(t, 5, 2)
	req.Range = rangefinder.NewRange(nil, nil)
	res, err := NewSearcher(ParamsFromConfig(cfg)).Search(context.Background(), req)
	is.NoErr(err)
	is.Equal(res.Move, res.Blueprint)
	is.Equal(res.Iterations, 0)
	is.Equal(len(res.Warnings), 1)
	is.True(errors.Is(res.Warnings[0], ErrSamplingExhausted))
}

func TestSearchOutOfTime(t *testing.T) {
	is := is.New(t)
	req, cfg := searchRequest(t, 5, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := NewSearcher(ParamsFromConfig(cfg)).Search(ctx, req)
	is.NoErr(err)
	is.True(res.BudgetExceeded)
	is.Equal(res.Move, res.Blueprint)
}

func TestDealDeck(t *testing.T) {
	is := is.New(t)
	req, _ := searchRequest(t, 21, 5)
	v := req.View
	hand := req.Range.Hand(0)
	deck, err := dealDeck(v, hand, rand.New(rand.NewPCG(1, 2)))
	is.NoErr(err)
	is.Equal(len(deck), v.Deck)
	var comp card.Composition
	for _, c := range append(deck, hand...) {
		comp.Add(c)
	}
	is.Equal(comp, v.Unseen())

	// a hand asking for a card that is all in sight
	bad := slices.Clone(hand)
	bad[0] = v.Hands[1-v.Observer][0]
	for _, c := range v.Hands[1-v.Observer] {
		if v.Unseen().Count(c) == 0 {
			bad[0] = c
		}
	}
	if v.Unseen().Count(bad[0]) == 0 {
		_, err = dealDeck(v, bad, rand.New(rand.NewPCG(1, 2)))
		is.True(errors.Is(err, ErrSamplingExhausted))
	}
}

func TestLogStreamAndSearchLine(t *testing.T) {
	is := is.New(t)
	req, cfg := searchRequest(t, 4, 3)
	p := ParamsFromConfig(cfg)
	p.Rollouts = 60
	s := NewSearcher(p)
	var buf bytes.Buffer
	s.SetLogStream(&buf)
	res, err := s.Search(context.Background(), req)
	is.NoErr(err)

	var logged []LogIteration
	is.NoErr(yaml.Unmarshal(buf.Bytes(), &logged))
	is.Equal(len(logged), max(1, p.Rollouts/len(res.Moves)))
	is.Equal(logged[0].Iteration, 0)
	is.True(len(logged[0].Moves) > 0)

	line := SearchLine("g1", req.View.TurnNum, req.View.Observer, res)
	fields := strings.Split(strings.TrimSpace(line), ",")
	is.Equal(len(fields), 10)
	is.Equal(fields[0], "search")
	is.Equal(fields[1], "g1")
	is.Equal(fields[4], res.Blueprint.ShortDescription())
}

func TestSearchBotPlaysAGame(t *testing.T) {
	is := is.New(t)
	cfg := testConfig()
	cfg.Set(config.ConfigSearchN, 150)
	cfg.Set(config.ConfigCheckBeliefs, true)
	g, err := game.Start(31, 2)
	is.NoErr(err)
	sb, err := NewSearchBot(0, heuristic.NewSmartBot(), cfg, 5)
	is.NoErr(err)
	sb.SetTrueHand(func() []card.Card { return g.Hand(0) })
	var log bytes.Buffer
	sb.SetDecisionLog(&log)
	playSeats(t, g, []turnplayer.AITurnPlayer{sb, heuristic.NewSmartBot()})

	is.True(g.IsOver())
	st := sb.Stats()
	is.True(st.Searches > 0)
	is.Equal(strings.Count(log.String(), "\n"), st.Searches)
	is.True(st.ChangedMoves <= st.Searches)
}

func TestSearchBotNeedsSeatAgnosticBlueprint(t *testing.T) {
	is := is.New(t)
	cfg := testConfig()
	sb, err := NewSearchBot(0, heuristic.NewSmartBot(), cfg, 1)
	is.NoErr(err)
	_, err = NewSearchBot(1, sb, cfg, 1)
	is.True(err != nil)
}

func jointConfig() *config.Config {
	cfg := testConfig()
	cfg.Set(config.ConfigRangeParticles, 40)
	cfg.Set(config.ConfigRangeMax, 12)
	cfg.Set(config.ConfigJointSearchN, 40)
	cfg.Set(config.ConfigSearchDepth, 4)
	return cfg
}

func TestJointSearchBotsShareRanges(t *testing.T) {
	is := is.New(t)
	cfg := jointConfig()
	c := cache.New()
	g, err := game.Start(2, 2)
	is.NoErr(err)
	j0, err := NewJointSearchBot(0, 2, heuristic.NewSmartBot(), cfg, c)
	is.NoErr(err)
	j1, err := NewJointSearchBot(1, 2, heuristic.NewSmartBot(), cfg, c)
	is.NoErr(err)
	playSeats(t, g, []turnplayer.AITurnPlayer{j0, j1})

	is.True(g.IsOver())
	for s := range 2 {
		p0, p1 := j0.PublicRange(s).Particles(), j1.PublicRange(s).Particles()
		is.Equal(len(p0), len(p1))
		for i := range p0 {
			is.Equal(p0[i].Hand, p1[i].Hand)
			is.Equal(p0[i].Weight, p1[i].Weight)
		}
		is.Equal(j0.Pending(s), j1.Pending(s))
	}
}

func TestJointSearchBotNeedsTwoPlayers(t *testing.T) {
	is := is.New(t)
	_, err := NewJointSearchBot(0, 3, heuristic.NewSmartBot(), jointConfig(), nil)
	is.True(errors.Is(err, ErrJointPlayers))
}

func TestSearchBotKeepsTrueHandWhileExact(t *testing.T) {
	is := is.New(t)
	cfg := testConfig()
	cfg.Set(config.ConfigSearchN, 100)
	cfg.Set(config.ConfigPartnerUniformUnc, 1.0)
	cfg.Set(config.ConfigRangeParticles, 3000)
	g, err := game.Start(13, 2)
	is.NoErr(err)
	sb, err := NewSearchBot(0, heuristic.NewSmartBot(), cfg, 13)
	is.NoErr(err)
	bots := []turnplayer.AITurnPlayer{sb, heuristic.NewSmartBot()}
	ctx := context.Background()
	for turns := 0; !g.IsOver(); turns++ {
		is.True(turns < 200)
		p := g.PlayerOnTurn()
		before := []*game.View{g.ViewFor(0), g.ViewFor(1)}
		m, err := bots[p].Decide(ctx, before[p])
		is.NoErr(err)
		d, err := g.ApplyMove(m)
		is.NoErr(err)
		for s, b := range bots {
			b.ObserveMove(before[s], d, g.ViewFor(s))
		}
		if rf := sb.RangeFinder(); rf.Exact() {
			is.True(rf.Contains(g.Hand(0)))
		}
	}
	is.Equal(sb.Stats().Warnings, 0)
	is.Equal(sb.Stats().LastWarning, nil)
}

func TestSearchBotMatchesBlueprint(t *testing.T) {
	if testing.Short() {
		t.Skip("plays whole games with full-depth rollouts")
	}
	is := is.New(t)
	cfg := testConfig()
	cfg.Set(config.ConfigSearchN, 300)
	cfg.Set(config.ConfigSearchDepth, 0)
	cfg.Set(config.ConfigSearchThresh, 0.5)
	cfg.Set(config.ConfigRangeParticles, 300)
	cfg.Set(config.ConfigThreads, 4)

	const games = 5
	searched, blueprint := 0, 0
	for seed := int64(1); seed <= games; seed++ {
		g, err := game.Start(seed, 2)
		is.NoErr(err)
		sb, err := NewSearchBot(0, heuristic.NewSmartBot(), cfg, uint64(seed))
		is.NoErr(err)
		playSeats(t, g, []turnplayer.AITurnPlayer{sb, heuristic.NewSmartBot()})
		searched += g.Score()

		g, err = game.Start(seed, 2)
		is.NoErr(err)
		playSeats(t, g, []turnplayer.AITurnPlayer{heuristic.NewSmartBot(), heuristic.NewSmartBot()})
		blueprint += g.Score()
	}
	t.Logf("search %d, blueprint %d over %d games", searched, blueprint, games)
	// no more than a point a game behind, sampling noise included
	is.True(searched >= blueprint-games)
}
