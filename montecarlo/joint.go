package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/facebookresearch/Hanabi-SPARTA/ai/turnplayer"
	"github.com/facebookresearch/Hanabi-SPARTA/cache"
	"github.com/facebookresearch/Hanabi-SPARTA/card"
	"github.com/facebookresearch/Hanabi-SPARTA/config"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
	"github.com/facebookresearch/Hanabi-SPARTA/rangefinder"
)

var ErrJointPlayers = errors.New("joint search is for two players")

// frame is a move made by a searching player whose meaning for the range of
// the other player has not been worked out yet. It holds what is needed to
// redo the mover's search for any hypothesis about the other hand.
type frame struct {
	turn    int
	from    int
	who     int
	move    move.Move
	view    *game.View
	handIDs []int
	bp      turnplayer.AITurnPlayer
	// fromRange is the public range of the mover, and comp the composition
	// it was drawn from.
	fromRange *rangefinder.Range
	comp      card.Composition
}

// JointSearchBot is a two-player search bot whose searches its partner can
// reproduce. Both players keep the same public ranges of both hands, and a
// player searches from its public range made private with the partner's
// hand, using a shared seed. The partner then learns from a searched move by
// redoing the search for every hand it might hold, and keeping the hands
// under which the search picks the move that was made.
//
// Redoing searches is only affordable for small ranges. A player whose last
// searched move has not been worked out yet plays the blueprint, which its
// partner can filter on directly.
type JointSearchBot struct {
	seat     int
	cfg      *config.Config
	bp       turnplayer.AITurnPlayer
	ranges   [2]*rangefinder.RangeFinder
	frames   [2][]*frame
	searcher *Searcher
	seed     uint64
	rangeMax int
	memoize  bool
	cache    *cache.Cache
	gameID   string
	inited   bool

	decisionLog io.Writer

	stats     BotStats
	blueprint int
	resolved  int
}

// NewJointSearchBot makes the bot for seat. c memoizes the checks of
// searched moves; it should be shared by both players of a game. If nil,
// the global cache is used.
func NewJointSearchBot(seat, numPlayers int, bp turnplayer.AITurnPlayer, cfg *config.Config,
	c *cache.Cache) (*JointSearchBot, error) {

	if numPlayers != 2 {
		return nil, fmt.Errorf("%w: got %d", ErrJointPlayers, numPlayers)
	}
	if !turnplayer.IsSeatAgnostic(bp) {
		return nil, fmt.Errorf("blueprint %s cannot play every seat", bp.Name())
	}
	p := ParamsFromConfig(cfg)
	p.Rollouts = cfg.GetInt(config.ConfigJointSearchN)
	// a deadline would make searches impossible to reproduce
	p.TimeBudget = 0
	p.DoubleSearch = false

	j := &JointSearchBot{
		seat:     seat,
		cfg:      cfg,
		bp:       bp,
		searcher: NewSearcher(p),
		seed:     uint64(cfg.GetInt64(config.ConfigJointSearchSeed)),
		rangeMax: cfg.GetInt(config.ConfigRangeMax),
		memoize:  cfg.GetBool(config.ConfigMemoizeRange),
		cache:    c,
	}
	for s := range j.ranges {
		rf := &rangefinder.RangeFinder{}
		rf.Init(s, rangefinder.ModePublic, cfg, j.seed+uint64(s))
		rf.SetMaxParticles(cfg.GetInt(config.ConfigRangeParticles))
		rf.SetPartnerUnc(0)
		j.ranges[s] = rf
	}
	return j, nil
}

func (j *JointSearchBot) Name() string { return "JointSearchBot" }

func (j *JointSearchBot) SetGameID(id string) { j.gameID = id }

func (j *JointSearchBot) SetDecisionLog(w io.Writer) { j.decisionLog = w }

func (j *JointSearchBot) Stats() BotStats { return j.stats }

func (j *JointSearchBot) Searcher() *Searcher { return j.searcher }

// PublicRange returns the public range of seat.
func (j *JointSearchBot) PublicRange(seat int) *rangefinder.RangeFinder {
	return j.ranges[seat]
}

// Pending returns the number of moves of seat not worked out yet.
func (j *JointSearchBot) Pending(seat int) int {
	return len(j.frames[seat])
}

func (j *JointSearchBot) BeliefSummary() string {
	return j.ranges[j.seat].AnalyzeInferences(false)
}

func (j *JointSearchBot) ensureInit(v *game.View) {
	if j.inited {
		return
	}
	for _, rf := range j.ranges {
		rf.Reset(v)
	}
	j.inited = true
}

func (j *JointSearchBot) ObserveMove(before *game.View, d game.Delta, after *game.View) {
	j.ensureInit(before)
	ctx := log.Logger.WithContext(context.Background())
	actor, who := d.Actor, 1-d.Actor

	var partner turnplayer.AITurnPlayer
	if len(j.frames[actor]) > 0 {
		// the actor was behind, so it played the blueprint
		partner = j.bp
	} else {
		j.frames[actor] = append(j.frames[actor], &frame{
			turn:      d.Turn,
			from:      actor,
			who:       who,
			move:      d.Move,
			view:      before,
			handIDs:   slices.Clone(before.HandIDs[who]),
			bp:        j.bp.Clone(),
			fromRange: j.ranges[actor].Range(),
			comp:      before.Unrevealed(),
		})
	}
	if err := j.ranges[who].Observe(ctx, before, d, after, partner); err != nil {
		log.Warn().Err(err).Int("seat", who).Int("turn", d.Turn).Msg("public-range-observe-failed")
		j.stats.warn(err)
	}
	if err := j.ranges[actor].Observe(ctx, before, d, after, nil); err != nil {
		log.Warn().Err(err).Int("seat", actor).Int("turn", d.Turn).Msg("public-range-observe-failed")
		j.stats.warn(err)
	}
	j.bp.ObserveMove(before, d, after)

	if !after.Over {
		j.resolveFrames(ctx, after, after.OnTurn)
	} else {
		log.Info().Int("seat", j.seat).Str("game", j.gameID).Int("searches", j.stats.Searches).
			Int("blueprint-moves", j.blueprint).Int("changed", j.stats.ChangedMoves).
			Int("frames-resolved", j.resolved).Msg("joint-search-bot-summary")
	}
}

// resolveFrames works out the pending moves of from, oldest first, for as
// long as the range they constrain is small enough.
func (j *JointSearchBot) resolveFrames(ctx context.Context, v *game.View, from int) {
	for len(j.frames[from]) > 0 {
		f := j.frames[from][0]
		ok, err := j.resolve(ctx, v, f)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Int("from", from).Int("turn", f.turn).Msg("frame-dropped")
			j.stats.warn(err)
		} else if !ok {
			return
		}
		j.frames[from] = j.frames[from][1:]
		j.resolved++
	}
}

func (j *JointSearchBot) resolve(ctx context.Context, v *game.View, f *frame) (bool, error) {
	played := map[int]card.Card{}
	for _, d := range v.History {
		if d.CardID >= 0 {
			played[d.CardID] = d.Card
		}
	}
	slotOf := map[int]int{}
	for slot, id := range v.HandIDs[f.who] {
		slotOf[id] = slot
	}
	// project a hand of now back to the hand of when the move was made
	project := func(hand []card.Card) []card.Card {
		out := make([]card.Card, len(f.handIDs))
		for i, id := range f.handIDs {
			if slot, ok := slotOf[id]; ok {
				out[i] = hand[slot]
			} else {
				out[i] = played[id]
			}
		}
		return out
	}

	rf := j.ranges[f.who]
	distinct := map[string][]card.Card{}
	for _, p := range rf.Particles() {
		h := project(p.Hand)
		distinct[card.CardsString(h)] = h
		if len(distinct) > j.rangeMax {
			return false, nil
		}
	}
	keys := make([]string, 0, len(distinct))
	for k := range distinct {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	consistent := make(map[string]bool, len(keys))
	for _, k := range keys {
		ok, err := j.check(ctx, f, distinct[k])
		if err != nil {
			return false, err
		}
		consistent[k] = ok
	}
	before := rf.Size()
	err := rf.Filter(v, func(hand []card.Card) bool {
		return consistent[card.CardsString(project(hand))]
	})
	zerolog.Ctx(ctx).Debug().Int("from", f.from).Int("turn", f.turn).Str("move", f.move.ShortDescription()).
		Int("hands", len(keys)).Int("before", before).Int("after", rf.Size()).Msg("frame-resolved")
	return true, err
}

// check redoes the search of f for the hypothesis that the other player
// held hand, and reports whether it picks the move that was made.
func (j *JointSearchBot) check(ctx context.Context, f *frame, hand []card.Card) (bool, error) {
	search := func(*config.Config, string) (interface{}, error) {
		hv, ok := rangefinder.HypotheticalView(f.view, f.who, hand, f.from)
		if !ok {
			return nil, fmt.Errorf("no view of seat %d from seat %d", f.from, f.view.Observer)
		}
		req := &Request{
			View:      hv,
			Blueprint: f.bp,
			Range:     f.fromRange.Privatize(hand, f.comp),
			Seed:      j.seed,
			Frame:     &f.move,
		}
		res, err := j.searcher.Search(ctx, req)
		if err != nil {
			return nil, err
		}
		return !res.FrameBailed && res.Move == f.move, nil
	}
	var obj interface{}
	var err error
	switch {
	case !j.memoize:
		obj, err = search(j.cfg, "")
	case j.cache != nil:
		obj, err = j.cache.Load(j.cfg, j.key(f, hand), search)
	default:
		obj, err = cache.Load(j.cfg, j.key(f, hand), search)
	}
	if err != nil {
		return false, err
	}
	return obj.(bool), nil
}

func (j *JointSearchBot) key(f *frame, hand []card.Card) string {
	return cache.Key("joint", j.gameID, f.from, f.move.Index(), card.CardsString(hand), f.view.History)
}

func (j *JointSearchBot) Decide(ctx context.Context, v *game.View) (move.Move, error) {
	j.ensureInit(v)
	j.resolveFrames(ctx, v, j.seat)
	if len(j.frames[j.seat]) > 0 {
		j.blueprint++
		return turnplayer.GenBestStaticTurn(ctx, j.bp.Clone(), v)
	}
	partner := 1 - j.seat
	// the same view the partner builds when it checks this move
	hv, _ := rangefinder.HypotheticalView(v, partner, v.Hands[partner], j.seat)
	req := &Request{
		View:      hv,
		Blueprint: j.bp,
		Range:     j.ranges[j.seat].Range().Privatize(v.Hands[partner], v.Unrevealed()),
		Seed:      j.seed,
	}
	res, err := j.searcher.Search(ctx, req)
	if err != nil {
		return move.Move{}, err
	}
	j.stats.Searches++
	j.stats.TotalIters += res.Iterations
	j.stats.warn(res.Warnings...)
	if res.Move != res.Blueprint {
		j.stats.ChangedMoves++
		j.stats.ScoreDifference += res.Stats(res.Move).Mean() - res.Stats(res.Blueprint).Mean()
	}
	if j.decisionLog != nil {
		io.WriteString(j.decisionLog, SearchLine(j.gameID, v.TurnNum, j.seat, res))
	}
	return res.Move, nil
}

func (j *JointSearchBot) Clone() turnplayer.AITurnPlayer {
	c := *j
	c.bp = j.bp.Clone()
	for s := range c.ranges {
		c.ranges[s] = j.ranges[s].Copy()
		c.frames[s] = slices.Clone(j.frames[s])
	}
	return &c
}
