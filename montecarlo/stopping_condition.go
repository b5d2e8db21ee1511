package montecarlo

import (
	"math"
)

// Candidates with fewer samples than these are never pruned.
const (
	MinSamples         = 100
	BaselineMinSamples = 35
)

const (
	PruneStds         = 2.0
	BaselinePruneStds = 2.5
	unknownStderr     = 1e6
)

// use stats to figure out which candidates can't catch up.

func (sm *SimmedMove) stderr(minSamples int) float64 {
	if sm.scoreStats.Iterations() < minSamples {
		return unknownStderr
	}
	return sm.scoreStats.StandardError()
}

func (sm *SimmedMove) lcb() float64 {
	return sm.Value() - PruneStds*sm.stderr(MinSamples)
}

func (sm *SimmedMove) ucb() float64 {
	return sm.Value() + PruneStds*sm.stderr(MinSamples)
}

// prune marks the candidates that can't catch up with the best one and
// returns how many are left. The blueprint move is never pruned when
// outcomes are relative to it.
func (s *Searcher) prune(res *SearchResult, bpIdx int) int {
	live := 0
	for _, sm := range res.Moves {
		if !sm.pruned {
			live++
		}
	}
	if !s.params.UCB {
		return live
	}
	for i, sm := range res.Moves {
		if sm.pruned || (s.params.Baseline && i == bpIdx) {
			continue
		}
		if canPrune(res.Moves, i, s.params.Baseline) {
			sm.pruned = true
			live--
		}
	}
	return live
}

func canPrune(moves []*SimmedMove, i int, baseline bool) bool {
	this := moves[i]
	if baseline {
		// the difference of two means; the samples are paired, but
		// treat them as independent.
		var best *SimmedMove
		for _, sm := range moves {
			if !sm.pruned && (best == nil || sm.Value() > best.Value()) {
				best = sm
			}
		}
		e, ei := best.stderr(BaselineMinSamples), this.stderr(BaselineMinSamples)
		return best.Value()-this.Value()-BaselinePruneStds*math.Sqrt(e*e+ei*ei) > 0
	}
	var best *SimmedMove
	for _, sm := range moves {
		if best == nil || sm.lcb() > best.lcb() {
			best = sm
		}
	}
	return passTest(best.Value(), PruneStds*best.stderr(MinSamples),
		this.Value(), PruneStds*this.stderr(MinSamples))
}

// passTest: determine if a random variable X > Y with the given
// confidence level; return true if X > Y.
func passTest(μ, e, μi, ei float64) bool {
	// X > Y if (μ - e) > (μi + ei)
	return (μ - e) > (μi + ei)
}
