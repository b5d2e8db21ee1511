package rangefinder

import (
	"fmt"
	"strings"

	"github.com/facebookresearch/Hanabi-SPARTA/card"
)

// AnalyzeInferences compares how often each identity appears in the
// weighted hypotheses with how often it would appear in a hand dealt
// blindly from the pool.
func (r *RangeFinder) AnalyzeInferences(detailed bool) string {
	var found [card.NumIdentities]float64
	total := 0.0
	for _, p := range r.particles {
		for _, c := range p.Hand {
			found[c.Index()] += p.Weight
			total += p.Weight
		}
	}
	pool := r.lastComp
	inPool := pool.Total()
	if total == 0 || inPool == 0 {
		return "No inference details."
	}

	if detailed {
		var ss strings.Builder
		fmt.Fprintf(&ss, "%-6s%-12s%-12s%-10s\n", "Card", "Found %", "Expected %", "# unseen")
		for i := range card.NumIdentities {
			c := card.FromIndex(i)
			fmt.Fprintf(&ss, "%-6s%-12.3f%-12.3f%d\n", c,
				100.0*found[i]/total,
				100.0*float64(pool.Count(c))/float64(inPool),
				pool.Count(c))
		}
		fmt.Fprintf(&ss, "Checked %d hypotheses against the blueprint, %d remain\n",
			r.iterationCount, len(r.particles))
		return ss.String()
	}

	// From likelihood to unlikelihood (index 0 to 7)
	// Index 7 is not found at all.
	bins := [8][]card.Card{}
	for i := range card.NumIdentities {
		c := card.FromIndex(i)
		expected := float64(pool.Count(c)) / float64(inPool)
		if expected == 0 {
			bins[7] = append(bins[7], c)
			continue
		}
		ratio := (found[i] / total) / expected
		var bin int
		switch {
		case ratio == 0:
			bin = 7
		case ratio < 0.25:
			bin = 6
		case ratio < 0.75:
			bin = 5
		case ratio < 0.9:
			bin = 4
		case ratio < 1.1:
			bin = 3
		case ratio < 1.25:
			bin = 2
		case ratio < 2:
			bin = 1
		default:
			bin = 0
		}
		bins[bin] = append(bins[bin], c)
	}

	var ss strings.Builder
	labels := []string{
		"Way more than chance:",
		"More than chance:",
		"Slightly more than chance:",
		"About as expected:",
		"Slightly less than chance:",
		"Less than chance:",
		"Way less than chance:",
		"Unpossible:",
	}
	for i, l := range labels {
		ss.WriteString(l + "\n")
		ss.WriteString(card.CardsString(bins[i]))
		ss.WriteString("\n\n")
	}
	return ss.String()
}
