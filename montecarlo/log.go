package montecarlo

import (
	"fmt"
)

// SearchLine formats one search decision as a CSV record for the game
// log:
//
//	search,<game>,<turn>,<player>,<bp move>,<bp mean>,<move>,<mean>,<difference>,<rollouts>
func SearchLine(gameID string, turn, player int, res *SearchResult) string {
	var bpMean, mean float64
	if sm := res.Stats(res.Blueprint); sm != nil {
		bpMean = sm.Mean()
	}
	if sm := res.Stats(res.Move); sm != nil {
		mean = sm.Mean()
	}
	return fmt.Sprintf("search,%s,%d,%d,%s,%.3f,%s,%.3f,%.3f,%d\n", gameID, turn, player,
		res.Blueprint.ShortDescription(), bpMean, res.Move.ShortDescription(), mean,
		mean-bpMean, res.Iterations)
}
