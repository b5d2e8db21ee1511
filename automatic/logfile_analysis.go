package automatic

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/aybabtme/uniplot/histogram"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/facebookresearch/Hanabi-SPARTA/stats"
)

// LogSummary is what AnalyzeLog finds in a game log.
type LogSummary struct {
	Games   int
	Perfect int
	Bombed  int
	Scores  []float64
	Score   stats.Statistic
	// ByBot holds the scores of each bot line-up.
	ByBot map[string]*stats.Statistic

	Searches     int
	ChangedMoves int
	// Difference is the expected gain of a search decision over the
	// blueprint.
	Difference stats.Statistic
	Rollouts   stats.Statistic
}

// AnalyzeLog reads a game log: the game header, game lines and search
// lines in any order.
func AnalyzeLog(r io.Reader) (*LogSummary, error) {
	cr := csv.NewReader(r)
	// game lines and search lines have different lengths
	cr.FieldsPerRecord = -1
	cr.Comment = '#'

	sum := &LogSummary{ByBot: map[string]*stats.Statistic{}}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch {
		case record[0] == "gameID":
			// this is the header line
			continue
		case record[0] == "search":
			if err := sum.addSearch(record); err != nil {
				line, _ := cr.FieldPos(0)
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		default:
			if err := sum.addGame(record); err != nil {
				line, _ := cr.FieldPos(0)
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
	}
	return sum, nil
}

func (s *LogSummary) addGame(record []string) error {
	if len(record) != 10 {
		return fmt.Errorf("game line has %d fields, expected 10", len(record))
	}
	score, err := strconv.Atoi(record[4])
	if err != nil {
		return err
	}
	bombed, err := strconv.ParseBool(record[9])
	if err != nil {
		return err
	}
	s.Games++
	s.Scores = append(s.Scores, float64(score))
	s.Score.Push(float64(score))
	if score == 25 {
		s.Perfect++
	}
	if bombed {
		s.Bombed++
	}
	st, ok := s.ByBot[record[3]]
	if !ok {
		st = &stats.Statistic{}
		s.ByBot[record[3]] = st
	}
	st.Push(float64(score))
	return nil
}

func (s *LogSummary) addSearch(record []string) error {
	if len(record) != 10 {
		return fmt.Errorf("search line has %d fields, expected 10", len(record))
	}
	diff, err := strconv.ParseFloat(record[8], 64)
	if err != nil {
		return err
	}
	iters, err := strconv.Atoi(record[9])
	if err != nil {
		return err
	}
	s.Searches++
	if record[4] != record[6] {
		s.ChangedMoves++
	}
	s.Difference.Push(diff)
	s.Rollouts.Push(float64(iters))
	return nil
}

// AnalyzeLogFile analyzes the given game log file and spits out a bunch of
// statistics.
func AnalyzeLogFile(filepath string) (string, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	sum, err := AnalyzeLog(file)
	if err != nil {
		return "", err
	}
	return sum.String(), nil
}

func (s *LogSummary) String() string {
	if s.Games == 0 && s.Searches == 0 {
		return "No games in log.\n"
	}
	p := message.NewPrinter(language.English)
	var sb strings.Builder
	pct := func(n, of int) float64 {
		if of == 0 {
			return 0
		}
		return 100.0 * float64(n) / float64(of)
	}

	p.Fprintf(&sb, "Games played: %d\n", s.Games)
	if s.Games > 0 {
		p.Fprintf(&sb, "Mean score: %.3f +/- %.3f (95%%)  Stdev: %.3f\n",
			s.Score.Mean(), stats.Z95*s.Score.StandardError(), s.Score.Stdev())
		p.Fprintf(&sb, "Perfect games: %d (%.2f%%)\n", s.Perfect, pct(s.Perfect, s.Games))
		p.Fprintf(&sb, "Bombed games: %d (%.2f%%)\n", s.Bombed, pct(s.Bombed, s.Games))
		if len(s.ByBot) > 1 {
			bots := make([]string, 0, len(s.ByBot))
			for b := range s.ByBot {
				bots = append(bots, b)
			}
			sort.Strings(bots)
			for _, b := range bots {
				st := s.ByBot[b]
				p.Fprintf(&sb, "  %s: %d games, mean %.3f +/- %.3f\n", b, st.Iterations(),
					st.Mean(), stats.Z95*st.StandardError())
			}
		}
		sb.WriteString("Score distribution:\n")
		h := histogram.Hist(min(26, s.Games), s.Scores)
		if err := histogram.Fprint(&sb, h, histogram.Linear(40)); err != nil {
			p.Fprintf(&sb, "(no histogram: %v)\n", err)
		}
	}
	if s.Searches > 0 {
		p.Fprintf(&sb, "Searches: %d, changed moves: %d (%.2f%%)\n", s.Searches,
			s.ChangedMoves, pct(s.ChangedMoves, s.Searches))
		p.Fprintf(&sb, "Mean search difference: %.4f +/- %.4f (95%%)\n",
			s.Difference.Mean(), stats.Z95*s.Difference.StandardError())
		p.Fprintf(&sb, "Mean rollouts per search: %.0f\n", s.Rollouts.Mean())
	}
	return sb.String()
}
