// Command analyze summarizes game logs written by the hanabi command or the
// shell's autoplay.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/facebookresearch/Hanabi-SPARTA/automatic"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: analyze <game log>...")
		os.Exit(2)
	}
	for _, path := range os.Args[1:] {
		out, err := automatic.AnalyzeLogFile(path)
		if err != nil {
			log.Fatal().Err(err).Str("file", path).Msg("analyze-failed")
		}
		if len(os.Args) > 2 {
			fmt.Printf("== %s\n", path)
		}
		fmt.Print(out)
	}
}
