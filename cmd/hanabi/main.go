// Command hanabi plays games between bots and prints a summary of the
// scores.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/facebookresearch/Hanabi-SPARTA/automatic"
	"github.com/facebookresearch/Hanabi-SPARTA/config"
	"github.com/facebookresearch/Hanabi-SPARTA/turnplayer"
)

func main() {
	cfg := config.DefaultConfig()
	if err := cfg.Load(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if cfg.GetBool(config.ConfigDebug) {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	logger := zerolog.New(output).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger
	log.Logger = logger
	log.Debug().Msgf("Loaded config: %v", cfg.SanitizedSettings())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := turnplayer.GameOptions{}
	opts.SetDefaults(cfg)
	games := cfg.GetInt(config.ConfigGames)
	seeds := automatic.SequentialSeeds(cfg.GetInt64(config.ConfigSeed), games)
	logFile := cfg.GetString(config.ConfigLogFile)

	start := time.Now()
	err := automatic.CompVsComp(ctx, cfg, opts, seeds, cfg.GetInt(config.ConfigThreads), logFile)
	if err != nil {
		log.Fatal().Err(err).Msg("games-failed")
	}
	log.Info().Dur("elapsed", time.Since(start)).Str("log", logFile).Msg("done")

	summary, err := automatic.AnalyzeLogFile(logFile)
	if err != nil {
		log.Fatal().Err(err).Msg("analyze-failed")
	}
	fmt.Print(summary)
}
