package automatic

// Data collection for automatic games. Computer vs computer games, etc.

import (
	"bufio"
	"context"
	"errors"
	"expvar"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/facebookresearch/Hanabi-SPARTA/config"
	"github.com/facebookresearch/Hanabi-SPARTA/turnplayer"
)

var (
	CVCCounter *expvar.Int
	IsPlaying  *expvar.Int
)

var ErrAlreadyPlaying = errors.New("games are already being played, please wait till complete")

// playing is held while a batch of games runs.
var playing sync.Mutex

func init() {
	CVCCounter = expvar.NewInt("cvcCounter")
	IsPlaying = expvar.NewInt("isPlaying")
}

// CompVsComp plays a game per seed on threads runners and writes the game
// log to outputFilename. It returns once every game is logged, or ctx is
// done.
func CompVsComp(ctx context.Context, cfg *config.Config, opts turnplayer.GameOptions,
	seeds []int64, threads int, outputFilename string) error {

	if !playing.TryLock() {
		return ErrAlreadyPlaying
	}
	defer playing.Unlock()
	return compVsComp(ctx, cfg, opts, seeds, threads, outputFilename)
}

// StartCompVCompGames is CompVsComp in the background, with the game count,
// first seed and thread count taken from the config.
func StartCompVCompGames(ctx context.Context, cfg *config.Config, opts turnplayer.GameOptions,
	outputFilename string) error {

	if !playing.TryLock() {
		return ErrAlreadyPlaying
	}
	seeds := SequentialSeeds(cfg.GetInt64(config.ConfigSeed), cfg.GetInt(config.ConfigGames))
	go func() {
		defer playing.Unlock()
		err := compVsComp(ctx, cfg, opts, seeds, cfg.GetInt(config.ConfigThreads), outputFilename)
		if err != nil {
			log.Err(err).Msg("autoplay-failed")
		}
	}()
	return nil
}

func compVsComp(ctx context.Context, cfg *config.Config, opts turnplayer.GameOptions,
	seeds []int64, threads int, outputFilename string) error {

	logfile, err := os.Create(outputFilename)
	if err != nil {
		return err
	}
	var iterLog *lockedWriter
	if f := cfg.GetString(config.ConfigSearchLog); f != "" {
		sl, err := os.Create(f)
		if err != nil {
			logfile.Close()
			return err
		}
		defer sl.Close()
		iterLog = &lockedWriter{w: sl}
	}
	threads = max(1, min(threads, len(seeds)))
	log.Debug().Msgf("Starting %v games, %v threads", len(seeds), threads)

	CVCCounter.Set(0)
	jobs := make(chan int64, 100)
	logChan := make(chan string, 100)
	g, gctx := errgroup.WithContext(ctx)

	for i := 1; i <= threads; i++ {
		g.Go(func() error {
			r := NewGameRunner(logChan, cfg)
			r.SetOptions(opts)
			if iterLog != nil {
				r.SetIterationLog(iterLog)
			}
			IsPlaying.Add(1)
			defer IsPlaying.Add(-1)
			for seed := range jobs {
				if _, err := r.PlayGame(gctx, seed); err != nil {
					return err
				}
				CVCCounter.Add(1)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for i, seed := range seeds {
			select {
			case jobs <- seed:
			case <-gctx.Done():
				log.Info().Msg("Got stop signal, exiting soon...")
				return nil
			}
			if (i+1)%1000 == 0 {
				log.Info().Msgf("Queued %v jobs", i+1)
			}
		}
		log.Info().Msg("Finished queueing all jobs.")
		return nil
	})

	written := make(chan error, 1)
	go func() {
		w := bufio.NewWriter(logfile)
		w.WriteString(GameHeader)
		for msg := range logChan {
			w.WriteString(msg)
		}
		err := w.Flush()
		if cerr := logfile.Close(); err == nil {
			err = cerr
		}
		written <- err
	}()

	err = g.Wait()
	close(logChan)
	werr := <-written
	log.Info().Int64("games", CVCCounter.Value()).Str("file", outputFilename).Msg("all-games-finished")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return werr
}
