package bot

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/facebookresearch/Hanabi-SPARTA/config"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

const (
	connectAttempts = 5
	requestAttempts = 3
)

// Connect dials the configured NATS server, retrying with backoff.
func Connect(ctx context.Context, cfg *config.Config, opts ...nats.Option) (*nats.Conn, error) {
	url := cfg.GetString(config.ConfigNatsURL)
	return retry.DoWithData(
		func() (*nats.Conn, error) {
			return nats.Connect(url, opts...)
		},
		retry.Context(ctx),
		retry.Attempts(connectAttempts),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			log.Err(err).Uint("n", n).Str("url", url).Msg("nats-connect-failed-try-again")
			return retry.BackOffDelay(n, err, config)
		}),
	)
}

// MoveRequester asks someone for a move. Client asks a remote bot; Bot
// answers in-process.
type MoveRequester interface {
	RequestMove(ctx context.Context, req *Request) (move.Move, error)
}

type Client struct {
	// NATS connection
	nc      *nats.Conn
	channel string
	timeout time.Duration
}

// NewClient makes a client for the bots on channel. A request that gets no
// answer within timeout fails; timeout 0 waits as long as the context
// allows.
func NewClient(nc *nats.Conn, channel string, timeout time.Duration) *Client {
	return &Client{nc: nc, channel: channel, timeout: timeout}
}

// RequestMove sends a game to the bot and gets a move back. It retries
// while no bot is listening; a bot that is slow to answer is not asked
// again.
func (c *Client) RequestMove(ctx context.Context, req *Request) (move.Move, error) {
	data, err := req.Marshal()
	if err != nil {
		return move.Move{}, err
	}
	logger := zerolog.Ctx(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	res, err := retry.DoWithData(
		func() (*nats.Msg, error) {
			return c.nc.RequestWithContext(ctx, c.channel, data)
		},
		retry.Context(ctx),
		retry.Attempts(requestAttempts),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, nats.ErrNoResponders)
		}),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			logger.Warn().Err(err).Uint("n", n).Str("channel", c.channel).Msg("no-bot-try-again")
			return retry.BackOffDelay(n, err, config)
		}),
	)
	if err != nil {
		if c.nc.LastError() != nil {
			logger.Error().Msgf("%v for request", c.nc.LastError())
		}
		logger.Error().Msgf("%v for request", err)
		return move.Move{}, err
	}
	logger.Debug().Msgf("res: %d bytes", len(res.Data))

	resp, err := UnmarshalResponse(res.Data)
	if err != nil {
		return move.Move{}, err
	}
	if resp.Error != "" {
		return move.Move{}, errors.New("bot returned: " + resp.Error)
	}
	return resp.Move, nil
}
