// Package bot serves agents over NATS. A bot process answers move
// requests on a subject; a client asks it for moves, and RemotePlayer lets
// a local game seat a remote bot.
package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	aibot "github.com/facebookresearch/Hanabi-SPARTA/ai/bot"
	"github.com/facebookresearch/Hanabi-SPARTA/cache"
	"github.com/facebookresearch/Hanabi-SPARTA/config"
	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
	"github.com/facebookresearch/Hanabi-SPARTA/turnplayer"
)

// QueueGroup lets several bot processes share one subject.
const QueueGroup = "hanabi-bots"

var ErrNotOnTurn = errors.New("requested seat is not on turn")

type Bot struct {
	config *config.Config
	cache  *cache.Cache
}

func NewBot(cfg *config.Config) *Bot {
	cache.CreateGlobalObjectCache()
	return &Bot{config: cfg, cache: cache.GlobalObjectCache}
}

func errorResponse(gameID, message string, err error) *Response {
	msg := message
	if err != nil {
		msg = fmt.Sprintf("%s: %s", msg, err.Error())
	}
	return &Response{GameID: gameID, Error: msg}
}

// Deserialize replays the requested game. The agent for the requested seat
// observes every move through that seat's views.
func (b *Bot) Deserialize(req *Request) (*game.Game, error) {
	opts := turnplayer.GameOptions{Players: req.Players, HandSize: req.HandSize}
	rules, err := opts.Rules(b.config)
	if err != nil {
		return nil, err
	}
	if req.Seat < 0 || req.Seat >= rules.NumPlayers {
		return nil, fmt.Errorf("seat %d out of range", req.Seat)
	}
	return game.NewGame(rules, req.Seed)
}

// RequestMove decides for req.Seat. It is the same as asking a remote bot.
func (b *Bot) RequestMove(ctx context.Context, req *Request) (move.Move, error) {
	g, err := b.Deserialize(req)
	if err != nil {
		return move.Move{}, err
	}
	name := req.Bot
	if name == "" {
		name = b.config.GetString(config.ConfigBot)
	}
	code, err := aibot.ParseBotCode(name)
	if err != nil {
		return move.Move{}, err
	}
	agent, err := aibot.New(code, req.Seat, g.NumPlayers(), b.config, aibot.Options{
		GameID: req.GameID,
		Seed:   req.Seed,
		Cache:  b.cache,
	})
	if err != nil {
		return move.Move{}, err
	}
	for i, m := range req.Moves {
		before := g.ViewFor(req.Seat)
		d, err := g.ApplyMove(m)
		if err != nil {
			return move.Move{}, fmt.Errorf("replaying move %d: %w", i, err)
		}
		agent.ObserveMove(before, d, g.ViewFor(req.Seat))
	}
	if g.IsOver() || g.PlayerOnTurn() != req.Seat {
		return move.Move{}, ErrNotOnTurn
	}
	return agent.Decide(ctx, g.ViewFor(req.Seat))
}

func (b *Bot) handle(ctx context.Context, data []byte) *Response {
	req, err := UnmarshalRequest(data)
	if err != nil {
		return errorResponse("", "Could not parse request", err)
	}
	logger := zerolog.Ctx(ctx).With().Str("game", req.GameID).Int("seat", req.Seat).Logger()
	m, err := b.RequestMove(logger.WithContext(ctx), req)
	if err != nil {
		logger.Err(err).Msg("bot-move-failed")
		return errorResponse(req.GameID, "Could not generate move", err)
	}
	logger.Info().Str("move", m.ShortDescription()).Int("turn", len(req.Moves)).Msg("generated-move")
	return &Response{GameID: req.GameID, Move: m}
}

// Main answers move requests on channel until ctx is done, then drains
// the subscription.
func Main(ctx context.Context, channel string, b *Bot) error {
	closed := make(chan struct{})
	nc, err := Connect(ctx, b.config, nats.Name("hanabi-bot"),
		nats.ClosedHandler(func(*nats.Conn) { close(closed) }))
	if err != nil {
		return err
	}
	_, err = nc.QueueSubscribe(channel, QueueGroup, func(m *nats.Msg) {
		log.Info().Msgf("RECV: %d bytes", len(m.Data))
		resp := b.handle(ctx, m.Data)
		data, err := resp.Marshal()
		if err != nil {
			// Should never happen, ideally, but we need to do something sensible here.
			m.Respond([]byte(err.Error()))
			return
		}
		if err := m.Respond(data); err != nil {
			log.Err(err).Msg("respond-failed")
		}
	})
	if err == nil {
		err = nc.Flush()
	}
	if err == nil {
		err = nc.LastError()
	}
	if err != nil {
		nc.Close()
		return err
	}

	log.Info().Msgf("Listening on [%s]", channel)
	<-ctx.Done()
	log.Info().Msg("draining bot subscription")
	if err := nc.Drain(); err != nil {
		nc.Close()
		return err
	}
	<-closed
	return nil
}
