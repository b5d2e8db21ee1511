// Package handoff passes the turn between the goroutine that drives a game
// and the goroutine of one agent. The game state stays with the driver; the
// agent only ever gets immutable views.
//
//	WaitingForOpponent --Notify--> MyTurnPending --Await--> Deciding
//	Deciding --Submit--> MoveSubmitted --Ack--> WaitingForOpponent
//
// Close moves any state to GameOver.
package handoff

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

type State int

const (
	WaitingForOpponent State = iota
	MyTurnPending
	Deciding
	MoveSubmitted
	GameOver
)

func (s State) String() string {
	switch s {
	case WaitingForOpponent:
		return "WaitingForOpponent"
	case MyTurnPending:
		return "MyTurnPending"
	case Deciding:
		return "Deciding"
	case MoveSubmitted:
		return "MoveSubmitted"
	case GameOver:
		return "GameOver"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	// ErrProtocolViolation matches game.ErrProtocolViolation.
	ErrProtocolViolation = game.ErrProtocolViolation
	// ErrGameOver is returned to waiters once the channel is closed.
	ErrGameOver = errors.New("game over")
)

// Channel is the handoff for one seat. It is safe for use by the driver and
// the agent at the same time.
type Channel struct {
	seat   int
	logger zerolog.Logger

	mu    sync.Mutex
	state State
	view  *game.View
	move  move.Move
	// changed is closed and replaced on every transition.
	changed chan struct{}
}

func New(seat int) *Channel {
	return &Channel{
		seat:    seat,
		logger:  log.Logger.With().Int("seat", seat).Logger(),
		changed: make(chan struct{}),
	}
}

// SetLogger replaces the logger transitions and violations are written to.
func (c *Channel) SetLogger(l zerolog.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = l.With().Int("seat", c.seat).Logger()
}

func (c *Channel) Seat() int { return c.seat }

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// View returns the latest view handed over, or nil.
func (c *Channel) View() *game.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *Channel) transition(to State) {
	c.logger.Debug().Stringer("from", c.state).Stringer("to", to).Msg("handoff")
	c.state = to
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *Channel) violation(op string) error {
	c.logger.Warn().Str("op", op).Stringer("state", c.state).Msg("handoff-protocol-violation")
	return fmt.Errorf("%w: %s in state %s (seat %d)", ErrProtocolViolation, op, c.state, c.seat)
}

// Notify is called by the driver when it is the seat's turn.
func (c *Channel) Notify(v *game.View) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != WaitingForOpponent {
		return c.violation("notify")
	}
	c.view = v
	c.transition(MyTurnPending)
	return nil
}

// wait blocks until ready reports true, rechecking after every transition.
func (c *Channel) wait(ctx context.Context, ready func() bool) error {
	for {
		c.mu.Lock()
		if ready() {
			return nil
		}
		if c.state == GameOver {
			c.mu.Unlock()
			return ErrGameOver
		}
		ch := c.changed
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Await blocks the agent until it is its turn, then hands over the view.
func (c *Channel) Await(ctx context.Context) (*game.View, error) {
	err := c.wait(ctx, func() bool { return c.state == MyTurnPending })
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()
	c.transition(Deciding)
	return c.view, nil
}

// Submit hands the agent's move to the driver.
func (c *Channel) Submit(m move.Move) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Deciding {
		return c.violation("submit")
	}
	c.move = m
	c.transition(MoveSubmitted)
	return nil
}

// AwaitMove blocks the driver until the agent submits. It must follow
// Notify.
func (c *Channel) AwaitMove(ctx context.Context) (move.Move, error) {
	c.mu.Lock()
	if c.state == WaitingForOpponent {
		defer c.mu.Unlock()
		return move.Move{}, c.violation("await move")
	}
	c.mu.Unlock()
	err := c.wait(ctx, func() bool { return c.state == MoveSubmitted })
	if err != nil {
		return move.Move{}, err
	}
	defer c.mu.Unlock()
	return c.move, nil
}

// Ack tells the agent its move was applied; v is its view afterwards.
func (c *Channel) Ack(v *game.View) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != MoveSubmitted {
		return c.violation("ack")
	}
	c.view = v
	c.transition(WaitingForOpponent)
	return nil
}

// Close ends the game for the seat and wakes every waiter. Closing twice
// is fine.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != GameOver {
		c.transition(GameOver)
	}
}
