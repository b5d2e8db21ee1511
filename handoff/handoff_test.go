package handoff

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facebookresearch/Hanabi-SPARTA/game"
	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

func TestFullTurn(t *testing.T) {
	g, err := game.Start(42, 2)
	require.NoError(t, err)
	c := New(0)
	ctx := context.Background()
	v := g.ViewFor(0)

	got := make(chan *game.View)
	go func() {
		w, err := c.Await(ctx)
		assert.NoError(t, err)
		got <- w
		assert.NoError(t, c.Submit(move.NewPlayMove(1)))
	}()

	require.NoError(t, c.Notify(v))
	assert.Same(t, v, <-got)
	m, err := c.AwaitMove(ctx)
	require.NoError(t, err)
	assert.Equal(t, move.NewPlayMove(1), m)
	assert.Equal(t, MoveSubmitted, c.State())

	require.NoError(t, c.Ack(g.ViewFor(0)))
	assert.Equal(t, WaitingForOpponent, c.State())
}

func TestProtocolViolations(t *testing.T) {
	c := New(1)
	ctx := context.Background()

	err := c.Submit(move.NewDiscardMove(0))
	assert.True(t, errors.Is(err, ErrProtocolViolation))
	assert.True(t, errors.Is(err, game.ErrProtocolViolation))

	_, err = c.AwaitMove(ctx)
	assert.ErrorIs(t, err, ErrProtocolViolation)
	assert.ErrorIs(t, c.Ack(nil), ErrProtocolViolation)

	require.NoError(t, c.Notify(nil))
	assert.ErrorIs(t, c.Notify(nil), ErrProtocolViolation)
	assert.Equal(t, MyTurnPending, c.State())
}

func TestTransitionsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	c := New(1)
	c.SetLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	require.NoError(t, c.Notify(nil))
	assert.Contains(t, buf.String(), `"seat":1`)
	assert.Contains(t, buf.String(), `"from":"WaitingForOpponent","to":"MyTurnPending"`)

	buf.Reset()
	assert.ErrorIs(t, c.Ack(nil), ErrProtocolViolation)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"op":"ack","state":"MyTurnPending"`)
	assert.Contains(t, buf.String(), "handoff-protocol-violation")
}

func TestCloseWakesWaiters(t *testing.T) {
	c := New(0)
	done := make(chan error)
	go func() {
		_, err := c.Await(context.Background())
		done <- err
	}()
	c.Close()
	c.Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrGameOver)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter was not woken")
	}
	assert.Equal(t, GameOver, c.State())
	assert.ErrorIs(t, c.Notify(nil), ErrProtocolViolation)
}

func TestAwaitHonoursContext(t *testing.T) {
	c := New(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, WaitingForOpponent, c.State())
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{WaitingForOpponent, "WaitingForOpponent"},
		{MyTurnPending, "MyTurnPending"},
		{Deciding, "Deciding"},
		{MoveSubmitted, "MoveSubmitted"},
		{GameOver, "GameOver"},
		{State(9), "State(9)"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.s.String())
	}
}
