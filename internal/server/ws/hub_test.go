package ws

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytrack/polytrack/internal/domain"
)

type fakeBus struct {
	stream []domain.StreamMessage
	fail   bool
}

func (b *fakeBus) Publish(context.Context, string, []byte) error { return nil }
func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}
func (b *fakeBus) StreamAppend(context.Context, string, []byte) error { return nil }
func (b *fakeBus) StreamRead(_ context.Context, _ string, _ string, count int) ([]domain.StreamMessage, error) {
	if b.fail {
		return nil, errors.New("redis down")
	}
	if len(b.stream) > count {
		return b.stream[:count], nil
	}
	return b.stream, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReplayRecentSignalsOnConnect(t *testing.T) {
	bus := &fakeBus{stream: []domain.StreamMessage{
		{ID: "1-0", Payload: []byte(`{"id":"sig-1"}`)},
		{ID: "2-0", Payload: []byte(`{"id":"sig-2"}`)},
	}}
	h := NewHub(bus, "serve", testLogger())
	c := &client{hub: h, send: make(chan []byte, sendBufferSize), subs: map[string]bool{}}

	h.replayRecentSignals(c)

	require.Len(t, c.send, 2)
	assert.Equal(t, []byte(`{"id":"sig-1"}`), <-c.send, "stream tail replays in order")
	assert.Equal(t, []byte(`{"id":"sig-2"}`), <-c.send)
}

func TestReplayRecentSignalsBusFailure(t *testing.T) {
	h := NewHub(&fakeBus{fail: true}, "serve", testLogger())
	c := &client{hub: h, send: make(chan []byte, sendBufferSize), subs: map[string]bool{}}

	h.replayRecentSignals(c)
	assert.Empty(t, c.send, "client falls back to live traffic only")
}
