package domain

import (
	"context"
	"time"
)

// TokenMapCache caches the token catalogue snapshot so read paths can
// resolve tokens without a Gamma round-trip.
type TokenMapCache interface {
	Set(ctx context.Context, m TokenMap) error
	Get(ctx context.Context) (TokenMap, error)
}

// LockManager provides distributed locking. The sync coordinator takes a
// lock per cursor key so only one run mutates the cursor at a time.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage is a single entry read from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub fan-out and durable, capped streams. Newly
// emitted signals are published for the websocket hub and appended to a
// stream for late consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
