package domain

import (
	"context"
	"time"
)

// TitleMapCache holds a shared copy of the linker's title map.
type TitleMapCache interface {
	Get(ctx context.Context) (TitleMap, error)
	Set(ctx context.Context, m TitleMap) error
	Invalidate(ctx context.Context) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// Bus channels published by the league services.
const (
	ChannelScores    = "league:scores"
	ChannelSnapshots = "league:snapshots"
	ChannelPicks     = "league:picks"

	// StreamEvents keeps every published payload for replay.
	StreamEvents = "league:events"
)
