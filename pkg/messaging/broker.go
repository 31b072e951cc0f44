package messaging

import (
	"context"
	"errors"
	"time"
)

// ErrLockHeld is returned by Locker.Acquire when another holder owns the key.
var ErrLockHeld = errors.New("lock already held")

// Publisher defines the interface for publishing messages
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// Subscriber delivers raw payloads published on channel to handle. It
// blocks until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handle func(ctx context.Context, payload []byte)) error
}

// Broker defines the interface for message brokers
type Broker interface {
	Publisher
	Subscriber
	Close() error
}

// Locker provides a best-effort distributed lock with expiry.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
