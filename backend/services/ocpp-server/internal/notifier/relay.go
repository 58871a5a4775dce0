package notifier

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultPublishTimeout = 5 * time.Second

// Snapshot is what sinks publish: the charger state plus session liveness.
type Snapshot struct {
	Connected bool        `json:"connected"`
	State     interface{} `json:"state"`
}

// Sink publishes a snapshot to an external system.
type Sink interface {
	Publish(ctx context.Context, snapshot Snapshot) error
}

// Relay forwards state changes to a sink on its own goroutine. Signals coalesce: while one is
// pending further ones are dropped, and the sink always sees the latest snapshot.
type Relay struct {
	name    string
	source  func() Snapshot
	sink    Sink
	signal  chan struct{}
	timeout time.Duration
	logger  *zap.Logger
}

// NewRelay builds a relay. Call Trigger from a Notifier subscription and Run in a goroutine.
func NewRelay(name string, source func() Snapshot, sink Sink, logger *zap.Logger) *Relay {
	return &Relay{
		name:    name,
		source:  source,
		sink:    sink,
		signal:  make(chan struct{}, 1),
		timeout: defaultPublishTimeout,
		logger:  logger,
	}
}

// Trigger schedules a publish. It never blocks.
func (r *Relay) Trigger() {
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// Run publishes the current snapshot once, then after every trigger until ctx ends.
func (r *Relay) Run(ctx context.Context) {
	r.publish(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.signal:
			r.publish(ctx)
		}
	}
}

func (r *Relay) publish(ctx context.Context) {
	publishCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.sink.Publish(publishCtx, r.source()); err != nil {
		r.logger.Warn("state publish failed", zap.String("sink", r.name), zap.Error(err))
	}
}
