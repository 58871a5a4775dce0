package commands

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSListener serves operator commands over NATS request/reply.
type NATSListener struct {
	conn    *nats.Conn
	subject string
	handler *Handler
	timeout time.Duration
	logger  *zap.Logger
	sub     *nats.Subscription
}

// NewNATSListener builds listener. timeout bounds each command.
func NewNATSListener(conn *nats.Conn, subject string, handler *Handler, timeout time.Duration, logger *zap.Logger) *NATSListener {
	return &NATSListener{conn: conn, subject: subject, handler: handler, timeout: timeout, logger: logger}
}

// Start subscribes to the command subject.
func (l *NATSListener) Start() error {
	sub, err := l.conn.Subscribe(l.subject, func(m *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()

		resp := l.handler.Handle(ctx, m.Data)
		l.logger.Info("nats command handled",
			zap.String("action", resp.Action),
			zap.Bool("accepted", resp.Accepted),
			zap.String("error", resp.Error))

		if m.Reply == "" {
			return
		}
		data, _ := json.Marshal(resp)
		if err := m.Respond(data); err != nil {
			l.logger.Warn("nats command reply failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	l.sub = sub
	return nil
}

// Stop drops the subscription.
func (l *NATSListener) Stop() {
	if l.sub != nil {
		_ = l.sub.Unsubscribe()
	}
}
