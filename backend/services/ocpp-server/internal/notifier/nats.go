package notifier

import (
	"context"
	"encoding/json"
)

type natsPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes snapshots on a subject.
type NATSSink struct {
	conn    natsPublisher
	subject string
}

// NewNATSSink accepts a *nats.Conn.
func NewNATSSink(conn natsPublisher, subject string) *NATSSink {
	return &NATSSink{conn: conn, subject: subject}
}

func (s *NATSSink) Publish(_ context.Context, snapshot Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.conn.Publish(s.subject, data)
}
