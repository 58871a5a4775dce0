package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	AvailabilityOnline  = "online"
	AvailabilityOffline = "offline"
)

// DefaultMQTTFields are the state keys mirrored to per-field topics.
var DefaultMQTTFields = []string{
	"plugged_in",
	"charging",
	"power_kw",
	"power_kw_smoothed",
	"energy_kwh",
	"session_energy_kwh",
	"last_status",
	"transaction_id",
}

type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// MQTTSink mirrors the snapshot to retained topics: <prefix>/state carries the full JSON,
// <prefix>/<field>/state one scalar per field and <prefix>/availability the session liveness.
// Unchanged fields are not republished.
type MQTTSink struct {
	client mqttPublisher
	topic  func(leaf string) string
	fields []string

	mu        sync.Mutex
	published map[string]string
}

// NewMQTTSink accepts a paho client and a topic builder.
func NewMQTTSink(client mqttPublisher, topic func(leaf string) string, fields []string) *MQTTSink {
	if fields == nil {
		fields = DefaultMQTTFields
	}
	return &MQTTSink{
		client:    client,
		topic:     topic,
		fields:    fields,
		published: make(map[string]string),
	}
}

// AvailabilityTopic is where online/offline is published; use it as the client's will topic.
func (s *MQTTSink) AvailabilityTopic() string {
	return s.topic("availability")
}

func (s *MQTTSink) Publish(ctx context.Context, snapshot Snapshot) error {
	data, err := json.Marshal(snapshot.State)
	if err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("mqtt: state is not an object: %w", err)
	}

	availability := AvailabilityOffline
	if snapshot.Connected {
		availability = AvailabilityOnline
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.send(ctx, "availability", []byte(availability)); err != nil {
		return err
	}
	if err := s.send(ctx, "state", data); err != nil {
		return err
	}
	for _, field := range s.fields {
		if err := s.send(ctx, field+"/state", scalar(fields[field])); err != nil {
			return err
		}
	}
	return nil
}

func (s *MQTTSink) send(ctx context.Context, leaf string, payload []byte) error {
	text := string(payload)
	if prev, ok := s.published[leaf]; ok && prev == text {
		return nil
	}
	token := s.client.Publish(s.topic(leaf), 1, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return err
	}
	s.published[leaf] = text
	return nil
}

// scalar renders a JSON value the way MQTT consumers expect: strings unquoted, null empty.
func scalar(raw json.RawMessage) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []byte{}
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return []byte(s)
	}
	return trimmed
}
