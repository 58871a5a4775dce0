package commands

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTListener serves operator commands from a command topic and publishes the outcome on
// <topic>/result.
type MQTTListener struct {
	client  paho.Client
	topic   string
	handler *Handler
	timeout time.Duration
	logger  *zap.Logger
}

// NewMQTTListener builds listener.
func NewMQTTListener(client paho.Client, topic string, handler *Handler, timeout time.Duration, logger *zap.Logger) *MQTTListener {
	return &MQTTListener{client: client, topic: topic, handler: handler, timeout: timeout, logger: logger}
}

// Start subscribes to the command topic.
func (l *MQTTListener) Start() error {
	token := l.client.Subscribe(l.topic, 1, func(_ paho.Client, msg paho.Message) {
		// paho runs callbacks on its router goroutine; commands wait on the charger
		go l.handle(msg.Payload())
	})
	if !token.WaitTimeout(10 * time.Second) {
		return errors.New("mqtt: subscribe timeout")
	}
	return token.Error()
}

// Stop drops the subscription.
func (l *MQTTListener) Stop() {
	l.client.Unsubscribe(l.topic).WaitTimeout(time.Second)
}

func (l *MQTTListener) handle(payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	resp := l.handler.Handle(ctx, payload)
	l.logger.Info("mqtt command handled",
		zap.String("action", resp.Action),
		zap.Bool("accepted", resp.Accepted),
		zap.String("error", resp.Error))

	data, _ := json.Marshal(resp)
	l.client.Publish(l.topic+"/result", 1, false, data)
}
