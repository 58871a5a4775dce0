package mqtt

import (
	"errors"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const defaultConnectTimeout = 10 * time.Second

// Options describes the broker connection. WillTopic, when set, receives WillPayload retained
// if the client drops without a clean disconnect.
type Options struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	WillTopic   string
	WillPayload string
}

// Connect builds a paho client with auto-reconnect and waits for the first CONNACK.
func Connect(opts Options, logger *zap.Logger) (paho.Client, error) {
	broker := strings.TrimSpace(opts.Broker)
	if broker == "" {
		return nil, errors.New("mqtt: broker is empty")
	}

	clientOpts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(opts.ClientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(defaultConnectTimeout).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("mqtt connection lost", zap.Error(err))
		})
	if opts.WillTopic != "" {
		clientOpts.SetWill(opts.WillTopic, opts.WillPayload, 1, true)
	}

	client := paho.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, errors.New("mqtt: connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, err
	}
	return client, nil
}
