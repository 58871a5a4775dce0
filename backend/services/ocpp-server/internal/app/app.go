package app

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/nats-io/nats.go"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chargerlink/backend/libs/db"
	libmqtt "chargerlink/backend/libs/mqtt"
	libnats "chargerlink/backend/libs/nats"
	libredis "chargerlink/backend/libs/redis"
	"chargerlink/backend/services/ocpp-server/internal/auth"
	"chargerlink/backend/services/ocpp-server/internal/commands"
	"chargerlink/backend/services/ocpp-server/internal/config"
	"chargerlink/backend/services/ocpp-server/internal/handlers"
	httpserver "chargerlink/backend/services/ocpp-server/internal/http"
	"chargerlink/backend/services/ocpp-server/internal/notifier"
	"chargerlink/backend/services/ocpp-server/internal/ocpp"
	"chargerlink/backend/services/ocpp-server/internal/ocpp/protocol"
	"chargerlink/backend/services/ocpp-server/internal/repository"
	"chargerlink/backend/services/ocpp-server/internal/service"
	"chargerlink/backend/services/ocpp-server/internal/ws"
)

const (
	appName            = "chargerlink-ocpp-server"
	commandGrace       = 5 * time.Second
	mqttDisconnectWait = 250
)

type commandListener interface {
	Start() error
	Stop()
}

// App wires all dependencies for the OCPP gateway.
type App struct {
	charger *service.Charger
	manager *ws.Manager

	chargerServer *httpserver.Server
	apiServer     *httpserver.Server

	relays    []*notifier.Relay
	listeners []commandListener

	db    *sql.DB
	redis *goredis.Client
	nats  *nats.Conn
	mqtt  paho.Client

	mqttAvailability string
	logger           *zap.Logger
}

// New builds the application graph. Optional integrations are only connected when configured.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var journal ocpp.Journal
	if cfg.Journal.DSN != "" {
		sqlDB, err := db.NewPostgresDB(ctx, cfg.Journal.DSN)
		if err != nil {
			return nil, err
		}
		a.db = sqlDB
		messages := repository.NewMessageJournal(sqlDB)
		if err := messages.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		journal = messages
	}

	state := service.NewStateMachine(notifier.New(logger), logger)

	router := ocpp.NewRouter()
	router.Register(protocol.ActionBootNotification, handlers.NewBootNotificationHandler(cfg.HeartbeatInterval(), logger))
	router.Register(protocol.ActionHeartbeat, handlers.NewHeartbeatHandler())
	router.Register(protocol.ActionStatusNotification, handlers.NewStatusNotificationHandler(state, logger))
	router.Register(protocol.ActionTransactionEvent, handlers.NewTransactionEventHandler(state, logger))
	processor := ocpp.NewProcessor(router, journal, logger)

	a.manager = ws.NewManager(cfg.PingInterval(), cfg.OCPP.EvictSuperseded, ws.Hooks{
		OnConnect:    state.MarkConnected,
		OnDisconnect: func(string) { state.ResetDisconnected() },
	}, logger)

	wsServer := ws.NewServer(a.manager, processor, ws.ConnectionConfig{
		WriteTimeout:       cfg.WriteTimeout(),
		PingInterval:       cfg.PingInterval(),
		MaxMalformedFrames: cfg.OCPP.MaxMalformedFrames,
	}, logger)
	// websocket sessions manage their own write deadlines
	a.chargerServer = httpserver.NewServer("charger", cfg.ChargerAddress(), http.HandlerFunc(wsServer.HandleWS), 0, logger)

	dispatcher := service.NewDispatcher(a.manager, state, service.DispatcherConfig{
		EVSEID:      cfg.Charger.EVSEID,
		IDToken:     cfg.Charger.IDToken,
		CallTimeout: cfg.CallTimeout(),
	}, logger)
	a.charger = service.NewCharger(state, dispatcher, a.manager)

	commandHandler := commands.NewHandler(a.charger)
	commandTimeout := cfg.CallTimeout() + commandGrace

	if cfg.Redis.Addr != "" {
		client, err := libredis.NewRedisClient(ctx, libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		a.addRelay("redis", notifier.NewRedisSink(client, cfg.Redis.Key, cfg.Redis.Channel))
	}

	if cfg.NATS.URL != "" {
		conn, err := libnats.Connect(cfg.NATS.URL, appName, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.nats = conn
		a.addRelay("nats", notifier.NewNATSSink(conn, cfg.NATS.StateSubject))
		a.listeners = append(a.listeners, commands.NewNATSListener(conn, cfg.NATS.CommandSubject, commandHandler, commandTimeout, logger))
	}

	if cfg.MQTT.Broker != "" {
		a.mqttAvailability = cfg.MQTTTopic("availability")
		client, err := libmqtt.Connect(libmqtt.Options{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			WillTopic:   a.mqttAvailability,
			WillPayload: notifier.AvailabilityOffline,
		}, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.mqtt = client
		a.addRelay("mqtt", notifier.NewMQTTSink(client, cfg.MQTTTopic, nil))
		a.listeners = append(a.listeners, commands.NewMQTTListener(client, cfg.MQTTTopic("command"), commandHandler, commandTimeout, logger))
	}

	if addr := cfg.APIAddress(); addr != "" {
		deps := httpserver.Deps{Charger: a.charger, Logger: logger}
		if cfg.API.JWTSecret != "" {
			deps.Tokens = auth.NewTokenService(cfg.API.JWTSecret, cfg.API.TokenTTL)
			deps.Password = auth.NewPasswordChecker(cfg.API.OperatorPasswordHash)
		}
		a.apiServer = httpserver.NewServer("api", addr, httpserver.NewRouter(deps), commandTimeout, logger)
	}

	return a, nil
}

func (a *App) addRelay(name string, sink notifier.Sink) {
	relay := notifier.NewRelay(name, a.snapshot, sink, a.logger)
	a.charger.Subscribe(relay.Trigger)
	a.relays = append(a.relays, relay)
}

func (a *App) snapshot() notifier.Snapshot {
	return notifier.Snapshot{Connected: a.charger.IsConnected(), State: a.charger.State()}
}

// Charger exposes the collaborator interface to embedding code.
func (a *App) Charger() *service.Charger {
	return a.charger
}

// Run starts the ping loop, relays, command listeners and both servers. It blocks until ctx
// ends or a server fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.manager.Start(ctx)
	for _, relay := range a.relays {
		go relay.Run(ctx)
	}
	for _, listener := range a.listeners {
		if err := listener.Start(); err != nil {
			return err
		}
	}

	servers := []*httpserver.Server{a.chargerServer}
	if a.apiServer != nil {
		servers = append(servers, a.apiServer)
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *httpserver.Server) {
			errCh <- srv.Run(ctx)
		}(srv)
	}

	var firstErr error
	for range servers {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
			cancel()
		}
	}
	return firstErr
}

// Close releases resources.
func (a *App) Close() {
	for _, listener := range a.listeners {
		listener.Stop()
	}
	if a.manager != nil {
		a.manager.CloseAll()
	}
	if a.mqtt != nil {
		token := a.mqtt.Publish(a.mqttAvailability, 1, true, notifier.AvailabilityOffline)
		token.WaitTimeout(time.Second)
		a.mqtt.Disconnect(mqttDisconnectWait)
	}
	if a.nats != nil {
		a.nats.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}
