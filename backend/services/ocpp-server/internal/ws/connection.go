package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chargerlink/backend/services/ocpp-server/internal/metrics"
	"chargerlink/backend/services/ocpp-server/internal/ocpp"
)

const (
	maxMessageSize = 1024 * 1024
	sendBufferSize = 16
)

// MessageProcessor handles raw OCPP frames for one connection.
type MessageProcessor interface {
	Process(ctx context.Context, chargePointID string, pending *ocpp.PendingCalls, raw []byte) ([]byte, error)
	Record(ctx context.Context, chargePointID, direction, action string, payload []byte)
}

// ConnectionConfig tunes a single charger session.
type ConnectionConfig struct {
	WriteTimeout       time.Duration
	PingInterval       time.Duration
	MaxMalformedFrames int
}

// Connection represents the active charger WebSocket session. Inbound frames are handled
// strictly in order by the read pump; all data writes go through the write pump.
type Connection struct {
	chargePointID string
	ws            *websocket.Conn
	send          chan []byte
	done          chan struct{}
	closeOnce     sync.Once
	pending       *ocpp.PendingCalls
	processor     MessageProcessor
	cfg           ConnectionConfig
	logger        *zap.Logger
	onClose       func(*Connection)
}

// NewConnection builds connection wrapper.
func NewConnection(chargePointID string, ws *websocket.Conn, processor MessageProcessor, cfg ConnectionConfig, logger *zap.Logger, onClose func(*Connection)) *Connection {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	return &Connection{
		chargePointID: chargePointID,
		ws:            ws,
		send:          make(chan []byte, sendBufferSize),
		done:          make(chan struct{}),
		pending:       ocpp.NewPendingCalls(logger.With(zap.String("charge_point_id", chargePointID))),
		processor:     processor,
		cfg:           cfg,
		logger:        logger,
		onClose:       onClose,
	}
}

// ChargePointID returns identifier.
func (c *Connection) ChargePointID() string {
	return c.chargePointID
}

// Done is closed once the connection is torn down.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Start launches the write pump and runs the read pump until the socket drops or ctx ends.
// It must be called once per connection.
func (c *Connection) Start(ctx context.Context) {
	go c.writePump()
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()
	c.readPump(ctx)
}

// Call sends a CALL and waits for the correlated answer. ctx bounds the wait; a dropped
// socket fails the call with ocpp.ErrConnectionClosed.
func (c *Connection) Call(ctx context.Context, action string, payload interface{}) (json.RawMessage, error) {
	messageID, frame, err := ocpp.EncodeCall(action, payload)
	if err != nil {
		return nil, err
	}
	if err := c.pending.Register(messageID); err != nil {
		return nil, err
	}
	if err := c.enqueue(ctx, frame); err != nil {
		c.pending.Forget(messageID)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ocpp.ErrCallTimeout
		}
		return nil, err
	}

	metrics.ObserveFrame("outgoing", action)
	c.processor.Record(ctx, c.chargePointID, "outgoing", action, frame)
	return c.pending.Wait(ctx, messageID)
}

// Ping sends a keep-alive ping. Safe to call concurrently with the pumps.
func (c *Connection) Ping() error {
	return c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(c.cfg.WriteTimeout))
}

// Close tears the session down once: pending calls fail and the socket closes. onClose runs
// from the read pump after the frame in flight, if any, has been handled.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.pending.Close(ocpp.ErrConnectionClosed)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = c.ws.Close()
	})
}

func (c *Connection) readPump(ctx context.Context) {
	defer func() {
		c.Close()
		if c.onClose != nil {
			c.onClose(c)
		}
	}()
	c.ws.SetReadLimit(maxMessageSize)
	c.extendReadDeadline()
	c.ws.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	malformed := 0
	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			c.logger.Info("connection read closed", zap.String("charge_point_id", c.chargePointID), zap.Error(err))
			return
		}
		c.extendReadDeadline()

		response, err := c.processor.Process(ctx, c.chargePointID, c.pending, message)
		if err != nil {
			if !errors.Is(err, ocpp.ErrMalformedMessage) {
				c.logger.Warn("failed to process message", zap.String("charge_point_id", c.chargePointID), zap.Error(err))
				continue
			}
			malformed++
			c.logger.Warn("dropping malformed frame",
				zap.String("charge_point_id", c.chargePointID),
				zap.Int("consecutive", malformed),
				zap.Error(err))
			if c.cfg.MaxMalformedFrames > 0 && malformed >= c.cfg.MaxMalformedFrames {
				c.logger.Warn("too many malformed frames, closing connection", zap.String("charge_point_id", c.chargePointID))
				return
			}
			continue
		}
		malformed = 0

		if response != nil {
			if err := c.enqueue(ctx, response); err != nil {
				return
			}
		}
	}
}

func (c *Connection) writePump() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Warn("connection write failed", zap.String("charge_point_id", c.chargePointID), zap.Error(err))
				c.Close()
				return
			}
		}
	}
}

func (c *Connection) enqueue(ctx context.Context, msg []byte) error {
	select {
	case <-c.done:
		return ocpp.ErrConnectionClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return ocpp.ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// extendReadDeadline keeps a silent peer from holding the session forever when pings are on.
func (c *Connection) extendReadDeadline() {
	if c.cfg.PingInterval <= 0 {
		return
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(2 * c.cfg.PingInterval))
}
