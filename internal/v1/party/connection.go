package party

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/logging"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
	priorityBuffer = 32
)

// wsConn is the subset of *websocket.Conn a Connection needs; it exists so
// tests can substitute a fake.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Connection is one live client socket. Identity is stable for its
// lifetime and doubles as the participant ID inside whatever room it
// joins. Outbound writes never block the room dispatcher: send is a
// best-effort buffered channel, and prioritySend carries messages that
// must survive a saturated send buffer (errors, host-changed notices).
type Connection struct {
	Id ParticipantId

	conn         wsConn
	send         chan []byte
	prioritySend chan []byte

	mu       sync.Mutex
	roomCode RoomCode
	inRoom   bool

	registry *Registry
	closed   chan struct{}
	closeOnce sync.Once
}

func newConnection(id ParticipantId, conn wsConn, reg *Registry) *Connection {
	return &Connection{
		Id:           id,
		conn:         conn,
		send:         make(chan []byte, sendBufferSize),
		prioritySend: make(chan []byte, priorityBuffer),
		registry:     reg,
		closed:       make(chan struct{}),
	}
}

// setRoom records which room this connection currently belongs to.
func (c *Connection) setRoom(code RoomCode) {
	c.mu.Lock()
	c.roomCode = code
	c.inRoom = true
	c.mu.Unlock()
}

func (c *Connection) clearRoom() {
	c.mu.Lock()
	c.roomCode = ""
	c.inRoom = false
	c.mu.Unlock()
}

// currentRoom returns the room code this connection belongs to, if any.
func (c *Connection) currentRoom() (RoomCode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomCode, c.inRoom
}

// enqueue attempts a non-blocking send on the ordinary channel; it drops
// the message rather than stall the room dispatcher behind a slow reader.
func (c *Connection) enqueue(raw []byte) {
	select {
	case c.send <- raw:
	default:
		metrics.WebsocketEvents.WithLabelValues("outbound-drop", "backpressure").Inc()
	}
}

// enqueuePriority is for messages that must not be dropped under ordinary
// backpressure: errors, and the host-changed notice a participant needs in
// order to update its own UI correctly.
func (c *Connection) enqueuePriority(raw []byte) {
	select {
	case c.prioritySend <- raw:
	default:
		select {
		case c.send <- raw:
		default:
			metrics.WebsocketEvents.WithLabelValues("outbound-drop", "priority-backpressure").Inc()
		}
	}
}

func (c *Connection) sendEvent(event Event, payload any, ackId string) {
	msg := Message{Event: event, Payload: mustEncode(payload), AckId: ackId}
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.enqueue(raw)
}

func (c *Connection) sendError(ctx context.Context, humanMessage string) {
	msg := Message{Event: EventError, Payload: mustEncode(ErrorPayload{Message: humanMessage})}
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.enqueuePriority(raw)
	logging.Debug(ctx, "sent error to connection", zap.String("connectionId", string(c.Id)), zap.String("message", humanMessage))
}

// close is idempotent; it's safe to call from both readPump and the
// registry's disconnect handling.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// readPump decodes inbound JSON envelopes and feeds them to the registry's
// dispatcher. It owns the connection's read deadline and pong handling and
// exits (triggering teardown) when the socket errors or closes.
func (c *Connection) readPump(ctx context.Context) {
	defer func() {
		c.registry.handleDisconnect(ctx, c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn(ctx, "unexpected websocket close", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			metrics.WebsocketEvents.WithLabelValues("decode-error", "dropped").Inc()
			continue
		}

		start := time.Now()
		c.registry.dispatch(ctx, c, msg)
		metrics.MessageProcessingDuration.WithLabelValues(string(msg.Event)).Observe(time.Since(start).Seconds())
	}
}

// writePump drains send and prioritySend (priority first) and writes a
// periodic ping. It is the only goroutine that calls conn.WriteMessage.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case raw, ok := <-c.prioritySend:
			if !ok {
				return
			}
			if err := c.write(raw); err != nil {
				return
			}
		default:
		}

		select {
		case raw, ok := <-c.prioritySend:
			if !ok {
				return
			}
			if err := c.write(raw); err != nil {
				return
			}
		case raw, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.write(raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Connection) write(raw []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}
