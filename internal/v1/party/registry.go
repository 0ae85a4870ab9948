package party

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/bus"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/config"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/logging"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/metrics"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/pkg/sfu"
)

const roomCleanupGrace = 5 * time.Second
const maxCodeAttempts = 64

// Registry is the process-wide mapping from room code to Room. It owns
// room creation/destruction and the connection-ID-to-room index; Room
// itself owns everything inside one code. Reads for lobby enumeration and
// health metrics don't block per-room mutation: they take the registry's
// read lock only, never a room's lock for longer than one snapshot.
type Registry struct {
	mu         sync.RWMutex
	rooms      map[RoomCode]*Room
	connRoom   map[ParticipantId]RoomCode
	conns      map[ParticipantId]*Connection

	sfuEngine     *sfu.Engine
	bus           *bus.Service
	titleResolver TitleResolver
	cfg           *config.Config
	upgrader      websocket.Upgrader
}

// NewRegistry builds a Registry. busService and titleResolver may be nil.
func NewRegistry(cfg *config.Config, sfuEngine *sfu.Engine, busService *bus.Service, titleResolver TitleResolver) *Registry {
	return &Registry{
		rooms:         make(map[RoomCode]*Room),
		connRoom:      make(map[ParticipantId]RoomCode),
		conns:         make(map[ParticipantId]*Connection),
		sfuEngine:     sfuEngine,
		bus:           busService,
		titleResolver: titleResolver,
		cfg:           cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     makeOriginChecker(cfg),
		},
	}
}

func makeOriginChecker(cfg *config.Config) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if cfg == nil || cfg.CorsOrigin == "" || cfg.CorsOrigin == "*" {
			return true
		}
		return r.Header.Get("Origin") == cfg.CorsOrigin
	}
}

// ServeWs upgrades the request to a websocket connection and runs its
// read/write pumps until disconnect. The caller's gin handler should
// return once this does.
func (reg *Registry) ServeWs(c *http.Request, w http.ResponseWriter) {
	ctx := c.Context()
	conn, err := reg.upgrader.Upgrade(w, c, nil)
	if err != nil {
		logging.Warn(ctx, "websocket upgrade failed", zap.Error(err))
		return
	}

	id := newParticipantId()
	connection := newConnection(id, conn, reg)

	reg.mu.Lock()
	reg.conns[id] = connection
	reg.mu.Unlock()

	metrics.IncConnection()
	defer metrics.DecConnection()

	go connection.writePump()
	connection.readPump(ctx) // blocks until disconnect
}

// dispatch is the top-level entry point for every inbound event: resolve
// the owning room, except for room:create/room:join which don't have one
// yet.
func (reg *Registry) dispatch(ctx context.Context, c *Connection, msg Message) {
	switch msg.Event {
	case EventRoomCreate:
		reg.handleCreate(ctx, c, msg)
		return
	case EventRoomJoin:
		reg.handleJoin(ctx, c, msg)
		return
	}

	reg.mu.RLock()
	code, ok := reg.connRoom[c.Id]
	reg.mu.RUnlock()
	if !ok {
		logging.Debug(ctx, "event dropped: sender has no room", zap.String("event", string(msg.Event)))
		return
	}

	reg.mu.RLock()
	room := reg.rooms[code]
	reg.mu.RUnlock()
	if room == nil {
		return
	}
	room.dispatch(ctx, c, msg)
}

type createPayload struct {
	UserName string `json:"userName"`
}

type createAck struct {
	RoomId string `json:"roomId"`
	UserId string `json:"userId"`
}

func (reg *Registry) handleCreate(ctx context.Context, c *Connection, msg Message) {
	p, _ := decodePayload[createPayload](msg.Payload)

	code, room, err := reg.createRoom()
	if err != nil {
		c.sendError(ctx, "failed to allocate a room code")
		return
	}

	room.mu.Lock()
	room.addParticipantLocked(c.Id, p.UserName)
	room.conns[c.Id] = c
	room.mu.Unlock()

	reg.mu.Lock()
	reg.connRoom[c.Id] = code
	reg.mu.Unlock()

	c.setRoom(code)
	c.sendEvent(EventRoomCreate, createAck{RoomId: string(code), UserId: string(c.Id)}, msg.AckId)
	metrics.ActiveRooms.Inc()
	metrics.RoomParticipants.WithLabelValues(string(code)).Set(1)
}

// createRoom allocates a fresh room with a collision-checked code.
func (reg *Registry) createRoom() (RoomCode, *Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := newRoomCode()
		if err != nil {
			return "", nil, err
		}
		if _, exists := reg.rooms[code]; exists {
			continue
		}
		room := newRoom(code, reg)
		reg.rooms[code] = room
		return code, room, nil
	}
	return "", nil, ErrConflictingState
}

type joinPayload struct {
	RoomId   string `json:"roomId"`
	UserName string `json:"userName"`
}

type joinAck struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	UserId  string `json:"userId,omitempty"`
}

func (reg *Registry) handleJoin(ctx context.Context, c *Connection, msg Message) {
	p, ok := decodePayload[joinPayload](msg.Payload)
	if !ok {
		c.sendEvent(EventRoomJoin, joinAck{Success: false, Error: "invalid payload"}, msg.AckId)
		return
	}

	code := RoomCode(p.RoomId)
	reg.mu.RLock()
	room, exists := reg.rooms[code]
	reg.mu.RUnlock()
	if !exists {
		c.sendEvent(EventRoomJoin, joinAck{Success: false, Error: "room not found"}, msg.AckId)
		return
	}

	room.mu.Lock()
	part := room.addParticipantLocked(c.Id, p.UserName)
	room.conns[c.Id] = c
	room.notifyNewViewerLocked(c.Id)
	room.mu.Unlock()

	reg.mu.Lock()
	reg.connRoom[c.Id] = code
	reg.mu.Unlock()

	c.setRoom(code)
	c.sendEvent(EventRoomJoin, joinAck{Success: true, UserId: string(c.Id)}, msg.AckId)

	room.mu.Lock()
	room.sendRoomStateLocked(c)
	room.broadcastExcept(c.Id, EventRoomUserJoined, part)
	room.mu.Unlock()

	metrics.RoomParticipants.WithLabelValues(string(code)).Set(float64(len(room.participants)))
}

// handleDisconnect is invoked by Connection.readPump on socket close. It
// runs the same leave sequence as an explicit room:leave.
func (reg *Registry) handleDisconnect(ctx context.Context, c *Connection) {
	reg.mu.Lock()
	code, ok := reg.connRoom[c.Id]
	delete(reg.connRoom, c.Id)
	delete(reg.conns, c.Id)
	reg.mu.Unlock()
	if !ok {
		return
	}

	reg.mu.RLock()
	room := reg.rooms[code]
	reg.mu.RUnlock()
	if room == nil {
		return
	}

	room.mu.Lock()
	empty := room.handleLeaveLocked(ctx, c)
	room.mu.Unlock()

	if empty {
		reg.scheduleCleanup(code)
	}
}

// scheduleCleanup destroys a room after a grace period, giving a
// reconnecting last participant a chance to rejoin before the code is
// freed for reuse.
func (reg *Registry) scheduleCleanup(code RoomCode) {
	time.AfterFunc(roomCleanupGrace, func() {
		reg.mu.Lock()
		defer reg.mu.Unlock()
		room, ok := reg.rooms[code]
		if !ok {
			return
		}
		room.mu.Lock()
		stillEmpty := len(room.participants) == 0
		room.mu.Unlock()
		if !stillEmpty {
			return
		}
		reg.sfuEngine.TeardownRoom(string(code))
		delete(reg.rooms, code)
		metrics.ActiveRooms.Dec()
		metrics.RoomParticipants.DeleteLabelValues(string(code))
	})
}

// withRoom runs fn with the named room locked, if it still exists. Used by
// background work (oEmbed title resolution) that must rejoin the
// single-writer path before mutating room state.
func (reg *Registry) withRoom(code RoomCode, fn func(r *Room)) {
	reg.mu.RLock()
	room, ok := reg.rooms[code]
	reg.mu.RUnlock()
	if !ok {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	fn(room)
}

// RoomSummary is the lobby listing entry for one visible room.
type RoomSummary struct {
	Id         string   `json:"id"`
	UserCount  int      `json:"userCount"`
	Users      []string `json:"users"`
	VideoTitle string   `json:"videoTitle"`
	VideoUrl   string   `json:"videoUrl"`
}

// EnumerateVisible returns a snapshot of every non-hidden room for the
// lobby endpoint.
func (reg *Registry) EnumerateVisible() []RoomSummary {
	reg.mu.RLock()
	codes := make([]RoomCode, 0, len(reg.rooms))
	for code := range reg.rooms {
		codes = append(codes, code)
	}
	reg.mu.RUnlock()

	out := make([]RoomSummary, 0, len(codes))
	for _, code := range codes {
		reg.mu.RLock()
		room := reg.rooms[code]
		reg.mu.RUnlock()
		if room == nil {
			continue
		}

		room.mu.Lock()
		if room.isHidden {
			room.mu.Unlock()
			continue
		}
		users := make([]string, 0, len(room.order))
		for _, id := range room.order {
			users = append(users, room.participants[id].DisplayName)
		}
		summary := RoomSummary{
			Id:         string(code),
			UserCount:  len(room.participants),
			Users:      users,
			VideoTitle: room.video.VideoId,
			VideoUrl:   room.video.VideoUrl,
		}
		room.mu.Unlock()

		out = append(out, summary)
	}
	return out
}

// Stats reports process-wide counts for the /health endpoint.
func (reg *Registry) Stats() (rooms int, users int) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms), len(reg.conns)
}

// Healthy satisfies health.SFUChecker by delegating to the SFU engine's
// own circuit-breaker-backed health state.
func (reg *Registry) Healthy() bool {
	if reg.sfuEngine == nil {
		return true
	}
	return reg.sfuEngine.Healthy()
}
