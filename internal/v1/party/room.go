package party

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/set"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/logging"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/metrics"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/pkg/sfu"
)

const endedLockHold = 2000 * time.Millisecond

// Room is the aggregate of participants, shared video state, chat, queue,
// voice membership, and the screen-share sharer for one code. It is the
// single writer for all of that state: every inbound event for this room
// is handled while holding mu, so a state transition and its outbound
// broadcast are indivisible with respect to other transitions in the same
// room. Different rooms make progress independently.
type Room struct {
	mu sync.Mutex

	code      RoomCode
	createdAt time.Time
	isHidden  bool

	hostId       ParticipantId
	order        []ParticipantId // insertion order, for host-transfer tie-break
	participants map[ParticipantId]*Participant
	conns        map[ParticipantId]*Connection

	video   VideoState
	chatLog []ChatMessage
	queue   []QueueItem

	voiceMembers   set.Set[ParticipantId]
	screenSharerId ParticipantId

	endedLockUntil time.Time

	lastHeartbeatSeq uint64 // last seq observed by the heartbeat ticker, for stall diagnostics

	registry *Registry
	sfuRoom  *sfu.Room
}

func newRoom(code RoomCode, reg *Registry) *Room {
	return &Room{
		code:         code,
		createdAt:    time.Now(),
		participants: make(map[ParticipantId]*Participant),
		conns:        make(map[ParticipantId]*Connection),
		voiceMembers: set.New[ParticipantId](),
		video:        VideoState{VideoType: VideoTypeNone, Rate: 1.0},
		registry:     reg,
	}
}

// dispatch is the event dispatcher's per-room entry point: resolve, handle,
// emit, all while holding the room's lock.
func (r *Room) dispatch(ctx context.Context, c *Connection, msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch msg.Event {
	case EventRoomLeave:
		r.handleLeaveLocked(ctx, c)

	case EventVideoLoad:
		r.handleVideoLoadLocked(ctx, c, msg)
	case EventVideoPlay:
		r.handleVideoPlayLocked(ctx)
	case EventVideoPause:
		r.handleVideoPauseLocked(ctx, msg)
	case EventVideoSeek:
		r.handleVideoSeekLocked(ctx, msg)
	case EventVideoRate:
		r.handleVideoRateLocked(ctx, msg)
	case EventVideoEnded:
		r.handleVideoEndedLocked(ctx)

	case EventQueueAdd:
		r.handleQueueAddLocked(ctx, c, msg)
	case EventQueueRemove:
		r.handleQueueRemoveLocked(ctx, msg)
	case EventQueueReorder:
		r.handleQueueReorderLocked(ctx, msg)
	case EventQueuePlay:
		r.handleQueuePlayLocked(ctx, msg)
	case EventQueuePlayNext:
		r.handleQueuePlayNextLocked(ctx)

	case EventChatMessage:
		r.handleChatMessageLocked(ctx, c, msg)
	case EventChatDelete:
		r.handleChatDeleteLocked(ctx, c, msg)

	case EventVoiceJoin, EventVoiceLeave, EventVoiceCreateSendTransport, EventVoiceCreateRecvTransport,
		EventVoiceConnectTransport, EventVoiceProduce, EventVoiceConsume, EventVoiceResumeConsumer,
		EventVoicePauseProducer, EventVoiceResumeProducer:
		r.dispatchVoiceLocked(ctx, c, msg)

	case EventScreenStart, EventScreenStop, EventScreenOffer, EventScreenAnswer, EventScreenIceCandidate:
		r.dispatchScreenLocked(ctx, c, msg)

	case EventRoomSetHidden:
		r.handleSetHiddenLocked(ctx, c, msg)

	default:
		logging.Warn(ctx, "unknown event dropped", zap.String("event", string(msg.Event)), zap.String("roomCode", string(r.code)))
	}
}

// addParticipantLocked adds a new participant, electing them host if the
// room was empty. Returns the new Participant.
func (r *Room) addParticipantLocked(id ParticipantId, displayName string) *Participant {
	if displayName == "" {
		displayName = defaultDisplayName(len(r.order))
	}
	if len(displayName) > 20 {
		displayName = displayName[:20]
	}

	p := &Participant{
		Id:          id,
		DisplayName: displayName,
		Avatar:      avatarFor(displayName),
		JoinedAt:    time.Now(),
	}
	r.participants[id] = p
	r.order = append(r.order, id)

	if r.hostId == "" {
		r.hostId = id
	}
	return p
}

// handleLeaveLocked removes a participant, runs voice/screen teardown, and
// promotes a new host if needed. Returns true if the room is now empty.
func (r *Room) handleLeaveLocked(ctx context.Context, c *Connection) bool {
	id := c.Id
	if _, ok := r.participants[id]; !ok {
		return len(r.participants) == 0
	}

	// Voice teardown happens before room departure: producer close fans
	// out voice:producer-closed to remaining members first.
	r.leaveVoiceLocked(ctx, id)
	if r.screenSharerId == id {
		r.stopScreenShareLocked(ctx, id)
	}

	delete(r.participants, id)
	delete(r.conns, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.broadcastExcept(id, EventRoomUserLeft, map[string]string{"userId": string(id)})
	metrics.RoomParticipants.WithLabelValues(string(r.code)).Set(float64(len(r.participants)))

	if len(r.participants) == 0 {
		return true
	}

	if r.hostId == id {
		newHost := r.order[0]
		r.hostId = newHost
		raw := r.encode(EventRoomHostChanged, map[string]string{"hostId": string(newHost)})
		for _, conn := range r.conns {
			conn.enqueuePriority(raw)
		}
		r.appendSystemMessageLocked(r.participants[newHost].DisplayName + " is now the host")
	}
	return false
}

// sendRoomStateLocked unicasts a full room snapshot to one connection,
// used on join.
func (r *Room) sendRoomStateLocked(c *Connection) {
	type stateParticipant struct {
		Id          string `json:"id"`
		DisplayName string `json:"displayName"`
		Avatar      string `json:"avatar"`
	}
	parts := make([]stateParticipant, 0, len(r.order))
	for _, id := range r.order {
		p := r.participants[id]
		parts = append(parts, stateParticipant{Id: string(p.Id), DisplayName: p.DisplayName, Avatar: p.Avatar})
	}

	payload := map[string]any{
		"roomId":       string(r.code),
		"hostId":       string(r.hostId),
		"participants": parts,
		"video":        r.video.ToSnapshot(time.Now()),
		"chatLog":      r.chatLog,
		"queue":        r.queue,
		"voiceMembers": r.voiceMembers.UnsortedList(),
		"screenSharer": string(r.screenSharerId),
		"isHidden":     r.isHidden,
	}
	c.sendEvent(EventRoomState, payload, "")
}

func (r *Room) handleSetHiddenLocked(ctx context.Context, c *Connection, msg Message) {
	if c.Id != r.hostId {
		c.sendError(ctx, "only the host may change room visibility")
		return
	}
	type payload struct {
		Hidden bool `json:"hidden"`
	}
	p, ok := decodePayload[payload](msg.Payload)
	if !ok {
		c.sendError(ctx, "invalid set-hidden payload")
		return
	}
	r.isHidden = p.Hidden
}

// --- broadcast / unicast primitives ---

func (r *Room) broadcastAll(event Event, payload any) {
	raw := r.encode(event, payload)
	for _, conn := range r.conns {
		conn.enqueue(raw)
	}
}

func (r *Room) broadcastExcept(exclude ParticipantId, event Event, payload any) {
	raw := r.encode(event, payload)
	for id, conn := range r.conns {
		if id == exclude {
			continue
		}
		conn.enqueue(raw)
	}
}

func (r *Room) unicast(id ParticipantId, event Event, payload any) {
	if conn, ok := r.conns[id]; ok {
		conn.enqueue(r.encode(event, payload))
	}
}

func (r *Room) encode(event Event, payload any) []byte {
	msg := Message{Event: event, Payload: mustEncode(payload)}
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	return raw
}

// appendSystemMessageLocked injects a system chat notice, capped as chat
// normally is, without going through handleChatMessageLocked's author
// validation.
func (r *Room) appendSystemMessageLocked(text string) {
	m := ChatMessage{
		Id:        newId(),
		AuthorId:  "system",
		Author:    "system",
		Text:      text,
		Kind:      ChatKindSystem,
		Timestamp: time.Now(),
	}
	r.appendChatLocked(m)
}
