package party

import "encoding/json"

// Event is the name of an inbound or outbound wire event. Events are
// grouped by prefix: room:*, video:*, queue:*, chat:*, voice:*, screen:*,
// plus the bare "error" event. An ack reply reuses the request's event name
// and carries the request's AckId.
type Event string

const (
	// Inbound room events.
	EventRoomCreate Event = "room:create"
	EventRoomJoin   Event = "room:join"
	EventRoomLeave  Event = "room:leave"

	// Outbound room events, plus the inbound host-only room:set-hidden.
	EventRoomState       Event = "room:state"
	EventRoomUserJoined  Event = "room:user-joined"
	EventRoomUserLeft    Event = "room:user-left"
	EventRoomHostChanged Event = "room:host-changed"
	EventRoomSetHidden   Event = "room:set-hidden"

	// Video events (bidirectional naming overlaps; direction is clear from
	// context: client sends the bare verb, server replies with a snapshot).
	EventVideoLoad        Event = "video:load"
	EventVideoPlay        Event = "video:play"
	EventVideoPause       Event = "video:pause"
	EventVideoSeek        Event = "video:seek"
	EventVideoRate        Event = "video:rate"
	EventVideoEnded       Event = "video:ended"
	EventVideoStateUpdate Event = "video:state-update"
	EventVideoHeartbeat   Event = "video:heartbeat"

	// Queue events.
	EventQueueAdd      Event = "queue:add"
	EventQueueRemove   Event = "queue:remove"
	EventQueueReorder  Event = "queue:reorder"
	EventQueuePlay     Event = "queue:play"
	EventQueuePlayNext Event = "queue:play-next"
	EventQueueUpdate   Event = "queue:update"

	// Chat events.
	EventChatMessage Event = "chat:message"
	EventChatDelete  Event = "chat:delete"

	// Voice (SFU) events.
	EventVoiceJoin                Event = "voice:join"
	EventVoiceLeave               Event = "voice:leave"
	EventVoiceCreateSendTransport Event = "voice:create-send-transport"
	EventVoiceCreateRecvTransport Event = "voice:create-recv-transport"
	EventVoiceConnectTransport    Event = "voice:connect-transport"
	EventVoiceProduce             Event = "voice:produce"
	EventVoiceConsume             Event = "voice:consume"
	EventVoiceResumeConsumer      Event = "voice:resume-consumer"
	EventVoicePauseProducer       Event = "voice:pause-producer"
	EventVoiceResumeProducer      Event = "voice:resume-producer"
	EventVoiceUserJoined          Event = "voice:user-joined"
	EventVoiceUserLeft            Event = "voice:user-left"
	EventVoiceNewProducer         Event = "voice:new-producer"
	EventVoiceProducerClosed      Event = "voice:producer-closed"

	// Screen-share events.
	EventScreenStart        Event = "screen:start"
	EventScreenStop         Event = "screen:stop"
	EventScreenStarted      Event = "screen:started"
	EventScreenStopped      Event = "screen:stopped"
	EventScreenViewerJoined Event = "screen:viewer-joined"
	EventScreenOffer        Event = "screen:offer"
	EventScreenAnswer       Event = "screen:answer"
	EventScreenIceCandidate Event = "screen:ice-candidate"

	// Generic.
	EventError Event = "error"
)

// Message is the single envelope shape for every event carried over the
// connection, in both directions. AckId, when non-empty, ties an outbound
// reply back to the inbound request that requested it.
type Message struct {
	Event   Event           `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	AckId   string          `json:"ackId,omitempty"`
}

// ErrorPayload is the payload of a unicast `error` event.
type ErrorPayload struct {
	Message string `json:"message"`
}

func decodePayload[T any](raw json.RawMessage) (T, bool) {
	var v T
	if len(raw) == 0 {
		return v, true
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		var zero T
		return zero, false
	}
	return v, true
}

func decodeInto(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func mustEncode(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}
