package party

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/metrics"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/pkg/sfu"
)

// decodeICECandidate pulls the standard trickle-ICE fields out of a
// loosely-typed JSON payload.
func decodeICECandidate(raw map[string]any) webrtc.ICECandidateInit {
	var init webrtc.ICECandidateInit
	if c, ok := raw["candidate"].(string); ok {
		init.Candidate = c
	}
	if m, ok := raw["sdpMid"].(string); ok {
		init.SDPMid = &m
	}
	if idx, ok := raw["sdpMLineIndex"].(float64); ok {
		v := uint16(idx)
		init.SDPMLineIndex = &v
	}
	return init
}

// dispatchVoiceLocked is the voice:* sub-router. Every step here is a
// client-initiated, ack-returning request: the server never mutates SFU
// state speculatively, which keeps recovery simple (retry from any step).
func (r *Room) dispatchVoiceLocked(ctx context.Context, c *Connection, msg Message) {
	switch msg.Event {
	case EventVoiceJoin:
		r.handleVoiceJoinLocked(ctx, c, msg)
	case EventVoiceLeave:
		r.leaveVoiceLocked(ctx, c.Id)
	case EventVoiceCreateSendTransport:
		r.handleCreateSendTransportLocked(ctx, c, msg)
	case EventVoiceCreateRecvTransport:
		r.handleCreateRecvTransportLocked(ctx, c, msg)
	case EventVoiceConnectTransport:
		r.handleConnectTransportLocked(ctx, c, msg)
	case EventVoiceProduce:
		r.handleProduceLocked(ctx, c, msg)
	case EventVoiceConsume:
		r.handleConsumeLocked(ctx, c, msg)
	case EventVoiceResumeConsumer:
		r.handleResumeConsumerLocked(ctx, c, msg)
	case EventVoicePauseProducer:
		r.handleSetProducerPausedLocked(c, true)
	case EventVoiceResumeProducer:
		r.handleSetProducerPausedLocked(c, false)
	}
}

// ensureSFURoomLocked lazily creates this room's audio router on the first
// voice:join.
func (r *Room) ensureSFURoomLocked() (*sfu.Room, error) {
	if r.sfuRoom != nil {
		return r.sfuRoom, nil
	}
	sr, err := r.registry.sfuEngine.EnsureRoom(string(r.code))
	if err != nil {
		return nil, err
	}
	r.sfuRoom = sr
	return sr, nil
}

type voiceJoinAck struct {
	RtpCapabilities  map[string]any `json:"rtpCapabilities"`
	ExistingProducers []sfu.ProducerRef `json:"existingProducers"`
}

// opusRtpCapabilities describes the single codec the control plane's
// router registers, echoed back so a client's consume-side negotiation
// knows what to expect.
var opusRtpCapabilities = map[string]any{
	"codecs": []map[string]any{
		{"mimeType": "audio/opus", "clockRate": 48000, "channels": 2},
	},
}

func (r *Room) handleVoiceJoinLocked(ctx context.Context, c *Connection, msg Message) {
	sr, err := r.ensureSFURoomLocked()
	if err != nil {
		c.sendError(ctx, "voice service unavailable")
		return
	}
	sr.EnsurePeer(string(c.Id))
	r.voiceMembers.Insert(c.Id)

	existing := sr.ExistingProducers(string(c.Id))
	c.sendEvent(EventVoiceJoin, voiceJoinAck{RtpCapabilities: opusRtpCapabilities, ExistingProducers: existing}, msg.AckId)
	r.broadcastExcept(c.Id, EventVoiceUserJoined, map[string]string{"connectionId": string(c.Id)})
}

// leaveVoiceLocked closes a participant's SFU peer in order (consumers,
// producer, transports) and fans out voice:user-left plus, if a producer
// was closed, voice:producer-closed.
func (r *Room) leaveVoiceLocked(ctx context.Context, id ParticipantId) {
	if !r.voiceMembers.Has(id) {
		return
	}
	r.voiceMembers.Delete(id)

	if r.sfuRoom == nil {
		r.broadcastExcept(id, EventVoiceUserLeft, map[string]string{"connectionId": string(id)})
		return
	}

	producerId, hadProducer := r.sfuRoom.ClosePeer(string(id))
	r.broadcastExcept(id, EventVoiceUserLeft, map[string]string{"connectionId": string(id)})
	if hadProducer {
		r.broadcastExcept(id, EventVoiceProducerClosed, map[string]string{"connectionId": string(id), "producerId": producerId})
	}
}

type transportOfferPayload struct {
	Offer string `json:"offer"`
}

type transportAnswerAck struct {
	TransportId string `json:"transportId"`
	Answer      string `json:"answer"`
}

func (r *Room) handleCreateSendTransportLocked(ctx context.Context, c *Connection, msg Message) {
	sr, err := r.ensureSFURoomLocked()
	if err != nil {
		c.sendError(ctx, "voice service unavailable")
		return
	}
	p, ok := decodePayload[transportOfferPayload](msg.Payload)
	if !ok {
		c.sendError(ctx, "invalid send-transport payload")
		return
	}
	answer, err := sr.CreateSendTransport(string(c.Id), p.Offer)
	if err != nil {
		c.sendError(ctx, "failed to negotiate send transport")
		return
	}
	c.sendEvent(EventVoiceCreateSendTransport, transportAnswerAck{TransportId: string(c.Id) + ":send", Answer: answer}, msg.AckId)
}

type transportIdAck struct {
	TransportId string `json:"transportId"`
}

func (r *Room) handleCreateRecvTransportLocked(ctx context.Context, c *Connection, msg Message) {
	sr, err := r.ensureSFURoomLocked()
	if err != nil {
		c.sendError(ctx, "voice service unavailable")
		return
	}
	if err := sr.CreateRecvTransport(string(c.Id)); err != nil {
		c.sendError(ctx, "failed to create recv transport")
		return
	}
	c.sendEvent(EventVoiceCreateRecvTransport, transportIdAck{TransportId: string(c.Id) + ":recv"}, msg.AckId)
}

type connectTransportPayload struct {
	TransportId string         `json:"transportId"`
	Candidate   map[string]any `json:"candidate"`
}

type connectedAck struct {
	Connected bool `json:"connected"`
}

func (r *Room) handleConnectTransportLocked(ctx context.Context, c *Connection, msg Message) {
	if r.sfuRoom == nil {
		c.sendError(ctx, "no voice session for this connection")
		return
	}
	p, ok := decodePayload[connectTransportPayload](msg.Payload)
	if !ok {
		c.sendError(ctx, "invalid connect-transport payload")
		return
	}
	peer := r.sfuRoom.EnsurePeer(string(c.Id))
	isSend := len(p.TransportId) > 5 && p.TransportId[len(p.TransportId)-5:] == ":send"
	candidate := decodeICECandidate(p.Candidate)
	if err := peer.ConnectTransport(isSend, candidate); err != nil {
		c.sendError(ctx, "failed to connect transport")
		return
	}
	c.sendEvent(EventVoiceConnectTransport, connectedAck{Connected: true}, msg.AckId)
}

type producePayload struct {
	Kind          string         `json:"kind"`
	RtpParameters map[string]any `json:"rtpParameters"`
}

type produceAck struct {
	ProducerId string `json:"producerId"`
}

func (r *Room) handleProduceLocked(ctx context.Context, c *Connection, msg Message) {
	if r.sfuRoom == nil {
		c.sendError(ctx, "no voice session for this connection")
		return
	}
	peer := r.sfuRoom.EnsurePeer(string(c.Id))
	producerId, err := peer.Produce()
	if err != nil {
		c.sendError(ctx, "producer track has not arrived yet, retry shortly")
		return
	}
	c.sendEvent(EventVoiceProduce, produceAck{ProducerId: producerId}, msg.AckId)
	r.broadcastExcept(c.Id, EventVoiceNewProducer, map[string]string{"connectionId": string(c.Id), "producerId": producerId})
	metrics.SFUConnectionAttempts.WithLabelValues("produce", "success").Inc()
}

type consumePayload struct {
	ProducerId      string         `json:"producerId"`
	RtpCapabilities map[string]any `json:"rtpCapabilities"`
}

type consumeAck struct {
	ConsumerId string `json:"consumerId"`
	ProducerId string `json:"producerId"`
	Offer      string `json:"offer"`
}

func (r *Room) handleConsumeLocked(ctx context.Context, c *Connection, msg Message) {
	if r.sfuRoom == nil {
		c.sendError(ctx, "no voice session for this connection")
		return
	}
	p, ok := decodePayload[consumePayload](msg.Payload)
	if !ok {
		c.sendError(ctx, "invalid consume payload")
		return
	}

	producerPeerId, found := r.sfuRoom.FindProducerOwner(p.ProducerId)
	if !found {
		c.sendError(ctx, "unknown producer")
		return
	}

	cid, offer, err := r.sfuRoom.Consume(string(c.Id), producerPeerId)
	if err != nil {
		c.sendError(ctx, "failed to negotiate consumer")
		metrics.SFUConnectionAttempts.WithLabelValues("consume", "failure").Inc()
		return
	}
	c.sendEvent(EventVoiceConsume, consumeAck{ConsumerId: cid, ProducerId: p.ProducerId, Offer: offer}, msg.AckId)
	metrics.SFUConnectionAttempts.WithLabelValues("consume", "success").Inc()
}

type consumerIdPayload struct {
	ConsumerId string `json:"consumerId"`
}

type resumedAck struct {
	Resumed bool `json:"resumed"`
}

func (r *Room) handleResumeConsumerLocked(ctx context.Context, c *Connection, msg Message) {
	if r.sfuRoom == nil {
		return
	}
	p, ok := decodePayload[consumerIdPayload](msg.Payload)
	if !ok {
		return
	}
	peer := r.sfuRoom.EnsurePeer(string(c.Id))
	if err := peer.ResumeConsumer(p.ConsumerId); err != nil {
		c.sendError(ctx, "unknown consumer")
		return
	}
	c.sendEvent(EventVoiceResumeConsumer, resumedAck{Resumed: true}, msg.AckId)
}

func (r *Room) handleSetProducerPausedLocked(c *Connection, paused bool) {
	if r.sfuRoom == nil {
		return
	}
	r.sfuRoom.EnsurePeer(string(c.Id)).SetProducerPaused(paused)
}
