package party

import (
	"context"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/metrics"
)

func (r *Room) dispatchScreenLocked(ctx context.Context, c *Connection, msg Message) {
	switch msg.Event {
	case EventScreenStart:
		r.handleScreenStartLocked(ctx, c)
	case EventScreenStop:
		r.stopScreenShareLocked(ctx, c.Id)
	case EventScreenOffer, EventScreenAnswer, EventScreenIceCandidate:
		r.relayScreenSignalLocked(c, msg)
	}
}

func (r *Room) handleScreenStartLocked(ctx context.Context, c *Connection) {
	if r.screenSharerId != "" && r.screenSharerId != c.Id {
		c.sendError(ctx, "another participant is already sharing their screen")
		return
	}
	r.screenSharerId = c.Id
	r.broadcastExcept(c.Id, EventScreenStarted, map[string]string{"sharerId": string(c.Id)})

	for id := range r.participants {
		if id == c.Id {
			continue
		}
		r.unicast(c.Id, EventScreenViewerJoined, map[string]string{"viewerId": string(id)})
	}
	metrics.ScreenShareSessions.Inc()
}

// stopScreenShareLocked clears the sharer (called for screen:stop and for
// sharer disconnect/leave) and notifies the room.
func (r *Room) stopScreenShareLocked(ctx context.Context, sharerId ParticipantId) {
	if r.screenSharerId != sharerId {
		return
	}
	r.screenSharerId = ""
	r.broadcastExcept(sharerId, EventScreenStopped, map[string]string{"sharerId": string(sharerId)})
	metrics.ScreenShareSessions.Dec()
}

// notifyNewViewerLocked tells the current sharer about a newly-joined
// participant so it can open a new peer connection toward them.
func (r *Room) notifyNewViewerLocked(viewerId ParticipantId) {
	if r.screenSharerId == "" {
		return
	}
	r.unicast(r.screenSharerId, EventScreenViewerJoined, map[string]string{"viewerId": string(viewerId)})
}

type screenSignalPayload struct {
	To string `json:"to"`
}

// relayScreenSignalLocked forwards offer/answer/ICE signaling verbatim to
// `data.to`, stamping `from`. The server never inspects the SDP/candidate
// payload itself.
func (r *Room) relayScreenSignalLocked(c *Connection, msg Message) {
	p, ok := decodePayload[screenSignalPayload](msg.Payload)
	if !ok || p.To == "" {
		return
	}
	target, ok := r.conns[ParticipantId(p.To)]
	if !ok {
		return
	}

	var withFrom map[string]any
	_ = decodeInto(msg.Payload, &withFrom)
	if withFrom == nil {
		withFrom = map[string]any{}
	}
	withFrom["from"] = string(c.Id)
	target.sendEvent(msg.Event, withFrom, "")
}
