package party

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/logging"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/metrics"
)

type loadPayload struct {
	Url string `json:"url"`
}

func (r *Room) handleVideoLoadLocked(ctx context.Context, c *Connection, msg Message) {
	p, ok := decodePayload[loadPayload](msg.Payload)
	if !ok {
		c.sendError(ctx, "invalid load payload")
		return
	}
	snap, err := r.loadVideo(p.Url, time.Now())
	if err != nil {
		c.sendError(ctx, err.Error())
		return
	}
	r.broadcastAll(EventVideoLoad, snap)
	r.appendSystemMessageLocked(r.participants[c.Id].DisplayName + " loaded a new video")
	metrics.VideoSeqAdvanced.WithLabelValues(string(r.code)).Inc()
}

func (r *Room) handleVideoPlayLocked(ctx context.Context) {
	snap, applied := r.play(time.Now())
	if !applied {
		// Echo-suppressed: zero outbound events by design.
		return
	}
	r.broadcastAll(EventVideoStateUpdate, snap)
	metrics.VideoSeqAdvanced.WithLabelValues(string(r.code)).Inc()
}

type pausePayload struct {
	CurrentTime float64 `json:"currentTime"`
}

func (r *Room) handleVideoPauseLocked(ctx context.Context, msg Message) {
	p, ok := decodePayload[pausePayload](msg.Payload)
	if !ok {
		return
	}
	snap, applied := r.pause(p.CurrentTime, time.Now())
	if !applied {
		return
	}
	r.broadcastAll(EventVideoStateUpdate, snap)
	metrics.VideoSeqAdvanced.WithLabelValues(string(r.code)).Inc()
}

type seekPayload struct {
	CurrentTime float64 `json:"currentTime"`
}

func (r *Room) handleVideoSeekLocked(ctx context.Context, msg Message) {
	p, ok := decodePayload[seekPayload](msg.Payload)
	if !ok {
		return
	}
	snap := r.seek(p.CurrentTime, time.Now())
	r.broadcastAll(EventVideoStateUpdate, snap)
	metrics.VideoSeqAdvanced.WithLabelValues(string(r.code)).Inc()
}

type ratePayload struct {
	Rate float64 `json:"rate"`
}

func (r *Room) handleVideoRateLocked(ctx context.Context, msg Message) {
	p, ok := decodePayload[ratePayload](msg.Payload)
	if !ok || p.Rate <= 0 {
		return
	}
	snap := r.setRate(p.Rate, time.Now())
	r.broadcastAll(EventVideoStateUpdate, snap)
	metrics.VideoSeqAdvanced.WithLabelValues(string(r.code)).Inc()
}

// handleVideoEndedLocked advances the queue on video completion. Multiple
// clients naturally fire `ended` within milliseconds of each other; the
// ended-lock debounces repeats within a 2s window to a single advance.
func (r *Room) handleVideoEndedLocked(ctx context.Context) {
	now := time.Now()
	if now.Before(r.endedLockUntil) {
		return
	}
	r.endedLockUntil = now.Add(endedLockHold)

	if len(r.queue) == 0 {
		return
	}
	next := r.queue[0]
	r.queue = r.queue[1:]

	url := next.VideoUrl
	if url == "" {
		url = next.VideoId
	}
	snap, err := r.loadVideo(url, now)
	if err != nil {
		logging.Warn(ctx, "queue auto-advance produced an unloadable url", zap.String("roomCode", string(r.code)), zap.Error(err))
		return
	}
	r.broadcastAll(EventVideoLoad, snap)
	r.broadcastAll(EventQueueUpdate, r.queue)
	r.appendSystemMessageLocked("now playing: " + next.Title)
	metrics.VideoSeqAdvanced.WithLabelValues(string(r.code)).Inc()
}
