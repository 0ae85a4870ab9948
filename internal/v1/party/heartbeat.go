package party

import (
	"context"
	"time"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/logging"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/metrics"
	"go.uber.org/zap"
)

const heartbeatPeriod = 3 * time.Second

// StartHeartbeat runs a process-wide ticker that broadcasts an advisory
// playback snapshot to every eligible room: at least two participants, a
// loaded video, and currently playing. Heartbeats never bump seq — they
// exist so a client that missed a live event (backgrounded tab, transient
// disconnect) can self-correct.
func (reg *Registry) StartHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(heartbeatPeriod)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				reg.tickHeartbeats()
			}
		}
	}()
}

func (reg *Registry) tickHeartbeats() {
	reg.mu.RLock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.mu.RUnlock()

	now := time.Now()
	for _, room := range rooms {
		room.mu.Lock()
		eligible := len(room.participants) >= 2 && room.video.VideoType != VideoTypeNone && room.video.IsPlaying
		var snap Snapshot
		if eligible {
			snap = room.video.ToSnapshot(now)
		}
		if eligible {
			room.broadcastAll(EventVideoHeartbeat, snap)
			if room.video.Seq == room.lastHeartbeatSeq {
				logging.Debug(context.Background(), "room seq has not advanced across heartbeat tick",
					zap.String("roomCode", string(room.code)), zap.Uint64("seq", room.video.Seq))
			}
			room.lastHeartbeatSeq = room.video.Seq
		}
		room.mu.Unlock()
	}
	if reg.sfuEngine != nil {
		metrics.SFUActivePeers.Set(float64(reg.sfuEngine.ActivePeers()))
	}
}
