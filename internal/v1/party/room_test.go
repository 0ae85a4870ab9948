package party

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeWsConn is a no-op wsConn so Connections can be constructed without a
// real socket, mirroring the teacher's MockWSConnection pattern.
type fakeWsConn struct{}

func (fakeWsConn) ReadMessage() (int, []byte, error)    { return 0, nil, nil }
func (fakeWsConn) WriteMessage(int, []byte) error       { return nil }
func (fakeWsConn) SetReadDeadline(time.Time) error       { return nil }
func (fakeWsConn) SetWriteDeadline(time.Time) error      { return nil }
func (fakeWsConn) SetReadLimit(int64)                    {}
func (fakeWsConn) SetPongHandler(func(string) error)     {}
func (fakeWsConn) Close() error                          { return nil }

func newTestConnection(id ParticipantId) *Connection {
	return newConnection(id, fakeWsConn{}, nil)
}

func TestNewRoom_Defaults(t *testing.T) {
	r := newRoom("ABC123", &Registry{})
	assert.Equal(t, RoomCode("ABC123"), r.code)
	assert.NotNil(t, r.participants)
	assert.NotNil(t, r.conns)
	assert.NotNil(t, r.voiceMembers)
	assert.Equal(t, VideoTypeNone, r.video.VideoType)
	assert.Equal(t, 1.0, r.video.Rate)
}

func TestAddParticipantLocked_FirstJoinerBecomesHost(t *testing.T) {
	r := newRoom("ABC123", &Registry{})
	p := r.addParticipantLocked("user-1", "Alice")

	assert.Equal(t, ParticipantId("user-1"), r.hostId)
	assert.Equal(t, "Alice", p.DisplayName)
	assert.NotEmpty(t, p.Avatar)
}

func TestAddParticipantLocked_EmptyNameGetsDefaultAndTruncates(t *testing.T) {
	r := newRoom("ABC123", &Registry{})
	r.addParticipantLocked("user-1", "")
	p2 := r.addParticipantLocked("user-2", "ThisDisplayNameIsDefinitelyTooLongToKeep")

	assert.Equal(t, namePool[0], r.participants["user-1"].DisplayName)
	assert.Len(t, p2.DisplayName, 20)
}

func TestHandleLeaveLocked_PromotesEarliestRemainingHost(t *testing.T) {
	r := newRoom("ABC123", &Registry{})
	r.addParticipantLocked("host", "Host")
	r.addParticipantLocked("second", "Second")
	r.addParticipantLocked("third", "Third")

	hostConn := newTestConnection("host")
	r.conns["host"] = hostConn
	r.conns["second"] = newTestConnection("second")
	r.conns["third"] = newTestConnection("third")

	empty := r.handleLeaveLocked(context.Background(), hostConn)
	assert.False(t, empty)
	assert.Equal(t, ParticipantId("second"), r.hostId, "host must pass to the earliest-joined remaining participant")
}

func TestHandleLeaveLocked_LastParticipantEmptiesRoom(t *testing.T) {
	r := newRoom("ABC123", &Registry{})
	r.addParticipantLocked("solo", "Solo")
	conn := newTestConnection("solo")
	r.conns["solo"] = conn

	empty := r.handleLeaveLocked(context.Background(), conn)
	assert.True(t, empty)
	assert.Empty(t, r.participants)
}

func TestQueueAutoAdvance_OnVideoEnded(t *testing.T) {
	r := newRoom("ABC123", &Registry{})
	r.addParticipantLocked("user-1", "Alice")
	r.conns["user-1"] = newTestConnection("user-1")

	now := time.Now()
	_, _ = r.loadVideo("https://youtu.be/dQw4w9WgXcQ", now)
	r.queue = append(r.queue, QueueItem{Id: "q1", VideoUrl: "https://cdn.example.com/next.mp4", Title: "Next up"})

	r.handleVideoEndedLocked(context.Background())

	assert.Empty(t, r.queue, "the advanced item must be popped off the queue")
	assert.Equal(t, "https://cdn.example.com/next.mp4", r.video.VideoUrl)
	assert.Equal(t, VideoTypeDirect, r.video.VideoType)
}

func TestQueueAutoAdvance_DebouncesRepeatedEndedWithinWindow(t *testing.T) {
	r := newRoom("ABC123", &Registry{})
	r.addParticipantLocked("user-1", "Alice")
	r.conns["user-1"] = newTestConnection("user-1")

	now := time.Now()
	_, _ = r.loadVideo("https://youtu.be/dQw4w9WgXcQ", now)
	r.queue = append(r.queue,
		QueueItem{Id: "q1", VideoUrl: "https://cdn.example.com/a.mp4", Title: "A"},
		QueueItem{Id: "q2", VideoUrl: "https://cdn.example.com/b.mp4", Title: "B"},
	)

	r.handleVideoEndedLocked(context.Background())
	assert.Equal(t, "https://cdn.example.com/a.mp4", r.video.VideoUrl)

	// A second `ended` arriving from another client milliseconds later must
	// not advance the queue again.
	r.handleVideoEndedLocked(context.Background())
	assert.Equal(t, "https://cdn.example.com/a.mp4", r.video.VideoUrl, "second ended within the debounce window must be ignored")
	assert.Len(t, r.queue, 1, "only one item should have been popped")
}

func TestQueueAutoAdvance_EmptyQueueIsNoop(t *testing.T) {
	r := newRoom("ABC123", &Registry{})
	r.addParticipantLocked("user-1", "Alice")
	now := time.Now()
	_, _ = r.loadVideo("https://youtu.be/dQw4w9WgXcQ", now)
	seq := r.video.Seq

	r.handleVideoEndedLocked(context.Background())
	assert.Equal(t, seq, r.video.Seq, "no queued item means nothing to advance to")
}
