package party

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnqueue_DropsOnBackpressureInsteadOfBlocking(t *testing.T) {
	c := newTestConnection("user-1")

	for i := 0; i < sendBufferSize; i++ {
		c.enqueue([]byte("msg"))
	}
	assert.Len(t, c.send, sendBufferSize)

	// One more must not block and must not grow the channel past capacity.
	done := make(chan struct{})
	go func() {
		c.enqueue([]byte("overflow"))
		close(done)
	}()
	<-done
	assert.Len(t, c.send, sendBufferSize, "a dropped send must not block or grow the buffer")
}

func TestEnqueuePriority_FallsBackToOrdinaryChannelWhenPrioritySaturated(t *testing.T) {
	c := newTestConnection("user-1")

	for i := 0; i < priorityBuffer; i++ {
		c.enqueuePriority([]byte("p"))
	}
	assert.Len(t, c.prioritySend, priorityBuffer)

	c.enqueuePriority([]byte("overflow"))
	assert.Len(t, c.send, 1, "once prioritySend is full, the message should still land on the ordinary channel")
}

func TestSendEvent_EncodesEnvelope(t *testing.T) {
	c := newTestConnection("user-1")
	c.sendEvent(EventRoomState, map[string]string{"hello": "world"}, "ack-1")

	select {
	case raw := <-c.send:
		assert.Contains(t, string(raw), string(EventRoomState))
		assert.Contains(t, string(raw), "ack-1")
	default:
		t.Fatal("expected a message on the send channel")
	}
}

func TestClose_IsIdempotent(t *testing.T) {
	c := newTestConnection("user-1")
	c.close()
	assert.NotPanics(t, func() { c.close() })
}
