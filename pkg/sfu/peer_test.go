package sfu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetProducerPaused_MutesForwarding(t *testing.T) {
	p := &Peer{id: "peer-1", consumers: map[string]*consumerEntry{}}
	assert.False(t, p.producerPaused)

	p.SetProducerPaused(true)
	assert.True(t, p.producerPaused, "SetProducerPaused(true) must mark the producer muted")

	p.SetProducerPaused(false)
	assert.False(t, p.producerPaused)
}

func TestResumeConsumer_UnpausesKnownConsumer(t *testing.T) {
	p := &Peer{id: "peer-1", consumers: map[string]*consumerEntry{
		"c1": {id: "c1", producerId: "prod-1", paused: true},
	}}

	err := p.ResumeConsumer("c1")
	assert.NoError(t, err)
	assert.False(t, p.consumers["c1"].paused)
}

func TestResumeConsumer_UnknownConsumerErrors(t *testing.T) {
	p := &Peer{id: "peer-1", consumers: map[string]*consumerEntry{}}
	err := p.ResumeConsumer("does-not-exist")
	assert.ErrorIs(t, err, ErrNoSuchProducer)
}

func TestFindProducerOwner_MatchesReadyProducer(t *testing.T) {
	r := &Room{id: "room-a", peers: map[string]*Peer{
		"peer-1": {id: "peer-1", producerReady: true, producerId: "prod-1", consumers: map[string]*consumerEntry{}},
		"peer-2": {id: "peer-2", consumers: map[string]*consumerEntry{}},
	}}

	owner, ok := r.FindProducerOwner("prod-1")
	assert.True(t, ok)
	assert.Equal(t, "peer-1", owner)

	_, ok = r.FindProducerOwner("no-such-producer")
	assert.False(t, ok)
}

func TestExistingProducers_ExcludesCallerAndNotReadyPeers(t *testing.T) {
	r := &Room{id: "room-a", peers: map[string]*Peer{
		"peer-1": {id: "peer-1", producerReady: true, producerId: "prod-1", consumers: map[string]*consumerEntry{}},
		"peer-2": {id: "peer-2", producerReady: false, consumers: map[string]*consumerEntry{}},
		"peer-3": {id: "peer-3", producerReady: true, producerId: "prod-3", consumers: map[string]*consumerEntry{}},
	}}

	refs := r.ExistingProducers("peer-3")
	assert.Len(t, refs, 1)
	assert.Equal(t, "peer-1", refs[0].ConnectionId)
}

func TestClosePeer_RemovesPeerAndReportsProducer(t *testing.T) {
	r := &Room{id: "room-a", peers: map[string]*Peer{
		"peer-1": {id: "peer-1", producerReady: true, producerId: "prod-1", consumers: map[string]*consumerEntry{}},
	}}

	producerId, had := r.ClosePeer("peer-1")
	assert.True(t, had)
	assert.Equal(t, "prod-1", producerId)
	_, ok := r.peers["peer-1"]
	assert.False(t, ok)

	_, had = r.ClosePeer("peer-1")
	assert.False(t, had, "closing an already-gone peer must not panic or report a producer")
}
