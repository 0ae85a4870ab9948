package sfu

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// Room is one room's audio router: a single worker binding and the set of
// per-participant peers. Created lazily on the first voice:join for a
// room and removed by Engine.TeardownRoom; closing the last peer does not
// remove it, so an empty Room stays registered until that call.
type Room struct {
	id     string
	worker *worker

	mu    sync.Mutex
	peers map[string]*Peer
}

type consumerEntry struct {
	id         string
	producerId string
	sender     *webrtc.RTPSender
	track      *webrtc.TrackLocalStaticRTP
	paused     bool
}

// Peer is one participant's SFU-side state: a send PeerConnection carrying
// their outbound audio track, a recv PeerConnection carrying every track
// they've subscribed to, and the bookkeeping to map consumer IDs back to
// underlying pion tracks.
type Peer struct {
	id string

	mu             sync.Mutex
	sendPC         *webrtc.PeerConnection
	recvPC         *webrtc.PeerConnection
	producerTrack  *webrtc.TrackRemote
	producerId     string
	producerReady  bool
	producerPaused bool
	consumers      map[string]*consumerEntry
}

// EnsurePeer returns peerId's Peer, creating it if needed.
func (r *Room) EnsurePeer(peerId string) *Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.peers[peerId]; ok {
		return p
	}
	p := &Peer{id: peerId, consumers: make(map[string]*consumerEntry)}
	r.peers[peerId] = p
	return p
}

func (r *Room) peer(peerId string) (*Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[peerId]
	return p, ok
}

// ExistingProducers lists every other peer's active producer, for a
// late-joiner's voice:join ack.
func (r *Room) ExistingProducers(exceptPeerId string) []ProducerRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ProducerRef, 0, len(r.peers))
	for id, p := range r.peers {
		if id == exceptPeerId {
			continue
		}
		p.mu.Lock()
		if p.producerReady {
			out = append(out, ProducerRef{ConnectionId: id, ProducerId: p.producerId})
		}
		p.mu.Unlock()
	}
	return out
}

// FindProducerOwner returns the peer ID whose active producer matches
// producerId.
func (r *Room) FindProducerOwner(producerId string) (peerId string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.peers {
		p.mu.Lock()
		match := p.producerReady && p.producerId == producerId
		p.mu.Unlock()
		if match {
			return id, true
		}
	}
	return "", false
}

// CreateSendTransport negotiates peerId's uplink PeerConnection from a
// client SDP offer and returns the server's SDP answer.
func (r *Room) CreateSendTransport(peerId, offerSDP string) (answerSDP string, err error) {
	p := r.EnsurePeer(peerId)
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sendPC != nil {
		_ = p.sendPC.Close()
	}

	pc, err := r.worker.api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return "", err
	}
	p.sendPC = pc
	p.producerReady = false

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		p.mu.Lock()
		p.producerTrack = track
		p.producerId = uuid.NewString()
		p.producerReady = true
		p.mu.Unlock()
	})

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}); err != nil {
		return "", err
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	return answer.SDP, nil
}

// CreateRecvTransport creates peerId's downlink PeerConnection, empty of
// tracks until the first Consume call triggers renegotiation.
func (r *Room) CreateRecvTransport(peerId string) error {
	p := r.EnsurePeer(peerId)
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.recvPC != nil {
		_ = p.recvPC.Close()
	}
	pc, err := r.worker.api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}
	p.recvPC = pc
	return nil
}

// ConnectTransport feeds one trickled ICE candidate into either the send
// or recv PeerConnection.
func (p *Peer) ConnectTransport(isSend bool, candidate webrtc.ICECandidateInit) error {
	p.mu.Lock()
	pc := p.recvPC
	if isSend {
		pc = p.sendPC
	}
	p.mu.Unlock()
	if pc == nil {
		return ErrNoSuchPeer
	}
	return pc.AddICECandidate(candidate)
}

// Produce returns peerId's producer ID once its track has arrived via
// OnTrack; ErrProducerNotReady otherwise (the client may retry).
func (p *Peer) Produce() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.producerReady {
		return "", ErrProducerNotReady
	}
	return p.producerId, nil
}

// Consume subscribes callerPeer to producerPeer's track, adding a forward
// track to callerPeer's recv PeerConnection and returning the SDP offer
// the caller must answer to complete the renegotiation, plus the new
// consumer's ID. The consumer starts paused per the handshake contract.
func (r *Room) Consume(callerPeerId, producerPeerId string) (consumerId, offerSDP string, err error) {
	caller, ok := r.peer(callerPeerId)
	if !ok {
		return "", "", ErrNoSuchPeer
	}
	producer, ok := r.peer(producerPeerId)
	if !ok {
		return "", "", ErrNoSuchPeer
	}

	producer.mu.Lock()
	if !producer.producerReady {
		producer.mu.Unlock()
		return "", "", ErrNoSuchProducer
	}
	codec := producer.producerTrack.Codec()
	producerId := producer.producerId
	producer.mu.Unlock()

	caller.mu.Lock()
	defer caller.mu.Unlock()
	if caller.recvPC == nil {
		return "", "", ErrNoSuchPeer
	}

	localTrack, err := webrtc.NewTrackLocalStaticRTP(codec.RTPCodecCapability, producerId, producerPeerId)
	if err != nil {
		return "", "", err
	}
	sender, err := caller.recvPC.AddTrack(localTrack)
	if err != nil {
		return "", "", err
	}

	cid := uuid.NewString()
	caller.consumers[cid] = &consumerEntry{id: cid, producerId: producerId, sender: sender, track: localTrack, paused: true}

	go forwardRTP(producer, localTrack, cid, caller)

	offer, err := caller.recvPC.CreateOffer(nil)
	if err != nil {
		return "", "", err
	}
	if err := caller.recvPC.SetLocalDescription(offer); err != nil {
		return "", "", err
	}
	return cid, offer.SDP, nil
}

// forwardRTP copies RTP packets from the producer's remote track to one
// consumer's local track until the consumer is closed or the producer
// track ends. A paused consumer or a muted producer still reads (to avoid
// blocking the underlying reader for other consumers) but drops packets
// without forwarding.
func forwardRTP(producer *Peer, localTrack *webrtc.TrackLocalStaticRTP, consumerId string, caller *Peer) {
	producer.mu.Lock()
	remote := producer.producerTrack
	producer.mu.Unlock()
	if remote == nil {
		return
	}

	buf := make([]byte, 1500)
	for {
		n, _, err := remote.Read(buf)
		if err != nil {
			return
		}

		caller.mu.Lock()
		entry, ok := caller.consumers[consumerId]
		paused := ok && entry.paused
		caller.mu.Unlock()
		if !ok {
			return
		}

		producer.mu.Lock()
		producerMuted := producer.producerPaused
		producer.mu.Unlock()

		if paused || producerMuted {
			continue
		}

		if _, err := localTrack.Write(buf[:n]); err != nil {
			return
		}
	}
}

// ResumeConsumer unpauses forwarding for one consumer.
func (p *Peer) ResumeConsumer(consumerId string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.consumers[consumerId]
	if !ok {
		return ErrNoSuchProducer
	}
	c.paused = false
	return nil
}

// SetProducerPaused toggles mute: a paused producer's forwarder loop
// keeps reading (to drain the RTP socket) but stops writing to consumers.
func (p *Peer) SetProducerPaused(paused bool) {
	p.mu.Lock()
	p.producerPaused = paused
	p.mu.Unlock()
}

// ClosePeer closes, in order, a peer's consumers, its producer, and both
// transports. Returns the closed producer ID (if any) so the caller can
// fan out voice:producer-closed.
func (r *Room) ClosePeer(peerId string) (producerId string, hadProducer bool) {
	r.mu.Lock()
	p, ok := r.peers[peerId]
	if ok {
		delete(r.peers, peerId)
	}
	r.mu.Unlock()
	if !ok {
		return "", false
	}

	p.mu.Lock()
	for id := range p.consumers {
		delete(p.consumers, id)
	}
	if p.producerReady {
		producerId = p.producerId
		hadProducer = true
	}
	sendPC, recvPC := p.sendPC, p.recvPC
	p.mu.Unlock()

	if sendPC != nil {
		_ = sendPC.Close()
	}
	if recvPC != nil {
		_ = recvPC.Close()
	}
	return producerId, hadProducer
}
