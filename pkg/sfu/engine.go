// Package sfu implements the in-process Selective Forwarding Unit control
// plane: worker allocation, per-room audio routers, and per-participant
// transports/producers/consumers. The media plane itself (RTP/RTCP
// handling, DTLS, SRTP) is delegated entirely to pion/webrtc/v4, which
// plays the role of the embedded media library the specification assumes.
//
// The handshake vocabulary this package exposes (send/recv transport,
// connect, produce, consume) follows the mediasoup control surface the
// specification names. pion/webrtc models a connection as one negotiated
// PeerConnection rather than mediasoup's independent ICE/DTLS transports,
// so each step here is mapped onto SDP offer/answer exchange and trickle
// ICE on a per-participant send PeerConnection and a per-participant
// receive PeerConnection, rather than onto raw transport primitives.
package sfu

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/sony/gobreaker"
)

var (
	ErrWorkersExhausted = errors.New("sfu: no workers configured")
	ErrProducerNotReady  = errors.New("sfu: producer track has not arrived yet")
	ErrNoSuchProducer    = errors.New("sfu: no such producer")
	ErrNoSuchPeer        = errors.New("sfu: no such peer")
)

// Config configures the worker pool at startup.
type Config struct {
	NumWorkers  int
	AnnouncedIP string
	PortMin     uint16
	PortMax     uint16
}

type worker struct {
	id  int
	api *webrtc.API
}

// Engine is the top-level SFU control plane: a fixed pool of workers, each
// owning its own ICE/UDP allocation, and the set of rooms currently
// assigned round-robin across them.
type Engine struct {
	mu      sync.Mutex
	workers []*worker
	rooms   map[string]*Room
	next    uint64

	cb *gobreaker.CircuitBreaker
}

// ProducerRef identifies one other participant's active audio producer,
// returned to a late-joiner in the voice:join ack.
type ProducerRef struct {
	ConnectionId string `json:"connectionId"`
	ProducerId   string `json:"producerId"`
}

// NewEngine builds N workers, each with its own pion API and media engine
// registered for Opus, the codec the control plane's router advertises.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.NumWorkers <= 0 {
		return nil, ErrWorkersExhausted
	}

	workers := make([]*worker, 0, cfg.NumWorkers)
	for i := 0; i < cfg.NumWorkers; i++ {
		me := &webrtc.MediaEngine{}
		if err := me.RegisterCodec(webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    webrtc.MimeTypeOpus,
				ClockRate:   48000,
				Channels:    2,
				SDPFmtpLine: "minptime=10;useinbandfec=1",
			},
			PayloadType: 111,
		}, webrtc.RTPCodecTypeAudio); err != nil {
			return nil, fmt.Errorf("worker %d: register opus codec: %w", i, err)
		}

		se := webrtc.SettingEngine{}
		if cfg.PortMin > 0 && cfg.PortMax > 0 {
			if err := se.SetEphemeralUDPPortRange(cfg.PortMin, cfg.PortMax); err != nil {
				return nil, fmt.Errorf("worker %d: set port range: %w", i, err)
			}
		}
		if cfg.AnnouncedIP != "" {
			se.SetNAT1To1IPs([]string{cfg.AnnouncedIP}, webrtc.ICECandidateTypeHost)
		}

		api := webrtc.NewAPI(webrtc.WithMediaEngine(me), webrtc.WithSettingEngine(se))
		workers = append(workers, &worker{id: i, api: api})
	}

	st := gobreaker.Settings{
		Name:        "sfu-worker-allocation",
		MaxRequests: 5,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Engine{
		workers: workers,
		rooms:   make(map[string]*Room),
		cb:      gobreaker.NewCircuitBreaker(st),
	}, nil
}

// Healthy reports whether worker allocation is presently succeeding.
func (e *Engine) Healthy() bool {
	return e.cb.State() != gobreaker.StateOpen
}

// ActivePeers returns the total peer count across every room, for the
// SFUActivePeers gauge.
func (e *Engine) ActivePeers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := 0
	for _, r := range e.rooms {
		r.mu.Lock()
		total += len(r.peers)
		r.mu.Unlock()
	}
	return total
}

// EnsureRoom returns the SFU room for roomId, creating it (bound to the
// next worker, round-robin) if it doesn't exist yet.
func (e *Engine) EnsureRoom(roomId string) (*Room, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if r, ok := e.rooms[roomId]; ok {
		return r, nil
	}

	_, err := e.cb.Execute(func() (any, error) {
		if len(e.workers) == 0 {
			return nil, ErrWorkersExhausted
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	idx := atomic.AddUint64(&e.next, 1) % uint64(len(e.workers))
	w := e.workers[idx]

	r := &Room{
		id:     roomId,
		worker: w,
		peers:  make(map[string]*Peer),
	}
	e.rooms[roomId] = r
	return r, nil
}

// TeardownRoom closes every peer in roomId and removes it. Safe to call on
// an unknown room (no-op).
func (e *Engine) TeardownRoom(roomId string) {
	e.mu.Lock()
	r, ok := e.rooms[roomId]
	if ok {
		delete(e.rooms, roomId)
	}
	e.mu.Unlock()
	if !ok {
		return
	}
	r.mu.Lock()
	ids := make([]string, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		_, _ = r.ClosePeer(id)
	}
}
