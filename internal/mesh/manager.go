package mesh

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"

	"github.com/BioHazard786/meshroom/internal/config"
	"github.com/BioHazard786/meshroom/internal/signaling"
	"github.com/BioHazard786/meshroom/internal/version"
)

// Signaler delivers negotiation blobs to another participant through the hub.
type Signaler interface {
	Signal(kind string, to signaling.ParticipantID, payload any) error
}

// EventType describes a change in one link of the mesh.
type EventType string

const (
	EventConnected    EventType = "connected"
	EventHello        EventType = "hello"
	EventRTT          EventType = "rtt"
	EventDisconnected EventType = "disconnected"
)

// Event is reported on the Events channel. Events are dropped when nobody reads them.
type Event struct {
	Type    EventType
	Peer    signaling.ParticipantID
	RTT     time.Duration
	Version string
}

// Manager keeps one peer connection per other room member.
//
// The hub decides who offers: a member told offer_request creates the offer,
// everyone else waits for one. The manager therefore never resolves glare.
type Manager struct {
	self     signaling.ParticipantID
	cfg      *config.Config
	signaler Signaler
	log      *slog.Logger

	// PingInterval is the RTT probe period on open channels.
	PingInterval time.Duration

	events chan Event

	mu     sync.Mutex
	peers  map[signaling.ParticipantID]*Peer
	closed bool
}

func NewManager(self signaling.ParticipantID, cfg *config.Config, signaler Signaler, log *slog.Logger) *Manager {
	return &Manager{
		self:         self,
		cfg:          cfg,
		signaler:     signaler,
		log:          log.With("self", self),
		PingInterval: 2 * time.Second,
		events:       make(chan Event, 64),
		peers:        make(map[signaling.ParticipantID]*Peer),
	}
}

// Events reports connection state and RTT changes for every peer.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Peers returns the ids of every peer we currently hold a connection for.
func (m *Manager) Peers() []signaling.ParticipantID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]signaling.ParticipantID, 0, len(m.peers))
	for id := range m.peers {
		out = append(out, id)
	}
	return out
}

// Peer returns the link to id, if any.
func (m *Manager) Peer(id signaling.ParticipantID) (*Peer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peers[id]
	return p, ok
}

// HandleOfferRequest opens a data channel toward from and sends it our offer.
func (m *Manager) HandleOfferRequest(from signaling.ParticipantID) error {
	peer, err := m.replacePeer(from, true)
	if err != nil {
		return err
	}

	ordered := true
	dc, err := peer.pc.CreateDataChannel(DataChannelLabel, &pion.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return NewPeerError("create data channel", from, err)
	}
	m.bindChannel(peer, dc)

	offer, err := peer.pc.CreateOffer(nil)
	if err != nil {
		return NewPeerError("create offer", from, err)
	}
	if err := peer.pc.SetLocalDescription(offer); err != nil {
		return NewPeerError("set local description", from, err)
	}

	return m.describe(peer, signaling.TypeOffer, *peer.pc.LocalDescription())
}

// HandleSignal applies one relayed offer, answer or ICE candidate.
func (m *Manager) HandleSignal(kind string, from signaling.ParticipantID, payload json.RawMessage) error {
	switch kind {
	case signaling.TypeOffer:
		var desc pion.SessionDescription
		if err := json.Unmarshal(payload, &desc); err != nil {
			return NewPeerError("parse offer", from, err)
		}
		return m.answer(from, desc)

	case signaling.TypeAnswer:
		var desc pion.SessionDescription
		if err := json.Unmarshal(payload, &desc); err != nil {
			return NewPeerError("parse answer", from, err)
		}
		peer, ok := m.Peer(from)
		if !ok {
			return NewPeerError("apply answer", from, ErrUnknownPeer)
		}
		if err := peer.setRemote(desc); err != nil {
			return NewPeerError("set remote description", from, err)
		}
		return nil

	case signaling.TypeICECandidate:
		var c pion.ICECandidateInit
		if err := json.Unmarshal(payload, &c); err != nil {
			return NewPeerError("parse ICE candidate", from, err)
		}
		peer, ok := m.Peer(from)
		if !ok {
			// The offer is always relayed before its candidates, so there is
			// nothing to attach this to any more.
			return NewPeerError("add ICE candidate", from, ErrUnknownPeer)
		}
		if err := peer.addRemoteCandidate(c); err != nil {
			return NewPeerError("add ICE candidate", from, err)
		}
		return nil
	}

	return NewPeerError("handle signal", from, ErrUnexpectedSignal)
}

func (m *Manager) answer(from signaling.ParticipantID, offer pion.SessionDescription) error {
	peer, err := m.replacePeer(from, false)
	if err != nil {
		return err
	}

	if err := peer.setRemote(offer); err != nil {
		return NewPeerError("set remote description", from, err)
	}
	answer, err := peer.pc.CreateAnswer(nil)
	if err != nil {
		return NewPeerError("create answer", from, err)
	}
	if err := peer.pc.SetLocalDescription(answer); err != nil {
		return NewPeerError("set local description", from, err)
	}

	return m.describe(peer, signaling.TypeAnswer, *peer.pc.LocalDescription())
}

// describe signals our description and then every candidate gathered so far.
func (m *Manager) describe(peer *Peer, kind string, desc pion.SessionDescription) error {
	if err := m.signaler.Signal(kind, peer.ID, desc); err != nil {
		return NewPeerError("send "+kind, peer.ID, err)
	}
	for _, c := range peer.markDescribed() {
		if err := m.signaler.Signal(signaling.TypeICECandidate, peer.ID, c); err != nil {
			return NewPeerError("send ICE candidate", peer.ID, err)
		}
	}
	return nil
}

// Remove tears down the link to id. It is a no-op for unknown peers.
func (m *Manager) Remove(id signaling.ParticipantID) {
	m.mu.Lock()
	peer, ok := m.peers[id]
	delete(m.peers, id)
	m.mu.Unlock()

	if ok {
		peer.close()
		m.emit(Event{Type: EventDisconnected, Peer: id})
	}
}

// Retain drops every peer that is not in members.
func (m *Manager) Retain(members []signaling.ParticipantID) {
	keep := make(map[signaling.ParticipantID]bool, len(members))
	for _, id := range members {
		keep[id] = true
	}
	for _, id := range m.Peers() {
		if !keep[id] {
			m.Remove(id)
		}
	}
}

// Close tears down every link. The manager cannot be reused.
func (m *Manager) Close() {
	m.mu.Lock()
	peers := m.peers
	m.peers = make(map[signaling.ParticipantID]*Peer)
	m.closed = true
	m.mu.Unlock()

	for _, peer := range peers {
		peer.close()
	}
}

// replacePeer creates a fresh link to id, closing any previous one. A new
// offer_request or offer means the old negotiation is stale.
func (m *Manager) replacePeer(id signaling.ParticipantID, initiator bool) (*Peer, error) {
	pc, err := NewPeerConnection(m.cfg)
	if err != nil {
		return nil, err
	}
	peer := newPeer(id, initiator, pc)
	m.watch(peer)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		pc.Close()
		return nil, NewPeerError("add peer", id, ErrClosed)
	}
	old := m.peers[id]
	m.peers[id] = peer
	m.mu.Unlock()

	if old != nil {
		old.close()
	}
	return peer, nil
}

func (m *Manager) watch(peer *Peer) {
	peer.pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		cand := c.ToJSON()
		if peer.queueLocal(cand) {
			return
		}
		if err := m.signaler.Signal(signaling.TypeICECandidate, peer.ID, cand); err != nil {
			m.log.Debug("Dropping ICE candidate", "peer", peer.ID, "error", err)
		}
	})

	peer.pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		m.log.Debug("Peer connection state", "peer", peer.ID, "state", state.String())
		switch state {
		case pion.PeerConnectionStateConnected:
			m.emit(Event{Type: EventConnected, Peer: peer.ID})
		case pion.PeerConnectionStateFailed:
			m.emit(Event{Type: EventDisconnected, Peer: peer.ID})
		}
	})

	if !peer.Initiator {
		peer.pc.OnDataChannel(func(dc *pion.DataChannel) {
			if dc.Label() == DataChannelLabel {
				m.bindChannel(peer, dc)
			}
		})
	}
}

func (m *Manager) bindChannel(peer *Peer, dc *pion.DataChannel) {
	peer.setChannel(dc)

	dc.OnOpen(func() {
		hello, err := NewFrame(FrameHello, HelloPayload{ID: string(m.self), Version: version.Version})
		if err == nil {
			err = peer.Send(hello)
		}
		if err != nil {
			m.log.Debug("Hello failed", "peer", peer.ID, "error", err)
		}
		go m.probe(peer)
	})

	dc.OnMessage(func(msg pion.DataChannelMessage) {
		if err := m.handleFrame(peer, msg.Data); err != nil {
			m.log.Debug("Dropping data channel frame", "peer", peer.ID, "error", err)
		}
	})
}

func (m *Manager) handleFrame(peer *Peer, data []byte) error {
	f, err := ParseFrame(data)
	if err != nil {
		return err
	}

	switch f.Type {
	case FrameHello:
		var hello HelloPayload
		if err := f.DecodePayload(&hello); err != nil {
			return err
		}
		m.emit(Event{Type: EventHello, Peer: peer.ID, Version: hello.Version})

	case FramePing:
		var ping PingPayload
		if err := f.DecodePayload(&ping); err != nil {
			return err
		}
		pong, err := NewFrame(FramePong, ping)
		if err != nil {
			return err
		}
		return peer.Send(pong)

	case FramePong:
		var pong PingPayload
		if err := f.DecodePayload(&pong); err != nil {
			return err
		}
		rtt := time.Since(time.Unix(0, pong.Sent))
		m.emit(Event{Type: EventRTT, Peer: peer.ID, RTT: rtt})

	default:
		return NewPeerError("handle frame", peer.ID, ErrUnexpectedSignal)
	}
	return nil
}

// probe pings the peer until its link is closed.
func (m *Manager) probe(peer *Peer) {
	ticker := time.NewTicker(m.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-peer.stop:
			return
		case <-ticker.C:
			ping, err := NewFrame(FramePing, PingPayload{Sent: time.Now().UnixNano()})
			if err != nil {
				return
			}
			if err := peer.Send(ping); err != nil {
				m.log.Debug("Ping failed", "peer", peer.ID, "error", err)
			}
		}
	}
}

func (m *Manager) emit(e Event) {
	select {
	case m.events <- e:
	default:
	}
}
