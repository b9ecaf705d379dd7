package mesh

import (
	"sync"

	pion "github.com/pion/webrtc/v4"

	"github.com/BioHazard786/meshroom/internal/config"
	"github.com/BioHazard786/meshroom/internal/signaling"
)

// DataChannelLabel names the single channel opened per pair.
const DataChannelLabel = "meshroom"

// NewPeerConnection builds a pion peer connection from the ICE settings in cfg.
func NewPeerConnection(cfg *config.Config) (*pion.PeerConnection, error) {
	var iceServers []pion.ICEServer
	if cfg.STUNServer != "" {
		iceServers = append(iceServers, pion.ICEServer{URLs: cfg.GetSTUNServers()})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := pion.ICETransportPolicyAll
	if turnServers != nil && cfg.ForceRelay {
		policy = pion.ICETransportPolicyRelay
	}

	pc, err := pion.NewPeerConnection(pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, NewError("create peer connection", err)
	}
	return pc, nil
}

// Peer is our side of one pairwise link in the mesh.
type Peer struct {
	ID signaling.ParticipantID

	// Initiator is true when the hub asked us to send the offer.
	Initiator bool

	pc *pion.PeerConnection

	mu sync.Mutex
	dc *pion.DataChannel

	// Local candidates wait until our description has been signalled, remote
	// ones until the remote description is set.
	described     bool
	localPending  []pion.ICECandidateInit
	hasRemote     bool
	remotePending []pion.ICECandidateInit

	stop      chan struct{}
	closeOnce sync.Once
}

func newPeer(id signaling.ParticipantID, initiator bool, pc *pion.PeerConnection) *Peer {
	return &Peer{
		ID:        id,
		Initiator: initiator,
		pc:        pc,
		stop:      make(chan struct{}),
	}
}

// queueLocal reports whether c must wait for our description to go out first.
func (p *Peer) queueLocal(c pion.ICECandidateInit) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.described {
		return false
	}
	p.localPending = append(p.localPending, c)
	return true
}

// markDescribed returns the local candidates gathered before the description went out.
func (p *Peer) markDescribed() []pion.ICECandidateInit {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.described = true
	pending := p.localPending
	p.localPending = nil
	return pending
}

// addRemoteCandidate applies c, or holds it until the remote description is set.
func (p *Peer) addRemoteCandidate(c pion.ICECandidateInit) error {
	p.mu.Lock()
	if !p.hasRemote {
		p.remotePending = append(p.remotePending, c)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.pc.AddICECandidate(c)
}

func (p *Peer) setRemote(desc pion.SessionDescription) error {
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return err
	}

	p.mu.Lock()
	p.hasRemote = true
	pending := p.remotePending
	p.remotePending = nil
	p.mu.Unlock()

	for _, c := range pending {
		if err := p.pc.AddICECandidate(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *Peer) setChannel(dc *pion.DataChannel) {
	p.mu.Lock()
	p.dc = dc
	p.mu.Unlock()
}

// Send writes one frame to the peer's data channel.
func (p *Peer) Send(f Frame) error {
	p.mu.Lock()
	dc := p.dc
	p.mu.Unlock()

	if dc == nil || dc.ReadyState() != pion.DataChannelStateOpen {
		return ErrChannelNotOpen
	}
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	return dc.Send(data)
}

func (p *Peer) close() {
	p.closeOnce.Do(func() {
		close(p.stop)
		p.pc.Close()
	})
}
