package webrtc

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/vnet"
	pion "github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remoteview/native/internal/domain"
)

func TestICEServersToPion_KeepsOrderAndCredentials(t *testing.T) {
	got := ICEServersToPion([]domain.ICEServer{
		{URL: "stun:stun.example.com:3478"},
		{URL: "turn:relay.example.com:3478", Username: "u", Credential: "p"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, []string{"stun:stun.example.com:3478"}, got[0].URLs)
	assert.Empty(t, got[0].Username)
	assert.Nil(t, got[0].Credential)
	assert.Equal(t, []string{"turn:relay.example.com:3478"}, got[1].URLs)
	assert.Equal(t, "u", got[1].Username)
	assert.Equal(t, "p", got[1].Credential)
}

func TestLinkState(t *testing.T) {
	cases := map[pion.PeerConnectionState]domain.LinkState{
		pion.PeerConnectionStateNew:          domain.LinkNew,
		pion.PeerConnectionStateConnecting:   domain.LinkConnecting,
		pion.PeerConnectionStateConnected:    domain.LinkConnected,
		pion.PeerConnectionStateDisconnected: domain.LinkDisconnected,
		pion.PeerConnectionStateFailed:       domain.LinkFailed,
		pion.PeerConnectionStateClosed:       domain.LinkClosed,
	}
	for in, want := range cases {
		assert.Equal(t, want, linkState(in), in.String())
	}
}

func TestIsLoopback(t *testing.T) {
	assert.True(t, isLoopback("candidate:1 1 udp 2130706431 127.0.0.1 5000 typ host"))
	assert.True(t, isLoopback("candidate:1 1 udp 2130706431 ::1 5000 typ host"))
	assert.False(t, isLoopback("candidate:1 1 udp 2130706431 10.8.0.10 5000 typ host"))
}

func TestAddRemoteICECandidate_ReturnsAfterClose(t *testing.T) {
	p, err := NewPeer(PeerConfig{SessionID: "s"})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.AddRemoteICECandidate(domain.ICECandidatePayload{Candidate: "candidate:x"})
	}()

	p.Close()
	p.Close()

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("AddRemoteICECandidate blocked after Close")
	}
}

// TestPeer_ConnectsOverVNet negotiates against a plain pion answerer on a
// virtual network and checks the control channel start command and the link
// state callbacks.
func TestPeer_ConnectsOverVNet(t *testing.T) {
	router, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          "10.0.0.0/24",
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	require.NoError(t, err)

	netA, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"10.0.0.1"}})
	require.NoError(t, err)
	netB, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"10.0.0.2"}})
	require.NoError(t, err)
	require.NoError(t, router.AddNet(netA))
	require.NoError(t, router.AddNet(netB))
	require.NoError(t, router.Start())
	t.Cleanup(func() { _ = router.Stop() })

	peer, err := NewPeer(PeerConfig{
		SessionID: "sess_vnet",
		Display:   domain.Display{Width: 1920, Height: 1080, FPS: 30},
		Net:       netA,
	})
	require.NoError(t, err)
	t.Cleanup(peer.Close)
	require.NoError(t, peer.AddTransceivers())

	remote := newRemote(t, netB)

	states := make(chan domain.LinkState, 8)
	peer.SetOnStateChange(func(s domain.LinkState) { states <- s })

	var (
		mu        sync.Mutex
		remoteSet bool
		pending   []pion.ICECandidateInit
		sentEmpty bool
	)
	peer.SetOnICECandidate(func(mid string, idx int, cand string) {
		line := uint16(idx)
		if cand == "" {
			mu.Lock()
			sentEmpty = true
			mu.Unlock()
			return
		}
		init := pion.ICECandidateInit{Candidate: cand, SDPMid: &mid, SDPMLineIndex: &line}
		mu.Lock()
		defer mu.Unlock()
		if !remoteSet {
			pending = append(pending, init)
			return
		}
		_ = remote.AddICECandidate(init)
	})
	remote.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		payload := domain.ICECandidatePayload{Candidate: init.Candidate}
		if init.SDPMid != nil {
			payload.SDPMid = *init.SDPMid
		}
		if init.SDPMLineIndex != nil {
			payload.SDPMLineIndex = int(*init.SDPMLineIndex)
		}
		go func() { _ = peer.AddRemoteICECandidate(payload) }()
	})

	control := make(chan []byte, 1)
	remote.OnDataChannel(func(dc *pion.DataChannel) {
		if dc.Label() != ControlChannelLabel {
			return
		}
		dc.OnMessage(func(msg pion.DataChannelMessage) {
			select {
			case control <- msg.Data:
			default:
			}
		})
	})

	offer, err := peer.CreateOffer()
	require.NoError(t, err)
	require.NoError(t, remote.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: offer}))

	mu.Lock()
	remoteSet = true
	for _, c := range pending {
		_ = remote.AddICECandidate(c)
	}
	pending = nil
	mu.Unlock()

	answer, err := remote.CreateAnswer(nil)
	require.NoError(t, err)
	require.NoError(t, remote.SetLocalDescription(answer))
	require.NoError(t, peer.SetRemoteDescription(domain.SDPPayload{Type: "answer", SDP: answer.SDP}))

	waitForState(t, states, domain.LinkConnected)

	select {
	case data := <-control:
		var cmd startCommand
		require.NoError(t, json.Unmarshal(data, &cmd))
		assert.Equal(t, "start", cmd.Action)
		assert.Equal(t, "sess_vnet", cmd.SessionID)
		assert.Equal(t, 1920, cmd.Width)
		assert.Equal(t, 1080, cmd.Height)
		assert.Equal(t, 30, cmd.FPS)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for start command")
	}

	_, err = peer.Stats()
	assert.NoError(t, err)

	mu.Lock()
	assert.False(t, sentEmpty, "end of local gathering must not be forwarded")
	mu.Unlock()
}

func newRemote(t *testing.T, n *vnet.Net) *pion.PeerConnection {
	t.Helper()
	se := pion.SettingEngine{}
	se.SetNet(n)

	m := &pion.MediaEngine{}
	require.NoError(t, m.RegisterDefaultCodecs())

	api := pion.NewAPI(pion.WithSettingEngine(se), pion.WithMediaEngine(m))
	pc, err := api.NewPeerConnection(pion.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })
	return pc
}

func waitForState(t *testing.T, states <-chan domain.LinkState, want domain.LinkState) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case s := <-states:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for link state %s", want)
		}
	}
}
