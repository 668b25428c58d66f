package webrtc

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	"github.com/pion/logging"
	transport "github.com/pion/transport/v3"
	pion "github.com/pion/webrtc/v4"

	"remoteview/native/internal/domain"
	"remoteview/native/internal/logx"
)

// ControlChannelLabel is the data channel used for session control commands.
const ControlChannelLabel = "control"

// PeerConfig configures a Peer.
type PeerConfig struct {
	SessionID  string
	ICEServers []domain.ICEServer
	Display    domain.Display

	// LoggerFactory is shared with the pion stack. Nil disables logging.
	LoggerFactory logging.LoggerFactory

	// Net overrides the network stack, e.g. with a pion vnet in tests.
	Net transport.Net
}

// Peer wraps a Pion PeerConnection and its control DataChannel.
type Peer struct {
	pc  *pion.PeerConnection
	dc  *pion.DataChannel
	cfg PeerConfig
	log logging.LeveledLogger

	remoteDescSet  chan struct{}
	remoteDescOnce sync.Once
	done           chan struct{}
	closeOnce      sync.Once
}

// ICEServersToPion converts the resolved ICE list, keeping its order.
func ICEServersToPion(servers []domain.ICEServer) []pion.ICEServer {
	out := make([]pion.ICEServer, 0, len(servers))
	for _, s := range servers {
		server := pion.ICEServer{URLs: []string{s.URL}}
		if s.Username != "" || s.Credential != "" {
			server.Username = s.Username
			server.Credential = s.Credential
		}
		out = append(out, server)
	}
	return out
}

// NewPeer creates a PeerConnection with H264/Opus codecs and a control
// DataChannel.
func NewPeer(cfg PeerConfig) (*Peer, error) {
	m := &pion.MediaEngine{}

	h264Codec := pion.RTPCodecParameters{
		RTPCodecCapability: pion.RTPCodecCapability{
			MimeType:     pion.MimeTypeH264,
			ClockRate:    90000,
			SDPFmtpLine:  "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
			RTCPFeedback: []pion.RTCPFeedback{{Type: "nack"}, {Type: "nack", Parameter: "pli"}},
		},
		PayloadType: 102,
	}
	if err := m.RegisterCodec(h264Codec, pion.RTPCodecTypeVideo); err != nil {
		return nil, fmt.Errorf("register H264: %w", err)
	}

	opusCodec := pion.RTPCodecParameters{
		RTPCodecCapability: pion.RTPCodecCapability{
			MimeType:    pion.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: 111,
	}
	if err := m.RegisterCodec(opusCodec, pion.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("register Opus: %w", err)
	}

	i := &interceptor.Registry{}
	generatorFactory, err := nack.NewGeneratorInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create nack generator: %w", err)
	}
	i.Add(generatorFactory)
	responderFactory, err := nack.NewResponderInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create nack responder: %w", err)
	}
	i.Add(responderFactory)

	se := pion.SettingEngine{}
	if cfg.LoggerFactory != nil {
		se.LoggerFactory = cfg.LoggerFactory
	}
	if cfg.Net != nil {
		se.SetNet(cfg.Net)
	}

	api := pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(i),
		pion.WithSettingEngine(se),
	)

	pc, err := api.NewPeerConnection(pion.Configuration{
		ICEServers:   ICEServersToPion(cfg.ICEServers),
		BundlePolicy: pion.BundlePolicyMaxBundle,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	dc, err := pc.CreateDataChannel(ControlChannelLabel, nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("create data channel: %w", err)
	}

	p := &Peer{
		pc:            pc,
		dc:            dc,
		cfg:           cfg,
		log:           logx.Scoped(cfg.LoggerFactory, "webrtc"),
		remoteDescSet: make(chan struct{}),
		done:          make(chan struct{}),
	}

	dc.OnOpen(func() {
		p.log.Info("control channel opened")
		p.sendStart()
	})
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		p.log.Debugf("control message: %s", msg.Data)
	})
	dc.OnClose(func() {
		p.log.Info("control channel closed")
	})

	pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		p.log.Debugf("ICE connection state: %s", state)
	})
	p.SetOnStateChange(nil)

	return p, nil
}

// AddTransceivers adds receive-only audio and video transceivers.
func (p *Peer) AddTransceivers() error {
	_, err := p.pc.AddTransceiverFromKind(pion.RTPCodecTypeAudio, pion.RTPTransceiverInit{
		Direction: pion.RTPTransceiverDirectionRecvonly,
	})
	if err != nil {
		return fmt.Errorf("add audio transceiver: %w", err)
	}

	_, err = p.pc.AddTransceiverFromKind(pion.RTPCodecTypeVideo, pion.RTPTransceiverInit{
		Direction: pion.RTPTransceiverDirectionRecvonly,
	})
	if err != nil {
		return fmt.Errorf("add video transceiver: %w", err)
	}

	return nil
}

// SetOnTrack sets up the track handler. Video H264 is written to videoOut, audio is drained.
func (p *Peer) SetOnTrack(videoOut io.Writer) {
	p.pc.OnTrack(func(track *pion.TrackRemote, receiver *pion.RTPReceiver) {
		codec := track.Codec()
		p.log.Infof("got track: kind=%s codec=%s pt=%d", track.Kind(), codec.MimeType, codec.PayloadType)

		if track.Kind() == pion.RTPCodecTypeVideo {
			go p.readVideoTrack(track, videoOut)
		} else {
			go func() {
				buf := make([]byte, 1500)
				for {
					_, _, err := track.Read(buf)
					if err != nil {
						return
					}
				}
			}()
		}
	})
}

func (p *Peer) readVideoTrack(track *pion.TrackRemote, w io.Writer) {
	p.log.Debug("reading H264 video track")

	startCode := []byte{0x00, 0x00, 0x00, 0x01}
	depack := NewH264Depacketizer()

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			p.log.Debugf("video track read error: %v", err)
			return
		}

		nalus := depack.Depacketize(pkt.SequenceNumber, pkt.Payload)
		for _, nalu := range nalus {
			if len(nalu) == 0 {
				continue
			}
			if _, err := w.Write(startCode); err != nil {
				p.log.Warnf("video write error: %v", err)
				return
			}
			if _, err := w.Write(nalu); err != nil {
				p.log.Warnf("video write error: %v", err)
				return
			}
		}
	}
}

// SetOnICECandidate registers the callback for locally discovered ICE candidates.
func (p *Peer) SetOnICECandidate(send func(sdpMid string, sdpMLineIndex int, candidate string)) {
	p.pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			p.log.Debug("ICE gathering complete")
			return
		}

		init := c.ToJSON()
		if isLoopback(init.Candidate) {
			p.log.Debug("filtering loopback ICE candidate")
			return
		}

		sdpMid := ""
		if init.SDPMid != nil {
			sdpMid = *init.SDPMid
		}
		sdpMLineIndex := 0
		if init.SDPMLineIndex != nil {
			sdpMLineIndex = int(*init.SDPMLineIndex)
		}

		p.log.Debugf("local ICE candidate: %s", init.Candidate)
		send(sdpMid, sdpMLineIndex, init.Candidate)
	})
}

// SetOnStateChange registers fn for peer connection state changes. Passing
// nil keeps only the logging.
func (p *Peer) SetOnStateChange(fn func(state domain.LinkState)) {
	p.pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		p.log.Infof("peer connection state: %s", state)
		if fn != nil {
			fn(linkState(state))
		}
	})
}

func linkState(s pion.PeerConnectionState) domain.LinkState {
	switch s {
	case pion.PeerConnectionStateConnecting:
		return domain.LinkConnecting
	case pion.PeerConnectionStateConnected:
		return domain.LinkConnected
	case pion.PeerConnectionStateDisconnected:
		return domain.LinkDisconnected
	case pion.PeerConnectionStateFailed:
		return domain.LinkFailed
	case pion.PeerConnectionStateClosed:
		return domain.LinkClosed
	default:
		return domain.LinkNew
	}
}

// CreateOffer creates an SDP offer and sets it as the local description.
func (p *Peer) CreateOffer() (string, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}

	if err := p.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}

	p.log.Debug("local SDP offer set")
	return offer.SDP, nil
}

// SetRemoteDescription sets the SDP answer and unblocks remote ICE candidate addition.
func (p *Peer) SetRemoteDescription(sdp domain.SDPPayload) error {
	answer := pion.SessionDescription{
		Type: pion.SDPTypeAnswer,
		SDP:  sdp.SDP,
	}

	if err := p.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	p.log.Debug("remote SDP answer set")
	p.remoteDescOnce.Do(func() { close(p.remoteDescSet) })
	return nil
}

// AddRemoteICECandidate waits for the remote description to be set, then adds
// the candidate. It gives up when the peer is closed.
func (p *Peer) AddRemoteICECandidate(candidate domain.ICECandidatePayload) error {
	select {
	case <-p.remoteDescSet:
	case <-p.done:
		return fmt.Errorf("add ice candidate: peer closed")
	}

	sdpMLineIndex := uint16(candidate.SDPMLineIndex)
	sdpMid := candidate.SDPMid
	init := pion.ICECandidateInit{
		Candidate:     candidate.Candidate,
		SDPMid:        &sdpMid,
		SDPMLineIndex: &sdpMLineIndex,
	}

	if err := p.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}

	p.log.Debug("added remote ICE candidate")
	return nil
}

// Stats sums the inbound RTP counters across all received streams.
func (p *Peer) Stats() (domain.StreamStats, error) {
	var out domain.StreamStats
	for _, s := range p.pc.GetStats() {
		switch in := s.(type) {
		case pion.InboundRTPStreamStats:
			addInbound(&out, in)
		case *pion.InboundRTPStreamStats:
			addInbound(&out, *in)
		}
	}
	return out, nil
}

func addInbound(out *domain.StreamStats, in pion.InboundRTPStreamStats) {
	out.BytesReceived += uint64(in.BytesReceived)
	out.PacketsReceived += uint64(in.PacketsReceived)
	out.PacketsLost += int64(in.PacketsLost)
}

// startCommand is the JSON command sent over the control channel to start the
// remote stream.
type startCommand struct {
	Action    string `json:"action"`
	RequestID string `json:"requestId"`
	SessionID string `json:"sessionId"`
	TimeStamp string `json:"timeStamp"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	FPS       int    `json:"fps"`
}

func (p *Peer) sendStart() {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	cmd := startCommand{
		Action:    "start",
		RequestID: ts,
		SessionID: p.cfg.SessionID,
		TimeStamp: ts,
		Width:     p.cfg.Display.Width,
		Height:    p.cfg.Display.Height,
		FPS:       p.cfg.Display.FPS,
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		p.log.Errorf("marshal start: %v", err)
		return
	}
	p.log.Debugf("sending start: %s", data)
	if err := p.dc.SendText(string(data)); err != nil {
		p.log.Warnf("send start: %v", err)
	}
}

// Close shuts down the DataChannel and PeerConnection.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		if p.dc != nil {
			p.dc.Close()
		}
		if p.pc != nil {
			p.pc.Close()
		}
	})
}

func isLoopback(candidate string) bool {
	return strings.Contains(candidate, "127.0.0.1") || strings.Contains(candidate, "::1 ")
}
