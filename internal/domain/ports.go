package domain

import (
	"context"
	"io"
)

// Signaler manages the websocket signaling connection to the proxy.
type Signaler interface {
	Connect(ctx context.Context) error
	SendJoin()
	SendSDPOffer(sdp string)
	SendICECandidate(sdpMid string, sdpMLineIndex int, candidate string)
	Close()
}

// Handler receives signaling events.
type Handler interface {
	OnJoined()
	OnSDPAnswer(sdp SDPPayload)
	OnRemoteICECandidate(candidate ICECandidatePayload)
	OnRemoteError(code, message string)
	OnBye(reason string)
	OnDisconnect(err error)
}

// StreamEvents receives the lifecycle callbacks of a running stream.
type StreamEvents interface {
	OnStart()
	OnUpdate(stats StreamStats)
	OnStop(err error)
	OnTerminate(reason string)
}

// Peer manages the WebRTC peer connection.
type Peer interface {
	AddTransceivers() error
	SetOnTrack(videoOut io.Writer)
	SetOnICECandidate(send func(sdpMid string, sdpMLineIndex int, candidate string))
	SetOnStateChange(fn func(state LinkState))
	CreateOffer() (string, error)
	SetRemoteDescription(sdp SDPPayload) error
	AddRemoteICECandidate(candidate ICECandidatePayload) error
	Stats() (StreamStats, error)
	Close()
}
