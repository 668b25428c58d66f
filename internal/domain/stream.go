package domain

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// ConnectionConfig is the static, environment-sourced part of the connection
// parameters.
type ConnectionConfig struct {
	APIBaseURL    string
	STUNServerURI string
	TURNServerURI string
	TURNUsername  string
	TURNPassword  string
}

// SignalingProxyTarget is where the signaling websocket is opened.
type SignalingProxyTarget struct {
	Server string
	Port   int
	Path   string
	Secure bool
}

// URL renders the websocket URL for the target.
func (t SignalingProxyTarget) URL() string {
	scheme := "ws"
	if t.Secure {
		scheme = "wss"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(t.Server, strconv.Itoa(t.Port)),
		Path:   t.Path,
	}
	return u.String()
}

// MediaTarget is the private-network endpoint the remote host streams from.
type MediaTarget struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (m MediaTarget) String() string {
	return net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
}

// ICEServer holds STUN/TURN server configuration.
type ICEServer struct {
	URL        string `json:"url"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
}

// Display describes the requested stream geometry.
type Display struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	FPS    int `json:"fps"`
}

func (d Display) String() string {
	return fmt.Sprintf("%dx%d@%d", d.Width, d.Height, d.FPS)
}

// StreamConfig is everything the streaming client needs for one connection
// attempt. It is built once and not modified afterwards.
type StreamConfig struct {
	SessionID  string
	Signaling  SignalingProxyTarget
	Media      MediaTarget
	StreamPort int
	ICEServers []ICEServer
	Display    Display
}

// LinkState is the peer connection state as seen by the viewer.
type LinkState int

const (
	LinkNew LinkState = iota
	LinkConnecting
	LinkConnected
	LinkDisconnected
	LinkFailed
	LinkClosed
)

func (s LinkState) String() string {
	switch s {
	case LinkNew:
		return "new"
	case LinkConnecting:
		return "connecting"
	case LinkConnected:
		return "connected"
	case LinkDisconnected:
		return "disconnected"
	case LinkFailed:
		return "failed"
	case LinkClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StreamStats is a snapshot of inbound media counters.
type StreamStats struct {
	BytesReceived   uint64
	PacketsReceived uint64
	PacketsLost     int64
}
