// Package resolve derives the connection parameters for one streaming attempt
// from a decoded session token and the static connection config.
package resolve

import (
	"fmt"
	"net/url"
	"strings"

	"remoteview/native/internal/domain"
)

// DefaultSTUNServerURI is used when the config leaves the STUN server unset.
const DefaultSTUNServerURI = "stun:stun.l.google.com:19302"

const streamPathPrefix = "/v1/stream/"

// SignalingProxy returns the proxy endpoint that relays signaling to the
// session host at token.VPNIP.
func SignalingProxy(cfg domain.ConnectionConfig, token *domain.SessionToken) (domain.SignalingProxyTarget, error) {
	u, err := url.Parse(cfg.APIBaseURL)
	if err != nil {
		return domain.SignalingProxyTarget{}, fmt.Errorf("parse api base url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return domain.SignalingProxyTarget{}, fmt.Errorf("parse api base url: no host in %q", cfg.APIBaseURL)
	}

	secure := strings.EqualFold(u.Scheme, "https")
	port := 80
	if secure {
		port = 443
	}
	return domain.SignalingProxyTarget{
		Server: host,
		Port:   port,
		Path:   streamPathPrefix + token.VPNIP,
		Secure: secure,
	}, nil
}

// ICEServers returns STUN first and, when a TURN password is configured, TURN
// second. Peers try candidates in list order.
func ICEServers(cfg domain.ConnectionConfig) []domain.ICEServer {
	stun := cfg.STUNServerURI
	if stun == "" {
		stun = DefaultSTUNServerURI
	}
	servers := []domain.ICEServer{{URL: stun}}
	if cfg.TURNPassword != "" {
		servers = append(servers, domain.ICEServer{
			URL:        cfg.TURNServerURI,
			Username:   cfg.TURNUsername,
			Credential: cfg.TURNPassword,
		})
	}
	return servers
}

// Media returns the private-network endpoint the session host streams from.
func Media(token *domain.SessionToken) domain.MediaTarget {
	return domain.MediaTarget{Host: token.VPNIP, Port: token.UDPPort}
}

// Stream assembles the full configuration handed to the streaming client.
func Stream(cfg domain.ConnectionConfig, display domain.Display, token *domain.SessionToken) (domain.StreamConfig, error) {
	sig, err := SignalingProxy(cfg, token)
	if err != nil {
		return domain.StreamConfig{}, err
	}
	return domain.StreamConfig{
		SessionID:  token.SessionID,
		Signaling:  sig,
		Media:      Media(token),
		StreamPort: token.StreamPort,
		ICEServers: ICEServers(cfg),
		Display:    display,
	}, nil
}
