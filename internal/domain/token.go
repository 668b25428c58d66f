package domain

// SessionToken is the payload carried in a session link.
//
// Only SessionID, VPNIP and StreamPort are required. ExpiresAt is nil when the
// token never expires.
type SessionToken struct {
	Version    int    `json:"v"`
	SessionID  string `json:"sessionId" validate:"required"`
	VPNIP      string `json:"vpnIp" validate:"required"`
	StreamPort int    `json:"streamPort" validate:"required"`
	UDPPort    int    `json:"udpPort"`
	WebRTCPort int    `json:"webrtcPort,omitempty"`
	ExpiresAt  *int64 `json:"exp,omitempty"`
}

// TokenVersion is the only payload format currently issued.
const TokenVersion = 1

// ExpiredAt reports whether the token is past its expiry at the given Unix
// second. Tokens without an expiry never expire.
func (t *SessionToken) ExpiredAt(nowUnix int64) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return nowUnix > *t.ExpiresAt
}
