package domain

// SDPPayload carries an offer or answer through the signaling proxy.
type SDPPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Empty reports whether p holds no session description.
func (p *SDPPayload) Empty() bool {
	return p == nil || p.SDP == ""
}

// ICECandidatePayload carries a trickled candidate through the signaling
// proxy. The proxy may send an empty Candidate to mark the end of the remote
// side's gathering; the client never sends one.
type ICECandidatePayload struct {
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex int    `json:"sdpMLineIndex"`
	Candidate     string `json:"candidate"`
}
