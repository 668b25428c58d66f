package signal

import (
	"encoding/json"
	"fmt"

	"remoteview/native/internal/domain"
)

type messageType string

const (
	typeJoin      messageType = "join"
	typeJoined    messageType = "joined"
	typeOffer     messageType = "offer"
	typeAnswer    messageType = "answer"
	typeCandidate messageType = "candidate"
	typeError     messageType = "error"
	typeBye       messageType = "bye"
	typeLeave     messageType = "leave"
)

// message is the JSON envelope exchanged with the signaling proxy.
type message struct {
	Type messageType `json:"type"`

	SessionID  string              `json:"sessionId,omitempty"`
	ClientID   string              `json:"clientId,omitempty"`
	StreamPort int                 `json:"streamPort,omitempty"`
	Media      *domain.MediaTarget `json:"media,omitempty"`
	Display    *domain.Display     `json:"display,omitempty"`

	SDP       *domain.SDPPayload          `json:"sdp,omitempty"`
	Candidate *domain.ICECandidatePayload `json:"candidate,omitempty"`

	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func parseMessage(data []byte) (message, error) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return message{}, err
	}
	switch msg.Type {
	case typeAnswer:
		if msg.SDP.Empty() {
			return message{}, fmt.Errorf("answer message missing sdp")
		}
	case typeCandidate:
		if msg.Candidate == nil {
			return message{}, fmt.Errorf("candidate message missing candidate")
		}
	case "":
		return message{}, fmt.Errorf("message missing type")
	}
	return msg, nil
}
