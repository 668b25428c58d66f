package signal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/logging"

	"remoteview/native/internal/domain"
	"remoteview/native/internal/logx"
)

const (
	DefaultPingInterval = 20 * time.Second
	writeWait           = 5 * time.Second
)

// Client manages the WebSocket connection to the signaling proxy.
type Client struct {
	conn     *websocket.Conn
	stream   domain.StreamConfig
	clientID string
	handler  domain.Handler
	log      logging.LeveledLogger

	// PingInterval may be changed before Connect.
	PingInterval time.Duration

	mu        sync.Mutex
	closed    chan struct{}
	closeOnce sync.Once
}

// NewClient creates a new signaling client for one stream.
func NewClient(stream domain.StreamConfig, handler domain.Handler, lf logging.LoggerFactory) *Client {
	return &Client{
		stream:       stream,
		clientID:     uuid.NewString(),
		handler:      handler,
		log:          logx.Scoped(lf, "signal"),
		PingInterval: DefaultPingInterval,
		closed:       make(chan struct{}),
	}
}

// ClientID is the identifier this client announces to the proxy.
func (c *Client) ClientID() string { return c.clientID }

// Connect dials the signaling WebSocket and starts the read loop. A failed
// dial is reported as a *domain.ConnectionError.
func (c *Client) Connect(ctx context.Context) error {
	target := c.stream.Signaling
	u := target.URL()
	c.log.Infof("connecting to %s", u)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return &domain.ConnectionError{Host: target.Server, Port: target.Port, Err: err}
	}
	c.conn = conn

	c.SendJoin()

	go c.readLoop()
	go c.pingLoop()

	return nil
}

// Close sends a leave message and shuts down the WebSocket connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			c.sendJSON(message{Type: typeLeave, SessionID: c.stream.SessionID})
		}
		close(c.closed)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Client) sendJSON(msg message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Errorf("marshal error: %v", err)
		return
	}
	c.log.Tracef(">>> %s", data)
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Warnf("write error: %v", err)
	}
}

// SendJoin asks the proxy to attach this client to the session.
func (c *Client) SendJoin() {
	media := c.stream.Media
	display := c.stream.Display
	c.sendJSON(message{
		Type:       typeJoin,
		SessionID:  c.stream.SessionID,
		ClientID:   c.clientID,
		StreamPort: c.stream.StreamPort,
		Media:      &media,
		Display:    &display,
	})
}

// SendSDPOffer sends the local SDP offer.
func (c *Client) SendSDPOffer(sdp string) {
	c.sendJSON(message{
		Type:      typeOffer,
		SessionID: c.stream.SessionID,
		SDP:       &domain.SDPPayload{Type: "offer", SDP: sdp},
	})
}

// SendICECandidate sends a local ICE candidate.
func (c *Client) SendICECandidate(sdpMid string, sdpMLineIndex int, candidate string) {
	c.sendJSON(message{
		Type:      typeCandidate,
		SessionID: c.stream.SessionID,
		Candidate: &domain.ICECandidatePayload{
			SDPMid:        sdpMid,
			SDPMLineIndex: sdpMLineIndex,
			Candidate:     candidate,
		},
	})
}

func (c *Client) readLoop() {
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}
			c.log.Warnf("read error: %v", err)
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				err = nil
			}
			c.handler.OnDisconnect(err)
			return
		}

		c.log.Tracef("<<< %s", data)

		msg, err := parseMessage(data)
		if err != nil {
			c.log.Warnf("bad message: %v", err)
			continue
		}

		if c.dispatch(msg) {
			return
		}
	}
}

// dispatch routes msg to the handler and reports whether the session is over.
func (c *Client) dispatch(msg message) bool {
	switch msg.Type {
	case typeJoined:
		c.log.Infof("joined session %s", c.stream.SessionID)
		c.handler.OnJoined()

	case typeAnswer:
		c.log.Debug("received SDP answer")
		c.handler.OnSDPAnswer(*msg.SDP)

	case typeCandidate:
		c.log.Debug("received remote ICE candidate")
		c.handler.OnRemoteICECandidate(*msg.Candidate)

	case typeError:
		c.log.Warnf("proxy error: code=%s msg=%s", msg.Code, msg.Message)
		c.handler.OnRemoteError(msg.Code, msg.Message)

	case typeBye:
		c.log.Infof("proxy ended session: %s", msg.Reason)
		c.handler.OnBye(msg.Reason)
		return true

	default:
		c.log.Debugf("unhandled message type: %s", msg.Type)
	}
	return false
}

func (c *Client) pingLoop() {
	if c.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.mu.Lock()
			err := c.conn.WriteControl(
				websocket.PingMessage,
				[]byte{},
				time.Now().Add(writeWait),
			)
			c.mu.Unlock()
			if err != nil {
				if !c.isClosed() && !errors.Is(err, websocket.ErrCloseSent) {
					c.log.Warnf("ping error: %v", err)
				}
				return
			}
		}
	}
}
