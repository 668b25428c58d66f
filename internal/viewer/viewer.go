package viewer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/logging"

	"remoteview/native/internal/domain"
	"remoteview/native/internal/logx"
)

// Viewer coordinates the signaling and WebRTC flows and owns the session
// status. It implements domain.Handler and domain.StreamEvents.
type Viewer struct {
	peer   domain.Peer
	signal domain.Signaler
	stream domain.StreamConfig
	cancel context.CancelFunc
	log    logging.LeveledLogger

	mu       sync.Mutex
	status   Status
	err      error
	onStatus func(Status, error)
}

// New creates a Viewer with the given peer and context cancel function.
// Call SetSignaler before use to complete the circular dependency.
func New(peer domain.Peer, stream domain.StreamConfig, cancel context.CancelFunc, lf logging.LoggerFactory) *Viewer {
	return &Viewer{
		peer:   peer,
		stream: stream,
		cancel: cancel,
		log:    logx.Scoped(lf, "viewer"),
		status: StatusLoading,
	}
}

// SetSignaler injects the signaler after construction to resolve the
// circular dependency (Viewer needs Signaler, Signal needs Handler).
func (v *Viewer) SetSignaler(s domain.Signaler) {
	v.signal = s
}

// OnStatus registers fn to be called after every status change.
func (v *Viewer) OnStatus(fn func(Status, error)) {
	v.mu.Lock()
	v.onStatus = fn
	v.mu.Unlock()
}

// Status returns the current status and, once in StatusError, the cause.
func (v *Viewer) Status() (Status, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status, v.err
}

// Err returns the error that moved the viewer into StatusError, if any.
func (v *Viewer) Err() error {
	_, err := v.Status()
	return err
}

func (v *Viewer) fire(e Event, cause error) {
	v.fireUnless(e, cause, nil)
}

// fireUnless applies e unless skip reports true for the current status. The
// check and the transition happen under one lock. It returns the status seen
// before the event.
func (v *Viewer) fireUnless(e Event, cause error, skip func(Status) bool) Status {
	v.mu.Lock()
	prev := v.status
	if skip != nil && skip(prev) {
		v.mu.Unlock()
		return prev
	}
	next := Transition(prev, e)
	if next == prev {
		v.mu.Unlock()
		return prev
	}
	v.status = next
	if next == StatusError {
		v.err = cause
	}
	fn := v.onStatus
	err := v.err
	v.mu.Unlock()

	v.log.Infof("status %s -> %s (%s)", prev, next, e)
	if fn != nil {
		fn(next, err)
	}
	if next == StatusError {
		v.cancel()
	}
	return prev
}

func (v *Viewer) signalingError(err error) error {
	return &domain.ConnectionError{Host: v.stream.Signaling.Server, Port: v.stream.Signaling.Port, Err: err}
}

func (v *Viewer) mediaError(err error) error {
	return &domain.ConnectionError{Host: v.stream.Media.Host, Port: v.stream.Media.Port, Err: err}
}

// Start moves to connecting and opens the signaling connection.
func (v *Viewer) Start(ctx context.Context) error {
	v.fire(EventConnect, nil)
	if err := v.signal.Connect(ctx); err != nil {
		v.log.Errorf("signal connect: %v", err)
		v.fire(EventFail, err)
		return err
	}
	return nil
}

// RunStats reports peer statistics through OnUpdate every interval until ctx
// is done. A non-positive interval disables reporting.
func (v *Viewer) RunStats(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := v.peer.Stats()
			if err != nil {
				v.log.Warnf("stats: %v", err)
				continue
			}
			v.OnUpdate(stats)
		}
	}
}

// HandleLinkState maps peer connection states onto stream callbacks.
func (v *Viewer) HandleLinkState(state domain.LinkState) {
	switch state {
	case domain.LinkConnected:
		v.OnStart()
	case domain.LinkDisconnected:
		v.log.Warnf("media link disconnected, waiting for ICE to recover")
	case domain.LinkFailed:
		v.OnStop(fmt.Errorf("media link failed"))
	}
}

func (v *Viewer) OnJoined() {
	v.log.Info("joined session, creating offer")

	sdp, err := v.peer.CreateOffer()
	if err != nil {
		v.fire(EventFail, v.signalingError(fmt.Errorf("create offer: %w", err)))
		return
	}
	v.signal.SendSDPOffer(sdp)
}

func (v *Viewer) OnSDPAnswer(sdp domain.SDPPayload) {
	if err := v.peer.SetRemoteDescription(sdp); err != nil {
		v.log.Errorf("set remote description: %v", err)
		v.fire(EventFail, v.signalingError(err))
	}
}

func (v *Viewer) OnRemoteICECandidate(candidate domain.ICECandidatePayload) {
	go func() {
		if err := v.peer.AddRemoteICECandidate(candidate); err != nil {
			v.log.Warnf("add remote ICE candidate: %v", err)
		}
	}()
}

func (v *Viewer) OnRemoteError(code, message string) {
	v.fire(EventFail, v.signalingError(fmt.Errorf("proxy error %s: %s", code, message)))
}

func (v *Viewer) OnBye(reason string) {
	v.OnTerminate(reason)
}

// OnDisconnect handles loss of the signaling connection. Once media is
// flowing the session continues without it.
func (v *Viewer) OnDisconnect(err error) {
	cause := err
	if cause == nil {
		cause = fmt.Errorf("signaling closed before the stream started")
	}
	connected := func(s Status) bool { return s == StatusConnected }
	if prev := v.fireUnless(EventFail, v.signalingError(cause), connected); prev == StatusConnected {
		v.log.Warnf("signaling connection lost: %v", err)
	}
}

func (v *Viewer) OnStart() {
	v.fire(EventStart, nil)
}

func (v *Viewer) OnUpdate(stats domain.StreamStats) {
	v.log.Debugf("stats: bytes=%d packets=%d lost=%d", stats.BytesReceived, stats.PacketsReceived, stats.PacketsLost)
	v.fire(EventUpdate, nil)
}

func (v *Viewer) OnStop(err error) {
	v.fire(EventStop, v.mediaError(err))
}

func (v *Viewer) OnTerminate(reason string) {
	v.fire(EventTerminate, fmt.Errorf("%w: %s", domain.ErrTerminated, reason))
}
