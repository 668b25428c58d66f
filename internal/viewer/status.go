package viewer

// Status is the presentation state of a viewing session.
type Status int

const (
	StatusLoading Status = iota
	StatusConnecting
	StatusConnected
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Event drives status transitions. Start, Update, Stop and Terminate mirror
// the stream callbacks; Connect and Fail come from the viewer itself.
type Event int

const (
	EventConnect Event = iota
	EventStart
	EventUpdate
	EventStop
	EventTerminate
	EventFail
)

func (e Event) String() string {
	switch e {
	case EventConnect:
		return "connect"
	case EventStart:
		return "start"
	case EventUpdate:
		return "update"
	case EventStop:
		return "stop"
	case EventTerminate:
		return "terminate"
	case EventFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Transition returns the status that follows s on event e. Error is terminal.
func Transition(s Status, e Event) Status {
	if s == StatusError {
		return StatusError
	}
	switch e {
	case EventTerminate, EventFail:
		return StatusError
	case EventConnect:
		if s == StatusLoading {
			return StatusConnecting
		}
	case EventStart:
		if s == StatusConnecting {
			return StatusConnected
		}
	case EventStop:
		if s != StatusLoading {
			return StatusError
		}
	}
	return s
}
