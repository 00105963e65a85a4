package flow

// Event is one unit of the remote pipeline's streamed output. The
// concrete types are OutputChunk, Completion, and Unknown.
type Event interface {
	isEvent()
}

// OutputChunk carries one fragment of the reply text.
type OutputChunk struct {
	Text string
}

// Completion signals the remote pipeline finished producing output.
// Reason is recorded for observability only and never changes the reply.
type Completion struct {
	Reason string
}

// Unknown is an event kind the relay does not interpret. It is
// tolerated and skipped so newer pipeline versions do not break older
// relays.
type Unknown struct {
	Kind string
}

func (OutputChunk) isEvent() {}
func (Completion) isEvent()  {}
func (Unknown) isEvent()     {}

// Kind returns a stable label for an event, used in logs and metrics.
func Kind(ev Event) string {
	switch e := ev.(type) {
	case OutputChunk:
		return "output_chunk"
	case Completion:
		return "completion"
	case Unknown:
		if e.Kind != "" {
			return "unknown:" + e.Kind
		}
		return "unknown"
	default:
		return "unknown"
	}
}

// Stream is a pull-driven sequence of events from one invocation.
// Events yields events in arrival order and is closed when the remote
// side stops sending; Err reports any transport failure observed after
// the channel closes.
type Stream interface {
	Events() <-chan Event
	Err() error
	Close() error
}
