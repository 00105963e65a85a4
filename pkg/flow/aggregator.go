package flow

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/wellnesscouncil/relay/pkg/errors"
	"github.com/wellnesscouncil/relay/pkg/logging"
)

// Result is the terminal outcome of consuming one stream to
// completion. Reply is the verbatim concatenation of every output
// chunk in arrival order.
type Result struct {
	Reply            string
	CompletionReason string
	Chunks           int
	UnknownEvents    int
}

// Aggregator consumes a Stream to its terminal state and produces one
// Result. It holds no per-request state; each Collect call owns its
// own accumulator.
type Aggregator struct {
	eventTimeout time.Duration
	log          *logging.Logger
	onEvent      func(kind string)
}

// NewAggregator creates an aggregator that gives the remote side at
// most eventTimeout between consecutive events. A nil logger disables
// logging.
func NewAggregator(eventTimeout time.Duration, log *logging.Logger) *Aggregator {
	if log == nil {
		log = logging.NewNop()
	}
	return &Aggregator{
		eventTimeout: eventTimeout,
		log:          log,
	}
}

// OnEvent registers a callback invoked with each received event's
// kind. Used to feed per-kind counters.
func (a *Aggregator) OnEvent(fn func(kind string)) {
	a.onEvent = fn
}

// Collect drains the stream until a completion event, a transport
// failure, a cancellation, or an event timeout. On any failure the
// partial text is discarded and only the error is returned.
func (a *Aggregator) Collect(ctx context.Context, st Stream) (*Result, error) {
	defer st.Close()

	var (
		reply   strings.Builder
		chunks  int
		unknown int
	)

	timer := time.NewTimer(a.eventTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "request deadline exceeded while streaming")
			}
			return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTransport, "request canceled before stream completed")

		case <-timer.C:
			return nil, errors.New(errors.ErrCodeTimeout,
				fmt.Sprintf("no stream event within %s", a.eventTimeout))

		case ev, ok := <-st.Events():
			if !ok {
				// Channel closed without a completion event: either
				// the transport reported why, or the drop is silent.
				if err := st.Err(); err != nil {
					return nil, err
				}
				return nil, errors.New(errors.ErrCodeTransport, "stream ended before completion event")
			}

			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(a.eventTimeout)

			kind := Kind(ev)
			if a.onEvent != nil {
				a.onEvent(kind)
			}
			a.log.Debug(logging.CategoryFlow, "event_received", "", map[string]any{
				"kind": kind,
			})

			switch e := ev.(type) {
			case OutputChunk:
				reply.WriteString(e.Text)
				chunks++
			case Completion:
				return &Result{
					Reply:            reply.String(),
					CompletionReason: e.Reason,
					Chunks:           chunks,
					UnknownEvents:    unknown,
				}, nil
			case Unknown:
				unknown++
			}
		}
	}
}
