package generation

import (
	"context"
	"fmt"

	"github.com/phrazzld/chatrelay-api/internal/domain"
)

// Request is the provider-neutral input of one generation run.
type Request struct {
	Messages []domain.Message
	Params   domain.GenerationParams
}

// EventKind tags an Event.
type EventKind int

const (
	// EventRunning is sent once before any content is requested from upstream.
	EventRunning EventKind = iota + 1
	// EventDelta carries the cumulative content generated so far.
	EventDelta
	// EventFinish carries the full content and the token cost reported by upstream.
	EventFinish
)

// String returns the name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventRunning:
		return "running"
	case EventDelta:
		return "delta"
	case EventFinish:
		return "finish"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one step of a generation run.
type Event struct {
	Kind      EventKind
	Content   string
	TokenCost int
}

// Adapter drives one upstream provider.
//
// Generate sends EventRunning first, then zero or more EventDelta with
// cumulative content. On success it sends exactly one EventFinish and
// returns nil. On failure it returns an error and sends no EventFinish.
// Generate never closes events.
type Adapter interface {
	Generate(ctx context.Context, req Request, events chan<- Event) error
}

// Finish reasons accepted from upstream, after normalization.
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonContentFilter = "content_filter"
	FinishReasonNull          = "null"
)

// CheckFinishReason classifies a normalized upstream finish reason. It
// returns done=false when the stream is still continuing and an
// ErrProtocolViolation for reasons outside the known set.
func CheckFinishReason(reason string) (done bool, err error) {
	switch reason {
	case "", FinishReasonNull:
		return false, nil
	case FinishReasonStop, FinishReasonLength, FinishReasonContentFilter:
		return true, nil
	}
	return false, fmt.Errorf("%w: unexpected finish reason %q", ErrProtocolViolation, reason)
}

// Send delivers ev on events unless ctx is done first.
func Send(ctx context.Context, events chan<- Event, ev Event) error {
	select {
	case events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
