package stream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/chatrelay-api/internal/task"
)

// DefaultPacing is the delay between two relayed frames.
const DefaultPacing = 200 * time.Millisecond

// Frame markers written around the relayed events.
const (
	OpenFrame  = "event: open\n\n"
	CloseFrame = "event: close\n\n"
)

// Reader opens observer sessions on task topics.
type Reader struct {
	registry task.Registry
	broker   task.Broker
	pacing   time.Duration
	logger   *slog.Logger
}

// NewReader creates a Reader. A non-positive pacing disables the delay.
func NewReader(registry task.Registry, broker task.Broker, pacing time.Duration, logger *slog.Logger) *Reader {
	return &Reader{
		registry: registry,
		broker:   broker,
		pacing:   pacing,
		logger:   logger.With("component", "stream_reader"),
	}
}

// Open attaches the single observer of task id. It fails with
// task.ErrTaskNotFound for unknown tasks, task.ErrTaskFailed or
// task.ErrTaskFinished for terminal tasks and task.ErrStreamLocked when
// another observer is attached. No topic is left behind on failure.
func (r *Reader) Open(ctx context.Context, id uuid.UUID) (*Session, error) {
	if err := r.checkOpen(ctx, id); err != nil {
		return nil, err
	}

	if err := r.registry.AcquireStreamLock(ctx, id); err != nil {
		return nil, err
	}

	sub, err := r.broker.Subscribe(ctx, id)
	if err != nil {
		r.releaseLock(ctx, id)
		return nil, fmt.Errorf("failed to subscribe to task topic: %w", err)
	}

	// The task may have finished and dropped its topic between the first
	// check and Subscribe. The fresh topic would then never see an event.
	if err := r.checkOpen(ctx, id); err != nil {
		if cerr := sub.Close(); cerr != nil {
			r.logger.Error("failed to close subscription", "task_id", id, "error", cerr)
		}
		r.releaseLock(ctx, id)
		return nil, err
	}

	return &Session{reader: r, id: id, sub: sub, logger: r.logger.With("task_id", id)}, nil
}

func (r *Reader) checkOpen(ctx context.Context, id uuid.UUID) error {
	status, err := r.registry.Get(ctx, id)
	if err != nil {
		return err
	}
	switch status {
	case task.StatusFailed:
		return task.ErrTaskFailed
	case task.StatusFinished:
		return task.ErrTaskFinished
	}
	return nil
}

func (r *Reader) releaseLock(ctx context.Context, id uuid.UUID) {
	if err := r.registry.ReleaseStreamLock(context.WithoutCancel(ctx), id); err != nil {
		r.logger.Error("failed to release stream lock", "task_id", id, "error", err)
	}
}

// Session is one observer's attachment to a task topic.
type Session struct {
	reader *Reader
	id     uuid.UUID
	sub    task.Subscription
	logger *slog.Logger
	once   sync.Once
}

// Relay writes the open marker, then one data frame per event until a
// terminal event, and finally the close marker. It returns early with the
// context error when the observer goes away. The session is closed on return.
func (s *Session) Relay(ctx context.Context, w io.Writer) error {
	defer func() {
		if err := s.Close(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("failed to close stream session", "error", err)
		}
	}()

	if err := writeFrame(w, OpenFrame); err != nil {
		return err
	}

	events := s.sub.Events()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("observer disconnected")
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return writeFrame(w, CloseFrame)
			}
			data, err := e.Encode()
			if err != nil {
				return fmt.Errorf("failed to encode event: %w", err)
			}
			if err := writeFrame(w, "data: "+string(data)+"\n\n"); err != nil {
				return err
			}
			if e.IsTerminal() {
				return writeFrame(w, CloseFrame)
			}
			if err := s.pause(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *Session) pause(ctx context.Context) error {
	if s.reader.pacing <= 0 {
		return nil
	}
	timer := time.NewTimer(s.reader.pacing)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the stream lock and discards the topic. It is safe to
// call more than once.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		if cerr := s.sub.Close(); cerr != nil {
			err = fmt.Errorf("failed to close subscription: %w", cerr)
		}
		if rerr := s.reader.registry.ReleaseStreamLock(ctx, s.id); rerr != nil && err == nil {
			err = fmt.Errorf("failed to release stream lock: %w", rerr)
		}
	})
	return err
}

func writeFrame(w io.Writer, frame string) error {
	if _, err := io.WriteString(w, frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
