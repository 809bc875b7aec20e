package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
)

// Capture records JSON log lines written by concurrent goroutines so tests
// can assert on individual entries.
type Capture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewCapture returns a debug-level JSON logger writing into a new Capture.
func NewCapture() (*slog.Logger, *Capture) {
	c := &Capture{}
	return slog.New(slog.NewJSONHandler(c, &slog.HandlerOptions{Level: slog.LevelDebug})), c
}

func (c *Capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

// Entries decodes every captured line, failing t on malformed output.
func (c *Capture) Entries(t testing.TB) []map[string]any {
	t.Helper()
	c.mu.Lock()
	data := bytes.Clone(c.buf.Bytes())
	c.mu.Unlock()

	var entries []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			t.Fatalf("malformed log line %q: %v", sc.Text(), err)
		}
		entries = append(entries, entry)
	}
	return entries
}

// Find returns the first entry logged with message msg.
func (c *Capture) Find(t testing.TB, msg string) (map[string]any, bool) {
	t.Helper()
	for _, entry := range c.Entries(t) {
		if entry[slog.MessageKey] == msg {
			return entry, true
		}
	}
	return nil, false
}
