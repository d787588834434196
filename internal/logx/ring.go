package logx

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const defaultRingSize = 200

// Entry is one formatted log record kept for the logs panel.
type Entry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   string
}

func (e Entry) String() string {
	line := fmt.Sprintf("%s %-5s %s", e.Time.Format("15:04:05"), e.Level.String(), e.Message)
	if e.Attrs != "" {
		line += " " + e.Attrs
	}
	return line
}

// Ring keeps the most recent log entries.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

func NewRing(size int) *Ring {
	if size <= 0 {
		size = defaultRingSize
	}
	return &Ring{entries: make([]Entry, size)}
}

func (r *Ring) add(e Entry) {
	r.mu.Lock()
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()
}

// Entries returns the stored entries oldest first.
func (r *Ring) Entries() []Entry {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]Entry(nil), r.entries[:r.next]...)
	}
	out := make([]Entry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	return append(out, r.entries[:r.next]...)
}

// Handler returns a slog.Handler writing into the ring.
func (r *Ring) Handler(level slog.Leveler) slog.Handler {
	return &ringHandler{ring: r, level: level}
}

type ringHandler struct {
	ring   *Ring
	level  slog.Leveler
	prefix string
	attrs  []string
}

func (h *ringHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *ringHandler) Handle(_ context.Context, rec slog.Record) error {
	parts := append([]string(nil), h.attrs...)
	rec.Attrs(func(a slog.Attr) bool {
		parts = append(parts, h.prefix+a.Key+"="+a.Value.String())
		return true
	})
	h.ring.add(Entry{
		Time:    rec.Time,
		Level:   rec.Level,
		Message: rec.Message,
		Attrs:   strings.Join(parts, " "),
	})
	return nil
}

func (h *ringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]string(nil), h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, h.prefix+a.Key+"="+a.Value.String())
	}
	return &next
}

func (h *ringHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}
