package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LogEvent is a compact copy of a log record kept for status reporting.
type LogEvent struct {
	Timestamp time.Time         `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	EventType string            `json:"event_type,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// RecentBuffer retains the most recent log events at or above a level.
// Attach it to a logger with TeeLogger(base, buffer.Handler()).
type RecentBuffer struct {
	mu       sync.Mutex
	capacity int
	level    slog.Level
	events   []LogEvent
}

// NewRecentBuffer returns a bounded buffer. Capacity defaults to 50.
func NewRecentBuffer(capacity int, level slog.Level) *RecentBuffer {
	if capacity <= 0 {
		capacity = 50
	}
	return &RecentBuffer{capacity: capacity, level: level}
}

// Events returns a copy of the buffered events, oldest first.
func (b *RecentBuffer) Events() []LogEvent {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]LogEvent(nil), b.events...)
}

// Handler returns a slog.Handler that records into the buffer.
func (b *RecentBuffer) Handler() slog.Handler {
	return &recentHandler{buffer: b}
}

func (b *RecentBuffer) append(evt LogEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == b.capacity {
		copy(b.events, b.events[1:])
		b.events = b.events[:b.capacity-1]
	}
	b.events = append(b.events, evt)
}

type recentHandler struct {
	buffer *RecentBuffer
	attrs  []slog.Attr
	groups []string
}

func (h *recentHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.buffer.level
}

func (h *recentHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.buffer.level {
		return nil
	}
	kvs := make([]kv, 0, len(h.attrs)+record.NumAttrs())
	flattenAttrs(&kvs, h.groups, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&kvs, h.groups, attr)
		return true
	})
	evt := LogEvent{
		Timestamp: record.Time.UTC(),
		Level:     levelLabel(record.Level),
		Message:   record.Message,
	}
	for _, kv := range dedupeKVsByKey(kvs) {
		switch kv.key {
		case FieldComponent:
			evt.Component = attrString(kv.value)
		case FieldEventType:
			evt.EventType = attrString(kv.value)
		default:
			if evt.Fields == nil {
				evt.Fields = make(map[string]string)
			}
			evt.Fields[kv.key] = attrString(kv.value)
		}
	}
	h.buffer.append(evt)
	return nil
}

func (h *recentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recentHandler{
		buffer: h.buffer,
		attrs:  append(append([]slog.Attr(nil), h.attrs...), attrs...),
		groups: h.groups,
	}
}

func (h *recentHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &recentHandler{
		buffer: h.buffer,
		attrs:  h.attrs,
		groups: append(append([]string(nil), h.groups...), name),
	}
}
