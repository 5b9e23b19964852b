package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// BusLogHandler is a slog.Handler that ships log records to an MQTT topic
// as JSON. Publish failures are swallowed: the log path must never feed
// back into itself.
type BusLogHandler struct {
	pub   Publisher
	topic string
	level slog.Level
	attrs []slog.Attr
}

// NewBusLogHandler returns a handler publishing records at or above level
// to topic through pub.
func NewBusLogHandler(pub Publisher, topic string, level slog.Level) *BusLogHandler {
	return &BusLogHandler{pub: pub, topic: topic, level: level}
}

func (h *BusLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *BusLogHandler) Handle(_ context.Context, record slog.Record) error {
	entry := map[string]any{
		"timestamp": record.Time.UTC().Format(time.RFC3339),
		"level":     record.Level.String(),
		"message":   record.Message,
	}
	for _, attr := range h.attrs {
		entry[attr.Key] = attr.Value.Resolve().Any()
	}
	record.Attrs(func(attr slog.Attr) bool {
		entry[attr.Key] = attr.Value.Resolve().Any()
		return true
	})

	payload, err := json.Marshal(entry)
	if err != nil {
		return nil
	}
	_ = h.pub.Publish(h.topic, 1, false, payload)
	return nil
}

func (h *BusLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *BusLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), slog.String("group", name))
	return &clone
}
