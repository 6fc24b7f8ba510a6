package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/cptspacemanspiff/procwatch/internal/config"
)

const topicKey = "topic"

// topicHandler drops debug and info records whose "topic" attribute names a
// topic that is not enabled. Untagged records, warnings and errors always pass.
type topicHandler struct {
	inner   slog.Handler
	enabled map[string]bool
	topic   string // bound through WithAttrs
}

func newLogger(w io.Writer, topics []string) *slog.Logger {
	enabled := make(map[string]bool, len(topics))
	for _, t := range topics {
		enabled[t] = true
	}
	return slog.New(&topicHandler{
		inner:   slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}),
		enabled: enabled,
	})
}

func (h *topicHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *topicHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn || h.enabled[config.TopicAll] {
		return h.inner.Handle(ctx, r)
	}
	if topic := h.recordTopic(r); topic != "" && !h.enabled[topic] {
		return nil
	}
	return h.inner.Handle(ctx, r)
}

// recordTopic prefers the topic bound on the logger over one passed per call.
func (h *topicHandler) recordTopic(r slog.Record) string {
	if h.topic != "" {
		return h.topic
	}
	var topic string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == topicKey {
			topic = a.Value.String()
			return false
		}
		return true
	})
	return topic
}

func (h *topicHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.inner = h.inner.WithAttrs(attrs)
	for _, a := range attrs {
		if a.Key == topicKey {
			next.topic = a.Value.String()
		}
	}
	return &next
}

func (h *topicHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.inner = h.inner.WithGroup(name)
	return &next
}
