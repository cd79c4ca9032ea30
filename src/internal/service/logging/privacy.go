package logging

import (
	"context"
	"log/slog"

	"logseqbridge/src/internal/domain"
)

// PrivacyHandler drops request-detail records unless debug mode is on.
// Errors and lifecycle records always pass.
type PrivacyHandler struct {
	next     slog.Handler
	debug    bool
	category string
}

func NewPrivacyHandler(next slog.Handler, debug bool) *PrivacyHandler {
	return &PrivacyHandler{next: next, debug: debug}
}

func (h *PrivacyHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *PrivacyHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.allow(r) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *PrivacyHandler) allow(r slog.Record) bool {
	if r.Level >= slog.LevelError || h.debug {
		return true
	}
	category := h.category
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == domain.CategoryKey {
			category = a.Value.String()
			return false
		}
		return true
	})
	return category == domain.CategoryLifecycle
}

func (h *PrivacyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	for _, a := range attrs {
		if a.Key == domain.CategoryKey {
			clone.category = a.Value.String()
		}
	}
	clone.next = h.next.WithAttrs(attrs)
	return &clone
}

func (h *PrivacyHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.next = h.next.WithGroup(name)
	return &clone
}

// Lifecycle returns a logger whose records are tagged as server lifecycle events.
func Lifecycle(l *slog.Logger) *slog.Logger {
	return l.With(domain.CategoryKey, domain.CategoryLifecycle)
}

// Request returns a logger for privacy-sensitive request detail.
func Request(l *slog.Logger) *slog.Logger {
	return l.With(domain.CategoryKey, domain.CategoryRequest)
}

// Failure returns a logger for error records.
func Failure(l *slog.Logger) *slog.Logger {
	return l.With(domain.CategoryKey, domain.CategoryError)
}
