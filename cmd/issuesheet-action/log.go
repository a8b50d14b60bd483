package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sethvargo/go-githubactions"
)

// actionHandler writes records as workflow commands, so warnings and
// errors are annotated on the run.
type actionHandler struct {
	action *githubactions.Action
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string
}

func newActionHandler(action *githubactions.Action, level slog.Leveler) *actionHandler {
	return &actionHandler{action: action, level: level}
}

func (h *actionHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *actionHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		b.WriteString(" " + a.String())
	}
	r.Attrs(func(a slog.Attr) bool {
		a.Key = h.prefix + a.Key
		b.WriteString(" " + a.String())
		return true
	})
	msg := b.String()

	switch {
	case r.Level >= slog.LevelError:
		h.action.Errorf("%s", msg)
	case r.Level >= slog.LevelWarn:
		h.action.Warningf("%s", msg)
	case r.Level >= slog.LevelInfo:
		h.action.Infof("%s", msg)
	default:
		h.action.Debugf("%s", msg)
	}
	return nil
}

func (h *actionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *actionHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}
