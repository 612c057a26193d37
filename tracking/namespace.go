package tracking

import (
	"context"
	"strings"
)

// Handler is a Sink view that prefixes every path with a namespace.
// Text attachments and lifecycle calls go to the wrapped sink unchanged.
type Handler struct {
	sink   Sink
	prefix string
}

// Namespace returns a view of sink rooted at prefix.
func Namespace(sink Sink, prefix string) *Handler {
	return &Handler{sink: sink, prefix: strings.Trim(prefix, "/")}
}

// Prefix returns the namespace of the handler.
func (h *Handler) Prefix() string {
	return h.prefix
}

// Root returns the wrapped sink.
func (h *Handler) Root() Sink {
	return h.sink
}

func (h *Handler) path(p string) string {
	if h.prefix == "" {
		return p
	}
	return h.prefix + "/" + p
}

func (h *Handler) AppendValue(ctx context.Context, path string, value float64, step int64) error {
	return h.sink.AppendValue(ctx, h.path(path), value, step)
}

func (h *Handler) SetValue(ctx context.Context, path string, value any) error {
	return h.sink.SetValue(ctx, h.path(path), value)
}

func (h *Handler) Upload(ctx context.Context, path string, blob Blob) error {
	return h.sink.Upload(ctx, h.path(path), blob)
}

func (h *Handler) AppendBlob(ctx context.Context, path string, blob Blob, step int64) error {
	return h.sink.AppendBlob(ctx, h.path(path), blob, step)
}

func (h *Handler) WriteText(ctx context.Context, tag, text string, step int64) error {
	return h.sink.WriteText(ctx, tag, text, step)
}

func (h *Handler) Flush(ctx context.Context) error {
	return h.sink.Flush(ctx)
}

func (h *Handler) Close(ctx context.Context) error {
	return RootOf(h).Close(ctx)
}

// TrySetVersionTag tags the root sink if it supports tagging.
func (h *Handler) TrySetVersionTag(ctx context.Context, key, value string) bool {
	vt, ok := RootOf(h).(VersionTagger)
	if !ok {
		return false
	}
	return vt.TrySetVersionTag(ctx, key, value)
}

var (
	_ Sink          = (*Handler)(nil)
	_ Rooted        = (*Handler)(nil)
	_ VersionTagger = (*Handler)(nil)
)
