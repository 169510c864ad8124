// Package external defines the collaborators the dashboard core talks to but
// does not own: a link opener, a clipboard and a share sheet.
package external

import (
	"context"
	"errors"
	"log/slog"

	"github.com/coursedash/dashboard/internal/platform/logfields"
)

// ErrShareUnsupported is returned by share services with no native share
// target. Callers fall back to the clipboard.
var ErrShareUnsupported = errors.New("share is not supported")

type LinkOpener interface {
	Open(ctx context.Context, url string) error
}

type Clipboard interface {
	Copy(ctx context.Context, text string) error
}

type SharePayload struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

type ShareService interface {
	Share(ctx context.Context, payload SharePayload) error
}

// LogOpener records the URL instead of opening it. It is the default for the
// headless server.
type LogOpener struct {
	Logger *slog.Logger
}

func (o LogOpener) Open(ctx context.Context, url string) error {
	logger(o.Logger).InfoContext(ctx, "open link", logfields.URL(url))
	return nil
}

type LogClipboard struct {
	Logger *slog.Logger
}

func (c LogClipboard) Copy(ctx context.Context, text string) error {
	logger(c.Logger).InfoContext(ctx, "copy to clipboard", slog.Int("length", len(text)))
	return nil
}

// NoShare has no share target and always reports ErrShareUnsupported.
type NoShare struct{}

func (NoShare) Share(context.Context, SharePayload) error { return ErrShareUnsupported }

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
