package external

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLogOpener_LogsURL(t *testing.T) {
	var buf bytes.Buffer
	opener := LogOpener{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	if err := opener.Open(context.Background(), "https://googlemeet/?call=Sam"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if !strings.Contains(buf.String(), "https://googlemeet/?call=Sam") {
		t.Fatalf("expected url in log, got %q", buf.String())
	}
}

func TestNoShare(t *testing.T) {
	if err := (NoShare{}).Share(context.Background(), SharePayload{}); !errors.Is(err, ErrShareUnsupported) {
		t.Fatalf("expected ErrShareUnsupported, got %v", err)
	}
}

func TestLogClipboard_NilLogger(t *testing.T) {
	if err := (LogClipboard{}).Copy(context.Background(), "hello"); err != nil {
		t.Fatalf("copy: %v", err)
	}
}
