package frontend

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coursedash/dashboard/internal/app/dashboard"
)

func TestSummaryPanel_RendersCountsAndEscapes(t *testing.T) {
	snap := dashboard.MustDefaultSnapshot(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))
	snap.Tasks.Tasks[1].Status = "overdue"
	snap.Tasks.Tasks[1].Title = "<script>alert(1)</script>"
	summary := dashboard.Summarize(snap, 3)

	var buf bytes.Buffer
	if err := SummaryPanel(summary).Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	html := buf.String()
	if !strings.HasPrefix(html, `<main id="summary" data-version="3">`) {
		t.Fatalf("unexpected root element: %.60s", html)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("task title was not escaped")
	}
	if !strings.Contains(html, "&lt;script&gt;") {
		t.Fatalf("escaped title missing")
	}
	if !strings.Contains(html, ">600<") {
		t.Fatalf("earned points missing from %s", html)
	}
}

func TestPage_IncludesShell(t *testing.T) {
	snap := dashboard.MustDefaultSnapshot(time.Now())
	var buf bytes.Buffer
	if err := Page(snap, dashboard.Summarize(snap, 0)).Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	html := buf.String()
	for _, want := range []string{"<!doctype html>", "/static/styles.css", `id="summary"`, "Salman"} {
		if !strings.Contains(html, want) {
			t.Fatalf("page missing %q", want)
		}
	}
}

func TestStaticHandler_ServesStyles(t *testing.T) {
	rec := httptest.NewRecorder()
	StaticHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/styles.css", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "--accent") {
		t.Fatalf("unexpected stylesheet body")
	}
}
