// Package dashboardapi exposes the store, its selectors and the workflows over
// HTTP, and streams summary patches to the page over SSE.
package dashboardapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coursedash/dashboard/internal/app/bus"
	"github.com/coursedash/dashboard/internal/app/dashboard"
	"github.com/coursedash/dashboard/internal/app/workflow"
	"github.com/coursedash/dashboard/internal/contracts"
	"github.com/coursedash/dashboard/internal/platform/apperr"
	"github.com/coursedash/dashboard/internal/platform/external"
	"github.com/coursedash/dashboard/internal/platform/logfields"
	"github.com/coursedash/dashboard/services/frontend"
)

// Workflows are the orchestrators the API can start.
type Workflows struct {
	Session    *workflow.Session
	Verifier   *workflow.Verifier
	Meeting    *workflow.MeetingJoiner
	Stories    *workflow.StoryJoiner
	Downloader *workflow.Downloader
	Sharer     *workflow.Sharer
	Auth       *workflow.Authenticator
}

type Handler struct {
	Store         *dashboard.Store
	Workflows     Workflows
	Metrics       http.Handler
	AllowedOrigin string
	Now           func() time.Time
	NewID         func() string
	Logger        *slog.Logger
}

func NewHandler(store *dashboard.Store, workflows Workflows, metricsHandler http.Handler, allowedOrigin string) *Handler {
	return &Handler{
		Store:         store,
		Workflows:     workflows,
		Metrics:       metricsHandler,
		AllowedOrigin: allowedOrigin,
		Now:           func() time.Time { return time.Now().UTC() },
		NewID:         uuid.NewString,
		Logger:        slog.Default(),
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.corsMiddleware)
	r.Options("/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/healthz", h.handleHealth)
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics)
	}
	r.Get("/", h.handlePage)
	r.Handle("/static/*", http.StripPrefix("/static/", frontend.StaticHandler()))
	r.Get("/events", h.handleEvents)

	r.Get("/api/v1/snapshot", h.handleSnapshot)
	r.Get("/api/v1/selectors", h.handleSelectors)
	r.Post("/api/v1/commands", h.handleCommand)

	r.Post("/api/v1/verify", h.handleVerify)
	r.Post("/api/v1/verify/resend", h.handleVerifyResend)

	r.Post("/api/v1/meeting/join", h.handleMeetingJoin)
	r.Post("/api/v1/meeting/copy-link", h.handleMeetingCopyLink)
	r.Post("/api/v1/meeting/calendar", h.handleMeetingCalendar)

	r.Post("/api/v1/stories/join", h.handleStoriesJoin)
	r.Post("/api/v1/stories/download", h.handleStoriesDownload)
	r.Post("/api/v1/stories/share", h.handleStoriesShare)

	r.Post("/api/v1/auth/login", h.handleLogin)
	r.Post("/api/v1/auth/logout", h.handleLogout)
	return r
}

type snapshotResponse struct {
	Version  uint64             `json:"version"`
	Snapshot dashboard.Snapshot `json:"snapshot"`
}

type commandResponse struct {
	Version uint64 `json:"version"`
}

type acceptedResponse struct {
	Workflow string `json:"workflow"`
	Status   string `json:"status"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type linkResponse struct {
	URL string `json:"url"`
}

type shareResponse struct {
	Method workflow.ShareMethod `json:"method"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if h.Store.Closed() {
		http.Error(w, "store closed", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	snap, version := h.Store.SnapshotVersion()
	templ.Handler(frontend.Page(snap, dashboard.Summarize(snap, version))).ServeHTTP(w, r)
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap, version := h.Store.SnapshotVersion()
	h.writeJSON(w, http.StatusOK, snapshotResponse{Version: version, Snapshot: snap})
}

func (h *Handler) handleSelectors(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, dashboard.Summarize(h.Store.SnapshotVersion()))
}

func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	var envelope contracts.CommandEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	cmd, err := dashboard.DecodeCommand(envelope.Type, envelope.Payload)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if _, err := h.Store.Dispatch(dashboard.Stamp(cmd, h.Now(), h.NewID)); err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, commandResponse{Version: h.Store.Version()})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	v := h.Workflows.Verifier
	req, err := v.Begin(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.startAsync(w, workflow.WorkflowVerify, func(ctx context.Context) error {
		return v.Complete(ctx, req)
	})
}

func (h *Handler) handleVerifyResend(w http.ResponseWriter, r *http.Request) {
	if err := h.Workflows.Verifier.Resend(r.Context()); err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, commandResponse{Version: h.Store.Version()})
}

func (h *Handler) handleMeetingJoin(w http.ResponseWriter, r *http.Request) {
	j := h.Workflows.Meeting
	m, err := j.Begin(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.startAsync(w, workflow.WorkflowMeetingJoin, func(ctx context.Context) error {
		return j.Complete(ctx, m)
	})
}

func (h *Handler) handleMeetingCopyLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.Workflows.Meeting.CopyLink(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, linkResponse{URL: link})
}

func (h *Handler) handleMeetingCalendar(w http.ResponseWriter, r *http.Request) {
	link, err := h.Workflows.Meeting.AddToCalendar(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, linkResponse{URL: link})
}

func (h *Handler) handleStoriesJoin(w http.ResponseWriter, r *http.Request) {
	j := h.Workflows.Stories
	if err := j.Begin(r.Context()); err != nil {
		h.writeFailure(w, err)
		return
	}
	h.startAsync(w, workflow.WorkflowStoryJoin, j.Complete)
}

func (h *Handler) handleStoriesDownload(w http.ResponseWriter, r *http.Request) {
	d := h.Workflows.Downloader
	if err := d.Begin(r.Context()); err != nil {
		h.writeFailure(w, err)
		return
	}
	h.startAsync(w, workflow.WorkflowDownload, d.Run)
}

func (h *Handler) handleStoriesShare(w http.ResponseWriter, r *http.Request) {
	var payload external.SharePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	method, err := h.Workflows.Sharer.Share(r.Context(), payload)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, shareResponse{Method: method})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.Workflows.Auth.Login(r.Context(), req.Email, req.Password); err != nil {
		if errors.Is(err, workflow.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, workflow.MsgInvalidCredentials)
			return
		}
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.Store.Snapshot().Auth)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.Workflows.Auth.Logout(r.Context()); err != nil {
		h.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// startAsync hands the rest of a workflow to the session and answers 202.
func (h *Handler) startAsync(w http.ResponseWriter, name string, fn func(ctx context.Context) error) {
	if err := h.Workflows.Session.Go(name, fn); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	h.writeJSON(w, http.StatusAccepted, acceptedResponse{Workflow: name, Status: "started"})
}

// handleEvents streams the summary panel as a datastar patch after every
// store change. Bursts collapse into one patch of the latest state.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	changed := make(chan struct{}, 1)
	unsubscribe := h.Store.Subscribe(func(dashboard.Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	sendPatch := func() error {
		snap, version := h.Store.SnapshotVersion()
		var buf bytes.Buffer
		if err := frontend.SummaryPanel(dashboard.Summarize(snap, version)).Render(r.Context(), &buf); err != nil {
			return err
		}
		if err := writePatch(w, "#"+frontend.SummaryID, "outer", buf.String()); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := sendPatch(); err != nil {
		h.Logger.Warn("sse initial patch failed", logfields.Error(err))
		return
	}
	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-changed:
			if err := sendPatch(); err != nil {
				h.Logger.Debug("sse patch failed", logfields.Error(err))
				return
			}
		}
	}
}

func writePatch(w http.ResponseWriter, selector, mode, content string) error {
	content = strings.ReplaceAll(content, "\n", "")
	_, err := fmt.Fprintf(w, "event: datastar-patch-elements\ndata: selector %s\ndata: mode %s\ndata: elements %s\n\n", selector, mode, content)
	return err
}

// writeFailure maps an error to its status code.
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	var verr *apperr.ValidationError
	var failure *apperr.WorkflowFailure
	switch {
	case errors.As(err, &verr):
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "validation failed", "fields": verr.Fields})
	case errors.As(err, &failure):
		h.writeError(w, http.StatusUnprocessableEntity, failure.Message)
	case errors.Is(err, workflow.ErrInFlight),
		errors.Is(err, workflow.ErrAlreadyJoining),
		errors.Is(err, workflow.ErrAlreadyDownloading):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, workflow.ErrNoMeetingLink), errors.Is(err, workflow.ErrNoSchedule):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, bus.ErrStoreClosed), errors.Is(err, workflow.ErrSessionClosed):
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
	case apperr.CategoryOf(err) == apperr.CategoryConfiguration:
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.Logger.Error("request failed", logfields.Error(err))
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin, Access-Control-Request-Headers")
		w.Header().Set("Access-Control-Allow-Origin", h.allowedOriginForRequest(r.Header.Get("Origin")))
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		requestHeaders := strings.TrimSpace(r.Header.Get("Access-Control-Request-Headers"))
		if requestHeaders != "" {
			w.Header().Set("Access-Control-Allow-Headers", requestHeaders)
		} else {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, datastar-request")
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) allowedOriginForRequest(requestOrigin string) string {
	allowed := strings.TrimSpace(h.AllowedOrigin)
	if allowed == "" || allowed == "*" {
		return "*"
	}
	origin := strings.TrimSpace(requestOrigin)
	if origin == "" {
		return allowed
	}
	if origin == allowed || isEquivalentLoopbackOrigin(origin, allowed) {
		return origin
	}
	return allowed
}

func isEquivalentLoopbackOrigin(originA, originB string) bool {
	a, err := url.Parse(originA)
	if err != nil {
		return false
	}
	b, err := url.Parse(originB)
	if err != nil {
		return false
	}
	if !isLoopbackHost(a.Hostname()) || !isLoopbackHost(b.Hostname()) {
		return false
	}
	return a.Port() == b.Port() && strings.EqualFold(a.Scheme, b.Scheme)
}

func isLoopbackHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
