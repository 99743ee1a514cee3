package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/provform/internal/catalog"
	"github.com/kalambet/provform/internal/intake"
	"github.com/kalambet/provform/internal/profile"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type AppDeps struct {
	Profile    *profile.Manager
	Notifier   profile.Notifier // optional
	Catalog    catalog.Catalog
	Metrics    *Metrics      // optional; a private registry is created if nil
	Health     HealthChecker // optional
	SessionTTL time.Duration // idle sessions are dropped after this; default 1h
}

type app struct {
	deps     AppDeps
	sessions *sessionRegistry
	logger   *slog.Logger
}

// NewAppHandler returns the HTTP API for driving form sessions and reading
// saved profiles.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	a := &app{
		deps:     deps,
		sessions: newSessionRegistry(deps.SessionTTL),
		logger:   slog.Default(),
	}

	r := chi.NewRouter()
	r.Use(deps.Metrics.Middleware)

	r.Get("/health", handleHealth(a))
	r.Handle("/metrics", deps.Metrics.Handler())
	r.Get("/catalog", handleCatalog(a))

	r.Post("/sessions", handleCreateSession(a))
	r.Get("/sessions/{id}", withSession(a, handleGetSession))
	r.Delete("/sessions/{id}", handleDeleteSession(a))
	r.Patch("/sessions/{id}/fields", withSession(a, handlePatchFields))
	r.Post("/sessions/{id}/next", withSession(a, handleNext))
	r.Post("/sessions/{id}/previous", withSession(a, handlePrevious))
	r.Post("/sessions/{id}/submit", withSession(a, handleSubmit))

	r.Get("/profiles", handleListProfiles(a))
	r.Get("/profiles/{id}", handleGetProfile(a))

	return r
}

// sessionResponse is the wire form of a session.
type sessionResponse struct {
	ID string `json:"id"`
	profile.State
}

type transitionResponse struct {
	sessionResponse
	Moved bool `json:"moved"`
}

type submitResponse struct {
	Profile profile.SavedProfile `json:"profile"`
	Session sessionResponse      `json:"session"`
}

// ProfileSummary is a saved profile without its picture payload.
type ProfileSummary struct {
	ID          string    `json:"id"`
	SubmittedAt time.Time `json:"submittedAt"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Summary     string    `json:"summary"`
}

func summarizeSaved(p profile.SavedProfile) ProfileSummary {
	return ProfileSummary{
		ID:          p.ID,
		SubmittedAt: p.SubmittedAt,
		Name:        p.Name,
		Email:       p.Email,
		Summary:     profile.Summarize(p.Record),
	}
}

func handleHealth(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.deps.Health != nil {
			if err := a.deps.Health.Ping(r.Context()); err != nil {
				httpError(w, http.StatusServiceUnavailable, "api_error", "store unavailable: %v", err)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleCatalog(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.deps.Catalog)
	}
}

func handleCreateSession(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var opts []profile.SessionOption
		if a.deps.Notifier != nil {
			opts = append(opts, profile.WithNotifier(a.deps.Notifier))
		}
		s, err := a.deps.Profile.Restore(r.Context(), opts...)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to restore draft: %v", err)
			return
		}

		id := a.sessions.add(s)
		a.deps.Metrics.setActiveSessions(a.sessions.len())
		a.logger.Debug("session created", "session_id", id)

		writeJSON(w, http.StatusCreated, sessionResponse{ID: id, State: s.State()})
	}
}

type sessionHandler func(a *app, w http.ResponseWriter, r *http.Request, id string, s *profile.Session)

// withSession resolves {id}, locks the session for the duration of the
// request and hands it to h.
func withSession(a *app, h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		entry, ok := a.sessions.get(id)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		entry.mu.Lock()
		defer entry.mu.Unlock()
		h(a, w, r, id, entry.session)
	}
}

func handleGetSession(a *app, w http.ResponseWriter, r *http.Request, id string, s *profile.Session) {
	writeJSON(w, http.StatusOK, sessionResponse{ID: id, State: s.State()})
}

func handleDeleteSession(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.sessions.remove(chi.URLParam(r, "id")) {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		a.deps.Metrics.setActiveSessions(a.sessions.len())
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handlePatchFields(a *app, w http.ResponseWriter, r *http.Request, id string, s *profile.Session) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var fields map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}
	if len(fields) == 0 {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "no fields given")
		return
	}

	if err := applyFields(s, fields); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return
	}

	if err := a.deps.Profile.SaveDraft(r.Context(), s.Record()); err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to save draft: %v", err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{ID: id, State: s.State()})
}

func handleNext(a *app, w http.ResponseWriter, r *http.Request, id string, s *profile.Session) {
	moved, err := s.Next()
	if errors.Is(err, profile.ErrNoNextStep) {
		a.deps.Metrics.transition("next", "noop")
		httpError(w, http.StatusConflict, "invalid_state_error", "%v", err)
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
		return
	}

	resp := transitionResponse{sessionResponse{ID: id, State: s.State()}, moved}
	if !moved {
		a.deps.Metrics.transition("next", "blocked")
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	a.deps.Metrics.transition("next", "moved")
	writeJSON(w, http.StatusOK, resp)
}

func handlePrevious(a *app, w http.ResponseWriter, r *http.Request, id string, s *profile.Session) {
	moved := s.Previous()
	if moved {
		a.deps.Metrics.transition("previous", "moved")
	} else {
		a.deps.Metrics.transition("previous", "noop")
	}
	writeJSON(w, http.StatusOK, transitionResponse{sessionResponse{ID: id, State: s.State()}, moved})
}

func handleSubmit(a *app, w http.ResponseWriter, r *http.Request, id string, s *profile.Session) {
	saved, ok, err := s.Submit(r.Context())
	switch {
	case errors.Is(err, profile.ErrNotFinalStep), errors.Is(err, profile.ErrSubmitInProgress):
		httpError(w, http.StatusConflict, "invalid_state_error", "%v", err)
		return
	case err != nil:
		a.deps.Metrics.submission("error")
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
		return
	case !ok:
		a.deps.Metrics.submission("invalid")
		writeJSON(w, http.StatusUnprocessableEntity, sessionResponse{ID: id, State: s.State()})
		return
	}

	a.deps.Metrics.submission("saved")
	writeJSON(w, http.StatusCreated, submitResponse{
		Profile: saved,
		Session: sessionResponse{ID: id, State: s.State()},
	})
}

func handleListProfiles(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := a.deps.Profile.ListSaved(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list profiles: %v", err)
			return
		}
		out := make([]ProfileSummary, len(list))
		for i, p := range list {
			out[i] = summarizeSaved(p)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleGetProfile(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := a.deps.Profile.GetSaved(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, profile.ErrProfileNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "profile not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// applyFields sets every given field on s, or none of them if any value is
// rejected. Markup is stripped from free-text fields.
func applyFields(s *profile.Session, fields map[string]any) error {
	names := make([]string, 0, len(fields))
	cleaned := make(map[string]any, len(fields))
	for name, v := range fields {
		names = append(names, name)
		if str, ok := v.(string); ok && (name == profile.FieldName || name == profile.FieldBio) {
			v = intake.CleanText(str)
		}
		cleaned[name] = v
	}
	sort.Strings(names)

	trial := s.Record()
	for _, name := range names {
		if err := trial.Set(name, cleaned[name]); err != nil {
			return err
		}
	}
	for _, name := range names {
		if err := s.SetField(name, cleaned[name]); err != nil {
			return err
		}
	}
	return nil
}
