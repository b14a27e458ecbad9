// Package api exposes the bot's control surface: an authenticated HTTP API
// for status and manual triggers, and an MCP server mirroring the same
// operations as tools.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/internetsb/maizone/internal/dedup"
	"github.com/internetsb/maizone/internal/engage"
	"github.com/internetsb/maizone/internal/persona"
	"github.com/internetsb/maizone/internal/storage"
)

// PostTrigger publishes one generated feed. Implemented by engage.Poster.
type PostTrigger interface {
	PublishOnce(ctx context.Context, topic string) (storage.Post, error)
}

// BrowseTrigger runs one reconciliation pass. Implemented by
// reconcile.Reconciler.
type BrowseTrigger interface {
	ReconcileOnce(ctx context.Context) error
}

// DiaryTrigger generates and reads diary entries. Implemented by
// diary.Service.
type DiaryTrigger interface {
	GenerateAndPublish(ctx context.Context, date string) error
	Entry(date string) (storage.DiaryEntry, error)
}

// AppDeps holds dependencies for the HTTP control API.
type AppDeps struct {
	Store     *storage.Store
	Persona   *persona.Manager
	Poster    PostTrigger
	Browser   BrowseTrigger
	Diary     DiaryTrigger
	Handled   *dedup.Store
	Replied   *dedup.Store
	Cooldowns *engage.CooldownTracker
	Token     string
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	// Health is unauthenticated so the CLI can probe a running server
	// without a token.
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/status", handleStatus(deps))
		r.Post("/actions/post", handleTriggerPost(deps))
		r.Post("/actions/browse", handleTriggerBrowse(deps))
		r.Post("/actions/diary", handleTriggerDiary(deps))
		r.Get("/posts", handleListPosts(deps))
		r.Get("/diary/{date}", handleGetDiary(deps))
		r.Get("/dedup", handleDedupSnapshot(deps))
		r.Get("/persona", handleGetPersona(deps))
		r.Patch("/persona", handlePatchPersona(deps))
	})

	return r
}

type statusResponse struct {
	Running                 bool   `json:"running"`
	PostCooldownRemaining   string `json:"post_cooldown_remaining"`
	BrowseCooldownRemaining string `json:"browse_cooldown_remaining"`
	HandledFeeds            int    `json:"handled_feeds"`
	RepliedFeeds            int    `json:"replied_feeds"`
}

func handleStatus(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, statusResponse{
			Running:                 true,
			PostCooldownRemaining:   deps.Cooldowns.Remaining(engage.ActionPost).Round(time.Second).String(),
			BrowseCooldownRemaining: deps.Cooldowns.Remaining(engage.ActionBrowse).Round(time.Second).String(),
			HandledFeeds:            deps.Handled.Len(),
			RepliedFeeds:            deps.Replied.Len(),
		})
	}
}

func handleTriggerPost(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Topic string `json:"topic"`
		}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
				return
			}
		}

		post, err := deps.Poster.PublishOnce(r.Context(), req.Topic)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "publishing failed: %v", err)
			return
		}
		// Manual trigger counts for pacing like a scheduled one.
		deps.Cooldowns.RecordSuccess(engage.ActionPost)
		writeJSON(w, http.StatusCreated, post)
	}
}

func handleTriggerBrowse(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Browser.ReconcileOnce(r.Context()); err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "browse failed: %v", err)
			return
		}
		deps.Cooldowns.RecordSuccess(engage.ActionBrowse)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleTriggerDiary(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Date string `json:"date"`
		}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
				return
			}
		}
		if req.Date == "" {
			req.Date = time.Now().Format("2006-01-02")
		}
		if _, err := time.Parse("2006-01-02", req.Date); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid date %q, want YYYY-MM-DD", req.Date)
			return
		}

		if err := deps.Diary.GenerateAndPublish(r.Context(), req.Date); err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "diary generation failed: %v", err)
			return
		}
		entry, err := deps.Diary.Entry(req.Date)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading diary back: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, entry)
	}
}

func handleListPosts(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 10
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > 100 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be 1-100")
				return
			}
			limit = n
		}

		posts, err := deps.Store.RecentPosts(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing posts: %v", err)
			return
		}
		if posts == nil {
			posts = []storage.Post{}
		}
		writeJSON(w, http.StatusOK, posts)
	}
}

func handleGetDiary(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := chi.URLParam(r, "date")
		entry, err := deps.Diary.Entry(date)
		if err == storage.ErrNotFound {
			httpError(w, http.StatusNotFound, "not_found_error", "no diary for %s", date)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading diary: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

type dedupSnapshot struct {
	Handled []dedup.Record `json:"handled"`
	Replied []dedup.Record `json:"replied"`
}

func handleDedupSnapshot(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, dedupSnapshot{
			Handled: deps.Handled.Snapshot(),
			Replied: deps.Replied.Snapshot(),
		})
	}
}

func handleGetPersona(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Persona.Get()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading persona: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handlePatchPersona(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var fields map[string]any
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(fields) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no fields to set")
			return
		}

		for key, value := range fields {
			if err := deps.Persona.SetField(key, value); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "setting %s: %v", key, err)
				return
			}
		}

		p, err := deps.Persona.Get()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading persona: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
