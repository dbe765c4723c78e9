// Package httpapi exposes the Mission Control webhook surface and the board
// query/mutation API over plain net/http.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/salzamar/openclaw-mission-control/internal/assign"
	"github.com/salzamar/openclaw-mission-control/internal/board"
	"github.com/salzamar/openclaw-mission-control/internal/config"
	"github.com/salzamar/openclaw-mission-control/internal/store"
	"github.com/salzamar/openclaw-mission-control/internal/store/postgres"
	"github.com/salzamar/openclaw-mission-control/internal/trigger"
	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

// defaultMaxRequestBodyBytes limits request body size (1 MiB) to prevent OOM.
const defaultMaxRequestBodyBytes = models.DefaultMaxRequestBodyBytes

// ServerOptions configures the HTTP server (home dir, listen addr, API key, DB, metrics).
type ServerOptions struct {
	Home           string
	Addr           string
	Dev            bool
	APIKey         string          // if set, require X-API-Key header or query api_key
	DBDriver       string          // "sqlite" (default) or "postgres"
	DBURL          string          // for postgres: connection string (or set DATABASE_URL env)
	Config         *config.Config  // nil loads <home>/config.yaml
	MetricsHandler http.Handler    // if set, used for /metrics (e.g. OTel Prometheus handler)
	UseOtelHTTP    bool            // if true, wrap handler with otelhttp for request metrics
	Store          store.Store     // optional; overrides DBDriver/Home (used by tests)
}

// App holds the HTTP server, event hub, store, and board service.
type App struct {
	Server *http.Server
	Hub    *EventHub
	Store  store.Store
	Board  *board.Service
	Home   string
}

// NewApp creates the HTTP app (server, hub, store, board service) and
// registers all routes.
func NewApp(opts ServerOptions) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load(opts.Home)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	st := opts.Store
	if st == nil {
		var err error
		if opts.DBDriver == "postgres" {
			st, err = postgres.Open(opts.DBURL)
		} else {
			st, err = store.Open(opts.Home)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := seedRoster(st, cfg); err != nil {
		return nil, err
	}

	engine, err := assign.New(cfg.Rules, cfg.Fallback)
	if err != nil {
		return nil, err
	}
	triggers := trigger.NewRegistry()
	if cfg.TriggerURL != "" {
		triggers.Register("runner", trigger.RunnerWebhook{URL: cfg.TriggerURL})
	}
	if cfg.SlackWebhookURL != "" {
		triggers.Register("slack", trigger.SlackWebhook{WebhookURL: cfg.SlackWebhookURL})
	}

	hub := NewEventHub()
	svc := board.New(st, engine, cfg.Owner, triggers, hub)

	app := &App{Hub: hub, Store: st, Board: svc, Home: opts.Home}

	mux := http.NewServeMux()
	app.registerRoutes(mux, opts)

	var handler http.Handler = mux
	handler = bodyLimitMiddleware(defaultMaxRequestBodyBytes, handler)
	if opts.Dev {
		handler = corsMiddleware(handler)
	}
	if opts.APIKey != "" {
		handler = apiKeyMiddleware(opts.APIKey, handler)
	}
	handler = requestLogMiddleware(handler)
	handler = recoverMiddleware(handler)
	if opts.UseOtelHTTP {
		handler = otelhttp.NewHandler(handler, "missionctl")
	}

	app.Server = &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	app.Server.RegisterOnShutdown(func() {
		_ = st.Close()
	})
	return app, nil
}

func seedRoster(st store.Store, cfg *config.Config) error {
	if len(cfg.Seed) == 0 {
		return nil
	}
	roster := make([]models.Agent, 0, len(cfg.Seed))
	for _, a := range cfg.Seed {
		roster = append(roster, models.Agent{
			Name:         a.Name,
			Role:         a.Role,
			Level:        a.Level,
			Status:       models.AgentIdle,
			SystemPrompt: a.SystemPrompt,
			Character:    a.Character,
			Lore:         a.Lore,
		})
	}
	return st.SeedAgents(context.Background(), roster)
}

func (app *App) registerRoutes(mux *http.ServeMux, opts ServerOptions) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})

	if opts.MetricsHandler != nil {
		mux.Handle("/metrics", opts.MetricsHandler)
	} else {
		mux.HandleFunc("/metrics", app.handleLegacyMetrics)
	}

	mux.HandleFunc("/stream", app.Hub.Handler())
	mux.HandleFunc("/bootstrap", app.handleBootstrap)

	// External webhook surface (all POST, uniform {success,...} shape).
	mux.HandleFunc("/tasks/update", postOnly(app.handleTaskUpdateWebhook))
	mux.HandleFunc("/tasks/create", postOnly(app.handleTaskCreateWebhook))
	mux.HandleFunc("/tasks/fix-unassigned", postOnly(app.handleFixUnassigned))
	mux.HandleFunc("/objectives/sync", postOnly(app.handleObjectivesSync))
	mux.HandleFunc("/projects/sync", postOnly(app.handleProjectsSync))
	mux.HandleFunc("/planner/sync", postOnly(app.handlePlannerSync))
	mux.HandleFunc("/agents/status", postOnly(app.handleAgentStatusWebhook))
	mux.HandleFunc("/documents/upload", postOnly(app.handleDocumentUpload))

	// Board query/mutation API.
	mux.HandleFunc("/api/tasks", app.handleTasks)
	mux.HandleFunc("/api/tasks/", app.handleTaskSubroutes)
	mux.HandleFunc("/api/tasks/batch", postOnly(app.handleBatchUpdate))
	mux.HandleFunc("/api/tasks/batch-delete", postOnly(app.handleBatchDelete))
	mux.HandleFunc("/api/agents", app.handleAgents)
	mux.HandleFunc("/api/agents/", app.handleAgentSubroutes)
	mux.HandleFunc("/api/activities", app.handleActivities)
	mux.HandleFunc("/api/notifications", app.handleNotifications)
	mux.HandleFunc("/api/notifications/", app.handleNotificationSubroutes)
	mux.HandleFunc("/api/documents", app.handleDocuments)
}

func (app *App) handleLegacyMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	tasks, _ := app.Store.ListTasks(r.Context(), "", 0)
	counts := map[string]int64{}
	for _, t := range tasks {
		counts[t.Status]++
	}
	_, _ = fmt.Fprintf(w, "# TYPE missionctl_tasks_total gauge\n")
	for _, status := range []string{models.StatusInbox, models.StatusAssigned, models.StatusInProgress, models.StatusReview, models.StatusDone, models.StatusArchived} {
		_, _ = fmt.Fprintf(w, "missionctl_tasks_total{status=%q} %d\n", status, counts[status])
	}
}

// --- middleware ---

// limitBody wraps r.Body with http.MaxBytesReader so handlers cannot read
// more than maxBytes.
func limitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
}

func bodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			limitBody(w, r, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware sets CORS headers for dev mode (board dev server on a
// different origin).
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func apiKeyMiddleware(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/health" || path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if key != apiKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		slog.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// recoverMiddleware guarantees that a panicking handler still answers with
// the uniform JSON error shape instead of a blank 500.
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				slog.Error("handler panic", "path", req.URL.Path, "panic", v)
				writeError(w, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", v))
			}
		}()
		next.ServeHTTP(w, req)
	})
}

// responseRecorder captures status code for logging and forwards Flusher if
// supported.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// --- helpers ---

func postOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeError sends the uniform failure body {"success":false,"error":msg}.
func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message})
}

// respondErr maps service errors onto the status-code convention:
// validation 400, not-found 404, everything else 500.
func respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, board.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, board.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}
