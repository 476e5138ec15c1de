// Package api serves the admin HTTP endpoints and the websocket transport
// remote peers use to reach the authority.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"sandforge/internal/component"
	"sandforge/internal/crafting"
	"sandforge/internal/server"
	"sandforge/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Options wires the router.
type Options struct {
	Server         *server.Server
	Logger         *zap.Logger
	AllowedOrigins []string
	// Checks are reported by /health under their map key.
	Checks map[string]HealthChecker
}

type handlers struct {
	srv    *server.Server
	log    *zap.Logger
	checks map[string]HealthChecker
}

// NewRouter builds the HTTP handler tree.
func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	h := &handlers{srv: opts.Server, log: opts.Logger, checks: opts.Checks}
	ws := newWSHandler(opts.Server, opts.Logger, opts.AllowedOrigins)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Recovery(opts.Logger))
	r.Use(Logging(opts.Logger))
	r.Use(Metrics())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/items", h.items)
	r.Route("/recipes", func(r chi.Router) {
		r.Get("/", h.workbenches)
		r.Get("/{kind}", h.recipes)
	})
	r.Get("/inventories/{client}", h.inventory)
	r.Get("/ws", ws.Handle)
	return r
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

type healthResponse struct {
	Status   string            `json:"status"`
	Sessions int               `json:"sessions"`
	Services map[string]string `json:"services"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Sessions: h.srv.Sessions(),
		Services: make(map[string]string),
	}
	for name, c := range h.checks {
		if err := c.Health(r.Context()); err != nil {
			resp.Status = "unhealthy"
			resp.Services[name] = "down: " + err.Error()
			continue
		}
		resp.Services[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (h *handlers) items(w http.ResponseWriter, _ *http.Request) {
	entries := []crafting.CatalogEntry{}
	if c := h.srv.Catalog(); c != nil {
		entries = c.Entries()
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handlers) workbenches(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.srv.Crafter().Registry().Kinds())
}

// recipes lists a workbench's recipes. With ?client= it marks the recipes
// that connected client can craft right now.
func (h *handlers) recipes(w http.ResponseWriter, r *http.Request) {
	kind := crafting.WorkbenchKind(chi.URLParam(r, "kind"))
	table, err := h.srv.Crafter().Registry().Table(kind)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_workbench", err.Error())
		return
	}

	client := r.URL.Query().Get("client")
	if client == "" {
		writeJSON(w, http.StatusOK, table.Recipes())
		return
	}
	avail, err := h.srv.Available(component.ClientID(client), kind)
	if err != nil {
		writeError(w, http.StatusNotFound, "client_offline", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, avail)
}

func (h *handlers) inventory(w http.ResponseWriter, r *http.Request) {
	client := component.ClientID(chi.URLParam(r, "client"))
	view, err := h.srv.Player(r.Context(), client)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "no inventory for "+string(client))
		return
	case err != nil:
		h.log.Error("failed to read inventory", zap.String("client", string(client)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to read inventory")
		return
	}
	if view.Items == nil {
		view.Items = []component.ItemBundle{}
	}
	writeJSON(w, http.StatusOK, view)
}
