// Package api provides the HTTP surface the scene layer uses to fetch tile
// maps. GET endpoints are public; changing the current seed requires a
// bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/talgya/tilefield/internal/config"
	"github.com/talgya/tilefield/internal/persistence"
	"github.com/talgya/tilefield/internal/terrain"
)

// Server serves generated tile maps over HTTP.
type Server struct {
	Gen      *terrain.Generator // Table in use; backs FieldPerlin
	Field    terrain.Field      // Sampler used for maps and /sample
	Config   terrain.GenConfig
	DB       *persistence.DB // Optional; nil disables history
	TableID  string
	Spacing  float64
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// MapLimiter throttles map generation per client. Nil disables limiting.
	MapLimiter *RateLimiter

	seed    atomic.Int64
	httpSrv *http.Server
}

// Seed returns the current seed.
func (s *Server) Seed() int64 {
	return s.seed.Load()
}

// SetSeed replaces the current seed.
func (s *Server) SetSeed(seed int64) {
	s.seed.Store(seed)
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	limit := func(h http.HandlerFunc) http.HandlerFunc {
		if s.MapLimiter == nil {
			return h
		}
		return RateLimitMiddleware(s.MapLimiter, h)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/map", limit(s.handleMap))
	mux.HandleFunc("/api/v1/placements", limit(s.handlePlacements))
	mux.HandleFunc("/api/v1/sample", s.handleSample)
	mux.HandleFunc("/api/v1/maps", s.handleMaps)
	mux.HandleFunc("/api/v1/maps/", s.handleMapDetail)

	// Admin endpoint (POST requires bearer token).
	mux.HandleFunc("/api/v1/seed", s.adminOnly(s.handleSeed))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the HTTP server started by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list; localhost dev servers are
// always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:8000": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && token == s.AdminKey
}

func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no TILEFIELD_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"name":      "tilefield",
		"seed":      s.Seed(),
		"width":     s.Config.Width,
		"height":    s.Config.Height,
		"band":      s.Config.Band,
		"field":     s.Config.Field,
		"table":     s.Config.Table,
		"table_id":  s.TableID,
		"gradients": s.Gen.Gradients(),
		"history":   s.DB != nil,
	})
}

// seedParam returns ?seed= when present, else the current seed.
func (s *Server) seedParam(r *http.Request) (int64, error) {
	if v := r.URL.Query().Get("seed"); v != "" {
		return config.ParseSeed(v)
	}
	return s.Seed(), nil
}

func (s *Server) generate(seed int64) (*terrain.Map, error) {
	return terrain.GenerateMap(s.Field, s.Config, seed)
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	seed, err := s.seedParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m, err := s.generate(seed)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, m)
}

func (s *Server) handlePlacements(w http.ResponseWriter, r *http.Request) {
	seed, err := s.seedParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	spacing := s.Spacing
	if v := r.URL.Query().Get("spacing"); v != "" {
		spacing, err = strconv.ParseFloat(v, 64)
		if err != nil || spacing <= 0 {
			http.Error(w, "spacing must be a positive number", http.StatusBadRequest)
			return
		}
	}

	m, err := s.generate(seed)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"seed":       seed,
		"spacing":    spacing,
		"placements": terrain.Placements(m, spacing),
	})
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	x, errX := strconv.ParseFloat(q.Get("x"), 64)
	y, errY := strconv.ParseFloat(q.Get("y"), 64)
	if errX != nil || errY != nil {
		http.Error(w, "x and y must be numbers", http.StatusBadRequest)
		return
	}

	c := s.Config
	v := terrain.OctaveNoise(s.Field, x, y, c.Octaves, c.Frequency, c.Persistence)
	n := terrain.Normalize(v)
	writeJSON(w, map[string]any{
		"x":          x,
		"y":          y,
		"noise":      v,
		"normalized": n,
		"tile":       s.Config.Classify(n),
	})
}

// handleSeed reads or replaces the current seed. A new seed regenerates the
// map and records it in the store.
func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, map[string]int64{"seed": s.Seed()})
		return
	}

	var req struct {
		Seed json.RawMessage `json:"seed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Seed) == 0 {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	seed, err := decodeSeed(req.Seed)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m, err := s.generate(seed)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.SetSeed(seed)
	slog.Info("seed changed", "seed", seed)

	resp := map[string]any{"seed": seed, "map": m}
	if s.DB != nil {
		id, err := s.DB.SaveMap(s.TableID, m)
		if err != nil {
			slog.Error("save map failed", "error", err)
		} else {
			resp["map_id"] = id
		}
		if err := s.DB.SaveMeta("seed", strconv.FormatInt(seed, 10)); err != nil {
			slog.Error("save seed failed", "error", err)
		}
	}
	writeJSON(w, resp)
}

// decodeSeed accepts a JSON integer or a string holding one, as a text
// input field would submit.
func decodeSeed(raw json.RawMessage) (int64, error) {
	if string(raw) == "null" {
		return 0, fmt.Errorf("seed must be an integer")
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, fmt.Errorf("seed must be an integer")
	}
	return config.ParseSeed(str)
}

func (s *Server) handleMaps(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "history disabled", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "limit must be 1-500", http.StatusBadRequest)
			return
		}
		limit = n
	}

	recs, err := s.DB.RecentMaps(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []persistence.MapRecord{}
	}
	writeJSON(w, recs)
}

func (s *Server) handleMapDetail(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "history disabled", http.StatusServiceUnavailable)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/maps/")
	rec, err := s.DB.GetMap(id)
	if errors.Is(err, persistence.ErrNotFound) {
		http.Error(w, "map not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	m, err := rec.Map()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"record": rec, "map": m})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Debug("write response failed", "error", err)
	}
}
