// Package api provides the HTTP API for observing and editing the planet.
// GET endpoints are public. Player actions (interact, preview, discoveries)
// are public POSTs. Editing and planet management require a bearer token.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/talgya/catplanet/internal/config"
	"github.com/talgya/catplanet/internal/curve"
	"github.com/talgya/catplanet/internal/editor"
	"github.com/talgya/catplanet/internal/engine"
	"github.com/talgya/catplanet/internal/entropy"
	"github.com/talgya/catplanet/internal/layout"
	"github.com/talgya/catplanet/internal/locomotion"
	"github.com/talgya/catplanet/internal/persistence"
	"github.com/talgya/catplanet/internal/placement"
	"github.com/talgya/catplanet/internal/registry"
)

// maxBody caps request bodies, including imported layouts.
const maxBody = 8 << 20

// Server serves the planet state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB // Optional; layout storage endpoints answer 503 without it
	Port     int
	AdminKey string // Bearer token for admin endpoints. Empty = admin disabled.
	Seed     int64  // Default seed for regenerate
	Entropy  *entropy.Source

	AllowedOrigins []string
	CORSDebug      bool
	RateLimit      RateLimitConfig

	mu      sync.Mutex
	limiter *RateLimiter
}

// Handler returns the routed API with CORS and rate limiting applied. The
// rate limiter of a previous call is stopped.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public observation.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/entities", s.handleEntities)
	mux.HandleFunc("/api/v1/entity/", s.handleEntity)
	mux.HandleFunc("/api/v1/curves", s.handleCurves)
	mux.HandleFunc("/api/v1/progress", s.handleProgress)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/animations", s.handleAnimations)
	mux.HandleFunc("/api/v1/layouts", s.handleLayouts)
	mux.HandleFunc("/api/v1/layout/export", s.handleExport)
	mux.HandleFunc("/api/v1/spawn/schema", s.handleSpawnSchema)

	// Player actions.
	mux.HandleFunc("/api/v1/interact", postOnly(s.handleInteract))
	mux.HandleFunc("/api/v1/discoveries", postOnly(s.handleDiscoveries))
	mux.HandleFunc("/api/v1/preview", postOnly(s.handlePreview))

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/regenerate", s.adminOnly(postOnly(s.handleRegenerate)))
	mux.HandleFunc("/api/v1/radius", s.adminOnly(postOnly(s.handleRadius)))
	mux.HandleFunc("/api/v1/save", s.adminOnly(postOnly(s.handleSave)))
	mux.HandleFunc("/api/v1/load", s.adminOnly(postOnly(s.handleLoad)))
	mux.HandleFunc("/api/v1/layout/import", s.adminOnly(postOnly(s.handleImport)))
	mux.HandleFunc("/api/v1/layout/delete", s.adminOnly(postOnly(s.handleDeleteLayout)))
	mux.HandleFunc("/api/v1/place", s.adminOnly(postOnly(s.handlePlace)))
	mux.HandleFunc("/api/v1/move", s.adminOnly(postOnly(s.handleMove)))
	mux.HandleFunc("/api/v1/rotate", s.adminOnly(postOnly(s.handleRotate)))
	mux.HandleFunc("/api/v1/delete", s.adminOnly(postOnly(s.handleDelete)))
	mux.HandleFunc("/api/v1/path", s.adminOnly(postOnly(s.handlePath)))
	mux.HandleFunc("/api/v1/assign", s.adminOnly(postOnly(s.handleAssign)))

	c := cors.New(cors.Options{
		AllowedOrigins: s.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		Debug:          s.CORSDebug,
	})
	limiter := NewRateLimiter(s.RateLimit)
	s.mu.Lock()
	prev := s.limiter
	s.limiter = limiter
	s.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}
	return c.Handler(limiter.Middleware(mux))
}

// Close stops background work started by Handler.
func (s *Server) Close() {
	s.mu.Lock()
	limiter := s.limiter
	s.limiter = nil
	s.mu.Unlock()
	if limiter != nil {
		limiter.Stop()
	}
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(s.Close)
	slog.Info("HTTP API starting",
		"addr", srv.Addr,
		"admin_auth", s.AdminKey != "",
		"rate_limit", s.RateLimit.Enabled,
		"origins", s.AllowedOrigins,
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no PLANETSIM_ADMIN_KEY set)", http.StatusForbidden)
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

func postOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

// entityView is the wire form of a registry entity.
type entityView struct {
	ID       registry.ID       `json:"id"`
	Template string            `json:"template"`
	Class    string            `json:"class"`
	Position mgl64.Vec3        `json:"position"`
	Rotation layout.Quat       `json:"rotation"`
	Altitude float64           `json:"altitude"`
	Blocking bool              `json:"blocking"`
	Style    string            `json:"style,omitempty"`
	Partner  registry.ID       `json:"partner,omitempty"`
	Found    bool              `json:"found,omitempty"`
	Hidden   bool              `json:"hidden,omitempty"`
	Opened   bool              `json:"opened,omitempty"`
	Motion   *locomotion.State `json:"motion,omitempty"`
}

func (s *Server) view(e registry.Entity) entityView {
	v := entityView{
		ID:       e.ID,
		Template: e.Template,
		Class:    e.Class().String(),
		Position: e.Position,
		Rotation: layout.FromQuat(e.Rotation),
		Altitude: s.Sim.Planet().Altitude(e.Position),
		Blocking: e.Blocking,
		Found:    e.Found(),
		Motion:   e.Motion,
	}
	v.Partner, _ = e.Partner()
	switch k := e.Kind.(type) {
	case registry.Container:
		v.Style = k.Style.String()
		v.Opened = k.Opened
	case registry.Attachment:
		v.Hidden = k.Hidden
	}
	return v
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.Sim.Stats()
	status := map[string]any{
		"name":       "Cat Planet",
		"tick":       s.Sim.CurrentTick(),
		"radius":     stats.Radius,
		"entities":   stats.Entities,
		"population": humanize.Comma(int64(stats.Entities)) + " objects",
		"found":      stats.Progress.Found,
		"findable":   stats.Progress.Total,
		"complete":   stats.Progress.Complete(),
		"elapsed":    stats.Elapsed,
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed()
	}
	writeJSON(w, status)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Stats())
}

// handleEntities lists entities, optionally filtered by ?class=.
func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	entities := s.Sim.Registry.All()
	if name := r.URL.Query().Get("class"); name != "" {
		class, ok := placement.ParseClass(name)
		if !ok {
			http.Error(w, "unknown class", http.StatusBadRequest)
			return
		}
		entities = s.Sim.Registry.AllOfClass(class)
	}

	views := make([]entityView, 0, len(entities))
	for _, e := range entities {
		views = append(views, s.view(e))
	}
	writeJSON(w, views)
}

func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/v1/entity/")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid entity id", http.StatusBadRequest)
		return
	}
	e, ok := s.Sim.Registry.Get(registry.ID(id))
	if !ok {
		http.Error(w, "entity not found", http.StatusNotFound)
		return
	}
	writeJSON(w, s.view(e))
}

func (s *Server) handleCurves(w http.ResponseWriter, r *http.Request) {
	type curveView struct {
		Index  int           `json:"index"`
		Closed bool          `json:"closed"`
		Length float64       `json:"length"`
		Points []curve.Point `json:"points"`
	}
	paths := s.Sim.Curves.All()
	out := make([]curveView, 0, len(paths))
	for i, p := range paths {
		out = append(out, curveView{Index: i, Closed: p.Closed(), Length: p.Length(), Points: p.Points()})
	}
	writeJSON(w, out)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	p := s.Sim.Progress()
	writeJSON(w, map[string]any{
		"found":    p.Found,
		"total":    p.Total,
		"complete": p.Complete(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events := s.Sim.RecentEvents(limit)
	if category := r.URL.Query().Get("category"); category != "" {
		filtered := make([]engine.Event, 0, len(events))
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	writeJSON(w, events)
}

func (s *Server) handleAnimations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Animations())
}

func (s *Server) handleLayouts(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	list, err := s.DB.ListLayouts()
	if err != nil {
		slog.Error("list layouts failed", "error", err)
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

// handleExport streams the current planet as a msgpack layout.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "export"
	}
	l, events := s.Sim.Snapshot(name)
	if s.DB != nil {
		if err := s.DB.SaveEvents(events); err != nil {
			slog.Warn("events not persisted", "error", err)
			s.Sim.Requeue(events)
		}
	}
	w.Header().Set("Content-Type", "application/msgpack")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".layout"))
	if err := layout.Encode(w, l); err != nil {
		slog.Error("layout export failed", "error", err)
	}
}

func (s *Server) handleSpawnSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, config.SpawnSchema())
}

func (s *Server) handleInteract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID registry.ID `json:"id"`
	}
	if !decode(w, r, &req) {
		return
	}
	if _, ok := s.Sim.Registry.Get(req.ID); !ok {
		http.Error(w, "entity not found", http.StatusNotFound)
		return
	}
	s.Sim.Interact(req.ID)
	writeJSONStatus(w, http.StatusAccepted, map[string]any{"queued": req.ID})
}

func (s *Server) handleDiscoveries(w http.ResponseWriter, r *http.Request) {
	d := s.Sim.DrainDiscoveries()
	if d == nil {
		d = []engine.Discovery{}
	}
	writeJSON(w, d)
}

type placeRequest struct {
	Template string     `json:"template"`
	Ray      editor.Ray `json:"ray"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req placeRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, s.Sim.Preview(req.Template, req.Ray))
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not running", http.StatusServiceUnavailable)
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if !decode(w, r, &req) {
			return
		}
		if req.Speed < 0 || req.Speed > 100 {
			http.Error(w, "speed must be 0-100", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}
	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seed  *int64 `json:"seed"`
		Fresh bool   `json:"fresh"`
	}
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	seed := s.Seed
	switch {
	case req.Seed != nil:
		seed = *req.Seed
	case req.Fresh:
		seed = s.Entropy.Seed(r.Context())
	}
	report := s.Sim.Generate(seed)
	writeJSON(w, map[string]any{
		"seed":      seed,
		"requested": report.Requested(),
		"placed":    report.Placed(),
		"short":     report.Short(),
	})
}

func (s *Server) handleRadius(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Radius float64 `json:"radius"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.Sim.SetRadius(req.Radius); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]float64{"radius": s.Sim.Planet().Radius})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		req.Name = fmt.Sprintf("manual-%d", s.Sim.CurrentTick())
	}
	l, err := s.DB.SaveWorldState(s.Sim, req.Name)
	if err != nil {
		slog.Error("save failed", "error", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"id": l.ID, "name": l.Name, "placements": len(l.Placements)})
}

// handleLoad restores a stored layout by ID, or the newest one without.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	var (
		l   *layout.Layout
		err error
	)
	if req.ID == "" {
		l, err = s.DB.LatestLayout()
	} else {
		id, perr := uuid.Parse(req.ID)
		if perr != nil {
			http.Error(w, "invalid layout id", http.StatusBadRequest)
			return
		}
		l, err = s.DB.LoadLayout(id)
	}
	if errors.Is(err, persistence.ErrNotFound) {
		http.Error(w, "layout not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("load failed", "error", err)
		http.Error(w, "load failed", http.StatusInternalServerError)
		return
	}
	s.restore(w, l)
}

// handleImport restores a msgpack layout sent as the request body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	l, err := layout.Decode(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.restore(w, l)
}

func (s *Server) restore(w http.ResponseWriter, l *layout.Layout) {
	if err := s.Sim.LoadLayout(l); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"id": l.ID, "name": l.Name, "entities": s.Sim.Registry.Len()})
}

func (s *Server) handleDeleteLayout(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		ID uuid.UUID `json:"id"`
	}
	if !decode(w, r, &req) {
		return
	}
	err := s.DB.DeleteLayout(req.ID)
	if errors.Is(err, persistence.ErrNotFound) {
		http.Error(w, "layout not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"deleted": req.ID})
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	var req placeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Template == "" {
		http.Error(w, "template is required", http.StatusBadRequest)
		return
	}
	e, c, ok := s.Sim.Place(req.Template, req.Ray)
	if !ok {
		writeJSONStatus(w, http.StatusConflict, map[string]any{"placed": false, "candidate": c})
		return
	}
	writeJSON(w, map[string]any{"placed": true, "candidate": c, "entity": s.view(e)})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID  registry.ID `json:"id"`
		Ray editor.Ray  `json:"ray"`
	}
	if !decode(w, r, &req) {
		return
	}
	c, ok := s.Sim.Move(req.ID, req.Ray)
	status := http.StatusOK
	if !ok {
		status = http.StatusConflict
	}
	writeJSONStatus(w, status, map[string]any{"moved": ok, "candidate": c})
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      registry.ID `json:"id"`
		Degrees float64     `json:"degrees"`
	}
	if !decode(w, r, &req) {
		return
	}
	if !s.Sim.Rotate(req.ID, req.Degrees) {
		http.Error(w, "entity not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"rotated": req.ID})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID registry.ID `json:"id"`
	}
	if !decode(w, r, &req) {
		return
	}
	n := s.Sim.Delete(req.ID)
	if n == 0 {
		http.Error(w, "entity not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]int{"removed": n})
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rays []editor.Ray `json:"rays"`
	}
	if !decode(w, r, &req) {
		return
	}
	idx, ok := s.Sim.AuthorPath(req.Rays)
	if !ok {
		http.Error(w, "a path needs at least two surface points", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]int{"curve": idx})
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID    registry.ID `json:"id"`
		Curve int         `json:"curve"`
		Speed float64     `json:"speed"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Speed <= 0 {
		http.Error(w, "speed must be positive", http.StatusBadRequest)
		return
	}
	if !s.Sim.AssignCurve(req.ID, req.Curve, req.Speed) {
		http.Error(w, "unknown entity or curve", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"assigned": req.ID, "curve": req.Curve})
}

// decode reads a JSON body into v, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
