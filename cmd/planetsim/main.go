// Command planetsim runs the cat planet: it populates (or restores) a small
// spherical world, ticks its walkers and serves the HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/talgya/catplanet/internal/api"
	"github.com/talgya/catplanet/internal/config"
	"github.com/talgya/catplanet/internal/engine"
	"github.com/talgya/catplanet/internal/entropy"
	"github.com/talgya/catplanet/internal/layout"
	"github.com/talgya/catplanet/internal/persistence"
	"github.com/talgya/catplanet/internal/spawn"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg.Logging)

	seeds := entropy.NewSource(cfg.Planet.EntropyKey)
	if cfg.Planet.Seed == 0 {
		cfg.Planet.Seed = seeds.Seed(context.Background())
		slog.Info("drew fresh seed", "seed", cfg.Planet.Seed, "random_org", seeds.Enabled())
	}

	slog.Info("Cat Planet starting",
		"radius", cfg.Planet.Radius,
		"seed", cfg.Planet.Seed,
		"tick", cfg.Engine.Interval,
	)

	// ── Spawn specs ───────────────────────────────────────────────────
	specs := config.DefaultSpecs(cfg.Spawn.SurfaceOffset)
	if cfg.Spawn.File != "" {
		specs, err = config.LoadSpawnFile(cfg.Spawn.File, cfg.Spawn.SurfaceOffset)
		if err != nil {
			slog.Error("failed to load spawn file", "path", cfg.Spawn.File, "error", err)
			os.Exit(1)
		}
	}
	slog.Info("spawn specs ready", "specs", len(specs), "file", cfg.Spawn.File)

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		slog.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Database.Path)

	// ── Simulation ────────────────────────────────────────────────────
	sim, err := engine.NewSimulation(engine.Options{
		Radius: cfg.Planet.Radius,
		Specs:  specs,
		Spawn: spawn.Config{
			Seed:        cfg.Planet.Seed,
			MaxAttempts: cfg.Spawn.MaxAttempts,
			Stacking:    cfg.Spawn.Stacking,
		},
		CurveLengthScale:  cfg.Locomotion.CurveLengthScale,
		LoopCloseDistance: cfg.Editor.LoopCloseDistance,
		PathOffset:        cfg.Editor.PathOffset,
	})
	if err != nil {
		slog.Error("failed to create simulation", "error", err)
		os.Exit(1)
	}

	var startTick uint64
	restored, err := initialLayout(cfg.Planet.Layout, db)
	switch {
	case err != nil:
		slog.Error("failed to read layout", "error", err)
		os.Exit(1)
	case restored != nil:
		if err := sim.LoadLayout(restored); err != nil {
			slog.Error("failed to restore layout", "error", err)
			os.Exit(1)
		}
		if tickStr, err := db.GetMeta("last_tick"); err == nil {
			if t, err := strconv.ParseUint(tickStr, 10, 64); err == nil {
				startTick = t
			}
		}
	default:
		slog.Info("no saved layout found, generating new planet...")
		report := sim.Generate(cfg.Planet.Seed)
		for _, o := range report.Outcomes {
			slog.Debug("spawn outcome", "template", o.Template, "requested", o.Requested, "placed", o.Placed)
		}
		if _, err := db.Autosave(sim, "generated"); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}
	sim.LastTick = startTick

	stats := sim.Stats()
	slog.Info("planet ready",
		"entities", humanize.Comma(int64(stats.Entities)),
		"findable", stats.Progress.Total,
		"mobile", stats.Mobile,
		"curves", stats.Curves,
	)

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine(cfg.Engine.Interval)
	eng.Tick = startTick
	eng.SetSpeed(cfg.Engine.Speed)
	eng.SaveEvery = cfg.Engine.SaveEvery
	eng.OnTick = sim.Tick
	eng.OnSave = func(tick uint64) {
		if _, err := db.Autosave(sim, fmt.Sprintf("autosave-%d", tick)); err != nil {
			slog.Error("auto-save failed", "tick", tick, "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.Server.AdminKey == "" {
		slog.Warn("PLANETSIM_ADMIN_KEY not set, admin endpoints will be disabled")
	}
	apiServer := &api.Server{
		Sim:            sim,
		Eng:            eng,
		DB:             db,
		Port:           cfg.Server.Port,
		AdminKey:       cfg.Server.AdminKey,
		Seed:           cfg.Planet.Seed,
		Entropy:        seeds,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		CORSDebug:      cfg.Server.CORSDebug,
		RateLimit: api.RateLimitConfig{
			Enabled:           cfg.RateLimit.Enabled,
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			TrustProxy:        cfg.RateLimit.TrustProxy,
		},
	}
	srv := apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\nCat Planet is alive: %d objects, %d cats to find.\n", stats.Entities, stats.Progress.Total)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Server.Port)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}

	// Final save on shutdown.
	slog.Info("final save...")
	if _, err := db.Autosave(sim, "shutdown"); err != nil {
		slog.Error("final save failed", "error", err)
	}
	fmt.Println("Simulation stopped. Planet saved.")
}

// initialLayout returns the layout to start from: the configured file, else
// the newest stored layout, else nil.
func initialLayout(path string, db *persistence.DB) (*layout.Layout, error) {
	if path != "" {
		l, err := layout.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("layout file %s: %w", path, err)
		}
		slog.Info("loading layout file", "path", path, "name", l.Name)
		return l, nil
	}
	l, err := db.LatestLayout()
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	slog.Info("found saved layout, loading...", "id", l.ID, "name", l.Name)
	return l, nil
}

func setupLogger(cfg config.LoggingConfig) {
	opts := &slog.HandlerOptions{Level: config.ParseLogLevel(cfg.Level)}

	format := cfg.Format
	if format == "auto" {
		format = "json"
		if isatty.IsTerminal(os.Stdout.Fd()) {
			format = "text"
		}
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
