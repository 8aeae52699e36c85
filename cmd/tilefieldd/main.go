// Command tilefieldd serves seeded terrain tile maps to the scene layer.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/tilefield/internal/api"
	"github.com/talgya/tilefield/internal/config"
	"github.com/talgya/tilefield/internal/entropy"
	"github.com/talgya/tilefield/internal/persistence"
	"github.com/talgya/tilefield/internal/terrain"
)

func main() {
	configPath := flag.String("config", "tilefield.yaml", "path to configuration file")
	freshTable := flag.Bool("fresh-table", false, "draw a new permutation table even if one is stored")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	slog.Info("tilefield starting",
		"grid", strconv.Itoa(cfg.Gen.Height)+"x"+strconv.Itoa(cfg.Gen.Width),
		"field", cfg.Gen.Field,
		"table", cfg.Gen.Table,
		"seed", cfg.Seed,
	)

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		slog.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Permutation table (reused across restarts) ────────────────────
	tableID, gen, err := loadOrDrawTable(db, cfg, *freshTable)
	if err != nil {
		slog.Error("failed to prepare permutation table", "error", err)
		os.Exit(1)
	}
	field := terrain.NewField(cfg.Gen, gen)

	seed := restoreSeed(db, cfg.Seed, os.Getenv("TILEFIELD_SEED") != "")

	// ── Initial map ───────────────────────────────────────────────────
	m, err := terrain.GenerateMap(field, cfg.Gen, seed)
	if err != nil {
		slog.Error("map generation failed", "error", err)
		os.Exit(1)
	}
	counts := terrain.TileCounts(m)
	for _, t := range terrain.SortedTiles(counts) {
		slog.Info("tiles", "type", t.String(), "count", humanize.Comma(int64(counts[t])))
	}
	if _, err := db.SaveMap(tableID, m); err != nil {
		slog.Error("initial save failed", "error", err)
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("TILEFIELD_ADMIN_KEY not set, seed updates will be disabled")
	}
	limiter := api.NewRateLimiter(600, time.Minute)
	limiter.TrustForwarded = cfg.TrustProxy
	srv := &api.Server{
		Gen:        gen,
		Field:      field,
		Config:     cfg.Gen,
		DB:         db,
		TableID:    tableID,
		Spacing:    cfg.Spacing,
		Port:       cfg.APIPort,
		AdminKey:   cfg.AdminKey,
		MapLimiter: limiter,
	}
	srv.SetSeed(seed)
	srv.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
	slog.Info("tilefield stopped", "seed", srv.Seed())
}

// loadOrDrawTable returns the table to sample from. An ambient table is the
// newest stored ambient table unless fresh is set. A seeded table is rebuilt
// from TableSeed and stored only if no identical row exists yet.
func loadOrDrawTable(db *persistence.DB, cfg config.Config, fresh bool) (string, *terrain.Generator, error) {
	if cfg.Gen.Table == terrain.TableSeeded {
		g := terrain.NewSeeded(cfg.Gen.TableSeed)
		id, err := db.FindTable(g, terrain.TableSeeded)
		switch {
		case err == nil:
			slog.Info("reusing stored permutation table", "id", id, "table_seed", cfg.Gen.TableSeed)
			return id, g, nil
		case !errors.Is(err, persistence.ErrNotFound):
			return "", nil, err
		}
		id, err = db.SaveTable(g, terrain.TableSeeded)
		if err != nil {
			return "", nil, err
		}
		return id, g, nil
	}

	if !fresh {
		id, g, err := db.LatestTable(terrain.TableAmbient)
		if err == nil {
			slog.Info("reusing stored permutation table", "id", id)
			return id, g, nil
		}
		if !errors.Is(err, persistence.ErrNotFound) {
			return "", nil, err
		}
	}

	src := entropy.NewClient(cfg.RandomOrgKey)
	if src.Enabled() {
		slog.Info("drawing permutation table from random.org")
	}
	g := terrain.New(src)
	id, err := db.SaveTable(g, terrain.TableAmbient)
	if err != nil {
		return "", nil, err
	}
	return id, g, nil
}

// restoreSeed returns the last seed a client confirmed, falling back to
// configured. A seed pinned through the environment always wins.
func restoreSeed(db *persistence.DB, configured int64, pinned bool) int64 {
	if pinned {
		slog.Info("using seed from environment", "seed", configured)
		return configured
	}
	v, err := db.GetMeta("seed")
	if err != nil {
		return configured
	}
	seed, err := config.ParseSeed(v)
	if err != nil {
		slog.Warn("ignoring stored seed", "value", v, "error", err)
		return configured
	}
	if seed != configured {
		slog.Info("restored seed overrides configuration", "seed", seed, "config_seed", configured)
	}
	return seed
}
