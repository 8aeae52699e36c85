// Command tilemap prints a single generated tile map, or the maps stored by
// tilefieldd.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/talgya/tilefield/internal/config"
	"github.com/talgya/tilefield/internal/entropy"
	"github.com/talgya/tilefield/internal/persistence"
	"github.com/talgya/tilefield/internal/terrain"
)

func main() {
	configPath := flag.String("config", "tilefield.yaml", "path to configuration file")
	seed := flag.Int64("seed", 0, "map seed (default from config)")
	width := flag.Int("width", 0, "grid width (0 = from config)")
	height := flag.Int("height", 0, "grid height (0 = from config)")
	asJSON := flag.Bool("json", false, "print the map as JSON")
	history := flag.Int("history", 0, "list the N most recent stored maps instead of generating")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if *history > 0 {
		if err := printHistory(os.Stdout, cfg.DBPath, *history); err != nil {
			slog.Error("history failed", "error", err)
			os.Exit(1)
		}
		return
	}

	seedSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			seedSet = true
		}
	})
	if !seedSet {
		*seed = cfg.Seed
	}
	if *width > 0 {
		cfg.Gen.Width = *width
	}
	if *height > 0 {
		cfg.Gen.Height = *height
	}

	gen, err := loadGenerator(cfg)
	if err != nil {
		slog.Error("failed to prepare permutation table", "error", err)
		os.Exit(1)
	}
	m, err := terrain.GenerateMap(terrain.NewField(cfg.Gen, gen), cfg.Gen, *seed)
	if err != nil {
		slog.Error("map generation failed", "error", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(m); err != nil {
			slog.Error("encode failed", "error", err)
			os.Exit(1)
		}
		return
	}

	color := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	printMap(os.Stdout, m, color)
}

// loadGenerator uses the ambient table tilefieldd stored in cfg.DBPath so a
// seed reproduces the served map. Without a stored table a new one is drawn.
func loadGenerator(cfg config.Config) (*terrain.Generator, error) {
	if cfg.Gen.Table == terrain.TableAmbient {
		_, err := os.Stat(cfg.DBPath)
		switch {
		case err == nil:
			db, err := persistence.Open(cfg.DBPath)
			if err != nil {
				return nil, err
			}
			defer db.Close()

			_, g, err := db.LatestTable(terrain.TableAmbient)
			if err == nil {
				return g, nil
			}
			if !errors.Is(err, persistence.ErrNotFound) {
				return nil, err
			}
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("stat %s: %w", cfg.DBPath, err)
		}
		slog.Warn("no stored table, drawing a new one", "db", cfg.DBPath)
	}
	return terrain.BuildGenerator(cfg.Gen, entropy.NewClient(cfg.RandomOrgKey)), nil
}

var tileGlyphs = map[terrain.Tile]struct {
	glyph string
	ansi  string
}{
	terrain.TileNone:  {".", "\033[90m"},
	terrain.TileGrass: {"\"", "\033[32m"},
	terrain.TileRock:  {"^", "\033[37m"},
	terrain.TileTree:  {"T", "\033[33m"},
}

// printMap draws one glyph per cell, rows top to bottom, followed by counts.
func printMap(w io.Writer, m *terrain.Map, color bool) {
	for _, row := range m.Cells {
		var b strings.Builder
		for _, t := range row {
			g := tileGlyphs[t]
			if color {
				b.WriteString(g.ansi + g.glyph + "\033[0m")
			} else {
				b.WriteString(g.glyph)
			}
		}
		fmt.Fprintln(w, b.String())
	}

	counts := terrain.TileCounts(m)
	parts := make([]string, 0, len(counts))
	for _, t := range terrain.SortedTiles(counts) {
		parts = append(parts, fmt.Sprintf("%s=%s", t, humanize.Comma(int64(counts[t]))))
	}
	fmt.Fprintf(w, "seed %d  %s\n", m.Seed, strings.Join(parts, " "))
	if m.Clamped > 0 {
		fmt.Fprintf(w, "%d cells clamped into [0,1]\n", m.Clamped)
	}
}

func printHistory(w io.Writer, dbPath string, limit int) error {
	db, err := persistence.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	recs, err := db.RecentMaps(limit)
	if err != nil {
		return fmt.Errorf("recent maps: %w", err)
	}
	if len(recs) == 0 {
		fmt.Fprintln(w, "no stored maps")
		return nil
	}
	for _, r := range recs {
		fmt.Fprintf(w, "%s  seed=%-8d %dx%d  %s\n",
			r.ID, r.Seed, r.Height, r.Width, humanize.Time(r.Created()))
	}
	return nil
}
