// Package store keeps what outlives a match: per-game win counters and the
// history of finished matches.
package store

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gameshub-server/internal/game"
)

type Store interface {
	// IncrementWins adds one win and returns the new total.
	IncrementWins(ctx context.Context, kind game.Kind, pseudo string) (int, error)
	Wins(ctx context.Context, kind game.Kind) (map[string]int, error)
	// Leaderboard is sorted by wins, most first, ties by pseudo.
	Leaderboard(ctx context.Context, kind game.Kind, limit int) ([]Entry, error)

	RecordResult(ctx context.Context, res game.Result) error
	// Results returns the most recent matches of a game, newest first.
	Results(ctx context.Context, kind game.Kind, limit int) ([]game.Result, error)
	CleanupResults(ctx context.Context, olderThan time.Duration) (int, error)

	Health(ctx context.Context) map[string]string
	Close() error
}

type Entry struct {
	Pseudo string `json:"pseudo"`
	Wins   int    `json:"wins"`
}

const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver      string
	DataDir     string
	DatabaseURL string
}

// Open returns the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverFile, "":
		return OpenFile(cfg.DataDir)
	case DriverSQLite:
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dir := cmp.Or(cfg.DataDir, "data")
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
			dsn = filepath.Join(dir, "gameshub.db")
		}
		return OpenSQL(ctx, DriverSQLite, dsn)
	case DriverPostgres:
		return OpenSQL(ctx, DriverPostgres, cfg.DatabaseURL)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func rank(wins map[string]int, limit int) []Entry {
	entries := make([]Entry, 0, len(wins))
	for pseudo, n := range wins {
		entries = append(entries, Entry{Pseudo: pseudo, Wins: n})
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(b.Wins, a.Wins); c != 0 {
			return c
		}
		return cmp.Compare(a.Pseudo, b.Pseudo)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
