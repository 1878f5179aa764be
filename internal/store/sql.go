package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"gameshub-server/internal/game"
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its dialect and filesystem in package globals.
var gooseMu sync.Mutex

// SQLStore persists counters and results in SQLite or Postgres. Queries are
// written with ? placeholders and rebound for Postgres.
type SQLStore struct {
	db     *sql.DB
	driver string
}

func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	var sqlDriver, dialect string
	switch driver {
	case DriverSQLite:
		sqlDriver, dialect = "sqlite3", "sqlite3"
		if !strings.Contains(dsn, "?") {
			dsn += "?_busy_timeout=5000&_journal_mode=WAL"
		}
	case DriverPostgres:
		sqlDriver, dialect = "pgx", "postgres"
	default:
		return nil, fmt.Errorf("unknown sql driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// One writer at a time keeps SQLite from returning SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := runMigrations(ctx, db, dialect); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLStore{db: db, driver: driver}, nil
}

// runMigrations applies the embedded migrations using goose
func runMigrations(ctx context.Context, db *sql.DB, dialect string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// rebind turns ? placeholders into $1, $2... for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) IncrementWins(ctx context.Context, kind game.Kind, pseudo string) (int, error) {
	query := s.rebind(`
		INSERT INTO win_counts (game, pseudo, wins, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (game, pseudo) DO UPDATE
		SET wins = win_counts.wins + 1, updated_at = excluded.updated_at
		RETURNING wins
	`)

	var wins int
	err := s.db.QueryRowContext(ctx, query, string(kind), pseudo, time.Now().UTC()).Scan(&wins)
	if err != nil {
		return 0, fmt.Errorf("failed to increment wins for %s: %w", pseudo, err)
	}
	return wins, nil
}

func (s *SQLStore) Wins(ctx context.Context, kind game.Kind) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT pseudo, wins FROM win_counts WHERE game = ?`), string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query wins: %w", err)
	}
	defer rows.Close()

	wins := make(map[string]int)
	for rows.Next() {
		var pseudo string
		var n int
		if err := rows.Scan(&pseudo, &n); err != nil {
			return nil, fmt.Errorf("failed to scan wins row: %w", err)
		}
		wins[pseudo] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wins rows: %w", err)
	}
	return wins, nil
}

func (s *SQLStore) Leaderboard(ctx context.Context, kind game.Kind, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	query := s.rebind(`
		SELECT pseudo, wins FROM win_counts
		WHERE game = ?
		ORDER BY wins DESC, pseudo ASC
		LIMIT ?
	`)

	rows, err := s.db.QueryContext(ctx, query, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Pseudo, &e.Wins); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLStore) RecordResult(ctx context.Context, res game.Result) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	players, err := json.Marshal(res.Players)
	if err != nil {
		return fmt.Errorf("failed to serialize players: %w", err)
	}

	query := s.rebind(`
		INSERT INTO match_results (id, game, room, players, winner, draw, aborted, reason, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = s.db.ExecContext(ctx, query,
		res.ID,
		string(res.Kind),
		res.Room,
		string(players),
		res.Winner,
		res.Draw,
		res.Aborted,
		res.Reason,
		res.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save result %s: %w", res.ID, err)
	}
	return nil
}

func (s *SQLStore) Results(ctx context.Context, kind game.Kind, limit int) ([]game.Result, error) {
	if limit <= 0 {
		limit = 100
	}
	query := s.rebind(`
		SELECT id, game, room, players, winner, draw, aborted, reason, finished_at
		FROM match_results
		WHERE game = ?
		ORDER BY finished_at DESC
		LIMIT ?
	`)

	rows, err := s.db.QueryContext(ctx, query, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []game.Result
	for rows.Next() {
		var res game.Result
		var kindStr, players string
		err := rows.Scan(&res.ID, &kindStr, &res.Room, &players, &res.Winner, &res.Draw, &res.Aborted, &res.Reason, &res.FinishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		res.Kind = game.Kind(kindStr)
		if err := json.Unmarshal([]byte(players), &res.Players); err != nil {
			return nil, fmt.Errorf("failed to deserialize players of %s: %w", res.ID, err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating result rows: %w", err)
	}
	return results, nil
}

// CleanupResults deletes match history older than olderThan
func (s *SQLStore) CleanupResults(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM match_results WHERE finished_at < ?`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old results: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check deletion result: %w", err)
	}
	return int(n), nil
}

// Health pings the database and reports pool statistics.
func (s *SQLStore) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	stats := map[string]string{"driver": s.driver}
	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	return stats
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
