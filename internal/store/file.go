package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"gameshub-server/internal/game"
)

const resultsKey = "results"

// FileStore keeps every key in its own JSON file under dir and rewrites the
// file after each change.
type FileStore struct {
	mu      sync.Mutex
	dir     string
	wins    map[game.Kind]map[string]int
	results []game.Result
}

func OpenFile(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	s := &FileStore{
		dir:  dir,
		wins: make(map[game.Kind]map[string]int),
	}
	for _, kind := range game.Kinds {
		counts := make(map[string]int)
		if err := s.load(winsKey(kind), &counts); err != nil {
			return nil, err
		}
		s.wins[kind] = counts
	}
	if err := s.load(resultsKey, &s.results); err != nil {
		return nil, err
	}
	return s, nil
}

// winsKey names the counter file of a game, e.g. unoWins.
func winsKey(kind game.Kind) string {
	return string(kind) + "Wins"
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStore) load(key string, v any) error {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return nil
}

// save writes key through a temp file so a crash never leaves half a file.
func (s *FileStore) save(key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", key, err)
	}
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return os.Rename(tmp, s.path(key))
}

func (s *FileStore) IncrementWins(ctx context.Context, kind game.Kind, pseudo string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts, ok := s.wins[kind]
	if !ok {
		return 0, fmt.Errorf("unknown game %q", kind)
	}
	counts[pseudo]++
	if err := s.save(winsKey(kind), counts); err != nil {
		counts[pseudo]--
		if counts[pseudo] == 0 {
			delete(counts, pseudo)
		}
		return 0, err
	}
	return counts[pseudo], nil
}

func (s *FileStore) Wins(ctx context.Context, kind game.Kind) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int, len(s.wins[kind]))
	for k, v := range s.wins[kind] {
		out[k] = v
	}
	return out, nil
}

func (s *FileStore) Leaderboard(ctx context.Context, kind game.Kind, limit int) ([]Entry, error) {
	wins, err := s.Wins(ctx, kind)
	if err != nil {
		return nil, err
	}
	return rank(wins, limit), nil
}

func (s *FileStore) RecordResult(ctx context.Context, res game.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	s.results = append(s.results, res)
	return s.save(resultsKey, s.results)
}

func (s *FileStore) Results(ctx context.Context, kind game.Kind, limit int) ([]game.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []game.Result
	for _, res := range slices.Backward(s.results) {
		if res.Kind != kind {
			continue
		}
		out = append(out, res)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *FileStore) CleanupResults(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	before := len(s.results)
	s.results = slices.DeleteFunc(s.results, func(res game.Result) bool {
		return res.FinishedAt.Before(cutoff)
	})
	deleted := before - len(s.results)
	if deleted == 0 {
		return 0, nil
	}
	return deleted, s.save(resultsKey, s.results)
}

func (s *FileStore) Health(ctx context.Context) map[string]string {
	stats := map[string]string{"driver": DriverFile, "dir": s.dir}
	if _, err := os.Stat(s.dir); err != nil {
		stats["status"] = "down"
		stats["error"] = err.Error()
		return stats
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stats["status"] = "up"
	stats["results"] = strconv.Itoa(len(s.results))
	return stats
}

func (s *FileStore) Close() error {
	return nil
}
