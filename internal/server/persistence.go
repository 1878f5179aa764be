package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"gameshub-server/internal/game"
	"gameshub-server/internal/store"
)

const (
	leaderboardSize = 10
	storeTimeout    = 5 * time.Second
)

// PersistenceManager is the bridge between finished sessions and the store.
// Results are queued and handled in order by one worker, so a win is counted
// before the leaderboard that includes it is pushed. Submit only appends to
// the queue, so sessions never wait on the store.
type PersistenceManager struct {
	store         store.Store
	log           logrus.FieldLogger
	onLeaderboard func(LeaderboardMessage)

	mu      sync.Mutex
	pending []game.Result
	wake    chan struct{}
	done    chan struct{}
	closed  bool
}

func NewPersistenceManager(st store.Store, log logrus.FieldLogger, onLeaderboard func(LeaderboardMessage)) *PersistenceManager {
	pm := &PersistenceManager{
		store:         st,
		log:           log,
		onLeaderboard: onLeaderboard,
		wake:          make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	go pm.run()
	return pm
}

// Submit queues a terminal result. Results submitted after Close are logged
// and dropped.
func (pm *PersistenceManager) Submit(res game.Result) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.closed {
		pm.log.WithField("result", res.ID).Warn("result dropped after shutdown")
		return
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	pm.pending = append(pm.pending, res)
	pm.signal()
}

func (pm *PersistenceManager) signal() {
	select {
	case pm.wake <- struct{}{}:
	default:
	}
}

// Pending is the number of results not yet handed to the store.
func (pm *PersistenceManager) Pending() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.pending)
}

func (pm *PersistenceManager) run() {
	defer close(pm.done)
	for range pm.wake {
		for {
			pm.mu.Lock()
			if len(pm.pending) == 0 {
				closed := pm.closed
				pm.mu.Unlock()
				if closed {
					return
				}
				break
			}
			res := pm.pending[0]
			pm.pending = pm.pending[1:]
			pm.mu.Unlock()

			pm.process(res)
		}
	}
}

func (pm *PersistenceManager) process(res game.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	log := pm.log.WithFields(logrus.Fields{"game": res.Kind, "room": res.Room, "result": res.ID})

	if err := pm.store.RecordResult(ctx, res); err != nil {
		log.WithError(err).Error("failed to record result")
	}
	if res.Winner == "" || res.Aborted || res.Draw {
		return
	}

	wins, err := pm.store.IncrementWins(ctx, res.Kind, res.Winner)
	if err != nil {
		log.WithError(err).WithField("winner", res.Winner).Error("failed to count win")
		return
	}
	log.WithFields(logrus.Fields{"winner": res.Winner, "wins": wins}).Info("win recorded")

	entries, err := pm.store.Leaderboard(ctx, res.Kind, leaderboardSize)
	if err != nil {
		log.WithError(err).Error("failed to load leaderboard")
		return
	}
	if pm.onLeaderboard != nil {
		pm.onLeaderboard(LeaderboardMessage{Game: res.Kind, Entries: entries})
	}
}

func (pm *PersistenceManager) Leaderboard(ctx context.Context, kind game.Kind, limit int) (LeaderboardMessage, error) {
	if limit <= 0 || limit > 100 {
		limit = leaderboardSize
	}
	entries, err := pm.store.Leaderboard(ctx, kind, limit)
	if err != nil {
		return LeaderboardMessage{}, err
	}
	return LeaderboardMessage{Game: kind, Entries: entries}, nil
}

func (pm *PersistenceManager) Results(ctx context.Context, kind game.Kind, limit int) ([]game.Result, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	results, err := pm.store.Results(ctx, kind, limit)
	if results == nil {
		results = []game.Result{}
	}
	return results, err
}

// CleanupOldResults deletes match history older than olderThan
func (pm *PersistenceManager) CleanupOldResults(olderThan time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	return pm.store.CleanupResults(ctx, olderThan)
}

func (pm *PersistenceManager) Health(ctx context.Context) map[string]string {
	return pm.store.Health(ctx)
}

// Close stops accepting results and waits for the queue to drain.
func (pm *PersistenceManager) Close() {
	pm.mu.Lock()
	if pm.closed {
		pm.mu.Unlock()
		return
	}
	pm.closed = true
	pm.signal()
	pm.mu.Unlock()

	<-pm.done
}
