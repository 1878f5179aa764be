package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"gameshub-server/internal/config"
	"gameshub-server/internal/game"
	"gameshub-server/internal/store"
)

const (
	sweepInterval     = time.Minute
	retentionInterval = time.Hour
	inactiveAfter     = 2 * pingInterval
	rateWindow        = time.Second
)

type Server struct {
	cfg   *config.Config
	log   logrus.FieldLogger
	store store.Store

	connectionManager  *ConnectionManager
	gameManager        *GameManager
	sessionManager     *SessionManager
	persistenceManager *PersistenceManager
	rateLimiter        *RateLimiter
	connectionHealth   *ConnectionHealth

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New wires the registries around st. Background tasks start with Start.
func New(cfg *config.Config, st store.Store, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Server{
		cfg:               cfg,
		log:               log,
		store:             st,
		connectionManager: NewConnectionManager(),
		sessionManager:    NewSessionManager(),
		rateLimiter:       NewRateLimiter(cfg.RateLimit, rateWindow),
		connectionHealth:  NewConnectionHealth(),
		stop:              make(chan struct{}),
	}

	s.persistenceManager = NewPersistenceManager(st, log.WithField("component", "persistence"), func(msg LeaderboardMessage) {
		s.broadcastAll("leaderboard", msg)
	})

	s.gameManager = NewGameManager(GameManagerConfig{
		Notifier: s,
		Logger:   log.WithField("component", "games"),
		TurnTimeouts: map[game.Kind]time.Duration{
			game.KindUno:        cfg.UnoTurnTimeout,
			game.KindPuissance4: cfg.P4TurnTimeout,
		},
		EndDisplayDelay: cfg.EndDisplayDelay,
		OnResult:        s.persistenceManager.Submit,
	})

	return s
}

// Start launches the periodic sweeps. They stop on Shutdown.
func (s *Server) Start() {
	s.wg.Add(2)
	go s.sweepTask()
	go s.retentionTask()
}

// sweepTask prunes rate limiter state, drops silent connections and closes
// idle private rooms.
func (s *Server) sweepTask() {
	defer s.wg.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Server) sweep() {
	s.rateLimiter.Cleanup()

	for _, connID := range s.connectionHealth.GetInactiveConnections(inactiveAfter) {
		if client := s.connectionManager.GetConnection(connID); client != nil {
			s.log.WithField("conn", connID).Info("closing inactive connection")
			go client.Close(websocket.StatusGoingAway, "inactive")
		}
		s.connectionHealth.RemoveConnection(connID)
	}

	if s.cfg.RoomIdleTimeout > 0 {
		if closed := s.gameManager.CleanupIdleRooms(s.cfg.RoomIdleTimeout); len(closed) > 0 {
			s.log.WithField("rooms", closed).Info("closed idle rooms")
		}
	}
}

// retentionTask deletes match history past the configured retention.
func (s *Server) retentionTask() {
	defer s.wg.Done()
	if s.cfg.ResultRetention <= 0 {
		return
	}
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			deleted, err := s.persistenceManager.CleanupOldResults(s.cfg.ResultRetention)
			if err != nil {
				s.log.WithError(err).Error("result cleanup failed")
				continue
			}
			if deleted > 0 {
				s.log.WithField("deleted", deleted).Info("old results removed")
			}
		}
	}
}

// Shutdown aborts running games, tells every client, flushes pending results
// and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()

	aborted := s.gameManager.AbortAll("server shutting down")
	s.log.WithField("games", aborted).Info("games aborted for shutdown")

	data, _ := json.Marshal(errorFrame(ErrServerShutdown))
	// Close handshakes finish on their own; a peer that stopped reading must
	// not hold up the flush.
	for _, client := range s.connectionManager.All() {
		go func() {
			_ = client.WriteNow(ctx, data)
			client.Close(websocket.StatusGoingAway, "server shutting down")
		}()
	}

	flushed := make(chan struct{})
	go func() {
		s.persistenceManager.Close()
		close(flushed)
	}()
	select {
	case <-flushed:
	case <-ctx.Done():
		s.log.Warn("shutdown deadline reached before results were flushed")
		return ctx.Err()
	}

	return s.store.Close()
}
