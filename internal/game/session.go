package game

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Notifier delivers server events to identities. Send must not block.
type Notifier interface {
	Send(pseudo, event string, payload any)
	Connected() []string
}

// Table is the game-agnostic face of a Session, used by the room registry and
// the transport handlers.
type Table interface {
	Kind() Kind
	Room() string
	Join(pseudo string) error
	Leave(pseudo string) error
	Start(pseudo string) error
	Act(pseudo, action string, payload json.RawMessage) error
	SendState(pseudo string)
	BroadcastLobby()
	Abort(reason string) bool
	Has(pseudo string) bool
	Snapshot() Snapshot
	// CloseIfIdle closes an empty lobby untouched for longer than idle.
	// A closed session refuses every later call with ErrSessionClosed.
	CloseIfIdle(idle time.Duration) bool
}

type Options struct {
	// TurnTimeout arms a timer on every turn. Zero disables it.
	TurnTimeout time.Duration

	// EndDisplayDelay is how long clients keep the end screen up.
	EndDisplayDelay time.Duration

	Notifier Notifier

	// OnFinish runs once, with the session lock held, after a win, draw or
	// abort. It must not call back into the finished session.
	OnFinish func(Table, Result)

	Logger logrus.FieldLogger
	Now    func() time.Time
}

// Session is one match of a turn-based game: lobby, turn order, spectators
// and the turn timer around a game-specific Rules module. Every exported
// method takes the session lock, so moves are applied one at a time in the
// order they arrive.
type Session[M any] struct {
	mu    sync.Mutex
	kind  Kind
	room  string
	rules Rules[M]
	opts  Options
	log   logrus.FieldLogger

	status     Status
	players    []string
	spectators []string
	message    string

	timer        *time.Timer
	generation   uint64
	deadline     time.Time
	lastActivity time.Time
}

func NewSession[M any](kind Kind, room string, rules Rules[M], opts Options) *Session[M] {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}

	return &Session[M]{
		kind:         kind,
		room:         room,
		rules:        rules,
		opts:         opts,
		log:          opts.Logger.WithFields(logrus.Fields{"game": kind, "room": room}),
		status:       StatusLobby,
		lastActivity: opts.Now(),
	}
}

func (s *Session[M]) Kind() Kind   { return s.kind }
func (s *Session[M]) Room() string { return s.room }

func (s *Session[M]) Join(pseudo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusFinished:
		return ErrSessionClosed
	case StatusPlaying:
		if s.isMember(pseudo) {
			s.sendStateLocked(pseudo)
			return ErrAlreadyJoined
		}
		s.touch()
		s.spectators = append(s.spectators, pseudo)
		s.log.WithField("pseudo", pseudo).Info("joined as spectator")
		s.sendStateLocked(pseudo)
		s.broadcastLobbyLocked()
		return ErrGameInProgress
	}

	if slices.Contains(s.players, pseudo) {
		return ErrAlreadyJoined
	}
	if len(s.players) >= s.rules.MaxPlayers() {
		return ErrLobbyFull
	}

	s.touch()
	s.players = append(s.players, pseudo)
	s.log.WithField("pseudo", pseudo).Info("joined lobby")
	s.broadcastLobbyLocked()
	return nil
}

func (s *Session[M]) Leave(pseudo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusFinished {
		return ErrSessionClosed
	}

	if i := slices.Index(s.spectators, pseudo); i >= 0 {
		s.touch()
		s.spectators = slices.Delete(s.spectators, i, i+1)
		s.broadcastLobbyLocked()
		return nil
	}

	i := slices.Index(s.players, pseudo)
	if i < 0 {
		return ErrNotAMember
	}
	s.touch()

	if s.status == StatusLobby {
		s.players = slices.Delete(s.players, i, i+1)
		s.log.WithField("pseudo", pseudo).Info("left lobby")
		s.broadcastLobbyLocked()
		return nil
	}

	reason := fmt.Sprintf("%s left the game", pseudo)
	if len(s.players)-1 < s.rules.MinPlayers() {
		s.abortLocked(reason)
		return nil
	}

	wasTurn := s.rules.Current() == i
	if err := s.rules.Remove(i); err != nil {
		s.log.WithError(err).Warn("cannot continue without leaving player")
		s.abortLocked(reason)
		return nil
	}
	s.players = slices.Delete(s.players, i, i+1)
	s.message = reason
	if wasTurn {
		s.armTimerLocked()
	}
	s.broadcastStateLocked("update")
	s.broadcastLobbyLocked()
	return nil
}

func (s *Session[M]) Start(pseudo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusFinished:
		return ErrSessionClosed
	case StatusPlaying:
		return ErrNotInLobby
	}
	if !slices.Contains(s.players, pseudo) {
		return ErrNotAPlayer
	}
	if !s.canStartLocked() {
		return ErrCannotStart
	}

	if err := s.rules.Start(slices.Clone(s.players)); err != nil {
		return fmt.Errorf("start %s: %w", s.kind, err)
	}

	s.touch()
	s.status = StatusPlaying
	s.message = fmt.Sprintf("%s started the game", pseudo)
	s.log.WithField("players", s.players).Info("game started")
	s.armTimerLocked()
	s.broadcastStateLocked("gameStart")
	s.broadcastLobbyLocked()
	return nil
}

// Act applies a move from pseudo. Turn ownership and the session status are
// checked on every call; nothing the client believes is trusted.
func (s *Session[M]) Act(pseudo, action string, payload json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusFinished:
		return ErrSessionClosed
	case StatusLobby:
		return ErrNotPlaying
	}

	i := slices.Index(s.players, pseudo)
	if i < 0 {
		return ErrNotAPlayer
	}
	if s.rules.Current() != i {
		return ErrNotYourTurn
	}

	move, err := s.rules.DecodeMove(action, payload)
	if err != nil {
		return err
	}
	out, err := s.rules.Apply(i, move)
	if err != nil {
		return err
	}

	s.touch()
	s.advanceLocked(out)
	return nil
}

func (s *Session[M]) SendState(pseudo string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opts.Notifier.Send(pseudo, s.event("lobby"), s.lobbyStateLocked(pseudo))
	if s.status == StatusPlaying {
		s.sendStateLocked(pseudo)
	}
}

func (s *Session[M]) BroadcastLobby() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLobbyLocked()
}

// Abort ends a game in progress for everyone. It reports whether a game was
// actually running.
func (s *Session[M]) Abort(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusPlaying {
		return false
	}
	s.abortLocked(reason)
	return true
}

func (s *Session[M]) Has(pseudo string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isMember(pseudo)
}

func (s *Session[M]) CloseIfIdle(idle time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusLobby || len(s.players) > 0 || len(s.spectators) > 0 {
		return false
	}
	if s.opts.Now().Sub(s.lastActivity) <= idle {
		return false
	}
	s.status = StatusFinished
	s.log.Info("idle room closed")
	return true
}

func (s *Session[M]) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Kind:         s.kind,
		Room:         s.room,
		Status:       s.status,
		Players:      slices.Clone(s.players),
		Spectators:   slices.Clone(s.spectators),
		DeadlineAt:   s.deadline,
		LastActivity: s.lastActivity,
	}
	if s.status == StatusPlaying {
		snap.Turn = s.players[s.rules.Current()]
	}
	return snap
}

func (s *Session[M]) advanceLocked(out Outcome) {
	s.message = out.Message
	if out.Finished {
		s.cancelTimerLocked()
		s.broadcastStateLocked("update")
		s.finishLocked(out)
		return
	}
	s.armTimerLocked()
	s.broadcastStateLocked("update")
}

func (s *Session[M]) finishLocked(out Outcome) {
	s.cancelTimerLocked()
	s.status = StatusFinished

	res := s.resultLocked()
	end := s.gameEndLocked()
	switch {
	case out.Draw:
		res.Draw = true
		end.Draw = true
	case out.Winner >= 0 && out.Winner < len(s.players):
		res.Winner = s.players[out.Winner]
		end.Winner = res.Winner
	}

	s.log.WithFields(logrus.Fields{"winner": res.Winner, "draw": res.Draw}).Info("game finished")
	s.notifyMembersLocked("gameEnd", end)
	if s.opts.OnFinish != nil {
		s.opts.OnFinish(s, res)
	}
}

func (s *Session[M]) abortLocked(reason string) {
	s.cancelTimerLocked()
	s.status = StatusFinished
	s.message = reason

	res := s.resultLocked()
	res.Aborted = true
	res.Reason = reason
	end := s.gameEndLocked()
	end.Winner = AbortedWinner
	end.Reason = reason

	s.log.WithField("reason", reason).Info("game aborted")
	s.notifyMembersLocked("gameEnd", end)
	if s.opts.OnFinish != nil {
		s.opts.OnFinish(s, res)
	}
}

func (s *Session[M]) resultLocked() Result {
	return Result{
		Kind:       s.kind,
		Room:       s.room,
		Players:    slices.Clone(s.players),
		FinishedAt: s.opts.Now(),
	}
}

func (s *Session[M]) gameEndLocked() GameEnd {
	return GameEnd{
		Game:            s.kind,
		Room:            s.room,
		ReturnToLobbyMs: s.opts.EndDisplayDelay.Milliseconds(),
	}
}

// armTimerLocked replaces the turn timer. The previous timer is stopped and
// its generation retired before the new one exists.
func (s *Session[M]) armTimerLocked() {
	s.cancelTimerLocked()
	if s.opts.TurnTimeout <= 0 || s.status != StatusPlaying {
		return
	}

	s.generation++
	gen := s.generation
	s.deadline = s.opts.Now().Add(s.opts.TurnTimeout)
	s.timer = time.AfterFunc(s.opts.TurnTimeout, func() {
		s.onTimeout(gen)
	})
}

func (s *Session[M]) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	// A callback already waiting on the lock sees a newer generation and bails.
	s.generation++
	s.deadline = time.Time{}
}

func (s *Session[M]) onTimeout(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.status != StatusPlaying {
		s.log.Debug("stale turn timer ignored")
		return
	}
	s.timer = nil

	current := s.rules.Current()
	out, ok := s.rules.Timeout(current)
	if !ok {
		s.deadline = time.Time{}
		return
	}

	s.log.WithField("pseudo", s.players[current]).Info("turn timed out")
	s.touch()
	s.advanceLocked(out)
}

func (s *Session[M]) canStartLocked() bool {
	n := len(s.players)
	return n >= s.rules.MinPlayers() && n <= s.rules.MaxPlayers()
}

func (s *Session[M]) isMember(pseudo string) bool {
	return slices.Contains(s.players, pseudo) || slices.Contains(s.spectators, pseudo)
}

func (s *Session[M]) touch() {
	s.lastActivity = s.opts.Now()
}

func (s *Session[M]) event(name string) string {
	return string(s.kind) + ":" + name
}

func (s *Session[M]) lobbyStateLocked(pseudo string) LobbyState {
	return LobbyState{
		Game:       s.kind,
		Room:       s.room,
		Players:    slices.Clone(s.players),
		Spectators: slices.Clone(s.spectators),
		GameState:  s.status,
		MyIdentity: pseudo,
		AmIInLobby: slices.Contains(s.players, pseudo),
		CanStart:   s.status == StatusLobby && s.canStartLocked(),
		MinPlayers: s.rules.MinPlayers(),
		MaxPlayers: s.rules.MaxPlayers(),
	}
}

func (s *Session[M]) stateForLocked(pseudo string) GameState {
	viewer := slices.Index(s.players, pseudo)
	current := s.rules.Current()

	players := make([]PlayerInfo, len(s.players))
	for i, p := range s.players {
		players[i] = PlayerInfo{Pseudo: p, IsActiveTurn: i == current}
	}

	st := GameState{
		Game:        s.kind,
		Room:        s.room,
		GameState:   s.status,
		MyIdentity:  pseudo,
		Players:     players,
		Spectators:  slices.Clone(s.spectators),
		Turn:        s.players[current],
		IsYourTurn:  viewer >= 0 && viewer == current,
		IsSpectator: viewer < 0,
		Message:     s.message,
	}
	if !s.deadline.IsZero() {
		deadline := s.deadline
		st.TurnDeadlineAt = &deadline
	}
	if viewer < 0 {
		st.State = s.rules.View(Spectator)
	} else {
		st.State = s.rules.View(viewer)
	}
	return st
}

func (s *Session[M]) sendStateLocked(pseudo string) {
	s.opts.Notifier.Send(pseudo, s.event("update"), s.stateForLocked(pseudo))
}

// broadcastStateLocked sends each member their own projection.
func (s *Session[M]) broadcastStateLocked(event string) {
	for _, p := range s.members() {
		s.opts.Notifier.Send(p, s.event(event), s.stateForLocked(p))
	}
}

func (s *Session[M]) broadcastLobbyLocked() {
	for _, p := range s.opts.Notifier.Connected() {
		s.opts.Notifier.Send(p, s.event("lobby"), s.lobbyStateLocked(p))
	}
}

func (s *Session[M]) notifyMembersLocked(event string, payload any) {
	for _, p := range s.members() {
		s.opts.Notifier.Send(p, s.event(event), payload)
	}
}

func (s *Session[M]) members() []string {
	return append(slices.Clone(s.players), s.spectators...)
}

type nopNotifier struct{}

func (nopNotifier) Send(string, string, any) {}
func (nopNotifier) Connected() []string      { return nil }
