package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"

	"gameshub-server/internal/game"
)

const qrSize = 256

func (s *Server) RegisterRoutes() http.Handler {
	router := httprouter.New()

	router.GET("/", s.indexHandler)
	router.GET("/health", s.healthHandler)
	router.HandlerFunc(http.MethodGet, "/websocket", s.websocketHandler)
	router.GET("/leaderboard/:game", s.leaderboardHandler)
	router.GET("/history/:game", s.historyHandler)
	router.GET("/rooms/:game", s.roomsHandler)
	router.GET("/rooms/:game/:code/qr.png", s.qrHandler)

	return s.corsMiddleware(router)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Pseudo")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	resp, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(resp); err != nil {
		s.log.WithError(err).Warn("failed to write response")
	}
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"name":  "gameshub",
		"games": game.Kinds,
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	st := s.persistenceManager.Health(r.Context())
	resp := HealthResponse{
		Status:      st["status"],
		Connections: s.connectionManager.Count(),
		Rooms:       s.gameManager.RoomCount(),
		Store:       st,
	}
	status := http.StatusOK
	if resp.Status != "up" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

func parseGame(w http.ResponseWriter, ps httprouter.Params) (game.Kind, bool) {
	kind, ok := game.ParseKind(ps.ByName("game"))
	if !ok {
		http.Error(w, "unknown game", http.StatusNotFound)
	}
	return kind, ok
}

func (s *Server) leaderboardHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	kind, ok := parseGame(w, ps)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	board, err := s.persistenceManager.Leaderboard(r.Context(), kind, limit)
	if err != nil {
		s.log.WithError(err).Error("failed to load leaderboard")
		http.Error(w, "failed to load leaderboard", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, board)
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	kind, ok := parseGame(w, ps)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := s.persistenceManager.Results(r.Context(), kind, limit)
	if err != nil {
		s.log.WithError(err).Error("failed to load match history")
		http.Error(w, "failed to load match history", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) roomsHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	kind, ok := parseGame(w, ps)
	if !ok {
		return
	}

	rooms := []RoomSummary{}
	for _, t := range s.gameManager.Tables(kind) {
		snap := t.Snapshot()
		rooms = append(rooms, RoomSummary{
			Game:       snap.Kind,
			Room:       snap.Room,
			Status:     snap.Status,
			Players:    snap.Players,
			Spectators: len(snap.Spectators),
			Turn:       snap.Turn,
		})
	}
	s.writeJSON(w, http.StatusOK, rooms)
}

// joinURL is the link a QR code points at: the client page with the game and
// room preselected.
func (s *Server) joinURL(kind game.Kind, code string) string {
	q := url.Values{}
	q.Set("game", string(kind))
	q.Set("room", code)
	return s.cfg.BaseURL() + "/?" + q.Encode()
}

func (s *Server) qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	kind, ok := parseGame(w, ps)
	if !ok {
		return
	}
	code := NormalizeRoomCode(ps.ByName("code"))
	if _, err := s.gameManager.GetTable(kind, code); err != nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	png, err := qrcode.Encode(s.joinURL(kind, code), qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// identity reads the pseudo set by the fronting auth layer.
func identity(r *http.Request) string {
	if pseudo := r.Header.Get("X-Pseudo"); pseudo != "" {
		return pseudo
	}
	return r.URL.Query().Get("pseudo")
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	pseudo := identity(r)
	if err := ValidatePseudo(pseudo); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.WithError(err).Warn("failed to open websocket")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	connectionID := uuid.New().String()
	client := NewClient(connectionID, pseudo, socket)
	log := s.log.WithFields(logrus.Fields{"conn": connectionID, "pseudo": pseudo})
	log.Info("new connection")

	s.connectionManager.AddConnection(client)
	s.connectionHealth.UpdateActivity(connectionID)
	s.bind(client)

	defer func() {
		client.Close(websocket.StatusNormalClosure, "")
		s.connectionManager.RemoveConnection(connectionID)
		s.rateLimiter.RemoveConnection(connectionID)
		s.connectionHealth.RemoveConnection(connectionID)
		log.Info("connection closed")

		s.sessionManager.Release(pseudo, connectionID, s.cfg.ReconnectGrace, func() {
			if n := s.gameManager.LeaveAll(pseudo); n > 0 {
				log.WithField("rooms", n).Info("player left after disconnect")
			}
		})
	}()

	go client.writePump(ctx, func() {
		s.connectionHealth.UpdateActivity(connectionID)
	})

	s.sendTo(client, "welcome", WelcomeMessage{
		Pseudo:       pseudo,
		ConnectionID: connectionID,
		Games:        game.Kinds,
	})

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			log.WithError(err).Debug("read ended")
			return
		}
		s.connectionHealth.UpdateActivity(connectionID)

		if msgType != websocket.MessageText {
			log.Debug("non-text input ignored")
			continue
		}
		if !s.rateLimiter.Allow(connectionID) {
			s.sendError(client, ErrRateLimited)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(client, fmt.Errorf("%w: invalid JSON", ErrInvalidMessage))
			continue
		}

		// The binding is refreshed on every event; a superseded connection
		// gets no further say.
		if !s.sessionManager.Refresh(pseudo, connectionID) {
			log.Debug("message from superseded connection dropped")
			return
		}

		log.WithFields(logrus.Fields{"type": msg.Type, "room": msg.Room}).Debug("message")
		s.handleMessage(ctx, client, msg)
	}
}

// bind makes client the identity's connection and closes the one it replaces.
func (s *Server) bind(client *Client) {
	previous := s.sessionManager.Bind(client.Pseudo, client.ID)
	if previous == "" {
		return
	}
	old := s.connectionManager.GetConnection(previous)
	if old == nil {
		return
	}

	s.log.WithFields(logrus.Fields{"pseudo": client.Pseudo, "old": previous, "new": client.ID}).Info("connection superseded")
	data, err := encode("disconnected_elsewhere", DisconnectedElsewhereMessage{
		Message: "You connected from another tab or device",
	})
	if err != nil {
		s.log.WithError(err).Error("failed to encode message")
	}
	// The close handshake waits on the old peer; the new connection must not.
	go func() {
		if data != nil {
			_ = old.WriteNow(context.Background(), data)
		}
		old.Close(websocket.StatusPolicyViolation, "disconnected elsewhere")
	}()
}

func (s *Server) handleMessage(ctx context.Context, client *Client, msg ClientMessage) {
	kind, action, err := ParseMessageType(msg.Type)
	if err != nil {
		s.sendError(client, err)
		return
	}

	switch action {
	case "ping":
		s.sendTo(client, "pong", struct{}{})
		return
	case "room:create":
		s.handleCreateRoom(client, msg.Payload)
		return
	case "leaderboard":
		s.handleLeaderboard(ctx, client, msg.Payload)
		return
	}

	table, err := s.gameManager.GetTable(kind, msg.Room)
	if err != nil {
		s.sendError(client, err)
		return
	}

	pseudo := client.Pseudo
	switch action {
	case "getState":
		table.SendState(pseudo)
	case "join":
		// A game in progress seats the caller as a spectator and still
		// reports GAME_IN_PROGRESS, after the state it is now watching.
		err = table.Join(pseudo)
	case "leave":
		err = table.Leave(pseudo)
	case "start":
		err = table.Start(pseudo)
	default:
		err = table.Act(pseudo, action, msg.Payload)
	}
	if err != nil {
		s.sendError(client, err)
	}
}

func (s *Server) handleCreateRoom(client *Client, payload json.RawMessage) {
	var req CreateRoomRequest
	if err := decodePayload(payload, &req); err != nil {
		s.sendError(client, fmt.Errorf("%w: invalid room:create payload", ErrInvalidMessage))
		return
	}

	room, err := s.gameManager.CreateRoom(req.Game)
	if err != nil {
		s.sendError(client, err)
		return
	}

	s.sendTo(client, "room:created", RoomCreatedResponse{
		Game:      room.Kind,
		Room:      room.Code,
		JoinURL:   s.joinURL(room.Kind, room.Code),
		QRCodeURL: fmt.Sprintf("/rooms/%s/%s/qr.png", room.Kind, room.Code),
	})
}

func (s *Server) handleLeaderboard(ctx context.Context, client *Client, payload json.RawMessage) {
	var req LeaderboardRequest
	if err := decodePayload(payload, &req); err != nil {
		s.sendError(client, fmt.Errorf("%w: invalid leaderboard payload", ErrInvalidMessage))
		return
	}
	if _, ok := game.ParseKind(string(req.Game)); !ok {
		s.sendError(client, ErrUnknownGame)
		return
	}

	board, err := s.persistenceManager.Leaderboard(ctx, req.Game, req.Limit)
	if err != nil {
		s.log.WithError(err).Error("failed to load leaderboard")
		s.sendError(client, err)
		return
	}
	s.sendTo(client, "leaderboard", board)
}

// decodePayload treats a missing payload as an empty object.
func decodePayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, v)
}

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(ServerMessage{Type: event, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", event, err)
	}
	return data, nil
}

func (s *Server) sendTo(client *Client, event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		s.log.WithError(err).Error("failed to encode message")
		return
	}
	client.Send(data)
}

// sendError reports a rejected action to the actor only.
func (s *Server) sendError(client *Client, err error) {
	data, merr := json.Marshal(errorFrame(err))
	if merr != nil {
		s.log.WithError(merr).Error("failed to encode error")
		return
	}
	client.Send(data)
}

// Send delivers an event to the live connection of pseudo, if any. Together
// with Connected it makes the Server the game.Notifier of every table.
func (s *Server) Send(pseudo, event string, payload any) {
	client := s.connectionManager.GetConnection(s.sessionManager.ConnectionFor(pseudo))
	if client == nil {
		return
	}
	s.sendTo(client, event, payload)
}

func (s *Server) Connected() []string {
	return s.sessionManager.Connected()
}

// broadcastAll sends one event to every connected identity.
func (s *Server) broadcastAll(event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		s.log.WithError(err).Error("failed to encode broadcast")
		return
	}
	for _, pseudo := range s.sessionManager.Connected() {
		if client := s.connectionManager.GetConnection(s.sessionManager.ConnectionFor(pseudo)); client != nil {
			client.Send(data)
		}
	}
}
