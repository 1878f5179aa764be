package server

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Client is one websocket connection. Messages are queued on send and written
// by a single writer goroutine, so Send never blocks the caller.
type Client struct {
	ID     string
	Pseudo string

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(id, pseudo string, conn *websocket.Conn) *Client {
	return &Client{
		ID:     id,
		Pseudo: pseudo,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

// Send queues data for the writer. A client that falls a full buffer behind
// is disconnected rather than allowed to stall the game.
func (c *Client) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	default:
		go c.Close(websocket.StatusPolicyViolation, "too slow")
		return false
	}
}

// WriteNow bypasses the queue. Used for the last message before a close.
func (c *Client) WriteNow(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *Client) Close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close(code, reason)
		}
	})
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

// writePump drains the send queue and pings the peer every pingInterval.
// onPong runs after each answered ping.
func (c *Client) writePump(ctx context.Context, onPong func()) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.WriteNow(ctx, msg); err != nil {
				c.Close(websocket.StatusInternalError, "write failed")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.Close(websocket.StatusGoingAway, "ping timeout")
				return
			}
			if onPong != nil {
				onPong()
			}
		}
	}
}

type ConnectionManager struct {
	connections map[string]*Client // connectionID → client
	mu          sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*Client),
	}
}

func (cm *ConnectionManager) AddConnection(c *Client) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[c.ID] = c
}

func (cm *ConnectionManager) RemoveConnection(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.connections, id)
}

// GetConnection returns the client for connectionID, or nil
func (cm *ConnectionManager) GetConnection(connectionID string) *Client {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.connections[connectionID]
}

func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

func (cm *ConnectionManager) All() []*Client {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	clients := make([]*Client, 0, len(cm.connections))
	for _, c := range cm.connections {
		clients = append(clients, c)
	}
	return clients
}
