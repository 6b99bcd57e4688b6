// Package websocket pushes settlement and price-alert events to connected
// clients. Events arrive over redis pub/sub on per-user channels and are
// forwarded verbatim to the matching client.
package websocket

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/papertrade/papertrade/storage/redis"
)

type Client struct {
	Manager *Manager
	Conn    *websocket.Conn
	UserID  uuid.UUID
	Send    chan []byte
}

type Manager struct {
	clients    map[uuid.UUID]*Client
	mu         sync.RWMutex
	register   chan *Client
	unregister chan *Client
	log        *slog.Logger
	subscriber *redis.Subscriber
}

func NewManager(log *slog.Logger, subscriber *redis.Subscriber) *Manager {
	return &Manager{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
		subscriber: subscriber,
	}
}

func (m *Manager) Run(ctx context.Context) {
	go m.listenToRedis(ctx)

	for {
		select {
		case <-ctx.Done():
			m.log.Info("manager run loop stopping...")
			return
		case client := <-m.register:
			m.registerClient(ctx, client)
		case client := <-m.unregister:
			m.unregisterClient(ctx, client)
		}
	}
}

func (m *Manager) listenToRedis(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.log.Info("redis listener stopping...")
			return
		case msg, ok := <-m.subscriber.Messages:
			if !ok {
				m.log.Warn("manager redis subscriber channel closed")
				return
			}
			m.forwardEvent(msg)
		}
	}
}

func (m *Manager) Register(client *Client) {
	m.register <- client
}

func (m *Manager) Unregister(client *Client) {
	m.unregister <- client
}

func (m *Manager) registerClient(ctx context.Context, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if oldClient, exists := m.clients[client.UserID]; exists {
		m.log.Warn("client re-registering, closing old connection", "userID", client.UserID)
		close(oldClient.Send)
		oldClient.Conn.Close()
	}

	m.clients[client.UserID] = client
	m.log.Info("new client registered", "userID", client.UserID)

	if err := m.subscriber.Subscribe(ctx, redis.EventChannel(client.UserID)); err != nil {
		m.log.Error("could not subscribe to user event channel", "userID", client.UserID, "error", err)
	}
}

func (m *Manager) unregisterClient(ctx context.Context, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[client.UserID]; ok {
		delete(m.clients, client.UserID)
		if err := m.subscriber.Unsubscribe(ctx, redis.EventChannel(client.UserID)); err != nil {
			m.log.Error("failed to unsubscribe user event channel", "userID", client.UserID, "error", err)
		}
		m.log.Info("client unregistered", "userID", client.UserID)
	}
}

// forwardEvent routes a redis message to the client whose channel it arrived
// on. The payload is already the JSON the client expects.
func (m *Manager) forwardEvent(msg redis.Message) {
	idPart, found := strings.CutPrefix(msg.Channel, "events:")
	if !found {
		return
	}

	userID, err := uuid.Parse(idPart)
	if err != nil {
		m.log.Error("malformed event channel name", "channel", msg.Channel)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	client, ok := m.clients[userID]
	if !ok {
		return
	}

	select {
	case client.Send <- []byte(msg.Payload):
	default:
		m.log.Warn("client send channel is full, dropping message", "userID", userID)
	}
}

func (c *Client) Writer() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Manager.log.Warn("failed to write message to client", "userID", c.UserID)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) Reader() {
	defer func() {
		c.Manager.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Manager.log.Warn("unexpected close error", "userID", c.UserID, "error", err)
			}
			break
		}
	}
}
