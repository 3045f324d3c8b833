// Package realtime fans table change events out to websocket clients and
// to in-process subscriptions that invalidate query caches. Hub-and-spoke:
// topics are table names, publishers are the domain services.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ClientMessage is an inbound subscribe/unsubscribe request from a
// websocket client.
type ClientMessage struct {
	Action string   `json:"action"`
	Tables []string `json:"tables"`
}

// Conn abstracts a websocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is a single connected websocket consumer.
type Client struct {
	ID     string
	Tables []string
	Send   chan []byte
	conn   Conn
}

// listener is an in-process event consumer attached by the Bridge.
type listener struct {
	fn    func(Event)
	onErr func(error)
}

// Hub tracks websocket clients and in-process listeners per table topic.
// All operations are safe for concurrent use.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]map[*Client]struct{}
	all       map[*Client]struct{}
	listeners map[string]map[*listener]struct{}
	logger    zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:   make(map[string]map[*Client]struct{}),
		all:       make(map[*Client]struct{}),
		listeners: make(map[string]map[*listener]struct{}),
		logger:    logger,
	}
}

// Register adds a client and subscribes it to its initial tables.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	for _, table := range client.Tables {
		if h.clients[table] == nil {
			h.clients[table] = make(map[*Client]struct{})
		}
		h.clients[table][client] = struct{}{}
	}
}

// Unregister removes a client from every table and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}

	for _, table := range client.Tables {
		if subs, ok := h.clients[table]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.clients, table)
			}
		}
	}

	delete(h.all, client)
	close(client.Send)
}

// Subscribe adds tables to an already-registered client.
func (h *Hub) Subscribe(client *Client, tables []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, table := range tables {
		if h.clients[table] == nil {
			h.clients[table] = make(map[*Client]struct{})
		}
		h.clients[table][client] = struct{}{}
	}
	client.Tables = append(client.Tables, tables...)
}

// Unsubscribe removes tables from an already-registered client.
func (h *Hub) Unsubscribe(client *Client, tables []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	removeSet := make(map[string]struct{}, len(tables))
	for _, table := range tables {
		removeSet[table] = struct{}{}
		if subs, ok := h.clients[table]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.clients, table)
			}
		}
	}

	remaining := client.Tables[:0]
	for _, table := range client.Tables {
		if _, rm := removeSet[table]; !rm {
			remaining = append(remaining, table)
		}
	}
	client.Tables = remaining
}

// ProcessMessage dispatches an inbound client message.
func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		h.Subscribe(client, msg.Tables)
	case "unsubscribe":
		h.Unsubscribe(client, msg.Tables)
	}
}

// attach registers an in-process listener for a table; returns a detach func.
func (h *Hub) attach(table string, l *listener) func() {
	h.mu.Lock()
	if h.listeners[table] == nil {
		h.listeners[table] = make(map[*listener]struct{})
	}
	h.listeners[table][l] = struct{}{}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.listeners[table]; ok {
			delete(set, l)
			if len(set) == 0 {
				delete(h.listeners, table)
			}
		}
	}
}

// Publish implements EventPublisher: the event reaches every websocket
// client and in-process listener subscribed to its table.
func (h *Hub) Publish(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("table", event.Table).Msg("marshal realtime event")
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[event.Table] {
		select {
		case client.Send <- data:
		default:
			// Client buffer full; skip to avoid blocking.
		}
	}

	for l := range h.listeners[event.Table] {
		l.fn(event)
	}

	return nil
}

// ReportChannelError notifies listeners on a table that the transport saw
// an error. Listeners log and degrade; nothing retries automatically.
func (h *Hub) ReportChannelError(table string, err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for l := range h.listeners[table] {
		if l.onErr != nil {
			l.onErr(err)
		}
	}
}

// ClientCount returns the number of connected websocket clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TableCount returns the number of clients subscribed to a table.
func (h *Hub) TableCount(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[table])
}

// ---------------------------------------------------------------------------
// Websocket handler
// ---------------------------------------------------------------------------

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// Handler upgrades HTTP connections and pumps hub events to clients.
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

func (wh *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", wh.HandleConnect)
}

func (wh *Handler) HandleConnect(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:     uuid.New().String(),
		Tables: []string{},
		Send:   make(chan []byte, 256),
		conn:   &gorillaConnAdapter{ws},
	}

	wh.hub.Register(client)

	go wh.writePump(client)
	go wh.readPump(client)

	return nil
}

// The pumps run over the Conn interface so they are testable without a live
// websocket.

func (wh *Handler) readPump(client *Client) {
	defer func() {
		wh.hub.Unregister(client)
		client.conn.Close()
	}()

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue // Ignore malformed messages.
		}

		wh.hub.ProcessMessage(client, msg)
	}
}

func (wh *Handler) writePump(client *Client) {
	defer client.conn.Close()

	for message := range client.Send {
		if err := client.conn.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			break
		}
	}
}

type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
