package ws

import (
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"
	"github.com/thatrasunil/code-connect/globals"
	"github.com/thatrasunil/code-connect/types"
)

const (
	maxMessageSize  = 65536
	pongWait        = 2 * time.Minute
	pingPeriod      = time.Minute
	writeWait       = 10 * time.Second
	sendChannelSize = 256

	statsSchedule = "@every 1m"
)

// Hub is the process-wide connection table and the engine's broadcast
// transport: it addresses live websocket connections by connection id and
// writes wire envelopes into their send queues.
type Hub struct {
	clients map[string]*Client
	logger  hclog.Logger

	// mutex for manipulating the clients
	sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  globals.AppLogger.Named("ws"),
	}
}

// NoClients returns the number of connected clients.
func (h *Hub) NoClients() int {
	h.RLock()
	defer h.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(client *Client) {
	h.Lock()
	h.clients[client.id] = client
	h.Unlock()
}

func (h *Hub) remove(client *Client) {
	h.Lock()
	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		// safe: sends only happen under RLock after a membership check,
		// so nobody can write into the channel once it is closed here
		close(client.Send)
	}
	h.Unlock()
}

// ToConnection sends one event to a single connection. Best effort: unknown
// connections are skipped, a full send queue drops the event.
func (h *Hub) ToConnection(connId string, event string, data interface{}) {
	raw, err := types.NewWireMessage(event, data)
	if err != nil {
		h.logger.Error("could not marshal wire message", "event", event, "error", err)
		return
	}
	h.RLock()
	h.deliverLocked(connId, event, raw)
	h.RUnlock()
}

// ToConnections fans one event out to the given connections.
func (h *Hub) ToConnections(connIds []string, event string, data interface{}) {
	if len(connIds) == 0 {
		return
	}
	raw, err := types.NewWireMessage(event, data)
	if err != nil {
		h.logger.Error("could not marshal wire message", "event", event, "error", err)
		return
	}
	h.RLock()
	for _, connId := range connIds {
		h.deliverLocked(connId, event, raw)
	}
	h.RUnlock()
}

func (h *Hub) deliverLocked(connId, event string, raw []byte) {
	client, ok := h.clients[connId]
	if !ok {
		return
	}
	select {
	case client.Send <- raw:
	default:
		// a slow client must not stall the fan-out
		h.logger.Warn("send queue full, dropping event", "conn", connId, "event", event)
	}
}

// StartHeartbeat schedules a periodic stats log line (active rooms, bound
// connections, open sockets). The returned function stops the scheduler.
func (h *Hub) StartHeartbeat(stats func() (rooms, connections int)) func() {
	runner := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := runner.AddFunc(statsSchedule, func() {
		rooms, connections := stats()
		h.logger.Info("stats", "rooms", rooms, "connections", connections, "sockets", h.NoClients())
	})
	if err != nil {
		h.logger.Error("could not schedule stats heartbeat", "error", err)
		return func() {}
	}
	runner.Start()
	return func() { runner.Stop() }
}
