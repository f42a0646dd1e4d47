package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/transfermarket/go/internal/outbox"
	"github.com/rs/zerolog/log"
)

// Config holds websocket connection settings
type Config struct {
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	MaxMessageSize  int64         `yaml:"max_message_size"`
	ReadBufferSize  int           `yaml:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size"`
	SendBuffer      int           `yaml:"send_buffer"`
}

func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
	}
}

// Hub fans market events out to websocket subscribers. Subscribers of
// uuid.Nil receive every event.
type Hub struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]map[*Connection]bool

	upgrader    websocket.Upgrader
	cfg         Config
	broadcastCh chan *MarketEvent
}

// Connection is one websocket subscriber
type Connection struct {
	ID          string
	AuctionID   uuid.UUID
	Conn        *websocket.Conn
	Send        chan []byte
	hub         *Hub
	ConnectedAt time.Time
}

var _ outbox.Publisher = (*Hub)(nil)

func NewHub(cfg Config) *Hub {
	def := DefaultConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	return &Hub{
		conns: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		cfg:         cfg,
		broadcastCh: make(chan *MarketEvent, 1000),
	}
}

// Start processes broadcasts until ctx is cancelled
func (h *Hub) Start(ctx context.Context) {
	log.Info().Msg("websocket hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("websocket hub shutting down")
			h.closeAll()
			return
		case event := <-h.broadcastCh:
			h.deliver(event)
		}
	}
}

// Upgrade turns the request into a subscription for auctionID
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request, auctionID uuid.UUID) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}
	c := &Connection{
		ID:          uuid.New().String(),
		AuctionID:   auctionID,
		Conn:        ws,
		Send:        make(chan []byte, h.cfg.SendBuffer),
		hub:         h,
		ConnectedAt: time.Now(),
	}
	h.register(c)

	go c.writePump()
	go c.readPump()

	log.Info().Str("connection_id", c.ID).Str("auction_id", auctionID.String()).Msg("websocket connection established")
	return nil
}

// Broadcast queues an event for delivery. A full queue drops the event.
func (h *Hub) Broadcast(event *MarketEvent) {
	select {
	case h.broadcastCh <- event:
	default:
		log.Warn().Str("auction_id", event.AuctionID).Str("event_type", event.Type).Msg("broadcast channel full, dropping message")
	}
}

// Publish lets the hub sit behind the outbox worker.
func (h *Hub) Publish(_ context.Context, event outbox.Event) error {
	me, err := FromEnvelope(event.Envelope())
	if err != nil {
		return err
	}
	h.Broadcast(me)
	return nil
}

// ConnectionCount returns the number of open subscriptions
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.conns {
		n += len(set)
	}
	return n
}

// Stats reports subscriptions per auction ("all" for firehose subscribers)
func (h *Hub) Stats() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.conns))
	for id, set := range h.conns {
		key := id.String()
		if id == uuid.Nil {
			key = "all"
		}
		out[key] = len(set)
	}
	return out
}

func (h *Hub) register(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[c.AuctionID] == nil {
		h.conns[c.AuctionID] = make(map[*Connection]bool)
	}
	h.conns[c.AuctionID][c] = true
}

func (h *Hub) unregister(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[c.AuctionID]
	if !ok || !set[c] {
		return
	}
	delete(set, c)
	close(c.Send)
	if len(set) == 0 {
		delete(h.conns, c.AuctionID)
	}
	log.Debug().Str("connection_id", c.ID).Msg("websocket connection unregistered")
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	var all []*Connection
	for _, set := range h.conns {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.unregister(c)
	}
}

func (h *Hub) deliver(event *MarketEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}
	auctionID, _ := uuid.Parse(event.AuctionID)

	// Sends happen under the read lock so unregister cannot close a channel mid-send.
	var slow []*Connection
	sent := 0
	h.mu.RLock()
	sets := []map[*Connection]bool{h.conns[uuid.Nil]}
	if auctionID != uuid.Nil {
		sets = append(sets, h.conns[auctionID])
	}
	for _, set := range sets {
		for c := range set {
			select {
			case c.Send <- data:
				sent++
			default:
				slow = append(slow, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Warn().Str("connection_id", c.ID).Msg("send buffer full, closing connection")
		h.unregister(c)
		c.Conn.Close()
	}
	log.Debug().Str("event_type", event.Type).Str("auction_id", event.AuctionID).Int("connections", sent).Msg("event broadcasted")
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only services control frames; clients do not send commands.
func (c *Connection) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.hub.cfg.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(c.hub.cfg.ReadTimeout))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("connection_id", c.ID).Msg("unexpected websocket close")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.hub.cfg.ReadTimeout))
	}
}
