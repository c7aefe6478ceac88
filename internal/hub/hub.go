package hub

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"hash/fnv"
	"net/http"
	"sync"
	"time"

	"github.com/Parth8155/SkillSwap/internal/auth"
	"github.com/Parth8155/SkillSwap/internal/event"
	"github.com/Parth8155/SkillSwap/internal/model"
	"github.com/Parth8155/SkillSwap/internal/presence"
	"github.com/Parth8155/SkillSwap/internal/repo"
	"github.com/Parth8155/SkillSwap/internal/service"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	shardCount = 64 // tune: 16/64/128 depending on load

	persistTimeout = 5 * time.Second // budget for durable status writes
	ingestTimeout  = 10 * time.Second
)

// Room key namespaces. Every connection sits in its user room for direct
// addressing (typing relay); conversation rooms carry group fan-out. The
// prefixes keep the two keyspaces from colliding.
func UserRoom(userID string) string                 { return "user:" + userID }
func ConversationRoom(conversationID string) string { return "conv:" + conversationID }

type inboundEvent struct {
	event  event.WsEvent
	client *Client
}

type roomBucket struct {
	sync.RWMutex
	rooms map[string]map[string]*Client // room key → connection id → client
}

// StatusStore is the slice of the user repository the hub needs: identity
// resolution at handshake and durable status writes.
type StatusStore interface {
	GetByID(ctx context.Context, userID string) (*model.User, error)
	UpdateStatus(ctx context.Context, userID, status string, lastActive time.Time) error
}

// Hub is the realtime channel manager: it authenticates connections, tracks
// room membership, relays ephemeral events, and hands send-message intents
// to the ingestion pipeline.
type Hub struct {
	shards [shardCount]*roomBucket
	fanout [shardCount]sync.Mutex // serializes room broadcasts; see broadcastToRoom

	clientsMu sync.RWMutex
	clients   map[string]*Client // connection id → client

	register   chan *Client
	unregister chan *Client
	inbound    []chan inboundEvent // one queue per worker; see dispatch

	presence *presence.Registry
	verifier *auth.TokenVerifier
	messages service.MessageService
	users    StatusStore

	handshakeTimeout time.Duration
	upgrader         websocket.Upgrader
	logger           *zap.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Options configures hub construction.
type Options struct {
	Presence         *presence.Registry
	Verifier         *auth.TokenVerifier
	Messages         service.MessageService
	Users            StatusStore
	AllowedOrigins   []string
	HandshakeTimeout time.Duration
	Logger           *zap.Logger
}

func NewHub(opts Options) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 5 * time.Second
	}

	h := &Hub{
		clients:          make(map[string]*Client),
		register:         make(chan *Client, 1024),
		unregister:       make(chan *Client, 1024),
		inbound:          make([]chan inboundEvent, workerPoolSize),
		presence:         opts.Presence,
		verifier:         opts.Verifier,
		messages:         opts.Messages,
		users:            opts.Users,
		handshakeTimeout: opts.HandshakeTimeout,
		logger:           opts.Logger,
		ctx:              ctx,
		cancel:           cancel,
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}

	for i := 0; i < shardCount; i++ {
		h.shards[i] = &roomBucket{
			rooms: make(map[string]map[string]*Client),
		}
	}

	// run manager loop
	go h.run()

	// One queue per worker. A connection always hashes to the same worker,
	// so its events are processed in arrival order while different
	// connections proceed concurrently.
	for i := 0; i < workerPoolSize; i++ {
		queue := make(chan inboundEvent, 256)
		h.inbound[i] = queue
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			for {
				select {
				case <-h.ctx.Done():
					return
				case in, ok := <-queue:
					if !ok {
						return
					}
					h.handleEvent(in.event, in.client)
				}
			}
		}()
	}

	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

// dispatch queues an inbound event onto the client's worker. Returns false
// when the queue stays saturated past the inbound timeout.
func (h *Hub) dispatch(c *Client, ev event.WsEvent) bool {
	fn := fnv.New32a()
	fn.Write([]byte(c.ID))
	queue := h.inbound[int(fn.Sum32())%workerPoolSize]

	select {
	case queue <- inboundEvent{client: c, event: ev}:
		return true
	case <-time.After(inboundSendTimeout):
		return false
	case <-c.ctx.Done():
		return true
	}
}

// ---------------------------------------------------------------------------
// Connection lifecycle
// ---------------------------------------------------------------------------

// ServeWS authenticates the handshake and, on success, upgrades the
// connection and registers the client. A missing or invalid credential is
// refused before any registration happens.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	userID, err := h.verifier.Verify(token)
	if err != nil {
		h.logger.Info("handshake rejected", zap.Error(err))
		http.Error(w, "authentication error", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.handshakeTimeout)
	defer cancel()

	if _, err := h.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			h.logger.Info("handshake rejected: unknown user", zap.String("user_id", userID))
			http.Error(w, "authentication error", http.StatusUnauthorized)
			return
		}
		h.logger.Error("handshake identity lookup failed", zap.Error(err))
		http.Error(w, "authentication error", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(userID, conn, h)
	select {
	case h.register <- c:
		go c.ReadMessages()
		go c.WriteMessages()
	case <-time.After(registerTimeout):
		h.logger.Warn("failed to register client: timeout", zap.String("user_id", userID))
		c.cancel()
		conn.Close()
	}
}

func (h *Hub) addClient(c *Client) {
	h.clientsMu.Lock()
	h.clients[c.ID] = c
	total := len(h.clients)
	h.clientsMu.Unlock()

	// Last connection wins: retire a superseded connection for the same user.
	if replacedConn, ok := h.presence.Register(c.userID, c.ID); ok {
		h.clientsMu.RLock()
		old := h.clients[replacedConn]
		h.clientsMu.RUnlock()
		if old != nil {
			h.logger.Info("superseding existing connection",
				zap.String("user_id", c.userID),
				zap.String("old_connection_id", replacedConn),
			)
			old.Close()
		}
	}

	// Private room keyed by identity, for direct addressing.
	h.joinRoom(UserRoom(c.userID), c)

	h.logger.Info("client connected",
		zap.String("connection_id", c.ID),
		zap.String("user_id", c.userID),
		zap.Int("total_connected", total),
	)

	go h.announceConnect(c)
}

func (h *Hub) removeClient(c *Client) {
	h.clientsMu.Lock()
	_, known := h.clients[c.ID]
	delete(h.clients, c.ID)
	total := len(h.clients)
	h.clientsMu.Unlock()

	if !known {
		// Disconnect for a connection that never registered: no-op.
		c.Close()
		return
	}

	for _, key := range c.joinedRooms() {
		h.leaveRoom(key, c)
	}
	h.leaveRoom(UserRoom(c.userID), c)

	owned := h.presence.Unregister(c.userID, c.ID)
	c.Close()

	h.logger.Info("client disconnected",
		zap.String("connection_id", c.ID),
		zap.String("user_id", c.userID),
		zap.Int("total_connected", total),
	)

	// Only the connection that owns the presence record announces the user
	// offline; a superseded connection going away must stay silent.
	if owned {
		go h.announceDisconnect(c.userID, c.ID)
	}
}

func (h *Hub) announceConnect(c *Client) {
	ctx, cancel := context.WithTimeout(h.ctx, persistTimeout)
	defer cancel()

	if err := h.users.UpdateStatus(ctx, c.userID, model.StatusOnline, time.Now().UTC()); err != nil {
		h.logger.Error("failed to persist online status",
			zap.String("user_id", c.userID),
			zap.Error(err),
		)
	}

	if ev, err := event.New(event.EventUserOnline, event.PresencePayload{UserID: c.userID}); err == nil {
		h.broadcastAll(ev, c.ID)
	}
}

func (h *Hub) announceDisconnect(userID, connID string) {
	ctx, cancel := context.WithTimeout(h.ctx, persistTimeout)
	defer cancel()

	if err := h.users.UpdateStatus(ctx, userID, model.StatusOffline, time.Now().UTC()); err != nil {
		h.logger.Error("failed to persist offline status",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	if ev, err := event.New(event.EventUserOffline, event.PresencePayload{UserID: userID}); err == nil {
		h.broadcastAll(ev, connID)
	}
	if ev, err := event.New(event.EventUserStatusUpdate, event.StatusUpdatePayload{
		UserID: userID,
		Status: model.StatusOffline,
	}); err == nil {
		h.broadcastAll(ev, connID)
	}
}

// Stop shuts the hub down: all connections closed, workers drained.
func (h *Hub) Stop() {
	h.cancel()

	h.clientsMu.RLock()
	for _, c := range h.clients {
		c.Close()
	}
	h.clientsMu.RUnlock()

	h.wg.Wait()
}

// ---------------------------------------------------------------------------
// Rooms
// ---------------------------------------------------------------------------

func getShard(roomKey string) uint32 {
	if roomKey == "" {
		return 0
	}

	s := sha1.Sum([]byte(roomKey))
	return binary.BigEndian.Uint32(s[:4]) % shardCount
}

func (h *Hub) joinRoom(roomKey string, c *Client) {
	b := h.shards[getShard(roomKey)]
	b.Lock()
	defer b.Unlock()

	room, ok := b.rooms[roomKey]
	if !ok {
		room = make(map[string]*Client)
		b.rooms[roomKey] = room
	}
	room[c.ID] = c
}

func (h *Hub) leaveRoom(roomKey string, c *Client) {
	b := h.shards[getShard(roomKey)]
	b.Lock()
	defer b.Unlock()

	if room, ok := b.rooms[roomKey]; ok {
		delete(room, c.ID)
		if len(room) == 0 {
			delete(b.rooms, roomKey)
		}
	}
}

// broadcastToRoom delivers ev to every current member of the room. The
// per-shard fanout lock is held across the member loop: concurrent broadcasts
// to the same room (sends from different connections land on different
// workers) reach every member in one order.
func (h *Hub) broadcastToRoom(roomKey string, ev event.WsEvent, excludeConnID string) {
	shard := getShard(roomKey)
	b := h.shards[shard]

	b.RLock()
	room, ok := b.rooms[roomKey]
	if !ok || len(room) == 0 {
		b.RUnlock()
		return
	}
	members := make([]*Client, 0, len(room))
	for _, c := range room {
		members = append(members, c)
	}
	b.RUnlock()

	h.fanout[shard].Lock()
	defer h.fanout[shard].Unlock()

	for _, c := range members {
		if c.ID == excludeConnID {
			continue
		}
		c.Send(ev)
	}
}

// broadcastAll delivers ev to every connected client except excludeConnID.
func (h *Hub) broadcastAll(ev event.WsEvent, excludeConnID string) {
	h.clientsMu.RLock()
	members := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		members = append(members, c)
	}
	h.clientsMu.RUnlock()

	for _, c := range members {
		if c.ID == excludeConnID {
			continue
		}
		c.Send(ev)
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if origin == a {
				return true
			}
		}
		return false
	}
}
