package hub

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/Parth8155/SkillSwap/internal/event"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	// tuning parameters
	writeWait          = 10 * time.Second       // time allowed to write a message to the peer
	pongWait           = 20 * time.Second       // time allowed to read the next pong message from the peer
	pingInterval       = (pongWait * 9) / 10    // send pings to peer with this period
	maxMessageSize     = 64 * 1024              // max inbound message size (64KB)
	sendBufSize        = 256                    // per-connection outbound buffer size
	workerPoolSize     = 16                     // number of workers to process inbound events
	sendTimeout        = 2 * time.Second        // timeout for enqueuing outbound events
	registerTimeout    = 5 * time.Second        // timeout for client registration
	unregisterTimeout  = 5 * time.Second        // timeout for client unregistration
	inboundSendTimeout = 500 * time.Millisecond // timeout for sending to a worker queue
)

// Client is one authenticated channel connection. A user may reconnect from
// another device; the presence registry keeps the newest connection as the
// user's active record.
type Client struct {
	ID     string
	userID string
	conn   *websocket.Conn
	hub    *Hub
	egress chan event.WsEvent
	logger *zap.Logger

	// rooms this connection has joined, for cleanup on disconnect
	rooms   map[string]struct{}
	roomsMu sync.Mutex

	cancel         context.CancelFunc
	ctx            context.Context
	once           sync.Once
	connClosed     chan struct{}
	connClosedOnce sync.Once
	closed         bool
	closedMu       sync.RWMutex
}

func newClient(userID string, conn *websocket.Conn, h *Hub) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()

	return &Client{
		ID:         id,
		userID:     userID,
		conn:       conn,
		hub:        h,
		egress:     make(chan event.WsEvent, sendBufSize),
		logger:     h.logger.With(zap.String("connection_id", id), zap.String("user_id", userID)),
		rooms:      make(map[string]struct{}),
		cancel:     cancel,
		ctx:        ctx,
		connClosed: make(chan struct{}),
	}
}

// UserID returns the authenticated identity behind this connection.
func (c *Client) UserID() string { return c.userID }

func (c *Client) trackRoom(key string) {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	c.rooms[key] = struct{}{}
}

func (c *Client) untrackRoom(key string) {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	delete(c.rooms, key)
}

func (c *Client) joinedRooms() []string {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()

	keys := make([]string, 0, len(c.rooms))
	for key := range c.rooms {
		keys = append(keys, key)
	}
	return keys
}

// ReadMessages pumps inbound events from the socket into the hub's worker
// queues. One goroutine per connection; events keep arrival order.
func (c *Client) ReadMessages() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-time.After(unregisterTimeout):
			c.logger.Warn("failed to unregister client: timeout")
		}
		c.Close()
	}()

	c.conn.SetReadLimit(int64(maxMessageSize))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(c.pongHandler)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			var ev event.WsEvent

			if err := c.conn.ReadJSON(&ev); err != nil {
				if websocket.IsCloseError(err,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					c.logger.Debug("client disconnected")
					return
				}

				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseInternalServerErr,
					websocket.CloseProtocolError,
				) {
					c.logger.Warn("unexpected close", zap.Error(err))
				}

				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					c.logger.Info("client timed out, closing connection")
					return
				}

				c.logger.Warn("read error", zap.Error(err))
				return
			}

			if !c.hub.dispatch(c, ev) {
				c.logger.Warn("worker queue saturated, dropping client")
				c.cancel()
				c.conn.Close()
			}
		}
	}
}

// WriteMessages drains the egress buffer onto the socket and keeps the
// connection alive with pings.
func (c *Client) WriteMessages() {
	ticker := time.NewTicker(pingInterval)

	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()

		c.connClosedOnce.Do(func() {
			close(c.connClosed)
		})
	}()

	for {
		select {
		case <-c.ctx.Done():
			if err := c.conn.WriteMessage(websocket.CloseMessage, nil); err != nil {
				c.logger.Debug("close write failed", zap.Error(err))
			}
			return
		case ev := <-c.egress:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.logger.Warn("write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) pongHandler(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// Send enqueues an event for this connection, disconnecting it when the
// buffer stays full past the send timeout.
func (c *Client) Send(ev event.WsEvent) {
	if c.IsClosed() {
		return
	}

	select {
	case c.egress <- ev:
	case <-time.After(sendTimeout):
		c.logger.Warn("egress full, disconnecting client")
		select {
		case c.hub.unregister <- c:
		case <-time.After(unregisterTimeout):
			c.logger.Warn("failed to unregister client: timeout")
		}
	case <-c.ctx.Done():
	}
}

func (c *Client) sendError(code, message string) {
	ev, err := event.New(event.EventError, event.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	c.Send(ev)
}

// Close tears the client down exactly once. The egress channel is never
// closed: Send may race Close from broadcast goroutines, and both it and
// WriteMessages observe ctx.Done instead.
func (c *Client) Close() {
	c.once.Do(func() {
		c.closedMu.Lock()
		c.closed = true
		c.closedMu.Unlock()

		c.cancel()

		if c.conn == nil {
			c.connClosedOnce.Do(func() {
				close(c.connClosed)
			})
			return
		}

		// Wait for WriteMessages to close conn, or force close after timeout
		go func() {
			select {
			case <-c.connClosed:
			case <-time.After(5 * time.Second):
				_ = c.conn.Close()
				c.logger.Warn("safety timeout: force closed connection")
			}
		}()
	})
}

// IsClosed returns true if the client has been closed
func (c *Client) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}
