package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"batchrpc/internal/transport"
)

var errConnectionClosed = errors.New("WebSocket connection closed")

// wsClient owns a single WebSocket connection to an endpoint and correlates
// replies with frames by id. It reconnects lazily on the next send.
type wsClient struct {
	url            string
	messageTimeout time.Duration
	logger         zerolog.Logger

	conn    *websocket.Conn
	connMu  sync.Mutex
	writeMu sync.Mutex

	pending   map[uint64]chan *transport.Reply
	pendingMu sync.Mutex
	nextID    atomic.Uint64

	closed atomic.Bool
	wg     sync.WaitGroup
}

func newWSClient(url string, messageTimeout time.Duration, logger zerolog.Logger) *wsClient {
	return &wsClient{
		url:            url,
		messageTimeout: messageTimeout,
		logger:         logger,
		pending:        make(map[uint64]chan *transport.Reply),
	}
}

// connection returns the current connection, dialing if there is none
func (c *wsClient) connection(ctx context.Context) (*websocket.Conn, error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.closed.Load() {
		return nil, errConnectionClosed
	}
	if c.conn != nil {
		return c.conn, nil
	}

	c.logger.Debug().Msg("WebSocket connecting")
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect WebSocket: %w", err)
	}
	c.conn = conn
	c.logger.Info().Msg("WebSocket connected")

	c.wg.Add(1)
	go c.readLoop(conn)
	return conn, nil
}

// send writes a frame and waits for its reply
func (c *wsClient) send(ctx context.Context, batch []byte, oneWay bool) (*transport.Reply, error) {
	conn, err := c.connection(ctx)
	if err != nil {
		return nil, err
	}

	id := c.nextID.Add(1)
	replyCh := make(chan *transport.Reply, 1)

	c.pendingMu.Lock()
	c.pending[id] = replyCh
	c.pendingMu.Unlock()

	frame, err := json.Marshal(transport.Frame{ID: id, OneWay: oneWay, Requests: batch})
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("failed to marshal frame: %w", err)
	}

	c.writeMu.Lock()
	writeErr := conn.WriteMessage(websocket.TextMessage, frame)
	c.writeMu.Unlock()
	if writeErr != nil {
		c.forget(id)
		c.drop(conn, writeErr)
		return nil, fmt.Errorf("failed to send frame: %w", writeErr)
	}

	var timeout <-chan time.Time
	if c.messageTimeout > 0 {
		timer := time.NewTimer(c.messageTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case reply := <-replyCh:
		if reply == nil {
			return nil, errConnectionClosed
		}
		return reply, nil
	case <-timeout:
		c.forget(id)
		return nil, fmt.Errorf("no reply within %s", c.messageTimeout)
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	}
}

// readLoop delivers replies until the connection fails
func (c *wsClient) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.drop(conn, err)
			return
		}

		var reply transport.Reply
		if err := json.Unmarshal(data, &reply); err != nil {
			c.logger.Warn().Err(err).Msg("failed to parse reply")
			continue
		}

		c.pendingMu.Lock()
		replyCh, ok := c.pending[reply.ID]
		delete(c.pending, reply.ID)
		c.pendingMu.Unlock()

		if !ok {
			c.logger.Debug().Uint64("id", reply.ID).Msg("reply for unknown frame")
			continue
		}
		replyCh <- &reply
	}
}

// drop discards conn if it is still current and fails every pending frame
func (c *wsClient) drop(conn *websocket.Conn, cause error) {
	c.connMu.Lock()
	if c.conn == conn {
		c.conn = nil
		conn.Close()
		if !c.closed.Load() {
			c.logger.Warn().Err(cause).Msg("WebSocket disconnected")
		}
	}
	c.connMu.Unlock()

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
}

func (c *wsClient) forget(id uint64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// close closes the connection and waits for the reader to stop
func (c *wsClient) close() {
	if c.closed.Swap(true) {
		return
	}

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.drop(conn, errConnectionClosed)
	}
	c.wg.Wait()
}
