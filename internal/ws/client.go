package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"batchrpc/internal/api"
	"batchrpc/internal/transport"
)

const (
	writeWait             = 10 * time.Second
	pongWait              = 60 * time.Second
	pingPeriod            = (pongWait * 9) / 10
	defaultMaxMessageSize = 10 * 1024 * 1024 // 10MB
)

// Client represents a WebSocket client connection. Frames are processed one
// at a time in arrival order.
type Client struct {
	conn           *websocket.Conn
	service        *api.Service
	maxMessageSize int64
	logger         zerolog.Logger

	sendChan  chan []byte
	closeChan chan struct{}
	closeOnce sync.Once
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, service *api.Service, maxMessageSize int64, logger zerolog.Logger) *Client {
	return &Client{
		conn:           conn,
		service:        service,
		maxMessageSize: maxMessageSize,
		logger:         logger,
		sendChan:       make(chan []byte, 256),
		closeChan:      make(chan struct{}),
	}
}

// Run starts the client read and write loops
func (c *Client) Run(ctx context.Context) {
	c.conn.SetReadLimit(c.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.writePump(ctx)

	c.readPump(ctx)
}

// readPump reads frames from the WebSocket connection
func (c *Client) readPump(ctx context.Context) {
	defer c.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeChan:
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("read error")
			}
			return
		}

		c.handleFrame(ctx, data)
	}
}

// writePump writes replies and pings to the WebSocket connection
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeChan:
			return
		case data := <-c.sendChan:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug().Err(err).Msg("write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame processes one frame and queues its reply
func (c *Client) handleFrame(ctx context.Context, data []byte) {
	var frame transport.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.sendReply(transport.Reply{Error: "invalid frame: " + err.Error()})
		return
	}

	reply := transport.Reply{ID: frame.ID}
	if frame.OneWay {
		if err := c.service.ProcessOneWay(ctx, frame.Requests); err != nil {
			reply.Error = c.describe(err)
		}
	} else {
		responses, err := c.service.Process(ctx, frame.Requests)
		if err != nil {
			reply.Error = c.describe(err)
		} else {
			reply.Responses = responses
		}
	}
	c.sendReply(reply)
}

func (c *Client) describe(err error) string {
	if errors.Is(err, api.ErrInvalidBatch) {
		return err.Error()
	}
	c.logger.Error().Err(err).Msg("frame failed")
	return "internal error"
}

func (c *Client) sendReply(reply transport.Reply) {
	data, err := json.Marshal(reply)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to marshal reply")
		return
	}
	c.send(data)
}

// send queues data for the write pump
func (c *Client) send(data []byte) {
	select {
	case c.sendChan <- data:
	case <-c.closeChan:
	default:
		c.logger.Warn().Msg("send channel full, dropping reply")
	}
}

// Close closes the client connection
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		c.conn.Close()
		c.logger.Debug().Msg("client closed")
	})
}
