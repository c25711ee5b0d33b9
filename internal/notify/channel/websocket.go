package channel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jcmexdev/orderium/internal/pkg/requestid"
)

const (
	pingInterval = 25 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

// WebSocketTransport dials the order-event endpoint, e.g.
// "wss://api.example.com/ws/orders". The session travels as query
// parameters plus a bearer Authorization header.
type WebSocketTransport struct {
	URL    string
	Dialer *websocket.Dialer

	// PingInterval and PongWait default to 25s and 60s.
	PingInterval time.Duration
	PongWait     time.Duration
}

func NewWebSocketTransport(rawURL string) *WebSocketTransport {
	return &WebSocketTransport{URL: rawURL, Dialer: websocket.DefaultDialer}
}

func (t *WebSocketTransport) Dial(ctx context.Context, s Session) (Conn, error) {
	u, err := url.Parse(t.URL)
	if err != nil {
		return nil, fmt.Errorf("websocket: parse url: %w", err)
	}
	q := u.Query()
	q.Set("role", s.role())
	q.Set("customerId", s.CustomerID)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.Token)
	header.Set(requestid.Header, uuid.NewString())

	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ws, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket: dial %s: %s: %w", u.Host, resp.Status, err)
		}
		return nil, fmt.Errorf("websocket: dial %s: %w", u.Host, err)
	}

	c := &wsConn{
		ws:       ws,
		interval: orDefault(t.PingInterval, pingInterval),
		wait:     orDefault(t.PongWait, pongWait),
		closed:   make(chan struct{}),
	}
	c.start()
	return c, nil
}

type wsConn struct {
	ws       *websocket.Conn
	interval time.Duration
	wait     time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

func (c *wsConn) start() {
	_ = c.ws.SetReadDeadline(time.Now().Add(c.wait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.wait))
	})
	go c.heartbeat()
}

// heartbeat pings until the connection closes. A failed ping closes the
// socket, which surfaces as a Read error.
func (c *wsConn) heartbeat() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	// ReadMessage does not observe ctx, so a cancelled ctx closes the socket.
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("websocket: read: %w", err)
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = c.ws.Close()
	})
	return err
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
