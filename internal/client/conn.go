package client

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"croissant/server/internal/net/proto"
)

const writeWait = 5 * time.Second

// Conn is a websocket session with the croissant server.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
}

// Dial opens a websocket to the /ws endpoint on addr (host:port).
func Dial(ctx context.Context, addr string) (*Conn, error) {
	target := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target.String(), err)
	}
	return &Conn{ws: ws, done: make(chan struct{})}, nil
}

// Send writes one client frame.
func (c *Conn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

// Events reads frames until the connection fails or Close is called and
// delivers the decoded events on the returned channel. Undecodable frames are
// skipped. The error channel receives the read error once the event channel
// is closed.
func (c *Conn) Events() (<-chan proto.ServerEvent, <-chan error) {
	events := make(chan proto.ServerEvent, 64)
	errs := make(chan error, 1)
	go func() {
		defer close(events)
		for {
			_, data, err := c.ws.ReadMessage()
			if err != nil {
				errs <- err
				return
			}
			event, err := proto.DecodeServerEvent(data)
			if err != nil {
				continue
			}
			select {
			case events <- event:
			case <-c.done:
				errs <- net.ErrClosed
				return
			}
		}
	}()
	return events, errs
}

// Close sends a close frame and releases the socket.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		c.mu.Unlock()
		err = c.ws.Close()
	})
	return err
}
