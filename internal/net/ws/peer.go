package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Peer is a websocket connection registered with the hub. Frames queued by
// Send are written by a dedicated write pump.
type Peer struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
}

func newPeer(id string, conn *websocket.Conn, buffer int) *Peer {
	return &Peer{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, buffer),
		closed: make(chan struct{}),
	}
}

func (p *Peer) ID() string {
	return p.id
}

// Send queues frame for delivery. It reports false when the peer is closed
// or its buffer is full.
func (p *Peer) Send(frame []byte) bool {
	select {
	case <-p.closed:
		return false
	default:
	}
	select {
	case p.send <- frame:
		return true
	default:
		return false
	}
}

func (p *Peer) Closed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

// Close stops the write pump and closes the underlying connection.
func (p *Peer) Close() error {
	var err error
	p.once.Do(func() {
		close(p.closed)
		err = p.conn.Close()
	})
	return err
}

func (p *Peer) writePump(writeWait, pingInterval time.Duration) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-p.closed:
			return
		case frame := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				p.Close()
				return
			}
		case <-ping.C:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				p.Close()
				return
			}
		}
	}
}
