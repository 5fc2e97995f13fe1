package ws

import (
	"log"
	nethttp "net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"croissant/server"
	"croissant/server/internal/chat"
)

const (
	defaultWriteWait  = 10 * time.Second
	defaultPongWait   = 60 * time.Second
	defaultSendBuffer = 256
	defaultReadLimit  = 4096
)

type hub interface {
	Register(peer server.Peer, sourceKey int) bool
	Unregister(id string)
	Deliver(id string, payload []byte) bool
}

type HandlerConfig struct {
	Logger     *log.Logger
	SendBuffer int
	ReadLimit  int64
	WriteWait  time.Duration
	PongWait   time.Duration
}

type Handler struct {
	hub      hub
	logger   *log.Logger
	cfg      HandlerConfig
	upgrader websocket.Upgrader
}

func NewHandler(h hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaultReadLimit
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaultWriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      h,
		logger:   logger,
		cfg:      cfg,
		upgrader: upgrader,
	}
}

// Handle upgrades the request and pumps frames between the socket and the
// hub until either side closes.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	peer := newPeer(uuid.NewString(), conn, h.cfg.SendBuffer)
	if !h.hub.Register(peer, chat.SourceKey(r.RemoteAddr)) {
		message := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(h.cfg.WriteWait))
		peer.Close()
		return
	}

	pingInterval := (h.cfg.PongWait * 9) / 10
	go peer.writePump(h.cfg.WriteWait, pingInterval)
	h.readPump(peer)
}

func (h *Handler) readPump(peer *Peer) {
	defer func() {
		h.hub.Unregister(peer.ID())
		peer.Close()
	}()

	conn := peer.conn
	conn.SetReadLimit(h.cfg.ReadLimit)
	conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.logger.Printf("read failed for %s: %v", peer.ID(), err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if !h.hub.Deliver(peer.ID(), payload) {
			return
		}
	}
}
