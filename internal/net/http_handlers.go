package net

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log"
	nethttp "net/http"
	"net/http/pprof"
	"path"
	"strings"
	"time"

	"croissant/server"
	"croissant/server/internal/chat"
	"croissant/server/internal/net/ws"
	"croissant/server/internal/observability"
)

const (
	maxSendBody    = 4 << 10
	requestTimeout = 5 * time.Second
	welcomePage    = "<html><body><h1>Croissant</h1><p>Welcome</p></body></html>"
)

type HTTPHandlerConfig struct {
	// Assets holds the static pages. A nil FS serves only the built-in
	// welcome page.
	Assets        fs.FS
	Logger        *log.Logger
	Observability observability.Config
	WebSocket     ws.HandlerConfig
}

type sendRequest struct {
	Text *string `json:"text"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

var pageRoutes = map[string]string{
	"/chat":     "chat.html",
	"/pong":     "pong.html",
	"/game":     "game.html",
	"/initials": "initials.html",
}

var portalProbes = []string{
	"/generate_204",
	"/hotspot-detect.html",
	"/library/test/success.html",
	"/success.txt",
}

var assetTypes = map[string]string{
	".css": "text/css",
	".js":  "application/javascript",
	".png": "image/png",
	".jpg": "image/jpeg",
}

func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	if cfg.WebSocket.Logger == nil {
		cfg.WebSocket.Logger = logger
	}
	assets := &assetServer{fsys: cfg.Assets, logger: logger}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		ctx, cancel := withRequestTimeout(r)
		defer cancel()
		diag, err := hub.Diagnostics(ctx)
		if err != nil {
			httpError(w, "hub unavailable", nethttp.StatusServiceUnavailable)
			return
		}
		payload := struct {
			Status string `json:"status"`
			server.Diagnostics
		}{
			Status:      "ok",
			Diagnostics: diag,
		}
		writeJSON(w, nethttp.StatusOK, payload)
	})

	mux.HandleFunc("/messages", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := withRequestTimeout(r)
		defer cancel()
		messages, err := hub.Messages(ctx)
		if err != nil {
			httpError(w, "hub unavailable", nethttp.StatusServiceUnavailable)
			return
		}
		writeJSON(w, nethttp.StatusOK, struct {
			Messages []chat.Message `json:"messages"`
		}{Messages: messages})
	})

	mux.HandleFunc("/send", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		var req sendRequest
		body := nethttp.MaxBytesReader(w, r.Body, maxSendBody)
		defer body.Close()
		if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, nethttp.StatusBadRequest, sendResponse{Error: chat.InvalidText})
			return
		}
		if req.Text == nil {
			writeJSON(w, nethttp.StatusBadRequest, sendResponse{Error: chat.InvalidText})
			return
		}

		ctx, cancel := withRequestTimeout(r)
		defer cancel()
		outcome, err := hub.SubmitMessage(ctx, chat.SourceKey(r.RemoteAddr), *req.Text)
		if err != nil {
			httpError(w, "hub unavailable", nethttp.StatusServiceUnavailable)
			return
		}
		switch outcome {
		case chat.SendAccepted:
			writeJSON(w, nethttp.StatusOK, sendResponse{Success: true})
		case chat.SendRateLimited:
			writeJSON(w, nethttp.StatusTooManyRequests, sendResponse{Error: chat.RateLimitedText})
		default:
			writeJSON(w, nethttp.StatusBadRequest, sendResponse{Error: chat.InvalidText})
		}
	})

	mux.HandleFunc("/ws", ws.NewHandler(hub, cfg.WebSocket).Handle)

	mux.HandleFunc("/ncsi.txt", plainText("Microsoft NCSI"))
	mux.HandleFunc("/connecttest.txt", plainText("success"))
	for _, probe := range portalProbes {
		mux.HandleFunc(probe, assets.serveIndex)
	}
	for route, page := range pageRoutes {
		mux.HandleFunc(route, assets.servePage(page))
	}

	if cfg.Observability.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	mux.HandleFunc("/", assets.serveFallback)

	return mux
}

type assetServer struct {
	fsys   fs.FS
	logger *log.Logger
}

func (a *assetServer) read(name string) ([]byte, bool) {
	if a.fsys == nil {
		return nil, false
	}
	data, err := fs.ReadFile(a.fsys, name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			a.logger.Printf("failed to read asset %s: %v", name, err)
		}
		return nil, false
	}
	return data, true
}

func (a *assetServer) serveIndex(w nethttp.ResponseWriter, r *nethttp.Request) {
	data, ok := a.read("index.html")
	if !ok {
		data = []byte(welcomePage)
	}
	writeBody(w, "text/html", data)
}

func (a *assetServer) servePage(name string) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		data, ok := a.read(name)
		if !ok {
			nethttp.NotFound(w, r)
			return
		}
		writeBody(w, "text/html", data)
	}
}

// serveFallback serves known asset types by path and the index page for
// everything else.
func (a *assetServer) serveFallback(w nethttp.ResponseWriter, r *nethttp.Request) {
	cleaned := path.Clean("/" + r.URL.Path)
	contentType, ok := assetTypes[strings.ToLower(path.Ext(cleaned))]
	if !ok {
		a.serveIndex(w, r)
		return
	}
	data, found := a.read(strings.TrimPrefix(cleaned, "/"))
	if !found {
		nethttp.NotFound(w, r)
		return
	}
	writeBody(w, contentType, data)
}

func plainText(body string) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeBody(w, "text/plain", []byte(body))
	}
}

func writeBody(w nethttp.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(nethttp.StatusOK)
	w.Write(data)
}

func writeJSON(w nethttp.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func withRequestTimeout(r *nethttp.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
