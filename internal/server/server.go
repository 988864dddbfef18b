package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/videoroom/room/internal/config"
	"github.com/videoroom/room/internal/sdk"
)

// Version is reported in the preload manifest and the health endpoint.
const Version = "0.3.0"

const connectTimeout = 10 * time.Second

type Server struct {
	config         *config.Config
	hub            *Hub
	log            *slog.Logger
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	startedAt      time.Time
}

func New(cfg *config.Config, hub *Hub, log *slog.Logger) *Server {
	s := &Server{
		config:         cfg,
		hub:            hub,
		log:            log.With("component", "server"),
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		startedAt:      time.Now(),
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/preload", s.handlePreload)
	mux.HandleFunc("/api/health", s.handleHealth)
}

// Handler returns the routed handler wrapped with security headers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return securityHeaders(mux)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade error", "err", err)
		return
	}

	req, err := s.readConnect(conn)
	if err != nil {
		s.log.Warn("connect rejected", "remote", r.RemoteAddr, "err", err)
		code := sdk.CodeBadRequest
		if errors.Is(err, sdk.ErrAuthFailed) {
			code = sdk.CodeAuthFailed
		}
		sendError(conn, code, err.Error())
		conn.Close()
		return
	}

	p := s.hub.Join(conn, req.Name)
	defer s.hub.Leave(p)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg sdk.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case sdk.MsgPublish:
			var pub sdk.PublishPayload
			if err := json.Unmarshal(msg.Payload, &pub); err != nil {
				s.log.Debug("bad publish frame", "err", err)
				continue
			}
			s.hub.Publish(p, pub)
		case sdk.MsgUnpublish:
			s.hub.Unpublish(p)
		case sdk.MsgDisconnect:
			return
		}
	}
}

// readConnect waits for the connect frame and checks its credentials.
func (s *Server) readConnect(conn *websocket.Conn) (*sdk.ConnectPayload, error) {
	conn.SetReadDeadline(time.Now().Add(connectTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var msg sdk.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type != sdk.MsgConnect {
		return nil, errors.New("expected connect frame")
	}
	var req sdk.ConnectPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return nil, err
	}
	if !s.accepts(req.Credentials) {
		return nil, sdk.ErrAuthFailed
	}
	return &req, nil
}

func (s *Server) accepts(c sdk.Credentials) bool {
	want := s.config.Session
	return c.APIKey != "" &&
		c.APIKey == want.APIKey &&
		c.SessionID == want.SessionID &&
		c.Token == want.Token
}

func (s *Server) handlePreload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sdk.Manifest{
		Version:    Version,
		ICEServers: s.config.Server.ICEServers,
		Codecs:     s.config.Server.Codecs,
	})
}

// Health is the body of /api/health.
type Health struct {
	Version       string  `json:"version"`
	UptimeSec     float64 `json:"uptimeSec"`
	Peers         int     `json:"peers"`
	Streams       int     `json:"streams"`
	HostCPU       float64 `json:"hostCpuPercent"`
	HostMemUsed   float64 `json:"hostMemUsedPercent"`
	ProcessRSS    uint64  `json:"processRssBytes"`
	MetricsErrors int     `json:"metricsErrors,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.health(r.Context())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h)
}

func (s *Server) health(ctx context.Context) Health {
	h := Health{
		Version:   Version,
		UptimeSec: time.Since(s.startedAt).Seconds(),
		Peers:     s.hub.PeerCount(),
		Streams:   s.hub.StreamCount(),
	}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		h.HostCPU = pct[0]
	} else {
		h.MetricsErrors++
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		h.HostMemUsed = vm.UsedPercent
	} else {
		h.MetricsErrors++
	}
	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if mi, err := proc.MemoryInfoWithContext(ctx); err == nil {
			h.ProcessRSS = mi.RSS
		} else {
			h.MetricsErrors++
		}
	} else {
		h.MetricsErrors++
	}
	return h
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	if parsed.Host == r.Host {
		return true
	}
	host := parsed.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves h on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
