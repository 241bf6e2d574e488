package server

import (
	"context"
	"errors"
	"expvar"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/geoworld/config"
	"github.com/wfunc/geoworld/logger"
	"github.com/wfunc/geoworld/monitor"
	"github.com/wfunc/geoworld/network"
	"github.com/wfunc/geoworld/session"
	"github.com/wfunc/geoworld/world"
)

const (
	reasonRateLimited = "rate_limited"
	reasonMalformed   = "malformed"
)

// Gateway is the part of the world the transport talks to.
type Gateway interface {
	Join(ctx context.Context, sessionID, playerID string) error
	Leave(ctx context.Context, sessionID, playerID string) error
	Submit(ctx context.Context, env world.Envelope) error
}

type Options struct {
	Config    config.ServerConfig
	RateLimit config.RateLimitConfig
	Sessions  *session.Manager
	World     Gateway
	Monitor   *monitor.Monitor
}

// GameServer accepts websocket connections and feeds their frames to the
// world. It also serves /metrics and /healthz on the same listener.
type GameServer struct {
	addr           string
	readTimeout    time.Duration
	rateLimit      config.RateLimitConfig
	upgrader       websocket.Upgrader
	sessionManager *session.Manager
	world          Gateway
	monitor        *monitor.Monitor
	httpServer     *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	conns  sync.WaitGroup
}

func NewGameServer(opts Options) *GameServer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &GameServer{
		addr:           opts.Config.HTTPAddress,
		readTimeout:    opts.Config.ReadTimeout,
		rateLimit:      opts.RateLimit,
		sessionManager: opts.Sessions,
		world:          opts.World,
		monitor:        opts.Monitor,
		ctx:            ctx,
		cancel:         cancel,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP routes served by the game server.
func (s *GameServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.monitor != nil {
		mux.Handle("/metrics", s.monitor.Handler())
	}
	mux.Handle("/debug/vars", expvar.Handler())
	return mux
}

func (s *GameServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *GameServer) Serve(ln net.Listener) error {
	logger.Log.Infof("Game server listening on %s", ln.Addr())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, closes every live session and waits
// for their handlers to finish.
func (s *GameServer) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.cancel()
	for _, sess := range s.sessionManager.All() {
		sess.Close()
	}

	finished := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.ctx.Done():
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.conns.Add(1)
	defer s.conns.Done()
	s.handleConnection(network.NewWSConnection(conn))
}

func (s *GameServer) handleConnection(wsConn network.Connection) {
	sess := s.sessionManager.Create(wsConn)
	if s.rateLimit.Enabled {
		sess.SetRateLimit(s.rateLimit.MessagesPerSecond, s.rateLimit.Burst)
	}
	if s.readTimeout > 0 {
		wsConn.SetHeartbeat(s.readTimeout / 2)
	}
	go sess.WritePump()

	logger.Log.Infof("New connection from %s, session ID: %s, player ID: %s", wsConn.RemoteAddr(), sess.GetID(), sess.PlayerID)

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Destroy(sess.ID)
		sess.Close()
		if err := s.world.Leave(context.Background(), sess.ID, sess.PlayerID); err != nil && !errors.Is(err, world.ErrStopped) {
			logger.Log.Warnf("Leave for player %s failed: %v", sess.PlayerID, err)
		}
	}()

	if err := s.world.Join(s.ctx, sess.ID, sess.PlayerID); err != nil {
		logger.Log.Warnf("Join for player %s failed: %v", sess.PlayerID, err)
		return
	}

	for {
		data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Debugf("Read from session %s: %v", sess.ID, err)
			}
			return
		}
		received := time.Now()

		if !sess.Allow() {
			s.monitor.IncActionsRejected(reasonRateLimited)
			logger.Log.Debugf("Session %s is over its rate limit, frame dropped", sess.ID)
			continue
		}

		msg, err := network.Decode(data)
		if err != nil {
			s.monitor.IncActionsRejected(reasonMalformed)
			logger.Log.Warnf("Discarding frame from session %s: %v", sess.ID, err)
			continue
		}

		if err := s.world.Submit(s.ctx, world.Envelope{
			SessionID: sess.ID,
			PlayerID:  sess.PlayerID,
			Message:   msg,
			Received:  received,
		}); err != nil {
			return
		}
	}
}
