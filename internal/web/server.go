package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"presstalk/internal/metrics"
	"presstalk/internal/usecase"
	"presstalk/internal/view"
)

// Controller is the part of the session controller the widget drives.
type Controller interface {
	StartAsync(ctx context.Context) <-chan error
	StopAsync(ctx context.Context) <-chan error
	LeaveAsync(ctx context.Context) <-chan error
	Abort() error
}

// ViewModel is the snapshot source rendered by the widget.
type ViewModel interface {
	Snapshot() view.Snapshot
	Subscribe(fn func(view.Snapshot)) func()
	PlaybackEnded()
	PlaybackFailed(detail string)
}

// Server is the browser shell: the widget page, its websocket and the
// operational endpoints.
type Server struct {
	controller Controller
	model      ViewModel
	metrics    *metrics.Metrics
	log        *log.Logger
	hub        *Hub
	upgrader   websocket.Upgrader
	router     chi.Router

	unsubscribe func()

	// base scopes the work started by widget commands.
	base context.Context
}

func NewServer(base context.Context, controller Controller, model ViewModel, m *metrics.Metrics, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if m == nil {
		m = metrics.New()
	}

	s := &Server{
		controller: controller,
		model:      model,
		metrics:    m,
		log:        logger,
		hub:        NewHub(logger),
		base:       base,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	s.hub.OnClientCount(func(n int) { m.WebsocketClients.Set(float64(n)) })
	s.unsubscribe = model.Subscribe(s.hub.Broadcast)
	s.router = s.routes()
	return s
}

// Close detaches the server from the view model.
func (s *Server) Close() {
	s.unsubscribe()
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWebsocket)

	r.Group(func(r chi.Router) {
		r.Use(s.instrument)
		r.Get("/", s.handleIndex)
		r.Handle("/static/*", http.FileServer(http.FS(Assets())))
		r.Get("/api/view", s.handleView)
		r.Get("/healthz", s.handleHealth)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	})
	return r
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub exposes the websocket fan-out.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.log.Info("widget available", "url", "http://"+listener.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.controller.Abort(); err != nil && !errors.Is(err, usecase.ErrNoActiveSession) {
			s.log.Warn("failed to discard recording on shutdown", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	page, err := IndexHTML()
	if err != nil {
		http.Error(w, "Failed to load widget page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.model.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.hub.Clients(),
	})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	initial, err := json.Marshal(s.model.Snapshot())
	if err != nil {
		_ = conn.Close()
		return
	}

	c := newClient(conn)
	s.hub.register(c, initial)
	go c.writePump()

	c.readPump(s.log, s.Dispatch)
	s.hub.unregister(c)
}

// Dispatch applies one widget command. Session transitions happen before it
// returns, so commands from one widget keep their order; the blocking tail of
// each operation runs in the background.
func (s *Server) Dispatch(cmd Command) {
	switch cmd.Type {
	case CommandPress:
		go s.await(cmd.Type, s.controller.StartAsync(s.base))
	case CommandRelease:
		go s.await(cmd.Type, s.controller.StopAsync(s.base))
	case CommandLeave:
		go s.await(cmd.Type, s.controller.LeaveAsync(s.base))
	case CommandPlaybackEnded:
		s.model.PlaybackEnded()
	case CommandPlaybackFailed:
		s.model.PlaybackFailed(cmd.Detail)
	default:
		s.log.Warn("unknown widget command", "type", cmd.Type)
	}
}

func (s *Server) await(name string, done <-chan error) {
	err := <-done
	switch {
	case err == nil:
	case errors.Is(err, usecase.ErrSessionBusy),
		errors.Is(err, usecase.ErrNoActiveSession),
		errors.Is(err, usecase.ErrStartAborted):
		s.log.Debug("widget command ignored", "command", name, "reason", err)
	default:
		// The view already shows the failure.
		s.log.Debug("widget command failed", "command", name, "error", err)
	}
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(started)
		s.metrics.RecordHTTPRequest(r.Method, route, status, elapsed)
		s.log.Debug("http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"elapsed", elapsed.Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
