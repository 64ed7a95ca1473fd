// Package embedded provides an embeddable titlebot server for
// in-process use: host applications get the full HTTP API, the engine,
// and the reminder scheduler without running a separate binary.
package embedded

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maddasher/titlebot/internal/auth"
	"github.com/maddasher/titlebot/internal/engine"
	httpapi "github.com/maddasher/titlebot/internal/http"
	"github.com/maddasher/titlebot/internal/scheduler"
	"github.com/maddasher/titlebot/internal/storage/sqlite"
	"github.com/maddasher/titlebot/internal/ws"
)

// Config configures the embedded server.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// If empty, defaults to ~/.titlebot/titlebot.db
	DBPath string

	// Port is the HTTP port to listen on.
	// If 0, defaults to 7787.
	Port int

	// Host is the host to bind to.
	// If empty, defaults to localhost (127.0.0.1).
	Host string

	// TickInterval overrides the reminder sweep cadence. Zero keeps
	// the standard interval.
	TickInterval time.Duration
}

// Server is an embedded titlebot server.
type Server struct {
	cfg     Config
	store   *sqlite.Store
	eng     *engine.Engine
	hub     *ws.Hub
	sched   *scheduler.Scheduler
	http    *http.Server
	started bool
	mu      sync.Mutex
}

// New creates an embedded server without authentication; every request
// is trusted. Use NewWithAuth when the API is reachable beyond the
// host process.
func New(cfg Config) (*Server, error) {
	return build(cfg, nil)
}

// NewWithAuth creates an embedded server with bearer-key
// authentication loaded from the environment-configured keys file.
func NewWithAuth(cfg Config) (*Server, error) {
	keyring, err := auth.LoadKeyringFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load auth: %w", err)
	}
	return build(cfg, auth.Middleware(keyring))
}

func build(cfg Config, mw func(http.Handler) http.Handler) (*Server, error) {
	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		cfg.DBPath = filepath.Join(home, ".titlebot", "titlebot.db")
	}
	if cfg.Port == 0 {
		cfg.Port = 7787
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = scheduler.DefaultInterval
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	eng, err := engine.New(store, nil)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init engine: %w", err)
	}
	hub := ws.NewHub()
	eng.WithNotifier(hub)

	svc := httpapi.NewService(eng)
	router := httpapi.NewRouter(svc, hub.Handler(), mw)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		cfg:   cfg,
		store: store,
		eng:   eng,
		hub:   hub,
		sched: scheduler.New(eng, cfg.TickInterval),
		http:  &http.Server{Addr: addr, Handler: router},
	}, nil
}

// Start starts the listener and the reminder scheduler in the
// background.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.sched.Start(context.Background())

	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "titlebot server error: %v\n", err)
		}
	}()

	// Give the listener a moment to bind.
	time.Sleep(50 * time.Millisecond)
	return nil
}

// Stop stops the scheduler and shuts the listener down gracefully.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	s.sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		return err
	}
	return s.store.Close()
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// URL returns the base URL for the server.
func (s *Server) URL() string {
	return fmt.Sprintf("http://%s", s.http.Addr)
}

// Engine exposes the coordination engine for direct in-process use.
func (s *Server) Engine() *engine.Engine {
	return s.eng
}

// Store returns the underlying store for direct access if needed.
func (s *Server) Store() *sqlite.Store {
	return s.store
}
