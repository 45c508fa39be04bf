// Package service owns the long-lived parts of a lightgrid server: the result
// store, the session manager and the HTTP listener.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/MJE43/lightgrid/internal/api"
	"github.com/MJE43/lightgrid/internal/auth"
	"github.com/MJE43/lightgrid/internal/config"
	"github.com/MJE43/lightgrid/internal/layout"
	"github.com/MJE43/lightgrid/internal/puzzle"
	"github.com/MJE43/lightgrid/internal/store"
)

// Service is constructed with New, started with Start and stopped with
// Shutdown.
type Service struct {
	cfg     config.Config
	store   *store.SQLiteDB
	manager *puzzle.Manager
	api     *api.Server
	tokens  *auth.TokenStore
	logger  *log.Logger

	httpServer *http.Server
	addr       net.Addr
	startTime  time.Time

	stopSweep chan struct{}
	sweepDone chan struct{}
	stopOnce  sync.Once
}

// New opens and migrates the store, loads extra levels and builds the API.
// Nothing listens until Start.
func New(ctx context.Context, cfg config.Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := log.New(os.Stdout, "[SERVICE] ", log.LstdFlags)

	if cfg.LevelsDir != "" {
		if err := registerLevels(cfg.LevelsDir); err != nil {
			return nil, err
		}
	}

	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	tokens := auth.NewTokenStore(cfg.KeyringService, auth.DefaultEnvVar, cfg.TokenFile)
	manager := puzzle.NewManager(puzzle.Options{
		Recorder:  db,
		TimeLimit: cfg.TimeLimit,
		Retention: cfg.Retention,
	})
	apiServer := api.NewServer(db, manager, api.Options{
		Tokens:         tokens,
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
		AutoplayBudget: cfg.AutoplayBudget,
	})

	return &Service{
		cfg:     cfg,
		store:   db,
		manager: manager,
		api:     apiServer,
		tokens:  tokens,
		logger:  logger,
	}, nil
}

// registerLevels replaces the levels source with the built-in pack plus
// every level file in dir.
func registerLevels(dir string) error {
	extra, err := layout.LoadDir(dir)
	if err != nil {
		return fmt.Errorf("load levels from %s: %w", dir, err)
	}
	pack := layout.DefaultPack()
	if err := pack.Merge(extra); err != nil {
		return fmt.Errorf("load levels from %s: %w", dir, err)
	}
	layout.Register(layout.NewLevelSource(pack))
	return nil
}

// Start binds the listener and serves in the background. It returns once the
// socket is bound.
func (s *Service) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.addr = ln.Addr()
	s.startTime = time.Now()

	s.httpServer = &http.Server{
		Handler:           s.api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.RequestTimeout,
		WriteTimeout:      s.cfg.RequestTimeout + 5*time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("serve failed addr=%s err=%v", s.addr, err)
		}
	}()

	s.stopSweep = make(chan struct{})
	s.sweepDone = make(chan struct{})
	go s.sweepLoop()

	s.api.SecurityLogger().LogSystemStartup(s.addr.String(), map[string]interface{}{
		"db":              s.cfg.DBPath,
		"levels_dir":      s.cfg.LevelsDir,
		"sources":         len(layout.List()),
		"retention":       s.cfg.Retention.String(),
		"autoplay_budget": s.cfg.AutoplayBudget,
	})
	return nil
}

// Addr is the bound address, useful when the configured port was 0.
func (s *Service) Addr() string {
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

// Tokens exposes the admin token store.
func (s *Service) Tokens() *auth.TokenStore { return s.tokens }

func (s *Service) sweepLoop() {
	defer close(s.sweepDone)
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			s.manager.Sweep()
		}
	}
}

// Shutdown stops accepting requests, waits for in-flight ones up to ctx,
// then discards every session and closes the store.
func (s *Service) Shutdown(ctx context.Context, reason string) error {
	var errs []error
	s.stopOnce.Do(func() {
		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("http shutdown: %w", err))
			}
		}
		if s.stopSweep != nil {
			close(s.stopSweep)
			<-s.sweepDone
		}
		s.manager.Close()
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}

		var uptime time.Duration
		if !s.startTime.IsZero() {
			uptime = time.Since(s.startTime)
		}
		s.api.SecurityLogger().LogSystemShutdown(reason, uptime)
	})
	return errors.Join(errs...)
}
