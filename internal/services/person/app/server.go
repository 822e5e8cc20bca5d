// Package server wires the person runtime and HTTP lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/personql/internal/platform/config"
	platformgrpc "github.com/louisbranch/personql/internal/platform/grpc"
	"github.com/louisbranch/personql/internal/platform/httpx"
	"github.com/louisbranch/personql/internal/platform/timeouts"
	personservice "github.com/louisbranch/personql/internal/services/person/api/http/person"
	"github.com/louisbranch/personql/internal/services/person/graph"
	personsqlite "github.com/louisbranch/personql/internal/services/person/storage/sqlite"
)

// EnvPrefix namespaces every person service environment variable.
const EnvPrefix = "PERSONQL_"

// HealthService is the service name reported by the gRPC health endpoint.
const HealthService = "person.v1.PersonService"

type serverEnv struct {
	DBPath               string `env:"DB_PATH"`
	GraphQLMaxDepth      int    `env:"GRAPHQL_MAX_DEPTH" envDefault:"10"`
	GraphQLMaxParallel   int    `env:"GRAPHQL_MAX_PARALLELISM" envDefault:"10"`
	MaxBodyBytes         int64  `env:"MAX_BODY_BYTES" envDefault:"1048576"`
	GraphQLTraceDisabled bool   `env:"GRAPHQL_TRACE_DISABLED"`
}

func loadServerEnv() (serverEnv, error) {
	var cfg serverEnv
	if err := config.ParseEnvPrefixed(&cfg, EnvPrefix); err != nil {
		return serverEnv{}, err
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "person.db")
	}
	return cfg, nil
}

// Server hosts the person HTTP API, its storage, and an optional gRPC health
// endpoint.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	health     *platformgrpc.HealthServer
	store      *personsqlite.Store
}

// NewWithAddr creates a configured person server for httpAddr. An empty
// healthAddr disables the gRPC health endpoint.
func NewWithAddr(httpAddr, healthAddr string) (*Server, error) {
	env, err := loadServerEnv()
	if err != nil {
		return nil, err
	}

	store, err := openPersonStore(env.DBPath)
	if err != nil {
		return nil, err
	}
	schema, err := graph.New(store, graph.Options{
		MaxDepth:       env.GraphQLMaxDepth,
		MaxParallelism: env.GraphQLMaxParallel,
		DisableTracing: env.GraphQLTraceDisabled,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	apiService, err := personservice.NewService(store, schema)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	listener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on %s: %w", httpAddr, err)
	}

	var healthServer *platformgrpc.HealthServer
	if strings.TrimSpace(healthAddr) != "" {
		healthServer, err = platformgrpc.NewHealthServer(healthAddr, HealthService)
		if err != nil {
			_ = listener.Close()
			_ = store.Close()
			return nil, err
		}
	}

	mux := http.NewServeMux()
	apiService.Register(mux)
	handler := httpx.Chain(mux,
		httpx.Trace("person"),
		httpx.RequestID("person"),
		httpx.RecoverPanic(),
		httpx.LimitBody(env.MaxBodyBytes),
	)

	return &Server{
		listener: listener,
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
		health: healthServer,
		store:  store,
	}, nil
}

// Addr returns the HTTP listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HealthAddr returns the gRPC health listener address, or "" when disabled.
func (s *Server) HealthAddr() string {
	if s == nil {
		return ""
	}
	return s.health.Addr()
}

// Run creates and serves a person server until context cancellation.
func Run(ctx context.Context, httpAddr, healthAddr string) error {
	server, err := NewWithAddr(httpAddr, healthAddr)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve answers HTTP and health requests until context cancellation, then
// drains in-flight requests. If the health endpoint stops on its own, HTTP is
// shut down too and Serve returns an error.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	healthCtx, stopHealth := context.WithCancel(ctx)
	defer stopHealth()
	var healthErr chan error
	if s.health != nil {
		healthErr = make(chan error, 1)
		go func() {
			healthErr <- s.health.Serve(healthCtx)
		}()
	}

	log.Printf("person server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	var runErr error
	httpDone := false
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		httpDone = true
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("serve http: %w", err)
		}
	case err := <-healthErr:
		healthErr = nil
		if err == nil {
			err = errors.New("health server stopped")
		}
		log.Printf("health server failed: %v", err)
		runErr = fmt.Errorf("serve health: %w", err)
	}

	if !httpDone {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && runErr == nil {
			runErr = fmt.Errorf("shutdown http server: %w", err)
		}
		if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) && runErr == nil {
			runErr = fmt.Errorf("serve http: %w", err)
		}
	}

	stopHealth()
	if healthErr != nil {
		if err := <-healthErr; err != nil && runErr == nil {
			runErr = fmt.Errorf("serve health: %w", err)
		}
	}
	return runErr
}

// Close releases person server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.health.Close()
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close person store: %v", err)
		}
	}
}

func openPersonStore(path string) (*personsqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := personsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open person sqlite store: %w", err)
	}
	return store, nil
}
