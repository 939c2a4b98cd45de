package tablesui

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/acksell/nadella/aztables/tablestore"
)

// ServerConfig configures the debug UI server.
type ServerConfig struct {
	// Port is the HTTP port to listen on.
	Port int
	// DBPath is the path to the BadgerDB database. Empty for in-memory mode.
	DBPath string
	// SchemaPattern is a glob pattern for schema YAML files.
	SchemaPattern string
	// Logger receives request and store logging. If nil, logging is
	// disabled.
	Logger *zerolog.Logger
}

// Server is the debug UI HTTP server.
type Server struct {
	config     ServerConfig
	store      *tablestore.Store
	schema     *LoadedSchema
	log        zerolog.Logger
	httpServer *http.Server
}

// NewServer loads the schemas, opens the store and prepares the server.
func NewServer(config ServerConfig) (*Server, error) {
	schema, err := LoadSchemas(config.SchemaPattern)
	if err != nil {
		return nil, fmt.Errorf("loading schemas: %w", err)
	}

	store, err := tablestore.New(
		tablestore.Options{
			Path:     config.DBPath,
			InMemory: config.DBPath == "",
			Logger:   config.Logger,
		},
		schema.Definitions()...,
	)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	log := zerolog.Nop()
	if config.Logger != nil {
		log = *config.Logger
	}

	return &Server{
		config: config,
		store:  store,
		schema: schema,
		log:    log,
	}, nil
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run() error {
	mux := http.NewServeMux()

	NewAPIHandler(s.store, s.schema).RegisterRoutes(mux)
	mux.HandleFunc("GET /", s.index)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      corsMiddleware(s.loggingMiddleware(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		s.log.Info().Msg("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.httpServer.Shutdown(ctx)
		s.store.Close()
		close(done)
	}()

	s.printBanner()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	<-done
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// index is a minimal landing page pointing at the API.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html>
<title>tables debug ui</title>
<h1>tables debug ui</h1>
<p>JSON API:</p>
<ul>
<li><a href="/api/tables">GET /api/tables</a></li>
<li>GET /api/tables/{table}</li>
<li>GET /api/tables/{table}/rows?filter=...&amp;top=25&amp;select=A,B</li>
<li>GET /api/tables/{table}/rows/{pk}/{rk}</li>
<li>POST /api/tables/{table}/rows</li>
<li>DELETE /api/tables/{table}/rows/{pk}/{rk}</li>
</ul>`)
}

func (s *Server) printBanner() {
	fmt.Println()
	fmt.Printf("tables debug ui listening on http://localhost:%d\n", s.config.Port)
	if s.config.DBPath == "" {
		fmt.Println("mode: in-memory (data is lost on exit)")
	} else {
		fmt.Printf("database: %s\n", s.config.DBPath)
	}
	for _, def := range s.schema.Definitions() {
		entityCount := len(s.schema.Tables[def.Name].Entities)
		fmt.Printf("  - %s (%d entities, softDelete=%t)\n", def.Name, entityCount, def.SoftDelete)
	}
	fmt.Println("press Ctrl+C to stop")
	fmt.Println()
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if r.URL.Path != "/favicon.ico" {
			s.log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		}
	})
}

// corsMiddleware adds CORS headers for development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
