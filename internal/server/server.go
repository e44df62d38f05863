// ABOUTME: HTTP server: /graphql endpoint, /graphiql explorer, and a
// ABOUTME: static file fallback for every other path.

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"
	"go.uber.org/zap"
)

// Server hosts the GraphQL API and the static site.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// New builds a Server bound to addr, serving schema at /graphql and
// files from staticPath everywhere else.
func New(addr string, schema graphql.Schema, staticPath string, log *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/graphql", handler.New(&handler.Config{
		Schema: &schema,
		Pretty: true,
	}))
	mux.Handle("/graphiql", handler.New(&handler.Config{
		Schema:   &schema,
		Pretty:   true,
		GraphiQL: true,
	}))
	mux.Handle("/", http.FileServer(http.Dir(staticPath)))

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Handler exposes the routing for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks until the server stops. A closed-server return
// is reported as nil.
func (s *Server) ListenAndServe() error {
	s.log.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
