// Package mcpserver exposes requirement tools to the agent over MCP for
// the duration of one delegation. The tools are the only path through
// which a requirement becomes blocked; the iteration engine itself never
// drives that transition.
package mcpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/mark3labs/mcp-go/server"
	"github.com/mark3labs/prdloop/internal/logger"
	"github.com/mark3labs/prdloop/internal/prd"
)

// Server manages an embedded MCP HTTP server scoped to one feature slug.
type Server struct {
	store      *prd.Store
	slug       string
	mcpServer  *server.MCPServer
	stdServer  *http.Server
	port       int
	mu         sync.Mutex
}

// New creates a new MCP server instance for the given slug.
// The server is not started until Start() is called.
func New(store *prd.Store, slug string) *Server {
	return &Server{
		store: store,
		slug:  slug,
	}
}

// Start starts the MCP HTTP server on a random available port.
// Returns the port number or an error if startup fails.
func (s *Server) Start(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdServer != nil {
		return 0, fmt.Errorf("server already started")
	}

	s.mcpServer = server.NewMCPServer(
		"prdloop-tools",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools()

	// Pre-open the listener so the assigned port is known before Serve
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to find available port: %w", err)
	}
	s.port = listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.Handle("/mcp", server.NewStreamableHTTPServer(
		s.mcpServer,
		server.WithStateLess(true),
	))
	s.stdServer = &http.Server{Handler: mux}

	logger.Debug("Starting MCP server on port %d", s.port)
	stdServer := s.stdServer
	go func() {
		if err := stdServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("MCP server error: %v", err)
		}
	}()

	return s.port, nil
}

// Stop stops the MCP HTTP server and cleans up resources.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdServer == nil {
		return nil // Already stopped
	}

	logger.Debug("Stopping MCP server")
	if err := s.stdServer.Shutdown(context.Background()); err != nil {
		logger.Warn("Error stopping MCP server: %v", err)
		return fmt.Errorf("failed to stop server: %w", err)
	}

	s.stdServer = nil
	s.mcpServer = nil
	return nil
}

// URL returns the HTTP URL for the MCP server endpoint.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("http://localhost:%d/mcp", s.port)
}
