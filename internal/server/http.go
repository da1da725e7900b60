package server

import (
	"context"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// HTTPServer serves the MCP streamable HTTP transport together with
// the health check endpoints on one listener.
type HTTPServer struct {
	mcpServer  *mcpserver.MCPServer
	health     *HealthChecker
	httpServer *http.Server
}

// NewHTTPServer creates an HTTP server for the given MCP server. The
// health checker may be nil, in which case no probe endpoints are
// registered.
func NewHTTPServer(mcpSrv *mcpserver.MCPServer, health *HealthChecker) *HTTPServer {
	return &HTTPServer{
		mcpServer: mcpSrv,
		health:    health,
	}
}

// Start starts the HTTP server on addr and blocks until it stops.
func (s *HTTPServer) Start(addr string) error {
	mux := http.NewServeMux()

	streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath("/mcp"),
	)
	mux.Handle("/mcp", streamable)

	if s.health != nil {
		s.health.RegisterHealthEndpoints(mux)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
