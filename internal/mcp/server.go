package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const Version = "0.1.0"

type Server struct {
	ports  *Ports
	server *mcp.Server
	tools  []Tool
}

// NewServer builds a server exposing tools, or every tool when none are
// given. Unknown tools and missing ports fail construction.
func NewServer(ports *Ports, tools ...Tool) (*Server, error) {
	if len(tools) == 0 {
		tools = AllTools
	}
	if err := ports.validate(tools); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{
		ports:  ports,
		server: mcp.NewServer(&mcp.Implementation{Name: "document-qa", Version: Version}, nil),
	}
	for _, t := range tools {
		if err := s.registerTool(t); err != nil {
			return nil, err
		}
		s.tools = append(s.tools, t)
	}
	return s, nil
}

// Tools returns the registered tools.
func (s *Server) Tools() []Tool {
	return s.tools
}

// Run starts the MCP server over stdio.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the streamable HTTP transport on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
