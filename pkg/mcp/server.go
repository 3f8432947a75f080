// Package mcp exposes a bonsai session to MCP clients: inspect the graph,
// apply editor events, edit code nodes, force evaluations and render
// diagrams.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/bonsai/internal/editor"
	"github.com/rendis/bonsai/internal/journal"
	"github.com/rendis/bonsai/internal/logging"
	"github.com/rendis/bonsai/internal/streaming"
	"github.com/rendis/bonsai/internal/validation"
)

// ServerName is the MCP implementation name.
const ServerName = "bonsai"

// RunHistory is the read side of the run journal. Satisfied by *journal.Journal.
type RunHistory interface {
	ListRuns(ctx context.Context, sessionID string, limit int) ([]*journal.Run, error)
}

// Deps holds the dependencies for creating a Server. History, Hub and
// Dialects are optional.
type Deps struct {
	Session  *editor.Session
	Hub      streaming.EventHub
	History  RunHistory
	Dialects validation.DialectLookup
	Version  string
	Logger   *slog.Logger
}

// Server wraps an MCP server with bonsai tool handlers.
type Server struct {
	session   *editor.Session
	hub       streaming.EventHub
	history   RunHistory
	dialects  validation.DialectLookup
	logger    *slog.Logger
	watchers  *WatcherRegistry
	mcpServer *server.MCPServer
}

// NewServer creates a Server with every tool registered.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		session:  deps.Session,
		hub:      deps.Hub,
		history:  deps.History,
		dialects: deps.Dialects,
		logger:   logger,
		watchers: NewWatcherRegistry(),
	}

	mcpSrv := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("bonsai evaluates a graph of input, code and output nodes. "+
			"Use bonsai.state to read the graph, bonsai.split_edge and bonsai.edit_code to change it, "+
			"bonsai.set_sources to feed inputs, bonsai.run to evaluate, and bonsai.watch to receive "+
			"outputs as notifications."),
	)
	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and forwards hub events to watchers
// until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.hub != nil {
		n := NewNotifier(s.mcpServer, s.watchers, s.logger)
		go func() {
			if err := n.Forward(ctx, s.hub, s.session.ID()); err != nil {
				s.logger.Warn("mcp notifier stopped", slog.String("error", err.Error()))
			}
		}()
	}

	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Watchers returns the registry of clients subscribed to notifications.
func (s *Server) Watchers() *WatcherRegistry {
	return s.watchers
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: stateTool(), Handler: s.handleState},
		{Tool: dispatchTool(), Handler: s.handleDispatch},
		{Tool: splitEdgeTool(), Handler: s.handleSplitEdge},
		{Tool: editCodeTool(), Handler: s.handleEditCode},
		{Tool: removeNodeTool(), Handler: s.handleRemoveNode},
		{Tool: setSourcesTool(), Handler: s.handleSetSources},
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: diagramTool(), Handler: s.handleDiagram},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: runsTool(), Handler: s.handleRuns},
		{Tool: watchTool(), Handler: s.handleWatch},
	}
}
