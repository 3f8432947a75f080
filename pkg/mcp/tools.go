package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/bonsai/internal/diagram"
	"github.com/rendis/bonsai/internal/editor"
	"github.com/rendis/bonsai/internal/journal"
	"github.com/rendis/bonsai/internal/validation"
	"github.com/rendis/bonsai/pkg/schema"
)

// --- Tool definitions ---

func stateTool() mcp.Tool {
	return mcp.NewTool("bonsai.state",
		mcp.WithDescription("Get the current graph, viewport and selection"),
	)
}

func dispatchTool() mcp.Tool {
	return mcp.NewTool("bonsai.dispatch",
		mcp.WithDescription("Apply a raw editor event such as wheel, pointer_down or resize"),
		mcp.WithObject("event", mcp.Required(), mcp.Description(`Event envelope, e.g. {"type":"wheel","delta":-1,"cursor":{"x":0,"y":0}}`)),
	)
}

func splitEdgeTool() mcp.Tool {
	return mcp.NewTool("bonsai.split_edge",
		mcp.WithDescription("Insert a new code node in the middle of an edge"),
		mcp.WithString("from", mcp.Required(), mcp.Description("Source node ID of the edge")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Destination node ID of the edge")),
	)
}

func editCodeTool() mcp.Tool {
	return mcp.NewTool("bonsai.edit_code",
		mcp.WithDescription("Replace the code of a code node"),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("ID of the code node")),
		mcp.WithString("text", mcp.Required(), mcp.Description("New fragment text; empty passes the value through")),
		mcp.WithString("dialect", mcp.Description("Fragment dialect (expr, cel, jq, hcl); unchanged when omitted")),
	)
}

func removeNodeTool() mcp.Tool {
	return mcp.NewTool("bonsai.remove_node",
		mcp.WithDescription("Delete a node and every edge touching it"),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("ID of the node to remove")),
	)
}

func setSourcesTool() mcp.Tool {
	return mcp.NewTool("bonsai.set_sources",
		mcp.WithDescription("Replace the external values fed to input nodes, keyed by input name"),
		mcp.WithObject("sources", mcp.Required(), mcp.Description(`Values keyed by input name, e.g. {"DOM":{"title":"x"}}`)),
	)
}

func runTool() mcp.Tool {
	return mcp.NewTool("bonsai.run",
		mcp.WithDescription("Evaluate the current graph now and return outputs and errors"),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("bonsai.diagram",
		mcp.WithDescription("Render the graph with the last evaluation overlaid. Returns Mermaid, ASCII, or base64-encoded PNG"),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum(diagram.FormatMermaid, diagram.FormatASCII, diagram.FormatPNG),
			mcp.Description("Output format"),
		),
		mcp.WithString("title", mcp.Description("Diagram title")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("bonsai.validate",
		mcp.WithDescription("Check the graph for dangling edges, unnamed inputs/outputs, unknown dialects, fan-in and cycles"),
	)
}

func runsTool() mcp.Tool {
	return mcp.NewTool("bonsai.runs",
		mcp.WithDescription("List recent evaluation runs from the journal"),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 50)")),
	)
}

func watchTool() mcp.Tool {
	return mcp.NewTool("bonsai.watch",
		mcp.WithDescription("Receive computed outputs and node failures as notifications"),
		mcp.WithBoolean("enabled", mcp.Description("false to stop watching (default true)")),
	)
}

// --- Handlers ---

func (s *Server) handleState(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(s.snapshot())
}

func (s *Server) handleDispatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := mcp.ParseStringMap(req, "event", nil)
	if raw == nil {
		return mcp.NewToolResultError("event is required"), nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid event: %v", err)), nil
	}
	ev, err := editor.ParseEvent(data)
	if err != nil {
		return errorResult(err), nil
	}
	return s.apply(ctx, ev)
}

func (s *Server) handleSplitEdge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError("from is required"), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError("to is required"), nil
	}
	st, err := s.session.Dispatch(ctx, editor.EdgeActivate{From: from, To: to})
	if err != nil {
		return errorResult(err), nil
	}
	return marshalResult(map[string]any{
		"node_id": st.EditingNode,
		"version": s.session.Version(),
	})
}

// handleEditCode opens the node for editing and commits the new text.
func (s *Server) handleEditCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError("node_id is required"), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text is required"), nil
	}
	dialect := req.GetString("dialect", "")

	if _, err := s.session.Dispatch(ctx, editor.DoubleActivate{Target: id}); err != nil {
		return errorResult(err), nil
	}
	return s.apply(ctx, editor.TextCommit{Target: id, Text: text, Dialect: dialect})
}

func (s *Server) handleRemoveNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError("node_id is required"), nil
	}
	return s.apply(ctx, editor.RemoveNode{Target: id})
}

func (s *Server) handleSetSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sources := mcp.ParseStringMap(req, "sources", nil)
	if sources == nil {
		return mcp.NewToolResultError("sources is required"), nil
	}
	data, err := json.Marshal(sources)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid sources: %v", err)), nil
	}
	v, err := validation.Default()
	if err != nil {
		return errorResult(err), nil
	}
	if err := v.ValidateSources(data); err != nil {
		return errorResult(err), nil
	}
	s.session.SetSourceData(ctx, sources)
	return marshalResult(map[string]any{"sources": len(sources)})
}

func (s *Server) handleRun(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res := s.session.EvaluateNow(ctx, editor.TriggerManual)
	return marshalResult(map[string]any{
		"outputs":      res.Outputs,
		"errors":       res.Errors,
		"failed_nodes": res.FailedNodes(),
		"visited":      res.Visited,
		"duration_ms":  res.Duration.Milliseconds(),
	})
}

func (s *Server) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	model := diagram.Build(req.GetString("title", ""), s.session.State().Graph, s.session.LastResult())
	body, _, err := diagram.Render(ctx, format, model)
	if err != nil {
		return errorResult(err), nil
	}
	if format == diagram.FormatPNG {
		return mcp.NewToolResultText(base64.StdEncoding.EncodeToString(body)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

func (s *Server) handleValidate(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := validation.ValidateGraph(s.session.State().Graph, s.dialects)
	return marshalResult(map[string]any{
		"valid":    result.Valid(),
		"errors":   result.Errors,
		"warnings": result.Warnings,
	})
}

func (s *Server) handleRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.history == nil {
		return mcp.NewToolResultError("run journal is disabled"), nil
	}
	runs, err := s.history.ListRuns(ctx, s.session.ID(), req.GetInt("limit", journal.DefaultListLimit))
	if err != nil {
		return errorResult(err), nil
	}
	if runs == nil {
		runs = []*journal.Run{}
	}
	return marshalResult(map[string]any{"runs": runs})
}

// handleWatch registers the calling client for result notifications.
func (s *Server) handleWatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session := server.ClientSessionFromContext(ctx)
	if session == nil {
		return mcp.NewToolResultError("watch requires a client session"), nil
	}
	enabled := req.GetBool("enabled", true)
	if enabled {
		s.watchers.Register(session.SessionID())
	} else {
		s.watchers.Remove(session.SessionID())
	}
	return marshalResult(map[string]any{"watching": enabled})
}

// --- Internal helpers ---

func (s *Server) apply(ctx context.Context, ev editor.Event) (*mcp.CallToolResult, error) {
	if _, err := s.session.Dispatch(ctx, ev); err != nil {
		return errorResult(err), nil
	}
	return marshalResult(s.snapshot())
}

func (s *Server) snapshot() map[string]any {
	return map[string]any{
		"session_id": s.session.ID(),
		"version":    s.session.Version(),
		"pending":    s.session.Pending(),
		"state":      s.session.State(),
	}
}

// errorResult reports err as a tool error carrying its structured code.
func errorResult(err error) *mcp.CallToolResult {
	bErr := schema.AsBonsaiError(err, schema.ErrCodeInvalidEvent)
	data, mErr := json.Marshal(map[string]any{"error": bErr})
	if mErr != nil {
		return mcp.NewToolResultError(bErr.Error())
	}
	return mcp.NewToolResultError(string(data))
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
