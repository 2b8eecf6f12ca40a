// Package mcp exposes the diagram parsers and saved diagrams as MCP tools.
package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/mindflow/internal/convert"
	"github.com/rendis/mindflow/internal/expressions"
	"github.com/rendis/mindflow/internal/store"
	"github.com/rendis/mindflow/internal/streaming"
	"github.com/rendis/mindflow/internal/validation"
)

// ServerDeps holds the dependencies for creating a MindflowServer. Store,
// Querier and Hub are optional; tools that need a missing one report an error.
type ServerDeps struct {
	Store     store.Store
	Converter *convert.Converter
	Validator *validation.PayloadValidator
	Querier   *expressions.Querier
	Hub       streaming.EventHub
	// MermaidASCIIBin is the optional mermaid-ascii binary used for ASCII renders.
	MermaidASCIIBin string
	Version         string
	Logger          *slog.Logger
}

// MindflowServer wraps an MCP server with mindflow tool handlers.
type MindflowServer struct {
	store     store.Store
	converter *convert.Converter
	validator *validation.PayloadValidator
	querier   *expressions.Querier
	hub       streaming.EventHub
	asciiBin  string
	sessions  *SessionRegistry
	notifier  *DiagramNotifier
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewMindflowServer creates a MindflowServer with all tools registered.
func NewMindflowServer(deps ServerDeps) *MindflowServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	converter := deps.Converter
	if converter == nil {
		converter = convert.New(logger)
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &MindflowServer{
		store:     deps.Store,
		converter: converter,
		validator: deps.Validator,
		querier:   deps.Querier,
		hub:       deps.Hub,
		asciiBin:  deps.MermaidASCIIBin,
		sessions:  NewSessionRegistry(),
		logger:    logger,
	}

	mcpSrv := server.NewMCPServer(
		"mindflow",
		version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
		server.WithRecovery(),
		server.WithInstructions("Mindflow turns CSV tables and Mermaid flowchart text into mind map, Gantt and flowchart payloads. Use mindflow.parse to convert text, mindflow.validate to check it, mindflow.render to get Mermaid or ASCII output, mindflow.query to run jq, expr or CEL over a parsed diagram, and mindflow.save, mindflow.list and mindflow.get to manage saved diagrams. Saving or fetching a diagram subscribes the session to its change notifications."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	s.notifier = NewDiagramNotifier(mcpSrv, s.sessions, logger)
	return s
}

// StartNotifier forwards diagram change events from the hub to watching
// sessions until ctx is cancelled. It does nothing without a hub.
func (s *MindflowServer) StartNotifier(ctx context.Context) {
	if s.hub == nil {
		return
	}
	go func() {
		if err := s.notifier.Run(ctx, s.hub); err != nil && ctx.Err() == nil {
			s.logger.Warn("diagram notifier stopped", "error", err)
		}
	}()
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin
// closes. Diagram change events are forwarded to watching sessions meanwhile.
func (s *MindflowServer) Serve(ctx context.Context) error {
	s.StartNotifier(ctx)
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// HTTPHandler returns the streamable HTTP transport for this server, for
// mounting next to the panel so both share one hub. Call StartNotifier to
// deliver change events to its sessions.
func (s *MindflowServer) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *MindflowServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *MindflowServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: parseTool(), Handler: s.handleParse},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: renderTool(), Handler: s.handleRender},
		{Tool: queryTool(), Handler: s.handleQuery},
		{Tool: saveTool(), Handler: s.handleSave},
		{Tool: listTool(), Handler: s.handleList},
		{Tool: getTool(), Handler: s.handleGet},
	}
}

// --- Tool definitions ---

var diagramTypes = []string{"mindmap", "gantt", "flowchart"}

func parseTool() mcp.Tool {
	return mcp.NewTool("mindflow.parse",
		mcp.WithDescription("Parse CSV or Mermaid text into a renderer payload"),
		mcp.WithString("type", mcp.Required(), mcp.Enum(diagramTypes...), mcp.Description("Diagram type of the source text")),
		mcp.WithString("source", mcp.Required(), mcp.Description("Raw CSV (mindmap, gantt) or Mermaid flowchart text")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("mindflow.validate",
		mcp.WithDescription("Check diagram text strictly and report the first problem"),
		mcp.WithString("type", mcp.Required(), mcp.Enum(diagramTypes...), mcp.Description("Diagram type of the source text")),
		mcp.WithString("source", mcp.Required(), mcp.Description("Raw CSV or Mermaid text")),
	)
}

func renderTool() mcp.Tool {
	return mcp.NewTool("mindflow.render",
		mcp.WithDescription("Render diagram text or a saved diagram as Mermaid flowchart syntax or ASCII art"),
		mcp.WithString("type", mcp.Enum(diagramTypes...), mcp.Description("Diagram type (required with source)")),
		mcp.WithString("source", mcp.Description("Raw CSV or Mermaid text")),
		mcp.WithString("diagram_id", mcp.Description("ID of a saved diagram, instead of type and source")),
		mcp.WithString("format", mcp.Enum("mermaid", "ascii"), mcp.Description("Output format (default: mermaid)")),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("mindflow.query",
		mcp.WithDescription("Evaluate a jq, expr or CEL expression over a parsed diagram"),
		mcp.WithString("expression", mcp.Required(), mcp.Description("Expression to evaluate; with filter, a predicate over item")),
		mcp.WithString("lang", mcp.Enum("jq", "expr", "cel"), mcp.Description("Expression language (default: jq)")),
		mcp.WithString("type", mcp.Enum(diagramTypes...), mcp.Description("Diagram type (required with source)")),
		mcp.WithString("source", mcp.Description("Raw CSV or Mermaid text")),
		mcp.WithString("diagram_id", mcp.Description("ID of a saved diagram, instead of type and source")),
		mcp.WithBoolean("filter", mcp.Description("Return the tasks or nodes for which the expression is true")),
	)
}

func saveTool() mcp.Tool {
	return mcp.NewTool("mindflow.save",
		mcp.WithDescription("Save a new diagram, or update a saved one when id is given"),
		mcp.WithString("id", mcp.Description("ID of the diagram to update; omit to create")),
		mcp.WithString("type", mcp.Enum(diagramTypes...), mcp.Description("Diagram type (required when creating)")),
		mcp.WithString("source", mcp.Description("Raw CSV or Mermaid text (required when creating)")),
		mcp.WithString("title", mcp.Description("Diagram title")),
		mcp.WithString("description", mcp.Description("Diagram description")),
	)
}

func listTool() mcp.Tool {
	return mcp.NewTool("mindflow.list",
		mcp.WithDescription("List saved diagrams, most recently updated first"),
		mcp.WithString("type", mcp.Enum(diagramTypes...), mcp.Description("Only diagrams of this type")),
		mcp.WithString("search", mcp.Description("Substring to match in title or description")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of diagrams (default: 50)")),
		mcp.WithNumber("offset", mcp.Description("Number of diagrams to skip")),
	)
}

func getTool() mcp.Tool {
	return mcp.NewTool("mindflow.get",
		mcp.WithDescription("Fetch a saved diagram with its parsed payload"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Diagram ID")),
		mcp.WithBoolean("include_revisions", mcp.Description("Also return the revision history")),
	)
}
