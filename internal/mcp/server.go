package mcp

import (
	"log/slog"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/moltocasto/podcast-qa/internal/middleware"
	"github.com/moltocasto/podcast-qa/internal/port"
	"github.com/moltocasto/podcast-qa/internal/service"
)

// Deps are the services exposed as MCP tools. Queue and Audit may be nil.
type Deps struct {
	Episodes port.EpisodeRepository
	Embedder port.Embedder
	Store    port.EmbeddingStore
	Ask      *service.AskService
	Pipeline *service.EmbeddingService
	Queue    port.WorkQueue
	Audit    middleware.AuditWriter
}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"list_episodes": {
		def:     listEpisodesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleListEpisodes },
	},
	"search_transcripts": {
		def:     searchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"ask_episode": {
		def:     askToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAsk },
	},
	"embed_episode": {
		def:     embedToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEmbed },
	},
}

// AllToolNames returns the registered tool names in order.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Server is the Model Context Protocol endpoint. It exposes the podcast
// tools to external AI agents on its own port.
type Server struct {
	mcp  *server.MCPServer
	port string
}

// NewServer creates a new MCP server with every podcast tool registered.
func NewServer(deps Deps, version, port string) *Server {
	s := server.NewMCPServer(
		"moltocasto",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(deps)
	for _, name := range AllToolNames() {
		entry := toolRegistry[name]
		s.AddTool(entry.def, entry.handler(h))
	}

	return &Server{mcp: s, port: port}
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Start serves streamable HTTP on /mcp until the listener fails.
func (s *Server) Start() error {
	slog.Info("MCP server starting", "port", s.port, "tools", len(toolRegistry))
	return server.NewStreamableHTTPServer(s.mcp).Start(":" + s.port)
}

// ServeStdio serves the tools over stdin and stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}
