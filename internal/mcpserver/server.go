// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes cardsync tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/cardsync/internal/companion"
	"github.com/starford/cardsync/internal/models"
	"github.com/starford/cardsync/internal/navigation"
)

// CardFormatURI is the resource holding the card format contract.
const CardFormatURI = "cardsync://card-format"

// Companion is the subset of the application service exposed as tools.
type Companion interface {
	ScanReferences(notePath string) ([]models.ReferenceResult, error)
	UpsertCard(ctx context.Context, canvasPath, notePath string, focus bool) (companion.UpsertResult, error)
	AdjustGroups(canvasPath string) (int, error)
	Breadcrumbs(notePath string) ([]string, error)
	Neighbors(notePath string) (navigation.Neighbors, error)
}

// Server wraps the MCP server with cardsync tools.
type Server struct {
	mcp *server.MCPServer
	svc Companion
}

// New creates a new MCP server with all cardsync tools registered.
func New(svc Companion, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"cardsync",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("scan_references",
		mcp.WithDescription("List the canvases that already draw a note (existing) followed by canvases "+
			"named in the canvas field of the note or its parents that do not draw it yet (potential)."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative note path (e.g. topics/note.md)")),
	), s.scanReferences)

	s.mcp.AddTool(mcp.NewTool("upsert_card",
		mcp.WithDescription("Create the card for a note in a canvas, or bring an existing card in line "+
			"with the note's current text and size. Read "+CardFormatURI+" for the generated layout."),
		mcp.WithString("canvas", mcp.Required(), mcp.Description("Vault-relative canvas path (must end with .canvas)")),
		mcp.WithString("note", mcp.Required(), mcp.Description("Vault-relative note path (must end with .md)")),
		mcp.WithBoolean("focus", mcp.Description("Open the canvas and select the card afterwards")),
	), s.upsertCard)

	s.mcp.AddTool(mcp.NewTool("adjust_groups",
		mcp.WithDescription("Snap every single-card group frame in a canvas to the card it is labelled after."),
		mcp.WithString("canvas", mcp.Required(), mcp.Description("Vault-relative canvas path")),
	), s.adjustGroups)

	s.mcp.AddTool(mcp.NewTool("get_breadcrumbs",
		mcp.WithDescription("Return the chain of parent notes (via the up field), root first, ending with the note itself."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative note path")),
	), s.getBreadcrumbs)

	s.mcp.AddTool(mcp.NewTool("get_neighbors",
		mcp.WithDescription("Return prev/next candidates of a note from its own prev/next fields and notes pointing at it."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative note path")),
	), s.getNeighbors)

	// Resource: card format contract.
	s.mcp.AddResource(
		mcp.NewResource(CardFormatURI, "Card Format",
			mcp.WithResourceDescription("Layout of the text card and group frame generated for a note."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readCardFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) scanReferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	refs, err := s.svc.ScanReferences(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(refs) == 0 {
		return mcp.NewToolResultText("no canvases reference this note"), nil
	}
	return jsonResult(refs), nil
}

func (s *Server) upsertCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	canvasPath, err := req.RequireString("canvas")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notePath, err := req.RequireString("note")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.UpsertCard(ctx, canvasPath, notePath, req.GetBool("focus", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) adjustGroups(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	canvasPath, err := req.RequireString("canvas")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.AdjustGroups(canvasPath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("adjusted %d group(s) in %s", n, canvasPath)), nil
}

func (s *Server) getBreadcrumbs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	trail, err := s.svc.Breadcrumbs(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(trail), nil
}

func (s *Server) getNeighbors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	nb, err := s.svc.Neighbors(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(nb), nil
}

func (s *Server) readCardFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      CardFormatURI,
			MIMEType: "text/markdown",
			Text:     CardFormatContract,
		},
	}, nil
}
