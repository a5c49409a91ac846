// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes folio documents for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/auth"
	"github.com/starford/folio/internal/docservice"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/storage"
)

const namingRulesURI = "folio://naming-rules"

// Server wraps the MCP server with folio tools.
type Server struct {
	mcp      *server.MCPServer
	docs     *docservice.Service
	operator string
}

// New creates a new MCP server with all folio tools registered. Tools that
// need a signed-in user (history, uploads) act as operator; an empty
// operator leaves them refusing every call.
func New(docs *docservice.Service, operator string) *Server {
	s := &Server{docs: docs, operator: operator}

	s.mcp = server.NewMCPServer(
		"folio",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List the documents and images in the content directory, with whether each has earlier versions."),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the raw content of a .md or .txt document."),
		mcp.WithString("name", mcp.Required(), mcp.Description("File name including extension (e.g. about.md)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("render_document",
		mcp.WithDescription("Render a Markdown document to HTML."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Markdown file name (e.g. about.md)")),
	), s.renderDocument)

	s.mcp.AddTool(mcp.NewTool("get_history",
		mcp.WithDescription("List the earlier versions of a document, oldest first."),
		mcp.WithString("name", mcp.Required(), mcp.Description("File name including extension")),
	), s.getHistory)

	s.mcp.AddTool(mcp.NewTool("upload_image",
		mcp.WithDescription("Store an image given as a base64 data URI. "+
			"The name must follow the rules in the "+namingRulesURI+" resource."),
		mcp.WithString("data", mcp.Required(), mcp.Description("data:<mime>;base64,<payload>")),
		mcp.WithString("name", mcp.Description("Target file name; derived from the data URI when empty")),
	), s.uploadImage)

	s.mcp.AddResource(
		mcp.NewResource(namingRulesURI, "Naming Rules",
			mcp.WithResourceDescription("Which file names folio accepts for documents and images."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNamingRules,
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

// asOperator marks ctx as signed in as the configured operator.
func (s *Server) asOperator(ctx context.Context) context.Context {
	if s.operator == "" {
		return ctx
	}
	return auth.WithUser(ctx, s.operator)
}

// toolError turns a service error into a tool-level error result.
func toolError(name string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("%s does not exist", name))
	case errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError(fmt.Sprintf("%s already exists", name))
	case errors.Is(err, apperr.ErrAuthorizationRequired):
		return mcp.NewToolResultError("this tool needs the server to run as a signed-in user (--user)")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func (s *Server) listDocuments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.docs.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	type row struct {
		Name       string `json:"name"`
		Kind       string `json:"kind"`
		HasHistory bool   `json:"has_history"`
	}
	rows := make([]row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, row{Name: e.Name, Kind: e.Kind.String(), HasHistory: e.HasHistory})
	}
	out, _ := json.MarshalIndent(rows, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if storage.Classify(name) == models.KindImage {
		return mcp.NewToolResultError(fmt.Sprintf("%s is an image, not a document", name)), nil
	}
	doc, err := s.docs.Get(ctx, name)
	if err != nil {
		return toolError(name, err), nil
	}
	return mcp.NewToolResultText(string(doc.Content)), nil
}

func (s *Server) renderDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !storage.IsMarkdown(name) {
		return mcp.NewToolResultError(fmt.Sprintf("%s is not a Markdown document", name)), nil
	}
	doc, err := s.docs.Get(ctx, name)
	if err != nil {
		return toolError(name, err), nil
	}
	return mcp.NewToolResultText(doc.HTML), nil
}

func (s *Server) getHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	versions, err := s.docs.History(s.asOperator(ctx), name)
	if err != nil {
		return toolError(name, err), nil
	}
	out, _ := json.MarshalIndent(versions, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNamingRules(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      namingRulesURI,
			MIMEType: "text/markdown",
			Text:     NamingRules(),
		},
	}, nil
}
