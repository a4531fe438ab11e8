package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/pkg/document"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
)

const (
	libraryURI  = "loom://library"
	documentURI = "loom://documents/{id}"
)

// ValidateResponse is the structured result of validate_document.
type ValidateResponse struct {
	Valid  bool           `json:"valid" jsonschema_description:"True when no error-level issue was found"`
	Issues []domain.Issue `json:"issues" jsonschema_description:"Every issue found, errors first"`
}

// Server exposes an Editor as an MCP server.
type Server struct {
	editor    ports.Editor
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(editor ports.Editor) *Server {
	s := &Server{
		editor: editor,
		mcpServer: server.NewMCPServer("loom-mcp", strings.TrimSpace(loom.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func connectionTool(name, description string, opts ...mcp.ToolOption) mcp.Tool {
	base := []mcp.ToolOption{
		mcp.WithDescription(description),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Stored document ID")),
		mcp.WithString("blueprint", mcp.Required(), mcp.Description("Blueprint holding both ports")),
		mcp.WithString("from", mcp.Required(), mcp.Description("Source port path, e.g. in.text or upper.out.value")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Destination port path")),
		mcp.WithBoolean("expand", mcp.Description("Expand into a fresh child of a generic map")),
	}
	return mcp.NewTool(name, append(base, opts...)...)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List stored document IDs."),
	), s.handleListDocuments)

	s.mcpServer.AddTool(mcp.NewTool("export_document",
		mcp.WithDescription("Export a stored document with its resolved generics."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Stored document ID")),
		mcp.WithString("format", mcp.Enum("yaml", "json"), mcp.Description("Output format, yaml by default")),
	), s.handleExport)

	s.mcpServer.AddTool(mcp.NewTool("validate_document",
		mcp.WithDescription("Validate a document given inline (JSON or YAML) or by stored ID."),
		mcp.WithString("document", mcp.Description("Document source, JSON or YAML")),
		mcp.WithString("document_id", mcp.Description("Stored document ID, used when document is empty")),
		mcp.WithOutputSchema[ValidateResponse](),
	), mcp.NewStructuredToolHandler(s.handleValidate))

	s.mcpServer.AddTool(connectionTool("check_connection",
		"Tell whether two ports may be connected, without connecting them.",
		mcp.WithOutputSchema[domain.CheckResult](),
	), mcp.NewStructuredToolHandler(s.handleCheck))

	s.mcpServer.AddTool(connectionTool("connect",
		"Connect two ports and store the updated document."), s.handleConnect)

	s.mcpServer.AddTool(connectionTool("disconnect",
		"Remove a connection and store the updated document."), s.handleDisconnect)

	s.mcpServer.AddTool(mcp.NewTool("inspect_port",
		mcp.WithDescription("Describe a port: declared and connected type, generic binding, stream depth and connections."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Stored document ID")),
		mcp.WithString("blueprint", mcp.Required(), mcp.Description("Blueprint holding the port")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Port path relative to the blueprint")),
		mcp.WithOutputSchema[domain.PortInfo](),
	), mcp.NewStructuredToolHandler(s.handleInspect))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := s.editor.Documents(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	if ids == nil {
		ids = []string{}
	}
	return jsonResult(ids)
}

func (s *Server) handleExport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f := document.FormatYAML
	if request.GetString("format", "yaml") == "json" {
		f = document.FormatJSON
	}
	doc, err := s.editor.Document(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", err)), nil
	}
	data, err := document.Marshal(doc, f)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (ValidateResponse, error) {
	source, _ := args["document"].(string)
	id, _ := args["document_id"].(string)

	var doc *domain.Document
	var err error
	switch {
	case strings.TrimSpace(source) != "":
		doc, err = parseSource(source)
	case id != "":
		doc, err = s.editor.Document(ctx, id)
	default:
		return ValidateResponse{}, errors.New("either document or document_id is required")
	}
	if err != nil {
		return ValidateResponse{}, err
	}

	issues, err := s.editor.Validate(ctx, doc)
	if err != nil {
		return ValidateResponse{}, fmt.Errorf("validate failed: %w", err)
	}
	res := ValidateResponse{Valid: true, Issues: issues}
	if res.Issues == nil {
		res.Issues = []domain.Issue{}
	}
	for _, issue := range issues {
		if issue.Severity == domain.SeverityError {
			res.Valid = false
		}
	}
	return res, nil
}

// parseSource accepts JSON or YAML. YAML is a superset, but JSON errors
// are more readable for JSON input.
func parseSource(source string) (*domain.Document, error) {
	f := document.FormatYAML
	if strings.HasPrefix(strings.TrimSpace(source), "{") {
		f = document.FormatJSON
	}
	return document.Unmarshal([]byte(source), f)
}

type connectionArgs struct {
	DocumentID               string `mapstructure:"document_id"`
	domain.ConnectionRequest `mapstructure:",squash"`
}

func decodeConnection(args map[string]any) (connectionArgs, error) {
	var out connectionArgs
	if err := mapstructure.WeakDecode(args, &out); err != nil {
		return out, fmt.Errorf("invalid arguments: %w", err)
	}
	if out.DocumentID == "" || out.Blueprint == "" || out.From == "" || out.To == "" {
		return out, errors.New("document_id, blueprint, from and to are required")
	}
	return out, nil
}

func (s *Server) handleCheck(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (domain.CheckResult, error) {
	in, err := decodeConnection(args)
	if err != nil {
		return domain.CheckResult{}, err
	}
	return s.editor.Check(ctx, in.DocumentID, in.ConnectionRequest)
}

func (s *Server) handleConnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decodeConnection(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.editor.Connect(ctx, in.DocumentID, in.ConnectionRequest)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("connect failed: %v", err)), nil
	}
	return jsonResult(doc)
}

func (s *Server) handleDisconnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decodeConnection(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.editor.Disconnect(ctx, in.DocumentID, in.ConnectionRequest)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("disconnect failed: %v", err)), nil
	}
	return jsonResult(doc)
}

func (s *Server) handleInspect(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (domain.PortInfo, error) {
	var in struct {
		DocumentID string `mapstructure:"document_id"`
		Blueprint  string `mapstructure:"blueprint"`
		Path       string `mapstructure:"path"`
	}
	if err := mapstructure.Decode(args, &in); err != nil {
		return domain.PortInfo{}, fmt.Errorf("invalid arguments: %w", err)
	}
	return s.editor.InspectPort(ctx, in.DocumentID, in.Blueprint, in.Path)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(libraryURI, "Operator Library",
		mcp.WithResourceDescription("Every operator definition available to documents"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.editor.Definitions(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to encode library: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: libraryURI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})

	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(documentURI, "Stored Document",
		mcp.WithTemplateDescription("A stored document in YAML"),
		mcp.WithTemplateMIMEType("text/yaml"),
	), s.readDocument)
}

func (s *Server) readDocument(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	id := strings.TrimPrefix(uri, "loom://documents/")
	if id == "" || id == uri {
		return nil, fmt.Errorf("invalid document uri %q", uri)
	}
	doc, err := s.editor.Document(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := document.Marshal(doc, document.FormatYAML)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "text/yaml", Text: string(data)},
	}, nil
}
