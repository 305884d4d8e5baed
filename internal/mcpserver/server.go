// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes metacheck tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/metacheck/internal/apperr"
	"github.com/starford/metacheck/internal/checker"
	"github.com/starford/metacheck/internal/lanelet"
	"github.com/starford/metacheck/internal/models"
)

const guideURI = "metacheck://discrepancy-guide"

// Checker is what the tools need from the checker service.
type Checker interface {
	Run(ctx context.Context, req checker.Request) (*models.Report, error)
	GetRun(ctx context.Context, id string) (*models.Report, error)
	Classify(value string) models.IdentifierClass
	Decode(path string) (lanelet.Decoded, error)
}

// Server wraps the MCP server with metacheck tools.
type Server struct {
	mcp *server.MCPServer
	svc Checker
}

// New creates a new MCP server with all metacheck tools registered.
func New(svc Checker, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"metacheck",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("check_files",
		mcp.WithDescription("Check the provenance metadata of sequencing files. "+
			"Pass either paths or a study; the result lists discrepancies per file. "+
			"Read the "+guideURI+" resource to interpret them."),
		mcp.WithArray("paths", mcp.Description("Archive paths such as /seq/10001/10001_1#30.bam"), mcp.WithStringItems()),
		mcp.WithString("study", mcp.Description("Study name, accession number or id to select files by")),
		mcp.WithBoolean("qc_pass", mcp.Description("With study: only files that passed manual QC")),
		mcp.WithString("reference", mcp.Description("Genome the files must be aligned to, e.g. GRCh38")),
	), s.checkFiles)

	s.mcp.AddTool(mcp.NewTool("classify_identifier",
		mcp.WithDescription("Tell whether a value is an accession number, an internal id or a name."),
		mcp.WithString("value", mcp.Required(), mcp.Description("Raw identifier")),
	), s.classifyIdentifier)

	s.mcp.AddTool(mcp.NewTool("decode_path",
		mcp.WithDescription("Decode the run, lane and tag of a sequencing file path."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Archive path")),
	), s.decodePath)

	s.mcp.AddTool(mcp.NewTool("get_run",
		mcp.WithDescription("Fetch a stored check run by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Run id returned by check_files")),
	), s.getRun)

	s.mcp.AddResource(
		mcp.NewResource(guideURI, "Discrepancy Guide",
			mcp.WithResourceDescription("Meaning of every discrepancy kind a check run reports."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readGuideResource,
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

func (s *Server) checkFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cr := checker.Request{
		Paths:            req.GetStringSlice("paths", nil),
		DesiredReference: req.GetString("reference", ""),
	}
	if study := req.GetString("study", ""); study != "" {
		cr.Search = &checker.Search{Study: study, QCPass: req.GetBool("qc_pass", false)}
	}
	rep, err := s.svc.Run(ctx, cr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rep), nil
}

func (s *Server) classifyIdentifier(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v, err := req.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(s.svc.Classify(v))), nil
}

func (s *Server) decodePath(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.Decode(p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(d), nil
}

func (s *Server) getRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rep, err := s.svc.GetRun(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("run not found: %s", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rep), nil
}

func (s *Server) readGuideResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      guideURI,
			MIMEType: "text/markdown",
			Text:     DiscrepancyGuide,
		},
	}, nil
}
