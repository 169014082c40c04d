package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mkharlamov/corporate-agent/internal/core/ports"
)

// Server exposes the reference index and stored reports as MCP tools so
// that external agents can reuse the same corpus the reviewer runs on.
type Server struct {
	mcpServer *server.MCPServer
	index     ports.ReferenceIndex
	reader    ports.ReportReader
}

func NewServer(version string, index ports.ReferenceIndex, reader ports.ReportReader) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer("corporate-agent", version, server.WithToolCapabilities(false)),
		index:     index,
		reader:    reader,
	}

	queryTool := mcp.NewTool("query_reference",
		mcp.WithDescription("Search the ADGM reference corpus and return the most relevant passages with sources and scores."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural-language question or clause text to search for."),
		),
		mcp.WithNumber("k",
			mcp.Description("Number of passages to return, default 4."),
		),
	)
	s.mcpServer.AddTool(queryTool, s.queryReference)

	reportTool := mcp.NewTool("get_report",
		mcp.WithDescription("Fetch the compliance analysis report for a completed submission as JSON."),
		mcp.WithString("submission_id",
			mcp.Required(),
			mcp.Description("Submission identifier returned by the upload endpoint."),
		),
	)
	s.mcpServer.AddTool(reportTool, s.getReport)

	return s
}

// ServeStdio blocks serving the MCP protocol over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) queryReference(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query must not be blank"), nil
	}
	k := req.GetInt("k", 4)
	if k < 1 {
		k = 4
	}

	passages, err := s.index.Query(ctx, query, k)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reference query failed: %v", err)), nil
	}

	var sb strings.Builder
	if len(passages) == 0 {
		sb.WriteString("No relevant passages found.")
	}
	for i, p := range passages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%d] %s (score %.3f)\n%s", i+1, p.Source, p.Score, p.Text)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) getReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	submissionID, err := req.RequireString("submission_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	report, err := s.reader.GetReport(ctx, submissionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("report lookup failed: %v", err)), nil
	}

	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("serialize report: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}
