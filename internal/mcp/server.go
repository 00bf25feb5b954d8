// Package mcp exposes the compliance engine over the Model Context Protocol
// so agent tooling can run checks and read the tolerance schedule without the
// HTTP surface. Tools mirror the HTTP operations one to one.
package mcp

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"tridcheck/internal/compliance/models"
	"tridcheck/internal/compliance/service"
	"tridcheck/internal/compliance/tolerance"
	"tridcheck/pkg/requestcontext"
)

const (
	serverName    = "tridcheck"
	serverVersion = "1.0.0"
)

// Service is the slice of the compliance service the MCP surface needs.
type Service interface {
	Check(ctx context.Context, input models.CheckInput) (*service.CheckResult, error)
	Classify(ctx context.Context, fees []service.FeeToClassify) (*service.ClassifyResult, error)
	ScheduleDocument(ctx context.Context) tolerance.Document
}

// Server wraps an MCP server with the compliance tool and resource set.
type Server struct {
	mcp     *mcp.Server
	service Service
	logger  *slog.Logger
}

// New builds the MCP server and registers all tools and resources.
func New(svc Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mcp:     mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil),
		service: svc,
		logger:  logger,
	}

	mcp.AddTool(s.mcp, checkComplianceTool(), s.checkComplianceHandler())
	mcp.AddTool(s.mcp, classifyFeesTool(), s.classifyFeesHandler())

	s.mcp.AddResource(scheduleResource(), s.scheduleResourceHandler())
	s.mcp.AddResource(glossaryResource(), glossaryResourceHandler())

	return s
}

// Run serves MCP over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, &mcp.StdioTransport{})
}

// Serve runs the server on an explicit transport. Tests connect in-memory
// transports here.
func (s *Server) Serve(ctx context.Context, transport mcp.Transport) error {
	s.logger.InfoContext(ctx, "mcp server starting", "name", serverName, "version", serverVersion)
	return s.mcp.Run(ctx, transport)
}

// callContext stamps a fresh request ID so audit events and logs produced by
// a tool call correlate the same way HTTP requests do.
func callContext(ctx context.Context) context.Context {
	return requestcontext.WithRequestID(ctx, uuid.NewString())
}
