package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	scheduleResourceURI = "trid://schedule/tolerance"
	glossaryResourceURI = "trid://glossary"
)

//go:embed glossary.md
var glossaryMarkdown string

func scheduleResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "tolerance_schedule",
		Title:       "Tolerance Schedule",
		Description: "The active tolerance schedule: version, category-to-bucket table, fee name overrides, and holiday calendar",
		MIMEType:    "application/json",
		URI:         scheduleResourceURI,
	}
}

func glossaryResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "trid_glossary",
		Title:       "TRID Glossary",
		Description: "Definitions of tolerance buckets, APR drift thresholds, and the compared disclosure documents",
		MIMEType:    "text/markdown",
		URI:         glossaryResourceURI,
	}
}

func (s *Server) scheduleResourceHandler() mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := scheduleResourceURI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}

		document := s.service.ScheduleDocument(ctx)
		data, err := json.MarshalIndent(document, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal tolerance schedule: %w", err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}

func glossaryResourceHandler() mcp.ResourceHandler {
	return func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := glossaryResourceURI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     glossaryMarkdown,
				},
			},
		}, nil
	}
}
