package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/acolita/termdriver/internal/outcome"
	"github.com/acolita/termdriver/internal/rest"
)

func (s *Server) registerRESTTools() {
	s.mcpServer.AddTool(restExecuteTool(), s.handleRESTExecute)
}

func restExecuteTool() mcp.Tool {
	return mcp.NewTool("rest_execute",
		mcp.WithDescription(`Run a REST call template, or a bunch of templates, from the template directory.

Results of earlier templates in a bunch are available to later ones.
Failures report whether a retry may succeed.`),
		mcp.WithString("template_file",
			mcp.Description("Template to run"),
		),
		mcp.WithString("params",
			mcp.Description("JSON object of template parameters"),
		),
		mcp.WithString("templates",
			mcp.Description(`JSON list for a bunch: [{"template_file": "login/*.yaml", "params": {}, "params_attributes": {"ip": ["vm", "ip"]}, "save_to": "vm"}]`),
		),
		mcp.WithString("base_url",
			mcp.Description("Base URL for template paths (default from config)"),
		),
	)
}

func (s *Server) handleRESTExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.templates == nil {
		return mcp.NewToolResultError("no template directory configured"), nil
	}
	cfg := s.currentConfig()

	templateFile := mcp.ParseString(req, "template_file", "")
	var params map[string]any
	if err := decodeArg(req, "params", &params); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var items []rest.BunchItem
	if err := decodeArg(req, "templates", &items); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if templateFile == "" && len(items) == 0 {
		return mcp.NewToolResultError("template_file or templates is required"), nil
	}

	opts := append([]rest.ExecutorOption{rest.WithTimeout(cfg.REST.Timeout)}, s.restOpts...)
	exec := rest.NewExecutor(mcp.ParseString(req, "base_url", cfg.REST.BaseURL), opts...)

	var (
		result map[string]any
		err    error
	)
	if len(items) > 0 {
		result, err = exec.Bunch(ctx, s.templates, items, params)
	} else {
		result, err = exec.ExecuteFile(ctx, s.templates, templateFile, nil, params)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", outcome.KindOf(err), err)), nil
	}
	return jsonResult(result)
}
