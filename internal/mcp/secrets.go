package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/acolita/termdriver/internal/secrets"
)

func (s *Server) registerSecretTools() {
	s.mcpServer.AddTool(secretWriteTool("secret_create", "Create secrets; fails if any key already exists"), s.handleSecretCreate)
	s.mcpServer.AddTool(secretWriteTool("secret_update", "Update existing secrets; fails if any key is missing"), s.handleSecretUpdate)
	s.mcpServer.AddTool(secretReadTool(), s.handleSecretRead)
	s.mcpServer.AddTool(secretDeleteTool(), s.handleSecretDelete)
}

func variantOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("variant",
			mcp.Description("Variant appended to every key, e.g. an environment name"),
		),
		mcp.WithString("separator",
			mcp.Description("Separator between key and variant (default: __)"),
		),
	}
}

func secretWriteTool(name, desc string) mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(desc),
		mcp.WithString("entries",
			mcp.Required(),
			mcp.Description(`JSON object of key to value; non-string values are stored as JSON`),
		),
	}, variantOptions()...)
	return mcp.NewTool(name, opts...)
}

func secretReadTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Read secrets; JSON values are decoded"),
		mcp.WithString("keys",
			mcp.Required(),
			mcp.Description("JSON list of keys"),
		),
	}, variantOptions()...)
	return mcp.NewTool("secret_read", opts...)
}

func secretDeleteTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Delete secrets; missing keys are ignored"),
		mcp.WithString("keys",
			mcp.Required(),
			mcp.Description("JSON list of keys"),
		),
		mcp.WithBoolean("do_not_delete",
			mcp.Description("Skip the deletion"),
		),
	}, variantOptions()...)
	return mcp.NewTool("secret_delete", opts...)
}

func (s *Server) secretParams(req mcp.CallToolRequest) (secrets.Parameters, error) {
	p := secrets.Parameters{
		Variant:     mcp.ParseString(req, "variant", ""),
		Separator:   mcp.ParseString(req, "separator", s.currentConfig().Secrets.Separator),
		DoNotDelete: mcp.ParseBoolean(req, "do_not_delete", false),
	}
	if err := decodeArg(req, "entries", &p.Entries); err != nil {
		return p, err
	}
	if err := decodeArg(req, "keys", &p.Keys); err != nil {
		return p, err
	}
	return p, nil
}

func (s *Server) handleSecretCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.writeSecrets(req, s.secrets.Create)
}

func (s *Server) handleSecretUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.writeSecrets(req, s.secrets.Update)
}

func (s *Server) writeSecrets(req mcp.CallToolRequest, write func(secrets.Parameters) (map[string]string, error)) (*mcp.CallToolResult, error) {
	p, err := s.secretParams(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(p.Entries) == 0 {
		return mcp.NewToolResultError("entries is required"), nil
	}
	written, err := write(p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	keys := make([]string, 0, len(written))
	for k := range p.Entries {
		if _, ok := written[k]; ok {
			keys = append(keys, p.StoredKey(k))
		}
	}
	return jsonResult(map[string]any{"status": "saved", "keys": keys})
}

func (s *Server) handleSecretRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := s.secretParams(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(p.Keys) == 0 {
		return mcp.NewToolResultError("keys is required"), nil
	}
	values, err := s.secrets.Read(p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(values)
}

func (s *Server) handleSecretDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := s.secretParams(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.secrets.Delete(p, p.Keys); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status := "deleted"
	if p.DoNotDelete {
		status = "skipped"
	}
	return jsonResult(map[string]any{"status": status})
}
