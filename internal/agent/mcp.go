package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/joacortez/kai-go/internal/config"
	"github.com/joacortez/kai-go/internal/logger"
	"github.com/joacortez/kai-go/pkg/tools"
)

// MCPClientInterface defines the methods the coordinator expects from an MCP
// client.
type MCPClientInterface interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// DiscoverMCPTools connects to each configured MCP server and wraps its tools
// so the coordinator can declare them alongside the delegation tool. Servers
// that fail to connect are skipped; duplicated tool names keep the first
// registration.
func DiscoverMCPTools(ctx context.Context, servers []config.MCPServerConfig) []tools.Tool {
	var discovered []tools.Tool
	seen := make(map[string]bool)

	for _, serverCfg := range servers {
		mcpC, err := newMCPClient(serverCfg)
		if err != nil {
			logger.L.Error("failed to create MCP client", "name", serverCfg.Name, "error", err)
			continue
		}
		if mcpC == nil {
			continue
		}

		if serverCfg.Type != config.ClientTypeStdio {
			if err := mcpC.Start(ctx); err != nil {
				logger.L.Error("failed to start MCP client transport", "name", serverCfg.Name, "error", err)
				closeQuietly(mcpC, serverCfg.Name)
				continue
			}
		}

		initReq := mcp.InitializeRequest{
			Params: mcp.InitializeParams{Capabilities: mcp.ClientCapabilities{}},
		}
		if _, err := mcpC.Initialize(ctx, initReq); err != nil {
			logger.L.Error("failed to initialize MCP client", "name", serverCfg.Name, "error", err)
			closeQuietly(mcpC, serverCfg.Name)
			continue
		}
		logger.L.Info("MCP server initialized", "name", serverCfg.Name)

		serverTools, err := mcpC.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			logger.L.Warn("failed to list tools for MCP client", "name", serverCfg.Name, "error", err)
			continue
		}

		for _, mcpTool := range serverTools.Tools {
			if seen[mcpTool.Name] {
				logger.L.Warn("MCP tool already registered from another server, skipping", "tool", mcpTool.Name, "name", serverCfg.Name)
				continue
			}
			seen[mcpTool.Name] = true
			discovered = append(discovered, &remoteTool{
				client:      mcpC,
				name:        mcpTool.Name,
				description: mcpTool.Description,
				schema:      toolSchema(mcpTool, serverCfg.Name),
			})
			logger.L.Info("registered tool from MCP server", "tool", mcpTool.Name, "name", serverCfg.Name)
		}
	}

	return discovered
}

func newMCPClient(serverCfg config.MCPServerConfig) (*client.Client, error) {
	switch serverCfg.Type {
	case config.ClientTypeSSE:
		var sseOpts []transport.ClientOption
		if len(serverCfg.Headers) > 0 {
			sseOpts = append(sseOpts, transport.WithHeaders(serverCfg.Headers))
		}
		return client.NewSSEMCPClient(serverCfg.URL, sseOpts...)
	case config.ClientTypeStreamableHTTP:
		var httpOpts []transport.StreamableHTTPCOption
		if len(serverCfg.Headers) > 0 {
			httpOpts = append(httpOpts, transport.WithHTTPHeaders(serverCfg.Headers))
		}
		return client.NewStreamableHttpClient(serverCfg.URL, httpOpts...)
	case config.ClientTypeStdio:
		var env []string
		for k, v := range serverCfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		return client.NewStdioMCPClient(serverCfg.Command, env, serverCfg.Args...)
	case "":
		logger.L.Warn("MCP server type not specified, skipping", "name", serverCfg.Name)
		return nil, nil
	default:
		logger.L.Warn("unsupported MCP server type, skipping", "type", serverCfg.Type, "name", serverCfg.Name)
		return nil, nil
	}
}

func closeQuietly(c MCPClientInterface, name string) {
	if err := c.Close(); err != nil {
		logger.L.Warn("MCP client close error", "name", name, "error", err)
	}
}

// toolSchema extracts a usable JSON schema from an MCP tool declaration,
// falling back to an empty object schema.
func toolSchema(mcpTool mcp.Tool, serverName string) json.RawMessage {
	emptySchema := json.RawMessage(`{"type": "object", "properties": {}}`)

	if len(mcpTool.RawInputSchema) > 0 && string(mcpTool.RawInputSchema) != "null" {
		return mcpTool.RawInputSchema
	}

	schemaBytes, err := json.Marshal(mcpTool.InputSchema)
	if err != nil {
		logger.L.Error("failed to marshal MCP tool schema, using empty schema", "tool", mcpTool.Name, "error", err)
		return emptySchema
	}
	if string(schemaBytes) == "{}" || string(schemaBytes) == "null" {
		logger.L.Warn("MCP tool has an empty schema, using empty object schema", "tool", mcpTool.Name, "name", serverName)
		return emptySchema
	}
	return schemaBytes
}

// remoteTool adapts one MCP server tool to the local tools.Tool interface.
type remoteTool struct {
	client      MCPClientInterface
	name        string
	description string
	schema      json.RawMessage
}

func (t *remoteTool) Name() string                { return t.name }
func (t *remoteTool) Description() string         { return t.description }
func (t *remoteTool) Parameters() json.RawMessage { return t.schema }

func (t *remoteTool) Call(ctx context.Context, args map[string]any) (string, error) {
	result, err := t.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      t.name,
			Arguments: args,
		},
	})
	if err != nil {
		return "", fmt.Errorf("MCP tool call failed: %w", err)
	}
	if result == nil {
		return "", fmt.Errorf("MCP tool call returned no result")
	}

	var text string
	for _, contentItem := range result.Content {
		if textContent, ok := contentItem.(mcp.TextContent); ok {
			text = textContent.Text
			break
		}
	}

	if result.IsError {
		if text == "" {
			text = "Tool execution resulted in an error without specific text."
		}
		return text, nil
	}

	if text == "" {
		resultBytes, merr := json.Marshal(result)
		if merr != nil {
			return "Tool executed successfully, but result could not be formatted.", nil
		}
		text = string(resultBytes)
	}
	return text, nil
}
