// MCP tool bridge: discovers tool schemas from an external MCP server
// and registers them into the Tool Registry as ordinary agentcore.Tool
// values. Concrete tool execution still happens on the MCP server; this
// file only owns the schema-discovery and invocation-dispatch plumbing
// (running an MCP server is out of this module's scope).
package toolkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/localllm/agentcore"
)

// ErrMCPNotConnected is returned when a bridge method is called before
// Connect has completed successfully.
var ErrMCPNotConnected = errors.New("mcp bridge: not connected")

// MCPServerConfig describes how to reach a single MCP server. Type
// selects the transport: "stdio" spawns Command with Args/Env, "sse"
// and "http" connect to URL.
type MCPServerConfig struct {
	Name    string
	Type    string
	Command string
	Args    []string
	Env     map[string]string
	URL     string
	Headers map[string]string
}

// MCPBridge owns a single MCP server connection and the tools
// discovered from it.
type MCPBridge struct {
	name      string
	client    *client.Client
	connected bool
}

// NewMCPBridge dials cfg's transport and runs the MCP initialize
// handshake. The returned bridge has no tools until DiscoverTools runs.
func NewMCPBridge(ctx context.Context, cfg *MCPServerConfig) (*MCPBridge, error) {
	c, err := dialMCPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("mcp bridge: dial %s: %w", cfg.Name, err)
	}
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("mcp bridge: start %s: %w", cfg.Name, err)
	}
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "agentcore", Version: "0.1.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return nil, fmt.Errorf("mcp bridge: initialize %s: %w", cfg.Name, err)
	}
	return &MCPBridge{name: cfg.Name, client: c, connected: true}, nil
}

func dialMCPClient(cfg *MCPServerConfig) (*client.Client, error) {
	switch cfg.Type {
	case "stdio":
		if cfg.Command == "" {
			return nil, fmt.Errorf("stdio transport requires a command")
		}
		env := make([]string, 0, len(cfg.Env))
		for k, v := range cfg.Env {
			env = append(env, k+"="+v)
		}
		return client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	case "sse":
		if cfg.URL == "" {
			return nil, fmt.Errorf("sse transport requires a url")
		}
		return client.NewSSEMCPClient(cfg.URL, client.WithHeaders(cfg.Headers))
	case "http", "":
		if cfg.URL == "" {
			return nil, fmt.Errorf("http transport requires a url")
		}
		return client.NewStreamableHttpClient(cfg.URL, client.WithHTTPHeaders(cfg.Headers))
	default:
		return nil, fmt.Errorf("unknown mcp transport %q", cfg.Type)
	}
}

// Close shuts down the underlying MCP connection.
func (b *MCPBridge) Close() error {
	if b.client == nil {
		return nil
	}
	b.connected = false
	return b.client.Close()
}

// IsConnected reports whether the handshake has completed and Close
// has not yet run.
func (b *MCPBridge) IsConnected() bool { return b.connected }

// DiscoverTools lists the server's tools and wraps each as an
// agentcore.Tool, ready for ToolRegistry.Register.
func (b *MCPBridge) DiscoverTools(ctx context.Context) ([]agentcore.Tool, error) {
	if !b.connected {
		return nil, ErrMCPNotConnected
	}
	result, err := b.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcp bridge: list tools on %s: %w", b.name, err)
	}
	tools := make([]agentcore.Tool, 0, len(result.Tools))
	for _, t := range result.Tools {
		tools = append(tools, &mcpToolAdapter{bridge: b, info: t})
	}
	return tools, nil
}

// mcpToolAdapter adapts a single MCP tool to agentcore.Tool, dispatching
// Call through the owning bridge's client.
type mcpToolAdapter struct {
	bridge *MCPBridge
	info   mcp.Tool
}

func (a *mcpToolAdapter) Name() string { return a.info.Name }

func (a *mcpToolAdapter) Description() string {
	if a.info.Description != "" {
		return a.info.Description
	}
	return fmt.Sprintf("MCP tool %q from server %q", a.info.Name, a.bridge.name)
}

func (a *mcpToolAdapter) Schema() *agentcore.Schema {
	if a.info.InputSchema.Type == "" {
		return agentcore.NewSchema(map[string]*agentcore.SchemaProperty{}, nil)
	}
	properties := make(map[string]*agentcore.SchemaProperty, len(a.info.InputSchema.Properties))
	for key, prop := range a.info.InputSchema.Properties {
		if propMap, ok := prop.(map[string]interface{}); ok {
			properties[key] = convertMCPProperty(propMap)
		}
	}
	return agentcore.NewSchema(properties, a.info.InputSchema.Required)
}

func (a *mcpToolAdapter) Annotations() *agentcore.ToolAnnotations {
	return &agentcore.ToolAnnotations{
		Title:         fmt.Sprintf("%s (MCP:%s)", a.info.Name, a.bridge.name),
		OpenWorldHint: true,
	}
}

func (a *mcpToolAdapter) Call(ctx context.Context, input json.RawMessage) (*agentcore.ToolResult, error) {
	if !a.bridge.connected {
		return nil, ErrMCPNotConnected
	}
	var arguments map[string]interface{}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &arguments); err != nil {
			return agentcore.NewToolResultError(fmt.Sprintf("unmarshal tool input: %v", err)), nil
		}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = a.info.Name
	req.Params.Arguments = arguments

	result, err := a.bridge.client.CallTool(ctx, req)
	if err != nil {
		return agentcore.NewToolResultError(fmt.Sprintf("mcp tool call failed: %v", err)), nil
	}
	return convertMCPResult(result)
}

// convertMCPProperty converts one level of MCP JSON Schema into a
// SchemaProperty, recursing into nested object/array shapes.
func convertMCPProperty(mcpSchema map[string]interface{}) *agentcore.SchemaProperty {
	prop := &agentcore.SchemaProperty{}
	if t, ok := mcpSchema["type"].(string); ok {
		prop.Type = agentcore.SchemaType(t)
	}
	if desc, ok := mcpSchema["description"].(string); ok {
		prop.Description = desc
	}
	if nested, ok := mcpSchema["properties"].(map[string]interface{}); ok {
		prop.Properties = make(map[string]*agentcore.SchemaProperty, len(nested))
		for key, val := range nested {
			if valMap, ok := val.(map[string]interface{}); ok {
				prop.Properties[key] = convertMCPProperty(valMap)
			}
		}
	}
	if required, ok := mcpSchema["required"].([]interface{}); ok {
		prop.Required = make([]string, 0, len(required))
		for _, r := range required {
			if s, ok := r.(string); ok {
				prop.Required = append(prop.Required, s)
			}
		}
	}
	if items, ok := mcpSchema["items"].(map[string]interface{}); ok {
		prop.Items = convertMCPProperty(items)
	}
	if enum, ok := mcpSchema["enum"].([]interface{}); ok {
		prop.Enum = make([]string, 0, len(enum))
		for _, e := range enum {
			if s, ok := e.(string); ok {
				prop.Enum = append(prop.Enum, s)
			}
		}
	}
	return prop
}

// convertMCPResult folds an MCP CallToolResult's content blocks into a
// single agentcore.ToolResult. Text and resource blocks concatenate as
// text; image/audio blocks are summarized rather than dropped, since
// the registry's ToolResult has no binary-content channel.
func convertMCPResult(result *mcp.CallToolResult) (*agentcore.ToolResult, error) {
	if result == nil {
		return agentcore.NewToolResultError("mcp tool returned no result"), nil
	}
	var parts []string
	for _, block := range result.Content {
		switch c := block.(type) {
		case mcp.TextContent:
			parts = append(parts, c.Text)
		case mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[image content, mime type %s]", c.MIMEType))
		case mcp.AudioContent:
			parts = append(parts, fmt.Sprintf("[audio content, mime type %s]", c.MIMEType))
		case mcp.EmbeddedResource:
			switch res := c.Resource.(type) {
			case mcp.TextResourceContents:
				parts = append(parts, res.Text)
			case mcp.BlobResourceContents:
				parts = append(parts, fmt.Sprintf("[binary resource %s, mime type %s]", res.URI, res.MIMEType))
			}
		default:
			return nil, fmt.Errorf("mcp bridge: unsupported content type %T", block)
		}
	}
	text := strings.Join(parts, "\n")
	if result.IsError {
		return agentcore.NewToolResultError(text), nil
	}
	return agentcore.NewToolResultText(text), nil
}
