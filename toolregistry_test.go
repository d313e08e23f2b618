package agentcore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/deepnoodle-ai/wonton/assert"
)

type stubTool struct {
	name        string
	annotations ToolAnnotations
	result      *ToolResult
	callErr     error
}

func (t *stubTool) Name() string                  { return t.name }
func (t *stubTool) Description() string           { return "a stub tool for tests" }
func (t *stubTool) Schema() *Schema                { return &Schema{Type: Object} }
func (t *stubTool) Annotations() *ToolAnnotations { return &t.annotations }
func (t *stubTool) Call(ctx context.Context, input json.RawMessage) (*ToolResult, error) {
	if t.callErr != nil {
		return nil, t.callErr
	}
	return t.result, nil
}

func TestToolRegistry_RegisterAndFilterByMode(t *testing.T) {
	r := NewToolRegistry(nil)
	readTool := &stubTool{name: "read_file", annotations: ToolAnnotations{ReadOnlyHint: true}}
	planOnly := &stubTool{name: "plan_only"}

	assert.NoError(t, r.Register(readTool))
	assert.NoError(t, r.Register(planOnly, ModePlanning))

	assert.Equal(t, 2, len(r.AvailableTools(ModePlanning)))
	assert.Equal(t, 1, len(r.AvailableTools(ModeDeveloper)))
	assert.True(t, r.HasTool("read_file", ModeDeveloper))
	assert.True(t, !r.HasTool("plan_only", ModeDeveloper))
}

func TestToolRegistry_DuplicateRegistrationRejected(t *testing.T) {
	r := NewToolRegistry(nil)
	assert.NoError(t, r.Register(&stubTool{name: "dup"}))
	assert.Error(t, r.Register(&stubTool{name: "dup"}))
}

func TestToolRegistry_ShouldConfirmExecute_ReadOnlySkipsConfirmation(t *testing.T) {
	r := NewToolRegistry(nil)
	readTool := &stubTool{name: "read_file", annotations: ToolAnnotations{ReadOnlyHint: true}}
	assert.NoError(t, r.Register(readTool))

	inv, err := r.CreateInvocation(context.Background(), "read_file", ModeDeveloper, &ToolUseContent{ID: "call-1", Name: "read_file", Input: `{"path":"a.go"}`})
	assert.NoError(t, err)

	details, err := inv.ShouldConfirmExecute(context.Background())
	assert.NoError(t, err)
	assert.True(t, details == nil)
}

func TestToolRegistry_ShouldConfirmExecute_AsksWithDefaultPermission(t *testing.T) {
	r := NewToolRegistry(NewPermissionManager(nil, nil))
	writeTool := &stubTool{name: "write_file"}
	assert.NoError(t, r.Register(writeTool))

	inv, err := r.CreateInvocation(context.Background(), "write_file", ModeDeveloper, &ToolUseContent{ID: "call-1", Name: "write_file", Input: `{"path":"a.go"}`})
	assert.NoError(t, err)

	details, err := inv.ShouldConfirmExecute(context.Background())
	assert.NoError(t, err)
	assert.True(t, details != nil)
	assert.Equal(t, "write_file", details.ToolName)
	assert.Equal(t, []string{"a.go"}, details.Locations)
}

func TestToolRegistry_Execute_ReportsToolResultError(t *testing.T) {
	r := NewToolRegistry(nil)
	failing := &stubTool{name: "flaky", annotations: ToolAnnotations{ReadOnlyHint: true}, result: NewToolResultError("boom")}
	assert.NoError(t, r.Register(failing))

	inv, err := r.CreateInvocation(context.Background(), "flaky", ModeDeveloper, &ToolUseContent{ID: "call-1", Name: "flaky", Input: `{}`})
	assert.NoError(t, err)

	result, err := inv.Execute(context.Background())
	assert.NoError(t, err)
	assert.True(t, result.Error != nil)
	assert.True(t, result.Error.ValidType())
}

func TestToolRegistry_Execute_CancelledContext(t *testing.T) {
	r := NewToolRegistry(nil)
	tool := &stubTool{name: "slow", annotations: ToolAnnotations{ReadOnlyHint: true}, result: NewToolResultText("ok")}
	assert.NoError(t, r.Register(tool))

	inv, err := r.CreateInvocation(context.Background(), "slow", ModeDeveloper, &ToolUseContent{ID: "call-1", Name: "slow", Input: `{}`})
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := inv.Execute(ctx)
	assert.NoError(t, err)
	assert.True(t, result.Error != nil)
	assert.Equal(t, "AbortError", result.Error.Type)
}

func TestToolRegistry_Schemas_BuildsLLMToolDefinitions(t *testing.T) {
	r := NewToolRegistry(nil)
	assert.NoError(t, r.Register(&stubTool{name: "read_file", annotations: ToolAnnotations{ReadOnlyHint: true}}))

	defs, err := r.Schemas(ModeDeveloper)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(defs))
	assert.Equal(t, "read_file", defs[0].Name)
}
