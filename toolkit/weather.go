package toolkit

import (
	"context"
	"fmt"

	"github.com/localllm/agentcore"
)

// WeatherInput is the get_weather tool's argument shape.
type WeatherInput struct {
	City string `json:"city"`
}

// WeatherTool is a stand-in tool used to exercise the tool-call
// round-trip: the agent loop's own test scenarios dispatch a
// get_weather call and expect a JSON {temp:N} result back.
type WeatherTool struct {
	lookup func(city string) (int, error)
}

var _ agentcore.TypedTool[WeatherInput] = &WeatherTool{}

// NewWeatherTool builds a get_weather tool. lookup is injected so
// tests can supply deterministic temperatures; a nil lookup returns a
// fixed 72 degrees for every city.
func NewWeatherTool(lookup func(city string) (int, error)) *agentcore.TypedToolAdapter[WeatherInput] {
	if lookup == nil {
		lookup = func(string) (int, error) { return 72, nil }
	}
	return agentcore.ToolAdapter[WeatherInput](&WeatherTool{lookup: lookup})
}

func (t *WeatherTool) Name() string { return "get_weather" }

func (t *WeatherTool) Description() string {
	return "Returns the current temperature in degrees Fahrenheit for a named city."
}

func (t *WeatherTool) Schema() *agentcore.Schema {
	return agentcore.NewSchema(
		map[string]*agentcore.SchemaProperty{
			"city": {Type: agentcore.String, Description: "City name, e.g. 'NYC'"},
		},
		[]string{"city"},
	)
}

func (t *WeatherTool) Annotations() *agentcore.ToolAnnotations {
	return &agentcore.ToolAnnotations{
		Title:         "Get Weather",
		ReadOnlyHint:  true,
		OpenWorldHint: true,
	}
}

func (t *WeatherTool) Call(ctx context.Context, input WeatherInput) (*agentcore.ToolResult, error) {
	if input.City == "" {
		return agentcore.NewToolResultError("city is required"), nil
	}
	temp, err := t.lookup(input.City)
	if err != nil {
		return agentcore.NewToolResultError(fmt.Sprintf("weather lookup failed: %s", err)), nil
	}
	return agentcore.NewToolResultText(fmt.Sprintf(`{"temp":%d}`, temp)), nil
}
