package agentcore

import (
	"context"
	"fmt"

	"github.com/localllm/agentcore/llm"
)

// mockLLM is a test double satisfying llm.LLM. Tests configure behavior
// via generateFunc; Stream is not exercised by the agent loop's tests so
// it returns an error unless a future test needs it.
type mockLLM struct {
	generateFunc func(ctx context.Context, opts ...llm.Option) (*llm.Response, error)
	nameFunc     func() string
}

func (m *mockLLM) Generate(ctx context.Context, messages []*llm.Message, opts ...llm.Option) (*llm.Response, error) {
	if m.generateFunc == nil {
		return nil, fmt.Errorf("mockLLM: generateFunc not set")
	}
	allOpts := append([]llm.Option{llm.WithMessages(messages...)}, opts...)
	return m.generateFunc(ctx, allOpts...)
}

func (m *mockLLM) Stream(ctx context.Context, messages []*llm.Message, opts ...llm.Option) (llm.Stream, error) {
	return nil, fmt.Errorf("mockLLM: streaming not supported in tests")
}

func (m *mockLLM) SupportsStreaming() bool {
	return false
}

func (m *mockLLM) Name() string {
	if m.nameFunc != nil {
		return m.nameFunc()
	}
	return "mock-model"
}
