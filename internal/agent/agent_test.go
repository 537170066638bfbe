package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/joacortez/kai-go/pkg/tools"
)

type mockLLM struct {
	calls    []openai.ChatCompletionResponse
	requests []openai.ChatCompletionRequest
	err      error
}

func (m *mockLLM) CreateChatCompletion(ctx context.Context, r openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.requests = append(m.requests, r)
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	if len(m.calls) == 0 {
		panic("mockLLM: no more responses configured")
	}
	resp := m.calls[0]
	m.calls = m.calls[1:]
	return resp, nil
}

func contentResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Content: content},
		}},
	}
}

func toolCallResponse(id, name, args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				ToolCalls: []openai.ToolCall{{
					ID:       id,
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: name, Arguments: args},
				}},
			},
		}},
	}
}

// stubTool is a scriptable tools.Tool for agent tests.
type stubTool struct {
	name     string
	output   string
	err      error
	lastArgs map[string]any
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub tool " + s.name }
func (s *stubTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}
func (s *stubTool) Call(ctx context.Context, args map[string]any) (string, error) {
	s.lastArgs = args
	return s.output, s.err
}

func TestAgentProcess_LLMRespondsDirectly(t *testing.T) {
	directResponse := "Hola Joa, todo bien."
	mockClient := &mockLLM{calls: []openai.ChatCompletionResponse{contentResponse(directResponse)}}

	a := New("kai", mockClient, "gpt-4o-mini", "You are KAI.", nil)

	out, err := a.Process(context.Background(), "hola")
	require.NoError(t, err)
	require.Equal(t, directResponse, out)
	require.Len(t, mockClient.requests, 1)
	require.Equal(t, openai.ChatMessageRoleSystem, mockClient.requests[0].Messages[0].Role)
}

func TestAgentProcess_ToolCallFlow(t *testing.T) {
	stub := &stubTool{name: "get_weather", output: "The weather in London is sunny."}
	registry := tools.NewRegistry()
	registry.Register(stub)

	finalResponse := "It is sunny in London."
	mockClient := &mockLLM{calls: []openai.ChatCompletionResponse{
		toolCallResponse("call_123", "get_weather", `{"location": "London"}`),
		contentResponse(finalResponse),
	}}

	a := New("kai", mockClient, "gpt-4o-mini", "", registry)

	out, err := a.Process(context.Background(), "Weather in London?")
	require.NoError(t, err)
	require.Equal(t, finalResponse, out)
	require.Equal(t, map[string]any{"location": "London"}, stub.lastArgs)

	// Second request must carry the assistant tool-call message and the tool result.
	secondReq := mockClient.requests[1]
	last := secondReq.Messages[len(secondReq.Messages)-1]
	require.Equal(t, openai.ChatMessageRoleTool, last.Role)
	require.Equal(t, stub.output, last.Content)
	require.Equal(t, "call_123", last.ToolCallID)
}

func TestAgentProcess_ToolFailureBecomesToolOutput(t *testing.T) {
	stub := &stubTool{name: "broken_tool", err: fmt.Errorf("backend exploded")}
	registry := tools.NewRegistry()
	registry.Register(stub)

	finalResponse := "Sorry, the tool failed."
	mockClient := &mockLLM{calls: []openai.ChatCompletionResponse{
		toolCallResponse("call_456", "broken_tool", `{}`),
		contentResponse(finalResponse),
	}}

	a := New("kai", mockClient, "gpt-4o-mini", "", registry)

	out, err := a.Process(context.Background(), "Use the broken tool")
	require.NoError(t, err)
	require.Equal(t, finalResponse, out)

	secondReq := mockClient.requests[1]
	last := secondReq.Messages[len(secondReq.Messages)-1]
	require.Contains(t, last.Content, "backend exploded")
}

func TestAgentProcess_UnknownToolReported(t *testing.T) {
	finalResponse := "I cannot do that."
	mockClient := &mockLLM{calls: []openai.ChatCompletionResponse{
		toolCallResponse("call_789", "no_such_tool", `{}`),
		contentResponse(finalResponse),
	}}

	a := New("kai", mockClient, "gpt-4o-mini", "", tools.NewRegistry())

	out, err := a.Process(context.Background(), "Do something impossible")
	require.NoError(t, err)
	require.Equal(t, finalResponse, out)

	secondReq := mockClient.requests[1]
	last := secondReq.Messages[len(secondReq.Messages)-1]
	require.Contains(t, last.Content, "unknown tool no_such_tool")
}

func TestAgentProcess_MaxTurnsExceeded(t *testing.T) {
	stub := &stubTool{name: "looping_tool", output: "again"}
	registry := tools.NewRegistry()
	registry.Register(stub)

	// The model keeps requesting tools and never produces content.
	var calls []openai.ChatCompletionResponse
	for i := 0; i < defaultMaxTurns; i++ {
		calls = append(calls, toolCallResponse(fmt.Sprintf("call_%d", i), "looping_tool", `{}`))
	}
	mockClient := &mockLLM{calls: calls}

	a := New("kai", mockClient, "gpt-4o-mini", "", registry)

	_, err := a.Process(context.Background(), "loop forever")
	require.Error(t, err)
	require.Contains(t, err.Error(), "maximum interaction turns")
}

func TestAgentProcess_PromptContextEchoedEachTurn(t *testing.T) {
	mockClient := &mockLLM{calls: []openai.ChatCompletionResponse{contentResponse("ok")}}

	a := New("kai", mockClient, "gpt-4o-mini", "Base prompt.", nil)
	a.SetPromptContext(func() string { return "KNOWN CALENDAR EVENTS:\n- Team sync" })

	_, err := a.Process(context.Background(), "hola")
	require.NoError(t, err)

	system := mockClient.requests[0].Messages[0]
	require.Equal(t, openai.ChatMessageRoleSystem, system.Role)
	require.Contains(t, system.Content, "Base prompt.")
	require.Contains(t, system.Content, "Team sync")
}
