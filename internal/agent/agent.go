package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/qmuntal/stateless"
	"github.com/sashabaranov/go-openai"

	"github.com/joacortez/kai-go/internal/llm"
	"github.com/joacortez/kai-go/internal/logger"
	"github.com/joacortez/kai-go/pkg/tools"
)

// FSM states
type FSMState stateless.State

var (
	StateReadyToCallLLM FSMState = "ReadyToCallLLM"
	StateExecutingTools FSMState = "ExecutingTools"
	StateDone           FSMState = "Done"  // Terminal: successful completion
	StateError          FSMState = "Error" // Terminal: error state
)

// FSM triggers
type FSMTrigger stateless.Trigger

var (
	TriggerProcessInput            FSMTrigger = "ProcessInput"
	TriggerLLMRespondedWithContent FSMTrigger = "LLMRespondedWithContent"
	TriggerLLMRequestedTools       FSMTrigger = "LLMRequestedTools"
	TriggerToolsExecutionCompleted FSMTrigger = "ToolsExecutionCompleted"
	TriggerErrorOccurred           FSMTrigger = "ErrorOccurred"
)

const defaultMaxTurns = 5

// Agent runs a single request/response turn against the LLM, executing the
// tools the model asks for until it produces plain content. Both the
// coordinator and the calendar delegate are Agents; they differ only in
// prompt and capability set.
type Agent struct {
	name       string
	llmClient  llm.Client
	model      string
	basePrompt string
	registry   *tools.Registry
	maxTurns   int

	// promptContext, when set, is appended to the system prompt on every
	// turn. The coordinator uses it to echo session state.
	promptContext func() string
}

// New creates an agent with the given prompt and capability set.
func New(name string, llmClient llm.Client, model, prompt string, registry *tools.Registry) *Agent {
	if registry == nil {
		registry = tools.NewRegistry()
	}
	return &Agent{
		name:       name,
		llmClient:  llmClient,
		model:      model,
		basePrompt: prompt,
		registry:   registry,
		maxTurns:   defaultMaxTurns,
	}
}

// SetPromptContext installs a per-turn prompt supplement.
func (a *Agent) SetPromptContext(fn func() string) {
	a.promptContext = fn
}

// Registry returns the agent's capability set.
func (a *Agent) Registry() *tools.Registry {
	return a.registry
}

// systemPrompt aggregates the base prompt with the per-turn context block.
func (a *Agent) systemPrompt() string {
	var b strings.Builder
	b.WriteString(a.basePrompt)
	if a.promptContext != nil {
		if extra := a.promptContext(); extra != "" {
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(extra)
		}
	}
	return b.String()
}

// llmTools converts the registry into the OpenAI tool declaration format.
func (a *Agent) llmTools() []openai.Tool {
	declared := a.registry.List()
	out := make([]openai.Tool, 0, len(declared))
	for _, t := range declared {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return out
}

// Process runs one request through the agent's FSM: call the LLM, execute any
// requested tools, feed the results back, and return the final content.
func (a *Agent) Process(ctx context.Context, request string) (string, error) {
	type fsmContext struct {
		messages     []openai.ChatCompletionMessage
		llmResponse  *openai.ChatCompletionResponse
		finalContent string
		lastError    error
		currentTurn  int
	}

	messages := []openai.ChatCompletionMessage{}
	if prompt := a.systemPrompt(); prompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: prompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: request,
	})

	fsmCtx := &fsmContext{messages: messages}
	llmTools := a.llmTools()

	fsm := stateless.NewStateMachine(StateReadyToCallLLM)

	fsm.Configure(StateReadyToCallLLM).
		PermitReentry(TriggerProcessInput).
		OnEntry(func(ctx context.Context, args ...any) error {
			if fsmCtx.currentTurn >= a.maxTurns {
				logger.L.Warn("max interaction turns reached", "agent", a.name, "maxTurns", a.maxTurns)
				fsmCtx.lastError = errors.New("exceeded maximum interaction turns")
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}
			fsmCtx.currentTurn++
			logger.L.Debug("calling LLM", "agent", a.name, "turn", fsmCtx.currentTurn)

			llmResp, err := a.llmClient.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:    a.model,
					Messages: fsmCtx.messages,
					Tools:    llmTools,
				},
			)
			if err != nil {
				logger.L.Error("LLM call failed", "agent", a.name, "error", err)
				fsmCtx.lastError = err
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}
			fsmCtx.llmResponse = &llmResp

			if len(llmResp.Choices) > 0 && len(llmResp.Choices[0].Message.ToolCalls) > 0 {
				return fsm.FireCtx(ctx, TriggerLLMRequestedTools)
			}
			return fsm.FireCtx(ctx, TriggerLLMRespondedWithContent)
		}).
		Permit(TriggerLLMRequestedTools, StateExecutingTools).
		Permit(TriggerLLMRespondedWithContent, StateDone).
		Permit(TriggerErrorOccurred, StateError)

	fsm.Configure(StateExecutingTools).
		OnEntry(func(ctx context.Context, args ...any) error {
			if fsmCtx.llmResponse == nil || len(fsmCtx.llmResponse.Choices) == 0 {
				fsmCtx.lastError = errors.New("cannot execute tools, no LLM response available")
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}

			llmMessage := fsmCtx.llmResponse.Choices[0].Message
			fsmCtx.messages = append(fsmCtx.messages, llmMessage)

			for _, toolCall := range llmMessage.ToolCalls {
				output := a.executeTool(ctx, toolCall.Function.Name, toolCall.Function.Arguments)
				fsmCtx.messages = append(fsmCtx.messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    output,
					ToolCallID: toolCall.ID,
					Name:       toolCall.Function.Name,
				})
			}
			return fsm.FireCtx(ctx, TriggerToolsExecutionCompleted)
		}).
		Permit(TriggerToolsExecutionCompleted, StateReadyToCallLLM).
		Permit(TriggerErrorOccurred, StateError)

	fsm.Configure(StateDone).
		OnEntry(func(ctx context.Context, args ...any) error {
			if fsmCtx.llmResponse != nil && len(fsmCtx.llmResponse.Choices) > 0 {
				fsmCtx.finalContent = fsmCtx.llmResponse.Choices[0].Message.Content
			} else if fsmCtx.lastError == nil {
				fsmCtx.lastError = errors.New("LLM returned no choices")
			}
			return nil
		})

	fsm.Configure(StateError).
		OnEntry(func(ctx context.Context, args ...any) error {
			if fsmCtx.lastError == nil {
				fsmCtx.lastError = errors.New("reached error state without a specific error")
			}
			return nil
		})

	// Re-entering the initial state runs its OnEntry, which drives the whole
	// conversation synchronously through FireCtx calls.
	if err := fsm.FireCtx(ctx, TriggerProcessInput); err != nil {
		if fsmCtx.lastError != nil {
			return "", fsmCtx.lastError
		}
		return "", fmt.Errorf("FSM fire error: %w", err)
	}

	currentState, err := fsm.State(ctx)
	if err != nil {
		return "", fmt.Errorf("FSM internal error: %w", err)
	}

	switch currentState {
	case StateDone:
		if fsmCtx.lastError != nil && fsmCtx.finalContent == "" {
			return "", fsmCtx.lastError
		}
		return fsmCtx.finalContent, nil
	case StateError:
		return "", fsmCtx.lastError
	default:
		if fsmCtx.lastError != nil {
			return "", fsmCtx.lastError
		}
		return "", fmt.Errorf("FSM ended in an unexpected state: %v", currentState)
	}
}

// executeTool dispatches one tool call. Failures become tool output so the
// model can react to them; they never abort the turn.
func (a *Agent) executeTool(ctx context.Context, name, rawArgs string) string {
	tool, err := a.registry.Get(name)
	if err != nil {
		logger.L.Warn("LLM requested unknown tool", "agent", a.name, "tool", name)
		return "Error: unknown tool " + name
	}

	var args map[string]any
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			logger.L.Error("failed to unmarshal tool arguments", "agent", a.name, "tool", name, "error", err)
			return "Error: could not parse arguments for tool " + name
		}
	}

	logger.L.Debug("executing tool", "agent", a.name, "tool", name, "arguments", args)
	output, err := tool.Call(ctx, args)
	if err != nil {
		logger.L.Warn("tool execution failed", "agent", a.name, "tool", name, "error", err)
		return fmt.Sprintf("Error executing %s: %v", name, err)
	}
	return output
}
