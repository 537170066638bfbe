package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/joacortez/kai-go/internal/config"
	"github.com/joacortez/kai-go/internal/history"
	"github.com/joacortez/kai-go/internal/llm"
	"github.com/joacortez/kai-go/internal/logger"
	"github.com/joacortez/kai-go/internal/session"
	"github.com/joacortez/kai-go/pkg/tools"
)

const coordinatorPrompt = `You are KAI, Joa's personal AI assistant manager. Your role is to coordinate and manage different aspects of Joa's life through specialized sub-agents.

CORE CAPABILITIES:
1. Calendar Management: create, edit, retrieve and delete calendar events, schedule appointments and meetings.
2. General assistance: answer questions and help with anything that does not need a specialized agent.

PERSONALITY & INTERACTION STYLE:
- Address the user as "Joa" consistently
- Always respond in Spanish, using an Argentinian dialect; keep untranslatable words in English
- Maintain a witty and straightforward communication style
- Be proactive in suggesting relevant actions

TASK DELEGATION PROTOCOL:
1. Assess whether the request concerns the calendar
2. If it does, call delegate_calendar_task with the full request, keeping every detail the user gave
3. Otherwise answer directly
4. Relay the delegate's outcome back to Joa, including links and error messages

RESPONSE FORMAT:
1. Start with a brief acknowledgment
2. Clearly state your action, naming the delegate when you used one
3. End with a clear next step or question if needed`

// Coordinator is the top-level router: it answers directly or forwards
// calendar work to the delegate, and it owns the session lifecycle.
type Coordinator struct {
	agent *Agent
	state *session.State
	store *history.Store
}

// NewCoordinator wires the coordinator agent. delegate may be nil, which
// yields the degraded mode without calendar capability. extraTools holds
// tools discovered from configured MCP servers.
func NewCoordinator(llmClient llm.Client, cfg *config.Config, delegate *Agent, state *session.State, store *history.Store, extraTools []tools.Tool) *Coordinator {
	registry := tools.NewRegistry()

	if delegate != nil {
		loc, err := time.LoadLocation(cfg.Calendar.Timezone)
		if err != nil {
			loc = time.Local
		}
		registry.Register(&delegationTool{delegate: delegate, loc: loc})
	} else {
		logger.L.Warn("coordinator running without calendar delegation")
	}

	for _, t := range extraTools {
		registry.Register(t)
	}

	a := New("kai", llmClient, cfg.LLM.Model, coordinatorPrompt, registry)
	a.SetPromptContext(state.PromptContext)

	return &Coordinator{agent: a, state: state, store: store}
}

// State returns the coordinator's session state.
func (c *Coordinator) State() *session.State {
	return c.state
}

// Respond handles one user utterance: persist it, run the agent, persist the
// reply and the updated known-event snapshot.
func (c *Coordinator) Respond(ctx context.Context, input string) (string, error) {
	c.store.SaveMessage(history.Message{
		SessionID: c.state.SessionID(),
		Role:      "user",
		Content:   input,
		CreatedAt: time.Now(),
	})

	reply, err := c.agent.Process(ctx, input)
	if err != nil {
		return "", err
	}

	c.store.SaveMessage(history.Message{
		SessionID: c.state.SessionID(),
		Role:      "assistant",
		Content:   reply,
		CreatedAt: time.Now(),
	})
	c.store.SaveEvents(c.state.SessionID(), c.state.Snapshot())

	return reply, nil
}

// delegationTool forwards a calendar request to the delegate, prefixed with
// the anchored date and timezone so the delegate never trusts the host clock.
type delegationTool struct {
	delegate *Agent
	loc      *time.Location
}

func (t *delegationTool) Name() string { return "delegate_calendar_task" }

func (t *delegationTool) Description() string {
	return "Delegates a calendar-related request to the Calendar Management Agent, which can " +
		"create, list, update and delete events in Joa's Google Calendar. Pass the user's " +
		"request verbatim, including every date, time, title and person mentioned."
}

func (t *delegationTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"request": {"type": "string", "description": "The calendar request, with all details the user gave"}
		},
		"required": ["request"]
	}`)
}

func (t *delegationTool) Call(ctx context.Context, args map[string]any) (string, error) {
	request, _ := args["request"].(string)
	if request == "" {
		return "", fmt.Errorf("request is required")
	}

	info := tools.CurrentDate(t.loc)
	augmented := fmt.Sprintf("Today is %s, %s (timezone %s). %s",
		info.Weekday, info.Date, info.Timezone, request)

	logger.L.Info("delegating to calendar agent", "request", request)
	return t.delegate.Process(ctx, augmented)
}
