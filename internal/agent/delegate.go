package agent

import (
	"github.com/joacortez/kai-go/internal/config"
	"github.com/joacortez/kai-go/internal/llm"
	"github.com/joacortez/kai-go/pkg/tools"
)

const delegatePrompt = `You are KAI's Calendar Management Agent, responsible for handling all calendar-related tasks.

CAPABILITIES:
1. Create new calendar events with a title, start and end times, and optionally a description and location
2. List upcoming events
3. Update existing events (only the fields you supply change)
4. Delete events

PROTOCOL:
- ALWAYS call get_current_date first, before interpreting any date in the request. The host clock is unreliable; only get_current_date is.
- Convert user-friendly dates ("tomorrow at 3pm") into ISO-8601 timestamps based on the date returned by get_current_date.
- If updating or deleting events, list events first to obtain their ids if the request does not include one.
- When listing events, format them in a readable way for the user.
- If a tool reports a failure, relay the failure to the user; do not retry.

RESPONSE FORMAT:
1. Confirm the action taken
2. Provide the result, including the event link when one is available, or the error message
3. Suggest next steps if applicable`

// NewDelegate builds the calendar delegate: an agent holding exactly the
// calendar capability set. It uses llm.delegate_model when configured, else
// the coordinator's model.
func NewDelegate(llmClient llm.Client, cfg config.LLMConfig, toolkit *tools.CalendarToolkit) *Agent {
	registry := tools.NewRegistry()
	toolkit.Register(registry)

	model := cfg.DelegateModel
	if model == "" {
		model = cfg.Model
	}

	return New("calendar", llmClient, model, delegatePrompt, registry)
}
