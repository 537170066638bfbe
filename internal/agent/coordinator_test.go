package agent

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/joacortez/kai-go/internal/config"
	"github.com/joacortez/kai-go/internal/gcal"
	"github.com/joacortez/kai-go/internal/history"
	"github.com/joacortez/kai-go/internal/session"
)

func testConfig() *config.Config {
	return &config.Config{
		LLM:      config.LLMConfig{Model: "gpt-4o-mini"},
		Calendar: config.CalendarConfig{Timezone: "America/Toronto"},
	}
}

func testStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.NewStore(filepath.Join(t.TempDir(), "kai.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCoordinator_DelegatesCalendarRequest(t *testing.T) {
	delegateReply := "Listo, agendé la reunión con el equipo."
	delegateLLM := &mockLLM{calls: []openai.ChatCompletionResponse{contentResponse(delegateReply)}}
	delegate := New("calendar", delegateLLM, "gpt-4o-mini", delegatePrompt, nil)

	finalReply := "Joa, tu reunión quedó agendada."
	coordinatorLLM := &mockLLM{calls: []openai.ChatCompletionResponse{
		toolCallResponse("call_1", "delegate_calendar_task", `{"request": "agendar reunión mañana a las 10"}`),
		contentResponse(finalReply),
	}}

	state := session.NewState("test-session")
	coordinator := NewCoordinator(coordinatorLLM, testConfig(), delegate, state, testStore(t), nil)

	out, err := coordinator.Respond(context.Background(), "agendame una reunión mañana a las 10")
	require.NoError(t, err)
	require.Equal(t, finalReply, out)

	// The delegate must have received the request augmented with date context.
	require.Len(t, delegateLLM.requests, 1)
	userMsg := delegateLLM.requests[0].Messages[len(delegateLLM.requests[0].Messages)-1]
	require.Contains(t, userMsg.Content, "Today is")
	require.Contains(t, userMsg.Content, "agendar reunión mañana a las 10")

	// The coordinator must have seen the delegate's reply as tool output.
	secondReq := coordinatorLLM.requests[1]
	last := secondReq.Messages[len(secondReq.Messages)-1]
	require.Equal(t, openai.ChatMessageRoleTool, last.Role)
	require.Equal(t, delegateReply, last.Content)
}

func TestCoordinator_DegradedModeWithoutDelegate(t *testing.T) {
	reply := "Joa, ahora mismo no tengo acceso al calendario."
	coordinatorLLM := &mockLLM{calls: []openai.ChatCompletionResponse{contentResponse(reply)}}

	state := session.NewState("degraded-session")
	coordinator := NewCoordinator(coordinatorLLM, testConfig(), nil, state, testStore(t), nil)

	out, err := coordinator.Respond(context.Background(), "agendame algo")
	require.NoError(t, err)
	require.Equal(t, reply, out)
	require.Empty(t, coordinatorLLM.requests[0].Tools)
}

func TestCoordinator_PersistsConversationAndEvents(t *testing.T) {
	coordinatorLLM := &mockLLM{calls: []openai.ChatCompletionResponse{contentResponse("anotado")}}

	state := session.NewState("persist-session")
	state.RecordEvents([]gcal.Event{{ID: "ev1", Title: "Team sync"}})
	store := testStore(t)
	coordinator := NewCoordinator(coordinatorLLM, testConfig(), nil, state, store, nil)

	_, err := coordinator.Respond(context.Background(), "hola")
	require.NoError(t, err)

	msgs := store.Messages("persist-session")
	require.Len(t, msgs, 2)
	require.Equal(t, "user", msgs[0].Role)
	require.Equal(t, "hola", msgs[0].Content)
	require.Equal(t, "assistant", msgs[1].Role)

	events := store.Events("persist-session")
	require.Len(t, events, 1)
	require.Equal(t, "Team sync", events[0].Title)
}

func TestCoordinator_SessionStateEchoedIntoPrompt(t *testing.T) {
	coordinatorLLM := &mockLLM{calls: []openai.ChatCompletionResponse{contentResponse("ok")}}

	state := session.NewState("echo-session")
	state.RecordEvents([]gcal.Event{{ID: "ev1", Title: "Dentist"}})
	coordinator := NewCoordinator(coordinatorLLM, testConfig(), nil, state, testStore(t), nil)

	_, err := coordinator.Respond(context.Background(), "qué tengo esta semana?")
	require.NoError(t, err)

	system := coordinatorLLM.requests[0].Messages[0]
	require.Equal(t, openai.ChatMessageRoleSystem, system.Role)
	require.Contains(t, system.Content, "KNOWN CALENDAR EVENTS")
	require.Contains(t, system.Content, "Dentist")
}
