package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cabanera/booking-assistant/internal/llm"
	"github.com/cabanera/booking-assistant/internal/model"
	"github.com/cabanera/booking-assistant/internal/store"
	"github.com/cabanera/booking-assistant/pkg/logger"
)

// fakeLLM replays a script of responses and records every call it receives.
type fakeLLM struct {
	responses []*llm.Response
	calls     [][]llm.Message
	requests  []llm.Request
}

func (f *fakeLLM) Validate(code string) error { return nil }

func (f *fakeLLM) CallByCode(ctx context.Context, code string, msgs []llm.Message, req llm.Request) (*llm.Response, error) {
	f.calls = append(f.calls, append([]llm.Message(nil), msgs...))
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		return &llm.Response{Content: "ok", Model: "fake"}, nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

// lastToolResult returns the content of the most recent tool message seen by
// the fake across all calls.
func (f *fakeLLM) lastToolResult(t *testing.T) map[string]any {
	t.Helper()
	for i := len(f.calls) - 1; i >= 0; i-- {
		msgs := f.calls[i]
		for j := len(msgs) - 1; j >= 0; j-- {
			if msgs[j].Role == llm.RoleTool {
				var result map[string]any
				require.NoError(t, json.Unmarshal([]byte(msgs[j].Content), &result))
				return result
			}
		}
	}
	t.Fatal("no tool result observed")
	return nil
}

func newTestService(t *testing.T, fake *fakeLLM) (*ChatService, *store.Store) {
	t.Helper()
	st, err := store.Open(sqlite.Open(":memory:"))
	require.NoError(t, err)

	log := &logger.Logger{Logger: zap.NewNop()}
	svc := NewChatService(st, fake, nil, log)
	return svc, st
}

func seedVenue(t *testing.T, st *store.Store) *model.Venue {
	t.Helper()
	venue := &model.Venue{ID: "venue-1", Name: "Cabaña El Roble", City: "Melgar"}
	require.NoError(t, st.DB().Create(venue).Error)
	return venue
}

func toolCallResponse(name, arguments string) *llm.Response {
	return &llm.Response{
		ToolCalls: []llm.ToolCall{{ID: "call_1", Name: name, Arguments: arguments}},
		Model:     "fake",
		Usage:     llm.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
	}
}

func textResponse(content string) *llm.Response {
	return &llm.Response{
		Content: content,
		Model:   "fake",
		Usage:   llm.Usage{PromptTokens: 150, CompletionTokens: 40, TotalTokens: 190},
	}
}

func TestHandleTurnVenueNotFound(t *testing.T) {
	svc, _ := newTestService(t, &fakeLLM{})

	_, err := svc.HandleTurn(context.Background(), model.ChatInput{
		VenueID: "missing",
		Message: "hola",
		Source:  model.SourceWeb,
	})
	assert.ErrorIs(t, err, ErrVenueNotFound)
}

func TestHandleTurnPlainReply(t *testing.T) {
	fake := &fakeLLM{responses: []*llm.Response{textResponse("¡Hola! ¿En qué puedo ayudarte?")}}
	svc, st := newTestService(t, fake)
	seedVenue(t, st)

	result, err := svc.HandleTurn(context.Background(), model.ChatInput{
		VenueID: "venue-1",
		Message: "hola",
		Source:  model.SourceWeb,
	})
	require.NoError(t, err)
	assert.Equal(t, "¡Hola! ¿En qué puedo ayudarte?", result.Message)
	assert.Equal(t, "anthropic_claude", result.Provider)
	assert.Equal(t, 190, result.TokensUsed)
	assert.NotEmpty(t, result.ConversationID)

	// The first call carries the tool catalog and the system prompt.
	require.Len(t, fake.requests, 1)
	assert.Len(t, fake.requests[0].Tools, 4)
	require.NotEmpty(t, fake.calls[0])
	assert.Equal(t, llm.RoleSystem, fake.calls[0][0].Role)
	assert.Contains(t, fake.calls[0][0].Content, "Cabaña El Roble")

	// Both messages were persisted.
	conv, messages, err := st.GetConversation(context.Background(), result.ConversationID, 20)
	require.NoError(t, err)
	assert.Equal(t, "venue-1", conv.VenueID)
	require.Len(t, messages, 2)
	assert.Equal(t, model.RoleUser, messages[0].Role)
	assert.Equal(t, model.RoleAssistant, messages[1].Role)
	assert.Empty(t, messages[1].Tool)
}

func TestHandleTurnReusesConversation(t *testing.T) {
	fake := &fakeLLM{responses: []*llm.Response{
		textResponse("¡Hola!"),
		textResponse("Claro, con gusto."),
	}}
	svc, st := newTestService(t, fake)
	seedVenue(t, st)

	first, err := svc.HandleTurn(context.Background(), model.ChatInput{
		VenueID: "venue-1", Message: "hola", Source: model.SourceWeb,
	})
	require.NoError(t, err)

	second, err := svc.HandleTurn(context.Background(), model.ChatInput{
		VenueID:        "venue-1",
		Message:        "¿tienen planes?",
		ConversationID: first.ConversationID,
		Source:         model.SourceWeb,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	// The second turn replays the first exchange as history.
	secondCall := fake.calls[1]
	require.GreaterOrEqual(t, len(secondCall), 4)
	assert.Equal(t, "hola", secondCall[1].Content)
	assert.Equal(t, "¡Hola!", secondCall[2].Content)

	_, messages, err := st.GetConversation(context.Background(), first.ConversationID, 20)
	require.NoError(t, err)
	assert.Len(t, messages, 4)
}

func TestHandleTurnMalformedConversationIDCreatesNew(t *testing.T) {
	fake := &fakeLLM{responses: []*llm.Response{textResponse("¡Hola!")}}
	svc, st := newTestService(t, fake)
	seedVenue(t, st)

	result, err := svc.HandleTurn(context.Background(), model.ChatInput{
		VenueID:        "venue-1",
		Message:        "hola",
		ConversationID: "not-a-uuid",
		Source:         model.SourceWeb,
	})
	require.NoError(t, err)
	assert.NotEqual(t, "not-a-uuid", result.ConversationID)

	_, _, err = st.GetConversation(context.Background(), result.ConversationID, 20)
	assert.NoError(t, err)
}

func TestHandleTurnAvailabilityScenario(t *testing.T) {
	fake := &fakeLLM{responses: []*llm.Response{
		toolCallResponse(ToolCheckAvailability, `{"check_in":"2025-03-01","adults":2}`),
		textResponse("La cabaña no está disponible ese día, pero el domingo 2 de marzo sí."),
	}}
	svc, st := newTestService(t, fake)
	venue := seedVenue(t, st)
	svc.now = func() time.Time { return time.Date(2025, 2, 20, 10, 0, 0, 0, time.UTC) }

	require.NoError(t, st.DB().Create(&model.Plan{
		ID: "plan-1", VenueID: venue.ID, Name: "Plan Pasadía",
		AdultPrice: 100000, ChildPrice: 50000, MinGuests: 1, MaxCapacity: 10, IsActive: true,
	}).Error)
	require.NoError(t, st.DB().Create(&model.Reservation{
		ID: "res-1", VenueID: venue.ID,
		Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}).Error)

	result, err := svc.HandleTurn(context.Background(), model.ChatInput{
		VenueID: "venue-1",
		Message: "¿Tienen disponibilidad el 1 de marzo de 2025 para 2 adultos?",
		Source:  model.SourceWeb,
	})
	require.NoError(t, err)

	toolResult := fake.lastToolResult(t)
	assert.Equal(t, false, toolResult["is_available"])
	assert.Equal(t, float64(2), toolResult["total_guests"])

	dates, ok := toolResult["next_available_dates"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, dates)
	first := dates[0].(map[string]any)
	assert.Equal(t, "2025-03-02", first["date"])
	assert.Equal(t, "domingo", first["day_of_week"])

	suitable, ok := toolResult["suitable_plans"].([]any)
	require.True(t, ok)
	require.Len(t, suitable, 1)

	// The follow-up call carries no tool catalog.
	require.Len(t, fake.requests, 2)
	assert.Empty(t, fake.requests[1].Tools)

	// The assistant message records the structured tool column.
	_, messages, err := st.GetConversation(context.Background(), result.ConversationID, 20)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, ToolCheckAvailability, messages[1].Tool)
	assert.Equal(t, 190, messages[1].TokensUsed)
}

func TestHandleTurnAvailabilityRateLimit(t *testing.T) {
	fake := &fakeLLM{responses: []*llm.Response{
		toolCallResponse(ToolCheckAvailability, `{"check_in":"2099-06-01","adults":2}`),
		textResponse("Hemos alcanzado el límite de consultas por ahora."),
	}}
	svc, st := newTestService(t, fake)
	seedVenue(t, st)

	conv := &model.Conversation{VenueID: "venue-1", Source: model.SourceWeb}
	require.NoError(t, st.CreateConversation(context.Background(), conv))
	for i := 0; i < 5; i++ {
		require.NoError(t, st.AppendMessage(context.Background(), &model.ChatMessage{
			ConversationID: conv.ID,
			Role:           model.RoleAssistant,
			Content:        "Déjame verificar...",
			Tool:           ToolCheckAvailability,
			CreatedAt:      time.Now().UTC().Add(-time.Duration(i) * time.Minute),
		}))
	}

	result, err := svc.HandleTurn(context.Background(), model.ChatInput{
		VenueID:        "venue-1",
		Message:        "¿y el primero de junio?",
		ConversationID: conv.ID,
		Source:         model.SourceWeb,
	})
	require.NoError(t, err)

	toolResult := fake.lastToolResult(t)
	assert.Equal(t, true, toolResult["error"])
	assert.Contains(t, toolResult["message"], "límite de consultas de disponibilidad")

	// A rate-limited check does not count as a tool use.
	_, messages, err := st.GetConversation(context.Background(), result.ConversationID, 20)
	require.NoError(t, err)
	last := messages[len(messages)-1]
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.Empty(t, last.Tool)
}

func TestHandleTurnFiveChecksStillAllowed(t *testing.T) {
	fake := &fakeLLM{responses: []*llm.Response{
		toolCallResponse(ToolCheckAvailability, `{"check_in":"2099-06-01","adults":2}`),
		textResponse("Sí hay disponibilidad."),
	}}
	svc, st := newTestService(t, fake)
	seedVenue(t, st)

	conv := &model.Conversation{VenueID: "venue-1", Source: model.SourceWeb}
	require.NoError(t, st.CreateConversation(context.Background(), conv))
	for i := 0; i < 4; i++ {
		require.NoError(t, st.AppendMessage(context.Background(), &model.ChatMessage{
			ConversationID: conv.ID,
			Role:           model.RoleAssistant,
			Content:        "Déjame verificar...",
			Tool:           ToolCheckAvailability,
			CreatedAt:      time.Now().UTC().Add(-time.Duration(i) * time.Minute),
		}))
	}

	_, err := svc.HandleTurn(context.Background(), model.ChatInput{
		VenueID:        "venue-1",
		Message:        "¿y el primero de junio?",
		ConversationID: conv.ID,
		Source:         model.SourceWeb,
	})
	require.NoError(t, err)

	toolResult := fake.lastToolResult(t)
	assert.Equal(t, true, toolResult["is_available"])
	assert.Nil(t, toolResult["error"])
}

func TestHandleTurnPastDateRejected(t *testing.T) {
	fake := &fakeLLM{responses: []*llm.Response{
		toolCallResponse(ToolCheckAvailability, `{"check_in":"2020-01-01","adults":2}`),
		textResponse("Esa fecha ya pasó."),
	}}
	svc, st := newTestService(t, fake)
	seedVenue(t, st)
	svc.now = func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) }

	result, err := svc.HandleTurn(context.Background(), model.ChatInput{
		VenueID: "venue-1",
		Message: "¿hay disponibilidad el 1 de enero de 2020?",
		Source:  model.SourceWeb,
	})
	require.NoError(t, err)

	toolResult := fake.lastToolResult(t)
	assert.Equal(t, true, toolResult["error"])
	assert.Contains(t, toolResult["message"], "La fecha de llegada está en el pasado")
	assert.Equal(t, "2025-03-15", toolResult["today"])

	// The calendar was never consulted; the failed check is not counted.
	_, messages, err := st.GetConversation(context.Background(), result.ConversationID, 20)
	require.NoError(t, err)
	assert.Empty(t, messages[len(messages)-1].Tool)
}

func TestHandleTurnCreateEstimate(t *testing.T) {
	fake := &fakeLLM{responses: []*llm.Response{
		toolCallResponse(ToolCreateEstimate,
			`{"customer_name":"Ana García","plan_name":"pasadía","check_in":"2099-06-01","adults":2,"children":1}`),
		textResponse("¡Listo! Tu cotización quedó registrada."),
	}}
	svc, st := newTestService(t, fake)
	venue := seedVenue(t, st)

	require.NoError(t, st.DB().Create(&model.Plan{
		ID: "plan-1", VenueID: venue.ID, Name: "Plan Pasadía Familiar",
		AdultPrice: 100000, ChildPrice: 50000, MinGuests: 1, MaxCapacity: 10, IsActive: true,
	}).Error)

	result, err := svc.HandleTurn(context.Background(), model.ChatInput{
		VenueID:      "venue-1",
		Message:      "quiero reservar",
		Source:       model.SourceWeb,
		ContactType:  "whatsapp",
		ContactValue: "+573001112233",
	})
	require.NoError(t, err)

	toolResult := fake.lastToolResult(t)
	assert.Equal(t, true, toolResult["success"])
	assert.Equal(t, "Plan Pasadía Familiar", toolResult["plan"])
	assert.Equal(t, float64(250000), toolResult["calculated_price"])
	assert.Contains(t, toolResult["message"], "Cotización creada exitosamente")

	var est model.Estimate
	require.NoError(t, st.DB().First(&est, "venue_id = ?", venue.ID).Error)
	assert.Equal(t, "Ana García", est.CustomerName)
	require.NotNil(t, est.PlanID)
	assert.Equal(t, "plan-1", *est.PlanID)
	require.NotNil(t, est.CalculatedPrice)
	assert.Equal(t, float64(250000), *est.CalculatedPrice)
	assert.Equal(t, model.EstimateStatusPending, est.Status)
	assert.Equal(t, model.EstimateCreatedByAssistant, est.CreatedBy)
	require.NotNil(t, est.ConversationID)
	assert.Equal(t, result.ConversationID, *est.ConversationID)
	assert.Equal(t, "whatsapp", est.ContactType)
	assert.Equal(t, "+573001112233", est.ContactValue)
}

func TestHandleTurnUnmatchedPlanLeavesPriceNil(t *testing.T) {
	fake := &fakeLLM{responses: []*llm.Response{
		toolCallResponse(ToolCreateEstimate,
			`{"customer_name":"Luis","plan_name":"plan dorado","check_in":"2099-06-01","adults":2}`),
		textResponse("Registré tu solicitud; el equipo confirmará el plan."),
	}}
	svc, st := newTestService(t, fake)
	venue := seedVenue(t, st)

	require.NoError(t, st.DB().Create(&model.Plan{
		ID: "plan-1", VenueID: venue.ID, Name: "Plan Pasadía",
		AdultPrice: 100000, IsActive: true, MinGuests: 1, MaxCapacity: 10,
	}).Error)

	_, err := svc.HandleTurn(context.Background(), model.ChatInput{
		VenueID: "venue-1", Message: "reserva el plan dorado", Source: model.SourceWeb,
	})
	require.NoError(t, err)

	toolResult := fake.lastToolResult(t)
	assert.Equal(t, true, toolResult["success"])
	assert.Equal(t, "plan dorado", toolResult["plan"])
	assert.Nil(t, toolResult["calculated_price"])

	var est model.Estimate
	require.NoError(t, st.DB().First(&est, "venue_id = ?", venue.ID).Error)
	assert.Nil(t, est.PlanID)
	assert.Nil(t, est.CalculatedPrice)
}

func TestMatchPlanBidirectional(t *testing.T) {
	plans := []model.Plan{
		{ID: "p1", Name: "Plan Pasadía Familiar"},
		{ID: "p2", Name: "Hospedaje"},
	}

	assert.Equal(t, "p1", matchPlan(plans, "pasadía").ID)
	assert.Equal(t, "p1", matchPlan(plans, "quiero el Plan Pasadía Familiar completo").ID)
	assert.Equal(t, "p2", matchPlan(plans, "HOSPEDAJE").ID)
	assert.Nil(t, matchPlan(plans, "camping"))
	assert.Nil(t, matchPlan(plans, ""))
}
