package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cabanera/booking-assistant/internal/model"
	"github.com/cabanera/booking-assistant/internal/service"
	"github.com/cabanera/booking-assistant/pkg/logger"
)

type fakeRunner struct {
	input  model.ChatInput
	result *model.ChatResult
	err    error
}

func (f *fakeRunner) HandleTurn(ctx context.Context, input model.ChatInput) (*model.ChatResult, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &model.ChatResult{ConversationID: "conv-1", Message: "¡Hola!"}, nil
}

func chatRouter(runner *fakeRunner) http.Handler {
	h := NewChatHandler(runner, &logger.Logger{Logger: zap.NewNop()})
	r := chi.NewRouter()
	r.Post("/api/chat/{venueID}", h.Chat)
	r.Get("/api/webhook/{venueID}", h.VerifyWebhook)
	return r
}

func TestChatDirectShape(t *testing.T) {
	runner := &fakeRunner{}
	srv := httptest.NewServer(chatRouter(runner))
	defer srv.Close()

	body := `{"message":"hola","conversation_id":"11111111-1111-1111-1111-111111111111","contact_type":"instagram","contact_value":"@ana"}`
	resp, err := http.Post(srv.URL+"/api/chat/venue-1", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "venue-1", runner.input.VenueID)
	assert.Equal(t, "hola", runner.input.Message)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", runner.input.ConversationID)
	assert.Equal(t, model.SourceWeb, runner.input.Source)
	assert.Equal(t, "instagram", runner.input.ContactType)
	assert.Equal(t, "@ana", runner.input.ContactValue)
}

func TestChatTwilioShape(t *testing.T) {
	runner := &fakeRunner{}
	srv := httptest.NewServer(chatRouter(runner))
	defer srv.Close()

	body := `{"Body":"¿tienen disponibilidad?","From":"whatsapp:+573001112233","MessageSid":"SM123"}`
	resp, err := http.Post(srv.URL+"/api/chat/venue-1", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "¿tienen disponibilidad?", runner.input.Message)
	assert.Equal(t, "whatsapp:+573001112233", runner.input.Phone)
	assert.Equal(t, "SM123", runner.input.ExternalID)
	assert.Equal(t, model.SourceWebhookWhatsApp, runner.input.Source)
}

func TestChatMetaShape(t *testing.T) {
	runner := &fakeRunner{}
	srv := httptest.NewServer(chatRouter(runner))
	defer srv.Close()

	body := `{
		"entry": [{
			"changes": [{
				"value": {
					"messages": [{"id":"wamid.1","from":"573001112233","text":{"body":"hola, ¿precios?"}}],
					"contacts": [{"profile":{"name":"Ana García"}}]
				}
			}]
		}]
	}`
	resp, err := http.Post(srv.URL+"/api/chat/venue-1", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hola, ¿precios?", runner.input.Message)
	assert.Equal(t, "573001112233", runner.input.Phone)
	assert.Equal(t, "wamid.1", runner.input.ExternalID)
	assert.Equal(t, "Ana García", runner.input.DisplayName)
	assert.Equal(t, model.SourceWebhookMeta, runner.input.Source)
}

func TestChatMissingMessage(t *testing.T) {
	runner := &fakeRunner{}
	srv := httptest.NewServer(chatRouter(runner))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/chat/venue-1", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatVenueNotFound(t *testing.T) {
	runner := &fakeRunner{err: service.ErrVenueNotFound}
	srv := httptest.NewServer(chatRouter(runner))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/chat/missing", "application/json", strings.NewReader(`{"message":"hola"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVerifyWebhook(t *testing.T) {
	srv := httptest.NewServer(chatRouter(&fakeRunner{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/webhook/venue-1?hub.mode=subscribe&hub.verify_token=tok&hub.challenge=12345")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	buf := make([]byte, 16)
	n, _ := resp.Body.Read(buf)
	assert.Equal(t, "12345", string(buf[:n]))

	resp2, err := http.Get(srv.URL + "/api/webhook/venue-1?hub.mode=subscribe")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp2.StatusCode)
}
