// Package handler provides HTTP handlers for the API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cabanera/booking-assistant/internal/llm"
	"github.com/cabanera/booking-assistant/internal/middleware"
	"github.com/cabanera/booking-assistant/internal/model"
	"github.com/cabanera/booking-assistant/internal/service"
	"github.com/cabanera/booking-assistant/pkg/logger"
)

// ChatRunner runs one assistant turn.
type ChatRunner interface {
	HandleTurn(ctx context.Context, input model.ChatInput) (*model.ChatResult, error)
}

// ChatHandler handles the public chat and webhook endpoints.
type ChatHandler struct {
	service ChatRunner
	logger  *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc ChatRunner, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		service: svc,
		logger:  log,
	}
}

// chatRequest accepts three inbound shapes on one endpoint: the web widget
// body, the Twilio webhook body, and the Meta/WhatsApp webhook envelope.
type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	Source         string `json:"source"`
	ContactType    string `json:"contact_type"`
	ContactValue   string `json:"contact_value"`

	// Twilio webhook fields
	TwilioBody string `json:"Body"`
	TwilioFrom string `json:"From"`
	MessageSid string `json:"MessageSid"`

	// Meta/WhatsApp webhook envelope
	Entry []metaEntry `json:"entry"`
}

type metaEntry struct {
	Changes []metaChange `json:"changes"`
}

type metaChange struct {
	Value metaValue `json:"value"`
}

type metaValue struct {
	Messages []metaMessage `json:"messages"`
	Contacts []metaContact `json:"contacts"`
}

type metaMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Body string `json:"body"`
}

type metaContact struct {
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// buildChatInput normalizes whichever shape arrived into one ChatInput.
func buildChatInput(venueID string, req *chatRequest) model.ChatInput {
	input := model.ChatInput{
		VenueID:        venueID,
		Message:        req.Message,
		ConversationID: req.ConversationID,
		Source:         req.Source,
		ContactType:    req.ContactType,
		ContactValue:   req.ContactValue,
	}
	if input.Source == "" {
		input.Source = model.SourceWeb
	}

	if req.TwilioBody != "" && req.TwilioFrom != "" {
		input.Message = req.TwilioBody
		input.Phone = req.TwilioFrom
		input.ExternalID = req.MessageSid
		input.Source = model.SourceWebhookWhatsApp
	}

	if len(req.Entry) > 0 && len(req.Entry[0].Changes) > 0 {
		value := req.Entry[0].Changes[0].Value
		if len(value.Messages) > 0 {
			msg := value.Messages[0]
			input.Message = msg.Body
			if msg.Text != nil && msg.Text.Body != "" {
				input.Message = msg.Text.Body
			}
			input.Phone = msg.From
			input.ExternalID = msg.ID
			input.Source = model.SourceWebhookMeta
			if len(value.Contacts) > 0 {
				input.DisplayName = value.Contacts[0].Profile.Name
			}
		}
	}

	return input
}

// Chat handles POST /api/chat/{venueID}
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	venueID := chi.URLParam(r, "venueID")
	if err := middleware.ValidateVenueID(venueID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := buildChatInput(venueID, &req)
	if err := middleware.ValidateMessageContent(input.Message); err != nil {
		writeError(w, http.StatusBadRequest, "Se requiere un mensaje")
		return
	}

	result, err := h.service.HandleTurn(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrVenueNotFound):
			writeError(w, http.StatusNotFound, "Cabaña no encontrada")
		case errors.Is(err, llm.ErrProviderNotConfigured),
			errors.Is(err, llm.ErrCredentialMissing):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("chat turn failed",
				zap.String("venue_id", venueID),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "failed to process message")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// VerifyWebhook handles GET /api/webhook/{venueID}, the Meta subscription
// handshake. Any non-empty verify token is accepted and the challenge echoed.
func (h *ChatHandler) VerifyWebhook(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token != "" {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}
	w.WriteHeader(http.StatusForbidden)
}
