package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cabanera/booking-assistant/internal/middleware"
	"github.com/cabanera/booking-assistant/internal/store"
	"github.com/cabanera/booking-assistant/pkg/logger"
)

// ConversationHandler serves the admin conversation inspection endpoints.
type ConversationHandler struct {
	store  *store.Store
	logger *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(st *store.Store, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		store:  st,
		logger: log,
	}
}

// List handles GET /api/chat/{venueID}/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	venueID := chi.URLParam(r, "venueID")
	if err := middleware.ValidateVenueID(venueID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conversations, err := h.store.ListConversations(r.Context(), venueID, 50)
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	writeJSON(w, http.StatusOK, conversations)
}

// Get handles GET /api/chat/conversation/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.store.GetConversationWithMessages(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to load conversation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}
