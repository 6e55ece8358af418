package handler

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"producer-service/internal/model"
)

// MessagesHandler is a local stand-in for the API's POST /api/messages.
// It validates and acknowledges messages without storing them.
type MessagesHandler struct {
	validate *validator.Validate
	nextID   atomic.Int64
	now      func() time.Time
}

type createdResponse struct {
	Message string        `json:"message"`
	Data    storedMessage `json:"data"`
}

type storedMessage struct {
	ID          int64  `json:"id"`
	Datetime    string `json:"datetime"`
	Environment string `json:"environment"`
	CreatedAt   string `json:"created_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewMessagesHandler(now func() time.Time) *MessagesHandler {
	return &MessagesHandler{
		validate: validator.New(),
		now:      now,
	}
}

func (h *MessagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var msg model.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	if msg.Datetime == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "datetime is required"})
		return
	}
	if msg.Environment == "" {
		msg.Environment = model.DefaultEnvironment
	}
	if err := h.validate.Struct(msg); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	stored := storedMessage{
		ID:          h.nextID.Add(1),
		Datetime:    msg.Datetime,
		Environment: msg.Environment,
		CreatedAt:   h.now().UTC().Format(time.RFC3339),
	}

	log.Info().
		Int64("id", stored.ID).
		Str("datetime", msg.Datetime).
		Str("environment", msg.Environment).
		Str("user_agent", r.UserAgent()).
		Msg("Message received")

	writeJSON(w, http.StatusCreated, createdResponse{
		Message: "Message stored successfully",
		Data:    stored,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}
