package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/adi-253/duochat/internal/apperr"
	"github.com/adi-253/duochat/internal/logging"
	"github.com/adi-253/duochat/internal/models"
	"github.com/adi-253/duochat/internal/services"
)

// MessageHandler contains HTTP handlers for message operations.
// Provides a non-socket fallback for history, sending and editing, plus
// personal notes.
type MessageHandler struct {
	chat  *services.ChatService
	notes *services.NoteService
	log   *zap.Logger
}

// NewMessageHandler creates a new MessageHandler instance.
func NewMessageHandler(log *zap.Logger, chat *services.ChatService, notes *services.NoteService) *MessageHandler {
	return &MessageHandler{chat: chat, notes: notes, log: logging.OrNop(log)}
}

// GetMessages handles GET /api/messages
// Query params:
//   - participant1, participant2: the two sides of the conversation (required)
//   - viewer: hide messages this user deleted for themself
//   - q: case-insensitive substring filter
//   - limit: keep only the newest n messages
//   - before: RFC 3339 timestamp, page backwards from it
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := services.HistoryQuery{
		Participant1: q.Get("participant1"),
		Participant2: q.Get("participant2"),
		Viewer:       q.Get("viewer"),
		Query:        q.Get("q"),
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apperr.Validation("invalid 'limit'"))
			return
		}
		query.Limit = limit
	}
	if raw := q.Get("before"); raw != "" {
		before, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, apperr.Validation("invalid 'before' timestamp format"))
			return
		}
		query.Before = before
	}

	messages, err := h.chat.ConversationMessages(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// SendMessage handles POST /api/messages
// Same validation and fan-out as the send_message socket event.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req models.SendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	msg, err := h.chat.SendMessage(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	h.log.Debug("message stored over REST",
		zap.String("message_id", msg.ID),
		zap.String("conversation_id", msg.ConversationID))
	writeJSON(w, http.StatusCreated, msg)
}

// EditMessage handles PUT /api/messages/{messageId}/edit
func (h *MessageHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	var req models.EditMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	msg, err := h.chat.EditMessage(r.Context(), chi.URLParam(r, "messageId"), req.Content, req.Sender)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// GetNotes handles GET /api/messages/notes/{username}
func (h *MessageHandler) GetNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.notes.List(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

// SaveNote handles POST /api/messages/notes
func (h *MessageHandler) SaveNote(w http.ResponseWriter, r *http.Request) {
	var req models.SaveNoteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	note, err := h.notes.Save(r.Context(), req.Username, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}
