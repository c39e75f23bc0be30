package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/RichardoC/insurance-assistant/internal/conversation"
	"github.com/RichardoC/insurance-assistant/internal/db"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transcriber converts recorded speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

type Handler struct {
	engine      *conversation.Engine
	db          *db.Database
	kb          conversation.Retriever
	transcriber Transcriber // nil disables voice input
	logger      *zap.Logger
}

func NewHandler(engine *conversation.Engine, database *db.Database, kb conversation.Retriever, transcriber Transcriber, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		engine:      engine,
		db:          database,
		kb:          kb,
		transcriber: transcriber,
		logger:      logger,
	}
}

// Register adds every route to mux. Static files are served from staticDir
// when it is not empty.
func (h *Handler) Register(mux *http.ServeMux, staticDir string) {
	mux.HandleFunc("/api/message", h.HandleMessage)
	mux.HandleFunc("/api/messages", h.GetMessages)
	mux.HandleFunc("/api/sessions", h.Sessions)
	mux.HandleFunc("/api/knowledge/search", h.SearchKnowledge)
	mux.HandleFunc("/ws", h.HandleWebSocket)

	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
}

type MessageRequest struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

type MessageResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply,omitempty"`
	Error     string `json:"error,omitempty"`
}

type SessionResponse struct {
	SessionID string `json:"session_id"`
}

type SearchResponse struct {
	Query   string `json:"query"`
	Snippet string `json:"snippet"`
}

func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		http.Error(w, "Message content is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	reply, err := h.engine.Step(r.Context(), req.SessionID, content)
	if err != nil {
		h.logger.Error("Failed to process message",
			zap.String("session_id", req.SessionID),
			zap.Error(err))
		h.writeJSON(w, statusFor(err), MessageResponse{SessionID: req.SessionID, Error: Notice(err)})
		return
	}

	h.writeJSON(w, http.StatusOK, MessageResponse{SessionID: req.SessionID, Reply: reply})
}

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "Query parameter 'session_id' is required", http.StatusBadRequest)
		return
	}

	messages, err := h.engine.History(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("Failed to get messages", zap.String("session_id", sessionID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, messages)
}

// Sessions lists known sessions on GET and hands out a fresh session id on
// POST. Starting over is just using a new id; old history stays untouched.
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sessions, err := h.db.ListSessions(r.Context())
		if err != nil {
			h.logger.Error("Failed to list sessions",
				zap.Error(err),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		h.logger.Debug("Retrieved sessions",
			zap.Int("count", len(sessions)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))

		w.Header().Set("Access-Control-Allow-Origin", "*")
		h.writeJSON(w, http.StatusOK, sessions)

	case http.MethodPost:
		h.writeJSON(w, http.StatusCreated, SessionResponse{SessionID: uuid.NewString()})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) SearchKnowledge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "Query parameter 'q' is required", http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, SearchResponse{Query: query, Snippet: h.kb.Lookup(query)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
