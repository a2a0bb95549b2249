// Package server exposes the chat API: a JSON endpoint for
// request/response chat and a WebSocket endpoint for interactive
// sessions.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/moneylens/moneylens/core"
	"github.com/moneylens/moneylens/engine"
	"github.com/moneylens/moneylens/store"
)

// Responder answers one chat message. Implemented by engine.Orchestrator.
type Responder interface {
	Respond(ctx context.Context, userID, message string, history []core.Message, conversationID string) (*engine.Reply, error)
}

// Config configures the server.
type Config struct {
	// AuthFunc validates requests and returns a user ID. If nil, a
	// default user ID is used (not recommended for production).
	AuthFunc func(r *http.Request) (userID string, err error)
}

// Server serves the chat API.
type Server struct {
	config        Config
	responder     Responder
	conversations store.Conversations
	upgrader      websocket.Upgrader
	log           zerolog.Logger
}

// New creates a server over an orchestrator and conversation store.
func New(responder Responder, conversations store.Conversations, cfg Config, log zerolog.Logger) *Server {
	return &Server{
		config:        cfg,
		responder:     responder,
		conversations: conversations,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
		log: log,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// Run starts the server on the given address.
func (s *Server) Run(addr string) error {
	s.log.Info().Str("addr", addr).Msg("starting chat server")
	return http.ListenAndServe(addr, s.Handler())
}

// chatRequest is the POST /api/chat body.
type chatRequest struct {
	Message        string        `json:"message"`
	History        []chatMessage `json:"history,omitempty"`
	ConversationID string        `json:"conversationId,omitempty"`
}

// chatMessage is one prior turn supplied by the client.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the POST /api/chat reply.
type chatResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversationId"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	userID, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	switch r.Method {
	case http.MethodPost:
		s.handleChatPost(w, r, userID)
	case http.MethodGet:
		s.handleChatGet(w, r, userID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleChatPost(w http.ResponseWriter, r *http.Request, userID string) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFieldError(w, "body", "must be valid JSON")
		return
	}
	if req.Message == "" {
		writeFieldError(w, "message", "must not be empty")
		return
	}

	history := make([]core.Message, 0, len(req.History))
	for _, m := range req.History {
		role := core.Role(m.Role)
		if role != core.RoleUser && role != core.RoleAssistant {
			writeFieldError(w, "history", "roles must be user or assistant")
			return
		}
		history = append(history, core.Message{Role: role, Content: m.Content})
	}

	reply, err := s.responder.Respond(r.Context(), userID, req.Message, history, req.ConversationID)
	if err != nil {
		s.writeRespondError(w, userID, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:       reply.Response,
		ConversationID: reply.ConversationID,
	})
}

// handleChatGet returns either one conversation's transcript or the
// caller's most recent conversations.
func (s *Server) handleChatGet(w http.ResponseWriter, r *http.Request, userID string) {
	conversationID := r.URL.Query().Get("conversationId")
	if conversationID == "" {
		list, err := s.conversations.List(r.Context(), userID, 0)
		if err != nil {
			s.log.Error().Err(err).Str("user_id", userID).Msg("failed to list conversations")
			writeError(w, http.StatusInternalServerError, "something went wrong")
			return
		}
		if list == nil {
			list = []*store.Conversation{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"conversations": list})
		return
	}

	conv, err := s.conversations.Get(r.Context(), conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.log.Error().Err(err).Str("user_id", userID).Msg("failed to load conversation")
		writeError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	if conv.Conversation.UserID != userID {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// writeRespondError maps orchestrator failures onto HTTP statuses:
// validation problems are the caller's, upstream-model failures carry
// their own status, anything else is a generic 500.
func (s *Server) writeRespondError(w http.ResponseWriter, userID string, err error) {
	var validation *core.ValidationError
	if errors.As(err, &validation) {
		writeFieldError(w, validation.Field, validation.Detail)
		return
	}
	var upstream *core.UpstreamError
	if errors.As(err, &upstream) {
		writeError(w, upstream.Status, upstream.Message)
		return
	}
	s.log.Error().Err(err).Str("user_id", userID).Msg("chat request failed")
	writeError(w, http.StatusInternalServerError, "something went wrong")
}

func (s *Server) authenticate(r *http.Request) (string, error) {
	if s.config.AuthFunc == nil {
		return "default-user", nil
	}
	return s.config.AuthFunc(r)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeFieldError(w http.ResponseWriter, field, detail string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + field + ": " + detail, "field": field})
}
