package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/moneylens/moneylens/core"
	"github.com/moneylens/moneylens/store"
)

// ClientMessage is a message from the WebSocket client.
type ClientMessage struct {
	Type           string `json:"type"`
	Content        string `json:"content,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ServerMessage is a message to the WebSocket client.
type ServerMessage struct {
	Type           string                `json:"type"`
	Content        string                `json:"content,omitempty"`
	ConversationID string                `json:"conversation_id,omitempty"`
	Messages       []store.StoredMessage `json:"messages,omitempty"`
}

type session struct {
	UserID         string
	ConversationID string
	History        []core.Message
	TurnCount      int
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := s.authenticate(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	s.log.Info().Str("user_id", userID).Msg("websocket connected")

	var current *session
	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warn().Err(err).Str("user_id", userID).Msg("websocket read failed")
			}
			break
		}

		switch msg.Type {
		case "new_conversation":
			current = s.startConversation(r.Context(), conn, userID)

		case "resume_conversation":
			current = s.resumeConversation(r.Context(), conn, userID, msg.ConversationID)

		case "message":
			if current == nil {
				s.sendError(conn, "No active conversation. Send 'new_conversation' first.")
				continue
			}
			s.handleSessionMessage(r.Context(), conn, current, msg.Content)

		default:
			s.sendError(conn, fmt.Sprintf("Unknown message type: %s", msg.Type))
		}
	}
}

func (s *Server) startConversation(ctx context.Context, conn *websocket.Conn, userID string) *session {
	conv, err := s.conversations.Create(ctx, userID)
	if err != nil {
		s.sendError(conn, "Failed to create conversation")
		return nil
	}

	s.send(conn, ServerMessage{Type: "conversation_started", ConversationID: conv.ID})
	return &session{UserID: userID, ConversationID: conv.ID}
}

func (s *Server) resumeConversation(ctx context.Context, conn *websocket.Conn, userID, conversationID string) *session {
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil || conv.Conversation.UserID != userID {
		s.sendError(conn, "Conversation not found")
		return nil
	}

	history := make([]core.Message, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		history = append(history, core.Message{Role: m.Role, Content: m.Content})
	}

	s.send(conn, ServerMessage{
		Type:           "conversation_resumed",
		ConversationID: conversationID,
		Messages:       conv.Messages,
	})
	return &session{
		UserID:         userID,
		ConversationID: conversationID,
		History:        history,
		TurnCount:      len(history),
	}
}

func (s *Server) handleSessionMessage(ctx context.Context, conn *websocket.Conn, sess *session, content string) {
	if content == "" {
		return
	}

	if sess.TurnCount == 0 {
		// The conversation was created before any message existed, so the
		// title is derived here rather than by the orchestrator.
		if err := s.conversations.SetTitle(ctx, sess.ConversationID, store.TitleFrom(content)); err != nil {
			s.log.Warn().Err(err).Str("conversation_id", sess.ConversationID).Msg("failed to set title")
		}
	}

	reply, err := s.responder.Respond(ctx, sess.UserID, content, sess.History, sess.ConversationID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", sess.UserID).Msg("websocket chat failed")
		s.sendError(conn, "Sorry, I could not process that. Please try again.")
		return
	}

	sess.History = append(sess.History, core.NewUserMessage(content), core.NewAssistantMessage(reply.Response))
	sess.TurnCount += 2

	s.send(conn, ServerMessage{Type: "text", Content: reply.Response})
	s.send(conn, ServerMessage{Type: "complete"})
}

func (s *Server) send(conn *websocket.Conn, msg ServerMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		s.log.Warn().Err(err).Msg("failed to send websocket message")
	}
}

func (s *Server) sendError(conn *websocket.Conn, content string) {
	s.send(conn, ServerMessage{Type: "error", Content: content})
}
