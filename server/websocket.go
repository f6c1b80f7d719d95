package server

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/xhad/regqa/internal/models"
	"go.uber.org/zap"
)

// Message is the envelope exchanged over /ws.
type Message struct {
	Type      string      `json:"type"`
	Content   string      `json:"content"`
	SessionID string      `json:"session_id,omitempty"`
	Language  string      `json:"language,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

const (
	messageQuestion = "question"
	messageClear    = "clear"
	messageStatus   = "status"
	messageResponse = "response"
	messageError    = "error"
)

// handleWebSocket answers questions in the order they arrive on the connection.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return nil
	}
	defer conn.Close()

	ctx := c.Request().Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("error reading message", zap.Error(err))
			}
			return nil
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendMessage(conn, Message{Type: messageError, Content: "invalid message"})
			continue
		}
		s.handleMessage(ctx, conn, msg)
	}
}

func (s *Server) handleMessage(ctx context.Context, conn *websocket.Conn, msg Message) {
	switch msg.Type {
	case messageClear:
		if msg.SessionID != "" {
			s.pipeline.ClearSession(msg.SessionID)
		}
		s.sendMessage(conn, Message{Type: messageStatus, Content: "cleared", SessionID: msg.SessionID})
		return
	case messageQuestion, "":
	default:
		s.sendMessage(conn, Message{Type: messageError, Content: "unknown message type"})
		return
	}

	req := chatRequest{Question: msg.Content, SessionID: msg.SessionID, Language: msg.Language}
	if err := validateQuestion(req); err != nil {
		s.sendMessage(conn, Message{Type: messageError, Content: err.Error(), SessionID: msg.SessionID})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	result, err := s.pipeline.Process(ctx, models.Question{
		Text:      req.Question,
		Language:  req.Language,
		SessionID: req.SessionID,
	})
	if err != nil {
		he := mapError(err)
		s.logger.Error("websocket question failed", zap.Error(err))
		detail := "internal server error"
		if he.Code < 500 {
			detail, _ = he.Message.(string)
		}
		s.sendMessage(conn, Message{Type: messageError, Content: detail, SessionID: msg.SessionID})
		return
	}

	s.sendMessage(conn, Message{
		Type:      messageResponse,
		Content:   result.Answer,
		SessionID: msg.SessionID,
		Language:  string(result.Language),
		Data:      result.Sources,
	})
}

func (s *Server) sendMessage(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("error sending message", zap.Error(err))
	}
}
