package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/RichardoC/insurance-assistant/internal/speech"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsTypeText       = "text"
	wsTypeAudio      = "audio"
	wsTypeReset      = "reset"
	wsTypeResponse   = "response"
	wsTypeTranscript = "transcript"
	wsTypeError      = "error"

	audioFilename = "audio.webm"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsInbound struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Data      string `json:"data"`
}

type wsOutbound struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text,omitempty"`
	Message   string `json:"message,omitempty"`
}

// wsConn is one client connection. Messages are handled strictly in the
// order they arrive, so a connection never has two steps in flight.
type wsConn struct {
	h         *Handler
	conn      *websocket.Conn
	logger    *zap.Logger
	defaultID string
	// reset maps the id a client sends to the id that replaced it.
	reset map[string]string
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &wsConn{
		h:         h,
		conn:      conn,
		logger:    h.logger.With(zap.String("remote", r.RemoteAddr)),
		defaultID: uuid.NewString(),
		reset:     make(map[string]string),
	}
	c.logger.Info("WebSocket connected")
	c.serve(r.Context())
}

func (c *wsConn) serve(ctx context.Context) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("WebSocket closed unexpectedly", zap.Error(err))
			} else {
				c.logger.Info("WebSocket disconnected")
			}
			return
		}

		var msg wsInbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Warn("Invalid WebSocket message", zap.Error(err))
			if !c.send(wsOutbound{Type: wsTypeError, Message: "invalid message"}) {
				return
			}
			continue
		}

		if !c.handle(ctx, msg) {
			return
		}
	}
}

// handle processes one inbound message. It returns false once the
// connection can no longer be written to.
func (c *wsConn) handle(ctx context.Context, msg wsInbound) bool {
	sessionID := c.session(msg.SessionID)

	switch msg.Type {
	case wsTypeReset:
		fresh := uuid.NewString()
		c.reset[msg.SessionID] = fresh
		c.logger.Info("Session reset", zap.String("old_session_id", sessionID), zap.String("session_id", fresh))
		return c.send(wsOutbound{Type: wsTypeReset, SessionID: fresh, Text: "Session reset."})

	case wsTypeText:
		text := strings.TrimSpace(msg.Data)
		if text == "" {
			return true
		}
		return c.respond(ctx, sessionID, text)

	case wsTypeAudio:
		return c.handleAudio(ctx, sessionID, msg.Data)

	default:
		return c.send(wsOutbound{Type: wsTypeError, SessionID: sessionID, Message: "unknown message type"})
	}
}

func (c *wsConn) handleAudio(ctx context.Context, sessionID, data string) bool {
	start := time.Now()
	logger := c.logger.With(zap.String("session_id", sessionID))

	if c.h.transcriber == nil {
		return c.send(wsOutbound{Type: wsTypeError, SessionID: sessionID, Message: noticeNoVoice})
	}

	audio, err := speech.DecodeAudio(data)
	if err != nil {
		if !errors.Is(err, speech.ErrEmptyAudio) {
			logger.Warn("Failed to decode audio", zap.Error(err))
		}
		return true
	}

	text, err := c.h.transcriber.Transcribe(ctx, speech.NewAudioReader(audio), audioFilename)
	if err != nil {
		logger.Error("Failed to transcribe audio", zap.Error(err))
		return c.send(wsOutbound{Type: wsTypeError, SessionID: sessionID, Message: noticeAudio})
	}
	logger.Debug("Transcribed audio",
		zap.Int("bytes", len(audio)),
		zap.Duration("duration", time.Since(start)))

	if !c.send(wsOutbound{Type: wsTypeTranscript, SessionID: sessionID, Text: text}) {
		return false
	}
	if text == "" {
		return true
	}
	return c.respond(ctx, sessionID, text)
}

// respond runs one step and always answers with a response message; a
// failed step is reported as a notice and the connection stays open.
func (c *wsConn) respond(ctx context.Context, sessionID, text string) bool {
	reply, err := c.h.engine.Step(ctx, sessionID, text)
	if err != nil {
		c.logger.Error("Failed to process message", zap.String("session_id", sessionID), zap.Error(err))
		reply = Notice(err)
	}
	return c.send(wsOutbound{Type: wsTypeResponse, SessionID: sessionID, Text: reply})
}

func (c *wsConn) session(clientID string) string {
	if id, ok := c.reset[clientID]; ok {
		return id
	}
	if clientID == "" {
		return c.defaultID
	}
	return clientID
}

func (c *wsConn) send(msg wsOutbound) bool {
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Warn("Failed to write WebSocket message", zap.Error(err))
		return false
	}
	return true
}
