package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aretw0/formbot/pkg/domain"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

// Inbound frame types. Frames that are not JSON are treated as wsMessage text.
const (
	wsStart   = "start"
	wsMessage = "message"
	wsCancel  = "cancel"
)

// Outbound frame types.
const (
	wsWelcome   = "welcome"
	wsError     = "error"
	wsCancelled = "cancelled"
)

type wsInbound struct {
	Type   string `json:"type"`
	FormID string `json:"form_id,omitempty"`
	Text   string `json:"text,omitempty"`
}

type wsOutbound struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// serveWebsocket handles GET /ws. Without ?user_id= the connection gets an anonymous id;
// a named user must send Basic credentials on the upgrade request.
func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		userID = wsUserPrefix + uuid.NewString()
	}
	if !s.authorize(w, r, userID) {
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.wsOrigins,
	})
	if err != nil {
		s.logger.Warn("Failed to accept WebSocket", "err", err, "user_id", userID)
		return
	}
	defer ws.Close(websocket.StatusNormalClosure, "session ended")

	ctx := r.Context()
	s.logger.Info("WebSocket connected", "user_id", userID)

	sink := domain.MessageSinkFunc(func(ctx context.Context, text string) error {
		s.publish(userID, wsMessage, text)
		return wsjson.Write(ctx, ws, wsOutbound{Type: wsMessage, Text: text})
	})

	if err := wsjson.Write(ctx, ws, wsOutbound{Type: wsWelcome, UserID: userID}); err != nil {
		return
	}

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				s.logger.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				s.logger.Debug("WebSocket read ended", "err", err, "user_id", userID)
			}
			return
		}

		var in wsInbound
		if err := json.Unmarshal(data, &in); err != nil || in.Type == "" {
			in = wsInbound{Type: wsMessage, Text: string(data)}
		}

		if err := s.dispatchFrame(ctx, ws, userID, in, sink); err != nil {
			s.logger.Debug("WebSocket write failed", "err", err, "user_id", userID)
			return
		}
	}
}

// dispatchFrame runs one inbound frame. Only write failures are returned; domain
// errors are reported to the client as error frames.
func (s *Server) dispatchFrame(ctx context.Context, ws *websocket.Conn, userID string, in wsInbound, sink domain.MessageSink) error {
	sendErr := func(err error) error {
		return wsjson.Write(ctx, ws, wsOutbound{Type: wsError, Text: domain.UserMessage(err)})
	}

	switch in.Type {
	case wsStart:
		res, err := s.bot.StartSession(ctx, userID, in.FormID)
		if err != nil {
			return sendErr(err)
		}
		return sink.Send(ctx, res.Message)

	case wsCancel:
		id, err := s.bot.CancelSession(ctx, userID)
		if err != nil {
			return sendErr(err)
		}
		return wsjson.Write(ctx, ws, wsOutbound{Type: wsCancelled, SessionID: id})

	case wsMessage:
		text, err := s.sanitizer.Sanitize(in.Text)
		if err != nil {
			return wsjson.Write(ctx, ws, wsOutbound{Type: wsError, Text: err.Error()})
		}
		// Handle reports domain errors through sink already.
		if err := s.bot.Handle(ctx, userID, text, sink); err != nil {
			s.logger.Debug("WebSocket message failed", "err", err, "user_id", userID)
		}
		return nil

	default:
		return wsjson.Write(ctx, ws, wsOutbound{Type: wsError, Text: "unknown frame type " + in.Type})
	}
}
