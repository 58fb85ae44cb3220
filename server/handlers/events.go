package handlers

import (
	"encoding/json"

	"chatcore/apperrors"
	"chatcore/pkg/logger"
	"chatcore/pkg/metrics"
	ws "chatcore/server/websocket"
	"chatcore/services/broadcast"
	"chatcore/services/events"
	"chatcore/services/presence"

	"github.com/gofiber/contrib/websocket"
)

// Inbound event names
const (
	eventConnect       = "connect"
	eventJoinChat      = "join_chat"
	eventLeaveChat     = "leave_chat"
	eventSendMessage   = "send_message"
	eventMarkAsRead    = "mark_as_read"
	eventStartedTyping = "started_typing"
	eventStoppedTyping = "stopped_typing"
	eventForceRefresh  = "force_refresh"
)

type connectPayload struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

type chatPayload struct {
	ChatID string `json:"chatId"`
}

type sendMessagePayload struct {
	ChatID string `json:"chatId"`
	Text   string `json:"text"`
	TempID string `json:"tempId"`
}

type markAsReadPayload struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
}

// EventHandler dispatches inbound WebSocket frames onto the presence service
// and the room hub. A failed event is reported back to its origin session as
// a single error event; the connection stays up.
type EventHandler struct {
	presence *presence.Service
	hub      *broadcast.Hub
	manager  *ws.Manager
}

func NewEventHandler(presence *presence.Service, hub *broadcast.Hub, manager *ws.Manager) *EventHandler {
	return &EventHandler{
		presence: presence,
		hub:      hub,
		manager:  manager,
	}
}

// Serve runs a WebSocket connection to completion. Must be called on the
// connection's own goroutine; it returns when the connection dies.
func (h *EventHandler) Serve(conn *websocket.Conn) {
	client := h.manager.Add(conn)

	go client.WritePump()
	client.ReadPump(h.dispatch, h.teardown)
}

func (h *EventHandler) dispatch(c *ws.Client, frame *ws.Frame) {
	var err error

	switch frame.Event {
	case eventConnect:
		err = h.handleConnect(c, frame.Data)

	case eventJoinChat:
		var p chatPayload
		if err = decode(frame.Data, &p); err == nil {
			err = h.hub.JoinChat(c.SessionID, p.ChatID)
		}

	case eventLeaveChat:
		var p chatPayload
		if err = decode(frame.Data, &p); err == nil {
			h.hub.LeaveChat(c.SessionID, p.ChatID)
		}

	case eventSendMessage:
		var p sendMessagePayload
		if err = decode(frame.Data, &p); err == nil {
			_, err = h.hub.SendMessage(c.SessionID, p.ChatID, p.Text, p.TempID)
		}

	case eventMarkAsRead:
		var p markAsReadPayload
		if err = decode(frame.Data, &p); err == nil {
			err = h.hub.MarkAsRead(c.SessionID, p.ChatID, p.MessageID)
		}

	case eventStartedTyping:
		var p chatPayload
		if err = decode(frame.Data, &p); err == nil {
			err = h.hub.Typing(c.SessionID, p.ChatID, true)
		}

	case eventStoppedTyping:
		var p chatPayload
		if err = decode(frame.Data, &p); err == nil {
			err = h.hub.Typing(c.SessionID, p.ChatID, false)
		}

	case eventForceRefresh:
		var p chatPayload
		if err = decode(frame.Data, &p); err == nil {
			err = h.hub.ForceRefresh(c.SessionID, p.ChatID)
		}

	default:
		err = apperrors.NewInvalidArgument("Unknown event: " + frame.Event)
	}

	if err != nil {
		h.fail(c, frame.Event, err)
	}
}

// handleConnect authenticates the session. A token takes precedence over a
// bare user id; the auth provider decides what it accepts.
func (h *EventHandler) handleConnect(c *ws.Client, data json.RawMessage) error {
	var p connectPayload
	if err := decode(data, &p); err != nil {
		return err
	}

	credentials := p.Token
	if credentials == "" {
		credentials = p.UserID
	}
	if credentials == "" {
		return apperrors.NewUnauthenticated("Missing credentials")
	}

	_, err := h.presence.Connect(c.SessionID, credentials)
	return err
}

// teardown runs once when a connection dies: the session leaves every room
// and its user's presence is re-evaluated.
func (h *EventHandler) teardown(c *ws.Client) {
	h.manager.Remove(c.SessionID)
	h.hub.DropSession(c.SessionID)
	h.presence.Disconnect(c.SessionID)
}

// fail reports a rejected event back to its origin session
func (h *EventHandler) fail(c *ws.Client, event string, err error) {
	appErr := apperrors.FromError(err)
	metrics.RecordEventError(string(appErr.Code))

	logger.WithFields(map[string]any{
		"session_id": c.SessionID,
		"event":      event,
		"code":       appErr.Code,
	}).Warn("%s", appErr.Message)

	h.manager.Deliver(c.SessionID, events.NewError(string(appErr.Code), appErr.Message))
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return apperrors.NewInvalidArgument("Missing event payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.NewInvalidArgument("Malformed event payload").WithInternal(err)
	}
	return nil
}
