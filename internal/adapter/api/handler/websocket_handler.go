package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"lapakchat/internal/domain/entity"
	"lapakchat/internal/domain/service"
	ws "lapakchat/internal/infrastructure/websocket"
	"lapakchat/internal/usecase"
	"lapakchat/pkg/config"
	apperrors "lapakchat/pkg/errors"
	"lapakchat/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	chatUseCase *usecase.ChatUseCase
	identity    service.IdentityProvider
	manager     *ws.Manager
	config      *config.Config
}

func NewWebSocketHandler(chatUseCase *usecase.ChatUseCase, identity service.IdentityProvider, manager *ws.Manager, cfg *config.Config) *WebSocketHandler {
	return &WebSocketHandler{
		chatUseCase: chatUseCase,
		identity:    identity,
		manager:     manager,
		config:      cfg,
	}
}

// HandleConnection authenticates the caller, upgrades to a websocket and
// runs the read loop until the peer disconnects or goes idle. A rejected
// credential never upgrades.
func (h *WebSocketHandler) HandleConnection(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		authHeader := c.Request().Header.Get("Authorization")
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}
	}
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication token is required")
	}

	identity, err := h.identity.ResolveIdentity(c.Request().Context(), token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("Failed to upgrade connection for user %s: %v", identity.ID, err)
		return err
	}

	client := ws.NewClient(conn, identity.ID, identity.Role, h.config.WSIdleTimeout)
	h.manager.Register(client)
	logger.Info("WebSocket connected: user=%s role=%s handle=%s", client.UserID, client.Role, client.Handle)

	go client.WritePump()
	client.ReadPump(h.manager, h.dispatch)

	return nil
}

// dispatch routes one inbound frame. Failures are reported back on the
// client's own connection and never tear it down.
func (h *WebSocketHandler) dispatch(client *ws.Client, raw []byte) {
	var envelope ws.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		h.sendError(client, "INVALID_PAYLOAD", "Malformed message envelope")
		return
	}

	switch envelope.Type {
	case ws.MessageTypePing:
		h.handlePing(client)
	case ws.MessageTypeJoinRoom:
		h.handleJoinRoom(client, envelope.Data)
	case ws.MessageTypeLeaveRoom:
		h.handleLeaveRoom(client, envelope.Data)
	case ws.MessageTypeSendMessage:
		h.handleSendMessage(client, envelope.Data)
	case ws.MessageTypeMarkRead:
		h.handleMarkRead(client, envelope.Data)
	default:
		h.sendError(client, "UNKNOWN_TYPE", "Unsupported message type: "+envelope.Type)
	}
}

func (h *WebSocketHandler) handlePing(client *ws.Client) {
	payload, err := ws.Marshal(ws.MessageTypePong, nil)
	if err != nil {
		return
	}
	h.manager.Send(client.Handle, payload)
}

func (h *WebSocketHandler) handleJoinRoom(client *ws.Client, data json.RawMessage) {
	var req ws.JoinRoomData
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(client, "INVALID_PAYLOAD", "Malformed join_room data")
		return
	}

	ctx := context.Background()

	roomID := req.RoomID
	if roomID == "" {
		if req.PartyID == "" {
			h.sendError(client, "INVALID_PAYLOAD", "room_id or party_id is required")
			return
		}
		caller := &entity.Identity{ID: client.UserID, Role: client.Role}
		room, err := h.chatUseCase.OpenRoom(ctx, caller, req.PartyID)
		if err != nil {
			h.sendAppError(client, err)
			return
		}
		roomID = room.ID
	}

	room, err := h.chatUseCase.Subscribe(ctx, client, roomID)
	if err != nil {
		h.sendAppError(client, err)
		return
	}

	payload, err := ws.Marshal(ws.MessageTypeRoomJoined, ws.RoomJoinedData{Room: room})
	if err != nil {
		logger.Error("Failed to marshal room_joined: %v", err)
		return
	}
	h.manager.Send(client.Handle, payload)
}

func (h *WebSocketHandler) handleLeaveRoom(client *ws.Client, data json.RawMessage) {
	var req ws.LeaveRoomData
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(client, "INVALID_PAYLOAD", "Malformed leave_room data")
		return
	}
	if req.RoomID == "" {
		h.sendError(client, "INVALID_PAYLOAD", "room_id is required")
		return
	}
	h.chatUseCase.Unsubscribe(client, req.RoomID)
}

func (h *WebSocketHandler) handleSendMessage(client *ws.Client, data json.RawMessage) {
	var req ws.SendMessageData
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(client, "INVALID_PAYLOAD", "Malformed send_message data")
		return
	}

	_, err := h.chatUseCase.SendMessage(context.Background(), client.UserID, usecase.SendMessageInput{
		RoomID:         req.RoomID,
		Content:        req.Content,
		AttachmentURL:  req.AttachmentURL,
		AttachmentMIME: req.AttachmentMIME,
	})
	if err != nil {
		h.sendAppError(client, err)
	}
}

func (h *WebSocketHandler) handleMarkRead(client *ws.Client, data json.RawMessage) {
	var req ws.MarkReadData
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(client, "INVALID_PAYLOAD", "Malformed mark_read data")
		return
	}

	_, err := h.chatUseCase.MarkMessagesRead(context.Background(), client.UserID, req.RoomID, req.MessageIDs)
	if err != nil {
		h.sendAppError(client, err)
	}
}

func (h *WebSocketHandler) sendAppError(client *ws.Client, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		h.sendError(client, appErr.Code, appErr.Message)
		return
	}
	h.sendError(client, "INTERNAL_ERROR", "Something went wrong")
}

func (h *WebSocketHandler) sendError(client *ws.Client, code, message string) {
	payload, err := ws.Marshal(ws.MessageTypeError, ws.ErrorData{Code: code, Message: message})
	if err != nil {
		return
	}
	h.manager.Send(client.Handle, payload)
}
