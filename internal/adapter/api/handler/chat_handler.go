package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"lapakchat/internal/domain/entity"
	"lapakchat/internal/usecase"
	"lapakchat/pkg/errors"
	"lapakchat/pkg/response"
	"lapakchat/pkg/utils"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type OpenRoomRequest struct {
	PartyID string `json:"party_id" validate:"required"`
}

type SendMessageRequest struct {
	Content        string `json:"content"`
	AttachmentURL  string `json:"attachment_url"`
	AttachmentMIME string `json:"attachment_mime"`
}

type MarkReadRequest struct {
	MessageIDs []string `json:"message_ids"`
}

// OpenRoom finds or creates the single room between the caller and the
// named other party.
func (h *ChatHandler) OpenRoom(c echo.Context) error {
	uid := c.Get("uid").(string)
	role := c.Get("role").(string)

	var req OpenRoomRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request payload", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	caller := &entity.Identity{ID: uid, Role: role}
	room, err := h.chatUseCase.OpenRoom(c.Request().Context(), caller, req.PartyID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, room)
}

func (h *ChatHandler) GetUserRooms(c echo.Context) error {
	uid := c.Get("uid").(string)
	params := utils.GetPaginationParams(c, 20)

	rooms, total, err := h.chatUseCase.GetUserRooms(c.Request().Context(), uid, params.Limit, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessPaginated(c, rooms, total, params.Limit, params.Offset)
}

func (h *ChatHandler) GetRoomMessages(c echo.Context) error {
	uid := c.Get("uid").(string)
	roomID := c.Param("id")
	params := utils.GetPaginationParams(c, 50)

	messages, total, err := h.chatUseCase.GetRoomMessages(c.Request().Context(), uid, roomID, params.Limit, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessPaginated(c, messages, total, params.Limit, params.Offset)
}

func (h *ChatHandler) SendMessage(c echo.Context) error {
	uid := c.Get("uid").(string)
	roomID := c.Param("id")

	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request payload", err))
	}

	message, err := h.chatUseCase.SendMessage(c.Request().Context(), uid, usecase.SendMessageInput{
		RoomID:         roomID,
		Content:        req.Content,
		AttachmentURL:  req.AttachmentURL,
		AttachmentMIME: req.AttachmentMIME,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// MarkRead flips the caller's unread messages in a room and reports which
// IDs actually transitioned.
func (h *ChatHandler) MarkRead(c echo.Context) error {
	uid := c.Get("uid").(string)
	roomID := c.Param("id")

	var req MarkReadRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request payload", err))
	}

	readIDs, err := h.chatUseCase.MarkMessagesRead(c.Request().Context(), uid, roomID, req.MessageIDs)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"room_id":  roomID,
		"read_ids": readIDs,
	})
}

// UnreadCount reports the total unread messages addressed to a party across
// all of their rooms. The party does not need an open connection; support
// staff query this for any known identity.
func (h *ChatHandler) UnreadCount(c echo.Context) error {
	partyID := c.QueryParam("party_id")
	if partyID == "" {
		return response.Error(c, errors.BadRequest("party_id is required", nil))
	}

	var since *time.Time
	if raw := c.QueryParam("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return response.Error(c, errors.BadRequest("since must be RFC3339", err))
		}
		since = &parsed
	}

	count, err := h.chatUseCase.CountUnread(c.Request().Context(), partyID, since)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"party_id": partyID,
		"count":    count,
	})
}
