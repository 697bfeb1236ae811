package usecase

import (
	"context"
	"log"
	"strings"
	"time"

	"lapakchat/internal/domain/entity"
	"lapakchat/internal/domain/repository"
	"lapakchat/internal/domain/service"
	"lapakchat/internal/infrastructure/ratelimit"
	ws "lapakchat/internal/infrastructure/websocket"
	"lapakchat/pkg/errors"
)

const maxContentLength = 4096

type ChatUseCase struct {
	chatRepo    repository.ChatRepository
	fileRepo    repository.FileMetadataRepository
	identity    service.IdentityProvider
	wsManager   *ws.Manager
	rateLimiter *ratelimit.RateLimiter
}

func NewChatUseCase(
	chatRepo repository.ChatRepository,
	fileRepo repository.FileMetadataRepository,
	identity service.IdentityProvider,
	wsManager *ws.Manager,
) *ChatUseCase {
	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	return &ChatUseCase{
		chatRepo:    chatRepo,
		fileRepo:    fileRepo,
		identity:    identity,
		wsManager:   wsManager,
		rateLimiter: rateLimiter,
	}
}

type SendMessageInput struct {
	RoomID         string
	Content        string
	AttachmentURL  string
	AttachmentMIME string
}

// OpenRoom resolves the unique room between the caller and the other party,
// creating it lazily on first contact. The caller's role decides the seller
// and buyer sides. Idempotent: repeated calls return the same room.
func (uc *ChatUseCase) OpenRoom(ctx context.Context, caller *entity.Identity, otherPartyID string) (*entity.Room, error) {
	allowed, waitTime := uc.rateLimiter.Allow(caller.ID, "open_room")
	if !allowed {
		log.Printf("OpenRoom Rate Limited: User %s must wait %v", caller.ID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before opening another room")
	}

	if caller.ID == otherPartyID {
		return nil, errors.BadRequest("You cannot open a room with yourself", nil)
	}

	if _, err := uc.identity.GetIdentity(ctx, otherPartyID); err != nil {
		log.Printf("OpenRoom Error: Other party %s not found: %v", otherPartyID, err)
		return nil, err
	}

	sellerID, buyerID := otherPartyID, caller.ID
	if caller.Role == entity.RoleSeller {
		sellerID, buyerID = caller.ID, otherPartyID
	}

	room, created, err := uc.chatRepo.ResolveOrCreateRoom(ctx, sellerID, buyerID)
	if err != nil {
		log.Printf("OpenRoom Error: Failed to resolve room for pair (%s, %s): %v", sellerID, buyerID, err)
		return nil, err
	}
	if created {
		log.Printf("OpenRoom: Created room %s for pair (%s, %s)", room.ID, sellerID, buyerID)
	}

	return room, nil
}

// Subscribe attaches a live connection to a room's subscriber set after
// checking the connection's identity is one of the room's two participants.
func (uc *ChatUseCase) Subscribe(ctx context.Context, client *ws.Client, roomID string) (*entity.Room, error) {
	room, err := uc.chatRepo.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if !room.HasParticipant(client.UserID) {
		log.Printf("Subscribe Error: User %s is not a participant of room %s", client.UserID, roomID)
		return nil, errors.Forbidden("User is not a participant of this room", nil)
	}

	if !uc.wsManager.Subscribe(client.Handle, roomID) {
		return nil, errors.Internal("Connection is no longer registered", nil)
	}

	return room, nil
}

func (uc *ChatUseCase) Unsubscribe(client *ws.Client, roomID string) {
	uc.wsManager.Unsubscribe(client.Handle, roomID)
}

// SendMessage validates, persists and fans out one message. Persistence is
// the durability contract: the message is pushed to subscribers only after
// the transaction commits, and a slow/dead subscriber drops itself but never
// fails the send.
func (uc *ChatUseCase) SendMessage(ctx context.Context, senderID string, input SendMessageInput) (*entity.Message, error) {
	allowed, waitTime := uc.rateLimiter.Allow(senderID, "send_message")
	if !allowed {
		log.Printf("SendMessage Rate Limited: User %s must wait %v", senderID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message")
	}

	room, err := uc.chatRepo.GetRoomByID(ctx, input.RoomID)
	if err != nil {
		log.Printf("SendMessage Error: Room %s not found: %v", input.RoomID, err)
		return nil, err
	}

	if !room.HasParticipant(senderID) {
		log.Printf("SendMessage Error: User %s is not a participant of room %s", senderID, input.RoomID)
		return nil, errors.Forbidden("User is not a participant of this room", nil)
	}

	if err := uc.validateContent(ctx, &input); err != nil {
		return nil, err
	}

	message := &entity.Message{
		RoomID:         input.RoomID,
		SenderID:       senderID,
		RecipientID:    room.OtherParticipant(senderID),
		Content:        strings.TrimSpace(input.Content),
		AttachmentURL:  input.AttachmentURL,
		AttachmentMIME: input.AttachmentMIME,
	}

	if err := uc.chatRepo.AppendMessage(ctx, message); err != nil {
		log.Printf("SendMessage Error: Failed to persist message for room %s: %v", input.RoomID, err)
		return nil, err
	}

	payload, err := ws.Marshal(ws.MessageTypeNewMessage, ws.NewMessageData{Message: message})
	if err != nil {
		log.Printf("SendMessage Warning: Failed to marshal fan-out payload for message %s: %v", message.ID, err)
		return message, nil
	}
	uc.wsManager.BroadcastToRoom(input.RoomID, payload)

	return message, nil
}

// MarkMessagesRead transitions the given messages to read and notifies every
// connection of the original sender with a read receipt. Ids that are not in
// the room, already read, or authored by the reader are silently skipped, so
// retries are safe and a receipt fires at most once per id. The receipt is
// emitted only after the persisted update commits.
func (uc *ChatUseCase) MarkMessagesRead(ctx context.Context, readerID, roomID string, messageIDs []string) ([]string, error) {
	room, err := uc.chatRepo.GetRoomByID(ctx, roomID)
	if err != nil {
		log.Printf("MarkMessagesRead Error: Room %s not found: %v", roomID, err)
		return nil, err
	}

	if !room.HasParticipant(readerID) {
		log.Printf("MarkMessagesRead Error: User %s is not a participant of room %s", readerID, roomID)
		return nil, errors.Forbidden("User is not a participant of this room", nil)
	}

	if len(messageIDs) == 0 {
		return nil, nil
	}

	transitioned, err := uc.chatRepo.MarkMessagesRead(ctx, roomID, readerID, messageIDs)
	if err != nil {
		log.Printf("MarkMessagesRead Error: Failed to update read state in room %s: %v", roomID, err)
		return nil, err
	}

	if len(transitioned) > 0 {
		// The sender may not be subscribed right now, so the receipt goes
		// through the connection registry to all of their connections.
		payload, err := ws.Marshal(ws.MessageTypeReadReceipt, ws.ReadReceiptData{
			RoomID:     roomID,
			MessageIDs: transitioned,
			ReaderID:   readerID,
		})
		if err != nil {
			log.Printf("MarkMessagesRead Warning: Failed to marshal read receipt for room %s: %v", roomID, err)
			return transitioned, nil
		}
		uc.wsManager.SendToIdentity(room.OtherParticipant(readerID), payload)
	}

	return transitioned, nil
}

// CountUnread is a pure read over persisted state: messages addressed to the
// party, still unread, optionally newer than since. An unknown party is a
// not-found error, never zero, so callers can tell "no unread" apart from
// "unknown account".
func (uc *ChatUseCase) CountUnread(ctx context.Context, partyID string, since *time.Time) (int64, error) {
	if _, err := uc.identity.GetIdentity(ctx, partyID); err != nil {
		log.Printf("CountUnread Error: Party %s not resolvable: %v", partyID, err)
		return 0, err
	}

	return uc.chatRepo.CountUnread(ctx, partyID, since)
}

func (uc *ChatUseCase) GetUserRooms(ctx context.Context, userID string, limit, offset int) ([]*entity.Room, int64, error) {
	return uc.chatRepo.ListRoomsByParticipant(ctx, userID, limit, offset)
}

func (uc *ChatUseCase) GetRoomMessages(ctx context.Context, userID, roomID string, limit, offset int) ([]*entity.Message, int64, error) {
	room, err := uc.chatRepo.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, 0, err
	}

	if !room.HasParticipant(userID) {
		return nil, 0, errors.Forbidden("User is not a participant of this room", nil)
	}

	return uc.chatRepo.ListMessagesByRoom(ctx, roomID, limit, offset)
}

// validateContent enforces the payload contract: non-empty text, an accepted
// image attachment that references a recorded upload, or both.
func (uc *ChatUseCase) validateContent(ctx context.Context, input *SendMessageInput) error {
	text := strings.TrimSpace(input.Content)

	if text == "" && input.AttachmentURL == "" {
		return errors.Validation("Message content must not be empty", nil)
	}
	if len(text) > maxContentLength {
		return errors.Validation("Message content is too long", nil)
	}

	if input.AttachmentURL != "" {
		if !service.AcceptedImageMIME(input.AttachmentMIME) {
			return errors.Validation("Unsupported attachment MIME type", nil)
		}
		meta, err := uc.fileRepo.GetByURL(ctx, input.AttachmentURL)
		if err != nil {
			if errors.Is(err, "NOT_FOUND") {
				return errors.Validation("Attachment does not reference an uploaded file", err)
			}
			return err
		}
		if meta.MIMEType != input.AttachmentMIME {
			return errors.Validation("Attachment MIME type does not match the uploaded file", nil)
		}
	}

	return nil
}
