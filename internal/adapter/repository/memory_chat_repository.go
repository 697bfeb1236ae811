package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lapakchat/internal/domain/entity"
	"lapakchat/internal/domain/repository"
	"lapakchat/pkg/errors"
)

// memoryChatRepository is an in-memory ChatRepository with the same
// transactional semantics as the Firestore adapter: one mutex plays the role
// of the transaction, so find-or-create, append and mark-read are atomic.
// Used by tests and local development without a Firestore emulator.
type memoryChatRepository struct {
	mu       sync.Mutex
	rooms    map[string]*entity.Room      // room id -> room
	index    map[string]string            // pair key -> room id
	messages map[string][]*entity.Message // room id -> messages in seq order
}

func NewMemoryChatRepository() repository.ChatRepository {
	return &memoryChatRepository{
		rooms:    make(map[string]*entity.Room),
		index:    make(map[string]string),
		messages: make(map[string][]*entity.Message),
	}
}

func (r *memoryChatRepository) ResolveOrCreateRoom(ctx context.Context, sellerID, buyerID string) (*entity.Room, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pairKey := entity.RoomPairKey(sellerID, buyerID)
	if roomID, ok := r.index[pairKey]; ok {
		room := *r.rooms[roomID]
		return &room, false, nil
	}

	now := time.Now()
	room := &entity.Room{
		ID:            uuid.New().String(),
		SellerID:      sellerID,
		BuyerID:       buyerID,
		PairKey:       pairKey,
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.rooms[room.ID] = room
	r.index[pairKey] = room.ID

	copied := *room
	return &copied, true, nil
}

func (r *memoryChatRepository) GetRoomByID(ctx context.Context, id string) (*entity.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, errors.NotFound("Room", nil)
	}
	copied := *room
	return &copied, nil
}

func (r *memoryChatRepository) ListRoomsByParticipant(ctx context.Context, userID string, limit, offset int) ([]*entity.Room, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var rooms []*entity.Room
	for _, room := range r.rooms {
		if room.HasParticipant(userID) {
			copied := *room
			rooms = append(rooms, &copied)
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].LastMessageAt.After(rooms[j].LastMessageAt)
	})

	total := int64(len(rooms))

	start := offset
	if start > len(rooms) {
		start = len(rooms)
	}
	end := len(rooms)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	return rooms[start:end], total, nil
}

func (r *memoryChatRepository) AppendMessage(ctx context.Context, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[message.RoomID]
	if !ok {
		return errors.NotFound("Room", nil)
	}

	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	message.Seq = room.MessageSeq + 1
	message.CreatedAt = time.Now()
	if message.CreatedAt.Before(room.LastMessageAt) {
		message.CreatedAt = room.LastMessageAt
	}
	message.IsRead = false

	stored := *message
	r.messages[room.ID] = append(r.messages[room.ID], &stored)

	room.MessageSeq = message.Seq
	room.LastMessage = message.Content
	room.LastMessageAt = message.CreatedAt
	room.UpdatedAt = message.CreatedAt

	return nil
}

func (r *memoryChatRepository) ListMessagesByRoom(ctx context.Context, roomID string, limit, offset int) ([]*entity.Message, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.messages[roomID]
	total := int64(len(stored))

	// Newest first, matching the Firestore adapter
	var messages []*entity.Message
	for i := len(stored) - 1; i >= 0; i-- {
		copied := *stored[i]
		messages = append(messages, &copied)
	}

	start := offset
	if start > len(messages) {
		start = len(messages)
	}
	end := len(messages)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	return messages[start:end], total, nil
}

func (r *memoryChatRepository) MarkMessagesRead(ctx context.Context, roomID, readerID string, messageIDs []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := make(map[string]bool, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = true
	}

	var transitioned []string
	for _, message := range r.messages[roomID] {
		if !wanted[message.ID] || message.SenderID == readerID || message.IsRead {
			continue
		}
		message.IsRead = true
		transitioned = append(transitioned, message.ID)
	}

	return transitioned, nil
}

func (r *memoryChatRepository) CountUnread(ctx context.Context, partyID string, since *time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, messages := range r.messages {
		for _, message := range messages {
			if message.RecipientID != partyID || message.IsRead {
				continue
			}
			if since != nil && !message.CreatedAt.After(*since) {
				continue
			}
			count++
		}
	}
	return count, nil
}
