package repository

import (
	"context"
	"time"

	"lapakchat/internal/domain/entity"
)

type ChatRepository interface {
	// ResolveOrCreateRoom returns the unique room for a (seller, buyer) pair,
	// creating it when absent. Idempotent and race-safe: concurrent first-time
	// calls converge on one room. The second return value reports whether the
	// room was created by this call.
	ResolveOrCreateRoom(ctx context.Context, sellerID, buyerID string) (*entity.Room, bool, error)
	GetRoomByID(ctx context.Context, id string) (*entity.Room, error)
	ListRoomsByParticipant(ctx context.Context, userID string, limit, offset int) ([]*entity.Room, int64, error)

	// AppendMessage persists a message in the same transaction that advances
	// the room's sequence counter. The store assigns ID, Seq and CreatedAt;
	// CreatedAt is monotonically non-decreasing per room with ties broken by
	// Seq. IsRead is always persisted false.
	AppendMessage(ctx context.Context, message *entity.Message) error
	ListMessagesByRoom(ctx context.Context, roomID string, limit, offset int) ([]*entity.Message, int64, error)

	// MarkMessagesRead transitions isRead false->true for the given ids,
	// skipping ids that are missing, authored by the reader, or already read.
	// The whole set is applied in one transaction; the returned slice holds
	// the ids that actually transitioned in this call.
	MarkMessagesRead(ctx context.Context, roomID, readerID string, messageIDs []string) ([]string, error)

	// CountUnread counts persisted messages addressed to partyID with
	// isRead=false, additionally filtered to createdAt > since when non-nil.
	CountUnread(ctx context.Context, partyID string, since *time.Time) (int64, error)
}
