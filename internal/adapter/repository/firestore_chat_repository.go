package repository

import (
	"context"
	"log"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"lapakchat/internal/domain/entity"
	"lapakchat/internal/domain/repository"
	"lapakchat/pkg/errors"
)

// Collections: rooms/{id} with messages subcollection, plus room_index/{pairKey}
// documents that pin the uniqueness of a (seller, buyer) pair. All multi-step
// writes run inside Firestore transactions; contention retries the whole
// function, which is what turns a lost create race into a lookup.
type firestoreChatRepository struct {
	client *firestore.Client
}

func NewFirestoreChatRepository(client *firestore.Client) repository.ChatRepository {
	return &firestoreChatRepository{
		client: client,
	}
}

type roomIndexDoc struct {
	RoomID string `firestore:"roomId"`
}

func (r *firestoreChatRepository) ResolveOrCreateRoom(ctx context.Context, sellerID, buyerID string) (*entity.Room, bool, error) {
	pairKey := entity.RoomPairKey(sellerID, buyerID)
	indexRef := r.client.Collection("room_index").Doc(pairKey)

	var room entity.Room
	var created bool

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		created = false

		indexSnap, err := tx.Get(indexRef)
		if err == nil {
			var idx roomIndexDoc
			if err := indexSnap.DataTo(&idx); err != nil {
				return errors.Internal("Failed to parse room index", err)
			}
			roomSnap, err := tx.Get(r.client.Collection("rooms").Doc(idx.RoomID))
			if err != nil {
				return errors.Internal("Room index points at missing room", err)
			}
			return roomSnap.DataTo(&room)
		}
		if status.Code(err) != codes.NotFound {
			return errors.Internal("Failed to read room index", err)
		}

		now := time.Now()
		room = entity.Room{
			ID:            uuid.New().String(),
			SellerID:      sellerID,
			BuyerID:       buyerID,
			PairKey:       pairKey,
			LastMessageAt: now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.Create(r.client.Collection("rooms").Doc(room.ID), &room); err != nil {
			return errors.Internal("Failed to create room", err)
		}
		if err := tx.Create(indexRef, roomIndexDoc{RoomID: room.ID}); err != nil {
			return errors.Internal("Failed to create room index", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return &room, created, nil
}

func (r *firestoreChatRepository) GetRoomByID(ctx context.Context, id string) (*entity.Room, error) {
	doc, err := r.client.Collection("rooms").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Room", err)
		}
		return nil, errors.Internal("Failed to get room", err)
	}

	var room entity.Room
	if err := doc.DataTo(&room); err != nil {
		return nil, errors.Internal("Failed to parse room data", err)
	}
	return &room, nil
}

func (r *firestoreChatRepository) ListRoomsByParticipant(ctx context.Context, userID string, limit, offset int) ([]*entity.Room, int64, error) {
	sellerDocs, err := r.client.Collection("rooms").Where("sellerId", "==", userID).Documents(ctx).GetAll()
	if err != nil {
		log.Printf("Firestore error while fetching seller rooms for user %s: %v", userID, err)
		return nil, 0, errors.Internal("Failed to fetch rooms", err)
	}
	buyerDocs, err := r.client.Collection("rooms").Where("buyerId", "==", userID).Documents(ctx).GetAll()
	if err != nil {
		log.Printf("Firestore error while fetching buyer rooms for user %s: %v", userID, err)
		return nil, 0, errors.Internal("Failed to fetch rooms", err)
	}

	var rooms []*entity.Room
	for _, doc := range append(sellerDocs, buyerDocs...) {
		var room entity.Room
		if err := doc.DataTo(&room); err != nil {
			log.Printf("Error parsing room data for user %s: %v", userID, err)
			continue
		}
		rooms = append(rooms, &room)
	}

	// Most recent activity first
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

func (r *firestoreChatRepository) AppendMessage(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}

	roomRef := r.client.Collection("rooms").Doc(message.RoomID)

	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		roomSnap, err := tx.Get(roomRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Room", err)
			}
			return errors.Internal("Failed to get room", err)
		}
		var room entity.Room
		if err := roomSnap.DataTo(&room); err != nil {
			return errors.Internal("Failed to parse room data", err)
		}

		// Server-assigned order: seq always advances, createdAt never goes
		// backwards even under clock coarseness or skew.
		message.Seq = room.MessageSeq + 1
		message.CreatedAt = time.Now()
		if message.CreatedAt.Before(room.LastMessageAt) {
			message.CreatedAt = room.LastMessageAt
		}
		message.IsRead = false

		if err := tx.Create(roomRef.Collection("messages").Doc(message.ID), message); err != nil {
			return errors.Internal("Failed to create message", err)
		}
		return tx.Update(roomRef, []firestore.Update{
			{Path: "messageSeq", Value: message.Seq},
			{Path: "lastMessage", Value: message.Content},
			{Path: "lastMessageAt", Value: message.CreatedAt},
			{Path: "updatedAt", Value: message.CreatedAt},
		})
	})
}

func (r *firestoreChatRepository) ListMessagesByRoom(ctx context.Context, roomID string, limit, offset int) ([]*entity.Message, int64, error) {
	query := r.client.Collection("rooms").Doc(roomID).Collection("messages").OrderBy("seq", firestore.Desc)

	countDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		log.Printf("Firestore error while counting messages for room %s: %v", roomID, err)
		return nil, 0, errors.Internal("Failed to count messages for room", err)
	}
	total := int64(len(countDocs))

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	iter := query.Documents(ctx)
	var messages []*entity.Message

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			log.Printf("Firestore error while iterating messages for room %s: %v", roomID, err)
			return nil, 0, errors.Internal("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			log.Printf("Error parsing message data for room %s: %v", roomID, err)
			return nil, 0, errors.Internal("Failed to parse message data", err)
		}

		messages = append(messages, &message)
	}

	return messages, total, nil
}

func (r *firestoreChatRepository) MarkMessagesRead(ctx context.Context, roomID, readerID string, messageIDs []string) ([]string, error) {
	roomRef := r.client.Collection("rooms").Doc(roomID)

	var transitioned []string

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		transitioned = transitioned[:0]

		// All reads first; writes only after the full candidate set is known,
		// so concurrent calls on overlapping ids serialize and each id
		// transitions exactly once.
		var refs []*firestore.DocumentRef
		for _, id := range messageIDs {
			msgRef := roomRef.Collection("messages").Doc(id)
			snap, err := tx.Get(msgRef)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					// Unknown id in this room - silently skip
					continue
				}
				return errors.Internal("Failed to get message", err)
			}
			var message entity.Message
			if err := snap.DataTo(&message); err != nil {
				return errors.Internal("Failed to parse message data", err)
			}
			if message.SenderID == readerID || message.IsRead {
				continue
			}
			refs = append(refs, msgRef)
			transitioned = append(transitioned, id)
		}

		for _, ref := range refs {
			if err := tx.Update(ref, []firestore.Update{{Path: "isRead", Value: true}}); err != nil {
				return errors.Internal("Failed to update message read state", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return transitioned, nil
}

func (r *firestoreChatRepository) CountUnread(ctx context.Context, partyID string, since *time.Time) (int64, error) {
	query := r.client.CollectionGroup("messages").
		Where("recipientId", "==", partyID).
		Where("isRead", "==", false)
	if since != nil {
		query = query.Where("createdAt", ">", *since)
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		log.Printf("Firestore error while counting unread for party %s: %v", partyID, err)
		return 0, errors.Internal("Failed to count unread messages", err)
	}

	return int64(len(docs)), nil
}
