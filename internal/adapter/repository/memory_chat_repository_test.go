package repository

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lapakchat/internal/domain/entity"
	"lapakchat/pkg/errors"
)

func TestResolveOrCreateRoomConvergesUnderContention(t *testing.T) {
	repo := NewMemoryChatRepository()
	ctx := context.Background()

	const racers = 16
	ids := make(chan string, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			room, _, err := repo.ResolveOrCreateRoom(ctx, "seller-1", "buyer-1")
			require.NoError(t, err)
			ids <- room.ID
		}()
	}
	wg.Wait()
	close(ids)

	first := <-ids
	for id := range ids {
		assert.Equal(t, first, id, "every racer must resolve to the same room")
	}

	// Exactly one room exists for the pair.
	rooms, total, err := repo.ListRoomsByParticipant(ctx, "seller-1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rooms, 1)
	assert.Equal(t, entity.RoomPairKey("seller-1", "buyer-1"), rooms[0].PairKey)
}

func TestDistinctPairsGetDistinctRooms(t *testing.T) {
	repo := NewMemoryChatRepository()
	ctx := context.Background()

	a, _, err := repo.ResolveOrCreateRoom(ctx, "seller-1", "buyer-1")
	require.NoError(t, err)
	b, _, err := repo.ResolveOrCreateRoom(ctx, "seller-1", "buyer-2")
	require.NoError(t, err)
	c, _, err := repo.ResolveOrCreateRoom(ctx, "seller-2", "buyer-1")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
	assert.NotEqual(t, b.ID, c.ID)
}

func TestAppendMessageAssignsMonotonicSeq(t *testing.T) {
	repo := NewMemoryChatRepository()
	ctx := context.Background()

	room, _, err := repo.ResolveOrCreateRoom(ctx, "seller-1", "buyer-1")
	require.NoError(t, err)

	const writers = 8
	const perWriter = 5

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				err := repo.AppendMessage(ctx, &entity.Message{
					RoomID:      room.ID,
					SenderID:    "buyer-1",
					RecipientID: "seller-1",
					Content:     fmt.Sprintf("w%d-%d", i, j),
				})
				require.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	messages, total, err := repo.ListMessagesByRoom(ctx, room.ID, 0, 0)
	require.NoError(t, err)
	require.Equal(t, int64(writers*perWriter), total)

	// Newest first: seq descends with no gaps or duplicates, timestamps
	// never go backwards in seq order.
	for i, message := range messages {
		assert.Equal(t, int64(len(messages)-i), message.Seq)
		if i > 0 {
			assert.False(t, messages[i-1].CreatedAt.Before(message.CreatedAt))
		}
	}

	updated, err := repo.GetRoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(writers*perWriter), updated.MessageSeq)
}

func TestAppendMessageUnknownRoom(t *testing.T) {
	repo := NewMemoryChatRepository()

	err := repo.AppendMessage(context.Background(), &entity.Message{RoomID: "ghost"})
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}

func TestMarkMessagesReadFilters(t *testing.T) {
	repo := NewMemoryChatRepository()
	ctx := context.Background()

	room, _, err := repo.ResolveOrCreateRoom(ctx, "seller-1", "buyer-1")
	require.NoError(t, err)

	fromBuyer := &entity.Message{RoomID: room.ID, SenderID: "buyer-1", RecipientID: "seller-1", Content: "hi"}
	fromSeller := &entity.Message{RoomID: room.ID, SenderID: "seller-1", RecipientID: "buyer-1", Content: "yo"}
	require.NoError(t, repo.AppendMessage(ctx, fromBuyer))
	require.NoError(t, repo.AppendMessage(ctx, fromSeller))

	// The seller reads: their own message and unknown ids are skipped.
	transitioned, err := repo.MarkMessagesRead(ctx, room.ID, "seller-1", []string{fromBuyer.ID, fromSeller.ID, "ghost"})
	require.NoError(t, err)
	assert.Equal(t, []string{fromBuyer.ID}, transitioned)

	// Already read: nothing transitions on retry.
	transitioned, err = repo.MarkMessagesRead(ctx, room.ID, "seller-1", []string{fromBuyer.ID})
	require.NoError(t, err)
	assert.Empty(t, transitioned)
}

func TestCountUnreadMatchesReferenceScan(t *testing.T) {
	repo := NewMemoryChatRepository()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	parties := []string{"seller-1", "seller-2", "buyer-1", "buyer-2"}
	var rooms []*entity.Room
	for _, sellerID := range []string{"seller-1", "seller-2"} {
		for _, buyerID := range []string{"buyer-1", "buyer-2"} {
			room, _, err := repo.ResolveOrCreateRoom(ctx, sellerID, buyerID)
			require.NoError(t, err)
			rooms = append(rooms, room)
		}
	}

	// Randomized sends and reads, with an independent tally of what should
	// still be unread per party.
	unread := make(map[string]map[string]bool) // party -> message id set
	for _, party := range parties {
		unread[party] = make(map[string]bool)
	}

	for i := 0; i < 200; i++ {
		room := rooms[rng.Intn(len(rooms))]
		senderID, recipientID := room.SellerID, room.BuyerID
		if rng.Intn(2) == 0 {
			senderID, recipientID = recipientID, senderID
		}

		message := &entity.Message{
			RoomID:      room.ID,
			SenderID:    senderID,
			RecipientID: recipientID,
			Content:     fmt.Sprintf("m%d", i),
		}
		require.NoError(t, repo.AppendMessage(ctx, message))
		unread[recipientID][message.ID] = true

		if rng.Intn(4) == 0 {
			var pending []string
			for id := range unread[recipientID] {
				pending = append(pending, id)
			}
			transitioned, err := repo.MarkMessagesRead(ctx, room.ID, recipientID, pending)
			require.NoError(t, err)
			for _, id := range transitioned {
				delete(unread[recipientID], id)
			}
		}
	}

	for _, party := range parties {
		count, err := repo.CountUnread(ctx, party, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(len(unread[party])), count, "unread count for %s", party)
	}
}

func TestListRoomsByRecentActivity(t *testing.T) {
	repo := NewMemoryChatRepository()
	ctx := context.Background()

	first, _, err := repo.ResolveOrCreateRoom(ctx, "seller-1", "buyer-1")
	require.NoError(t, err)
	second, _, err := repo.ResolveOrCreateRoom(ctx, "seller-1", "buyer-2")
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, repo.AppendMessage(ctx, &entity.Message{
		RoomID:      first.ID,
		SenderID:    "buyer-1",
		RecipientID: "seller-1",
		Content:     "bump",
	}))

	rooms, total, err := repo.ListRoomsByParticipant(ctx, "seller-1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, rooms, 2)
	assert.Equal(t, first.ID, rooms[0].ID, "the room with the newest message sorts first")
	assert.Equal(t, second.ID, rooms[1].ID)

	page, total, err := repo.ListRoomsByParticipant(ctx, "seller-1", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, page, 1)
	assert.Equal(t, second.ID, page[0].ID)
}

func TestGetRoomByIDUnknown(t *testing.T) {
	repo := NewMemoryChatRepository()

	_, err := repo.GetRoomByID(context.Background(), "ghost")
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}
