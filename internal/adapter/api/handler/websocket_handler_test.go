package handler

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lapakchat/internal/adapter/repository"
	ws "lapakchat/internal/infrastructure/websocket"
	"lapakchat/internal/usecase"
	"lapakchat/pkg/config"
)

type wsFixture struct {
	handler *WebSocketHandler
	manager *ws.Manager
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()

	manager := ws.NewManager()
	identity := newFakeIdentityProvider(testSeller, testBuyer)
	uc := usecase.NewChatUseCase(
		repository.NewMemoryChatRepository(),
		newFakeFileRepo(),
		identity,
		manager,
	)
	cfg := &config.Config{WSIdleTimeout: time.Minute}

	return &wsFixture{
		handler: NewWebSocketHandler(uc, identity, manager, cfg),
		manager: manager,
	}
}

func (f *wsFixture) connect(t *testing.T, userID, role string) *ws.Client {
	t.Helper()
	client := ws.NewClient(nil, userID, role, time.Minute)
	f.manager.Register(client)
	return client
}

func frame(t *testing.T, msgType string, data interface{}) []byte {
	t.Helper()
	payload, err := ws.Marshal(msgType, data)
	require.NoError(t, err)
	return payload
}

func receiveFrame(t *testing.T, client *ws.Client) ws.Envelope {
	t.Helper()
	select {
	case raw := <-client.Send:
		var envelope ws.Envelope
		require.NoError(t, json.Unmarshal(raw, &envelope))
		return envelope
	case <-time.After(time.Second):
		t.Fatal("no frame delivered within one second")
		return ws.Envelope{}
	}
}

func TestDispatchPing(t *testing.T) {
	f := newWSFixture(t)
	client := f.connect(t, testBuyer.ID, testBuyer.Role)

	f.handler.dispatch(client, frame(t, ws.MessageTypePing, nil))

	envelope := receiveFrame(t, client)
	assert.Equal(t, ws.MessageTypePong, envelope.Type)
}

func TestDispatchMalformedEnvelope(t *testing.T) {
	f := newWSFixture(t)
	client := f.connect(t, testBuyer.ID, testBuyer.Role)

	f.handler.dispatch(client, []byte("{not json"))

	envelope := receiveFrame(t, client)
	assert.Equal(t, ws.MessageTypeError, envelope.Type)

	var errData ws.ErrorData
	require.NoError(t, json.Unmarshal(envelope.Data, &errData))
	assert.Equal(t, "INVALID_PAYLOAD", errData.Code)
}

func TestDispatchUnknownType(t *testing.T) {
	f := newWSFixture(t)
	client := f.connect(t, testBuyer.ID, testBuyer.Role)

	f.handler.dispatch(client, frame(t, "teleport", nil))

	envelope := receiveFrame(t, client)
	assert.Equal(t, ws.MessageTypeError, envelope.Type)

	var errData ws.ErrorData
	require.NoError(t, json.Unmarshal(envelope.Data, &errData))
	assert.Equal(t, "UNKNOWN_TYPE", errData.Code)
}

func TestDispatchJoinByPartyThenSend(t *testing.T) {
	f := newWSFixture(t)
	buyerConn := f.connect(t, testBuyer.ID, testBuyer.Role)

	// Joining by party id lazily creates the pair's room.
	f.handler.dispatch(buyerConn, frame(t, ws.MessageTypeJoinRoom, ws.JoinRoomData{PartyID: testSeller.ID}))

	joined := receiveFrame(t, buyerConn)
	require.Equal(t, ws.MessageTypeRoomJoined, joined.Type)
	var joinedData ws.RoomJoinedData
	require.NoError(t, json.Unmarshal(joined.Data, &joinedData))
	require.NotNil(t, joinedData.Room)
	assert.Equal(t, testSeller.ID, joinedData.Room.SellerID)
	assert.Equal(t, testBuyer.ID, joinedData.Room.BuyerID)

	// The seller's connection joins the same room by id.
	sellerConn := f.connect(t, testSeller.ID, testSeller.Role)
	f.handler.dispatch(sellerConn, frame(t, ws.MessageTypeJoinRoom, ws.JoinRoomData{RoomID: joinedData.Room.ID}))
	receiveFrame(t, sellerConn)

	f.handler.dispatch(buyerConn, frame(t, ws.MessageTypeSendMessage, ws.SendMessageData{
		RoomID:  joinedData.Room.ID,
		Content: "hello over the wire",
	}))

	for _, conn := range []*ws.Client{buyerConn, sellerConn} {
		envelope := receiveFrame(t, conn)
		assert.Equal(t, ws.MessageTypeNewMessage, envelope.Type)

		var data ws.NewMessageData
		require.NoError(t, json.Unmarshal(envelope.Data, &data))
		assert.Equal(t, "hello over the wire", data.Message.Content)
	}
}

func TestDispatchJoinForbidden(t *testing.T) {
	f := newWSFixture(t)

	buyerConn := f.connect(t, testBuyer.ID, testBuyer.Role)
	f.handler.dispatch(buyerConn, frame(t, ws.MessageTypeJoinRoom, ws.JoinRoomData{PartyID: testSeller.ID}))
	joined := receiveFrame(t, buyerConn)
	var joinedData ws.RoomJoinedData
	require.NoError(t, json.Unmarshal(joined.Data, &joinedData))

	outsider := f.connect(t, "lurker", "buyer")
	f.handler.dispatch(outsider, frame(t, ws.MessageTypeJoinRoom, ws.JoinRoomData{RoomID: joinedData.Room.ID}))

	envelope := receiveFrame(t, outsider)
	assert.Equal(t, ws.MessageTypeError, envelope.Type)

	var errData ws.ErrorData
	require.NoError(t, json.Unmarshal(envelope.Data, &errData))
	assert.Equal(t, "FORBIDDEN", errData.Code)
}

func TestDispatchMarkReadReceipt(t *testing.T) {
	f := newWSFixture(t)

	buyerConn := f.connect(t, testBuyer.ID, testBuyer.Role)
	f.handler.dispatch(buyerConn, frame(t, ws.MessageTypeJoinRoom, ws.JoinRoomData{PartyID: testSeller.ID}))
	joined := receiveFrame(t, buyerConn)
	var joinedData ws.RoomJoinedData
	require.NoError(t, json.Unmarshal(joined.Data, &joinedData))

	f.handler.dispatch(buyerConn, frame(t, ws.MessageTypeSendMessage, ws.SendMessageData{
		RoomID:  joinedData.Room.ID,
		Content: "read me",
	}))
	sent := receiveFrame(t, buyerConn)
	var sentData ws.NewMessageData
	require.NoError(t, json.Unmarshal(sent.Data, &sentData))

	sellerConn := f.connect(t, testSeller.ID, testSeller.Role)
	f.handler.dispatch(sellerConn, frame(t, ws.MessageTypeMarkRead, ws.MarkReadData{
		RoomID:     joinedData.Room.ID,
		MessageIDs: []string{sentData.Message.ID},
	}))

	receipt := receiveFrame(t, buyerConn)
	assert.Equal(t, ws.MessageTypeReadReceipt, receipt.Type)

	var receiptData ws.ReadReceiptData
	require.NoError(t, json.Unmarshal(receipt.Data, &receiptData))
	assert.Equal(t, testSeller.ID, receiptData.ReaderID)
	assert.Equal(t, []string{sentData.Message.ID}, receiptData.MessageIDs)
}

func TestDispatchAfterDropDoesNotPanic(t *testing.T) {
	f := newWSFixture(t)
	client := f.connect(t, testBuyer.ID, testBuyer.Role)

	// The manager drops a client whose buffer fills mid fan-out, closing
	// its send channel. A frame already in flight on that client's read
	// loop must still degrade cleanly, not panic.
	f.manager.Unregister(client.Handle)

	f.handler.dispatch(client, []byte("{not json"))
	f.handler.dispatch(client, frame(t, ws.MessageTypePing, nil))
	f.handler.dispatch(client, frame(t, ws.MessageTypeJoinRoom, ws.JoinRoomData{PartyID: testSeller.ID}))

	assert.Equal(t, 0, f.manager.ConnectionCount(testBuyer.ID))
}

func TestDispatchLeaveRoomStopsDelivery(t *testing.T) {
	f := newWSFixture(t)

	buyerConn := f.connect(t, testBuyer.ID, testBuyer.Role)
	f.handler.dispatch(buyerConn, frame(t, ws.MessageTypeJoinRoom, ws.JoinRoomData{PartyID: testSeller.ID}))
	joined := receiveFrame(t, buyerConn)
	var joinedData ws.RoomJoinedData
	require.NoError(t, json.Unmarshal(joined.Data, &joinedData))

	f.handler.dispatch(buyerConn, frame(t, ws.MessageTypeLeaveRoom, ws.LeaveRoomData{RoomID: joinedData.Room.ID}))

	// After leaving, the sender no longer receives room fan-out; the send
	// itself still succeeds.
	f.handler.dispatch(buyerConn, frame(t, ws.MessageTypeSendMessage, ws.SendMessageData{
		RoomID:  joinedData.Room.ID,
		Content: "into the void",
	}))

	select {
	case raw := <-buyerConn.Send:
		t.Fatalf("unexpected frame after leave: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}
