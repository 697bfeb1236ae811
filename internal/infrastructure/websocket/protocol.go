package websocket

import (
	"encoding/json"
	"time"

	"lapakchat/internal/domain/entity"
)

// Client-to-server operations and server-to-client notifications. The wire
// framing is a JSON envelope with a type tag and a type-specific payload.
const (
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeJoinRoom    = "join_room"
	MessageTypeLeaveRoom   = "leave_room"
	MessageTypeSendMessage = "send_message"
	MessageTypeMarkRead    = "mark_read"
	MessageTypeRoomJoined  = "room_joined"
	MessageTypeNewMessage  = "new_message"
	MessageTypeReadReceipt = "read_receipt"
	MessageTypeError       = "error"
)

type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// JoinRoomData joins by room id, or by the other party's id for lazy
// find-or-create of the pair's room.
type JoinRoomData struct {
	RoomID  string `json:"room_id,omitempty"`
	PartyID string `json:"party_id,omitempty"`
}

type LeaveRoomData struct {
	RoomID string `json:"room_id"`
}

type SendMessageData struct {
	RoomID         string `json:"room_id"`
	Content        string `json:"content"`
	AttachmentURL  string `json:"attachment_url,omitempty"`
	AttachmentMIME string `json:"attachment_mime,omitempty"`
}

type MarkReadData struct {
	RoomID     string   `json:"room_id"`
	MessageIDs []string `json:"message_ids"`
}

type RoomJoinedData struct {
	Room *entity.Room `json:"room"`
}

type NewMessageData struct {
	Message *entity.Message `json:"message"`
}

type ReadReceiptData struct {
	RoomID     string   `json:"room_id"`
	MessageIDs []string `json:"message_ids"`
	ReaderID   string   `json:"reader_id"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Marshal builds a wire frame for the given type and payload.
func Marshal(msgType string, data interface{}) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = encoded
	}
	return json.Marshal(Envelope{
		Type:      msgType,
		Data:      raw,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
