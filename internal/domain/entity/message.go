package entity

import "time"

type Message struct {
	ID             string    `json:"id" firestore:"id"`
	RoomID         string    `json:"room_id" firestore:"roomId"`
	SenderID       string    `json:"sender_id" firestore:"senderId"`
	RecipientID    string    `json:"recipient_id" firestore:"recipientId"` // denormalized counterpart, indexed for the unread query
	Content        string    `json:"content" firestore:"content"`
	AttachmentURL  string    `json:"attachment_url,omitempty" firestore:"attachmentUrl,omitempty"`
	AttachmentMIME string    `json:"attachment_mime,omitempty" firestore:"attachmentMime,omitempty"`
	Seq            int64     `json:"seq" firestore:"seq"`
	IsRead         bool      `json:"is_read" firestore:"isRead"`
	CreatedAt      time.Time `json:"created_at" firestore:"createdAt"`
}
