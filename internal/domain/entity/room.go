package entity

import (
	"fmt"
	"time"
)

// Room is the persistent 1:1 channel between one seller and one buyer.
// At most one room exists per (sellerId, buyerId) pair; the pair key index
// document enforces that at the persistence layer. Rooms are created lazily
// on first join/send and never deleted by this service.
type Room struct {
	ID            string    `json:"id" firestore:"id"`
	SellerID      string    `json:"seller_id" firestore:"sellerId"`
	BuyerID       string    `json:"buyer_id" firestore:"buyerId"`
	PairKey       string    `json:"-" firestore:"pairKey"`
	MessageSeq    int64     `json:"-" firestore:"messageSeq"`
	LastMessage   string    `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageAt time.Time `json:"last_message_at" firestore:"lastMessageAt"`
	CreatedAt     time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt     time.Time `json:"updated_at" firestore:"updatedAt"`
}

// HasParticipant reports whether id is the room's seller or buyer.
func (r *Room) HasParticipant(id string) bool {
	return id == r.SellerID || id == r.BuyerID
}

// OtherParticipant returns the counterpart of id in the room, or "" if id is
// not a participant.
func (r *Room) OtherParticipant(id string) string {
	switch id {
	case r.SellerID:
		return r.BuyerID
	case r.BuyerID:
		return r.SellerID
	}
	return ""
}

// RoomPairKey builds the deterministic index key for a (seller, buyer) pair.
// The seller id's length is part of the key, so ids that themselves contain
// the separator cannot make two distinct pairs collide.
func RoomPairKey(sellerID, buyerID string) string {
	return fmt.Sprintf("%d_%s_%s", len(sellerID), sellerID, buyerID)
}
