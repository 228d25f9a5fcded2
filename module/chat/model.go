package chat

import "time"

// Message is one chat message. Append-only: nothing mutates after insert
// except ReadAt being set once. Ids are snowflakes, so id order is time
// order — the history cursor leans on that.
type Message struct {
	ID         int64      `bson:"_id" json:"id"`
	SenderID   int64      `bson:"sender_id" json:"senderId"`
	ReceiverID int64      `bson:"receiver_id" json:"receiverId"`
	Content    string     `bson:"content" json:"content"`
	CreatedAt  time.Time  `bson:"created_at" json:"createdAt"`
	ReadAt     *time.Time `bson:"read_at,omitempty" json:"readAt,omitempty"`
}

const CollectionName = "chat_messages"
