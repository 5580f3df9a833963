package model

import (
	"strconv"
	"time"
)

// Message is one entry of a conversation log. Messages are never edited.
type Message struct {
	ID         int64  `json:"id"`
	SenderID   int64  `json:"senderId" validate:"required"`
	ReceiverID int64  `json:"receiverId" validate:"required"`
	Text       string `json:"text" validate:"required"`
	// Timestamp is milliseconds since epoch, assigned at send time.
	Timestamp int64 `json:"timestamp"`
}

// Conversation is the unordered pair of participants. Low <= High always.
type Conversation struct {
	Low  int64
	High int64
}

// ConversationOf returns the conversation between a and b.
func ConversationOf(a, b int64) Conversation {
	if a > b {
		a, b = b, a
	}
	return Conversation{Low: a, High: b}
}

func (c Conversation) String() string {
	return strconv.FormatInt(c.Low, 10) + ":" + strconv.FormatInt(c.High, 10)
}

// Conversation returns the conversation the message belongs to.
func (m Message) Conversation() Conversation {
	return ConversationOf(m.SenderID, m.ReceiverID)
}

// ContentKey groups messages with the same text, sender and receiver.
func (m Message) ContentKey() string {
	return strconv.FormatInt(m.SenderID, 10) + ">" + strconv.FormatInt(m.ReceiverID, 10) + ":" + m.Text
}

// Near reports whether m and o carry the same content within window of each other.
func (m Message) Near(o Message, window time.Duration) bool {
	if m.ContentKey() != o.ContentKey() {
		return false
	}
	d := m.Timestamp - o.Timestamp
	if d < 0 {
		d = -d
	}
	return d < window.Milliseconds()
}
