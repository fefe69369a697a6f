package relay

import "time"

// Message is a chat line handed from one sender to every parked reader.
// It is never stored; once Publish returns, the registry forgets it.
type Message struct {
	Text     string
	SenderID string
	Avatar   string
	Color    string
	SentAt   time.Time
}
