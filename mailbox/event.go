package mailbox

import (
	"encoding/json"
	"time"
)

// Event is the notification published to the message bus. The payload is a
// flat record so any subscriber can render it without extra lookups.
type Event struct {
	Uid       uint32 `json:"uid"`
	MessageID string `json:"message_id"`
	From      string `json:"from"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Date      string `json:"date"`
	Received  int64  `json:"received"`
}

// NewEvent builds an Event from a message summary, truncating the body to
// bodyLimit bytes when positive.
func NewEvent(summary Summary, bodyLimit int) Event {
	body := summary.Body
	if bodyLimit > 0 && len(body) > bodyLimit {
		body = body[:bodyLimit]
	}
	return Event{
		Uid:       summary.Uid,
		MessageID: summary.MessageID,
		From:      summary.From,
		Subject:   summary.Subject,
		Body:      body,
		Date:      summary.Date.Format(time.RFC1123Z),
		Received:  time.Now().Unix(),
	}
}

// Payload serializes the event for publication.
func (e Event) Payload() ([]byte, error) {
	return json.Marshal(e)
}
