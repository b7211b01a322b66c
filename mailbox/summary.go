package mailbox

import (
	"strconv"
	"time"
)

// Summary holds the fields of a message needed for filtering and
// notification. It is built once by the fetch and never modified.
type Summary struct {
	// The message unique identifier within the selected mailbox.
	Uid uint32
	// The Message-Id header, when present.
	MessageID string
	// The sender, formatted as "Name <address>".
	From string
	// The decoded subject line.
	Subject string
	// The text body, possibly empty when the message could not be parsed.
	Body string
	// The date the message was received by the server.
	Date time.Time
}

// DedupKey identifies a message across refetches of the same mailbox.
// The UIDVALIDITY value scopes the UID: a mailbox reset produces new keys.
func DedupKey(uidValidity, uid uint32) string {
	return strconv.FormatUint(uint64(uidValidity), 10) + "/" + strconv.FormatUint(uint64(uid), 10)
}
