// Package filter decides which messages deserve a notification.
package filter

import (
	"strings"

	"github.com/creativeprojects/mailwatch/mailbox"
)

// Rules is an ordered set of predicates combined with a logical OR: any
// single rule matching accepts the message. All comparisons are
// case-insensitive. An empty ruleset matches nothing.
type Rules struct {
	// SubjectKeywords match when the subject contains the keyword.
	SubjectKeywords []string
	// FromContains match when the sender contains the value, typically a
	// full address or a domain.
	FromContains []string
}

func (r Rules) IsEmpty() bool {
	return len(r.SubjectKeywords) == 0 && len(r.FromContains) == 0
}

// Matches reports whether any rule accepts the message.
func (r Rules) Matches(summary mailbox.Summary) bool {
	subject := strings.ToLower(summary.Subject)
	from := strings.ToLower(summary.From)

	for _, keyword := range r.SubjectKeywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(subject, strings.ToLower(keyword)) {
			return true
		}
	}
	for _, sender := range r.FromContains {
		if sender == "" {
			continue
		}
		if strings.Contains(from, strings.ToLower(sender)) {
			return true
		}
	}
	return false
}
