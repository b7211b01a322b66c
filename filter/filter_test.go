package filter

import (
	"testing"

	"github.com/creativeprojects/mailwatch/mailbox"
	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	fixtures := []struct {
		name     string
		rules    Rules
		summary  mailbox.Summary
		expected bool
	}{
		{
			"empty ruleset rejects everything",
			Rules{},
			mailbox.Summary{Subject: "anything", From: "anyone@example.org"},
			false,
		},
		{
			"subject keyword match",
			Rules{SubjectKeywords: []string{"alert"}},
			mailbox.Summary{Subject: "Weather Alert for your area"},
			true,
		},
		{
			"subject keyword is case-insensitive",
			Rules{SubjectKeywords: []string{"ALERT"}},
			mailbox.Summary{Subject: "weather alert"},
			true,
		},
		{
			"subject keyword no match",
			Rules{SubjectKeywords: []string{"alert"}},
			mailbox.Summary{Subject: "weekly newsletter"},
			false,
		},
		{
			"sender domain match",
			Rules{FromContains: []string{"@jmainfo.go.jp"}},
			mailbox.Summary{From: "JMA <bosai-jma@jmainfo.go.jp>"},
			true,
		},
		{
			"sender is case-insensitive",
			Rules{FromContains: []string{"Bosai-JMA"}},
			mailbox.Summary{From: "bosai-jma@jmainfo.go.jp"},
			true,
		},
		{
			"rules are OR-combined",
			Rules{SubjectKeywords: []string{"no such subject"}, FromContains: []string{"@example.org"}},
			mailbox.Summary{Subject: "unrelated", From: "sender@example.org"},
			true,
		},
		{
			"no rule matches",
			Rules{SubjectKeywords: []string{"alert"}, FromContains: []string{"@jmainfo.go.jp"}},
			mailbox.Summary{Subject: "invoice", From: "billing@example.org"},
			false,
		},
		{
			"blank rules are ignored",
			Rules{SubjectKeywords: []string{""}, FromContains: []string{""}},
			mailbox.Summary{Subject: "anything", From: "anyone@example.org"},
			false,
		},
	}

	for _, fixture := range fixtures {
		t.Run(fixture.name, func(t *testing.T) {
			assert.Equal(t, fixture.expected, fixture.rules.Matches(fixture.summary))
		})
	}
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, Rules{}.IsEmpty())
	assert.False(t, Rules{SubjectKeywords: []string{"alert"}}.IsEmpty())
	assert.False(t, Rules{FromContains: []string{"@example.org"}}.IsEmpty())
}
