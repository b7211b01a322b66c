package watcher

import (
	"context"
	"errors"
	"testing"

	"github.com/creativeprojects/mailwatch/dedup"
	"github.com/creativeprojects/mailwatch/filter"
	"github.com/creativeprojects/mailwatch/lib"
	"github.com/creativeprojects/mailwatch/mailbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, cfg Config, stats *Stats) *Pipeline {
	t.Helper()
	if cfg.Ledger == nil {
		cfg.Ledger = dedup.NewLedger(0)
	}
	if cfg.Tracker == nil {
		cfg.Tracker = &memoryTracker{}
	}
	if cfg.Publisher == nil {
		cfg.Publisher = &fakePublisher{}
	}
	return newPipeline(cfg, lib.NewTestLogger(t, "pipeline"), stats)
}

func TestBaselineFreshMailboxStartsAtEnd(t *testing.T) {
	tracker := &memoryTracker{}
	stats := &Stats{}
	pipeline := newTestPipeline(t, Config{Tracker: tracker}, stats)

	pipeline.Baseline(&fakeSession{uidValidity: 42, uidNext: 11})

	uidValidity, uid := tracker.Cursor()
	assert.Equal(t, uint32(42), uidValidity)
	assert.Equal(t, uint32(10), uid)
}

func TestBaselineKeepsStoredCursor(t *testing.T) {
	tracker := &memoryTracker{uidValidity: 42, uid: 7}
	stats := &Stats{}
	pipeline := newTestPipeline(t, Config{Tracker: tracker}, stats)

	pipeline.Baseline(&fakeSession{uidValidity: 42, uidNext: 11})

	uidValidity, uid := tracker.Cursor()
	assert.Equal(t, uint32(42), uidValidity)
	assert.Equal(t, uint32(7), uid)
}

func TestBaselineResetsOnUidValidityChange(t *testing.T) {
	tracker := &memoryTracker{uidValidity: 42, uid: 7}
	stats := &Stats{}
	pipeline := newTestPipeline(t, Config{Tracker: tracker}, stats)

	pipeline.Baseline(&fakeSession{uidValidity: 43, uidNext: 4})

	uidValidity, uid := tracker.Cursor()
	assert.Equal(t, uint32(43), uidValidity)
	assert.Equal(t, uint32(3), uid)
}

func TestProcessPublishesMatchingMessages(t *testing.T) {
	tracker := &memoryTracker{}
	publisher := &fakePublisher{}
	stats := &Stats{}
	pipeline := newTestPipeline(t, Config{
		Tracker:   tracker,
		Publisher: publisher,
		Rules:     filter.Rules{SubjectKeywords: []string{"alert"}},
	}, stats)

	session := &fakeSession{
		uidValidity: 42,
		uidNext:     5,
		batches: [][]mailbox.Summary{{
			{Uid: 5, Subject: "Server alert", From: "ops@example.org"},
			{Uid: 6, Subject: "Weekly digest", From: "news@example.org"},
		}},
	}
	pipeline.Baseline(session)
	err := pipeline.Process(context.Background(), session)
	require.NoError(t, err)

	events := publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, uint32(5), events[0].Uid)
	assert.Equal(t, 2, stats.Fetched)
	assert.Equal(t, 1, stats.Published)
	assert.Equal(t, 1, stats.Filtered)

	_, uid := tracker.Cursor()
	assert.Equal(t, uint32(6), uid)
}

func TestProcessSkipsDuplicates(t *testing.T) {
	publisher := &fakePublisher{}
	ledger := dedup.NewLedger(0)
	ledger.Record(mailbox.DedupKey(42, 5))
	stats := &Stats{}
	pipeline := newTestPipeline(t, Config{
		Publisher: publisher,
		Ledger:    ledger,
		Rules:     filter.Rules{SubjectKeywords: []string{"alert"}},
	}, stats)

	session := &fakeSession{
		uidValidity: 42,
		uidNext:     5,
		batches: [][]mailbox.Summary{{
			{Uid: 5, Subject: "Server alert"},
		}},
	}
	pipeline.Baseline(session)
	err := pipeline.Process(context.Background(), session)
	require.NoError(t, err)

	assert.Empty(t, publisher.published())
	assert.Equal(t, 1, stats.Duplicates)
}

func TestProcessFetchErrorKeepsCursor(t *testing.T) {
	tracker := &memoryTracker{uidValidity: 42, uid: 7}
	stats := &Stats{}
	pipeline := newTestPipeline(t, Config{Tracker: tracker}, stats)

	session := &fakeSession{
		uidValidity: 42,
		uidNext:     9,
		fetchErrs:   []error{errors.New("connection reset")},
	}
	pipeline.Baseline(session)
	err := pipeline.Process(context.Background(), session)
	require.Error(t, err)

	_, uid := tracker.Cursor()
	assert.Equal(t, uint32(7), uid)
}

func TestProcessPublishErrorDoesNotStopBatch(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("queue full")}
	tracker := &memoryTracker{}
	stats := &Stats{}
	pipeline := newTestPipeline(t, Config{
		Publisher: publisher,
		Tracker:   tracker,
		Rules:     filter.Rules{SubjectKeywords: []string{"alert"}},
	}, stats)

	session := &fakeSession{
		uidValidity: 42,
		uidNext:     5,
		batches: [][]mailbox.Summary{{
			{Uid: 5, Subject: "First alert"},
			{Uid: 6, Subject: "Second alert"},
		}},
	}
	pipeline.Baseline(session)
	err := pipeline.Process(context.Background(), session)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Errors)
	assert.Equal(t, 0, stats.Published)
	_, uid := tracker.Cursor()
	assert.Equal(t, uint32(6), uid)
}

func TestProcessMarksPublishedMessagesSeen(t *testing.T) {
	publisher := &fakePublisher{}
	stats := &Stats{}
	pipeline := newTestPipeline(t, Config{
		Publisher: publisher,
		MarkSeen:  true,
		Rules:     filter.Rules{SubjectKeywords: []string{"alert"}},
	}, stats)

	session := &fakeSession{
		uidValidity: 42,
		uidNext:     5,
		batches: [][]mailbox.Summary{{
			{Uid: 5, Subject: "Server alert"},
			{Uid: 6, Subject: "Weekly digest"},
		}},
	}
	pipeline.Baseline(session)
	err := pipeline.Process(context.Background(), session)
	require.NoError(t, err)

	require.Len(t, session.marked, 1)
	assert.Equal(t, []uint32{5}, session.marked[0])
}
