package watcher

import (
	"context"

	"github.com/creativeprojects/mailwatch/dedup"
	"github.com/creativeprojects/mailwatch/filter"
	"github.com/creativeprojects/mailwatch/lib"
	"github.com/creativeprojects/mailwatch/mailbox"
)

// Session is an open connection to one mailbox folder. Generation tells
// consecutive sessions apart in the logs: state recorded against an older
// generation belongs to a connection that is already dead.
type Session interface {
	WaitForChange(ctx context.Context) (bool, error)
	FetchSince(ctx context.Context, cursor uint32) ([]mailbox.Summary, error)
	MarkSeen(uids []uint32) error
	UIDValidity() uint32
	UIDNext() uint32
	Generation() uint32
	Close() error
}

// Opener establishes a new session. The supervisor calls it on every
// connection attempt.
type Opener func() (Session, error)

// Publisher delivers a notification event. Delivery is best effort: an
// error means the event was dropped, never that it should be retried.
type Publisher interface {
	Publish(event mailbox.Event) error
}

// Tracker persists the watch position between runs.
type Tracker interface {
	Cursor() (uidValidity, uid uint32)
	SetCursor(uidValidity, uid uint32)
}

// Stats counts what happened over the life of the watch loop.
type Stats struct {
	Connections int
	Fetched     int
	Published   int
	Duplicates  int
	Filtered    int
	Errors      int
}

// Pipeline turns mailbox changes into notifications: fetch the messages
// past the cursor, drop duplicates and non-matches, publish the rest and
// advance the cursor.
type Pipeline struct {
	rules     filter.Rules
	ledger    *dedup.Ledger
	publisher Publisher
	tracker   Tracker
	bodyLimit int
	markSeen  bool
	log       lib.Logger
	stats     *Stats

	uidValidity uint32
	cursor      uint32
}

func newPipeline(cfg Config, log lib.Logger, stats *Stats) *Pipeline {
	return &Pipeline{
		rules:     cfg.Rules,
		ledger:    cfg.Ledger,
		publisher: cfg.Publisher,
		tracker:   cfg.Tracker,
		bodyLimit: cfg.BodyLimit,
		markSeen:  cfg.MarkSeen,
		log:       log,
		stats:     stats,
	}
}

// Baseline positions the cursor for a fresh session. The cursor never
// rewinds: a persisted position under the same UIDVALIDITY is kept, and a
// UIDVALIDITY change means the provider renumbered the mailbox, so the
// position restarts at the end of it instead of replaying history under
// stale numbering.
func (p *Pipeline) Baseline(session Session) {
	uidValidity := session.UIDValidity()
	storedValidity, storedUid := p.tracker.Cursor()

	var cursor uint32
	switch {
	case storedValidity == uidValidity && storedUid > 0:
		cursor = storedUid
		if p.uidValidity == uidValidity && p.cursor > cursor {
			cursor = p.cursor
		}
	case session.UIDNext() > 0:
		cursor = session.UIDNext() - 1
	}
	p.uidValidity = uidValidity
	p.cursor = cursor
	p.tracker.SetCursor(uidValidity, cursor)
	p.log.Printf("Watch position (session %d): uidvalidity=%d uid=%d", session.Generation(), uidValidity, cursor)
}

// Process fetches the messages past the cursor and publishes the ones that
// pass the filter and were not already notified. A fetch failure leaves the
// cursor untouched so the same batch is retried after the next wait cycle.
func (p *Pipeline) Process(ctx context.Context, session Session) error {
	summaries, err := session.FetchSince(ctx, p.cursor)
	if err != nil {
		return err
	}
	published := make([]uint32, 0, len(summaries))
	for _, summary := range summaries {
		if summary.Uid > p.cursor {
			p.cursor = summary.Uid
		}
		p.stats.Fetched++
		key := mailbox.DedupKey(p.uidValidity, summary.Uid)
		if p.ledger.Seen(key) {
			p.stats.Duplicates++
			continue
		}
		if !p.rules.Matches(summary) {
			p.stats.Filtered++
			p.log.Printf("Message uid=%d does not match any filter", summary.Uid)
			continue
		}
		p.ledger.Record(key)
		if err := p.publisher.Publish(mailbox.NewEvent(summary, p.bodyLimit)); err != nil {
			p.stats.Errors++
			p.log.Printf("Dropped notification for uid=%d: %s", summary.Uid, err)
			continue
		}
		p.stats.Published++
		published = append(published, summary.Uid)
	}
	p.tracker.SetCursor(p.uidValidity, p.cursor)
	if p.markSeen && len(published) > 0 {
		if err := session.MarkSeen(published); err != nil {
			p.log.Printf("Cannot mark messages as seen: %s", err)
		}
	}
	return nil
}
