package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/creativeprojects/mailwatch/dedup"
	"github.com/creativeprojects/mailwatch/filter"
	"github.com/creativeprojects/mailwatch/lib"
	"github.com/creativeprojects/mailwatch/remote"
)

// DefaultMaxAuthAttempts is how many authentication rejections in a row the
// supervisor tolerates before giving up for good.
const DefaultMaxAuthAttempts = 3

const jitterFraction = 0.2

var _ Session = (*remote.Session)(nil)

// Config to create a Supervisor.
type Config struct {
	Open            Opener
	Publisher       Publisher
	Tracker         Tracker
	Ledger          *dedup.Ledger
	Rules           filter.Rules
	BodyLimit       int
	MarkSeen        bool
	MaxAuthAttempts int
	Backoff         Backoff
	OnStateChange   func(State)
	DebugLogger     lib.Logger
}

// Supervisor drives the mailbox session lifecycle: connect, watch, and on
// failure back off and reconnect. Authentication failures are bounded
// because a bad credential never heals itself; transport failures retry
// forever because the network usually does.
type Supervisor struct {
	cfg          Config
	log          lib.Logger
	pipeline     *Pipeline
	backoff      Backoff
	stateValue   int32
	authAttempts int
	stats        Stats
}

// New creates a Supervisor. The Open, Publisher and Tracker dependencies
// must be set; Ledger defaults to an in-memory ledger of default capacity.
func New(cfg Config) *Supervisor {
	log := cfg.DebugLogger
	if log == nil {
		log = &lib.NoLog{}
	}
	if cfg.Ledger == nil {
		cfg.Ledger = dedup.NewLedger(0)
	}
	if cfg.Tracker == nil {
		cfg.Tracker = &memoryTracker{}
	}
	if cfg.MaxAuthAttempts <= 0 {
		cfg.MaxAuthAttempts = DefaultMaxAuthAttempts
	}
	supervisor := &Supervisor{
		cfg:     cfg,
		log:     log,
		backoff: cfg.Backoff,
	}
	supervisor.pipeline = newPipeline(cfg, log, &supervisor.stats)
	return supervisor
}

// State returns the current connection state. Safe to call from any
// goroutine.
func (s *Supervisor) State() State {
	return State(atomic.LoadInt32(&s.stateValue))
}

// Stats returns the counters accumulated so far. Call it after Run has
// returned for a consistent view.
func (s *Supervisor) Stats() Stats {
	return s.stats
}

// Run drives the state machine until ctx is cancelled or authentication
// attempts are exhausted. It returns nil on a clean shutdown.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			s.setState(StateShuttingDown)
			return nil
		}
		s.setState(StateConnecting)
		session, err := s.cfg.Open()
		if err != nil {
			s.stats.Errors++
			if errors.Is(err, remote.ErrAuth) {
				s.authAttempts++
				s.log.Printf("Authentication failed (attempt %d of %d): %s", s.authAttempts, s.cfg.MaxAuthAttempts, err)
				if s.authAttempts >= s.cfg.MaxAuthAttempts {
					s.setState(StateFailed)
					return fmt.Errorf("giving up after %d authentication failures: %w", s.authAttempts, err)
				}
			} else {
				s.log.Printf("Cannot connect: %s", err)
			}
			if !s.waitBackoff(ctx) {
				s.setState(StateShuttingDown)
				return nil
			}
			continue
		}
		s.authAttempts = 0
		s.stats.Connections++

		err = s.watch(ctx, session)
		if closeErr := session.Close(); closeErr != nil {
			s.log.Printf("Error closing session: %s", closeErr)
		}
		if ctx.Err() != nil {
			s.setState(StateShuttingDown)
			return nil
		}
		s.stats.Errors++
		s.log.Printf("Session %d lost: %s", session.Generation(), err)
		if !s.waitBackoff(ctx) {
			s.setState(StateShuttingDown)
			return nil
		}
	}
}

// watch runs the sequential wait and fetch loop on one session. It returns
// only on a dead session or a cancelled context.
func (s *Supervisor) watch(ctx context.Context, session Session) error {
	s.pipeline.Baseline(session)
	s.setState(StateWatching)
	s.backoff.Reset()

	// the first fetch picks up whatever arrived while disconnected
	pending := true
	for {
		if pending {
			if err := s.pipeline.Process(ctx, session); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// keep the session: the batch is retried after the
				// next wait cycle, and a dead connection will surface
				// through the wait itself
				s.stats.Errors++
				s.log.Printf("Cannot fetch new messages, will retry: %s", err)
			} else {
				pending = false
			}
		}
		changed, err := session.WaitForChange(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		// a completed wait cycle, timed out or not, means the session
		// is healthy
		s.backoff.Reset()
		if changed {
			pending = true
		}
	}
}

func (s *Supervisor) waitBackoff(ctx context.Context) bool {
	s.setState(StateReconnecting)
	delay := lib.Jitter(s.backoff.Next(), jitterFraction)
	s.log.Printf("Retrying in %s (attempt %d)", delay.Truncate(time.Millisecond), s.backoff.Attempts())
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Supervisor) setState(state State) {
	if s.State() == state {
		return
	}
	atomic.StoreInt32(&s.stateValue, int32(state))
	s.log.Printf("Connection state: %s", state)
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(state)
	}
}

// memoryTracker keeps the watch position for the duration of the process
// when no store is configured.
type memoryTracker struct {
	uidValidity uint32
	uid         uint32
}

func (t *memoryTracker) Cursor() (uint32, uint32) {
	return t.uidValidity, t.uid
}

func (t *memoryTracker) SetCursor(uidValidity, uid uint32) {
	t.uidValidity = uidValidity
	t.uid = uid
}
