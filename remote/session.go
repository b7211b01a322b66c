package remote

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/creativeprojects/mailwatch/lib"
	"github.com/creativeprojects/mailwatch/mailbox"
	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

const (
	// DefaultIdleTimeout shortens the wait well under the shortest known
	// provider limit (Gmail drops idle sessions before 29 minutes).
	DefaultIdleTimeout = 5 * time.Minute

	updateBuffer = 64
)

// incremented on every Open so stale sessions can be told apart
var generationCounter uint32

type Config struct {
	ServerURL string
	Username  string
	Password  string
	// AccessToken switches authentication to SASL XOAUTH2.
	AccessToken string
	Folder      string
	IdleTimeout time.Duration
	// MarkSeen selects the folder read-write so published messages can be
	// flagged \Seen. Default is a read-only select.
	MarkSeen            bool
	NoTLS               bool
	SkipTLSVerification bool
	DebugLogger         lib.Logger
}

// Session owns one authenticated connection to the mailbox provider with
// one folder selected. A session that returned ErrSession is dead: open a
// new one instead of retrying.
type Session struct {
	client       *client.Client
	log          lib.Logger
	folder       string
	idleTimeout  time.Duration
	updates      chan client.Update
	generation   uint32
	uidValidity  uint32
	uidNext      uint32
	lastActivity time.Time
}

func Open(cfg Config) (*Session, error) {
	log := cfg.DebugLogger
	if log == nil {
		log = &lib.NoLog{}
	}
	if cfg.ServerURL == "" || cfg.Username == "" {
		return nil, errors.New("missing information from Config object")
	}
	if cfg.Password == "" && cfg.AccessToken == "" {
		return nil, errors.New("missing password or access token from Config object")
	}
	folder := cfg.Folder
	if folder == "" {
		folder = "INBOX"
	}
	idleTimeout := cfg.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}

	var imapClient *client.Client
	var err error
	log.Printf("Connecting to server %s...", cfg.ServerURL)
	if cfg.NoTLS {
		imapClient, err = client.Dial(cfg.ServerURL)
	} else {
		tlsConfig := &tls.Config{}
		if cfg.SkipTLSVerification {
			tlsConfig.InsecureSkipVerify = true
		}
		imapClient, err = client.DialTLS(cfg.ServerURL, tlsConfig)
	}
	if err != nil {
		return nil, transportError(fmt.Errorf("cannot connect to server %s: %w", cfg.ServerURL, err))
	}
	log.Print("Connected")

	if cfg.AccessToken != "" {
		err = imapClient.Authenticate(NewXOAuth2(cfg.Username, cfg.AccessToken))
	} else {
		err = imapClient.Login(cfg.Username, cfg.Password)
	}
	if err != nil {
		_ = imapClient.Logout()
		return nil, authError(err)
	}
	log.Printf("Logged in as %s", cfg.Username)

	status, err := imapClient.Select(folder, !cfg.MarkSeen)
	if err != nil {
		_ = imapClient.Logout()
		return nil, sessionError(fmt.Errorf("cannot select folder %q: %w", folder, err))
	}
	log.Printf("Selected folder %q: %d messages, uidvalidity=%d, uidnext=%d",
		folder, status.Messages, status.UidValidity, status.UidNext)

	updates := make(chan client.Update, updateBuffer)
	imapClient.Updates = updates

	return &Session{
		client:       imapClient,
		log:          log,
		folder:       folder,
		idleTimeout:  idleTimeout,
		updates:      updates,
		generation:   atomic.AddUint32(&generationCounter, 1),
		uidValidity:  status.UidValidity,
		uidNext:      status.UidNext,
		lastActivity: time.Now(),
	}, nil
}

// Generation identifies this session: it increments on every Open, so a
// position or event recorded against an older generation belongs to a dead
// session.
func (s *Session) Generation() uint32 {
	return s.generation
}

func (s *Session) UIDValidity() uint32 {
	return s.uidValidity
}

func (s *Session) UIDNext() uint32 {
	return s.uidNext
}

func (s *Session) Close() error {
	s.log.Printf("Closing connection (idle for %s)", time.Since(s.lastActivity).Truncate(time.Second))
	return s.client.Logout()
}

// WaitForChange blocks until the mailbox reports a change, the soft idle
// deadline elapses, or ctx is cancelled. It returns true when new messages
// may be present. A false return with no error is a synthetic timeout: the
// provider silently drops a wait held too long, so the session bounds it
// well under the provider limit and the caller reissues the wait on every
// return.
func (s *Session) WaitForChange(ctx context.Context) (bool, error) {
	stop := make(chan struct{})
	stopped := false
	halt := func() {
		if !stopped {
			close(stop)
			stopped = true
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- s.client.Idle(stop, nil)
	}()

	timer := time.NewTimer(s.idleTimeout)
	defer timer.Stop()

	changed := false
	for {
		select {
		case update := <-s.updates:
			if isMailboxChange(update) {
				changed = true
				halt()
			}
		case <-timer.C:
			s.log.Printf("No change after %s, reissuing wait", s.idleTimeout)
			halt()
		case <-ctx.Done():
			halt()
			<-done
			return false, ctx.Err()
		case err := <-done:
			if s.drainUpdates() {
				changed = true
			}
			if err != nil {
				return false, sessionError(err)
			}
			s.lastActivity = time.Now()
			return changed, nil
		}
	}
}

// drainUpdates consumes updates buffered while the idle command was
// stopping, so a change arriving late is not lost.
func (s *Session) drainUpdates() bool {
	changed := false
	for {
		select {
		case update := <-s.updates:
			if isMailboxChange(update) {
				changed = true
			}
		default:
			return changed
		}
	}
}

func isMailboxChange(update client.Update) bool {
	switch update.(type) {
	case *client.MailboxUpdate, *client.MessageUpdate:
		return true
	}
	return false
}

// FetchSince returns a summary of every message with a UID strictly greater
// than cursor, in mailbox order. A message that cannot be parsed keeps its
// envelope fields empty instead of failing the whole batch.
func (s *Session) FetchSince(ctx context.Context, cursor uint32) ([]mailbox.Summary, error) {
	seqset := new(imap.SeqSet)
	seqset.AddRange(cursor+1, 0)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	receiver := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqset, items, receiver)
	}()

	summaries := make([]mailbox.Summary, 0, 10)
	for msg := range receiver {
		// a UID range fetch always returns the last message of the
		// mailbox, even when it is older than the cursor
		if msg.Uid <= cursor {
			continue
		}
		summary := mailbox.Summary{
			Uid:  msg.Uid,
			Date: msg.InternalDate,
		}
		body := msg.GetBody(section)
		if body == nil {
			s.log.Printf("No body returned for uid %d", msg.Uid)
			summaries = append(summaries, summary)
			continue
		}
		content, err := parseMessage(body)
		if err != nil {
			s.log.Printf("Cannot parse message uid %d: %s", msg.Uid, err)
		}
		summary.MessageID = content.messageID
		summary.From = content.from
		summary.Subject = content.subject
		summary.Body = content.body
		if !content.date.IsZero() {
			summary.Date = content.date
		}
		summaries = append(summaries, summary)
	}

	if err := <-done; err != nil {
		return nil, sessionError(fmt.Errorf("cannot fetch messages: %w", err))
	}
	s.lastActivity = time.Now()
	s.log.Printf("Fetched %d new message(s) after uid %d", len(summaries), cursor)
	return summaries, nil
}

// MarkSeen flags the messages as read. Only valid when the session was
// opened with MarkSeen set.
func (s *Session) MarkSeen(uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}
	if err := s.client.UidStore(seqset, item, flags, nil); err != nil {
		return sessionError(fmt.Errorf("cannot mark messages as seen: %w", err))
	}
	return nil
}
