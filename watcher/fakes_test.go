package watcher

import (
	"context"
	"sync"

	"github.com/creativeprojects/mailwatch/mailbox"
)

type waitResult struct {
	changed bool
	err     error
}

// fakeSession plays a script of wait results and fetch batches. Once the
// wait script is exhausted it blocks until the context is cancelled, like a
// healthy idle connection would.
type fakeSession struct {
	mu          sync.Mutex
	waits       []waitResult
	waitIndex   int
	batches     [][]mailbox.Summary
	batchIndex  int
	fetchErrs   []error
	uidValidity uint32
	uidNext     uint32
	generation  uint32
	marked      [][]uint32
	closed      bool
}

func (f *fakeSession) WaitForChange(ctx context.Context) (bool, error) {
	f.mu.Lock()
	if f.waitIndex >= len(f.waits) {
		f.mu.Unlock()
		<-ctx.Done()
		return false, ctx.Err()
	}
	result := f.waits[f.waitIndex]
	f.waitIndex++
	f.mu.Unlock()
	if result.err != nil {
		return false, result.err
	}
	return result.changed, nil
}

func (f *fakeSession) FetchSince(ctx context.Context, cursor uint32) ([]mailbox.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.fetchErrs) > 0 {
		err := f.fetchErrs[0]
		f.fetchErrs = f.fetchErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if f.batchIndex >= len(f.batches) {
		return nil, nil
	}
	batch := f.batches[f.batchIndex]
	f.batchIndex++
	return batch, nil
}

func (f *fakeSession) MarkSeen(uids []uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, uids)
	return nil
}

func (f *fakeSession) UIDValidity() uint32 {
	return f.uidValidity
}

func (f *fakeSession) UIDNext() uint32 {
	return f.uidNext
}

func (f *fakeSession) Generation() uint32 {
	return f.generation
}

func (f *fakeSession) waitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waitIndex
}

func (f *fakeSession) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type openResult struct {
	session *fakeSession
	err     error
}

// fakeOpener returns its scripted results one by one, then keeps returning
// the last one.
type fakeOpener struct {
	mu      sync.Mutex
	results []openResult
	calls   int
}

func (o *fakeOpener) open() (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	index := o.calls
	if index >= len(o.results) {
		index = len(o.results) - 1
	}
	o.calls++
	result := o.results[index]
	if result.err != nil {
		return nil, result.err
	}
	return result.session, nil
}

func (o *fakeOpener) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

type fakePublisher struct {
	mu     sync.Mutex
	events []mailbox.Event
	err    error
}

func (p *fakePublisher) Publish(event mailbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) published() []mailbox.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]mailbox.Event(nil), p.events...)
}
