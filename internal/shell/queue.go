package shell

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jask/hyprshell/internal/host"
	"github.com/jask/hyprshell/internal/session"
)

// progress tracks the highest completed sequence number of a worker.
type progress struct {
	mu      sync.Mutex
	done    uint64
	changed chan struct{}
}

func newProgress() *progress {
	return &progress{changed: make(chan struct{})}
}

func (p *progress) advance(seq uint64) {
	p.mu.Lock()
	if seq > p.done {
		p.done = seq
	}
	close(p.changed)
	p.changed = make(chan struct{})
	p.mu.Unlock()
}

func (p *progress) wait(ctx context.Context, target uint64) error {
	for {
		p.mu.Lock()
		if p.done >= target {
			p.mu.Unlock()
			return nil
		}
		ch := p.changed
		p.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// saveQueue persists state snapshots in version order. Submitting while a
// save is in flight replaces any pending snapshot, so only the newest one is
// written next and an older snapshot never lands after a newer one.
type saveQueue struct {
	save    saveFunc
	log     *slog.Logger
	timeout time.Duration

	mu         sync.Mutex
	version    uint64
	pending    *session.State
	pendingVer uint64
	saved      uint64
	closed     bool
	wake       chan struct{}

	prog *progress
	done chan struct{}
}

// saveFunc writes snapshot st, stamped with its queue version.
type saveFunc func(ctx context.Context, version uint64, st session.State) error

func newSaveQueue(save saveFunc, log *slog.Logger, timeout time.Duration) *saveQueue {
	q := &saveQueue{
		save:    save,
		log:     log,
		timeout: timeout,
		wake:    make(chan struct{}, 1),
		prog:    newProgress(),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Submit stamps st with the next version and hands it to the worker.
func (q *saveQueue) Submit(st session.State) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return q.version
	}
	q.version++
	q.pending = &st
	q.pendingVer = q.version
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return q.version
}

// Saved returns the version of the newest snapshot the host accepted.
func (q *saveQueue) Saved() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.saved
}

// Flush blocks until every snapshot submitted so far has been handled.
func (q *saveQueue) Flush(ctx context.Context) error {
	q.mu.Lock()
	target := q.version
	q.mu.Unlock()
	return q.prog.wait(ctx, target)
}

func (q *saveQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.wake)
	q.mu.Unlock()
	<-q.done
}

func (q *saveQueue) run() {
	defer close(q.done)
	for range q.wake {
		q.drain()
	}
	q.drain()
}

func (q *saveQueue) drain() {
	for {
		q.mu.Lock()
		if q.pending == nil {
			q.mu.Unlock()
			return
		}
		st, ver := *q.pending, q.pendingVer
		q.pending = nil
		stale := ver <= q.saved
		q.mu.Unlock()

		if stale {
			q.prog.advance(ver)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		err := q.save(ctx, ver, st)
		cancel()

		q.mu.Lock()
		if err == nil && ver > q.saved {
			q.saved = ver
		}
		q.mu.Unlock()
		if err != nil {
			q.log.Warn("save state failed", "version", ver, "err", host.Wrap(host.CallSaveState, err))
		} else {
			q.log.Debug("state saved", "version", ver)
		}
		q.prog.advance(ver)
	}
}

type notification struct {
	call string
	fn   func(context.Context) error
}

// outbox delivers fire-and-forget host calls one at a time in submit order.
type outbox struct {
	log     *slog.Logger
	timeout time.Duration

	mu     sync.Mutex
	items  []notification
	seq    uint64
	closed bool
	wake   chan struct{}

	prog *progress
	done chan struct{}
}

func newOutbox(log *slog.Logger, timeout time.Duration) *outbox {
	o := &outbox{
		log:     log,
		timeout: timeout,
		wake:    make(chan struct{}, 1),
		prog:    newProgress(),
		done:    make(chan struct{}),
	}
	go o.run()
	return o
}

func (o *outbox) Send(call string, fn func(context.Context) error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.seq++
	o.items = append(o.items, notification{call: call, fn: fn})
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	target := o.seq
	o.mu.Unlock()
	return o.prog.wait(ctx, target)
}

func (o *outbox) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.wake)
	o.mu.Unlock()
	<-o.done
}

func (o *outbox) run() {
	defer close(o.done)
	var handled uint64
	for range o.wake {
		handled = o.drain(handled)
	}
	o.drain(handled)
}

func (o *outbox) drain(handled uint64) uint64 {
	for {
		o.mu.Lock()
		if len(o.items) == 0 {
			o.mu.Unlock()
			return handled
		}
		n := o.items[0]
		o.items = o.items[1:]
		o.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		err := n.fn(ctx)
		cancel()
		if err != nil {
			o.log.Warn("host call failed", "call", n.call, "err", host.Wrap(n.call, err))
		}
		handled++
		o.prog.advance(handled)
	}
}
