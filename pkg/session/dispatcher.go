// Package session coordinates concurrent callers of a single
// wpactrl.Client control socket. wpa_supplicant allows only one
// request in flight at a time, and Client itself documents that it is
// not safe for concurrent use; Dispatcher lets many goroutines submit
// commands concurrently while a single worker goroutine is the
// client's only caller, draining queued commands in priority order and
// pumping the client's own event/liveness loop between them.
package session

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"
	"golang.org/x/time/rate"

	"github.com/chenbd/go-wfd/pkg/wfderr"
	"github.com/chenbd/go-wfd/pkg/wpactrl"
)

// Priority orders queued commands; lower values run first.
type Priority int

const (
	// PriorityControl is for user/application-initiated commands
	// (P2P connect, group form) that should preempt background polling.
	PriorityControl Priority = iota
	// PriorityPoll is for routine status/liveness commands.
	PriorityPoll
)

// Ticket is one queued command awaiting execution on the worker goroutine.
type Ticket struct {
	ID       xid.ID
	Cmd      string
	Priority Priority
	Timeout  time.Duration
	enqueued time.Time
	reply    chan ticketResult

	index int
}

type ticketResult struct {
	data []byte
	err  error
}

type ticketHeap []*Ticket

func (h ticketHeap) Len() int { return len(h) }
func (h ticketHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].enqueued.Before(h[j].enqueued)
}
func (h ticketHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *ticketHeap) Push(x interface{}) {
	t := x.(*Ticket)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *ticketHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// eventPumpInterval is both the ticket-drain tick and the timeout
// passed to client.Dispatch on each worker wake-up, so queued commands
// never wait behind a long blocking event-socket poll.
const eventPumpInterval = 20 * time.Millisecond

// Dispatcher serializes access to a wpactrl.Client for many concurrent callers.
type Dispatcher struct {
	client  *wpactrl.Client
	logger  *slog.Logger
	limiter *rate.Limiter

	mu   sync.Mutex
	heap ticketHeap

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	work chan struct{}

	dispatchErrMu sync.Mutex
	dispatchErr   error
}

// NewDispatcher builds a Dispatcher fronting client. ratePerSec bounds
// how often the worker issues requests against the supplicant's single
// in-flight request limit (0 disables limiting). The worker goroutine
// started by Start becomes client's sole caller: it also drives
// client.Dispatch to service asynchronous events and the liveness
// probe, so no other goroutine may touch client once Start is called.
func NewDispatcher(client *wpactrl.Client, ratePerSec float64, logger *slog.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	var limiter *rate.Limiter
	if ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}
	d := &Dispatcher{
		client:  client,
		logger:  logger,
		limiter: limiter,
		ctx:     ctx,
		cancel:  cancel,
		work:    make(chan struct{}, 1),
	}
	heap.Init(&d.heap)
	return d
}

// Start launches the worker goroutine that drains queued commands and
// pumps client's event loop. client must already be open.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.workerLoop()
}

// Err returns the most recent error client.Dispatch reported from the
// worker goroutine (e.g. a closed control socket), or nil.
func (d *Dispatcher) Err() error {
	d.dispatchErrMu.Lock()
	defer d.dispatchErrMu.Unlock()
	return d.dispatchErr
}

// Stop cancels the worker and fails any commands still queued.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	for d.heap.Len() > 0 {
		t := heap.Pop(&d.heap).(*Ticket)
		t.reply <- ticketResult{err: context.Canceled}
	}
}

// Submit enqueues cmd at the given priority and blocks until it executes
// or ctx is done. It returns the reply datagram exactly as
// wpactrl.Client.Request would.
func (d *Dispatcher) Submit(ctx context.Context, cmd string, priority Priority, timeout time.Duration) ([]byte, error) {
	t := &Ticket{
		ID:       xid.New(),
		Cmd:      cmd,
		Priority: priority,
		Timeout:  timeout,
		enqueued: time.Now(),
		reply:    make(chan ticketResult, 1),
	}

	d.mu.Lock()
	heap.Push(&d.heap, t)
	depth := d.heap.Len()
	d.mu.Unlock()

	d.logger.Debug("session: command enqueued", "ticket", t.ID.String(), "cmd", cmd, "priority", priority, "queue_depth", depth)
	select {
	case d.work <- struct{}{}:
	default:
	}

	select {
	case r := <-t.reply:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.ctx.Done():
		return nil, fmt.Errorf("session: dispatcher stopped: %w: %w", wfderr.ErrNotOpen, context.Canceled)
	}
}

func (d *Dispatcher) workerLoop() {
	defer d.wg.Done()
	ticker := time.NewTicker(eventPumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-d.work:
			d.pumpAndDrain()
		case <-ticker.C:
			d.pumpAndDrain()
		}
	}
}

// pumpAndDrain services client's event/liveness loop and then drains
// queued tickets, both from the worker goroutine — the one place this
// package touches client, honoring its single-caller contract.
func (d *Dispatcher) pumpAndDrain() {
	if err := d.client.Dispatch(d.ctx, eventPumpInterval); err != nil {
		d.dispatchErrMu.Lock()
		d.dispatchErr = err
		d.dispatchErrMu.Unlock()
		d.logger.Error("session: client dispatch failed", "error", err)
	}
	d.drain()
}

func (d *Dispatcher) drain() {
	for {
		d.mu.Lock()
		if d.heap.Len() == 0 {
			d.mu.Unlock()
			return
		}
		t := heap.Pop(&d.heap).(*Ticket)
		d.mu.Unlock()

		if d.limiter != nil {
			if err := d.limiter.Wait(d.ctx); err != nil {
				t.reply <- ticketResult{err: err}
				continue
			}
		}

		start := time.Now()
		data, err := d.client.Request(d.ctx, t.Cmd, t.Timeout)
		d.logger.Debug("session: command executed",
			"ticket", t.ID.String(), "cmd", t.Cmd, "duration_ms", time.Since(start).Milliseconds(), "err", err)
		t.reply <- ticketResult{data: data, err: err}
	}
}
