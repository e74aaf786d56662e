package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MenuSender delivers one menu item. It receives the walk's context, which
// is cancelled when the walk is.
type MenuSender func(ctx context.Context, item MenuItem) error

// MenuWalker sends composed menu sequences in the background, one job per
// ticket. Starting a job for a ticket, or cancelling it, stops the job
// already running for that ticket before its next send.
type MenuWalker struct {
	logger *logrus.Logger

	mu     sync.Mutex
	jobs   map[int64]*walkJob
	nextID uint64
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type walkJob struct {
	id     uint64
	cancel context.CancelFunc
}

func NewMenuWalker(logger *logrus.Logger) *MenuWalker {
	if logger == nil {
		logger = logrus.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MenuWalker{
		logger: logger,
		jobs:   make(map[int64]*walkJob),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start walks items for ticketID, waiting each item's delay before its
// send. Delays are cumulative. A failed send is logged and the walk goes
// on with the next item.
func (w *MenuWalker) Start(ticketID int64, items []MenuItem, send MenuSender) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || len(items) == 0 {
		return
	}
	if prev, ok := w.jobs[ticketID]; ok {
		prev.cancel()
	}

	w.nextID++
	ctx, cancel := context.WithCancel(w.ctx)
	job := &walkJob{id: w.nextID, cancel: cancel}
	w.jobs[ticketID] = job

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.finish(ticketID, job)
		w.walk(ctx, ticketID, items, send)
	}()
}

func (w *MenuWalker) walk(ctx context.Context, ticketID int64, items []MenuItem, send MenuSender) {
	for i, item := range items {
		if item.Delay > 0 {
			timer := time.NewTimer(item.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			return
		}

		if err := send(ctx, item); err != nil {
			w.logger.WithFields(logrus.Fields{
				"ticket_id": ticketID,
				"item":      i,
			}).WithError(err).Warn("Failed to send menu item")
		}
	}
}

func (w *MenuWalker) finish(ticketID int64, job *walkJob) {
	job.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()
	if current, ok := w.jobs[ticketID]; ok && current.id == job.id {
		delete(w.jobs, ticketID)
	}
}

// Cancel stops the walk running for ticketID. It reports whether there
// was one.
func (w *MenuWalker) Cancel(ticketID int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	job, ok := w.jobs[ticketID]
	if !ok {
		return false
	}
	job.cancel()
	delete(w.jobs, ticketID)
	return true
}

// Running reports whether a walk is in progress for ticketID.
func (w *MenuWalker) Running(ticketID int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.jobs[ticketID]
	return ok
}

// Close cancels every walk and waits for them to return.
func (w *MenuWalker) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
}
