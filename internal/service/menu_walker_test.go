package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type walkRecorder struct {
	mu    sync.Mutex
	sent  []string
	times []time.Time
	fail  map[string]bool
}

func (r *walkRecorder) send(ctx context.Context, item MenuItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, item.Content)
	r.times = append(r.times, time.Now())
	if r.fail[item.Content] {
		return errors.New("send failed")
	}
	return nil
}

func (r *walkRecorder) Sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestMenuWalker_SendsInOrderWithCumulativeDelays(t *testing.T) {
	w := NewMenuWalker(quietLogger())
	defer w.Close()
	rec := &walkRecorder{}

	start := time.Now()
	w.Start(1, []MenuItem{
		{Content: "first", Delay: 20 * time.Millisecond},
		{Content: "second", Delay: 20 * time.Millisecond},
		{Content: "third"},
	}, rec.send)

	require.Eventually(t, func() bool { return len(rec.Sent()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"first", "second", "third"}, rec.Sent())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.GreaterOrEqual(t, rec.times[1].Sub(start), 40*time.Millisecond)
	require.Eventually(t, func() bool { return !w.Running(1) }, time.Second, 5*time.Millisecond)
}

func TestMenuWalker_FailedItemDoesNotAbortWalk(t *testing.T) {
	w := NewMenuWalker(quietLogger())
	defer w.Close()
	rec := &walkRecorder{fail: map[string]bool{"broken": true}}

	w.Start(1, []MenuItem{{Content: "broken"}, {Content: "after"}}, rec.send)

	require.Eventually(t, func() bool { return len(rec.Sent()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"broken", "after"}, rec.Sent())
}

func TestMenuWalker_CancelStopsBeforeNextSend(t *testing.T) {
	w := NewMenuWalker(quietLogger())
	defer w.Close()
	rec := &walkRecorder{}

	w.Start(7, []MenuItem{{Content: "now"}, {Content: "later", Delay: 100 * time.Millisecond}}, rec.send)
	require.Eventually(t, func() bool { return len(rec.Sent()) == 1 }, time.Second, 5*time.Millisecond)

	assert.True(t, w.Cancel(7))
	assert.False(t, w.Cancel(7))
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, []string{"now"}, rec.Sent())
}

func TestMenuWalker_StartReplacesRunningWalk(t *testing.T) {
	w := NewMenuWalker(quietLogger())
	defer w.Close()
	rec := &walkRecorder{}

	w.Start(3, []MenuItem{{Content: "old", Delay: 80 * time.Millisecond}}, rec.send)
	w.Start(3, []MenuItem{{Content: "new", Delay: 10 * time.Millisecond}}, rec.send)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, []string{"new"}, rec.Sent())
}

func TestMenuWalker_CloseCancelsEverything(t *testing.T) {
	w := NewMenuWalker(quietLogger())
	rec := &walkRecorder{}

	w.Start(1, []MenuItem{{Content: "a", Delay: time.Second}}, rec.send)
	w.Start(2, []MenuItem{{Content: "b", Delay: time.Second}}, rec.send)

	done := make(chan struct{})
	go func() {
		w.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Close did not return")
	}
	assert.Empty(t, rec.Sent())

	// Walks started after Close never run.
	w.Start(3, []MenuItem{{Content: "c"}}, rec.send)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.Sent())
	assert.False(t, w.Running(3))
}
