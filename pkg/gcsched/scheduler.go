// Package gcsched runs gc-older-than on a recurring interval in the
// background, supplementing the on-demand GC call the store exposes.
// It holds at most one active background task at a time, stoppable via
// a channel pair.
package gcsched

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// GC is the subset of the store engine the scheduler depends on.
type GC interface {
	GCOlderThan(ctx context.Context, threshold time.Time) (int64, error)
}

// task is one running background loop. Stop signals and then blocks
// until the goroutine has actually exited.
type task struct {
	stop          chan struct{}
	notifyStopped chan struct{}
}

func (t *task) Stop() {
	t.stop <- struct{}{}
	<-t.notifyStopped
}

// Scheduler owns at most one running periodic GC loop at a time;
// starting a new one stops whatever was running before it.
type Scheduler struct {
	mu      sync.Mutex
	current *task
}

// New returns an idle scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Start runs gc.GCOlderThan(now - age) every interval until Stop is
// called or a new Start replaces it. It logs the deleted count and any
// error at each tick rather than aborting the loop.
func (s *Scheduler) Start(gc GC, interval, age time.Duration, log *logrus.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.Stop()
	}

	stop := make(chan struct{}, 1)
	notifyStopped := make(chan struct{})
	s.current = &task{stop: stop, notifyStopped: notifyStopped}

	go func() {
		defer func() { notifyStopped <- struct{}{} }()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				threshold := time.Now().Add(-age)
				deleted, err := gc.GCOlderThan(context.Background(), threshold)
				if err != nil {
					log.Errorf("scheduled gc failed: %s", err)
					continue
				}
				log.WithFields(logrus.Fields{"deleted": deleted}).Debug("scheduled gc tick")
			}
		}
	}()
}

// Stop halts the running loop, if any, and blocks until it has exited.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return
	}
	s.current.Stop()
	s.current = nil
}
