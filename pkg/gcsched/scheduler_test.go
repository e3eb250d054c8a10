package gcsched

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type countingGC struct {
	calls atomic.Int64
}

func (c *countingGC) GCOlderThan(_ context.Context, _ time.Time) (int64, error) {
	c.calls.Add(1)
	return 0, nil
}

// TestStartTicksAtLeastOnce is a function.
func TestStartTicksAtLeastOnce(t *testing.T) {
	gc := &countingGC{}
	s := New()
	log := logrus.NewEntry(logrus.New())

	s.Start(gc, 5*time.Millisecond, time.Hour, log)
	defer s.Stop()

	assert.Eventually(t, func() bool { return gc.calls.Load() > 0 }, time.Second, 5*time.Millisecond)
}

// TestStartReplacesPreviousLoop is a function.
func TestStartReplacesPreviousLoop(t *testing.T) {
	first := &countingGC{}
	second := &countingGC{}
	s := New()
	log := logrus.NewEntry(logrus.New())

	s.Start(first, 5*time.Millisecond, time.Hour, log)
	s.Start(second, 5*time.Millisecond, time.Hour, log)
	defer s.Stop()

	assert.Eventually(t, func() bool { return second.calls.Load() > 0 }, time.Second, 5*time.Millisecond)

	stopped := first.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, first.calls.Load(), "replaced loop must not keep ticking")
}
