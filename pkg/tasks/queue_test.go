package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRunsTasks(t *testing.T) {
	q := New(Options{Workers: 2, Logger: zerolog.Nop()})
	q.Start()

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.True(t, q.Enqueue(Task{Name: "notify", Run: func(context.Context) error {
			ran.Add(1)
			return nil
		}}))
	}
	require.NoError(t, q.Stop(context.Background()))
	assert.Equal(t, int32(10), ran.Load())
	assert.Empty(t, q.Failures())
}

func TestQueueFailureLog(t *testing.T) {
	var buf bytes.Buffer
	q := New(Options{Workers: 1, Logger: zerolog.New(&buf)})
	q.Start()

	q.Enqueue(Task{Name: "push", Run: func(context.Context) error { return errors.New("endpoint unreachable") }})
	q.Enqueue(Task{Name: "panic", Run: func(context.Context) error { panic("boom") }})
	q.Enqueue(Task{Name: "ok", Run: func(context.Context) error { return nil }})
	require.NoError(t, q.Stop(context.Background()))

	failures := q.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, "push", failures[0].Task)
	assert.Equal(t, "endpoint unreachable", failures[0].Err)
	assert.Equal(t, "panic", failures[1].Task)
	assert.Contains(t, buf.String(), "side effect failed")
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := New(Options{Workers: 1, Buffer: 1, Logger: zerolog.Nop()})

	// Not started: the single buffer slot fills and the next task is dropped.
	assert.True(t, q.Enqueue(Task{Name: "a", Run: func(context.Context) error { return nil }}))
	assert.False(t, q.Enqueue(Task{Name: "b", Run: func(context.Context) error { return nil }}))

	failures := q.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "b", failures[0].Task)
	assert.Equal(t, ErrQueueFull.Error(), failures[0].Err)

	q.Start()
	require.NoError(t, q.Stop(context.Background()))
}

func TestQueueEnqueueAfterStop(t *testing.T) {
	q := New(Options{Logger: zerolog.Nop()})
	q.Start()
	require.NoError(t, q.Stop(context.Background()))

	assert.False(t, q.Enqueue(Task{Name: "late", Run: func(context.Context) error { return nil }}))
	require.Len(t, q.Failures(), 1)
	assert.Equal(t, ErrStopped.Error(), q.Failures()[0].Err)
}

func TestQueueStopWithoutStart(t *testing.T) {
	q := New(Options{Logger: zerolog.Nop()})

	var ran atomic.Int32
	for _, name := range []string{"notify", "push"} {
		require.True(t, q.Enqueue(Task{Name: name, Run: func(context.Context) error {
			ran.Add(1)
			return nil
		}}))
	}
	require.NoError(t, q.Stop(context.Background()))

	failures := q.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, "notify", failures[0].Task)
	assert.Equal(t, "push", failures[1].Task)
	assert.Equal(t, ErrStopped.Error(), failures[1].Err)
	assert.Zero(t, ran.Load())

	q.Start()
	require.NoError(t, q.Stop(context.Background()))
	assert.Len(t, q.Failures(), 2, "a second stop records nothing")
}

func TestQueueTaskTimeout(t *testing.T) {
	q := New(Options{Workers: 1, TaskTimeout: 20 * time.Millisecond, Logger: zerolog.Nop()})
	q.Start()

	q.Enqueue(Task{Name: "slow", Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	require.NoError(t, q.Stop(context.Background()))
	require.Len(t, q.Failures(), 1)
	assert.Equal(t, context.DeadlineExceeded.Error(), q.Failures()[0].Err)
}

func TestQueueStopDeadline(t *testing.T) {
	q := New(Options{Workers: 1, TaskTimeout: time.Minute, Logger: zerolog.Nop()})
	q.Start()

	started := make(chan struct{})
	q.Enqueue(Task{Name: "blocked", Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Stop(ctx), context.DeadlineExceeded)
}

func TestFailureLogWraps(t *testing.T) {
	q := New(Options{FailureLog: 3, Logger: zerolog.Nop()})
	for i := 0; i < 5; i++ {
		q.fail(fmt.Sprintf("t%d", i), errors.New("x"))
	}
	var names []string
	for _, f := range q.Failures() {
		names = append(names, f.Task)
	}
	assert.Equal(t, []string{"t2", "t3", "t4"}, names)
}
