package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitAll[T any](t testing.TB, futures []*Future[T]) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, f := range futures {
		select {
		case <-f.Done():
		case <-ctx.Done():
			t.Fatal("timed out waiting for futures")
		}
	}
}

func TestNothingRunsUntilResume(t *testing.T) {
	q := New[int](Options{Concurrency: 2})
	defer q.Close()

	var calls atomic.Int32
	futures := []*Future[int]{}
	for i := 0; i < 5; i++ {
		i := i
		futures = append(futures, q.Submit(func(ctx context.Context) (int, error) {
			calls.Add(1)
			return i, nil
		}))
	}

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(0), calls.Load())
	require.Equal(t, 5, q.Len())
	require.True(t, q.Paused())

	q.Resume()
	waitAll(t, futures)
	require.Equal(t, int32(5), calls.Load())

	for i, f := range futures {
		value, err := f.Wait(context.Background())
		require.NoError(t, err)
		require.Equal(t, i, value)
	}
}

func TestConcurrencyCap(t *testing.T) {
	const limit = 3
	q := New[struct{}](Options{Concurrency: limit, StartResumed: true})
	defer q.Close()

	var current, peak atomic.Int32
	futures := []*Future[struct{}]{}
	for i := 0; i < 20; i++ {
		futures = append(futures, q.Submit(func(ctx context.Context) (struct{}, error) {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
			return struct{}{}, nil
		}))
	}

	waitAll(t, futures)
	require.LessOrEqual(t, peak.Load(), int32(limit))
	require.Greater(t, peak.Load(), int32(1))
}

func TestSingleWorkerKeepsOrder(t *testing.T) {
	q := New[int](Options{Concurrency: 1})
	defer q.Close()

	var mu sync.Mutex
	order := []int{}
	futures := []*Future[int]{}
	for i := 0; i < 10; i++ {
		i := i
		futures = append(futures, q.Submit(func(ctx context.Context) (int, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return i, nil
		}))
	}
	q.Resume()
	waitAll(t, futures)

	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestErrorsAreIsolated(t *testing.T) {
	q := New[string](Options{Concurrency: 2, StartResumed: true})
	defer q.Close()

	boom := errors.New("boom")
	failing := q.Submit(func(ctx context.Context) (string, error) {
		return "", boom
	})
	panicking := q.Submit(func(ctx context.Context) (string, error) {
		panic("oh no")
	})
	fine := q.Submit(func(ctx context.Context) (string, error) {
		return "ok", nil
	})

	_, err := failing.Wait(context.Background())
	require.ErrorIs(t, err, boom)
	_, err = panicking.Wait(context.Background())
	require.ErrorContains(t, err, "oh no")
	value, err := fine.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", value)
}

func TestTaskTimeout(t *testing.T) {
	q := New[int](Options{Concurrency: 1, StartResumed: true, TaskTimeout: 20 * time.Millisecond})
	defer q.Close()

	slow := q.Submit(func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	next := q.Submit(func(ctx context.Context) (int, error) {
		return 1, nil
	})

	_, err := slow.Wait(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	value, err := next.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, value)
}

func TestPauseStopsPickingUpTasks(t *testing.T) {
	q := New[int](Options{Concurrency: 1, StartResumed: true})
	defer q.Close()

	first := q.Submit(func(ctx context.Context) (int, error) { return 1, nil })
	_, err := first.Wait(context.Background())
	require.NoError(t, err)

	q.Pause()
	var ran atomic.Bool
	second := q.Submit(func(ctx context.Context) (int, error) {
		ran.Store(true)
		return 2, nil
	})
	time.Sleep(30 * time.Millisecond)
	require.False(t, ran.Load())

	q.Resume()
	value, err := second.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, value)
}

func TestClose(t *testing.T) {
	q := New[int](Options{Concurrency: 1})

	waiting := q.Submit(func(ctx context.Context) (int, error) { return 1, nil })
	q.Close()

	_, err := waiting.Wait(context.Background())
	require.ErrorIs(t, err, ErrClosed)

	late := q.Submit(func(ctx context.Context) (int, error) { return 1, nil })
	_, err = late.Wait(context.Background())
	require.ErrorIs(t, err, ErrClosed)

	q.Close()
}

func TestFutureThen(t *testing.T) {
	q := New[int](Options{StartResumed: true})
	defer q.Close()

	var calls atomic.Int32
	done := make(chan struct{})
	q.Submit(func(ctx context.Context) (int, error) {
		return 7, nil
	}).Then(func(value int, err error) {
		require.NoError(t, err)
		require.Equal(t, 7, value)
		calls.Add(1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("callback never fired")
	}
	require.Equal(t, int32(1), calls.Load())
}
