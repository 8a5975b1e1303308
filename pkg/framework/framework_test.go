package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil, nil).Aggregate())
	errA := errors.New("a")
	errs.Add(errA)
	require.EqualError(t, errs.Aggregate(), "a")
	errs.Add(errors.New("b"))
	err := errs.Aggregate()
	require.EqualError(t, err, "multiple errors:\n  a\n  b")
	require.True(t, errors.Is(err, errA))
}

func TestRunnerFailureCancelsOthers(t *testing.T) {
	errBoom := errors.New("boom")
	r := NewRunner()
	r.Go(
		NamedRun("waiter", RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})),
		NamedRun("failer", RunFunc(func(ctx context.Context) error {
			return errBoom
		})),
	)
	err := r.Wait()
	require.EqualError(t, err, "boom")
	require.True(t, errors.Is(err, errBoom))
}

func TestLoopTriggerNext(t *testing.T) {
	l := NewLoop()
	l.Interval = time.Hour
	iterCh := make(chan int, 8)
	var levels []int
	l.AddController(PrLvIdle, ControlFunc(func(cc ControlContext) error {
		levels = append(levels, cc.PriorityLevel())
		iterCh <- len(levels)
		return nil
	}))
	l.AddController(PrLvRealtime, ControlFunc(func(cc ControlContext) error {
		levels = append(levels, cc.PriorityLevel())
		return errors.New("logged only")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	l.TriggerNext()
	select {
	case n := <-iterCh:
		require.Equal(t, 2, n)
	case <-time.After(time.Second):
		t.Fatal("iteration not triggered")
	}
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
	require.Equal(t, []int{PrLvRealtime, PrLvIdle}, levels)
}

func TestLoopStopsOnRunnableError(t *testing.T) {
	errBoom := errors.New("boom")
	l := NewLoop().AddRunnable(RunFunc(func(ctx context.Context) error {
		return errBoom
	}))
	select {
	case err := <-runAsync(l):
		require.True(t, errors.Is(err, errBoom))
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestRunWithContextCloser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &chanCloser{ch: make(chan struct{})}
	errCh := make(chan error, 1)
	go func() {
		errCh <- RunWithContextCloser(ctx, c, func() error {
			<-c.ch
			return errors.New("closed")
		})
	}()
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}

type chanCloser struct {
	ch chan struct{}
}

func (c *chanCloser) Close() error {
	select {
	case <-c.ch:
	default:
		close(c.ch)
	}
	return nil
}

func runAsync(r Runnable) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- r.Run(context.Background()) }()
	return ch
}
