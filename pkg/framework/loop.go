package framework

import (
	"context"
	"log"
	"time"

	"github.com/golang/glog"
)

// Loop is the main loop. Controllers run by priority once per Interval, or
// earlier when woken by TriggerNext (e.g. from a receive event).
type Loop struct {
	Interval time.Duration

	controllers [PriorityLevels][]Controller
	runners     []Runnable
	wakeUpCh    chan struct{}
}

// LoopAdder adds components to the loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type loopIteration struct {
	*Loop
	ctx           context.Context
	time          time.Time
	priorityLevel int
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{
		Interval: 10 * time.Millisecond,
		wakeUpCh: make(chan struct{}, 1),
	}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers at a priority level. A Controller
// which is also Runnable is started with the loop.
func (l *Loop) AddController(priorityLevel int, ctls ...Controller) *Loop {
	l.controllers[priorityLevel] = append(l.controllers[priorityLevel], ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds Runnables started with the loop.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// TriggerNext implements LoopControl.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

// Run implements Runnable. It returns when ctx is done or a Runnable fails;
// a failing Runnable stops the others.
func (l *Loop) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runner := NewRunnerWith(ctx)
	runner.Go(l.runners...)
	waitCh := make(chan error, 1)
	go func() { waitCh <- runner.Wait() }()

	interval := l.Interval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if waitCh != nil {
				<-waitCh
			}
			return ctx.Err()
		case err := <-waitCh:
			if err == nil {
				// all runnables finished, keep looping.
				waitCh = nil
				continue
			}
			return err
		case <-ticker.C:
			l.RunIteration(ctx)
		case <-l.wakeUpCh:
			l.RunIteration(ctx)
		}
	}
}

// RunOrFail runs the loop until SIGINT/SIGTERM and exits the process on
// failure.
func (l *Loop) RunOrFail() {
	runner := NewRunner().HandleSignals()
	runner.Go(l)
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}

// RunIteration runs every Controller once. It is exposed for tests and for
// callers driving the loop themselves.
func (l *Loop) RunIteration(ctx context.Context) {
	iter := &loopIteration{Loop: l, ctx: ctx, time: time.Now()}
	for lv := 0; lv < PriorityLevels; lv++ {
		iter.priorityLevel = lv
		for _, ctl := range l.controllers[lv] {
			if err := ctl.Control(iter); err != nil {
				glog.Errorf("controller error: %v", err)
			}
		}
	}
}

func (t *loopIteration) Context() context.Context { return t.ctx }
func (t *loopIteration) Time() time.Time           { return t.time }
func (t *loopIteration) PriorityLevel() int        { return t.priorityLevel }
