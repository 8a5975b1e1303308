package framework

import (
	"context"
	"time"
)

// Named is implemented by things with a name for logging.
type Named interface {
	Name() string
}

// Runnable is a background activity: an event pump, a bridge, the main loop.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Controller is one step of the main loop. It must not block for long:
// every Controller of an iteration runs on the loop goroutine.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc is func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(cc ControlContext) error {
	return f(cc)
}

// ControlContext is the context of one loop iteration.
type ControlContext interface {
	// Context retrieves context.Context of the loop.
	Context() context.Context
	// Time is when the iteration started.
	Time() time.Time
	// PriorityLevel is the level of the running Controller.
	PriorityLevel() int

	LoopControl
}

// LoopControl exposes control over the loop.
type LoopControl interface {
	// TriggerNext schedules another iteration right after the current one.
	// It never blocks and may be called from any goroutine.
	TriggerNext()
}

// PriorityLevels is the number of priority levels.
const PriorityLevels int = 4

// Priority levels, lower runs first.
const (
	// PrLvRealtime runs real-time request handling.
	PrLvRealtime int = iota
	// PrLvProtocol runs line processing.
	PrLvProtocol
	// PrLvReport runs reporting.
	PrLvReport
	// PrLvIdle runs housekeeping.
	PrLvIdle
)
