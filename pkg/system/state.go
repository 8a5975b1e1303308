package system

import (
	"strings"

	"go.uber.org/atomic"
)

// State is the run state of the machine. Idle is zero, other states are bits
// so that checks like "in motion" are a single mask test.
type State uint32

// States.
const (
	StateIdle  State = 0
	StateAlarm State = 1 << (iota - 1)
	StateCheckMode
	StateHoming
	StateCycle
	StateHold
	StateJog
	StateSafetyDoor
	StateSleep
)

// StateMotion covers states in which axes may be moving.
const StateMotion = StateCycle | StateHoming | StateJog

var stateNames = []struct {
	s    State
	name string
}{
	{StateAlarm, "Alarm"},
	{StateCheckMode, "Check"},
	{StateHoming, "Home"},
	{StateCycle, "Run"},
	{StateHold, "Hold"},
	{StateJog, "Jog"},
	{StateSafetyDoor, "Door"},
	{StateSleep, "Sleep"},
}

// Has indicates any of the bits in mask are set.
func (s State) Has(mask State) bool {
	return s&mask != 0
}

// String returns the name used in status reports.
func (s State) String() string {
	if s == StateIdle {
		return "Idle"
	}
	var names []string
	for _, n := range stateNames {
		if s&n.s != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// Alarm codes.
const (
	AlarmNone       uint32 = 0
	AlarmAbortCycle uint32 = 3
)

// System is the process-wide execution state: the real-time flags set by the
// serial receive path and the run state owned by the main loop.
type System struct {
	Flags

	state atomic.Uint32
	alarm atomic.Uint32
}

// New creates a System in Idle.
func New() *System {
	return &System{}
}

// State implements FlagSink.
func (s *System) State() State {
	return State(s.state.Load())
}

// SetState changes the run state. Only the main loop calls it.
func (s *System) SetState(st State) {
	s.state.Store(uint32(st))
}

// Alarm returns the pending alarm code.
func (s *System) Alarm() uint32 {
	return s.alarm.Load()
}

// SetAlarm sets or clears (AlarmNone) the alarm code.
func (s *System) SetAlarm(code uint32) {
	s.alarm.Store(code)
}

// MotionReset implements FlagSink. A reset requested while axes may be moving
// also raises an abort-cycle alarm since position can no longer be trusted.
func (s *System) MotionReset() {
	if s.ExecState()&ExecReset != 0 {
		return
	}
	if s.State().Has(StateMotion) {
		s.alarm.Store(AlarmAbortCycle)
	}
	s.SetExecState(ExecReset)
}

// Aborted implements FlagSink.
func (s *System) Aborted() bool {
	return s.ExecState()&ExecReset != 0
}
