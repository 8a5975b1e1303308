package system

import "github.com/robotalks/rtserial/pkg/realtime"

// FlagSink receives real-time requests from the serial receive path.
// Implementations must be safe to call from an event context: no blocking.
type FlagSink interface {
	SetExecState(ExecState)
	SetMotionOverride(MotionOverride)
	SetAccessoryOverride(AccessoryOverride)
	SetDebug(Debug)
	// MotionReset requests a system reset.
	MotionReset()
	// State returns the current run state.
	State() State
	// Aborted indicates a reset is pending. Blocking writers give up on it.
	Aborted() bool
}

var (
	execBits = map[realtime.Kind]ExecState{
		realtime.StatusReport: ExecStatusReport,
		realtime.CycleStart:   ExecCycleStart,
		realtime.FeedHold:     ExecFeedHold,
		realtime.SafetyDoor:   ExecSafetyDoor,
	}
	motionBits = map[realtime.Kind]MotionOverride{
		realtime.FeedOvrReset:       ExecFeedOvrReset,
		realtime.FeedOvrCoarsePlus:  ExecFeedOvrCoarsePlus,
		realtime.FeedOvrCoarseMinus: ExecFeedOvrCoarseMinus,
		realtime.FeedOvrFinePlus:    ExecFeedOvrFinePlus,
		realtime.FeedOvrFineMinus:   ExecFeedOvrFineMinus,
		realtime.RapidOvrReset:      ExecRapidOvrReset,
		realtime.RapidOvrMedium:     ExecRapidOvrMedium,
		realtime.RapidOvrLow:        ExecRapidOvrLow,
	}
	accessoryBits = map[realtime.Kind]AccessoryOverride{
		realtime.SpindleOvrReset:       ExecSpindleOvrReset,
		realtime.SpindleOvrCoarsePlus:  ExecSpindleOvrCoarsePlus,
		realtime.SpindleOvrCoarseMinus: ExecSpindleOvrCoarseMinus,
		realtime.SpindleOvrFinePlus:    ExecSpindleOvrFinePlus,
		realtime.SpindleOvrFineMinus:   ExecSpindleOvrFineMinus,
		realtime.SpindleOvrStop:        ExecSpindleOvrStop,
		realtime.CoolantFloodOvrToggle: ExecCoolantFloodOvrToggle,
		realtime.CoolantMistOvrToggle:  ExecCoolantMistOvrToggle,
	}
)

// Apply reflects a real-time command into the sink. It returns false when
// the command had no effect, i.e. a jog-cancel outside of a jog.
func Apply(sink FlagSink, k realtime.Kind) bool {
	switch k {
	case realtime.Reset:
		sink.MotionReset()
		return true
	case realtime.JogCancel:
		// only a jog can be cancelled this way.
		if !sink.State().Has(StateJog) {
			return false
		}
		sink.SetExecState(ExecMotionCancel)
		return true
	case realtime.DebugReport:
		sink.SetDebug(ExecDebugReport)
		return true
	}
	if b, ok := execBits[k]; ok {
		sink.SetExecState(b)
	} else if b, ok := motionBits[k]; ok {
		sink.SetMotionOverride(b)
	} else if b, ok := accessoryBits[k]; ok {
		sink.SetAccessoryOverride(b)
	} else {
		return false
	}
	return true
}
