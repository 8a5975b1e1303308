package system

import "go.uber.org/atomic"

// ExecState bits are pending real-time requests for the main loop.
type ExecState uint32

// ExecState bits.
const (
	ExecStatusReport ExecState = 1 << iota
	ExecCycleStart
	ExecCycleStop
	ExecFeedHold
	ExecReset
	ExecSafetyDoor
	ExecMotionCancel
	ExecSleep
)

// MotionOverride bits are pending feed and rapid override requests.
type MotionOverride uint32

// MotionOverride bits.
const (
	ExecFeedOvrReset MotionOverride = 1 << iota
	ExecFeedOvrCoarsePlus
	ExecFeedOvrCoarseMinus
	ExecFeedOvrFinePlus
	ExecFeedOvrFineMinus
	ExecRapidOvrReset
	ExecRapidOvrMedium
	ExecRapidOvrLow
)

// AccessoryOverride bits are pending spindle and coolant override requests.
type AccessoryOverride uint32

// AccessoryOverride bits.
const (
	ExecSpindleOvrReset AccessoryOverride = 1 << iota
	ExecSpindleOvrCoarsePlus
	ExecSpindleOvrCoarseMinus
	ExecSpindleOvrFinePlus
	ExecSpindleOvrFineMinus
	ExecSpindleOvrStop
	ExecCoolantFloodOvrToggle
	ExecCoolantMistOvrToggle
)

// Debug bits.
type Debug uint32

// ExecDebugReport requests a debug report.
const ExecDebugReport Debug = 1

// bits is a set-only-by-producer, clear-only-by-consumer bitset.
type bits struct {
	v atomic.Uint32
}

func (b *bits) set(mask uint32) {
	for {
		old := b.v.Load()
		if old&mask == mask || b.v.CompareAndSwap(old, old|mask) {
			return
		}
	}
}

func (b *bits) clear(mask uint32) {
	for {
		old := b.v.Load()
		if old&mask == 0 || b.v.CompareAndSwap(old, old&^mask) {
			return
		}
	}
}

// take atomically reads and clears all bits.
func (b *bits) take() uint32 {
	return b.v.Swap(0)
}

// Flags holds all execution-state bitsets.
type Flags struct {
	exec      bits
	motion    bits
	accessory bits
	debug     bits
}

// SetExecState ORs bits into the exec state.
func (f *Flags) SetExecState(s ExecState) { f.exec.set(uint32(s)) }

// SetMotionOverride ORs bits into the motion override set.
func (f *Flags) SetMotionOverride(o MotionOverride) { f.motion.set(uint32(o)) }

// SetAccessoryOverride ORs bits into the accessory override set.
func (f *Flags) SetAccessoryOverride(o AccessoryOverride) { f.accessory.set(uint32(o)) }

// SetDebug ORs bits into the debug set.
func (f *Flags) SetDebug(d Debug) { f.debug.set(uint32(d)) }

// ExecState returns the pending exec state bits.
func (f *Flags) ExecState() ExecState { return ExecState(f.exec.v.Load()) }

// ClearExecState clears the specified exec state bits.
func (f *Flags) ClearExecState(s ExecState) { f.exec.clear(uint32(s)) }

// TakeMotionOverride returns and clears pending motion overrides.
func (f *Flags) TakeMotionOverride() MotionOverride { return MotionOverride(f.motion.take()) }

// TakeAccessoryOverride returns and clears pending accessory overrides.
func (f *Flags) TakeAccessoryOverride() AccessoryOverride {
	return AccessoryOverride(f.accessory.take())
}

// TakeDebug returns and clears pending debug requests.
func (f *Flags) TakeDebug() Debug { return Debug(f.debug.take()) }
