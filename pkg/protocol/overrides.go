package protocol

import "github.com/robotalks/rtserial/pkg/system"

// Override limits and steps, in percent.
const (
	DefaultOverride     = 100
	MinFeedOverride     = 10
	MaxFeedOverride     = 200
	MinSpindleOverride  = 10
	MaxSpindleOverride  = 200
	OverrideCoarseStep  = 10
	OverrideFineStep    = 1
	RapidOverrideMedium = 50
	RapidOverrideLow    = 25
)

// Overrides are the real-time adjustments applied on top of programmed values.
type Overrides struct {
	Feed    int
	Rapid   int
	Spindle int
	// SpindleStop is set while the spindle is stopped during a hold.
	SpindleStop bool
}

// Coolant is the coolant output state.
type Coolant struct {
	Flood bool
	Mist  bool
}

// DefaultOverrides returns all overrides at 100%.
func DefaultOverrides() Overrides {
	return Overrides{Feed: DefaultOverride, Rapid: DefaultOverride, Spindle: DefaultOverride}
}

// ApplyMotion applies pending feed and rapid override bits, reporting
// whether any value changed.
func (o *Overrides) ApplyMotion(bits system.MotionOverride) bool {
	if bits == 0 {
		return false
	}
	feed, rapid := o.Feed, o.Rapid
	if bits&system.ExecFeedOvrReset != 0 {
		feed = DefaultOverride
	}
	if bits&system.ExecFeedOvrCoarsePlus != 0 {
		feed += OverrideCoarseStep
	}
	if bits&system.ExecFeedOvrCoarseMinus != 0 {
		feed -= OverrideCoarseStep
	}
	if bits&system.ExecFeedOvrFinePlus != 0 {
		feed += OverrideFineStep
	}
	if bits&system.ExecFeedOvrFineMinus != 0 {
		feed -= OverrideFineStep
	}
	feed = clamp(feed, MinFeedOverride, MaxFeedOverride)

	if bits&system.ExecRapidOvrReset != 0 {
		rapid = DefaultOverride
	}
	if bits&system.ExecRapidOvrMedium != 0 {
		rapid = RapidOverrideMedium
	}
	if bits&system.ExecRapidOvrLow != 0 {
		rapid = RapidOverrideLow
	}

	changed := feed != o.Feed || rapid != o.Rapid
	o.Feed, o.Rapid = feed, rapid
	return changed
}

// ApplyAccessory applies pending spindle and coolant override bits in state.
// Spindle stop only toggles during a hold; coolant never toggles in alarm or
// check mode.
func (o *Overrides) ApplyAccessory(bits system.AccessoryOverride, state system.State, coolant *Coolant) bool {
	if bits == 0 {
		return false
	}
	spindle := o.Spindle
	if bits&system.ExecSpindleOvrReset != 0 {
		spindle = DefaultOverride
	}
	if bits&system.ExecSpindleOvrCoarsePlus != 0 {
		spindle += OverrideCoarseStep
	}
	if bits&system.ExecSpindleOvrCoarseMinus != 0 {
		spindle -= OverrideCoarseStep
	}
	if bits&system.ExecSpindleOvrFinePlus != 0 {
		spindle += OverrideFineStep
	}
	if bits&system.ExecSpindleOvrFineMinus != 0 {
		spindle -= OverrideFineStep
	}
	spindle = clamp(spindle, MinSpindleOverride, MaxSpindleOverride)
	changed := spindle != o.Spindle
	o.Spindle = spindle

	if bits&system.ExecSpindleOvrStop != 0 && state == system.StateHold {
		o.SpindleStop = !o.SpindleStop
		changed = true
	}
	if !state.Has(system.StateAlarm | system.StateCheckMode) {
		if bits&system.ExecCoolantFloodOvrToggle != 0 {
			coolant.Flood = !coolant.Flood
			changed = true
		}
		if bits&system.ExecCoolantMistOvrToggle != 0 {
			coolant.Mist = !coolant.Mist
			changed = true
		}
	}
	return changed
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
