package realtime

import "fmt"

// Kind enumerates real-time commands.
type Kind int

// Real-time command kinds.
const (
	None Kind = iota
	Reset
	StatusReport
	CycleStart
	FeedHold
	SafetyDoor
	JogCancel
	DebugReport
	FeedOvrReset
	FeedOvrCoarsePlus
	FeedOvrCoarseMinus
	FeedOvrFinePlus
	FeedOvrFineMinus
	RapidOvrReset
	RapidOvrMedium
	RapidOvrLow
	SpindleOvrReset
	SpindleOvrCoarsePlus
	SpindleOvrCoarseMinus
	SpindleOvrFinePlus
	SpindleOvrFineMinus
	SpindleOvrStop
	CoolantFloodOvrToggle
	CoolantMistOvrToggle

	numKinds
)

// Command bytes.
const (
	CmdReset         byte = 0x18 // ctrl-x
	CmdStatusReport  byte = '?'
	CmdCycleStart    byte = '~'
	CmdFeedHold      byte = '!'
	CmdSafetyDoor    byte = 0x84
	CmdJogCancel     byte = 0x85
	CmdDebugReport   byte = 0x86
	CmdFeedOvrReset  byte = 0x90
	CmdFeedOvrCPlus  byte = 0x91
	CmdFeedOvrCMinus byte = 0x92
	CmdFeedOvrFPlus  byte = 0x93
	CmdFeedOvrFMinus byte = 0x94
	CmdRapidOvrReset byte = 0x95
	CmdRapidOvrMed   byte = 0x96
	CmdRapidOvrLow   byte = 0x97
	CmdSpindleReset  byte = 0x99
	CmdSpindleCPlus  byte = 0x9a
	CmdSpindleCMinus byte = 0x9b
	CmdSpindleFPlus  byte = 0x9c
	CmdSpindleFMinus byte = 0x9d
	CmdSpindleStop   byte = 0x9e
	CmdFloodToggle   byte = 0xa0
	CmdMistToggle    byte = 0xa1

	// ExtendedBase is the lowest byte value of the extended range.
	ExtendedBase byte = 0x80
)

var kindInfo = [numKinds]struct {
	b    byte
	name string
}{
	None:                  {0, "none"},
	Reset:                 {CmdReset, "reset"},
	StatusReport:          {CmdStatusReport, "status"},
	CycleStart:            {CmdCycleStart, "cycle-start"},
	FeedHold:              {CmdFeedHold, "feed-hold"},
	SafetyDoor:            {CmdSafetyDoor, "safety-door"},
	JogCancel:             {CmdJogCancel, "jog-cancel"},
	DebugReport:           {CmdDebugReport, "debug-report"},
	FeedOvrReset:          {CmdFeedOvrReset, "feed-reset"},
	FeedOvrCoarsePlus:     {CmdFeedOvrCPlus, "feed+10"},
	FeedOvrCoarseMinus:    {CmdFeedOvrCMinus, "feed-10"},
	FeedOvrFinePlus:       {CmdFeedOvrFPlus, "feed+1"},
	FeedOvrFineMinus:      {CmdFeedOvrFMinus, "feed-1"},
	RapidOvrReset:         {CmdRapidOvrReset, "rapid-100"},
	RapidOvrMedium:        {CmdRapidOvrMed, "rapid-50"},
	RapidOvrLow:           {CmdRapidOvrLow, "rapid-25"},
	SpindleOvrReset:       {CmdSpindleReset, "spindle-reset"},
	SpindleOvrCoarsePlus:  {CmdSpindleCPlus, "spindle+10"},
	SpindleOvrCoarseMinus: {CmdSpindleCMinus, "spindle-10"},
	SpindleOvrFinePlus:    {CmdSpindleFPlus, "spindle+1"},
	SpindleOvrFineMinus:   {CmdSpindleFMinus, "spindle-1"},
	SpindleOvrStop:        {CmdSpindleStop, "spindle-stop"},
	CoolantFloodOvrToggle: {CmdFloodToggle, "flood"},
	CoolantMistOvrToggle:  {CmdMistToggle, "mist"},
}

// Byte returns the wire byte of the command.
func (k Kind) Byte() byte {
	if k <= None || k >= numKinds {
		return 0
	}
	return kindInfo[k].b
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k < None || k >= numKinds {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindInfo[k].name
}

// IsValid indicates k is a real command.
func (k Kind) IsValid() bool {
	return k > None && k < numKinds
}

// Kinds lists all valid command kinds.
func Kinds() []Kind {
	kinds := make([]Kind, 0, numKinds-1)
	for k := None + 1; k < numKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Lookup finds a command kind by its name.
func Lookup(name string) (Kind, bool) {
	for k := None + 1; k < numKinds; k++ {
		if kindInfo[k].name == name {
			return k, true
		}
	}
	return None, false
}
