package realtime

// Class is the category of a received byte.
type Class int

const (
	// ClassData means the byte goes to the line buffer.
	ClassData Class = iota
	// ClassCommand means the byte is a real-time command.
	ClassCommand
	// ClassDiscard means the byte is an unrecognized extended byte.
	ClassDiscard
)

// Result is the outcome of classifying one byte.
type Result struct {
	Class Class
	Kind  Kind
	Data  byte
}

// IsData indicates the byte should be queued.
func (r Result) IsData() bool {
	return r.Class == ClassData
}

// Classifier maps bytes to real-time commands. The zero value recognizes
// the standard command set; optional commands must be enabled explicitly.
type Classifier struct {
	// DebugReport enables CmdDebugReport.
	DebugReport bool
	// Mist enables CmdMistToggle (M7 coolant).
	Mist bool
}

var extended = func() (tbl [0x80]Kind) {
	for k := SafetyDoor; k < numKinds; k++ {
		tbl[kindInfo[k].b-ExtendedBase] = k
	}
	return
}()

// Classify classifies b using the default Classifier.
func Classify(b byte) Result {
	return Classifier{}.Classify(b)
}

// Classify classifies a single byte. It is pure and total.
func (c Classifier) Classify(b byte) Result {
	switch b {
	case CmdReset:
		return Result{Class: ClassCommand, Kind: Reset}
	case CmdStatusReport:
		return Result{Class: ClassCommand, Kind: StatusReport}
	case CmdCycleStart:
		return Result{Class: ClassCommand, Kind: CycleStart}
	case CmdFeedHold:
		return Result{Class: ClassCommand, Kind: FeedHold}
	}
	if b < ExtendedBase {
		return Result{Class: ClassData, Data: b}
	}
	k := extended[b-ExtendedBase]
	switch {
	case k == None,
		k == DebugReport && !c.DebugReport,
		k == CoolantMistOvrToggle && !c.Mist:
		return Result{Class: ClassDiscard, Data: b}
	}
	return Result{Class: ClassCommand, Kind: k}
}
