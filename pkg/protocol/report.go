package protocol

import (
	"fmt"
	"strings"

	"github.com/robotalks/rtserial/pkg/serial"
	"github.com/robotalks/rtserial/pkg/system"
)

// Version is reported in the banner and build info.
const Version = "1.1h"

// Banner is printed after every reset.
const Banner = "Grbl " + Version + " ['$' for help]"

// SpindleDir is the spindle output state.
type SpindleDir int

// Spindle states.
const (
	SpindleOff SpindleDir = iota
	SpindleCW
	SpindleCCW
)

// Status is a snapshot of the machine as seen by status reports.
type Status struct {
	State        system.State
	Alarm        uint32
	Position     [3]float64
	FeedRate     float64
	SpindleSpeed float64
	Spindle      SpindleDir
	Coolant      Coolant
	Overrides    Overrides
	PlannerFree  int
	RxFree       int
	Stats        serial.Stats
}

// Report formats the real-time status line, without line terminator.
func (s *Status) Report() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<%s|MPos:%.3f,%.3f,%.3f|Bf:%d,%d|FS:%.0f,%.0f|Ov:%d,%d,%d",
		s.State, s.Position[0], s.Position[1], s.Position[2],
		s.PlannerFree, s.RxFree,
		s.FeedRate, s.SpindleSpeed,
		s.Overrides.Feed, s.Overrides.Rapid, s.Overrides.Spindle)
	if acc := s.Accessories(); acc != "" {
		sb.WriteString("|A:")
		sb.WriteString(acc)
	}
	sb.WriteByte('>')
	return sb.String()
}

// Accessories lists active spindle and coolant outputs as in the A: field.
func (s *Status) Accessories() string {
	var acc []byte
	if !s.Overrides.SpindleStop {
		switch s.Spindle {
		case SpindleCW:
			acc = append(acc, 'S')
		case SpindleCCW:
			acc = append(acc, 'C')
		}
	}
	if s.Coolant.Flood {
		acc = append(acc, 'F')
	}
	if s.Coolant.Mist {
		acc = append(acc, 'M')
	}
	return string(acc)
}

// DebugReport formats the serial diagnostics line.
func (s *Status) DebugReport() string {
	return fmt.Sprintf("[DBG:RX:%d,HW:%d,DROP:%d,DISC:%d,CMD:%d,IGN:%d,TXA:%d]",
		s.RxFree, s.Stats.RxHighWater, s.Stats.RxDropped, s.Stats.Discarded,
		s.Stats.Commands, s.Stats.Ignored, s.Stats.TxAborted)
}
