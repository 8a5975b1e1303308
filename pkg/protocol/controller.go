// Package protocol is the main loop side of the serial layer: it executes the
// real-time flags, assembles and executes command lines from the RX buffer
// and answers through the TX buffer.
package protocol

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/rtserial/pkg/framework"
	"github.com/robotalks/rtserial/pkg/serial"
	"github.com/robotalks/rtserial/pkg/system"
)

// PlannerBlocks is the number of motion blocks which can be queued.
const PlannerBlocks = 15

// numAxes covers X, Y and Z.
const numAxes = 3

// RapidRate is the simulated traverse rate in mm/min.
const RapidRate = 1000

type block struct {
	target [numAxes]float64
	feed   float64
	rapid  bool
	jog    bool
}

type modalState struct {
	rapid    bool
	relative bool
	feed     float64
	speed    float64
	spindle  SpindleDir
}

// Controller runs in the main loop. It owns the run state in System;
// motion is simulated by completing one queued block per iteration.
type Controller struct {
	Port   *serial.Port
	System *system.System

	started bool
	line    lineAssembler
	blocks  []block
	pos     [numAxes]float64
	planned [numAxes]float64
	modal   modalState
	ovr     Overrides
	coolant Coolant

	lock   sync.Mutex
	status Status
}

// NewController creates a Controller.
func NewController(port *serial.Port, sys *system.System) *Controller {
	return &Controller{Port: port, System: sys, modal: modalState{rapid: true}, ovr: DefaultOverrides()}
}

// AddToLoop implements LoopAdder. Received bytes wake the loop up.
// It must be called before the driver events are armed.
func (c *Controller) AddToLoop(loop *fx.Loop) {
	c.Port.Notify = loop.TriggerNext
	loop.AddController(fx.PrLvRealtime, fx.ControlFunc(c.executeRealtime))
	loop.AddController(fx.PrLvProtocol, c)
	loop.AddController(fx.PrLvReport, fx.ControlFunc(c.publish))
}

// Control implements Controller.
func (c *Controller) Control(cc fx.ControlContext) error {
	if !c.started {
		return nil
	}
	c.stepMotion()
	c.processInput()
	return nil
}

// Status returns the latest snapshot. Safe from any goroutine.
func (c *Controller) Status() Status {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.status
}

func (c *Controller) executeRealtime(cc fx.ControlContext) error {
	if !c.started {
		c.started = true
		c.reset()
		return nil
	}
	exec := c.System.ExecState()
	if exec&system.ExecReset != 0 {
		c.reset()
		return nil
	}
	if exec != 0 {
		c.System.ClearExecState(exec)
		c.executeState(exec)
	}

	state := c.System.State()
	c.ovr.ApplyMotion(c.System.TakeMotionOverride())
	c.ovr.ApplyAccessory(c.System.TakeAccessoryOverride(), state, &c.coolant)
	if c.System.TakeDebug()&system.ExecDebugReport != 0 {
		st := c.snapshot()
		c.send("%s\r\n", st.DebugReport())
	}
	return nil
}

func (c *Controller) executeState(exec system.ExecState) {
	state := c.System.State()
	if exec&system.ExecStatusReport != 0 {
		st := c.snapshot()
		c.send("%s\r\n", st.Report())
	}
	switch {
	case exec&system.ExecSafetyDoor != 0:
		if !state.Has(system.StateAlarm | system.StateSleep) {
			if state == system.StateJog {
				c.flush()
			}
			c.System.SetState(system.StateSafetyDoor)
		}
	case exec&system.ExecMotionCancel != 0:
		if state == system.StateJog {
			c.flush()
			c.System.SetState(system.StateIdle)
		}
	case exec&system.ExecFeedHold != 0:
		switch state {
		case system.StateCycle:
			c.System.SetState(system.StateHold)
		case system.StateJog:
			c.flush()
			c.System.SetState(system.StateIdle)
		}
	}
	if exec&system.ExecCycleStart != 0 {
		state = c.System.State()
		if state == system.StateHold || state == system.StateSafetyDoor {
			c.ovr.SpindleStop = false
			if len(c.blocks) > 0 {
				c.System.SetState(system.StateCycle)
			} else {
				c.System.SetState(system.StateIdle)
			}
		}
	}
}

// reset restores power-up state, keeping an alarm raised by a reset during
// motion until it is unlocked.
func (c *Controller) reset() {
	c.Port.ResetRx()
	c.line.reset()
	c.flush()
	c.modal = modalState{rapid: true}
	c.ovr = DefaultOverrides()
	c.coolant = Coolant{}
	c.System.TakeMotionOverride()
	c.System.TakeAccessoryOverride()
	c.System.TakeDebug()
	c.System.ClearExecState(^system.ExecState(0))

	alarm := c.System.Alarm()
	if alarm != system.AlarmNone {
		c.System.SetState(system.StateAlarm)
		glog.Warningf("reset during motion, alarm %d", alarm)
		c.send("ALARM:%d\r\n", alarm)
	} else {
		c.System.SetState(system.StateIdle)
		glog.V(2).Info("reset")
	}
	c.send("\r\n%s\r\n", Banner)
	if alarm != system.AlarmNone {
		c.send("[MSG:'$H'|'$X' to unlock]\r\n")
	}
}

func (c *Controller) flush() {
	c.blocks = nil
	c.planned = c.pos
}

func (c *Controller) stepMotion() {
	state := c.System.State()
	if state != system.StateCycle && state != system.StateJog {
		return
	}
	if len(c.blocks) > 0 {
		c.pos = c.blocks[0].target
		c.blocks = c.blocks[1:]
	}
	if len(c.blocks) == 0 {
		c.System.SetState(system.StateIdle)
	}
}

func (c *Controller) processInput() {
	for len(c.blocks) < PlannerBlocks && !c.System.Aborted() {
		b := c.Port.Read()
		if b == serial.NoData {
			return
		}
		line, done, err := c.line.feed(b)
		if !done {
			continue
		}
		if err == nil {
			err = c.executeLine(line)
		}
		c.reply(err)
	}
}

func (c *Controller) reply(err error) {
	if err == nil {
		c.send("ok\r\n")
		return
	}
	var code StatusCode
	if !errors.As(err, &code) {
		code = StatusInvalidStatement
	}
	c.send("error:%d\r\n", int(code))
}

func (c *Controller) executeLine(line string) error {
	if line == "" {
		return nil
	}
	if line[0] == '$' {
		return c.executeSystem(line[1:])
	}
	if c.System.State().Has(system.StateAlarm) {
		return StatusSystemGCLock
	}
	words, err := parseWords(line)
	if err != nil {
		return err
	}
	return c.executeBlock(words, false)
}

func (c *Controller) executeSystem(cmd string) error {
	switch {
	case cmd == "":
		c.send("[HLP:$ $G $I $J=line $X ~ ! ? ctrl-x]\r\n")
	case cmd == "I":
		c.send("[VER:%s:]\r\n", Version)
	case cmd == "G":
		c.send("[GC:%s]\r\n", parserState(c.modal, c.coolant))
	case cmd == "X":
		if c.System.State().Has(system.StateAlarm) {
			c.System.SetAlarm(system.AlarmNone)
			c.System.SetState(system.StateIdle)
			c.send("[MSG:Caution: Unlocked]\r\n")
		}
	case len(cmd) > 2 && cmd[:2] == "J=":
		state := c.System.State()
		if state != system.StateIdle && state != system.StateJog {
			return StatusIdleError
		}
		words, err := parseWords(cmd[2:])
		if err != nil {
			return err
		}
		return c.executeBlock(words, true)
	default:
		return StatusInvalidStatement
	}
	return nil
}

// executeBlock validates all words before changing any modal state.
func (c *Controller) executeBlock(words []word, jog bool) error {
	modal := c.modal
	coolant := c.coolant
	target := c.planned
	var axes [numAxes]*float64
	var hasAxis, hasFeed bool
	for i := range words {
		w := &words[i]
		switch w.letter {
		case 'G':
			switch w.value {
			case 0, 1:
				if jog {
					return StatusInvalidJogCommand
				}
				modal.rapid = w.value == 0
			case 90:
				modal.relative = false
			case 91:
				modal.relative = true
			case 17, 21, 54, 94:
			default:
				return StatusUnsupportedCommand
			}
		case 'M':
			if jog {
				return StatusInvalidJogCommand
			}
			switch w.value {
			case 3:
				modal.spindle = SpindleCW
			case 4:
				modal.spindle = SpindleCCW
			case 5:
				modal.spindle = SpindleOff
			case 7:
				coolant.Mist = true
			case 8:
				coolant.Flood = true
			case 9:
				coolant = Coolant{}
			case 0, 1, 2, 30:
			default:
				return StatusUnsupportedCommand
			}
		case 'F':
			modal.feed = w.value
			hasFeed = true
		case 'S':
			if jog {
				return StatusInvalidJogCommand
			}
			modal.speed = w.value
		case 'X', 'Y', 'Z':
			axes[w.letter-'X'] = &w.value
			hasAxis = true
		case 'N':
		default:
			return StatusUnsupportedCommand
		}
	}
	if jog && (!hasAxis || !hasFeed || modal.feed <= 0) {
		return StatusInvalidJogCommand
	}
	for i, v := range axes {
		switch {
		case v == nil:
		case modal.relative:
			target[i] += *v
		default:
			target[i] = *v
		}
	}

	b := block{target: target, feed: modal.feed, rapid: modal.rapid && !jog, jog: jog}
	if b.rapid {
		b.feed = RapidRate
	}
	if !jog {
		// a jog line leaves the parser state untouched.
		c.modal, c.coolant = modal, coolant
	}
	if !hasAxis {
		return nil
	}
	c.blocks = append(c.blocks, b)
	c.planned = target
	switch state := c.System.State(); {
	case jog && state == system.StateIdle:
		c.System.SetState(system.StateJog)
	case !jog && state == system.StateIdle:
		c.System.SetState(system.StateCycle)
	}
	return nil
}

func (c *Controller) publish(cc fx.ControlContext) error {
	st := c.snapshot()
	c.lock.Lock()
	c.status = st
	c.lock.Unlock()
	return nil
}

func (c *Controller) snapshot() Status {
	st := Status{
		State:       c.System.State(),
		Alarm:       c.System.Alarm(),
		Position:    c.pos,
		Spindle:     c.modal.spindle,
		Coolant:     c.coolant,
		Overrides:   c.ovr,
		PlannerFree: PlannerBlocks - len(c.blocks),
		RxFree:      c.Port.RxAvailable(),
		Stats:       c.Port.Stats(),
	}
	if st.State == system.StateCycle || st.State == system.StateJog {
		if len(c.blocks) > 0 {
			b := &c.blocks[0]
			if b.rapid {
				st.FeedRate = b.feed * float64(c.ovr.Rapid) / 100
			} else {
				st.FeedRate = b.feed * float64(c.ovr.Feed) / 100
			}
		}
	}
	if c.modal.spindle != SpindleOff && !c.ovr.SpindleStop {
		st.SpindleSpeed = c.modal.speed * float64(c.ovr.Spindle) / 100
	}
	return st
}

func (c *Controller) send(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(c.Port, format, args...); err != nil {
		if errors.Is(err, serial.ErrAborted) {
			glog.V(2).Info("output dropped by reset")
			return
		}
		glog.Warningf("write error: %v", err)
	}
}

// parserState formats the modal state like "$G" does.
func parserState(m modalState, coolant Coolant) string {
	motion, distance, spindle := "G1", "G90", "M5"
	if m.rapid {
		motion = "G0"
	}
	if m.relative {
		distance = "G91"
	}
	switch m.spindle {
	case SpindleCW:
		spindle = "M3"
	case SpindleCCW:
		spindle = "M4"
	}
	var cool string
	switch {
	case coolant.Flood && coolant.Mist:
		cool = "M7 M8"
	case coolant.Mist:
		cool = "M7"
	case coolant.Flood:
		cool = "M8"
	default:
		cool = "M9"
	}
	return fmt.Sprintf("%s G54 G17 G21 %s G94 %s %s T0 F%.0f S%.0f",
		motion, distance, spindle, cool, m.feed, m.speed)
}
