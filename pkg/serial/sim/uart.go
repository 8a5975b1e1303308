// Package sim provides an in-memory UART peripheral which raises receive and
// transmit events like the real hardware does.
package sim

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/rtserial/pkg/serial"
)

// DefaultFIFODepth is the depth of each hardware FIFO.
const DefaultFIFODepth = 16

// UART simulates a peripheral with a hardware RX and TX FIFO.
// The device side is serial.Driver and serial.EventSource; the wire side
// is Inject (host to device) and Shift/Run (device to host).
type UART struct {
	FIFODepth int
	Baud      int
	// Output receives bytes shifted out by Run.
	Output io.Writer

	lock    sync.Mutex
	rxFIFO  []byte
	txFIFO  []byte
	handler serial.EventHandler

	// event contexts are not reentrant with themselves.
	rxISR sync.Mutex
	txISR sync.Mutex
}

// New creates a UART.
func New() *UART {
	return &UART{FIFODepth: DefaultFIFODepth, Baud: 115200}
}

// Arm implements serial.EventSource.
func (u *UART) Arm(h serial.EventHandler) error {
	u.lock.Lock()
	defer u.lock.Unlock()
	if u.handler != nil {
		return serial.ErrAlreadyArmed
	}
	u.handler = h
	return nil
}

// Receive implements serial.Driver.
func (u *UART) Receive() (byte, bool) {
	u.lock.Lock()
	defer u.lock.Unlock()
	if len(u.rxFIFO) == 0 {
		return 0, false
	}
	b := u.rxFIFO[0]
	u.rxFIFO = u.rxFIFO[1:]
	return b, true
}

// Transmit implements serial.Driver.
func (u *UART) Transmit(b byte) bool {
	u.lock.Lock()
	defer u.lock.Unlock()
	if len(u.txFIFO) >= u.depth() {
		return false
	}
	u.txFIFO = append(u.txFIFO, b)
	return true
}

// Interrupt raises events towards the armed handler.
func (u *UART) Interrupt(ev serial.Event) {
	u.lock.Lock()
	h := u.handler
	u.lock.Unlock()
	if h == nil {
		return
	}
	if ev.Has(serial.EventTx) {
		u.txISR.Lock()
		h.HandleEvents(serial.EventTx)
		u.txISR.Unlock()
	}
	if ev.Has(serial.EventRx) {
		u.rxISR.Lock()
		h.HandleEvents(serial.EventRx)
		u.rxISR.Unlock()
	}
}

// Inject puts bytes on the wire towards the device. A receive event is
// raised whenever the RX FIFO fills up and once more after the last byte.
func (u *UART) Inject(p []byte) {
	for _, b := range p {
		u.lock.Lock()
		u.rxFIFO = append(u.rxFIFO, b)
		full := len(u.rxFIFO) >= u.depth()
		u.lock.Unlock()
		if full {
			u.Interrupt(serial.EventRx)
		}
	}
	if len(p) > 0 {
		u.Interrupt(serial.EventRx)
	}
}

// Write implements io.Writer using Inject.
func (u *UART) Write(p []byte) (int, error) {
	u.Inject(p)
	return len(p), nil
}

// Shift moves up to n bytes off the TX FIFO onto the wire and raises a
// transmit event if any byte left.
func (u *UART) Shift(n int) []byte {
	u.lock.Lock()
	if n > len(u.txFIFO) {
		n = len(u.txFIFO)
	}
	out := append([]byte(nil), u.txFIFO[:n]...)
	u.txFIFO = u.txFIFO[n:]
	u.lock.Unlock()
	if n > 0 {
		u.Interrupt(serial.EventTx)
	}
	return out
}

// Pending returns the number of bytes in the TX FIFO.
func (u *UART) Pending() int {
	u.lock.Lock()
	defer u.lock.Unlock()
	return len(u.txFIFO)
}

// Run shifts bytes to Output at the configured baud rate (8N1).
func (u *UART) Run(ctx context.Context) error {
	const tick = time.Millisecond
	perTick := u.Baud / 10 / int(time.Second/tick)
	if perTick < 1 {
		perTick = 1
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			out := u.Shift(perTick)
			if len(out) == 0 || u.Output == nil {
				continue
			}
			if _, err := u.Output.Write(out); err != nil {
				glog.Errorf("sim uart output error: %v", err)
				return err
			}
		}
	}
}

func (u *UART) depth() int {
	if u.FIFODepth <= 0 {
		return DefaultFIFODepth
	}
	return u.FIFODepth
}
