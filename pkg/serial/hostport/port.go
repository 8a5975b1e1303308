// Package hostport turns a host byte stream (an OS serial device, a websocket
// connection) into the peripheral facade of the serial layer.
package hostport

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/golang/glog"
	"go.uber.org/atomic"

	fx "github.com/robotalks/rtserial/pkg/framework"
	"github.com/robotalks/rtserial/pkg/serial"
)

// DefaultFIFODepth is the depth of the emulated hardware FIFOs.
const DefaultFIFODepth = 16

// ErrBusy indicates another stream is already attached.
var ErrBusy = errors.New("stream already attached")

// Port emulates a UART on top of a byte stream. A reader goroutine fills the
// RX FIFO and raises receive events; a writer goroutine drains the TX FIFO
// onto the stream and raises transmit events. While no stream is attached the
// line is idle: transmitted bytes are discarded and nothing is received.
type Port struct {
	FIFODepth int

	lock     sync.Mutex
	handler  serial.EventHandler
	rxFIFO   []byte
	txCh     chan byte
	attached bool

	// receive events are not reentrant.
	rxISR sync.Mutex

	overruns  atomic.Uint32
	discarded atomic.Uint32
}

// New creates a Port with no stream attached.
func New() *Port {
	return &Port{FIFODepth: DefaultFIFODepth}
}

// Arm implements serial.EventSource.
func (p *Port) Arm(h serial.EventHandler) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.handler != nil {
		return serial.ErrAlreadyArmed
	}
	p.handler = h
	return nil
}

// Receive implements serial.Driver.
func (p *Port) Receive() (byte, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if len(p.rxFIFO) == 0 {
		return 0, false
	}
	b := p.rxFIFO[0]
	p.rxFIFO = p.rxFIFO[1:]
	return b, true
}

// Transmit implements serial.Driver.
func (p *Port) Transmit(b byte) bool {
	p.lock.Lock()
	attached, txCh := p.attached, p.txCh
	p.lock.Unlock()
	if !attached {
		p.discarded.Inc()
		return true
	}
	select {
	case txCh <- b:
		return true
	default:
		return false
	}
}

// Attached reports whether a stream is being served.
func (p *Port) Attached() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.attached
}

// Overruns returns the number of bytes lost because the RX FIFO was full
// and no handler drained it.
func (p *Port) Overruns() uint32 {
	return p.overruns.Load()
}

// Discarded returns the number of bytes transmitted while detached.
func (p *Port) Discarded() uint32 {
	return p.discarded.Load()
}

// Serve attaches stream and pumps bytes until ctx is done or the stream
// fails. The stream is closed on return. io.EOF is a normal end.
func (p *Port) Serve(ctx context.Context, stream io.ReadWriteCloser) error {
	txCh, err := p.attach()
	if err != nil {
		return err
	}
	defer p.detach()

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	werrCh := make(chan error, 1)
	go func() { werrCh <- p.writeLoop(wctx, stream, txCh) }()

	err = fx.RunWithContextCloser(ctx, stream, func() error {
		rerrCh := make(chan error, 1)
		go func() { rerrCh <- p.readLoop(stream) }()
		select {
		case err := <-rerrCh:
			return err
		case err := <-werrCh:
			return err
		}
	})
	if errors.Is(err, io.EOF) {
		glog.V(2).Info("stream closed by peer")
		return nil
	}
	return err
}

// Bind returns a Runnable serving stream.
func (p *Port) Bind(stream io.ReadWriteCloser) fx.Runnable {
	return fx.RunFunc(func(ctx context.Context) error {
		return p.Serve(ctx, stream)
	})
}

func (p *Port) attach() (chan byte, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.attached {
		return nil, ErrBusy
	}
	p.attached = true
	p.txCh = make(chan byte, p.depth())
	p.rxFIFO = nil
	return p.txCh, nil
}

func (p *Port) detach() {
	p.lock.Lock()
	p.attached = false
	p.txCh = nil
	p.lock.Unlock()
	// let a stalled drain flush into the idle line.
	p.interrupt(serial.EventTx)
}

func (p *Port) readLoop(stream io.Reader) error {
	buf := make([]byte, 64)
	for {
		n, err := stream.Read(buf)
		for _, b := range buf[:n] {
			p.receive(b)
		}
		if n > 0 {
			p.interrupt(serial.EventRx)
		}
		if err != nil {
			return err
		}
	}
}

func (p *Port) receive(b byte) {
	p.lock.Lock()
	full := len(p.rxFIFO) >= p.depth()
	p.lock.Unlock()
	if full {
		p.interrupt(serial.EventRx)
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	if len(p.rxFIFO) >= p.depth() {
		p.overruns.Inc()
		return
	}
	p.rxFIFO = append(p.rxFIFO, b)
}

func (p *Port) writeLoop(ctx context.Context, stream io.Writer, txCh chan byte) error {
	buf := make([]byte, 0, p.depth())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b := <-txCh:
			buf = append(buf[:0], b)
		}
		// collect what else is already in the FIFO.
		for more := true; more && len(buf) < cap(buf); {
			select {
			case b := <-txCh:
				buf = append(buf, b)
			default:
				more = false
			}
		}
		if _, err := stream.Write(buf); err != nil {
			return err
		}
		p.interrupt(serial.EventTx)
	}
}

// Inject receives bytes from a side channel as if they came off the wire.
func (p *Port) Inject(data []byte) {
	for _, b := range data {
		p.receive(b)
	}
	if len(data) > 0 {
		p.interrupt(serial.EventRx)
	}
}

func (p *Port) interrupt(ev serial.Event) {
	p.lock.Lock()
	h := p.handler
	p.lock.Unlock()
	if h == nil {
		return
	}
	if ev.Has(serial.EventRx) {
		p.rxISR.Lock()
		defer p.rxISR.Unlock()
	}
	h.HandleEvents(ev)
}

func (p *Port) depth() int {
	if p.FIFODepth <= 0 {
		return DefaultFIFODepth
	}
	return p.FIFODepth
}
