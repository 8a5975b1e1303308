package serial

import (
	"go.uber.org/atomic"

	"github.com/robotalks/rtserial/pkg/realtime"
	"github.com/robotalks/rtserial/pkg/system"
)

// Default buffer sizes.
const (
	DefaultRxBufferSize = 128
	DefaultTxBufferSize = 104
)

// NoData is returned by Read when the RX buffer is empty. It is an extended
// byte, so it never appears as data.
const NoData byte = 0xff

// Stats are diagnostics counters since the Port was created.
type Stats struct {
	RxDropped   uint32 // data bytes dropped because the RX buffer was full
	RxHighWater uint32 // highest RX buffer usage observed
	Discarded   uint32 // unrecognized extended bytes
	Commands    uint32 // real-time commands applied
	Ignored     uint32 // real-time commands not valid in current state
	TxAborted   uint32 // writes dropped by reset
}

type stats struct {
	rxDropped   atomic.Uint32
	rxHighWater atomic.Uint32
	discarded   atomic.Uint32
	commands    atomic.Uint32
	ignored     atomic.Uint32
	txAborted   atomic.Uint32
}

// Port is the buffered serial port. HandleRx and HandleTx (or HandleEvents)
// are called from the driver's event context; everything else from the main
// loop.
type Port struct {
	Driver     Driver
	Sink       system.FlagSink
	Classifier realtime.Classifier
	// Notify, if set, is called from the receive context after a drain which
	// queued data or applied a command. It must not block.
	Notify func()

	rx *Ring
	tx *Ring

	draining  atomic.Bool
	txPending atomic.Bool

	stats stats
}

// NewPort creates a Port with default buffer sizes.
func NewPort(drv Driver, sink system.FlagSink) *Port {
	return &Port{
		Driver: drv,
		Sink:   sink,
		rx:     NewRing(DefaultRxBufferSize),
		tx:     NewRing(DefaultTxBufferSize),
	}
}

// WithBufferSizes replaces the buffers. It must be called before events
// are armed.
func (p *Port) WithBufferSizes(rxSize, txSize int) *Port {
	p.rx, p.tx = NewRing(rxSize), NewRing(txSize)
	return p
}

// WithClassifier sets the Classifier.
func (p *Port) WithClassifier(c realtime.Classifier) *Port {
	p.Classifier = c
	return p
}

// Arm enables events from src towards the Port.
func (p *Port) Arm(src EventSource) error {
	return src.Arm(p)
}

// Read returns the next data byte, or NoData.
func (p *Port) Read() byte {
	if b, ok := p.rx.Pop(); ok {
		return b
	}
	return NoData
}

// ReadByte implements io.ByteReader.
func (p *Port) ReadByte() (byte, error) {
	if b, ok := p.rx.Pop(); ok {
		return b, nil
	}
	return 0, ErrNoData
}

// WriteByte queues one byte for transmission, spinning while the TX buffer
// is full. The wait ends early with ErrAborted when a reset is pending.
func (p *Port) WriteByte(b byte) error {
	if !p.tx.PushWait(b, p.Sink.Aborted) {
		p.stats.txAborted.Inc()
		return ErrAborted
	}
	// the transmitter may be idle; make sure the drain is running.
	p.HandleTx()
	return nil
}

// Write implements io.Writer.
func (p *Port) Write(data []byte) (int, error) {
	for n, b := range data {
		if err := p.WriteByte(b); err != nil {
			return n, err
		}
	}
	return len(data), nil
}

// WriteString implements io.StringWriter.
func (p *Port) WriteString(s string) (int, error) {
	for n := 0; n < len(s); n++ {
		if err := p.WriteByte(s[n]); err != nil {
			return n, err
		}
	}
	return len(s), nil
}

// RxAvailable returns the free space of the RX buffer.
func (p *Port) RxAvailable() int {
	return p.rx.Available()
}

// RxUsed returns the number of bytes waiting in the RX buffer.
func (p *Port) RxUsed() int {
	return p.rx.Used()
}

// TxUsed returns the number of bytes waiting in the TX buffer.
func (p *Port) TxUsed() int {
	return p.tx.Used()
}

// RxSize returns the RX buffer capacity.
func (p *Port) RxSize() int {
	return p.rx.Size()
}

// ResetRx discards all pending input.
func (p *Port) ResetRx() {
	p.rx.Reset()
}

// Stats returns a copy of the diagnostic counters.
func (p *Port) Stats() Stats {
	return Stats{
		RxDropped:   p.stats.rxDropped.Load(),
		RxHighWater: p.stats.rxHighWater.Load(),
		Discarded:   p.stats.discarded.Load(),
		Commands:    p.stats.commands.Load(),
		Ignored:     p.stats.ignored.Load(),
		TxAborted:   p.stats.txAborted.Load(),
	}
}

// HandleEvents implements EventHandler. Transmit is served before receive.
func (p *Port) HandleEvents(ev Event) {
	if ev.Has(EventTx) {
		p.HandleTx()
	}
	if ev.Has(EventRx) {
		p.HandleRx()
	}
}

// HandleRx drains all received bytes from the driver. Real-time commands are
// applied to the sink, extended bytes without a command are discarded and
// data bytes are queued, or dropped if the RX buffer is full.
func (p *Port) HandleRx() {
	var active bool
	for {
		b, ok := p.Driver.Receive()
		if !ok {
			break
		}
		active = true
		r := p.Classifier.Classify(b)
		switch r.Class {
		case realtime.ClassCommand:
			if system.Apply(p.Sink, r.Kind) {
				p.stats.commands.Inc()
			} else {
				p.stats.ignored.Inc()
			}
		case realtime.ClassDiscard:
			p.stats.discarded.Inc()
		default:
			if !p.rx.Push(b) {
				p.stats.rxDropped.Inc()
				continue
			}
			p.trackHighWater()
		}
	}
	if active && p.Notify != nil {
		p.Notify()
	}
}

// HandleTx moves queued bytes to the driver. Only one drain runs at a time;
// a request arriving during a drain makes the running one go again.
func (p *Port) HandleTx() {
	p.txPending.Store(true)
	for p.txPending.Load() {
		if !p.draining.CompareAndSwap(false, true) {
			return
		}
		p.txPending.Store(false)
		p.drain()
		p.draining.Store(false)
	}
}

func (p *Port) drain() {
	for {
		b, ok := p.tx.Peek()
		if !ok {
			return
		}
		if !p.Driver.Transmit(b) {
			// retried on next transmit event.
			return
		}
		p.tx.Skip()
	}
}

func (p *Port) trackHighWater() {
	used := uint32(p.rx.Used())
	for {
		max := p.stats.rxHighWater.Load()
		if used <= max || p.stats.rxHighWater.CompareAndSwap(max, used) {
			return
		}
	}
}
