package serial

// Event is a bitmask of pending peripheral conditions.
type Event uint8

const (
	// EventRx means received bytes are ready.
	EventRx Event = 1 << iota
	// EventTx means the transmitter can take more bytes.
	EventTx
)

// Has indicates e contains all bits in mask.
func (e Event) Has(mask Event) bool {
	return e&mask == mask
}

// Driver is the peripheral facade. Both methods must not block.
type Driver interface {
	// Receive returns the next received byte, or false when none is ready.
	Receive() (byte, bool)
	// Transmit hands one byte to the peripheral, or returns false when it
	// can't take it now.
	Transmit(byte) bool
}

// EventHandler is invoked from the peripheral's event context.
type EventHandler interface {
	HandleEvents(Event)
}

// HandleEventsFunc is func form of EventHandler.
type HandleEventsFunc func(Event)

// HandleEvents implements EventHandler.
func (f HandleEventsFunc) HandleEvents(ev Event) {
	f(ev)
}

// EventSource delivers peripheral events. Arm is the one-time setup call
// which enables receive and transmit events towards h.
type EventSource interface {
	Arm(h EventHandler) error
}
