// Package serial provides the buffered, interrupt-driven serial layer of the
// controller firmware.
package serial

// Two event contexts share state with the main loop:
//
//   - receive: drains the driver, picks off real-time command bytes into the
//     execution-state flags and queues everything else into the RX ring;
//   - transmit: moves bytes from the TX ring onto the driver until the driver
//     refuses one or the ring is empty.
//
// Each ring index has exactly one writer. The RX head and the TX tail belong
// to the event contexts, the RX tail and the TX head belong to the main loop.
//
// Producer: host (RX), main loop (TX)
// Consumer: main loop (RX), driver (TX)
