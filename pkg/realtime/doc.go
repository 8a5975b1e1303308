// Package realtime defines the single-byte real-time commands which are
// picked out of the serial stream before they reach the line buffer.
package realtime

// Real-time command bytes are either one of four printable immediate
// triggers, or an extended byte above 0x7f. They are never framed: each
// byte takes effect on its own, in arrival order relative to data bytes.
//
// Producer: host
// Consumer: serial receive path
