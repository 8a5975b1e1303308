package sim

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rtserial/pkg/realtime"
	"github.com/robotalks/rtserial/pkg/serial"
	"github.com/robotalks/rtserial/pkg/system"
)

type syncBuffer struct {
	lock sync.Mutex
	buf  bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.String()
}

func newTestPort(t *testing.T) (*UART, *serial.Port, *system.System) {
	uart := New()
	sys := system.New()
	port := serial.NewPort(uart, sys)
	require.NoError(t, port.Arm(uart))
	require.Equal(t, serial.ErrAlreadyArmed, uart.Arm(port))
	return uart, port, sys
}

func TestInjectDemux(t *testing.T) {
	uart, port, sys := newTestPort(t)
	uart.Inject([]byte{'G', '1', realtime.CmdFeedHold, 'X', '1', 0xff, realtime.CmdFeedOvrFPlus})
	var got []byte
	for b := port.Read(); b != serial.NoData; b = port.Read() {
		got = append(got, b)
	}
	require.Equal(t, []byte("G1X1"), got)
	require.Equal(t, system.ExecFeedHold, sys.ExecState())
	require.Equal(t, system.ExecFeedOvrFinePlus, sys.TakeMotionOverride())
	require.Equal(t, uint32(1), port.Stats().Discarded)
}

func TestInjectLargerThanFIFO(t *testing.T) {
	uart, port, _ := newTestPort(t)
	line := bytes.Repeat([]byte("0123456789"), 10)
	uart.Inject(line)
	require.Equal(t, len(line), port.RxUsed())
}

func TestEventsBeforeArm(t *testing.T) {
	uart := New()
	uart.Inject([]byte("abc"))
	port := serial.NewPort(uart, system.New())
	require.NoError(t, port.Arm(uart))
	uart.Interrupt(serial.EventRx)
	require.Equal(t, 3, port.RxUsed())
}

func TestTransmitThroughFIFO(t *testing.T) {
	uart, port, _ := newTestPort(t)
	msg := []byte("0123456789abcdefXYZ")
	n, err := port.Write(msg)
	require.NoError(t, err)
	require.Equal(t, len(msg), n)
	require.Equal(t, DefaultFIFODepth, uart.Pending())
	require.Equal(t, len(msg)-DefaultFIFODepth, port.TxUsed())

	out := uart.Shift(4)
	require.Equal(t, msg[:4], out)
	// transmit event moved the rest of the TX buffer into the FIFO.
	require.Equal(t, len(msg)-4, uart.Pending())
	require.Zero(t, port.TxUsed())
	out = append(out, uart.Shift(100)...)
	out = append(out, uart.Shift(100)...)
	require.Equal(t, msg, out)
	require.Zero(t, port.TxUsed())
}

func TestRunStreamsOutput(t *testing.T) {
	uart, port, _ := newTestPort(t)
	var out syncBuffer
	uart.Output = &out
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- uart.Run(ctx) }()

	msg := bytes.Repeat([]byte("ok\r\n"), 100)
	_, err := port.Write(msg)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return out.String() == string(msg)
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}
