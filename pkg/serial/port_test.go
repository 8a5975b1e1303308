package serial

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rtserial/pkg/realtime"
	"github.com/robotalks/rtserial/pkg/system"
)

type fakeDriver struct {
	lock   sync.Mutex
	in     []byte
	out    []byte
	budget int // bytes Transmit accepts, negative for unlimited
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{budget: -1}
}

func (d *fakeDriver) Receive() (byte, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if len(d.in) == 0 {
		return 0, false
	}
	b := d.in[0]
	d.in = d.in[1:]
	return b, true
}

func (d *fakeDriver) Transmit(b byte) bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.budget == 0 {
		return false
	}
	if d.budget > 0 {
		d.budget--
	}
	d.out = append(d.out, b)
	return true
}

func (d *fakeDriver) inject(p ...byte) {
	d.lock.Lock()
	d.in = append(d.in, p...)
	d.lock.Unlock()
}

func (d *fakeDriver) setBudget(n int) {
	d.lock.Lock()
	d.budget = n
	d.lock.Unlock()
}

func (d *fakeDriver) sent() []byte {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]byte(nil), d.out...)
}

type sinkCall struct {
	what   string
	bits   uint32
	rxUsed int
}

// recordingSink records every flag update together with the RX buffer usage
// at that moment, so tests can check side effects happen in arrival order.
type recordingSink struct {
	state   system.State
	aborted bool
	port    *Port
	calls   []sinkCall
}

func (s *recordingSink) record(what string, bits uint32) {
	var used int
	if s.port != nil {
		used = s.port.RxUsed()
	}
	s.calls = append(s.calls, sinkCall{what: what, bits: bits, rxUsed: used})
}

func (s *recordingSink) SetExecState(b system.ExecState) { s.record("exec", uint32(b)) }
func (s *recordingSink) SetMotionOverride(b system.MotionOverride) {
	s.record("motion", uint32(b))
}
func (s *recordingSink) SetAccessoryOverride(b system.AccessoryOverride) {
	s.record("accessory", uint32(b))
}
func (s *recordingSink) SetDebug(b system.Debug) { s.record("debug", uint32(b)) }
func (s *recordingSink) MotionReset()            { s.record("reset", 0) }
func (s *recordingSink) State() system.State     { return s.state }
func (s *recordingSink) Aborted() bool           { return s.aborted }

type portTestEnv struct {
	drv  *fakeDriver
	sink *recordingSink
	port *Port
}

func newPortTestEnv(rxSize, txSize int) *portTestEnv {
	env := &portTestEnv{drv: newFakeDriver(), sink: &recordingSink{}}
	env.port = NewPort(env.drv, env.sink).WithBufferSizes(rxSize, txSize)
	env.sink.port = env.port
	return env
}

func (e *portTestEnv) receive(p ...byte) {
	e.drv.inject(p...)
	e.port.HandleEvents(EventRx)
}

func (e *portTestEnv) readAll() []byte {
	var out []byte
	for {
		b := e.port.Read()
		if b == NoData {
			return out
		}
		out = append(out, b)
	}
}

func TestPortReceiveData(t *testing.T) {
	env := newPortTestEnv(16, 16)
	require.Equal(t, NoData, env.port.Read())
	_, err := env.port.ReadByte()
	require.Equal(t, ErrNoData, err)

	env.receive([]byte("G0 X1\n")...)
	require.Equal(t, 6, env.port.RxUsed())
	require.Equal(t, 10, env.port.RxAvailable())
	b, err := env.port.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte('G'), b)
	require.Equal(t, []byte("0 X1\n"), env.readAll())
	require.Empty(t, env.sink.calls)
}

func TestPortReceiveOverflow(t *testing.T) {
	env := newPortTestEnv(4, 4)
	env.receive('a', 'b', 'c', 'd', 'e', 'f')
	require.Equal(t, 4, env.port.RxUsed())
	require.Zero(t, env.port.RxAvailable())
	require.Equal(t, []byte("abcd"), env.readAll())
	stats := env.port.Stats()
	require.Equal(t, uint32(2), stats.RxDropped)
	require.Equal(t, uint32(4), stats.RxHighWater)
}

func TestPortCapacityInvariant(t *testing.T) {
	env := newPortTestEnv(8, 8)
	for i := 0; i < 30; i++ {
		env.receive(byte('a' + i%3))
		if i%4 == 0 {
			env.port.Read()
		}
		require.Equal(t, env.port.RxSize(), env.port.RxAvailable()+env.port.RxUsed())
	}
}

func TestPortResetRx(t *testing.T) {
	env := newPortTestEnv(8, 8)
	env.receive([]byte("stale")...)
	env.port.ResetRx()
	require.Zero(t, env.port.RxUsed())
	require.Equal(t, NoData, env.port.Read())
	env.receive('$')
	require.Equal(t, []byte("$"), env.readAll())
}

func TestPortResetCommand(t *testing.T) {
	env := newPortTestEnv(8, 8)
	env.receive(realtime.CmdReset)
	require.Zero(t, env.port.RxUsed())
	require.Equal(t, []sinkCall{{what: "reset"}}, env.sink.calls)

	env.receive('a', realtime.CmdReset, realtime.CmdReset)
	require.Len(t, env.sink.calls, 3)
	require.Equal(t, []byte("a"), env.readAll())
}

func TestPortDiscardExtended(t *testing.T) {
	env := newPortTestEnv(8, 8)
	env.receive(0xff, 0xfe, 0x98)
	require.Zero(t, env.port.RxUsed())
	require.Empty(t, env.sink.calls)
	require.Equal(t, uint32(3), env.port.Stats().Discarded)
}

func TestPortJogCancel(t *testing.T) {
	env := newPortTestEnv(8, 8)
	env.receive(realtime.CmdJogCancel)
	require.Empty(t, env.sink.calls)
	require.Zero(t, env.port.RxUsed())
	require.Equal(t, uint32(1), env.port.Stats().Ignored)

	env.sink.state = system.StateJog
	env.receive(realtime.CmdJogCancel)
	require.Equal(t, []sinkCall{{what: "exec", bits: uint32(system.ExecMotionCancel)}}, env.sink.calls)
}

func TestPortOverrides(t *testing.T) {
	env := newPortTestEnv(8, 8)
	env.receive(realtime.CmdFeedOvrCPlus, realtime.CmdRapidOvrLow, realtime.CmdSpindleStop, realtime.CmdFloodToggle)
	require.Equal(t, []sinkCall{
		{what: "motion", bits: uint32(system.ExecFeedOvrCoarsePlus)},
		{what: "motion", bits: uint32(system.ExecRapidOvrLow)},
		{what: "accessory", bits: uint32(system.ExecSpindleOvrStop)},
		{what: "accessory", bits: uint32(system.ExecCoolantFloodOvrToggle)},
	}, env.sink.calls)
	require.Equal(t, uint32(4), env.port.Stats().Commands)
}

func TestPortEndToEnd(t *testing.T) {
	env := newPortTestEnv(16, 16)
	env.receive('G', '1', realtime.CmdFeedHold, 'X', '1')
	require.Equal(t, []byte("G1X1"), env.readAll())
	// feed hold was set after 'G' '1' had been queued and before 'X' '1'.
	require.Equal(t, []sinkCall{{what: "exec", bits: uint32(system.ExecFeedHold), rxUsed: 2}}, env.sink.calls)
}

func TestPortNotify(t *testing.T) {
	env := newPortTestEnv(8, 8)
	var notified int
	env.port.Notify = func() { notified++ }
	env.port.HandleEvents(EventRx)
	require.Zero(t, notified)
	env.receive('?')
	require.Equal(t, 1, notified)
}

func TestPortWrite(t *testing.T) {
	env := newPortTestEnv(8, 8)
	n, err := env.port.WriteString("ok\r\n")
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []byte("ok\r\n"), env.drv.sent())
	require.Zero(t, env.port.TxUsed())
}

func TestPortTxDrainStopsWhenRefused(t *testing.T) {
	env := newPortTestEnv(8, 8)
	env.drv.setBudget(2)
	n, err := env.port.Write([]byte("abcde"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, []byte("ab"), env.drv.sent())
	require.Equal(t, 3, env.port.TxUsed())

	env.drv.setBudget(-1)
	env.port.HandleEvents(EventTx)
	require.Equal(t, []byte("abcde"), env.drv.sent())
	require.Zero(t, env.port.TxUsed())
}

func TestPortTxBlocksUntilDrained(t *testing.T) {
	const size = 8
	env := newPortTestEnv(8, size)
	env.drv.setBudget(0)
	for i := 0; i < size; i++ {
		require.NoError(t, env.port.WriteByte(byte('a'+i)))
	}
	require.Equal(t, size, env.port.TxUsed())

	done := make(chan error, 1)
	go func() {
		done <- env.port.WriteByte('z')
	}()
	select {
	case <-done:
		t.Fatal("write must block while TX buffer is full")
	case <-time.After(50 * time.Millisecond):
	}

	// one transmit event frees exactly one slot.
	env.drv.setBudget(1)
	env.port.HandleEvents(EventTx)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("write still blocked after drain")
	}
	require.Equal(t, size, env.port.TxUsed())
	require.Equal(t, []byte("a"), env.drv.sent())

	env.drv.setBudget(-1)
	env.port.HandleTx()
	require.Equal(t, []byte("abcdefghz"), env.drv.sent())
}

func TestPortTxAbort(t *testing.T) {
	env := newPortTestEnv(8, 2)
	env.drv.setBudget(0)
	require.NoError(t, env.port.WriteByte('a'))
	require.NoError(t, env.port.WriteByte('b'))
	env.sink.aborted = true
	require.Equal(t, ErrAborted, env.port.WriteByte('c'))
	n, err := env.port.Write([]byte("de"))
	require.Equal(t, ErrAborted, err)
	require.Zero(t, n)
	require.Equal(t, uint32(2), env.port.Stats().TxAborted)

	env.drv.setBudget(-1)
	env.port.HandleTx()
	require.Equal(t, []byte("ab"), env.drv.sent())
}
