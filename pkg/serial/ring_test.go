package serial

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func requireConsistent(t *testing.T, r *Ring) {
	require.Equal(t, r.Size(), r.Available()+r.Used())
}

func TestRingFIFO(t *testing.T) {
	r := NewRing(8)
	require.True(t, r.IsEmpty())
	requireConsistent(t, r)
	// wrap around several times.
	for round := 0; round < 5; round++ {
		for i := 0; i < 5; i++ {
			require.True(t, r.Push(byte(round*10+i)))
			requireConsistent(t, r)
		}
		for i := 0; i < 5; i++ {
			b, ok := r.Pop()
			require.True(t, ok)
			require.Equal(t, byte(round*10+i), b)
			requireConsistent(t, r)
		}
	}
	_, ok := r.Pop()
	require.False(t, ok)
}

func TestRingFull(t *testing.T) {
	r := NewRing(4)
	for i := 0; i < 4; i++ {
		require.True(t, r.Push(byte(i)))
	}
	require.Equal(t, 4, r.Used())
	require.Zero(t, r.Available())
	require.False(t, r.Push(0xaa))
	requireConsistent(t, r)
	for i := 0; i < 4; i++ {
		b, ok := r.Pop()
		require.True(t, ok)
		require.Equal(t, byte(i), b)
	}
	require.True(t, r.IsEmpty())
}

func TestRingPeekSkip(t *testing.T) {
	r := NewRing(2)
	_, ok := r.Peek()
	require.False(t, ok)
	r.Skip()
	require.True(t, r.IsEmpty())
	r.Push('a')
	r.Push('b')
	b, ok := r.Peek()
	require.True(t, ok)
	require.Equal(t, byte('a'), b)
	require.Equal(t, 2, r.Used())
	r.Skip()
	b, _ = r.Peek()
	require.Equal(t, byte('b'), b)
}

func TestRingReset(t *testing.T) {
	r := NewRing(4)
	r.Push(1)
	r.Pop()
	r.Push(2)
	r.Push(3)
	r.Reset()
	require.Zero(t, r.Used())
	require.Equal(t, 4, r.Available())
	require.True(t, r.Push(4))
	b, _ := r.Pop()
	require.Equal(t, byte(4), b)
}

func TestRingPushWaitAbort(t *testing.T) {
	r := NewRing(1)
	require.True(t, r.PushWait('x', nil))
	var calls int
	require.False(t, r.PushWait('y', func() bool {
		calls++
		return calls == 3
	}))
	require.Equal(t, 3, calls)
	b, _ := r.Pop()
	require.Equal(t, byte('x'), b)
	require.True(t, r.IsEmpty())
}

func TestRingConcurrent(t *testing.T) {
	const total = 100000
	r := NewRing(16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			r.PushWait(byte(i), nil)
		}
	}()
	deadline := time.Now().Add(10 * time.Second)
	for i := 0; i < total; {
		b, ok := r.Pop()
		if !ok {
			require.True(t, time.Now().Before(deadline), "consumer starved")
			runtime.Gosched()
			continue
		}
		require.Equal(t, byte(i), b)
		i++
	}
	wg.Wait()
	require.True(t, r.IsEmpty())
}
