package editor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncer_CoalescesBurst(t *testing.T) {
	clock := &manualClock{}
	d := NewDebouncer(300*time.Millisecond, clock)
	var calls []int

	for i := 1; i <= 5; i++ {
		n := i
		d.Trigger(func() { calls = append(calls, n) })
		clock.Advance(100 * time.Millisecond)
	}
	assert.Empty(t, calls)
	assert.True(t, d.Pending())

	clock.Advance(200 * time.Millisecond)

	assert.Equal(t, []int{5}, calls)
	assert.False(t, d.Pending())
}

func TestDebouncer_SeparateWindowsRunSeparately(t *testing.T) {
	clock := &manualClock{}
	d := NewDebouncer(300*time.Millisecond, clock)
	var calls int

	d.Trigger(func() { calls++ })
	clock.Advance(300 * time.Millisecond)
	d.Trigger(func() { calls++ })
	clock.Advance(300 * time.Millisecond)

	assert.Equal(t, 2, calls)
}

func TestDebouncer_Cancel(t *testing.T) {
	clock := &manualClock{}
	d := NewDebouncer(0, clock)
	var calls int

	d.Trigger(func() { calls++ })
	d.Cancel()
	clock.Advance(time.Second)

	assert.Zero(t, calls)
	assert.Equal(t, DefaultDebounceWindow, d.Window())
}

func TestDebouncer_RealClock(t *testing.T) {
	d := NewDebouncer(10*time.Millisecond, nil)
	var calls atomic.Int32
	done := make(chan struct{})

	d.Trigger(func() { calls.Add(1) })
	d.Trigger(func() {
		calls.Add(1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debounced function never ran")
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}
