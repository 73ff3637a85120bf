package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func TestFake_NowAndAdvance(t *testing.T) {
	c := Fake(epoch)
	assert.Equal(t, epoch, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, epoch.Add(90*time.Second), c.Now())
}

func TestFake_AfterFiresAtDeadline(t *testing.T) {
	c := Fake(epoch)
	ch := c.After(5 * time.Second)

	c.Advance(4 * time.Second)
	select {
	case <-ch:
		t.Fatal("fired early")
	default:
	}

	c.Advance(time.Second)
	select {
	case got := <-ch:
		assert.Equal(t, epoch.Add(5*time.Second), got)
	default:
		t.Fatal("did not fire")
	}
}

func TestFake_AfterNonPositiveFiresImmediately(t *testing.T) {
	c := Fake(epoch)
	select {
	case <-c.After(0):
	default:
		t.Fatal("expected immediate delivery")
	}
	assert.Equal(t, 0, c.Pending())
}

func TestFake_TimerStop(t *testing.T) {
	c := Fake(epoch)
	tm := c.NewTimer(time.Second)
	require.Equal(t, 1, c.Pending())

	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	assert.Equal(t, 0, c.Pending())

	c.Advance(2 * time.Second)
	select {
	case <-tm.C:
		t.Fatal("stopped timer fired")
	default:
	}
}

func TestFake_TickerRepeats(t *testing.T) {
	c := Fake(epoch)
	tk := c.NewTicker(time.Minute)
	defer tk.Stop()

	for i := 1; i <= 3; i++ {
		c.Advance(time.Minute)
		select {
		case got := <-tk.C:
			assert.Equal(t, epoch.Add(time.Duration(i)*time.Minute), got)
		default:
			t.Fatalf("tick %d missing", i)
		}
	}
}

func TestFake_WaitForTimers(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})

	go func() {
		<-c.After(time.Second)
		close(done)
	}()

	c.WaitForTimers(1)
	c.Advance(time.Second)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sleeper not released")
	}
}

func TestFake_TickerPanicsOnZero(t *testing.T) {
	require.Panics(t, func() { Fake(epoch).NewTicker(0) })
}
