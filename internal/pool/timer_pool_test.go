package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerPool(t *testing.T) {
	assert := assert.New(t)

	t.Run("Get and Put", func(t *testing.T) {
		timer1 := GetTimer(time.Second)
		assert.NotNil(timer1)
		PutTimer(timer1)

		timer2 := GetTimer(10 * time.Millisecond)
		assert.NotNil(timer2)

		select {
		case <-timer2.C:
		case <-time.After(time.Second):
			assert.Fail("reused timer did not fire")
		}
	})

	t.Run("Reused timer has no stale value", func(t *testing.T) {
		timer1 := GetTimer(time.Millisecond)
		time.Sleep(5 * time.Millisecond)
		PutTimer(timer1)

		timer2 := GetTimer(200 * time.Millisecond)
		defer PutTimer(timer2)

		select {
		case <-timer2.C:
			assert.Fail("timer fired early")
		case <-time.After(20 * time.Millisecond):
		}
	})

	t.Run("Concurrent Use", func(t *testing.T) {
		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				timer := GetTimer(time.Millisecond)
				<-timer.C
				PutTimer(timer)
			}()
		}
		wg.Wait()
	})
}

func TestSleep(t *testing.T) {
	require := require.New(t)

	start := time.Now()
	require.NoError(Sleep(context.Background(), 20*time.Millisecond))
	require.GreaterOrEqual(time.Since(start), 20*time.Millisecond)

	require.NoError(Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(Sleep(ctx, time.Hour), context.Canceled)
	require.ErrorIs(Sleep(ctx, 0), context.Canceled)

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	start = time.Now()
	require.ErrorIs(Sleep(ctx, time.Hour), context.DeadlineExceeded)
	require.Less(time.Since(start), time.Second)
}

func TestDeadline(t *testing.T) {
	require := require.New(t)

	dl := Deadline(context.Background(), time.Minute)
	require.WithinDuration(time.Now().Add(time.Minute), dl, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ctxDl, _ := ctx.Deadline()
	require.Equal(ctxDl, Deadline(ctx, time.Hour))
}
