package wait

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var epoch = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func TestUntil_BlindWaitElapsesToDeadline(t *testing.T) {
	clock := NewFakeClock(epoch)
	res, err := Until(context.Background(), clock, epoch.Add(30*time.Second), 2*time.Second, nil)

	require.NoError(t, err)
	assert.False(t, res.Satisfied)
	assert.Equal(t, 0, res.Polls)
	assert.Equal(t, 30*time.Second, res.Elapsed)
	assert.Equal(t, epoch.Add(30*time.Second), clock.Now())
}

func TestUntil_ConditionSatisfiedEarly(t *testing.T) {
	clock := NewFakeClock(epoch)
	calls := 0
	cond := func(context.Context) bool {
		calls++
		return calls == 3
	}

	res, err := Until(context.Background(), clock, epoch.Add(30*time.Second), 2*time.Second, cond)
	require.NoError(t, err)
	assert.True(t, res.Satisfied)
	assert.Equal(t, 3, res.Polls)
	assert.Equal(t, 4*time.Second, res.Elapsed)
}

func TestUntil_TimeoutIsNotAnError(t *testing.T) {
	clock := NewFakeClock(epoch)
	res, err := Until(context.Background(), clock, epoch.Add(5*time.Second), 2*time.Second, func(context.Context) bool { return false })

	require.NoError(t, err)
	assert.False(t, res.Satisfied)
	assert.Equal(t, 5*time.Second, res.Elapsed)
	// 2s + 2s + 1s，最后一次不越过截止时间
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, time.Second}, clock.Sleeps())
}

func TestUntil_DeadlineAlreadyPassed(t *testing.T) {
	clock := NewFakeClock(epoch)
	clock.Advance(time.Minute)

	res, err := Until(context.Background(), clock, epoch, time.Second, func(context.Context) bool { return false })
	require.NoError(t, err)
	assert.Equal(t, 1, res.Polls)
	assert.Empty(t, clock.Sleeps())
}

func TestUntil_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Until(ctx, NewFakeClock(epoch), epoch.Add(time.Minute), time.Second, func(context.Context) bool { return false })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRealClock_SleepHonoursContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := RealClock()
	require.NoError(t, clock.Sleep(context.Background(), 5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := clock.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFromClockwork_SleepWaitsForAdvance(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	fc := clockwork.NewFakeClockAt(epoch)
	clock := FromClockwork(fc)

	done := make(chan error, 1)
	go func() { done <- clock.Sleep(ctx, time.Second) }()

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(time.Second)
	require.NoError(t, <-done)
	assert.Equal(t, epoch.Add(time.Second), clock.Now())
}

func TestFromClockwork_SleepCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)
	fc := clockwork.NewFakeClockAt(epoch)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- FromClockwork(fc).Sleep(ctx, time.Hour) }()

	require.NoError(t, fc.BlockUntilContext(context.Background(), 1))
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
