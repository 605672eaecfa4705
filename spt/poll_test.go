package spt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vanovost/dc09spt/transpath"
)

func TestStartRoutineEmptyListOnIdleSPTIsNoop(t *testing.T) {
	s := New("1234", nil, nil, silentLog())
	s.StartRoutine(nil)
	require.Nil(t, s.scheduler)
}

func TestNextRoutineTimeNilStartFiresNextCycle(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	got := nextRoutineTime(now, nil, time.Hour)
	require.Equal(t, now, got)
}

func TestNextRoutineTimeAnchorsToSecondOfDay(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC) // 36000s into the day
	start := 3600 * 11                                  // 11:00:00
	got := nextRoutineTime(now, &start, 24*time.Hour)
	want := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	require.Equal(t, want, got)
}

func TestNextRoutineTimeAnchorInPastRollsForwardByInterval(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	start := 3600 * 9 // 09:00:00, already past
	got := nextRoutineTime(now, &start, 24*time.Hour)
	want := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	require.Equal(t, want, got)
}

func TestPollLifecycleStartsAndStopsWithoutHanging(t *testing.T) {
	recv := startFakeReceiver(t)
	defer recv.close()

	s := New("1234", nil, nil, silentLog())
	s.SetPath(Main, Primary, &Path{
		Target: transpath.Target{Host: "127.0.0.1", Port: recv.port(), Transport: transpath.TCP, Timeout: time.Second},
	})

	mainInterval := 30 * time.Millisecond
	s.StartPoll(&mainInterval, nil, 20*time.Millisecond, nil, nil)

	require.Eventually(t, func() bool {
		s.scheduleMu.Lock()
		sch := s.scheduler
		s.scheduleMu.Unlock()
		return sch != nil && sch.count() > 0
	}, 2*time.Second, 10*time.Millisecond, "scheduler should have polled at least once")

	done := make(chan struct{})
	go func() {
		s.StopPoll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("StopPoll hung")
	}

	require.Nil(t, s.scheduler)
}
