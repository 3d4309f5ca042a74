package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_AdvanceRecordsCheckpoints(t *testing.T) {
	s := NewState(context.Background())
	s.Reset()

	for _, v := range []int{CheckpointNormalize, CheckpointTranscriptionStart, CheckpointTranscriptionDone, CheckpointTranslation, CheckpointSynthesis} {
		s.Advance(v)
		assert.Equal(t, v, s.Progress())
	}
	assert.Equal(t, []int{20, 40, 60, 75, 100}, s.Checkpoints())
}

func TestState_AdvanceAfterCancelForcesZero(t *testing.T) {
	s := NewState(context.Background())
	s.Advance(CheckpointTranscriptionDone)
	require.Equal(t, 60, s.Progress())

	s.Cancel()
	assert.Equal(t, 0, s.Progress())
	assert.True(t, s.Cancelled())

	s.Advance(CheckpointTranslation)
	assert.Equal(t, 0, s.Progress())
	assert.Equal(t, []int{60}, s.Checkpoints())
}

func TestState_CancelCancelsContext(t *testing.T) {
	s := NewState(context.Background())
	require.NoError(t, s.Context().Err())

	s.Cancel()
	assert.ErrorIs(t, s.Context().Err(), context.Canceled)
}

func TestState_ParentCancelRaisesFlag(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	s := NewState(parent)
	s.Advance(CheckpointTranslation)

	cancel()
	assert.True(t, s.Cancelled())
	assert.ErrorIs(t, s.Context().Err(), context.Canceled)
	assert.Eventually(t, func() bool { return s.Progress() == 0 }, time.Second, 5*time.Millisecond)

	s.Advance(CheckpointSynthesis)
	assert.Equal(t, 0, s.Progress())
	assert.Equal(t, []int{75}, s.Checkpoints())
}

func TestState_ReleaseDetachesFromParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	s := NewState(parent)
	s.Advance(CheckpointSynthesis)
	s.release()

	cancel()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 100, s.Progress())
}

func TestState_ResetClearsFlagAndProgress(t *testing.T) {
	s := NewState(nil)
	s.Advance(40)
	s.Cancel()

	s.Reset()
	assert.False(t, s.Cancelled())
	assert.Equal(t, 0, s.Progress())
	assert.Empty(t, s.Checkpoints())

	s.Advance(20)
	assert.Equal(t, 20, s.Progress())
}

func TestState_ConcurrentUse(t *testing.T) {
	s := NewState(context.Background())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(v int) {
			defer wg.Done()
			s.Advance(v)
		}(i)
		go func() {
			defer wg.Done()
			_ = s.Progress()
		}()
	}
	wg.Wait()
	s.Cancel()
	s.Advance(100)
	assert.Equal(t, 0, s.Progress())
}
