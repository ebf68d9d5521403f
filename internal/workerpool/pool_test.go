package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func square(_ context.Context, n int) (int, int, error) {
	return n, n * n, nil
}

func TestRun_AllSucceed(t *testing.T) {
	ok, failed := Run(context.Background(), 3, []int{1, 2, 3, 4, 5}, square)

	assert.Empty(t, failed)
	assert.Equal(t, map[int]int{1: 1, 2: 4, 3: 9, 4: 16, 5: 25}, ok)
}

func TestRun_Empty(t *testing.T) {
	ok, failed := Run(context.Background(), 0, nil, square)
	assert.Empty(t, ok)
	assert.Empty(t, failed)
}

func TestRun_IsolatedFailures(t *testing.T) {
	errOdd := errors.New("odd")
	fn := func(_ context.Context, n int) (int, string, error) {
		if n%2 == 1 {
			return 0, "", errOdd
		}
		return n, "even", nil
	}

	ok, failed := Run(context.Background(), 2, []int{1, 2, 3, 4, 5, 6}, fn)

	assert.Equal(t, map[int]string{2: "even", 4: "even", 6: "even"}, ok)
	require.Len(t, failed, 3)
	for i, want := range []int{1, 3, 5} {
		assert.Equal(t, want, failed[i].Input)
		assert.ErrorIs(t, failed[i], errOdd)
	}
}

func TestRun_PanicIsFailure(t *testing.T) {
	fn := func(_ context.Context, s string) (string, int, error) {
		if s == "boom" {
			panic("converter exploded")
		}
		return s, len(s), nil
	}

	ok, failed := Run(context.Background(), 4, []string{"a", "boom", "ccc"}, fn)

	assert.Equal(t, map[string]int{"a": 1, "ccc": 3}, ok)
	require.Len(t, failed, 1)
	assert.Equal(t, "boom", failed[0].Input)
	assert.Contains(t, failed[0].Err.Error(), "converter exploded")
}

func TestRun_RespectsWorkerLimit(t *testing.T) {
	var running, peak atomic.Int32
	fn := func(_ context.Context, n int) (int, bool, error) {
		cur := running.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return n, true, nil
	}

	inputs := make([]int, 20)
	for i := range inputs {
		inputs[i] = i
	}
	ok, failed := Run(context.Background(), 3, inputs, fn)

	assert.Len(t, ok, 20)
	assert.Empty(t, failed)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, failed := Run(ctx, 2, []int{1, 2, 3}, square)

	assert.Empty(t, ok)
	require.Len(t, failed, 3)
	for _, f := range failed {
		assert.ErrorIs(t, f.Err, context.Canceled)
	}
}
