package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmit(t *testing.T) {
	p, err := New("test", &Config{Capacity: 4, ExpiryDuration: time.Second})
	require.NoError(t, err)
	defer p.Release()

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			mu.Lock()
			total++
			mu.Unlock()
		}))
	}
	wg.Wait()

	assert.Equal(t, 20, total)
	stats := p.Stats()
	assert.Equal(t, int64(20), stats.Submitted)
}

func TestSubmitAfterRelease(t *testing.T) {
	p, err := New("test", nil)
	require.NoError(t, err)

	p.Release()
	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
}

func TestSubmitWithContextCancelled(t *testing.T) {
	p, err := New("test", nil)
	require.NoError(t, err)
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = p.SubmitWithContext(ctx, func() {
		t.Error("task should not run")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGoFallsBackWhenOverloaded(t *testing.T) {
	p, err := New("test", &Config{Capacity: 1, ExpiryDuration: time.Second, Nonblocking: true})
	require.NoError(t, err)
	defer p.Release()

	block := make(chan struct{})
	require.NoError(t, p.Submit(func() { <-block }))

	done := make(chan struct{})
	p.Go(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fallback task did not run")
	}
	close(block)
}
