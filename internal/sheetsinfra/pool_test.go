package sheetsinfra

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	const max = 5
	p := newSessionPool(max)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := p.Acquire(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			time.Sleep(time.Millisecond)
			p.Release(s)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, p.PeakInUse(), max, "concurrent sessions never exceed the pool size")
	assert.Equal(t, 0, p.InUse(), "all sessions released")
}

func TestPoolRecyclesSessions(t *testing.T) {
	p := newSessionPool(2)

	s1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(s1)

	s2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, s1, s2, "idle session is reused before a new one is created")
	p.Release(s2)
}

func TestPoolAcquireHonorsContext(t *testing.T) {
	p := newSessionPool(1)

	s, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(s)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolDefaultsSize(t *testing.T) {
	p := newSessionPool(0)
	assert.Equal(t, 10, p.max)
}
