package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal_RunsJobsInOrderAndDrainsOnClose(t *testing.T) {
	j := newJournal()
	done := make(chan struct{})
	go func() {
		defer close(done)
		j.run(context.Background())
	}()

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 50; i++ {
		i := i
		require.True(t, j.push(func(context.Context) {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	j.close()
	assert.False(t, j.push(func(context.Context) {}), "closed journal refuses work")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("journal did not drain after close")
	}
	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}
