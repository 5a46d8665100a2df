package keyedqueue

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestQueue_PreservesOrderPerKey(t *testing.T) {
	q := New(4, 64, zap.NewNop())
	q.Start()

	var mu sync.Mutex
	got := map[string][]int{}

	keys := []string{"guild-a", "guild-b", "guild-c"}
	for i := 0; i < 50; i++ {
		for _, k := range keys {
			k, i := k, i
			q.Submit(k, func() {
				mu.Lock()
				got[k] = append(got[k], i)
				mu.Unlock()
			})
		}
	}
	q.Stop()

	for _, k := range keys {
		require.Len(t, got[k], 50, k)
		for i, v := range got[k] {
			assert.Equal(t, i, v, "orden roto en %s", k)
		}
	}
}

func TestQueue_SameKeySameLane(t *testing.T) {
	q := New(8, 1, zap.NewNop())
	for i := 0; i < 100; i++ {
		k := fmt.Sprintf("guild-%d", i)
		assert.Equal(t, q.lane(k), q.lane(k))
	}
}

func TestQueue_RecoversFromPanic(t *testing.T) {
	q := New(1, 4, zap.NewNop())
	q.Start()

	done := make(chan struct{})
	q.Submit("g", func() { panic("boom") })
	q.Submit("g", func() { close(done) })
	<-done
	q.Stop()
}
