package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"collegovibe/internal/metrics"
)

func TestRegistry_LastAnnounceWins(t *testing.T) {
	r := NewRegistry(nil)
	first, second := uuid.New(), uuid.New()

	_, replaced := r.Announce("alice", first)
	assert.False(t, replaced)

	prev, replaced := r.Announce("alice", second)
	assert.True(t, replaced)
	assert.Equal(t, first, prev)

	got, ok := r.Lookup("alice")
	assert.True(t, ok)
	assert.Equal(t, second, got)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_StaleRemoveKeepsNewerBinding(t *testing.T) {
	r := NewRegistry(nil)
	old, fresh := uuid.New(), uuid.New()
	r.Announce("bob", old)
	r.Announce("bob", fresh)

	assert.False(t, r.Remove("bob", old))
	got, ok := r.Lookup("bob")
	assert.True(t, ok)
	assert.Equal(t, fresh, got)

	assert.True(t, r.Remove("bob", fresh))
	_, ok = r.Lookup("bob")
	assert.False(t, ok)
	assert.False(t, r.Remove("bob", fresh))
}

func TestRegistry_ClearAndGauge(t *testing.T) {
	m := metrics.NewCollector(prometheus.NewRegistry())
	r := NewRegistry(m.PresentUsers)

	r.Announce("alice", uuid.New())
	r.Announce("bob", uuid.New())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PresentUsers))

	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PresentUsers))
}

func TestRegistry_ConcurrentAnnounceAndRemove(t *testing.T) {
	r := NewRegistry(nil)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handle := fmt.Sprintf("user%d", i%8)
			conn := uuid.New()
			r.Announce(handle, conn)
			r.Lookup(handle)
			if i%2 == 0 {
				r.Remove(handle, conn)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, r.Len(), 8)
}
