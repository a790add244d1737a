package telemetry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheUpdateCreatesEntry(t *testing.T) {
	cache := NewCache()

	cache.Update("drone-001", map[string]interface{}{"battery": 95.0})

	payload, capturedAt, ok := cache.Get("drone-001")
	require.True(t, ok)
	assert.Equal(t, 95.0, payload["battery"])
	assert.False(t, capturedAt.IsZero())
}

func TestCacheUpdateReplacesWholeRecord(t *testing.T) {
	cache := NewCache()

	cache.Update("d1", map[string]interface{}{"battery": 95.0, "altitude": 120.0})
	cache.Update("d1", map[string]interface{}{"battery": 90.0})

	payload, _, ok := cache.Get("d1")
	require.True(t, ok)
	assert.Equal(t, 90.0, payload["battery"])
	assert.NotContains(t, payload, "altitude", "updates replace, never merge")
}

func TestCacheSnapshotIsCopy(t *testing.T) {
	cache := NewCache()
	cache.Update("d1", map[string]interface{}{"battery": 50.0})

	snapshot := cache.Snapshot()
	snapshot["d1"]["battery"] = 1.0

	payload, _, _ := cache.Get("d1")
	assert.Equal(t, 50.0, payload["battery"])
}

func TestCacheGetUnknownDrone(t *testing.T) {
	cache := NewCache()

	_, _, ok := cache.Get("nobody")
	assert.False(t, ok)
	assert.Empty(t, cache.Snapshot())
}

func TestCacheConcurrentAccess(t *testing.T) {
	cache := NewCache()

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				cache.Update("d1", map[string]interface{}{"n": float64(j)})
			}
		}()

		go func() {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				_ = cache.Snapshot()
			}
		}()
	}

	wg.Wait()
}
