package registry

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aerocoord/fleetcoord/pkg/discovery"
)

// fakeWorker emits one sighting then blocks until canceled.
type fakeWorker struct {
	name    string
	result  discovery.Result
	running atomic.Bool
}

func (w *fakeWorker) Name() string { return w.name }

func (w *fakeWorker) Start(ctx context.Context, emit discovery.ResultFunc) error {
	w.running.Store(true)
	defer w.running.Store(false)

	emit(w.result)

	<-ctx.Done()

	return nil
}

func (*fakeWorker) Stop() {}

func TestDiscoveryManagerLifecycle(t *testing.T) {
	reg, _ := newTestRegistry(t)
	worker := &fakeWorker{
		name:   "fake",
		result: discovery.Result{DroneID: "d1", Endpoint: "http://pi:9000"},
	}

	mgr := NewDiscoveryManager(reg, worker)
	require.NoError(t, mgr.Start(context.Background()))
	assert.True(t, mgr.Active())

	assert.ErrorIs(t, mgr.Start(context.Background()), ErrDiscoveryRunning)

	// The worker's sighting lands in the registry.
	require.Eventually(t, func() bool {
		_, err := reg.GetDrone("d1")
		return err == nil
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, mgr.Stop())
	assert.False(t, mgr.Active())
	assert.False(t, worker.running.Load(), "stop waits for worker exit")

	assert.ErrorIs(t, mgr.Stop(), ErrDiscoveryNotRunning)
}

func TestDiscoveryManagerRejectsWorkersWhileRunning(t *testing.T) {
	reg, _ := newTestRegistry(t)
	mgr := NewDiscoveryManager(reg, &fakeWorker{name: "one"})

	require.NoError(t, mgr.Start(context.Background()))
	defer func() { _ = mgr.Stop() }()

	assert.ErrorIs(t, mgr.AddWorker(&fakeWorker{name: "two"}), ErrDiscoveryRunning)
}
