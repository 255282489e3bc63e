package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rileyhilliard/rackwatch/internal/config"
	rwerrors "github.com/rileyhilliard/rackwatch/internal/errors"
	"github.com/rileyhilliard/rackwatch/internal/logger"
	"github.com/rileyhilliard/rackwatch/internal/metrics"
	"github.com/rileyhilliard/rackwatch/internal/session"
	sesstesting "github.com/rileyhilliard/rackwatch/internal/session/testing"
	"github.com/rileyhilliard/rackwatch/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Realistic output for every command in the batch.
var cannedOutput = map[string]string{
	metrics.CmdTemperature.Script: "52000\n",
	metrics.CmdTopSummary.Script:  "top - 10:00:00 up 1 day,  3:00,  2 users,  load average: 0.50, 0.40, 0.30\n",
	metrics.CmdCPUCores.Script: "%Cpu0  : 10.0 us,  5.0 sy,  0.0 ni, 80.0 id,  5.0 wa,  0.0 hi,  0.0 si,  0.0 st\n" +
		"%Cpu1  : 20.0 us,  5.0 sy,  0.0 ni, 70.0 id,  5.0 wa,  0.0 hi,  0.0 si,  0.0 st\n",
	metrics.CmdCPUTotals.Script: "%Cpu(s): 15.0 us,  5.0 sy,  0.0 ni, 75.0 id,  5.0 wa,  0.0 hi,  0.0 si,  0.0 st\n",
	metrics.CmdTasks.Script:     "Tasks: 100 total,   1 running,  99 sleeping,   0 stopped,   0 zombie\n",
	metrics.CmdMemory.Script:    "MiB Mem :   8000.0 total,   2000.0 free,   4000.0 used,   2000.0 buff/cache\n",
	metrics.CmdSwap.Script:      "MiB Swap:   1000.0 total,    750.0 free,    250.0 used.   3500.0 avail Mem\n",
	metrics.CmdNetwork.Script: "Inter-| - Receive down | up split\n face | - bytes down packets up split\n" +
		"lo: - 1048576 down 1048576 up split\neth0: - 2097152 down 3145728 up split\n",
	metrics.CmdDiskFree.Script:  "/dev/sda1 | 1000M | 400M | 600M | 40% | / split\n",
	metrics.CmdDiskStats.Script: "sda 2048 4096 split\n",
}

func scripted(name string) *sesstesting.FakeSession {
	fake := sesstesting.NewFakeSession(name)
	for cmd, out := range cannedOutput {
		fake.SetOutput(cmd, out)
	}
	return fake
}

func testHost(id string) config.Host {
	return config.Host{ID: id, Name: id, Address: id + ".lan", User: "admin"}
}

type fixture struct {
	poller *Poller
	fake   *sesstesting.FakeSession
	store  *store.Store
	ticks  chan TickResult
}

func newFixture(t *testing.T, interval time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		fake:  scripted("nas"),
		store: store.New(),
		ticks: make(chan TickResult, 100),
	}
	f.poller = New(testHost("nas"), f.fake, f.store, Options{
		Interval: interval,
		Logger:   logger.NewBufferLogger(),
		OnTick:   func(r TickResult) { f.ticks <- r },
	})
	t.Cleanup(func() { _ = f.poller.Disconnect() })
	return f
}

func (f *fixture) nextTick(t *testing.T) TickResult {
	t.Helper()
	select {
	case r := <-f.ticks:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a tick")
		return TickResult{}
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "active", Active.String())
	assert.Equal(t, "unknown", State(7).String())
}

func TestPoller_FullTick(t *testing.T) {
	f := newFixture(t, time.Hour)

	require.NoError(t, f.poller.Connect(context.Background()))
	assert.Equal(t, Active, f.poller.State())

	res := f.nextTick(t)
	assert.True(t, res.Complete())
	assert.False(t, res.Disconnected)
	assert.Equal(t, "nas", res.HostID)

	// Commands run in the fixed order.
	var want []string
	for _, c := range metrics.PollOrder {
		want = append(want, c.Script)
	}
	assert.Equal(t, want, f.fake.Calls())

	e, ok := f.store.Get("nas")
	require.True(t, ok)
	assert.True(t, e.Loaded)
	assert.True(t, f.poller.Loaded())

	assert.Equal(t, 52, e.Celsius.Value)
	assert.Equal(t, 125, e.Fahrenheit.Value)
	assert.Equal(t, [3]float64{0.5, 0.4, 0.3}, e.Load.Value)
	assert.Len(t, e.Cores.Value, 2)
	assert.Equal(t, 75.0, e.Idle.Value)
	assert.Equal(t, 25.0, e.CPUUsage.Value)
	assert.Equal(t, 100, e.Tasks.Value.Total)
	assert.Equal(t, 500.0, e.MemoryUsed.Value)
	assert.Equal(t, 250.0, e.SwapUsed.Value)
	assert.Equal(t, 3500.0, e.Swap.Value.Cache)
	assert.Equal(t, 3.0, e.Down.Value)
	assert.Equal(t, 4.0, e.Up.Value)
	require.Len(t, e.StorageDevices.Value, 1)
	assert.Equal(t, 40, e.StorageDevices.Value[0].PercentUsed)
	assert.Equal(t, 1.0, e.Reads.Value)
	assert.Equal(t, 2.0, e.Writes.Value)
}

// A command that fails for lack of a session must not stop the rest of the
// batch from landing in the store.
func TestPoller_CommandFailureIsolated(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.fake.SetFailure(metrics.CmdTemperature.Script, rwerrors.NotConnected("nas"))

	require.NoError(t, f.poller.Connect(context.Background()))
	res := f.nextTick(t)

	assert.Equal(t, []string{metrics.CmdTemperature.Name}, res.Failed)
	assert.Len(t, f.fake.Calls(), len(metrics.PollOrder), "batch continued after the failure")

	e, ok := f.store.Get("nas")
	require.True(t, ok)
	assert.False(t, e.Temperature.Valid)
	assert.False(t, e.Loaded, "loaded requires a fully successful tick")
	assert.True(t, e.Memory.Valid)
	assert.True(t, e.Swap.Valid)
	assert.True(t, e.NetworkDevices.Valid)
	assert.True(t, e.StorageDevices.Valid)
	assert.True(t, e.DeviceIOs.Valid)

	assert.Equal(t, Active, f.poller.State(), "session still connected")
	assert.Error(t, f.poller.LastError())
}

// After a CPU command fails, readers keep seeing the previous tick's values.
func TestPoller_LastKnownGood(t *testing.T) {
	f := newFixture(t, time.Hour)

	require.NoError(t, f.poller.Connect(context.Background()))
	first := f.nextTick(t)
	require.True(t, first.Complete())

	idle, ok := f.store.Field("nas", store.FieldIdle)
	require.True(t, ok)
	require.Equal(t, 75.0, idle)

	f.fake.SetOutput(metrics.CmdMemory.Script, "MiB Mem : 8000.0 total, 6000.0 free, 1000.0 used, 1000.0 buff/cache\n")
	f.fake.SetFailure(metrics.CmdCPUTotals.Script, rwerrors.New(rwerrors.ErrExec, "top timed out", ""))
	f.fake.SetFailure(metrics.CmdCPUCores.Script, rwerrors.New(rwerrors.ErrExec, "top timed out", ""))

	second, err := f.poller.PollNow(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{metrics.CmdCPUCores.Name, metrics.CmdCPUTotals.Name}, second.Failed)

	idle, ok = f.store.Field("nas", store.FieldIdle)
	require.True(t, ok)
	assert.Equal(t, 75.0, idle, "idle kept from tick 1")

	cores, _ := f.store.Field("nas", store.FieldCores)
	assert.Len(t, cores, 2)

	used, _ := f.store.Field("nas", store.FieldMemoryUsed)
	assert.Equal(t, 125.0, used, "memory moved on")

	assert.True(t, f.poller.Loaded(), "loaded stays true once reached")
}

func TestPoller_EmptyOutputWritesDefaults(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.fake.SetOutput(metrics.CmdTemperature.Script, "")

	require.NoError(t, f.poller.Connect(context.Background()))
	res := f.nextTick(t)
	assert.True(t, res.Complete())

	v, ok := f.store.Field("nas", store.FieldFahrenheit)
	require.True(t, ok)
	assert.Equal(t, 0, v)
}

func TestPoller_ConnectFailure(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.fake.ConnectErr = errors.New("connection refused")

	err := f.poller.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, rwerrors.IsConnection(err))
	assert.Equal(t, Idle, f.poller.State())
	assert.Equal(t, err, f.poller.LastError())
	assert.Empty(t, f.fake.Calls())

	_, ok := f.store.Get("nas")
	assert.False(t, ok, "a host that never connects has no entry")

	// The next explicit connect recovers.
	f.fake.ConnectErr = nil
	require.NoError(t, f.poller.Connect(context.Background()))
	assert.Equal(t, Active, f.poller.State())
	assert.NoError(t, f.poller.LastError())
}

func TestPoller_ConnectIdempotent(t *testing.T) {
	f := newFixture(t, time.Hour)

	require.NoError(t, f.poller.Connect(context.Background()))
	require.NoError(t, f.poller.Connect(context.Background()))
	assert.Equal(t, 1, f.fake.Connects())
}

func TestPoller_PollNowRequiresActive(t *testing.T) {
	f := newFixture(t, time.Hour)

	_, err := f.poller.PollNow(context.Background())
	require.Error(t, err)
	assert.True(t, rwerrors.IsNotConnected(err))
}

func TestPoller_Periodic(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)

	require.NoError(t, f.poller.Connect(context.Background()))
	for i := 0; i < 3; i++ {
		f.nextTick(t)
	}

	require.NoError(t, f.poller.Disconnect())
	assert.Equal(t, Idle, f.poller.State())
	assert.Equal(t, session.Disconnected, f.fake.State())

	// Drain anything that raced with Disconnect, then expect silence.
	for len(f.ticks) > 0 {
		<-f.ticks
	}
	f.fake.ResetCalls()
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, f.fake.Calls(), "no ticks after disconnect")
}

func TestPoller_SessionDropGoesIdle(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.fake.DropOn(metrics.CmdMemory.Script)

	require.NoError(t, f.poller.Connect(context.Background()))
	res := f.nextTick(t)

	assert.True(t, res.Disconnected)
	assert.Contains(t, res.Failed, metrics.CmdMemory.Name)
	assert.Contains(t, res.Failed, metrics.CmdDiskStats.Name, "later commands fail without a session")
	assert.Eventually(t, func() bool { return f.poller.State() == Idle }, time.Second, 5*time.Millisecond)

	// Fields written before the drop survive.
	e, _ := f.store.Get("nas")
	assert.True(t, e.Idle.Valid)
	assert.False(t, e.Memory.Valid)

	// No automatic retry; the next connect is explicit.
	assert.Equal(t, 1, f.fake.Connects())
	require.NoError(t, f.poller.Connect(context.Background()))
	assert.Equal(t, 2, f.fake.Connects())
}

func TestPoller_DisconnectWaitsForInFlightTick(t *testing.T) {
	f := newFixture(t, time.Hour)
	release := make(chan struct{})
	f.fake.BlockOn(metrics.CmdDiskStats.Script, release)

	require.NoError(t, f.poller.Connect(context.Background()))
	assert.Eventually(t, func() bool {
		calls := f.fake.Calls()
		return len(calls) > 0 && calls[len(calls)-1] == metrics.CmdDiskStats.Script
	}, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = f.poller.Disconnect()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("disconnect returned while a tick was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect never returned")
	}

	res := f.nextTick(t)
	assert.True(t, res.Complete(), "in-flight tick finished normally")
	assert.True(t, f.poller.Loaded())
	assert.Equal(t, 1, f.fake.Disconnects())
}

func TestPoller_History(t *testing.T) {
	hist := store.NewHistory(10)
	st := store.New()
	fake := scripted("nas")
	p := New(testHost("nas"), fake, st, Options{Interval: time.Hour, History: hist, Logger: logger.Noop()})
	defer p.Disconnect()

	require.NoError(t, p.Connect(context.Background()))
	assert.Eventually(t, func() bool { return hist.Count("nas") == 1 }, time.Second, 5*time.Millisecond)

	_, err := p.PollNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, hist.Count("nas"))
	assert.Equal(t, []float64{25, 25}, hist.CPUSeries("nas", 10))
}

func TestPoller_DebugLogsEmptyOutput(t *testing.T) {
	log := logger.NewBufferLogger()
	fake := scripted("nas")
	fake.SetOutput(metrics.CmdTasks.Script, "")
	p := New(testHost("nas"), fake, store.New(), Options{Interval: time.Hour, Logger: log})
	defer p.Disconnect()

	require.NoError(t, p.Connect(context.Background()))
	_, err := p.PollNow(context.Background())
	require.NoError(t, err)
	assert.True(t, log.Contains("debug", "tasks returned no output"))
}
