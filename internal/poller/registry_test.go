package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rileyhilliard/rackwatch/internal/config"
	rwerrors "github.com/rileyhilliard/rackwatch/internal/errors"
	"github.com/rileyhilliard/rackwatch/internal/logger"
	"github.com/rileyhilliard/rackwatch/internal/session"
	sesstesting "github.com/rileyhilliard/rackwatch/internal/session/testing"
	"github.com/rileyhilliard/rackwatch/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sessions records every fake the registry asks for.
type sessions struct {
	mu   sync.Mutex
	byID map[string][]*sesstesting.FakeSession
	fail map[string]error
}

func newSessions() *sessions {
	return &sessions{
		byID: make(map[string][]*sesstesting.FakeSession),
		fail: make(map[string]error),
	}
}

func (s *sessions) factory(h config.Host) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	fake := scripted(h.Label())
	fake.ConnectErr = s.fail[h.ID]
	s.byID[h.ID] = append(s.byID[h.ID], fake)
	return fake
}

func (s *sessions) latest(id string) *sesstesting.FakeSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.byID[id]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

func (s *sessions) count(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID[id])
}

func newTestRegistry(t *testing.T, sess *sessions) *Registry {
	t.Helper()
	r := NewRegistry(store.New(), sess.factory, RegistryOptions{
		Poll:        Options{Interval: time.Hour, Logger: logger.Noop()},
		MaxParallel: 2,
		Logger:      logger.NewBufferLogger(),
	})
	t.Cleanup(r.DisconnectAll)
	return r
}

func hostWithOrder(id, name string, order int) config.Host {
	return config.Host{ID: id, Name: name, Address: id + ".lan", User: "admin", Order: order}
}

func TestRegistry_SyncAddsIdlePollers(t *testing.T) {
	sess := newSessions()
	r := newTestRegistry(t, sess)

	r.Sync(context.Background(), []config.Host{
		hostWithOrder("c", "charlie", 1),
		hostWithOrder("a", "alpha", 2),
		hostWithOrder("b", "bravo", 1),
	})

	hosts := r.Hosts()
	require.Len(t, hosts, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{hosts[0].ID, hosts[1].ID, hosts[2].ID})

	for _, p := range r.Pollers() {
		assert.Equal(t, Idle, p.State(), "added hosts are not connected")
	}
	assert.Equal(t, 0, sess.latest("a").Connects())
}

func TestRegistry_ConnectAll(t *testing.T) {
	sess := newSessions()
	sess.fail["bad"] = errors.New("no route to host")
	r := newTestRegistry(t, sess)
	r.Sync(context.Background(), []config.Host{
		hostWithOrder("good1", "good1", 0),
		hostWithOrder("bad", "bad", 0),
		hostWithOrder("good2", "good2", 0),
	})

	err := r.ConnectAll(context.Background())
	require.Error(t, err)
	assert.True(t, rwerrors.IsConnection(err))

	good1, _ := r.Poller("good1")
	good2, _ := r.Poller("good2")
	bad, _ := r.Poller("bad")
	assert.Equal(t, Active, good1.State())
	assert.Equal(t, Active, good2.State())
	assert.Equal(t, Idle, bad.State())

	assert.Eventually(t, func() bool {
		return r.Store().Loaded("good1") && r.Store().Loaded("good2")
	}, time.Second, 5*time.Millisecond)
	assert.False(t, r.Store().Loaded("bad"))

	// Already-active hosts are not reconnected.
	sess.fail["bad"] = nil
	sess.latest("bad").ConnectErr = nil
	require.NoError(t, r.ConnectAll(context.Background()))
	assert.Equal(t, 1, sess.latest("good1").Connects())
	assert.Equal(t, Active, bad.State())
}

func TestRegistry_DisconnectAll(t *testing.T) {
	sess := newSessions()
	r := newTestRegistry(t, sess)
	r.Sync(context.Background(), []config.Host{hostWithOrder("a", "a", 0), hostWithOrder("b", "b", 0)})
	require.NoError(t, r.ConnectAll(context.Background()))

	r.DisconnectAll()

	for _, p := range r.Pollers() {
		assert.Equal(t, Idle, p.State())
	}
	assert.Equal(t, session.Disconnected, sess.latest("a").State())
	assert.Equal(t, session.Disconnected, sess.latest("b").State())
}

func TestRegistry_SyncRemovesHosts(t *testing.T) {
	sess := newSessions()
	r := newTestRegistry(t, sess)
	r.Sync(context.Background(), []config.Host{hostWithOrder("a", "a", 0), hostWithOrder("b", "b", 0)})
	require.NoError(t, r.ConnectAll(context.Background()))
	assert.Eventually(t, func() bool { return r.Store().Loaded("b") }, time.Second, 5*time.Millisecond)

	r.Sync(context.Background(), []config.Host{hostWithOrder("a", "a", 0)})

	_, ok := r.Poller("b")
	assert.False(t, ok)
	assert.Equal(t, 1, sess.latest("b").Disconnects())
	assert.True(t, r.Store().Loaded("b"), "readings outlive the poller")
	assert.Len(t, r.Hosts(), 1)
}

func TestRegistry_SyncDisplayChangeKeepsPoller(t *testing.T) {
	sess := newSessions()
	r := newTestRegistry(t, sess)
	r.Sync(context.Background(), []config.Host{hostWithOrder("a", "old name", 0)})
	require.NoError(t, r.ConnectAll(context.Background()))
	before, _ := r.Poller("a")

	r.Sync(context.Background(), []config.Host{hostWithOrder("a", "new name", 5)})

	after, _ := r.Poller("a")
	assert.Same(t, before, after)
	assert.Equal(t, "new name", after.Host().Name)
	assert.Equal(t, Active, after.State())
	assert.Equal(t, 1, sess.count("a"))
}

func TestRegistry_SyncConnectionChangeReplacesPoller(t *testing.T) {
	sess := newSessions()
	r := newTestRegistry(t, sess)
	h := hostWithOrder("a", "a", 0)
	r.Sync(context.Background(), []config.Host{h})
	require.NoError(t, r.ConnectAll(context.Background()))
	before, _ := r.Poller("a")
	oldSession := sess.latest("a")

	h.Address = "10.0.0.99"
	r.Sync(context.Background(), []config.Host{h})

	after, _ := r.Poller("a")
	assert.NotSame(t, before, after)
	assert.Equal(t, 2, sess.count("a"))
	assert.Equal(t, 1, oldSession.Disconnects())
	assert.Equal(t, Active, after.State(), "active host is reconnected with new settings")
	assert.Equal(t, Idle, before.State())
}

func TestRegistry_RemoveHost(t *testing.T) {
	sess := newSessions()
	r := newTestRegistry(t, sess)
	r.Sync(context.Background(), []config.Host{hostWithOrder("a", "a", 0)})
	require.NoError(t, r.ConnectAll(context.Background()))

	assert.True(t, r.RemoveHost("a"))
	assert.False(t, r.RemoveHost("a"))
	assert.Equal(t, 1, sess.latest("a").Disconnects())
	assert.Empty(t, r.Pollers())
}

func TestRegistry_PollAll(t *testing.T) {
	sess := newSessions()
	r := newTestRegistry(t, sess)
	r.Sync(context.Background(), []config.Host{
		hostWithOrder("a", "a", 0),
		hostWithOrder("b", "b", 1),
		hostWithOrder("idle", "idle", 2),
	})
	a, _ := r.Poller("a")
	b, _ := r.Poller("b")
	require.NoError(t, a.Connect(context.Background()))
	require.NoError(t, b.Connect(context.Background()))

	results := r.PollAll(context.Background())
	require.Len(t, results, 2)
	ids := []string{results[0].HostID, results[1].HostID}
	assert.Equal(t, []string{"a", "b"}, ids)
	for _, res := range results {
		assert.True(t, res.Complete())
	}
	assert.Empty(t, sess.latest("idle").Calls())
}

func TestRegistry_Run(t *testing.T) {
	sess := newSessions()
	r := newTestRegistry(t, sess)
	r.Sync(context.Background(), []config.Host{hostWithOrder("a", "a", 0), hostWithOrder("b", "b", 0)})

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event)
	done := make(chan struct{})
	go func() {
		r.Run(ctx, events)
		close(done)
	}()

	allIn := func(want State) func() bool {
		return func() bool {
			for _, p := range r.Pollers() {
				if p.State() != want {
					return false
				}
			}
			return true
		}
	}

	events <- Foreground
	assert.Eventually(t, allIn(Active), time.Second, 5*time.Millisecond)

	events <- Background
	assert.Eventually(t, allIn(Idle), time.Second, 5*time.Millisecond)

	events <- Foreground
	assert.Eventually(t, allIn(Active), time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, sess.latest("a").Connects())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRegistry_RunStopsOnClosedChannel(t *testing.T) {
	r := newTestRegistry(t, newSessions())
	events := make(chan Event)
	close(events)
	r.Run(context.Background(), events)
}

func TestEvent_String(t *testing.T) {
	assert.Equal(t, "foreground", Foreground.String())
	assert.Equal(t, "background", Background.String())
	assert.Equal(t, "unknown", Event(0).String())
}
