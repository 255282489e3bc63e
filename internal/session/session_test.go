package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rileyhilliard/rackwatch/internal/config"
	rwerrors "github.com/rileyhilliard/rackwatch/internal/errors"
	"github.com/rileyhilliard/rackwatch/internal/logger"
	"github.com/rileyhilliard/rackwatch/pkg/sshutil"
	sstesting "github.com/rileyhilliard/rackwatch/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHost() config.Host {
	return config.Host{ID: "h1", Name: "nas", Address: "10.0.0.5", Port: 2222, User: "admin", Password: "pw"}
}

func newTestSession(t *testing.T, dialer *sstesting.Dialer) (*Session, *logger.BufferLogger) {
	t.Helper()
	log := logger.NewBufferLogger()
	s := New(testHost(), Options{
		ConnectTimeout: 3 * time.Second,
		HostKeyPolicy:  sshutil.HostKeyAcceptNew,
		KnownHostsPath: "/tmp/known_hosts",
		Dialer:         dialer.Dial,
		Logger:         log,
	})
	return s, log
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "unknown", State(9).String())
}

func TestConnect(t *testing.T) {
	client := sstesting.NewMockClient("nas")
	dialer := sstesting.NewDialer(client)
	s, _ := newTestSession(t, dialer)

	assert.Equal(t, Disconnected, s.State())
	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, Connected, s.State())

	require.Len(t, dialer.Dials, 1)
	opts := dialer.Dials[0]
	assert.Equal(t, "10.0.0.5", opts.Address)
	assert.Equal(t, 2222, opts.Port)
	assert.Equal(t, "admin", opts.User)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 3*time.Second, opts.Timeout)
	assert.Equal(t, sshutil.HostKeyAcceptNew, opts.HostKeyPolicy)
	assert.Equal(t, "/tmp/known_hosts", opts.KnownHostsPath)

	// Already connected: no second dial, no error.
	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, 1, dialer.DialCount())
}

func TestConnect_PasswordFromEnv(t *testing.T) {
	t.Setenv("NAS_PW", "from-env")
	dialer := sstesting.NewDialer()
	host := testHost()
	host.PasswordEnv = "NAS_PW"
	s := New(host, Options{Dialer: dialer.Dial, Logger: logger.Noop()})

	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, "from-env", dialer.Dials[0].Password)
}

func TestConnect_Failure(t *testing.T) {
	dialer := sstesting.NewDialer()
	dialer.Err = rwerrors.New(rwerrors.ErrSSH, "Can't reach 10.0.0.5:2222", "")
	s, log := newTestSession(t, dialer)

	err := s.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, rwerrors.IsConnection(err))
	assert.Contains(t, err.Error(), "nas")
	assert.Equal(t, Disconnected, s.State())
	assert.True(t, log.HasLevel("warn"))

	// A later attempt can succeed.
	dialer.Err = nil
	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, Connected, s.State())
}

func TestConnect_Serialized(t *testing.T) {
	dialer := sstesting.NewDialer(sstesting.NewMockClient("nas"))
	s, _ := newTestSession(t, dialer)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Connect(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, dialer.DialCount())
	assert.Equal(t, Connected, s.State())
}

func TestExecute_NotConnected(t *testing.T) {
	s, _ := newTestSession(t, sstesting.NewDialer())

	out, err := s.Execute(context.Background(), "uptime")
	require.Error(t, err)
	assert.True(t, rwerrors.IsNotConnected(err))
	assert.Empty(t, out)
}

func TestExecute(t *testing.T) {
	client := sstesting.NewMockClient("nas")
	client.SetOutput("cat /proc/net/dev", "lo: - 1 down 2 up split\n")
	client.SetCommandResponse("top -bn1", sstesting.CommandResponse{
		Stdout:   []byte("partial\n"),
		Stderr:   []byte("top: failed tty get\nmore\n"),
		ExitCode: 1,
	})
	s, log := newTestSession(t, sstesting.NewDialer(client))
	require.NoError(t, s.Connect(context.Background()))

	t.Run("stdout returned", func(t *testing.T) {
		out, err := s.Execute(context.Background(), "cat /proc/net/dev")
		require.NoError(t, err)
		assert.Equal(t, "lo: - 1 down 2 up split\n", out)
	})

	t.Run("non-zero exit keeps stdout", func(t *testing.T) {
		out, err := s.Execute(context.Background(), "top -bn1")
		require.NoError(t, err)
		assert.Equal(t, "partial\n", out)
		assert.True(t, log.Contains("debug", "exited 1"))
		assert.True(t, log.Contains("debug", "failed tty get"))
	})

	t.Run("missing binary is empty output", func(t *testing.T) {
		out, err := s.Execute(context.Background(), "sensors")
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("remote error", func(t *testing.T) {
		client.SetCommandResponse("boom", sstesting.CommandResponse{ExitCode: -1, Error: errors.New("channel closed")})
		_, err := s.Execute(context.Background(), "boom")
		require.Error(t, err)
		assert.True(t, rwerrors.IsExecution(err))
		assert.Equal(t, Connected, s.State(), "a single command failure keeps the session")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.Execute(ctx, "cat /proc/net/dev")
		require.Error(t, err)
		assert.True(t, rwerrors.IsExecution(err))
		assert.Equal(t, Connected, s.State())
	})
}

func TestExecute_TransportDrop(t *testing.T) {
	first := sstesting.NewMockClient("nas")
	second := sstesting.NewMockClient("nas")
	second.SetOutput("uptime", "up\n")
	dialer := sstesting.NewDialer(first, second)
	s, log := newTestSession(t, dialer)
	require.NoError(t, s.Connect(context.Background()))

	first.Drop()
	_, err := s.Execute(context.Background(), "uptime")
	require.Error(t, err)
	assert.True(t, rwerrors.IsExecution(err))
	assert.Equal(t, Disconnected, s.State())
	assert.True(t, first.Closed())
	assert.True(t, log.Contains("warn", "lost connection"))

	_, err = s.Execute(context.Background(), "uptime")
	assert.True(t, rwerrors.IsNotConnected(err))

	// Recovery needs an explicit connect.
	require.NoError(t, s.Connect(context.Background()))
	out, err := s.Execute(context.Background(), "uptime")
	require.NoError(t, err)
	assert.Equal(t, "up\n", out)
	assert.Equal(t, 2, dialer.DialCount())
}

func TestDisconnect(t *testing.T) {
	client := sstesting.NewMockClient("nas")
	s, _ := newTestSession(t, sstesting.NewDialer(client))

	// Idle disconnect is fine.
	require.NoError(t, s.Disconnect())

	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.Disconnect())
	assert.Equal(t, Disconnected, s.State())
	assert.True(t, client.Closed())

	require.NoError(t, s.Disconnect())
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Poll.CommandTimeout = 5 * time.Second

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, 10*time.Second, opts.ConnectTimeout)
	assert.Equal(t, 5*time.Second, opts.CommandTimeout)
	assert.Equal(t, sshutil.HostKeyAcceptNew, opts.HostKeyPolicy)
	assert.Equal(t, "~/.ssh/known_hosts", opts.KnownHostsPath)
}
