package memc

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/memc/ascii"
	"github.com/pior/memc/internal/testutils"
)

// scriptedDialer hands out the connections of a script, one per dial. A nil
// entry fails the dial.
type scriptedDialer struct {
	mu    sync.Mutex
	conns []*testutils.ConnectionMock
	dials []Address
}

func (d *scriptedDialer) dial(_ context.Context, addr Address, cfg Config) (*Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials = append(d.dials, addr)
	if len(d.conns) == 0 {
		return nil, &TransportError{Op: "dial", Addr: addr.String(), Err: errors.New("script exhausted")}
	}

	mock := d.conns[0]
	d.conns = d.conns[1:]
	if mock == nil {
		return nil, &TransportError{Op: "dial", Addr: addr.String(), Err: errors.New("connection refused")}
	}
	return NewConn(mock, addr, cfg), nil
}

func (d *scriptedDialer) dialed() []Address {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Address(nil), d.dials...)
}

func TestNewFailoverClient(t *testing.T) {
	_, err := NewFailoverClient(nil, testConfig())
	require.Error(t, err)

	s := testutils.NewServer(t)
	f, err := NewFailoverClient([]Address{serverAddress(s)}, testConfig())
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, StateDisconnected, f.State())
	assert.Equal(t, 0, f.CurrentIndex())
	assert.Equal(t, 0, s.Connections(), "no connection before the first command")
}

func TestFailoverClientSkipsUnreachable(t *testing.T) {
	ctx := context.Background()
	s := testutils.NewServer(t)

	f, err := NewFailoverClient([]Address{unreachableAddress(t), serverAddress(s)}, testConfig())
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.Set(ctx, "k", []byte("v"), Options{}))
	assert.Equal(t, StateConnected, f.State())
	assert.Equal(t, 1, f.CurrentIndex())
	assert.Equal(t, serverAddress(s), f.CurrentAddress())

	value, err := f.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)
}

func TestFailoverClientReconnects(t *testing.T) {
	ctx := context.Background()
	s := testutils.NewServer(t)

	var logs bytes.Buffer
	cfg := testConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	f, err := NewFailoverClient([]Address{serverAddress(s)}, cfg)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.Set(ctx, "k", []byte("v"), Options{}))

	s.DropConnections()

	value, err := f.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)
	assert.Equal(t, StateConnected, f.State())
	assert.Equal(t, 2, s.Commands("version"), "one probe per connection")

	assert.Contains(t, logs.String(), "memc: command failed, failing over")
	assert.Contains(t, logs.String(), "memc: reconnected")
}

func TestFailoverClientMovesToNextServer(t *testing.T) {
	ctx := context.Background()
	s1 := testutils.NewServer(t)
	s2 := testutils.NewServer(t)

	f, err := NewFailoverClient([]Address{serverAddress(s1), serverAddress(s2)}, testConfig())
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.Set(ctx, "k", []byte("v1"), Options{}))
	assert.Equal(t, 0, f.CurrentIndex())

	s1.Close()

	require.NoError(t, f.Set(ctx, "k", []byte("v2"), Options{}))
	assert.Equal(t, 1, f.CurrentIndex())
	assert.Equal(t, 1, s2.Commands("set"))
}

func TestFailoverClientNoServer(t *testing.T) {
	ctx := context.Background()
	addrs := []Address{unreachableAddress(t), unreachableAddress(t)}

	f, err := NewFailoverClient(addrs, testConfig())
	require.NoError(t, err)

	t.Run("command", func(t *testing.T) {
		err := f.Set(ctx, "k", []byte("v"), Options{})
		require.ErrorIs(t, err, ErrNoServerReachable)
		assert.True(t, IsTransportError(err))

		var noServer *NoServerError
		require.ErrorAs(t, err, &noServer)
		assert.Equal(t, DefaultMaxAttempts, noServer.Attempts)
		assert.Equal(t, StateDisconnected, f.State())
	})

	t.Run("connect", func(t *testing.T) {
		err := f.Connect(ctx)

		var noServer *NoServerError
		require.ErrorAs(t, err, &noServer)
		assert.Equal(t, 1, noServer.Attempts)
	})
}

func TestFailoverClientLogicalErrors(t *testing.T) {
	ctx := context.Background()
	s := testutils.NewServer(t)

	f, err := NewFailoverClient([]Address{serverAddress(s)}, testConfig())
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.Add(ctx, "k", []byte("v"), Options{}))

	err = f.Add(ctx, "k", []byte("v"), Options{})
	assert.True(t, IsNotStored(err))
	assert.Equal(t, 2, s.Commands("add"), "logical errors are not retried")

	_, err = f.Get(ctx, "missing")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, StateConnected, f.State())
	assert.Equal(t, 1, s.Commands("version"))
}

func TestFailoverClientScripted(t *testing.T) {
	ctx := context.Background()
	a := Address{Host: "a", Port: 1}
	b := Address{Host: "b", Port: 1}

	t.Run("retries on a new connection", func(t *testing.T) {
		broken := testutils.NewConnectionMock()
		healthy := testutils.NewConnectionMock("STORED\r\n")
		d := &scriptedDialer{conns: []*testutils.ConnectionMock{broken, healthy}}

		cfg := testConfig()
		cfg.dial = d.dial
		f, err := NewFailoverClient([]Address{a, b}, cfg)
		require.NoError(t, err)

		require.NoError(t, f.Set(ctx, "k", []byte("v"), Options{}))
		assert.Equal(t, []Address{a, a}, d.dialed())
		assert.True(t, broken.Closed())
		assert.Equal(t, "set k 0 0 1\r\nv\r\n", healthy.GetWrittenRequest())
	})

	t.Run("connect walk wraps around", func(t *testing.T) {
		healthy := testutils.NewConnectionMock("STORED\r\n", "STORED\r\n")
		d := &scriptedDialer{conns: []*testutils.ConnectionMock{nil, healthy, nil, nil}}

		cfg := testConfig()
		cfg.dial = d.dial
		f, err := NewFailoverClient([]Address{a, b}, cfg)
		require.NoError(t, err)

		require.NoError(t, f.Set(ctx, "k", []byte("v"), Options{}))
		assert.Equal(t, 1, f.CurrentIndex())

		require.NoError(t, f.Close())
		healthy2 := testutils.NewConnectionMock("STORED\r\n")
		d.conns = []*testutils.ConnectionMock{nil, healthy2}

		require.NoError(t, f.Set(ctx, "k", []byte("v"), Options{}))
		assert.Equal(t, []Address{a, b, b, a}, d.dialed())
		assert.Equal(t, 0, f.CurrentIndex())
	})

	t.Run("desync drops the connection", func(t *testing.T) {
		mock := testutils.NewConnectionMock("DELETED\r\n")
		d := &scriptedDialer{conns: []*testutils.ConnectionMock{mock}}

		cfg := testConfig()
		cfg.dial = d.dial
		f, err := NewFailoverClient([]Address{a}, cfg)
		require.NoError(t, err)

		err = f.Set(ctx, "k", []byte("v"), Options{})
		var protoErr *ProtocolError
		require.ErrorAs(t, err, &protoErr)
		assert.Equal(t, StateDisconnected, f.State())
		assert.True(t, mock.Closed())
		assert.Len(t, d.dialed(), 1, "protocol errors are not retried")
	})

	t.Run("server error line keeps the connection", func(t *testing.T) {
		mock := testutils.NewConnectionMock("SERVER_ERROR out of memory\r\n")
		d := &scriptedDialer{conns: []*testutils.ConnectionMock{mock}}

		cfg := testConfig()
		cfg.dial = d.dial
		f, err := NewFailoverClient([]Address{a}, cfg)
		require.NoError(t, err)

		err = f.Set(ctx, "k", []byte("v"), Options{})
		var protoErr *ProtocolError
		require.ErrorAs(t, err, &protoErr)
		assert.True(t, protoErr.IsServerError())
		assert.Equal(t, StateConnected, f.State())
	})

	t.Run("max attempts", func(t *testing.T) {
		d := &scriptedDialer{conns: []*testutils.ConnectionMock{
			testutils.NewConnectionMock(),
			testutils.NewConnectionMock(),
			testutils.NewConnectionMock(),
		}}

		cfg := testConfig()
		cfg.dial = d.dial
		cfg.MaxAttempts = 3
		f, err := NewFailoverClient([]Address{a}, cfg)
		require.NoError(t, err)

		_, err = f.Get(ctx, "k")
		var noServer *NoServerError
		require.ErrorAs(t, err, &noServer)
		assert.Equal(t, 3, noServer.Attempts)
		assert.ErrorIs(t, err, ErrConnectionClosed)
		assert.Len(t, d.dialed(), 3)
	})

	t.Run("canceled context", func(t *testing.T) {
		d := &scriptedDialer{}

		cfg := testConfig()
		cfg.dial = d.dial
		f, err := NewFailoverClient([]Address{a}, cfg)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(ctx)
		cancel()

		err = f.Set(ctx, "k", []byte("v"), Options{})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, d.dialed())
	})

	t.Run("context canceled during a command keeps the connection", func(t *testing.T) {
		mock := testutils.NewConnectionMock("STORED\r\n")
		d := &scriptedDialer{conns: []*testutils.ConnectionMock{mock}}

		cfg := testConfig()
		cfg.dial = d.dial
		f, err := NewFailoverClient([]Address{a}, cfg)
		require.NoError(t, err)

		cmdCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		err = f.do(cmdCtx, ascii.VerbSet, func(c *Conn) error {
			cancel()
			return c.Set(cmdCtx, "k", []byte("v"), Options{})
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, StateConnected, f.State())

		require.NoError(t, f.Set(ctx, "k", []byte("v"), Options{}))
		assert.Len(t, d.dialed(), 1)
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "unknown", State(42).String())
}
