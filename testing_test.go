package memc

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pior/memc/internal/testutils"
)

func testConfig() Config {
	return Config{
		Timeout: time.Second,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func serverAddress(s *testutils.Server) Address {
	return Address{Host: "127.0.0.1", Port: s.Port()}
}

// unreachableAddress returns a loopback address with nothing listening.
func unreachableAddress(t *testing.T) Address {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	require.NoError(t, ln.Close())

	return Address{Host: "127.0.0.1", Port: port}
}

func dialTestConn(t *testing.T, s *testutils.Server) *Conn {
	t.Helper()

	conn, err := Dial(context.Background(), serverAddress(s), testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}
