package memc

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newIntegrationClient connects to the memcached server named by
// MEMC_TEST_SERVER, e.g. MEMC_TEST_SERVER=127.0.0.1:11211.
func newIntegrationClient(t *testing.T) *Client {
	t.Helper()

	server := os.Getenv("MEMC_TEST_SERVER")
	if server == "" {
		t.Skip("MEMC_TEST_SERVER not set")
	}

	client, err := New(server)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	require.NoError(t, client.Connect(context.Background()), "memcached must be running at %s", server)
	return client
}

// uniqueKey generates a unique key for testing to avoid collisions.
func uniqueKey(prefix string) string {
	return fmt.Sprintf("%s_%d_%d", prefix, os.Getpid(), time.Now().UnixNano())
}

func TestIntegrationStorage(t *testing.T) {
	client := newIntegrationClient(t)
	ctx := context.Background()
	key := uniqueKey("storage")

	require.NoError(t, client.Set(ctx, key, []byte("v1"), Options{Flags: 9, Expire: 60}))
	assert.True(t, IsNotStored(client.Add(ctx, key, []byte("v2"), Options{})))
	require.NoError(t, client.Append(ctx, key, []byte("+"), Options{}))

	item, err := client.RawGets(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1+"), item.Value)
	assert.Equal(t, uint32(9), item.Flags)

	require.NoError(t, client.CompareAndSwap(ctx, key, []byte("v3"), item.CAS, Options{}))
	assert.True(t, IsNotStored(client.CompareAndSwap(ctx, key, []byte("v4"), item.CAS, Options{})))

	require.NoError(t, client.Delete(ctx, key, Options{}))
	assert.True(t, IsNotFound(client.Delete(ctx, key, Options{})))
}

func TestIntegrationArithmetic(t *testing.T) {
	client := newIntegrationClient(t)
	ctx := context.Background()
	key := uniqueKey("counter")

	require.NoError(t, client.Set(ctx, key, []byte("18446744073709551615"), Options{Expire: 60}))

	v, err := client.Incr(ctx, key, 2, Options{})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	v, err = client.Decr(ctx, key, 5, Options{})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)
}

func TestIntegrationServer(t *testing.T) {
	client := newIntegrationClient(t)
	ctx := context.Background()

	version, err := client.Version(ctx)
	require.NoError(t, err)
	assert.Regexp(t, `^VERSION \d+\.\d+`, version)

	stats, err := client.Stats(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, stats, "pid")
	assert.Contains(t, stats, "curr_connections")
}
