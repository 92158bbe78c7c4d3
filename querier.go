package memc

import "context"

// Querier is the key-based command surface shared by Conn, FailoverClient,
// Client and Cluster.
type Querier interface {
	Set(ctx context.Context, key string, value []byte, opts Options) error
	Add(ctx context.Context, key string, value []byte, opts Options) error
	Replace(ctx context.Context, key string, value []byte, opts Options) error
	Append(ctx context.Context, key string, value []byte, opts Options) error
	Prepend(ctx context.Context, key string, value []byte, opts Options) error
	CompareAndSwap(ctx context.Context, key string, value []byte, cas uint64, opts Options) error

	Get(ctx context.Context, key string) ([]byte, error)
	GetMulti(ctx context.Context, keys []string) ([][]byte, error)
	RawGet(ctx context.Context, key string) (*Item, error)
	RawGets(ctx context.Context, key string) (*Item, error)
	RawGetMulti(ctx context.Context, keys []string) (map[string]*Item, error)
	RawGetsMulti(ctx context.Context, keys []string) (map[string]*Item, error)

	Incr(ctx context.Context, key string, delta uint64, opts Options) (uint64, error)
	Decr(ctx context.Context, key string, delta uint64, opts Options) (uint64, error)
	Delete(ctx context.Context, key string, opts Options) error
}

var (
	_ Querier = (*Conn)(nil)
	_ Querier = (*FailoverClient)(nil)
	_ Querier = (*Client)(nil)
	_ Querier = (*Cluster)(nil)
)
