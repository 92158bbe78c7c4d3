package memc

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/pior/memc/ascii"
)

// Conn is a single connection to one memcached server.
//
// Commands are strictly request/response: each call writes one request and
// consumes its whole response before returning. A Conn must not be used by
// two goroutines at once.
type Conn struct {
	addr    Address
	nc      net.Conn
	reader  *ascii.Reader
	cfg     Config
	timeout time.Duration
	closed  bool
}

// Dial connects to addr and checks the server with a version round trip.
//
// The dial is bounded by cfg.Timeout and ctx. TCP_NODELAY is enabled so small
// requests are not delayed. Any failure is returned as a *TransportError.
func Dial(ctx context.Context, addr Address, cfg Config) (*Conn, error) {
	cfg = cfg.withDefaults()

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	nc, err := cfg.Dialer.DialContext(dialCtx, "tcp", addr.String())
	if err != nil {
		return nil, &TransportError{Op: "dial", Addr: addr.String(), Err: err}
	}

	if tcp, ok := nc.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	c := NewConn(nc, addr, cfg)

	if _, err := c.Version(ctx); err != nil {
		_ = nc.Close()
		return nil, &TransportError{Op: "connect", Addr: addr.String(), Err: err}
	}

	return c, nil
}

// NewConn wraps an established stream to the server at addr. No I/O is done.
func NewConn(nc net.Conn, addr Address, cfg Config) *Conn {
	cfg = cfg.withDefaults()

	return &Conn{
		addr:    addr,
		nc:      nc,
		reader:  ascii.NewReader(nc, cfg.ReadBufferSize),
		cfg:     cfg,
		timeout: cfg.Timeout,
	}
}

// Addr returns the server address.
func (c *Conn) Addr() Address {
	return c.addr
}

// Close sends quit and closes the stream without waiting for the server.
// Calling Close more than once is a no-op.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	_ = c.nc.SetDeadline(time.Now().Add(c.timeout))
	if err := ascii.WriteRequest(c.nc, &ascii.Request{Verb: ascii.VerbQuit}); err != nil {
		c.cfg.Logger.Debug("memc: quit failed", "addr", c.addr.String(), "error", err)
	}

	return c.nc.Close()
}

// roundTrip writes req and, unless the request is sent with noreply, reads
// the response with read.
func (c *Conn) roundTrip(ctx context.Context, req *ascii.Request, read func(r *ascii.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := req.Validate(); err != nil {
		return err
	}

	if c.closed {
		return &TransportError{Op: "write", Addr: c.addr.String(), Err: net.ErrClosed}
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.nc.SetDeadline(deadline); err != nil {
		return &TransportError{Op: "write", Addr: c.addr.String(), Err: err}
	}

	if err := ascii.WriteRequest(c.nc, req); err != nil {
		return c.annotate(err)
	}

	if !req.ExpectsReply() {
		return nil
	}

	return c.annotate(read(c.reader))
}

// annotate fills in the server address of transport errors.
func (c *Conn) annotate(err error) error {
	var te *TransportError
	if errors.As(err, &te) && te.Addr == "" {
		te.Addr = c.addr.String()
	}
	return err
}

// Version returns the version line of the server, e.g. "VERSION 1.6.21".
func (c *Conn) Version(ctx context.Context) (string, error) {
	var version string
	err := c.roundTrip(ctx, &ascii.Request{Verb: ascii.VerbVersion}, func(r *ascii.Reader) (err error) {
		version, err = ascii.ReadVersionResponse(r)
		return err
	})
	return version, err
}

// Stats returns the server statistics. arg selects a group such as "slabs"
// or "items"; empty returns the general statistics.
func (c *Conn) Stats(ctx context.Context, arg string) (map[string]string, error) {
	var stats map[string]string
	err := c.roundTrip(ctx, ascii.NewStatsRequest(arg), func(r *ascii.Reader) (err error) {
		stats, err = ascii.ReadStatsResponse(r)
		return err
	})
	return stats, err
}

func (c *Conn) store(ctx context.Context, verb ascii.Verb, key string, value []byte, cas uint64, opts Options) error {
	req := &ascii.Request{
		Verb:    verb,
		Keys:    []string{key},
		Data:    value,
		Flags:   opts.Flags,
		Expire:  opts.Expire,
		CAS:     cas,
		NoReply: opts.NoReply,
		Sync:    opts.Sync,
	}
	return c.roundTrip(ctx, req, func(r *ascii.Reader) error {
		return ascii.ReadStoreResponse(r, verb, key)
	})
}

// Set stores value under key.
func (c *Conn) Set(ctx context.Context, key string, value []byte, opts Options) error {
	return c.store(ctx, ascii.VerbSet, key, value, 0, opts)
}

// Add stores value only if key does not exist yet.
func (c *Conn) Add(ctx context.Context, key string, value []byte, opts Options) error {
	return c.store(ctx, ascii.VerbAdd, key, value, 0, opts)
}

// Replace stores value only if key already exists.
func (c *Conn) Replace(ctx context.Context, key string, value []byte, opts Options) error {
	return c.store(ctx, ascii.VerbReplace, key, value, 0, opts)
}

// Append adds value after the existing value of key.
func (c *Conn) Append(ctx context.Context, key string, value []byte, opts Options) error {
	return c.store(ctx, ascii.VerbAppend, key, value, 0, opts)
}

// Prepend adds value before the existing value of key.
func (c *Conn) Prepend(ctx context.Context, key string, value []byte, opts Options) error {
	return c.store(ctx, ascii.VerbPrepend, key, value, 0, opts)
}

// CompareAndSwap stores value only if the item was not modified since cas
// was read with RawGets.
func (c *Conn) CompareAndSwap(ctx context.Context, key string, value []byte, cas uint64, opts Options) error {
	return c.store(ctx, ascii.VerbCAS, key, value, cas, opts)
}

func (c *Conn) retrieve(ctx context.Context, verb ascii.Verb, keys []string) (map[string]*Item, error) {
	var items map[string]*Item
	err := c.roundTrip(ctx, ascii.NewRetrieveRequest(verb, keys...), func(r *ascii.Reader) (err error) {
		items, err = ascii.ReadRetrieveResponse(r, verb == ascii.VerbGets)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Get returns the value of key, or a *KeyNotFoundError.
func (c *Conn) Get(ctx context.Context, key string) ([]byte, error) {
	item, err := c.RawGet(ctx, key)
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// GetMulti returns the values of keys in the same order. Missing keys have a
// nil value.
func (c *Conn) GetMulti(ctx context.Context, keys []string) ([][]byte, error) {
	items, err := c.RawGetMulti(ctx, keys)
	if err != nil {
		return nil, err
	}
	return orderedValues(keys, items), nil
}

// RawGet returns the item stored under key, or a *KeyNotFoundError.
func (c *Conn) RawGet(ctx context.Context, key string) (*Item, error) {
	return singleItem(key)(c.retrieve(ctx, ascii.VerbGet, []string{key}))
}

// RawGets is RawGet with the cas token of the item.
func (c *Conn) RawGets(ctx context.Context, key string) (*Item, error) {
	return singleItem(key)(c.retrieve(ctx, ascii.VerbGets, []string{key}))
}

// RawGetMulti returns the items found for keys, indexed by key.
func (c *Conn) RawGetMulti(ctx context.Context, keys []string) (map[string]*Item, error) {
	return c.retrieve(ctx, ascii.VerbGet, keys)
}

// RawGetsMulti is RawGetMulti with the cas token of each item.
func (c *Conn) RawGetsMulti(ctx context.Context, keys []string) (map[string]*Item, error) {
	return c.retrieve(ctx, ascii.VerbGets, keys)
}

func (c *Conn) arith(ctx context.Context, verb ascii.Verb, key string, delta uint64, opts Options) (uint64, error) {
	req := &ascii.Request{
		Verb:    verb,
		Keys:    []string{key},
		Delta:   delta,
		NoReply: opts.NoReply,
		Sync:    opts.Sync,
	}

	var value uint64
	err := c.roundTrip(ctx, req, func(r *ascii.Reader) (err error) {
		value, err = ascii.ReadArithmeticResponse(r, verb, key)
		return err
	})
	return value, err
}

// Incr adds delta to the decimal value of key and returns the new value. The
// server wraps around at 2^64. With NoReply, 0 is returned.
func (c *Conn) Incr(ctx context.Context, key string, delta uint64, opts Options) (uint64, error) {
	return c.arith(ctx, ascii.VerbIncr, key, delta, opts)
}

// Decr subtracts delta from the decimal value of key and returns the new
// value. The server floors the result at zero. With NoReply, 0 is returned.
func (c *Conn) Decr(ctx context.Context, key string, delta uint64, opts Options) (uint64, error) {
	return c.arith(ctx, ascii.VerbDecr, key, delta, opts)
}

// Delete removes key. A missing key is reported as *KeyNotFoundError.
func (c *Conn) Delete(ctx context.Context, key string, opts Options) error {
	req := &ascii.Request{Verb: ascii.VerbDelete, Keys: []string{key}, NoReply: opts.NoReply}
	return c.roundTrip(ctx, req, func(r *ascii.Reader) error {
		return ascii.ReadDeleteResponse(r, key)
	})
}

func singleItem(key string) func(map[string]*Item, error) (*Item, error) {
	return func(items map[string]*Item, err error) (*Item, error) {
		if err != nil {
			return nil, err
		}
		item, ok := items[key]
		if !ok {
			return nil, &KeyNotFoundError{Key: key}
		}
		return item, nil
	}
}

func orderedValues(keys []string, items map[string]*Item) [][]byte {
	values := make([][]byte, len(keys))
	for i, key := range keys {
		if item, ok := items[key]; ok {
			values[i] = item.Value
		}
	}
	return values
}
