package memc

import (
	"context"

	"github.com/pior/memc/ascii"
)

// runFunc executes fn against a connection chosen for key. key is empty for
// server-wide commands.
type runFunc func(ctx context.Context, key string, verb ascii.Verb, fn func(c *Conn) error) error

// commands implements the command surface on top of a runFunc. It is
// embedded by FailoverClient and Client.
type commands struct {
	run   runFunc
	stats *clientStatsCollector
}

func (o *commands) exec(ctx context.Context, verb ascii.Verb, keys []string, fn func(c *Conn) error) error {
	for _, key := range keys {
		if err := ascii.ValidateKey(key); err != nil {
			return err
		}
	}

	var key string
	if len(keys) > 0 {
		key = keys[0]
	}

	err := o.run(ctx, key, verb, fn)
	o.stats.recordOp(verb, err)
	return err
}

// Version returns the version line of the server in use.
func (o *commands) Version(ctx context.Context) (version string, err error) {
	err = o.exec(ctx, ascii.VerbVersion, nil, func(c *Conn) (err error) {
		version, err = c.Version(ctx)
		return err
	})
	return version, err
}

// Stats returns the statistics of the server in use. arg may be empty.
func (o *commands) Stats(ctx context.Context, arg string) (stats map[string]string, err error) {
	err = o.exec(ctx, ascii.VerbStats, nil, func(c *Conn) (err error) {
		stats, err = c.Stats(ctx, arg)
		return err
	})
	return stats, err
}

// Set stores value under key.
func (o *commands) Set(ctx context.Context, key string, value []byte, opts Options) error {
	return o.exec(ctx, ascii.VerbSet, []string{key}, func(c *Conn) error {
		return c.Set(ctx, key, value, opts)
	})
}

// Add stores value only if key does not exist yet.
func (o *commands) Add(ctx context.Context, key string, value []byte, opts Options) error {
	return o.exec(ctx, ascii.VerbAdd, []string{key}, func(c *Conn) error {
		return c.Add(ctx, key, value, opts)
	})
}

// Replace stores value only if key already exists.
func (o *commands) Replace(ctx context.Context, key string, value []byte, opts Options) error {
	return o.exec(ctx, ascii.VerbReplace, []string{key}, func(c *Conn) error {
		return c.Replace(ctx, key, value, opts)
	})
}

// Append adds value after the existing value of key.
func (o *commands) Append(ctx context.Context, key string, value []byte, opts Options) error {
	return o.exec(ctx, ascii.VerbAppend, []string{key}, func(c *Conn) error {
		return c.Append(ctx, key, value, opts)
	})
}

// Prepend adds value before the existing value of key.
func (o *commands) Prepend(ctx context.Context, key string, value []byte, opts Options) error {
	return o.exec(ctx, ascii.VerbPrepend, []string{key}, func(c *Conn) error {
		return c.Prepend(ctx, key, value, opts)
	})
}

// CompareAndSwap stores value only if the item was not modified since cas
// was read with RawGets.
func (o *commands) CompareAndSwap(ctx context.Context, key string, value []byte, cas uint64, opts Options) error {
	return o.exec(ctx, ascii.VerbCAS, []string{key}, func(c *Conn) error {
		return c.CompareAndSwap(ctx, key, value, cas, opts)
	})
}

// Get returns the value of key, or a *KeyNotFoundError.
func (o *commands) Get(ctx context.Context, key string) ([]byte, error) {
	item, err := o.RawGet(ctx, key)
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// GetMulti returns the values of keys in the same order. Missing keys have a
// nil value.
func (o *commands) GetMulti(ctx context.Context, keys []string) ([][]byte, error) {
	items, err := o.RawGetMulti(ctx, keys)
	if err != nil {
		return nil, err
	}
	return orderedValues(keys, items), nil
}

// RawGet returns the item stored under key, or a *KeyNotFoundError.
func (o *commands) RawGet(ctx context.Context, key string) (*Item, error) {
	return singleItem(key)(o.retrieve(ctx, ascii.VerbGet, []string{key}))
}

// RawGets is RawGet with the cas token of the item.
func (o *commands) RawGets(ctx context.Context, key string) (*Item, error) {
	return singleItem(key)(o.retrieve(ctx, ascii.VerbGets, []string{key}))
}

// RawGetMulti returns the items found for keys, indexed by key.
func (o *commands) RawGetMulti(ctx context.Context, keys []string) (map[string]*Item, error) {
	return o.retrieve(ctx, ascii.VerbGet, keys)
}

// RawGetsMulti is RawGetMulti with the cas token of each item.
func (o *commands) RawGetsMulti(ctx context.Context, keys []string) (map[string]*Item, error) {
	return o.retrieve(ctx, ascii.VerbGets, keys)
}

func (o *commands) retrieve(ctx context.Context, verb ascii.Verb, keys []string) (items map[string]*Item, err error) {
	if len(keys) == 0 {
		return map[string]*Item{}, nil
	}

	err = o.exec(ctx, verb, keys, func(c *Conn) (err error) {
		items, err = c.retrieve(ctx, verb, keys)
		return err
	})
	if err != nil {
		return nil, err
	}

	o.stats.recordGets(len(keys), len(items))
	return items, nil
}

// Incr adds delta to the decimal value of key and returns the new value.
func (o *commands) Incr(ctx context.Context, key string, delta uint64, opts Options) (value uint64, err error) {
	err = o.exec(ctx, ascii.VerbIncr, []string{key}, func(c *Conn) (err error) {
		value, err = c.Incr(ctx, key, delta, opts)
		return err
	})
	return value, err
}

// Decr subtracts delta from the decimal value of key, flooring at zero, and
// returns the new value.
func (o *commands) Decr(ctx context.Context, key string, delta uint64, opts Options) (value uint64, err error) {
	err = o.exec(ctx, ascii.VerbDecr, []string{key}, func(c *Conn) (err error) {
		value, err = c.Decr(ctx, key, delta, opts)
		return err
	})
	return value, err
}

// Delete removes key. A missing key is reported as *KeyNotFoundError.
func (o *commands) Delete(ctx context.Context, key string, opts Options) error {
	return o.exec(ctx, ascii.VerbDelete, []string{key}, func(c *Conn) error {
		return c.Delete(ctx, key, opts)
	})
}
