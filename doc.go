// Package memc is a memcached client speaking the text protocol, with
// ordered failover across servers and a bounded pool of connections.
//
// The building blocks, from the bottom up:
//
//   - Conn: one TCP connection to one server. Strictly request/response.
//   - FailoverClient: an ordered list of addresses and at most one live Conn.
//     Transport failures move it to the next address and retry.
//   - Client: a fixed-size pool of FailoverClients. Every operation borrows
//     one, runs, and returns it, even when the operation fails.
//   - Cluster: one Client per group of addresses, keys sharded with jump hash.
//
// # Usage
//
//	client, err := memc.New("cache-a:11211", "cache-b:11211")
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Set(ctx, "greeting", []byte("hello"), memc.Options{Expire: 60})
//	value, err := client.Get(ctx, "greeting")
//
// Addresses are tried in order: cache-b is only used while cache-a is
// unreachable.
//
// # Errors
//
// Logical outcomes are typed errors and are never retried:
//
//	var conflict *memc.StoreConflictError
//	if errors.As(err, &conflict) && conflict.IsCASMismatch() {
//	    // someone else wrote the key since gets
//	}
//
// Transport failures are retried on the next address. Once every attempt is
// spent the operation fails with a *NoServerError (errors.Is(err,
// memc.ErrNoServerReachable)). A write that fails this way may or may not
// have been applied.
package memc
