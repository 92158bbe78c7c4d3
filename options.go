package memc

import "github.com/pior/memc/ascii"

// NoExpire keeps an item until it is evicted.
const NoExpire = 0

// Options are the per-operation settings of storage, arithmetic and delete
// commands. The zero value stores with no expiration, flags 0, and waits for
// the server reply.
//
// The cas token is not an option: it is an explicit argument of
// CompareAndSwap.
type Options struct {
	// Expire is the expiration time: seconds from now up to 30 days, a unix
	// timestamp beyond that. Ignored by arithmetic and delete.
	Expire uint32

	// Flags is an opaque value stored with the item and returned by RawGet.
	// Ignored by arithmetic and delete.
	Flags uint32

	// NoReply sends the command with noreply: the call returns as soon as
	// the request is written and outcomes such as NOT_STORED are not
	// reported.
	NoReply bool

	// Sync appends the sync modifier, a hint for servers that replicate
	// writes. Ignored by delete.
	Sync bool
}

// Item is an item read from the server. CAS is only set by the gets
// variants.
type Item = ascii.Item
