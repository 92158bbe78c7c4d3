package ascii

import "strings"

// Request represents a text protocol request.
// This is a low-level container for request data without serialization logic.
// Which fields are used depends on Verb:
//
//   - storage verbs: Keys[0], Data, Flags, Expire, NoReply, Sync, and CAS for cas
//   - get, gets: Keys (one or more)
//   - incr, decr: Keys[0], Delta, NoReply, Sync
//   - delete: Keys[0], NoReply
//   - stats: Arg (optional)
//   - version, quit: nothing
type Request struct {
	Verb Verb

	// Keys holds the target key(s). Exactly one for everything but retrievals.
	Keys []string

	// Data is the value to store. Its length is sent as the byte count.
	Data []byte

	// Flags is the opaque client tag stored alongside the value.
	Flags uint32

	// Expire is the expiration time in seconds. Zero means never.
	Expire uint32

	// CAS is the compare-and-swap token required by the cas verb.
	CAS uint64

	// Delta is the amount for incr and decr.
	Delta uint64

	// Arg is the optional argument of stats, e.g. "slabs" or "items".
	Arg string

	// NoReply asks the server not to answer. Only honored for verbs where
	// SupportsNoReply is true.
	NoReply bool

	// Sync is a server hint appended after noreply. It is not enforced by
	// the client.
	Sync bool
}

// NewStoreRequest creates a storage request for one of the storage verbs.
func NewStoreRequest(verb Verb, key string, data []byte, flags, expire uint32) *Request {
	return &Request{
		Verb:   verb,
		Keys:   []string{key},
		Data:   data,
		Flags:  flags,
		Expire: expire,
	}
}

// NewRetrieveRequest creates a get or gets request.
func NewRetrieveRequest(verb Verb, keys ...string) *Request {
	return &Request{Verb: verb, Keys: keys}
}

// NewArithmeticRequest creates an incr or decr request.
func NewArithmeticRequest(verb Verb, key string, delta uint64) *Request {
	return &Request{Verb: verb, Keys: []string{key}, Delta: delta}
}

// NewDeleteRequest creates a delete request.
func NewDeleteRequest(key string) *Request {
	return &Request{Verb: VerbDelete, Keys: []string{key}}
}

// NewStatsRequest creates a stats request. arg may be empty.
func NewStatsRequest(arg string) *Request {
	return &Request{Verb: VerbStats, Arg: arg}
}

// ExpectsReply reports whether the server answers this request.
func (r *Request) ExpectsReply() bool {
	if r.Verb == VerbQuit {
		return false
	}
	return !(r.NoReply && r.Verb.SupportsNoReply())
}

// Key returns the first key of the request, or "" when there is none.
func (r *Request) Key() string {
	if len(r.Keys) == 0 {
		return ""
	}
	return r.Keys[0]
}

// Validate checks the request against protocol constraints. It is called by
// WriteRequest before anything is encoded, so an invalid request never
// reaches the wire.
func (r *Request) Validate() error {
	switch {
	case r.Verb.IsStorage(), r.Verb.IsArithmetic(), r.Verb == VerbDelete:
		if len(r.Keys) != 1 {
			return &ValidationError{Message: string(r.Verb) + " takes exactly one key"}
		}
		return ValidateKey(r.Keys[0])

	case r.Verb.IsRetrieval():
		if len(r.Keys) == 0 {
			return &ValidationError{Message: string(r.Verb) + " needs at least one key"}
		}
		for _, key := range r.Keys {
			if err := ValidateKey(key); err != nil {
				return err
			}
		}
		return nil

	case r.Verb == VerbStats:
		if strings.ContainsAny(r.Arg, "\r\n") {
			return &ValidationError{Message: "stats argument contains a line break"}
		}
		return nil

	case r.Verb == VerbVersion, r.Verb == VerbQuit:
		return nil
	}

	return &ValidationError{Message: "unknown command " + string(r.Verb)}
}

// ValidateKey checks that key is 1-250 bytes long and only holds bytes above
// 0x20 other than DEL: no whitespace, no control characters.
func ValidateKey(key string) error {
	if len(key) < MinKeyLength {
		return &ValidationError{Message: "key is empty"}
	}

	if len(key) > MaxKeyLength {
		return &ValidationError{Message: "key exceeds maximum length of 250 bytes"}
	}

	for i := 0; i < len(key); i++ {
		if c := key[i]; c <= ' ' || c == 0x7f {
			return &ValidationError{Message: "key contains whitespace or control characters"}
		}
	}

	return nil
}
