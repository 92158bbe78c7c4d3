package ascii

import (
	"bytes"
	"strconv"
)

// Item is a value read from the server.
type Item struct {
	// Key is the key the value is stored under.
	Key string

	// Value is the stored data. Never nil for a fetched item.
	Value []byte

	// Flags is the opaque client tag stored with the value.
	Flags uint32

	// CAS is the compare-and-swap token. Only set for items read with gets;
	// memcached never hands out a zero token.
	CAS uint64
}

var (
	storedBytes    = []byte(Stored)
	notStoredBytes = []byte(NotStored)
	existsBytes    = []byte(Exists)
	notFoundBytes  = []byte(NotFound)
	deletedBytes   = []byte(Deleted)
	endBytes       = []byte(EndMarker)

	valuePrefix = []byte(ValuePrefix + " ")
	statPrefix  = []byte(StatPrefix + " ")
)

// unexpected builds the error for a line that does not fit the grammar of
// verb. Server error lines are complete responses; anything else leaves the
// stream in an unknown state.
func unexpected(verb Verb, line []byte) *ProtocolError {
	return &ProtocolError{
		Verb:   verb,
		Line:   string(line),
		Desync: !isServerErrorLine(line),
	}
}

func isServerErrorLine(line []byte) bool {
	return bytes.Equal(line, []byte(ErrorGeneric)) ||
		bytes.HasPrefix(line, []byte(ErrorClientPrefix)) ||
		bytes.HasPrefix(line, []byte(ErrorServerPrefix))
}

// ReadStoreResponse reads the single line answering a storage command.
//
//	STORED     -> nil
//	NOT_STORED -> *StoreConflictError
//	EXISTS     -> *StoreConflictError (IsCASMismatch)
//	NOT_FOUND  -> *KeyNotFoundError (cas only: the item is gone)
//	other      -> *ProtocolError
func ReadStoreResponse(r *Reader, verb Verb, key string) error {
	line, err := r.ReadLine()
	if err != nil {
		return err
	}

	switch {
	case bytes.Equal(line, storedBytes):
		return nil
	case bytes.Equal(line, notStoredBytes):
		return &StoreConflictError{Verb: verb, Key: key, Status: NotStored}
	case bytes.Equal(line, existsBytes):
		return &StoreConflictError{Verb: verb, Key: key, Status: Exists}
	case verb == VerbCAS && bytes.Equal(line, notFoundBytes):
		return &KeyNotFoundError{Key: key}
	}

	return unexpected(verb, line)
}

// ReadRetrieveResponse reads the VALUE blocks answering get (withCAS false)
// or gets (withCAS true) up to the END marker.
//
// Keys missing from the response are missing from the returned map; a miss
// is not an error at this level.
func ReadRetrieveResponse(r *Reader, withCAS bool) (map[string]*Item, error) {
	verb := VerbGet
	if withCAS {
		verb = VerbGets
	}

	items := make(map[string]*Item)

	for {
		line, err := r.ReadLine()
		if err != nil {
			return items, err
		}

		if bytes.Equal(line, endBytes) {
			return items, nil
		}

		item, size, ok := parseValueLine(line, withCAS)
		if !ok {
			return items, unexpected(verb, line)
		}

		item.Value, err = r.ReadBlock(size)
		if err != nil {
			return items, err
		}

		items[item.Key] = item
	}
}

// parseValueLine parses "VALUE <key> <flags> <bytes> [<cas>]" and returns the
// item header and the declared data size.
func parseValueLine(line []byte, withCAS bool) (*Item, int, bool) {
	rest, ok := bytes.CutPrefix(line, valuePrefix)
	if !ok {
		return nil, 0, false
	}

	fields := bytes.Fields(rest)
	if withCAS && len(fields) != 4 || !withCAS && len(fields) != 3 && len(fields) != 4 {
		return nil, 0, false
	}

	flags, err := strconv.ParseUint(string(fields[1]), 10, 32)
	if err != nil {
		return nil, 0, false
	}

	size, err := strconv.ParseUint(string(fields[2]), 10, 31)
	if err != nil || size > MaxValueSize {
		return nil, 0, false
	}

	item := &Item{
		Key:   string(fields[0]),
		Flags: uint32(flags),
	}

	if len(fields) == 4 {
		item.CAS, err = strconv.ParseUint(string(fields[3]), 10, 64)
		if err != nil {
			return nil, 0, false
		}
	}

	return item, int(size), true
}

// ReadArithmeticResponse reads the line answering incr or decr.
//
//	<digits>  -> new value
//	NOT_FOUND -> *KeyNotFoundError
//	other     -> *ProtocolError (CLIENT_ERROR for a non-numeric value)
func ReadArithmeticResponse(r *Reader, verb Verb, key string) (uint64, error) {
	line, err := r.ReadLine()
	if err != nil {
		return 0, err
	}

	if bytes.Equal(line, notFoundBytes) {
		return 0, &KeyNotFoundError{Key: key}
	}

	digits := bytes.TrimRight(line, Space)
	if !isDigits(digits) {
		return 0, unexpected(verb, line)
	}

	value, err := strconv.ParseUint(string(digits), 10, 64)
	if err != nil {
		return 0, unexpected(verb, line)
	}

	return value, nil
}

func isDigits(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ReadDeleteResponse reads the line answering delete.
//
//	DELETED   -> nil
//	NOT_FOUND -> *KeyNotFoundError
//	other     -> *ProtocolError
func ReadDeleteResponse(r *Reader, key string) error {
	line, err := r.ReadLine()
	if err != nil {
		return err
	}

	switch {
	case bytes.Equal(line, deletedBytes):
		return nil
	case bytes.Equal(line, notFoundBytes):
		return &KeyNotFoundError{Key: key}
	}

	return unexpected(VerbDelete, line)
}

// ReadStatsResponse reads "STAT <name> <value>" lines up to the END marker.
// Values may contain spaces.
//
// Example response:
//
//	STAT pid 12345
//	STAT uptime 3600
//	STAT version 1.6.21
//	END
func ReadStatsResponse(r *Reader) (map[string]string, error) {
	stats := make(map[string]string)

	for {
		line, err := r.ReadLine()
		if err != nil {
			return stats, err
		}

		if bytes.Equal(line, endBytes) {
			return stats, nil
		}

		rest, ok := bytes.CutPrefix(line, statPrefix)
		if !ok {
			return stats, unexpected(VerbStats, line)
		}

		name, value, ok := bytes.Cut(rest, []byte(Space))
		if !ok || len(name) == 0 {
			return stats, unexpected(VerbStats, line)
		}

		stats[string(name)] = string(value)
	}
}

// ReadVersionResponse reads the line answering version and returns it
// verbatim, e.g. "VERSION 1.6.21".
func ReadVersionResponse(r *Reader) (string, error) {
	line, err := r.ReadLine()
	if err != nil {
		return "", err
	}

	if len(line) == 0 || isServerErrorLine(line) {
		return "", unexpected(VerbVersion, line)
	}

	return string(line), nil
}
