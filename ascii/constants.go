package ascii

// Verb is a text protocol command name.
type Verb string

// Protocol delimiters
const (
	// CRLF is the line terminator for the memcached text protocol
	CRLF = "\r\n"

	// Space separates command tokens
	Space = " "
)

// Storage commands.
//
// Wire format: <verb> <key> <flags> <exptime> <bytes> [<cas>] [noreply] [sync]\r\n<data>\r\n
//
// Response: STORED on success, NOT_STORED when the condition of add, replace,
// append or prepend is not met, EXISTS when the cas token is stale.
const (
	VerbSet     Verb = "set"
	VerbAdd     Verb = "add"
	VerbReplace Verb = "replace"
	VerbAppend  Verb = "append"
	VerbPrepend Verb = "prepend"
	VerbCAS     Verb = "cas"
)

// Retrieval commands.
//
// Wire format: get|gets <key>*\r\n
//
// Response: zero or more "VALUE <key> <flags> <bytes> [<cas>]\r\n<data>\r\n"
// blocks followed by "END\r\n". The cas field is only sent for gets.
const (
	VerbGet  Verb = "get"
	VerbGets Verb = "gets"
)

// Arithmetic commands.
//
// Wire format: incr|decr <key> <delta> [noreply] [sync]\r\n
//
// Response: the new value as a decimal number or NOT_FOUND. The server
// wraps incr at 2^64 and floors decr at zero.
const (
	VerbIncr Verb = "incr"
	VerbDecr Verb = "decr"
)

// Other commands.
const (
	// VerbDelete removes an item: delete <key> [noreply]\r\n -> DELETED | NOT_FOUND
	VerbDelete Verb = "delete"

	// VerbStats reads server statistics: stats [<arg>]\r\n -> STAT <name> <value>\r\n* END\r\n
	VerbStats Verb = "stats"

	// VerbVersion reads the server version: version\r\n -> VERSION <version>\r\n
	VerbVersion Verb = "version"

	// VerbQuit asks the server to close the connection. No response is sent.
	VerbQuit Verb = "quit"
)

// Command modifiers
const (
	NoReply = "noreply"
	Sync    = "sync"
)

// Response lines
const (
	Stored    = "STORED"
	NotStored = "NOT_STORED"
	Exists    = "EXISTS"
	NotFound  = "NOT_FOUND"
	Deleted   = "DELETED"
	EndMarker = "END"

	ValuePrefix = "VALUE"
	StatPrefix  = "STAT"

	ErrorGeneric      = "ERROR"
	ErrorClientPrefix = "CLIENT_ERROR"
	ErrorServerPrefix = "SERVER_ERROR"
)

// Protocol limits
const (
	MinKeyLength = 1
	MaxKeyLength = 250

	// MaxLineLength bounds a response line. Real lines are far shorter; a
	// longer run of bytes without CRLF means the stream is out of sync.
	MaxLineLength = 64 * 1024

	// MaxValueSize bounds the data block announced by a VALUE line. It matches
	// the largest item size memcached can be configured for.
	MaxValueSize = 1 << 30

	// DefaultReadSize is the initial buffer size and read chunk of a Reader.
	DefaultReadSize = 40960
)

// IsStorage reports whether v is one of the storage commands.
func (v Verb) IsStorage() bool {
	switch v {
	case VerbSet, VerbAdd, VerbReplace, VerbAppend, VerbPrepend, VerbCAS:
		return true
	}
	return false
}

// IsRetrieval reports whether v is get or gets.
func (v Verb) IsRetrieval() bool {
	return v == VerbGet || v == VerbGets
}

// IsArithmetic reports whether v is incr or decr.
func (v Verb) IsArithmetic() bool {
	return v == VerbIncr || v == VerbDecr
}

// SupportsNoReply reports whether the server accepts the noreply modifier for v.
func (v Verb) SupportsNoReply() bool {
	return v.IsStorage() || v.IsArithmetic() || v == VerbDelete
}
