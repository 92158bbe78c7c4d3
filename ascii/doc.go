// Package ascii implements the wire format of the memcached text protocol.
//
// The package is the codec layer of memc: it turns requests into bytes and
// byte streams back into typed results. It does no networking and keeps no
// connection state beyond the read buffer.
//
// # Requests
//
// Request is a plain data container. WriteRequest validates it, encodes it
// into a pooled buffer and writes it with a single Write call:
//
//	req := ascii.NewStoreRequest(ascii.VerbSet, "greeting", []byte("hello"), 0, 60)
//	if err := ascii.WriteRequest(conn, req); err != nil {
//	    return err
//	}
//
// Invalid keys are rejected with a *ValidationError before anything is
// written.
//
// # Responses
//
// Reader frames the incoming stream into lines and data blocks. It makes no
// assumption about how the stream is chunked. One decoder exists per
// response grammar:
//
//	r := ascii.NewReader(conn, 0)
//	err := ascii.ReadStoreResponse(r, ascii.VerbSet, "greeting")
//	items, err := ascii.ReadRetrieveResponse(r, false)
//	n, err := ascii.ReadArithmeticResponse(r, ascii.VerbIncr, "counter")
//
// # Errors
//
// Every error type implements ShouldCloseConnection. Logical outcomes
// (NOT_STORED, EXISTS, NOT_FOUND) and server error lines leave the
// connection usable; transport failures and unparseable responses do not:
//
//	if ascii.ShouldCloseConnection(err) {
//	    conn.Close()
//	}
package ascii
