package ascii

import (
	"io"
	"strconv"

	"github.com/valyala/bytebufferpool"
)

// WriteRequest validates req, serializes it to wire format and writes it to w
// with a single Write call.
//
// Validation errors are returned before anything is written. Write failures
// are returned as *TransportError.
func WriteRequest(w io.Writer, req *Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.B = AppendRequest(buf.B, req)

	if _, err := w.Write(buf.B); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// AppendRequest appends the wire form of req to dst. The request is assumed
// to be valid; see Request.Validate.
func AppendRequest(dst []byte, req *Request) []byte {
	dst = append(dst, string(req.Verb)...)

	switch {
	case req.Verb.IsStorage():
		dst = append(dst, ' ')
		dst = append(dst, req.Keys[0]...)
		dst = append(dst, ' ')
		dst = strconv.AppendUint(dst, uint64(req.Flags), 10)
		dst = append(dst, ' ')
		dst = strconv.AppendUint(dst, uint64(req.Expire), 10)
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, int64(len(req.Data)), 10)
		if req.Verb == VerbCAS {
			dst = append(dst, ' ')
			dst = strconv.AppendUint(dst, req.CAS, 10)
		}
		dst = appendModifiers(dst, req)
		dst = append(dst, CRLF...)
		dst = append(dst, req.Data...)

	case req.Verb.IsRetrieval():
		for _, key := range req.Keys {
			dst = append(dst, ' ')
			dst = append(dst, key...)
		}

	case req.Verb.IsArithmetic():
		dst = append(dst, ' ')
		dst = append(dst, req.Keys[0]...)
		dst = append(dst, ' ')
		dst = strconv.AppendUint(dst, req.Delta, 10)
		dst = appendModifiers(dst, req)

	case req.Verb == VerbDelete:
		dst = append(dst, ' ')
		dst = append(dst, req.Keys[0]...)
		if req.NoReply {
			dst = append(dst, Space+NoReply...)
		}

	case req.Verb == VerbStats:
		if req.Arg != "" {
			dst = append(dst, ' ')
			dst = append(dst, req.Arg...)
		}
	}

	return append(dst, CRLF...)
}

func appendModifiers(dst []byte, req *Request) []byte {
	if req.NoReply {
		dst = append(dst, Space+NoReply...)
	}
	if req.Sync {
		dst = append(dst, Space+Sync...)
	}
	return dst
}
