package ascii

import (
	"bytes"
	"io"
)

var crlfBytes = []byte(CRLF)

// Reader frames a byte stream into CRLF-terminated lines and fixed-size data
// blocks.
//
// It never assumes that a single read delivers a whole line or block: bytes
// are accumulated until the requested unit is complete, and only the consumed
// prefix is ever dropped. A Reader is owned by a single connection and is not
// safe for concurrent use.
type Reader struct {
	rd    io.Reader
	buf   []byte // buf[start:] holds unconsumed bytes
	start int
}

// NewReader returns a Reader reading from rd in chunks of up to size bytes.
// A size <= 0 selects DefaultReadSize.
func NewReader(rd io.Reader, size int) *Reader {
	if size <= 0 {
		size = DefaultReadSize
	}
	return &Reader{
		rd:  rd,
		buf: make([]byte, 0, size),
	}
}

// Buffered returns the number of unconsumed bytes held by the reader.
func (b *Reader) Buffered() int {
	return len(b.buf) - b.start
}

// ReadLine returns the bytes before the next CRLF and consumes the line and
// its terminator. It reads from the stream until a CRLF is buffered.
//
// The returned slice points into the internal buffer and is only valid until
// the next call to ReadLine or ReadBlock.
func (b *Reader) ReadLine() ([]byte, error) {
	scanned := 0
	for {
		pending := b.buf[b.start:]
		if i := bytes.Index(pending[scanned:], crlfBytes); i >= 0 {
			end := scanned + i
			line := pending[:end:end]
			b.start += end + len(crlfBytes)
			return line, nil
		}

		// A CR at the very end may be completed by the next read.
		if len(pending) > 0 {
			scanned = len(pending) - 1
		}

		if len(pending) > MaxLineLength {
			return nil, &ProtocolError{Line: string(pending[:64]) + "...", Desync: true}
		}

		if err := b.fill(0); err != nil {
			return nil, err
		}
	}
}

// ReadBlock returns a copy of the next size bytes and consumes them together
// with the CRLF that terminates a data block. The returned slice is never nil.
func (b *Reader) ReadBlock(size int) ([]byte, error) {
	need := size + len(crlfBytes)
	for b.Buffered() < need {
		if err := b.fill(need); err != nil {
			return nil, err
		}
	}

	pending := b.buf[b.start : b.start+need]
	data := make([]byte, size)
	copy(data, pending)
	b.start += need

	if !bytes.Equal(pending[size:], crlfBytes) {
		return nil, &ProtocolError{Line: string(pending[size:]), Desync: true}
	}

	return data, nil
}

// fill compacts the buffer and performs exactly one read from the stream.
// want is the number of unconsumed bytes the caller is waiting for, used to
// grow the buffer ahead of large blocks.
func (b *Reader) fill(want int) error {
	if b.start > 0 {
		n := copy(b.buf, b.buf[b.start:])
		b.buf = b.buf[:n]
		b.start = 0
	}

	if len(b.buf) == cap(b.buf) || cap(b.buf) < want {
		size := 2 * cap(b.buf)
		if size < want {
			size = want
		}
		grown := make([]byte, len(b.buf), size)
		copy(grown, b.buf)
		b.buf = grown
	}

	n, err := b.rd.Read(b.buf[len(b.buf):cap(b.buf)])
	b.buf = b.buf[:len(b.buf)+n]
	if n > 0 {
		return nil
	}

	if err == nil || err == io.EOF {
		err = ErrConnectionClosed
	}
	return &TransportError{Op: "read", Err: err}
}
