package testutils

import (
	"bytes"
	"net"
	"strings"
	"sync"
	"time"
)

// ConnectionMock is a net.Conn fake serving canned response bytes.
//
// Reads return at most ChunkSize bytes each (0 means no limit) so callers can
// exercise arbitrary stream fragmentation. Every Write is recorded.
type ConnectionMock struct {
	ChunkSize int

	// ReadErr is returned once the canned data is exhausted. nil means a
	// zero-byte read with io.EOF semantics left to the bytes.Buffer.
	ReadErr error

	// WriteErr, when set, fails every Write.
	WriteErr error

	mu       sync.Mutex
	readBuf  *bytes.Buffer
	writeBuf bytes.Buffer
	writes   int
	closed   bool
	deadline time.Time
}

// NewConnectionMock creates a mock connection with pre-configured response data
func NewConnectionMock(responseData ...string) *ConnectionMock {
	return &ConnectionMock{
		readBuf: bytes.NewBufferString(strings.Join(responseData, "")),
	}
}

// NewChunkedConnectionMock creates a mock connection delivering responseData
// at most chunkSize bytes per Read.
func NewChunkedConnectionMock(chunkSize int, responseData ...string) *ConnectionMock {
	m := NewConnectionMock(responseData...)
	m.ChunkSize = chunkSize
	return m
}

func (m *ConnectionMock) Read(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReadErr != nil && m.readBuf.Len() == 0 {
		return 0, m.ReadErr
	}
	if m.ChunkSize > 0 && len(b) > m.ChunkSize {
		b = b[:m.ChunkSize]
	}
	return m.readBuf.Read(b)
}

func (m *ConnectionMock) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	m.writes++
	return m.writeBuf.Write(b)
}

func (m *ConnectionMock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

func (m *ConnectionMock) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (m *ConnectionMock) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 11211}
}

func (m *ConnectionMock) SetDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deadline = t
	return nil
}

func (m *ConnectionMock) SetReadDeadline(t time.Time) error  { return m.SetDeadline(t) }
func (m *ConnectionMock) SetWriteDeadline(t time.Time) error { return m.SetDeadline(t) }

// GetWrittenRequest returns the raw request bytes written to the mock connection
func (m *ConnectionMock) GetWrittenRequest() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.writeBuf.String()
}

// Writes returns the number of Write calls that succeeded.
func (m *ConnectionMock) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.writes
}

// Closed reports whether Close was called.
func (m *ConnectionMock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
}

// Deadline returns the last deadline set on the connection.
func (m *ConnectionMock) Deadline() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.deadline
}
