package testutils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// Server is an in-memory memcached speaking the text protocol on a loopback
// port. It implements the storage, retrieval, arithmetic, delete, stats,
// version and quit commands with memcached's replies.
type Server struct {
	listener net.Listener

	mu        sync.Mutex
	onCommand func(verb string)
	items     map[string]*entry
	casSeq    uint64
	conns     map[net.Conn]struct{}
	commands  map[string]int
	closed    bool

	wg sync.WaitGroup
}

type entry struct {
	value   []byte
	flags   uint32
	cas     uint64
	expires time.Time
}

const relativeExpireLimit = 60 * 60 * 24 * 30

// NewServer starts a Server on 127.0.0.1 with a random port. It is stopped
// when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("testutils: listen: %v", err)
	}

	s := &Server{
		listener: ln,
		items:    make(map[string]*entry),
		conns:    make(map[net.Conn]struct{}),
		commands: make(map[string]int),
	}

	s.wg.Add(1)
	go s.serve()

	t.Cleanup(s.Close)
	return s
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Port returns the TCP port the server listens on.
func (s *Server) Port() uint16 {
	return uint16(s.listener.Addr().(*net.TCPAddr).Port)
}

// OnCommand registers fn to run before each command is executed. fn may
// block to hold a connection busy.
func (s *Server) OnCommand(fn func(verb string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCommand = fn
}

// Commands returns how many times verb was received.
func (s *Server) Commands(verb string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commands[verb]
}

// Connections returns the number of open client connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// DropConnections closes every open client connection while the server
// keeps accepting new ones.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}

// Close stops the listener and closes every client connection.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	_ = s.listener.Close()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()

	for {
		c, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = c.Close()
			return
		}
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handle(c)
	}
}

func (s *Server) handle(c net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		_ = c.Close()
	}()

	r := bufio.NewReader(c)
	w := bufio.NewWriter(c)

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")

		fields := strings.Fields(line)
		if len(fields) == 0 {
			_, _ = w.WriteString("ERROR\r\n")
			_ = w.Flush()
			continue
		}

		verb := fields[0]
		s.mu.Lock()
		s.commands[verb]++
		hook := s.onCommand
		s.mu.Unlock()

		if hook != nil {
			hook(verb)
		}

		if verb == "quit" {
			return
		}

		err = s.dispatch(verb, fields[1:], r, w)
		if flushErr := w.Flush(); err != nil || flushErr != nil {
			return
		}
	}
}

var errCloseConn = errors.New("close connection")

func (s *Server) dispatch(verb string, args []string, r *bufio.Reader, w *bufio.Writer) error {
	switch verb {
	case "set", "add", "replace", "append", "prepend", "cas":
		return s.store(verb, args, r, w)
	case "get", "gets":
		return s.get(verb == "gets", args, w)
	case "incr", "decr":
		return s.arith(verb == "incr", args, w)
	case "delete":
		return s.delete(args, w)
	case "stats":
		return s.stats(w)
	case "version":
		_, err := w.WriteString("VERSION 1.6.21-fake\r\n")
		return err
	}

	_, err := w.WriteString("ERROR\r\n")
	return err
}

func reply(w *bufio.Writer, noreply bool, line string) error {
	if noreply {
		return nil
	}
	_, err := w.WriteString(line + "\r\n")
	return err
}

func trailingNoReply(args []string, n int) bool {
	return len(args) > n && args[n] == "noreply"
}

func (s *Server) store(verb string, args []string, r *bufio.Reader, w *bufio.Writer) error {
	need := 4
	if verb == "cas" {
		need = 5
	}
	if len(args) < need {
		_, err := w.WriteString("ERROR\r\n")
		return err
	}

	key := args[0]
	flags, err1 := strconv.ParseUint(args[1], 10, 32)
	exptime, err2 := strconv.ParseInt(args[2], 10, 64)
	size, err3 := strconv.Atoi(args[3])
	if err := errors.Join(err1, err2, err3); err != nil || size < 0 {
		_, err := w.WriteString("CLIENT_ERROR bad command line format\r\n")
		if err != nil {
			return err
		}
		return errCloseConn
	}

	var casToken uint64
	if verb == "cas" {
		var err error
		if casToken, err = strconv.ParseUint(args[4], 10, 64); err != nil {
			_, _ = w.WriteString("CLIENT_ERROR bad command line format\r\n")
			return errCloseConn
		}
	}
	noreply := trailingNoReply(args, need)

	data := make([]byte, size+2)
	if _, err := io.ReadFull(r, data); err != nil {
		return err
	}
	if string(data[size:]) != "\r\n" {
		_, _ = w.WriteString("CLIENT_ERROR bad data chunk\r\n")
		return errCloseConn
	}
	data = data[:size]

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.lookup(key)

	switch verb {
	case "add":
		if current != nil {
			return reply(w, noreply, "NOT_STORED")
		}
	case "replace":
		if current == nil {
			return reply(w, noreply, "NOT_STORED")
		}
	case "append", "prepend":
		if current == nil {
			return reply(w, noreply, "NOT_STORED")
		}
		if verb == "append" {
			data = append(append([]byte{}, current.value...), data...)
		} else {
			data = append(data, current.value...)
		}
		s.casSeq++
		current.value = data
		current.cas = s.casSeq
		return reply(w, noreply, "STORED")
	case "cas":
		if current == nil {
			return reply(w, noreply, "NOT_FOUND")
		}
		if current.cas != casToken {
			return reply(w, noreply, "EXISTS")
		}
	}

	s.casSeq++
	s.items[key] = &entry{
		value:   data,
		flags:   uint32(flags),
		cas:     s.casSeq,
		expires: expiry(exptime),
	}
	return reply(w, noreply, "STORED")
}

func expiry(exptime int64) time.Time {
	switch {
	case exptime == 0:
		return time.Time{}
	case exptime < 0:
		return time.Unix(1, 0)
	case exptime <= relativeExpireLimit:
		return time.Now().Add(time.Duration(exptime) * time.Second)
	}
	return time.Unix(exptime, 0)
}

// lookup returns the live entry for key. Must be called with s.mu held.
func (s *Server) lookup(key string) *entry {
	e, ok := s.items[key]
	if !ok {
		return nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(s.items, key)
		return nil
	}
	return e
}

func (s *Server) get(withCAS bool, keys []string, w *bufio.Writer) error {
	if len(keys) == 0 {
		_, err := w.WriteString("ERROR\r\n")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		e := s.lookup(key)
		if e == nil {
			continue
		}
		if withCAS {
			fmt.Fprintf(w, "VALUE %s %d %d %d\r\n", key, e.flags, len(e.value), e.cas)
		} else {
			fmt.Fprintf(w, "VALUE %s %d %d\r\n", key, e.flags, len(e.value))
		}
		_, _ = w.Write(e.value)
		_, _ = w.WriteString("\r\n")
	}

	_, err := w.WriteString("END\r\n")
	return err
}

func (s *Server) arith(incr bool, args []string, w *bufio.Writer) error {
	if len(args) < 2 {
		_, err := w.WriteString("ERROR\r\n")
		return err
	}
	noreply := trailingNoReply(args, 2)

	delta, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return reply(w, noreply, "CLIENT_ERROR invalid numeric delta argument")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(args[0])
	if e == nil {
		return reply(w, noreply, "NOT_FOUND")
	}

	value, err := strconv.ParseUint(string(e.value), 10, 64)
	if err != nil {
		return reply(w, noreply, "CLIENT_ERROR cannot increment or decrement non-numeric value")
	}

	switch {
	case incr:
		value += delta
	case delta > value:
		value = 0
	default:
		value -= delta
	}

	s.casSeq++
	e.value = strconv.AppendUint(nil, value, 10)
	e.cas = s.casSeq
	return reply(w, noreply, string(e.value))
}

func (s *Server) delete(args []string, w *bufio.Writer) error {
	if len(args) < 1 {
		_, err := w.WriteString("ERROR\r\n")
		return err
	}
	noreply := trailingNoReply(args, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookup(args[0]) == nil {
		return reply(w, noreply, "NOT_FOUND")
	}
	delete(s.items, args[0])
	return reply(w, noreply, "DELETED")
}

func (s *Server) stats(w *bufio.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintf(w, "STAT pid %d\r\n", 1)
	fmt.Fprintf(w, "STAT version %s\r\n", "1.6.21-fake")
	fmt.Fprintf(w, "STAT curr_items %d\r\n", len(s.items))
	fmt.Fprintf(w, "STAT curr_connections %d\r\n", len(s.conns))
	_, err := w.WriteString("END\r\n")
	return err
}
