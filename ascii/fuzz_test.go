package ascii

import (
	"bytes"
	"testing"
)

// FuzzReadRetrieveResponse checks that the retrieval decoder never panics and
// that every returned item is consistent with its VALUE header.
// Run with: go test -fuzz='^FuzzReadRetrieveResponse$' -fuzztime=60s ./ascii
func FuzzReadRetrieveResponse(f *testing.F) {
	f.Add([]byte("END\r\n"), false)
	f.Add([]byte("VALUE k 0 5\r\nhello\r\nEND\r\n"), false)
	f.Add([]byte("VALUE k 0 0\r\n\r\nEND\r\n"), false)
	f.Add([]byte("VALUE k 1 2 3\r\nab\r\nEND\r\n"), true)
	f.Add([]byte("VALUE k 0 5\r\nhelloXX"), false) // wrong terminator
	f.Add([]byte("VALUE k 0 999\r\nabc"), false)   // truncated
	f.Add([]byte("VALUE k 0 -1\r\n"), false)
	f.Add([]byte("VALUE\r\n"), false)
	f.Add([]byte("SERVER_ERROR out of memory\r\n"), false)
	f.Add([]byte("\r\n"), true)
	f.Add([]byte(""), false)

	f.Fuzz(func(t *testing.T, data []byte, withCAS bool) {
		r := NewReader(bytes.NewReader(data), 16)

		items, err := ReadRetrieveResponse(r, withCAS)
		if items == nil {
			t.Fatalf("ReadRetrieveResponse returned a nil map (err: %v)", err)
		}
		for key, item := range items {
			if item.Key != key {
				t.Errorf("item stored under %q has key %q", key, item.Key)
			}
			if item.Value == nil {
				t.Errorf("item %q has a nil value", key)
			}
		}
	})
}

// FuzzReadLineResponses runs every single-line decoder over arbitrary input.
func FuzzReadLineResponses(f *testing.F) {
	f.Add([]byte("STORED\r\n"))
	f.Add([]byte("NOT_STORED\r\n"))
	f.Add([]byte("EXISTS\r\n"))
	f.Add([]byte("DELETED\r\n"))
	f.Add([]byte("NOT_FOUND\r\n"))
	f.Add([]byte("12345\r\n"))
	f.Add([]byte("12345 \r\n"))
	f.Add([]byte("VERSION 1.6.21\r\n"))
	f.Add([]byte("STAT pid 1\r\nEND\r\n"))
	f.Add([]byte("CLIENT_ERROR bad command line format\r\n"))
	f.Add([]byte("STORED"))

	f.Fuzz(func(t *testing.T, data []byte) {
		_ = ReadStoreResponse(NewReader(bytes.NewReader(data), 0), VerbSet, "k")
		_ = ReadDeleteResponse(NewReader(bytes.NewReader(data), 0), "k")
		_, _ = ReadArithmeticResponse(NewReader(bytes.NewReader(data), 0), VerbIncr, "k")
		_, _ = ReadVersionResponse(NewReader(bytes.NewReader(data), 0))

		stats, _ := ReadStatsResponse(NewReader(bytes.NewReader(data), 0))
		if stats == nil {
			t.Fatal("ReadStatsResponse returned a nil map")
		}
	})
}

// FuzzValidateKey checks that any key accepted by ValidateKey encodes to a
// request with exactly one line terminator before the data block.
func FuzzValidateKey(f *testing.F) {
	f.Add("key")
	f.Add("with space")
	f.Add("new\r\nline")
	f.Add("")

	f.Fuzz(func(t *testing.T, key string) {
		if ValidateKey(key) != nil {
			return
		}

		var buf bytes.Buffer
		if err := WriteRequest(&buf, NewRetrieveRequest(VerbGet, key)); err != nil {
			t.Fatalf("valid key %q rejected: %v", key, err)
		}
		if n := bytes.Count(buf.Bytes(), []byte(CRLF)); n != 1 {
			t.Errorf("request for key %q has %d line terminators", key, n)
		}
		if n := bytes.Count(buf.Bytes(), []byte(Space)); n != 1 {
			t.Errorf("request for key %q has %d spaces", key, n)
		}
	})
}
