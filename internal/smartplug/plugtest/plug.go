// Package plugtest runs fake smartplugs on loopback listeners for tests.
package plugtest

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/nerrad567/gridswitch/internal/smartplug"
)

// ReplyFunc answers one decoded request with a plaintext JSON reply.
// Returning nil closes the connection without writing.
type ReplyFunc func(request []byte) []byte

// Plug is a fake device speaking the framed wire protocol.
type Plug struct {
	Address string
	Port    int

	// Requests receives every decoded request. It is buffered; requests
	// beyond its capacity are dropped.
	Requests chan []byte

	listener net.Listener
}

// Start listens on 127.0.0.1 at a free port and answers with reply until
// the test finishes.
func Start(t testing.TB, reply ReplyFunc) *Plug {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("plugtest: listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	p := &Plug{
		Address:  "127.0.0.1",
		Port:     ln.Addr().(*net.TCPAddr).Port,
		Requests: make(chan []byte, 64),
		listener: ln,
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go p.serve(conn, reply)
		}
	}()
	return p
}

func (p *Plug) serve(conn net.Conn, reply ReplyFunc) {
	defer conn.Close()

	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return
	}
	body := make([]byte, binary.BigEndian.Uint32(header))
	if _, err := io.ReadFull(conn, body); err != nil {
		return
	}
	request, err := smartplug.Decode(append(header, body...))
	if err != nil {
		return
	}

	select {
	case p.Requests <- request:
	default:
	}

	if out := reply(request); out != nil {
		conn.Write(smartplug.Encode(out)) //nolint:errcheck // test device
	}
}

// OK acknowledges relay commands and answers get_sysinfo with a fixed
// device description.
func OK(request []byte) []byte {
	if bytes.Contains(request, []byte("get_sysinfo")) {
		return []byte(`{"system":{"get_sysinfo":{"alias":"plug","model":"HS100(EU)","relay_state":1,"err_code":0}}}`)
	}
	return []byte(`{"system":{"set_relay_state":{"err_code":0}}}`)
}

// Silent reads the request and closes without answering.
func Silent([]byte) []byte {
	return nil
}

// Hang reads the request and holds the connection open without answering
// until done is closed.
func Hang(done <-chan struct{}) ReplyFunc {
	return func([]byte) []byte {
		<-done
		return nil
	}
}
