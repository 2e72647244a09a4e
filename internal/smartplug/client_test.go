package smartplug

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/nerrad567/gridswitch/internal/infrastructure/config"
)

// fakePlug is a single-exchange smartplug on a loopback listener.
type fakePlug struct {
	listener net.Listener
	requests chan []byte
}

// startFakePlug accepts connections and answers each request with reply(plain).
// A nil reply closes the connection without writing.
func startFakePlug(t *testing.T, reply func(plain []byte) []byte) *fakePlug {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	p := &fakePlug{listener: ln, requests: make(chan []byte, 16)}
	t.Cleanup(func() { ln.Close() })

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

func (p *fakePlug) serve(conn net.Conn, reply func(plain []byte) []byte) {
	defer conn.Close()

	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return
	}
	body := make([]byte, binary.BigEndian.Uint32(header))
	if _, err := io.ReadFull(conn, body); err != nil {
		return
	}
	plain, err := Decode(append(header, body...))
	if err != nil {
		return
	}
	p.requests <- plain

	if out := reply(plain); out != nil {
		conn.Write(out) //nolint:errcheck
	}
}

func (p *fakePlug) port() int {
	return p.listener.Addr().(*net.TCPAddr).Port
}

func testClient(port int) *Client {
	return NewClient(config.DeviceConfig{
		Port:           port,
		DialTimeout:    time.Second,
		IOTimeout:      time.Second,
		ReadBufferSize: 2048,
	})
}

func encodeJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	return Encode(data)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(config.DeviceConfig{})

	if c.port != DefaultPort {
		t.Errorf("port = %d, want %d", c.port, DefaultPort)
	}
	if c.readBufferSize != 2048 {
		t.Errorf("readBufferSize = %d, want 2048", c.readBufferSize)
	}
	if c.dialTimeout <= 0 || c.ioTimeout <= 0 {
		t.Errorf("timeouts = %v/%v, want positive", c.dialTimeout, c.ioTimeout)
	}
}

func TestClient_SetStatus(t *testing.T) {
	tests := []struct {
		name      string
		on        bool
		wantState float64
	}{
		{name: "on", on: true, wantState: 1},
		{name: "off", on: false, wantState: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plug := startFakePlug(t, func(_ []byte) []byte {
				return encodeJSON(t, map[string]any{
					"system": map[string]any{"set_relay_state": map[string]any{"err_code": 0}},
				})
			})

			resp, err := testClient(plug.port()).SetStatus(context.Background(), tt.on, "127.0.0.1")
			if err != nil {
				t.Fatalf("SetStatus() error = %v", err)
			}
			if _, ok := resp["system"]; !ok {
				t.Errorf("SetStatus() response = %v, want system key", resp)
			}

			var req struct {
				System struct {
					SetRelayState struct {
						State float64 `json:"state"`
					} `json:"set_relay_state"`
				} `json:"system"`
			}
			if err := json.Unmarshal(<-plug.requests, &req); err != nil {
				t.Fatalf("request is not JSON: %v", err)
			}
			if req.System.SetRelayState.State != tt.wantState {
				t.Errorf("request state = %v, want %v", req.System.SetRelayState.State, tt.wantState)
			}
		})
	}
}

func TestClient_SetStatus_CanonicalRequest(t *testing.T) {
	plug := startFakePlug(t, func(_ []byte) []byte {
		return encodeJSON(t, map[string]any{})
	})

	if _, err := testClient(plug.port()).SetStatus(context.Background(), true, "127.0.0.1"); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	want := `{"system":{"set_relay_state":{"state":1}}}`
	if got := string(<-plug.requests); got != want {
		t.Errorf("request = %s, want %s", got, want)
	}
}

func TestClient_SysInfo(t *testing.T) {
	plug := startFakePlug(t, func(_ []byte) []byte {
		return encodeJSON(t, map[string]any{
			"system": map[string]any{"get_sysinfo": map[string]any{
				"alias":       "w.r0.c0",
				"relay_state": 1,
			}},
		})
	})

	resp, err := testClient(plug.port()).SysInfo(context.Background(), "127.0.0.1")
	if err != nil {
		t.Fatalf("SysInfo() error = %v", err)
	}

	if got := string(<-plug.requests); got != `{"system":{"get_sysinfo":{}}}` {
		t.Errorf("request = %s, want get_sysinfo", got)
	}

	system, _ := resp["system"].(map[string]any)
	info, _ := system["get_sysinfo"].(map[string]any)
	if info["alias"] != "w.r0.c0" {
		t.Errorf("alias = %v, want w.r0.c0", info["alias"])
	}
}

func TestClient_SendCommand_Unreachable(t *testing.T) {
	// Grab a free port and close it so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	_, err = testClient(port).SetStatus(context.Background(), true, "127.0.0.1")
	if !errors.Is(err, ErrDeviceUnreachable) {
		t.Errorf("SetStatus() error = %v, want ErrDeviceUnreachable", err)
	}
}

func TestClient_SendCommand_NoResponse(t *testing.T) {
	plug := startFakePlug(t, func(_ []byte) []byte { return nil })

	resp, err := testClient(plug.port()).SetStatus(context.Background(), false, "127.0.0.1")
	if !errors.Is(err, ErrNoResponse) {
		t.Errorf("SetStatus() error = %v, want ErrNoResponse", err)
	}
	if resp != nil {
		t.Errorf("SetStatus() response = %v, want nil", resp)
	}
}

func TestClient_SendCommand_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name    string
		reply   []byte
		wantErr error
	}{
		{
			name:    "frame shorter than prefix",
			reply:   []byte{0x00, 0x01},
			wantErr: ErrDecode,
		},
		{
			name:    "not json",
			reply:   Encode([]byte("not json")),
			wantErr: ErrDeviceProtocol,
		},
		{
			name:    "json array",
			reply:   Encode([]byte("[1,2]")),
			wantErr: ErrDeviceProtocol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plug := startFakePlug(t, func(_ []byte) []byte { return tt.reply })

			_, err := testClient(plug.port()).SetStatus(context.Background(), true, "127.0.0.1")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SetStatus() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrDeviceProtocol) {
				t.Errorf("SetStatus() error = %v, want wrapped ErrDeviceProtocol", err)
			}
		})
	}
}

func TestClient_SendCommand_SilentDeviceTimesOut(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer ln.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		<-done
	}()

	c := NewClient(config.DeviceConfig{
		Port:        ln.Addr().(*net.TCPAddr).Port,
		DialTimeout: time.Second,
		IOTimeout:   100 * time.Millisecond,
	})

	start := time.Now()
	_, err = c.SetStatus(context.Background(), true, "127.0.0.1")
	if !errors.Is(err, ErrDeviceProtocol) {
		t.Errorf("SetStatus() error = %v, want ErrDeviceProtocol", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("SetStatus() took %v, want bounded by io timeout", elapsed)
	}
}
