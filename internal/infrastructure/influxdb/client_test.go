package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gridswitch/internal/infrastructure/config"
)

// fakeInflux serves the two endpoints the client touches and records
// every line-protocol body it receives.
type fakeInflux struct {
	*httptest.Server

	mu     sync.Mutex
	writes []string
	health int
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()

	f := &fakeInflux{health: http.StatusNoContent}
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		status := f.health
		f.mu.Unlock()
		w.WriteHeader(status)
	})
	mux.HandleFunc("/api/v2/write", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // test server
		f.mu.Lock()
		f.writes = append(f.writes, string(body))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeInflux) lines() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.writes, "\n")
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "gridswitch",
		Bucket:        "commands",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

func connectFake(t *testing.T) (*Client, *fakeInflux) {
	t.Helper()

	fake := newFakeInflux(t)
	client, err := Connect(context.Background(), testConfig(fake.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // cleanup
	return client, fake
}

// ============================================================================
// Connection Tests
// ============================================================================

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	_, err := Connect(context.Background(), cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Connect(ctx, testConfig("http://127.0.0.1:1"))
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_Success(t *testing.T) {
	client, _ := connectFake(t)

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestClose(t *testing.T) {
	client, _ := connectFake(t)

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}

	// Flush after close must not block or panic
	client.Flush()
}

func TestClose_ZeroValue(t *testing.T) {
	var c Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero value error = %v", err)
	}
}

// ============================================================================
// Write Tests
// ============================================================================

func TestWriteTargetOutcome(t *testing.T) {
	client, fake := connectFake(t)

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	client.WriteTargetOutcome("cmd-1", "10.0.0.12", true, "success", "", at)
	client.WriteTargetOutcome("cmd-1", "10.0.0.13", true, "timeout", "Timeout", at)
	client.Flush()

	got := fake.lines()
	for _, want := range []string{
		"command_outcome,address=10.0.0.12,result=success,state=true",
		"command_outcome,address=10.0.0.13,result=timeout,state=true",
		`command_id="cmd-1"`,
		`reason="Timeout"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("written lines missing %q\ngot:\n%s", want, got)
		}
	}

	// The successful line carries no reason field
	for line := range strings.SplitSeq(got, "\n") {
		if strings.Contains(line, "result=success") && strings.Contains(line, "reason=") {
			t.Errorf("success line has reason field: %s", line)
		}
	}
}

func TestWritePoint(t *testing.T) {
	client, fake := connectFake(t)

	client.WritePoint("directory_refresh", map[string]string{"backend": "etcd"}, map[string]any{"entries": 24})
	client.Flush()

	if got := fake.lines(); !strings.Contains(got, "directory_refresh,backend=etcd entries=24i") {
		t.Errorf("written lines = %q, want directory_refresh point", got)
	}
}

func TestWrite_AfterCloseIsDropped(t *testing.T) {
	client, fake := connectFake(t)
	client.Close() //nolint:errcheck // testing post-close behaviour

	client.WriteTargetOutcome("cmd-2", "10.0.0.99", false, "failure", "boom", time.Now())

	if got := fake.lines(); strings.Contains(got, "10.0.0.99") {
		t.Errorf("write after Close reached server: %q", got)
	}
}
