package smartplug

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/nerrad567/gridswitch/internal/infrastructure/config"
)

// Defaults used when the corresponding config value is unset.
const (
	DefaultPort           = 9999
	defaultDialTimeout    = 3 * time.Second
	defaultIOTimeout      = 5 * time.Second
	defaultReadBufferSize = 2048
)

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Response is a decoded device reply.
type Response map[string]any

// Client exchanges commands with smartplugs.
//
// It holds no connection state: every call dials, writes one request, reads
// one response and closes. It is safe for concurrent use.
type Client struct {
	port           int
	dialTimeout    time.Duration
	ioTimeout      time.Duration
	readBufferSize int
	logger         Logger
}

// NewClient creates a device client from the device section of config.yaml.
// Zero values fall back to the protocol defaults.
func NewClient(cfg config.DeviceConfig) *Client {
	c := &Client{
		port:           cfg.Port,
		dialTimeout:    cfg.DialTimeout,
		ioTimeout:      cfg.IOTimeout,
		readBufferSize: cfg.ReadBufferSize,
		logger:         noopLogger{},
	}
	if c.port == 0 {
		c.port = DefaultPort
	}
	if c.dialTimeout <= 0 {
		c.dialTimeout = defaultDialTimeout
	}
	if c.ioTimeout <= 0 {
		c.ioTimeout = defaultIOTimeout
	}
	if c.readBufferSize <= 0 {
		c.readBufferSize = defaultReadBufferSize
	}
	return c
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// SendCommand sends cmd to the device at address and returns its decoded reply.
//
// Errors:
//   - ErrDeviceUnreachable: the connection could not be opened
//   - ErrNoResponse: the device closed the connection without replying
//   - ErrDeviceProtocol: write, read, decode or JSON parse failed
func (c *Client) SendCommand(ctx context.Context, cmd any, address string) (Response, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encoding command: %w", err)
	}

	target := net.JoinHostPort(address, strconv.Itoa(c.port))
	c.logger.Debug("sending device command", "address", target, "command", string(payload))

	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnreachable, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.ioTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	//nolint:errcheck // A failed deadline surfaces as a write or read error below
	conn.SetDeadline(deadline)

	if _, err := conn.Write(Encode(payload)); err != nil {
		return nil, fmt.Errorf("%w: writing request: %w", ErrDeviceProtocol, err)
	}

	buf := make([]byte, c.readBufferSize)
	n, err := conn.Read(buf)
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, ErrNoResponse
		}
		return nil, fmt.Errorf("%w: reading response: %w", ErrDeviceProtocol, err)
	}

	plain, err := Decode(buf[:n])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceProtocol, err)
	}

	var resp Response
	if err := json.Unmarshal(plain, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing response: %w", ErrDeviceProtocol, err)
	}

	return resp, nil
}

// SetStatus switches the relay of the device at address on or off.
func (c *Client) SetStatus(ctx context.Context, on bool, address string) (Response, error) {
	state := 0
	if on {
		state = 1
	}
	cmd := map[string]any{
		"system": map[string]any{
			"set_relay_state": map[string]any{"state": state},
		},
	}
	return c.SendCommand(ctx, cmd, address)
}

// SysInfo asks the device at address for its system information
// (alias, model, relay state, MAC and so on).
func (c *Client) SysInfo(ctx context.Context, address string) (Response, error) {
	cmd := map[string]any{
		"system": map[string]any{
			"get_sysinfo": map[string]any{},
		},
	}
	return c.SendCommand(ctx, cmd, address)
}
