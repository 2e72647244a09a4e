// Package mqtttest runs an in-process MQTT broker for tests.
package mqtttest

import (
	"net"
	"strconv"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/nerrad567/gridswitch/internal/infrastructure/config"
)

// Broker is a running in-process broker accepting anonymous clients on
// a loopback port.
type Broker struct {
	Host string
	Port int

	server *mochi.Server
}

// StartBroker starts a broker on a free loopback port and stops it when the
// test finishes.
func StartBroker(t testing.TB) *Broker {
	t.Helper()

	port := freePort(t)
	server := mochi.New(&mochi.Options{InlineClient: true})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		t.Fatalf("mqtttest: adding auth hook: %v", err)
	}

	tcp := listeners.NewTCP(listeners.Config{
		ID:      "t1",
		Address: net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
	})
	if err := server.AddListener(tcp); err != nil {
		t.Fatalf("mqtttest: adding listener: %v", err)
	}

	go func() {
		if err := server.Serve(); err != nil {
			t.Errorf("mqtttest: serve: %v", err)
		}
	}()
	t.Cleanup(func() { server.Close() })

	waitForListener(t, port)

	return &Broker{Host: "127.0.0.1", Port: port, server: server}
}

// Config returns client settings for this broker under clientID.
func (b *Broker) Config(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     b.Host,
			Port:     b.Port,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     2,
		},
	}
}

// Publish injects a message from the broker's inline client.
func (b *Broker) Publish(topic string, payload []byte, retain bool, qos byte) error {
	return b.server.Publish(topic, payload, retain, qos)
}

func freePort(t testing.TB) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("mqtttest: finding free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func waitForListener(t testing.TB, port int) {
	t.Helper()
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("mqtttest: broker did not start listening on %s", addr)
}
