package events

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestNATS creates an embedded NATS server with JetStream enabled.
func setupTestNATS(t *testing.T) string {
	t.Helper()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1, // Random port
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	ns, err := server.NewServer(opts)
	require.NoError(t, err)

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	return ns.ClientURL()
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := setupTestNATS(t)

	conn, err := nats.Connect(url)
	require.NoError(t, err)

	// The subject needs a stream before JetStream accepts publishes
	js, err := conn.JetStream()
	require.NoError(t, err)
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     "ingest",
		Subjects: []string{"ohlcv.ingest"},
		Storage:  nats.MemoryStorage,
	})
	require.NoError(t, err)

	pub, err := newNATSPublisherWithConn(conn)
	require.NoError(t, err)
	defer func() { _ = pub.Close() }()

	require.NoError(t, pub.Publish(context.Background(), "ohlcv.ingest", []byte(`{"key":"k"}`)))

	// The message is durably stored in the stream
	sub, err := js.SubscribeSync("ohlcv.ingest", nats.DeliverAll())
	require.NoError(t, err)
	msg, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, `{"key":"k"}`, string(msg.Data))
}

func TestNATSPublisher_InvalidURL(t *testing.T) {
	_, err := newNATSPublisher("nats://invalid-host:9999", "", "")
	assert.Error(t, err)
}
