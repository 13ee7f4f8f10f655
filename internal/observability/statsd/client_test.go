package statsd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizePrefix(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"  renderjobs.api  ": "renderjobs.api",
		"..foo..":            "foo",
		".":                  "",
		"":                   "",
	}
	for input, want := range tests {
		assert.Equal(t, want, sanitizePrefix(input), "input %q", input)
	}
}

func TestNormalizeMetricName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		" job/transition ": "job_transition",
		"outbox..relay":    "outbox.relay",
		".job.":            "job",
		"two  spaces":      "two__spaces",
	}
	for input, want := range tests {
		assert.Equal(t, want, normalizeMetricName(input), "input %q", input)
	}
}

func TestFormatTags(t *testing.T) {
	t.Parallel()

	global := map[string]string{"env": "prod", " service ": " renderjobs "}
	local := map[string]string{"result": " noop ", "": "ignored", "env": "stage"}

	assert.Equal(t, "|#env:stage,result:noop,service:renderjobs", formatTags(global, local))
	assert.Empty(t, formatTags(nil, nil))
}

func TestClientEnabledAndClose(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	client := &Client{conn: clientConn}
	assert.True(t, client.Enabled())

	require.NoError(t, client.Close())
	assert.False(t, client.Enabled())
	require.NoError(t, client.Close())

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
	assert.NoError(t, nilClient.Close())
	nilClient.Count("ignored", 1, nil)
}

func TestClientLine(t *testing.T) {
	t.Parallel()

	t.Run("blank prefix falls back to service namespace", func(t *testing.T) {
		client, err := NewClient(Config{Prefix: " . "})
		require.NoError(t, err)
		assert.False(t, client.Enabled())
		assert.Equal(t, "renderjobs.outbox.relay.batches:1|c", client.line("outbox.relay.batches", "1", "c", nil))
	})

	t.Run("configured prefix and tags", func(t *testing.T) {
		client, err := NewClient(Config{Prefix: "render.api.", GlobalTags: map[string]string{"env": "dev"}})
		require.NoError(t, err)
		assert.Equal(t, "render.api.outbox.relay.head_failures:3|g|#env:dev,event_type:JOB_REQUESTED",
			client.line("outbox.relay.head_failures", formatFloat(3), "g", map[string]string{"event_type": "JOB_REQUESTED"}))
	})

	t.Run("unusable name renders nothing", func(t *testing.T) {
		client, err := NewClient(Config{})
		require.NoError(t, err)
		assert.Empty(t, client.line(" .. ", "1", "c", nil))
	})
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("disabled without address", func(t *testing.T) {
		client, err := NewClient(Config{Enabled: true, Address: "   "})
		require.NoError(t, err)
		assert.False(t, client.Enabled())
	})

	t.Run("dial error", func(t *testing.T) {
		_, err := NewClient(Config{Enabled: true, Address: "bad address"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "statsd dial")
	})
}

func TestClientWritesLineProtocol(t *testing.T) {
	t.Parallel()

	listener, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	client, err := NewClient(Config{
		Enabled:    true,
		Address:    listener.LocalAddr().String(),
		Prefix:     "renderjobs",
		GlobalTags: map[string]string{"env": "test"},
	})
	require.NoError(t, err)
	defer client.Close()

	client.Count("job.transition", 1, map[string]string{"result": "success"})
	client.Timing("job.duration", 1500*time.Millisecond, nil)

	require.NoError(t, listener.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 512)
	n, _, err := listener.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "renderjobs.job.transition:1|c|#env:test,result:success", string(buf[:n]))

	n, _, err = listener.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "renderjobs.job.duration:1500|ms|#env:test", string(buf[:n]))
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	rec := &Recorder{}
	rec.Count("job.transition", 1, map[string]string{"transition": "succeeded", "result": "success"})
	rec.Count("job.transition", 1, map[string]string{"transition": "succeeded", "result": "noop"})
	rec.Timing("job.duration", 1500*time.Millisecond, nil)

	assert.Equal(t, int64(2), rec.Total("job.transition", map[string]string{"transition": "succeeded"}))
	assert.Equal(t, int64(1), rec.Total("job.transition", map[string]string{"result": "noop"}))
	samples := rec.Samples()
	require.Len(t, samples, 3)
	assert.InDelta(t, 1500.0, samples[2].Value, 0.001)
}
