package pipeline

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"graphout/internal/config"
)

// startLineCollector accepts plaintext connections and forwards received lines.
// Params: t test handle.
// Returns: listener port and line channel.
func startLineCollector(t *testing.T) (int, <-chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	lines := make(chan string, 64)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				reader := bufio.NewReader(conn)
				for {
					line, err := reader.ReadString('\n')
					if err != nil {
						return
					}
					lines <- line
				}
			}(conn)
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port, lines
}

func loadTestConfig(t *testing.T, body string) *config.Config {
	t.Helper()

	path := filepath.Join(t.TempDir(), "graphout.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func gatheredCounter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name && len(family.GetMetric()) > 0 {
			return family.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

func nextLine(t *testing.T, lines <-chan string) string {
	t.Helper()

	select {
	case line := <-lines:
		return line
	case <-time.After(5 * time.Second):
		t.Fatal("no line received by collector")
		return ""
	}
}

// TestEngine_ForwardsHTTPAndGRPCEvents verifies ingest through the queue to a live collector.
// Params: testing.T for assertions.
// Returns: none.
func TestEngine_ForwardsHTTPAndGRPCEvents(t *testing.T) {
	port, lines := startLineCollector(t)
	cfg := loadTestConfig(t, `
[global]
host = "testhost"

[graphite]
host = "127.0.0.1"
port = `+strconv.Itoa(port)+`
reconnect_interval = "50ms"

[[graphite.metrics]]
path = "app.%{name}"
value = "%{value}"

[input.http]
enabled = true
listen = "127.0.0.1:0"

[input.grpc]
enabled = true
listen = "127.0.0.1:0"
`)

	reg := prometheus.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	engine, bound, err := buildEngine(ctx, cfg, discardLogger(), reg, nil)
	require.NoError(t, err)
	require.NotNil(t, bound.http)
	require.NotNil(t, bound.grpc)

	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()
	defer func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(15 * time.Second):
			t.Error("engine did not stop")
		}
	}()

	resp, err := http.Post(
		"http://"+bound.http.String()+"/events",
		"application/json",
		strings.NewReader(`{"name":"http","value":42}`),
	)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Regexp(t, `^app\.http 42\.0 \d{10,}\n$`, nextLine(t, lines))

	conn, err := grpc.NewClient(bound.grpc.String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	in, err := structpb.NewStruct(map[string]any{"name": "grpc", "value": 7})
	require.NoError(t, err)
	pushCtx, pushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pushCancel()
	require.NoError(t, NewEventIngestClient(conn).Push(pushCtx, in))
	assert.Regexp(t, `^app\.grpc 7\.0 \d{10,}\n$`, nextLine(t, lines))

	assert.Eventually(t, func() bool {
		return gatheredCounter(t, reg, "graphout_output_lines_sent_total") == 2
	}, 2*time.Second, 10*time.Millisecond)
}

// TestNewFromConfig_ListenFailure verifies bind errors surface and release earlier listeners.
// Params: testing.T for assertions.
// Returns: none.
func TestNewFromConfig_ListenFailure(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := loadTestConfig(t, `
[graphite]
host = "127.0.0.1"
port = 2003

[[graphite.metrics]]
path = "a"
value = "1"

[input.http]
enabled = true
listen = "127.0.0.1:0"

[input.grpc]
enabled = true
listen = "`+busy.Addr().String()+`"
`)

	engine, err := NewFromConfig(context.Background(), cfg, discardLogger(), nil)
	require.Error(t, err)
	assert.Nil(t, engine)
	assert.Contains(t, err.Error(), "init grpc ingest")
}

// TestNewFromConfig_RejectsNilConfig verifies argument validation.
// Params: testing.T for assertions.
// Returns: none.
func TestNewFromConfig_RejectsNilConfig(t *testing.T) {
	_, err := NewFromConfig(context.Background(), nil, discardLogger(), nil)
	require.Error(t, err)
}
