package graphite

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// carbonServer is an in-process plaintext collector.
type carbonServer struct {
	ln    net.Listener
	lines chan string
}

func startCarbonServer(t *testing.T) *carbonServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := &carbonServer{ln: ln, lines: make(chan string, 256)}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go server.read(conn)
		}
	}()
	t.Cleanup(func() { _ = ln.Close() })
	return server
}

func (s *carbonServer) read(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		s.lines <- line
	}
}

func (s *carbonServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *carbonServer) next(t *testing.T) string {
	t.Helper()
	select {
	case line := <-s.lines:
		return line
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a graphite line")
		return ""
	}
}

func (s *carbonServer) expectNone(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case line := <-s.lines:
		t.Fatalf("unexpected graphite line %q", line)
	case <-time.After(wait):
	}
}

// pipeDialer hands out scripted connections in order; the last entry repeats.
type pipeDialer struct {
	mu      sync.Mutex
	calls   int
	scripts []func() (net.Conn, error)
}

func (d *pipeDialer) DialContext(_ context.Context, _, _ string) (net.Conn, error) {
	d.mu.Lock()
	idx := d.calls
	if idx >= len(d.scripts) {
		idx = len(d.scripts) - 1
	}
	d.calls++
	script := d.scripts[idx]
	d.mu.Unlock()
	return script()
}

func (d *pipeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

var errDialRefused = errors.New("connection refused")

func refuse() (net.Conn, error) {
	return nil, errDialRefused
}

// brokenConn returns a pipe whose peer is already closed, so the first write fails.
func brokenConn() (net.Conn, error) {
	client, server := net.Pipe()
	_ = server.Close()
	return client, nil
}

// capturingConn returns a pipe whose peer forwards every line to sink.
func capturingConn(sink chan<- string) func() (net.Conn, error) {
	return func() (net.Conn, error) {
		client, server := net.Pipe()
		go func() {
			defer server.Close()
			reader := bufio.NewReader(server)
			for {
				line, err := reader.ReadString('\n')
				if err != nil {
					return
				}
				sink <- line
			}
		}()
		return client, nil
	}
}

// stalledConn returns a script whose pipes are never read, so writes block until the deadline.
func stalledConn(t *testing.T) func() (net.Conn, error) {
	return func() (net.Conn, error) {
		client, server := net.Pipe()
		t.Cleanup(func() { _ = server.Close() })
		return client, nil
	}
}

// blockingDialer never completes a dial; it returns once the dial context ends.
type blockingDialer struct {
	mu    sync.Mutex
	calls int
}

func (d *blockingDialer) DialContext(ctx context.Context, _, _ string) (net.Conn, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (d *blockingDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}
