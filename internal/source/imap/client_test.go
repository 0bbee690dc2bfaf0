package imap

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peytonb/inboxtasks/internal/source"
)

// silentListener accepts connections and never writes a greeting,
// imitating a frozen IMAP server.
func silentListener(t *testing.T) net.Listener {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			// Hold the connection open without responding.
			go func(c net.Conn) {
				buf := make([]byte, 256)
				for {
					if _, err := c.Read(buf); err != nil {
						_ = c.Close()
						return
					}
				}
			}(conn)
		}
	}()

	return ln
}

func clientFor(t *testing.T, ln net.Listener, useTLS bool) *Client {
	t.Helper()
	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return NewClient(host, port, "user@example.com", "secret", useTLS)
}

func TestFetchMessagesHonorsContextDeadline(t *testing.T) {
	ln := silentListener(t)
	c := clientFor(t, ln, false)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := c.FetchMessages(ctx, "INBOX", 0, time.Time{})
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, source.ErrSourceUnavailable)
	case <-time.After(2 * time.Second):
		t.Fatal("FetchMessages did not return after its context deadline")
	}
}

func TestFetchMessagesHonorsCancellation(t *testing.T) {
	ln := silentListener(t)
	c := clientFor(t, ln, true)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	done := make(chan error, 1)
	go func() {
		_, err := c.FetchMessages(ctx, "INBOX", 0, time.Time{})
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, source.ErrSourceUnavailable)
	case <-time.After(2 * time.Second):
		t.Fatal("FetchMessages did not return after cancellation")
	}
}

func TestMarkSeenHonorsContextDeadline(t *testing.T) {
	ln := silentListener(t)
	c := clientFor(t, ln, false)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.MarkSeen(ctx, "INBOX", 1)
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, source.ErrSourceUnavailable)
	case <-time.After(2 * time.Second):
		t.Fatal("MarkSeen did not return after its context deadline")
	}
}

func TestConnectRefusedIsSourceUnavailable(t *testing.T) {
	ln := silentListener(t)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	c := NewClient(host, port, "user@example.com", "secret", true)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err = c.CheckFolder(ctx, "INBOX")
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrSourceUnavailable)
}
