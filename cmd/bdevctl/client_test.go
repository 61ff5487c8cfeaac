package main

import (
	"net"
	"path/filepath"
	"testing"
	"time"
)

// serveOnce accepts a single connection on a unix socket, reads everything
// the client sends until it stops writing for a short quiet period, then
// writes back canned and closes. Good enough to drive rpcClient's
// request/response round trip without a real bdev-management endpoint.
func serveOnce(t *testing.T, socketPath string, reply []byte) {
	t.Helper()
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go func() {
		defer ln.Close()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		buf := make([]byte, 4096)
		for {
			conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
			_, err := conn.Read(buf)
			if err != nil {
				break
			}
		}
		conn.Write(reply)
	}()
}

func TestRPCClientCallRoundTrip(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "bdev.sock")
	serveOnce(t, sock, []byte(`{"jsonrpc":"2.0","id":1,"result":"pong"}`+"\n"))

	c, err := dialRPC(sock, 2*time.Second)
	if err != nil {
		t.Fatalf("dialRPC: %v", err)
	}
	defer c.Close()

	resp, err := c.call(1, "bdev_get_bdevs", nil)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if resp.Result != "pong" {
		t.Fatalf("got result %v, want %q", resp.Result, "pong")
	}
}

func TestRPCClientCallBatchRoundTrip(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "bdev.sock")
	serveOnce(t, sock, []byte(`[{"jsonrpc":"2.0","id":0,"result":"a"},{"jsonrpc":"2.0","id":1,"error":"nope"}]`+"\n"))

	c, err := dialRPC(sock, 2*time.Second)
	if err != nil {
		t.Fatalf("dialRPC: %v", err)
	}
	defer c.Close()

	resp, err := c.callBatch([]string{"bdev_get_bdevs", "bdev_nvme_get_controllers"})
	if err != nil {
		t.Fatalf("callBatch: %v", err)
	}
	if resp.Error != "nope" {
		t.Fatalf("expected the batch's first error to win, got result=%v error=%v", resp.Result, resp.Error)
	}
}

func TestDialRPCFailsWhenSocketMissing(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "does-not-exist.sock")
	if _, err := dialRPC(sock, 200*time.Millisecond); err == nil {
		t.Fatal("expected an error dialing a nonexistent socket")
	}
}
