package main

import (
	"fmt"
	"net"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/go-bdev/bdev/jsonrpc"
)

// rpcClient drives one jsonrpc.Request/jsonrpc.Client pair over a unix
// socket: the minimal transport binding the codec itself stays agnostic to.
type rpcClient struct {
	conn    net.Conn
	timeout time.Duration
	client  *jsonrpc.Client
}

func dialRPC(socketPath string, timeout time.Duration) (*rpcClient, error) {
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	return &rpcClient{conn: conn, timeout: timeout, client: jsonrpc.NewClient()}, nil
}

func (c *rpcClient) Close() error { return c.conn.Close() }

// call sends one request (writeParams may be nil for no params) and blocks
// for exactly one response.
func (c *rpcClient) call(id int32, method string, writeParams func(w *jsoniter.Stream)) (*jsonrpc.Response, error) {
	req := jsonrpc.NewRequest()
	w := req.BeginRequest(id, true, method)
	if writeParams != nil {
		w.WriteMore()
		w.WriteObjectField("params")
		writeParams(w)
	}
	if err := req.EndRequest(w); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return c.roundTrip(req.Bytes())
}

// callBatch issues one request per method (no params), wrapped in a single
// JSON-RPC batch, and returns the codec's aggregated result.
func (c *rpcClient) callBatch(methods []string) (*jsonrpc.Response, error) {
	req := jsonrpc.NewRequest()
	if err := req.BeginBatch(); err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	for _, m := range methods {
		w := req.BeginRequest(0, false, m)
		if err := req.EndRequest(w); err != nil {
			return nil, fmt.Errorf("encode batch element %q: %w", m, err)
		}
	}
	if err := req.EndBatch(); err != nil {
		return nil, fmt.Errorf("end batch: %w", err)
	}
	return c.roundTrip(req.Bytes())
}

func (c *rpcClient) roundTrip(reqBytes []byte) (*jsonrpc.Response, error) {
	if c.timeout > 0 {
		c.conn.SetDeadline(time.Now().Add(c.timeout))
	}
	if _, err := c.conn.Write(reqBytes); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	buf := make([]byte, 4096)
	for {
		status, resp, err := c.client.TryParse()
		if err != nil {
			return nil, fmt.Errorf("parse response: %w", err)
		}
		if status == jsonrpc.StatusReady {
			return resp, nil
		}
		n, err := c.conn.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if err := c.client.Feed(buf[:n]); err != nil {
			return nil, fmt.Errorf("buffer response: %w", err)
		}
	}
}
