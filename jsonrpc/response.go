package jsonrpc

import (
	"bytes"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// maxRecvBufSize bounds how much unparsed data a Client will buffer before
// giving up, the read-side analog of maxSendBufSize.
const maxRecvBufSize = 32 * 1024 * 1024

// Response is the simplified decode of one JSON-RPC response object, or of
// an aggregated batch (spec §4.1 step 4: "did the batch as a whole
// succeed?").
type Response struct {
	Version string
	ID      interface{}
	Result  interface{}
	Error   interface{}
}

// ParseStatus is the three-way outcome of Client.TryParse, mirroring
// parse_response's {0=incomplete, 1=ready, negative=fatal} return.
type ParseStatus int

const (
	StatusIncomplete ParseStatus = 0
	StatusReady      ParseStatus = 1
	StatusFatal      ParseStatus = -1
)

// Client accumulates bytes read off a connection and parses them into
// Responses as complete, newline-terminated JSON values arrive.
type Client struct {
	recvBuf []byte
}

// NewClient creates an empty response parser.
func NewClient() *Client {
	return &Client{}
}

// Feed appends newly read bytes to the accumulation buffer.
func (c *Client) Feed(data []byte) error {
	if len(c.recvBuf)+len(data) > maxRecvBufSize {
		c.recvBuf = nil
		return errRecvBufOverflow
	}
	c.recvBuf = append(c.recvBuf, data...)
	return nil
}

// TryParse attempts to parse one complete JSON-RPC response (object or
// batch array) out of the accumulated buffer, per spec §4.1's
// parse_response algorithm. On StatusReady the consumed bytes are dropped
// from the buffer so the next call starts fresh; on StatusFatal the buffer
// is discarded entirely, since a streamed connection can't resync past a
// malformed message.
func (c *Client) TryParse() (ParseStatus, *Response, error) {
	nl := bytes.IndexByte(c.recvBuf, '\n')
	if nl < 0 {
		return StatusIncomplete, nil, nil
	}

	line := c.recvBuf[:nl]
	rest := c.recvBuf[nl+1:]
	c.recvBuf = rest

	resp, err := parseOne(line)
	if err != nil {
		return StatusFatal, nil, err
	}
	return StatusReady, resp, nil
}

func parseOne(line []byte) (*Response, error) {
	v := jsoniter.Get(line)
	if err := v.LastError(); err != nil {
		return nil, fmt.Errorf("jsonrpc: parse error: %w", err)
	}

	switch v.ValueType() {
	case jsoniter.ObjectValue:
		return decodeEntry(v)
	case jsoniter.ArrayValue:
		return decodeBatch(v)
	default:
		return nil, errTopLevelShape
	}
}

// decodeEntry decodes one {jsonrpc, id?, result?, error?} object per spec
// §4.1 step 3.
func decodeEntry(v jsoniter.Any) (*Response, error) {
	ver := v.Get("jsonrpc")
	if ver.ValueType() != jsoniter.StringValue || ver.ToString() != Version {
		return nil, errBadVersion
	}
	resp := &Response{Version: Version}
	if id := v.Get("id"); id.ValueType() == jsoniter.StringValue || id.ValueType() == jsoniter.NumberValue {
		resp.ID = id.GetInterface()
	}
	if result := v.Get("result"); result.ValueType() != jsoniter.InvalidValue {
		resp.Result = result.GetInterface()
	}
	if errv := v.Get("error"); errv.ValueType() != jsoniter.InvalidValue {
		resp.Error = errv.GetInterface()
	}
	return resp, nil
}

// decodeBatch implements spec §4.1 step 4: iterate the batch array,
// decoding each element with the same schema, and aggregate into a single
// simplified Response — on the first element carrying an error, latch its
// error and id; otherwise latch the first result and id.
func decodeBatch(v jsoniter.Any) (*Response, error) {
	out := &Response{Version: Version}
	foundError := false
	for i := 0; i < v.Size(); i++ {
		elem, err := decodeEntry(v.Get(i))
		if err != nil {
			return nil, err
		}
		if elem.Error != nil && !foundError {
			out.Error = elem.Error
			out.ID = elem.ID
			foundError = true
			continue
		}
		if !foundError && out.Result == nil && elem.Result != nil {
			out.Result = elem.Result
			out.ID = elem.ID
		}
	}
	return out, nil
}

const (
	errRecvBufOverflow = errString("jsonrpc: receive buffer exceeded maximum size")
	errBadVersion      = errString("jsonrpc: unsupported or missing jsonrpc version")
	errTopLevelShape   = errString("jsonrpc: top-level JSON value was not an object or array")
)
