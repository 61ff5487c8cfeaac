package jsonrpc

import (
	jsoniter "github.com/json-iterator/go"
)

// initialSendBufSize and maxSendBufSize implement the "start small, double
// on demand, hard cap" write-buffer growth spec §4.1 calls for.
const (
	initialSendBufSize = 4096
	maxSendBufSize     = 32 * 1024 * 1024
)

// cappedWriter is an io.Writer over a growing byte slice that refuses to
// grow past maxSendBufSize, leaving prior bytes untouched on overflow.
type cappedWriter struct {
	buf []byte
	max int
	err error
}

func newCappedWriter(initial, max int) *cappedWriter {
	return &cappedWriter{buf: make([]byte, 0, initial), max: max}
}

func (w *cappedWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if len(w.buf)+len(p) > w.max {
		w.err = errSendBufOverflow
		return 0, w.err
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// Request accumulates one or more JSON-RPC requests into a single write
// buffer: a lone object for single-request mode, or a JSON array for batch
// mode (spec §4.1's begin_request/end_request/begin_batch/end_batch).
type Request struct {
	w       *cappedWriter
	stream  *jsoniter.Stream
	batch   bool
	batchID int32
	// batchElems counts the objects written into the open batch array, so
	// every object after the first is preceded by a comma.
	batchElems int
}

// NewRequest creates an empty request builder.
func NewRequest() *Request {
	return &Request{}
}

// BeginRequest starts a JSON object carrying `"jsonrpc":"2.0"`, an optional
// id (auto-assigned from the batch counter when hasID is false and a batch
// is open), and an optional method name. The returned *jsoniter.Stream is
// the write context further fields (e.g. "params") may be written to before
// EndRequest closes the object.
func (r *Request) BeginRequest(id int32, hasID bool, method string) *jsoniter.Stream {
	if !r.batch {
		r.w = newCappedWriter(initialSendBufSize, maxSendBufSize)
		r.stream = jsoniter.NewStream(jsoniter.ConfigDefault, r.w, initialSendBufSize)
	}
	s := r.stream

	if r.batch {
		if r.batchElems > 0 {
			s.WriteMore()
		}
		r.batchElems++
	}
	s.WriteObjectStart()
	s.WriteObjectField("jsonrpc")
	s.WriteString(Version)

	if !hasID && r.batch {
		id = r.batchID
		r.batchID++
		hasID = true
	}
	if hasID {
		s.WriteMore()
		s.WriteObjectField("id")
		s.WriteInt32(id)
	}
	if method != "" {
		s.WriteMore()
		s.WriteObjectField("method")
		s.WriteString(method)
	}
	return s
}

// EndRequest closes the request object. In single-request mode it also
// finalizes the writer and appends the trailing newline that frames a
// complete message on the wire; in batch mode the enclosing array stays
// open for more requests.
func (r *Request) EndRequest(w *jsoniter.Stream) error {
	w.WriteObjectEnd()
	if r.batch {
		return nil
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if _, err := r.w.Write([]byte{'\n'}); err != nil {
		return err
	}
	return nil
}

// BeginBatch opens a JSON array and switches this Request into batch mode,
// resetting the auto-id counter to 0.
func (r *Request) BeginBatch() error {
	r.w = newCappedWriter(initialSendBufSize, maxSendBufSize)
	r.stream = jsoniter.NewStream(jsoniter.ConfigDefault, r.w, initialSendBufSize)
	r.batch = true
	r.batchID = 0
	r.batchElems = 0
	r.stream.WriteArrayStart()
	return r.stream.Error
}

// EndBatch closes the array, finalizes the writer, and appends the trailing
// newline.
func (r *Request) EndBatch() error {
	r.stream.WriteArrayEnd()
	r.batch = false
	if err := r.stream.Flush(); err != nil {
		return err
	}
	_, err := r.w.Write([]byte{'\n'})
	return err
}

// Bytes returns the accumulated wire bytes built so far.
func (r *Request) Bytes() []byte {
	if r.w == nil {
		return nil
	}
	return r.w.buf
}

type errString string

func (e errString) Error() string { return string(e) }

const errSendBufOverflow = errString("jsonrpc: send buffer exceeded maximum size")
