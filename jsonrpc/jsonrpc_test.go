package jsonrpc

import (
	"strings"
	"testing"
)

func TestBeginEndRequestSingleMode(t *testing.T) {
	r := NewRequest()
	w := r.BeginRequest(7, true, "bdev_get_bdevs")
	if err := r.EndRequest(w); err != nil {
		t.Fatalf("EndRequest: %v", err)
	}
	got := string(r.Bytes())
	want := `{"jsonrpc":"2.0","id":7,"method":"bdev_get_bdevs"}` + "\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBeginEndRequestAutoIDWithoutBatchOmitsID(t *testing.T) {
	r := NewRequest()
	w := r.BeginRequest(0, false, "bdev_get_bdevs")
	if err := r.EndRequest(w); err != nil {
		t.Fatalf("EndRequest: %v", err)
	}
	got := string(r.Bytes())
	if strings.Contains(got, `"id"`) {
		t.Fatalf("expected no id field outside batch mode, got %q", got)
	}
}

func TestBatchAssignsAutoIncrementingIDs(t *testing.T) {
	r := NewRequest()
	if err := r.BeginBatch(); err != nil {
		t.Fatalf("BeginBatch: %v", err)
	}
	w := r.BeginRequest(0, false, "a")
	r.EndRequest(w)
	w = r.BeginRequest(0, false, "b")
	r.EndRequest(w)
	w = r.BeginRequest(7, true, "c")
	r.EndRequest(w)
	if err := r.EndBatch(); err != nil {
		t.Fatalf("EndBatch: %v", err)
	}

	got := string(r.Bytes())
	want := `[{"jsonrpc":"2.0","id":0,"method":"a"},{"jsonrpc":"2.0","id":1,"method":"b"},{"jsonrpc":"2.0","id":7,"method":"c"}]` + "\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestClientTryParseWaitsForNewline(t *testing.T) {
	c := NewClient()
	c.Feed([]byte(`{"jsonrpc":"2.0","id":1,"result":true}`))
	status, _, err := c.TryParse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != StatusIncomplete {
		t.Fatalf("expected StatusIncomplete before the newline arrives")
	}

	c.Feed([]byte("\n"))
	status, resp, err := c.TryParse()
	if err != nil {
		t.Fatalf("TryParse: %v", err)
	}
	if status != StatusReady {
		t.Fatalf("expected StatusReady, got %v", status)
	}
	if resp.Result != true {
		t.Fatalf("expected result=true, got %v", resp.Result)
	}
}

func TestClientTryParseRejectsWrongVersion(t *testing.T) {
	c := NewClient()
	c.Feed([]byte("{\"jsonrpc\":\"1.0\",\"id\":1,\"result\":true}\n"))
	status, _, err := c.TryParse()
	if status != StatusFatal || err == nil {
		t.Fatalf("expected a fatal parse error for a non-2.0 version, got status=%v err=%v", status, err)
	}
}

func TestClientTryParseBatchLatchesFirstErrorOverResult(t *testing.T) {
	c := NewClient()
	c.Feed([]byte(`[{"jsonrpc":"2.0","id":0,"result":"ok"},{"jsonrpc":"2.0","id":1,"error":"boom"}]` + "\n"))
	status, resp, err := c.TryParse()
	if err != nil {
		t.Fatalf("TryParse: %v", err)
	}
	if status != StatusReady {
		t.Fatalf("expected StatusReady, got %v", status)
	}
	if resp.Error != "boom" {
		t.Fatalf("expected the batch error to be latched, got error=%v result=%v", resp.Error, resp.Result)
	}
}

func TestClientTryParseBatchLatchesFirstResultWhenNoError(t *testing.T) {
	c := NewClient()
	c.Feed([]byte(`[{"jsonrpc":"2.0","id":0,"result":"first"},{"jsonrpc":"2.0","id":1,"result":"second"}]` + "\n"))
	status, resp, err := c.TryParse()
	if err != nil {
		t.Fatalf("TryParse: %v", err)
	}
	if status != StatusReady {
		t.Fatalf("expected StatusReady, got %v", status)
	}
	if resp.Result != "first" {
		t.Fatalf("expected the first successful result to be latched, got %v", resp.Result)
	}
}

func TestClientTryParseRejectsNonObjectNonArrayTopLevel(t *testing.T) {
	c := NewClient()
	c.Feed([]byte("42\n"))
	status, _, err := c.TryParse()
	if status != StatusFatal || err == nil {
		t.Fatalf("expected a fatal error for a bare scalar top-level value")
	}
}
