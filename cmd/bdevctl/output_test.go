package main

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/go-bdev/bdev/jsonrpc"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	w.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read captured stdout: %v", err)
	}
	return string(out)
}

func TestPrintResponseJSON(t *testing.T) {
	resp := &jsonrpc.Response{ID: float64(1), Result: "ok"}
	out := captureStdout(t, func() {
		if err := printResponse(resp, "json"); err != nil {
			t.Fatalf("printResponse: %v", err)
		}
	})
	if !strings.Contains(out, `"result": "ok"`) {
		t.Fatalf("expected result field in JSON output, got %q", out)
	}
	if strings.Contains(out, "jsonrpc") {
		t.Fatalf("version field should be omitted, got %q", out)
	}
}

func TestPrintResponseDefaultsToJSON(t *testing.T) {
	resp := &jsonrpc.Response{ID: float64(1), Result: "ok"}
	out := captureStdout(t, func() {
		if err := printResponse(resp, ""); err != nil {
			t.Fatalf("printResponse: %v", err)
		}
	})
	if !strings.Contains(out, `"result": "ok"`) {
		t.Fatalf("expected result field, got %q", out)
	}
}

func TestPrintResponseYAML(t *testing.T) {
	resp := &jsonrpc.Response{ID: float64(2), Error: "boom"}
	out := captureStdout(t, func() {
		if err := printResponse(resp, "yaml"); err != nil {
			t.Fatalf("printResponse: %v", err)
		}
	})
	if !strings.Contains(out, "error: boom") {
		t.Fatalf("expected error field in YAML output, got %q", out)
	}
}

func TestPrintResponseUnknownFormat(t *testing.T) {
	resp := &jsonrpc.Response{ID: float64(1)}
	err := printResponse(resp, "xml")
	if err == nil {
		t.Fatal("expected an error for an unknown output format")
	}
	if !strings.Contains(err.Error(), "xml") {
		t.Fatalf("expected error to mention the bad format, got %v", err)
	}
}
