package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yachaflex/pairing/internal/service/forwarder"
	"github.com/yachaflex/pairing/internal/service/link"
)

const export = `
status: available
granted: [heart_rate, hrv, steps]
records:
  heart_rate:
    - ago: 20m
      value: 70
    - ago: 5m
      value: 80
  steps:
    - ago: 10m
      value: 250
`

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testOptions(t *testing.T, endpoint string) options {
	t.Helper()
	path := filepath.Join(t.TempDir(), "health.yaml")
	if err := os.WriteFile(path, []byte(export), 0o600); err != nil {
		t.Fatalf("write export: %v", err)
	}
	parser := link.NewParser("", "")
	return options{
		content:      parser.Build(link.StyleCustom, endpoint, "tok"),
		source:       forwarder.SourceQR,
		providerFile: path,
		window:       time.Hour,
		timeout:      time.Second,
		parser:       parser,
	}
}

func TestRunSendsPayload(t *testing.T) {
	var got map[string]float64
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	opts := testOptions(t, srv.URL+"/api/biometrics?session_id=1")
	opts.autoSend = true
	var out syncBuffer

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := run(ctx, opts, bufio.NewReader(strings.NewReader("")), &out); err != nil {
		t.Fatalf("run err: %v\n%s", err, out.String())
	}

	if auth != "Bearer tok" {
		t.Fatalf("unexpected authorization %q", auth)
	}
	if got["heart_rate"] != 75 || got["activity"] != 250 {
		t.Fatalf("unexpected payload %v", got)
	}
	if _, ok := got["hrv"]; ok {
		t.Fatalf("hrv without samples should be omitted, got %v", got)
	}
	for _, want := range []string{forwarder.StatusScanned, forwarder.StatusReadyToSend, "HR:    75.0 bpm (2 samples)", forwarder.StatusSent} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in output:\n%s", want, out.String())
		}
	}
}

func TestRunRetriesAfterFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	opts := testOptions(t, srv.URL)
	var out syncBuffer

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	in := bufio.NewReader(strings.NewReader("y\ny\n"))
	if err := run(ctx, opts, in, &out); err != nil {
		t.Fatalf("run err: %v\n%s", err, out.String())
	}

	if calls.Load() != 2 {
		t.Fatalf("expected one retry, got %d calls", calls.Load())
	}
	if !strings.Contains(out.String(), forwarder.StatusSendFailed) || !strings.Contains(out.String(), "Retry? [y/N] ") {
		t.Fatalf("expected failure and retry prompt:\n%s", out.String())
	}
}

func TestRunDeclined(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	opts := testOptions(t, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, opts, bufio.NewReader(strings.NewReader("n\n")), &syncBuffer{})
	if !errors.Is(err, errAborted) {
		t.Fatalf("expected errAborted, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatal("declined send must not reach the endpoint")
	}
}

func TestRunScanFailure(t *testing.T) {
	opts := testOptions(t, "unused")
	opts.content = "yachaflex://connect?token=abc&endpoint="

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out syncBuffer
	err := run(ctx, opts, bufio.NewReader(strings.NewReader("")), &out)
	if !errors.Is(err, errAborted) || !strings.Contains(out.String(), forwarder.StatusScanFailed) {
		t.Fatalf("expected scan failure, got %v\n%s", err, out.String())
	}
}
