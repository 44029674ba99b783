package cloud

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientUnknownProvider(t *testing.T) {
	_, err := NewClient(context.Background(), "alibaba", nil)
	var unsupported *UnsupportedProviderError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedProviderError, got %v", err)
	}
	if unsupported.Provider != "alibaba" {
		t.Fatalf("unexpected provider in error: %q", unsupported.Provider)
	}
}

func TestNewClientAzureNotImplemented(t *testing.T) {
	_, err := NewClient(context.Background(), "azure", nil)
	var unsupported *UnsupportedProviderError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedProviderError, got %v", err)
	}
}

func TestInvokeHTTP(t *testing.T) {
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"result": "ok"}`))
	}))
	defer srv.Close()

	fn := &Function{Name: "matmul-python", TriggerURL: srv.URL}
	res, err := invokeHTTP(context.Background(), srv.Client(), fn, map[string]any{"dimension": 16})
	if err != nil {
		t.Fatal(err)
	}
	if gotContentType != "application/json" {
		t.Fatalf("unexpected content type: %q", gotContentType)
	}
	if res.Output["result"] != "ok" {
		t.Fatalf("unexpected output: %v", res.Output)
	}
	if res.DurationSec <= 0 {
		t.Fatalf("expected a positive wall time, got %v", res.DurationSec)
	}
}

func TestInvokeHTTPNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	fn := &Function{Name: "matmul-python", TriggerURL: srv.URL}
	if _, err := invokeHTTP(context.Background(), srv.Client(), fn, nil); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

func TestInvokeHTTPNoTrigger(t *testing.T) {
	fn := &Function{Name: "matmul-python"}
	if _, err := invokeHTTP(context.Background(), http.DefaultClient, fn, nil); err == nil {
		t.Fatal("expected an error for a function without a trigger")
	}
}
