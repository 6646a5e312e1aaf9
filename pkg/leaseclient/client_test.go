package leaseclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_SendsInternalKeyAndDecodesResult(t *testing.T) {
	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Internal-API-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"evaluated":3,"succeeded":2,"failed":1,"skipped":0}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "internal-key")
	result, err := client.MarkOverdue(context.Background())
	if err != nil {
		t.Fatalf("MarkOverdue returned error: %v", err)
	}
	if gotPath != "/internal/leases/overdue/run" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotKey != "internal-key" {
		t.Fatalf("expected internal key header, got %q", gotKey)
	}
	if result.Evaluated != 3 || result.Succeeded != 2 || result.Failed != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestClient_ReturnsErrorOnFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "wrong")
	if _, err := client.GenerateInvoices(context.Background()); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestClient_RequiresBaseURL(t *testing.T) {
	client := NewClient("", "key")
	if _, err := client.RunRenewals(context.Background()); err == nil {
		t.Fatal("expected error when base URL is empty")
	}
}
