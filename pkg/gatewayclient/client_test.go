package gatewayclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateCheckout_SignsRequestAndDecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/initialize" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "api-key" {
			t.Errorf("expected api key header, got %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		expected := Sign("secret", r.Header.Get("X-Random-Key"), r.URL.Path, body)
		if r.Header.Get("X-Signature") != expected {
			t.Errorf("signature mismatch")
		}

		var req CheckoutRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.ConversationID != "invoice:inv-1" || req.PaidPrice != "103.00" {
			t.Errorf("unexpected request %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","token":"tok-1","checkoutFormContent":"<script></script>","paymentPageUrl":"https://pay.example.com/tok-1"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "api-key", "secret")
	resp, err := client.CreateCheckout(context.Background(), CheckoutRequest{
		ConversationID: "invoice:inv-1",
		Price:          FormatAmount(10300),
		PaidPrice:      FormatAmount(10300),
	})
	if err != nil {
		t.Fatalf("CreateCheckout returned error: %v", err)
	}
	if resp.Token != "tok-1" || resp.PaymentPageURL != "https://pay.example.com/tok-1" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestRetrievePayment_ReturnsGatewayErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"failure","errorCode":"5115","errorMessage":"Payment not found"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "api-key", "secret")
	_, err := client.RetrievePayment(context.Background(), "pay-404")

	var gwErr *ErrorResponse
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected ErrorResponse, got %v", err)
	}
	if gwErr.Error() != "Payment not found" || gwErr.ErrorCode != "5115" {
		t.Fatalf("unexpected error %+v", gwErr)
	}
}

func TestRefund_HTTPFailureIsErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "api-key", "secret")
	_, err := client.Refund(context.Background(), RefundRequest{PaymentTransactionID: "tx-1", Price: "10.00"})

	var gwErr *ErrorResponse
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected ErrorResponse, got %v", err)
	}
	if gwErr.HTTPStatus != http.StatusBadGateway {
		t.Fatalf("expected 502 status, got %d", gwErr.HTTPStatus)
	}
}

func TestAmountConversions(t *testing.T) {
	if got := FormatAmount(10350); got != "103.50" {
		t.Fatalf("FormatAmount = %q", got)
	}
	if got := FormatAmount(7); got != "0.07" {
		t.Fatalf("FormatAmount = %q", got)
	}

	tests := map[string]int64{"103.5": 10350, "0": 0, "": 0, "12.345": 1235}
	for in, want := range tests {
		got, err := ParseAmount(in)
		if err != nil {
			t.Fatalf("ParseAmount(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseAmount(%q) = %d, want %d", in, got, want)
		}
	}

	if _, err := ParseAmount("abc"); err == nil {
		t.Fatal("expected error for invalid amount")
	}
}
