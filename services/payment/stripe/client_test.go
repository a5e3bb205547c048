package stripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/trezcool/kozi/core/payment"
)

func TestClient_CreateCheckoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk_test_123" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form failed, %v", err)
		}
		if got := r.PostForm.Get("line_items[0][price_data][unit_amount]"); got != "49900" {
			t.Errorf("unit_amount = %q; expected 49900", got)
		}
		if got := r.PostForm.Get("mode"); got != "payment" {
			t.Errorf("mode = %q; expected payment", got)
		}
		if got := r.PostForm.Get("metadata[cohort_id]"); got != "cohort_1" {
			t.Errorf("metadata[cohort_id] = %q; expected cohort_1", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cs_test_123",
			"url": "https://checkout.stripe.com/pay/cs_test_123",
			"payment_status": "unpaid",
			"amount_total": 49900,
			"currency": "inr",
			"metadata": {"cohort_id": "cohort_1", "user_id": "usr_1"}
		}`))
	}))
	defer srv.Close()

	c := NewClient("sk_test_123")
	c.BaseURL = srv.URL

	sess, err := c.CreateCheckoutSession(context.Background(), payment.SessionParams{
		Amount:      49900,
		Currency:    "inr",
		ProductName: "Cohort 1 enrollment",
		SuccessURL:  "http://localhost:3000/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   "http://localhost:3000/payment/cancelled",
		Metadata:    map[string]string{"cohort_id": "cohort_1", "user_id": "usr_1"},
	})
	if err != nil {
		t.Fatalf("CreateCheckoutSession() failed, %v", err)
	}
	if sess.ID != "cs_test_123" || sess.URL == "" {
		t.Errorf("sess = %+v", sess)
	}
}

func TestClient_RetrieveSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/checkout/sessions/cs_test_123" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cs_test_123",
			"payment_status": "paid",
			"amount_total": 49900,
			"currency": "inr",
			"metadata": {"cohort_id": "cohort_1", "user_id": "usr_1"}
		}`))
	}))
	defer srv.Close()

	c := NewClient("sk_test_123")
	c.BaseURL = srv.URL

	sess, err := c.RetrieveSession(context.Background(), "cs_test_123")
	if err != nil {
		t.Fatalf("RetrieveSession() failed, %v", err)
	}
	if sess.PaymentStatus != "paid" || sess.Metadata["user_id"] != "usr_1" {
		t.Errorf("sess = %+v; expected paid session with metadata", sess)
	}
}

func TestClient_RetrieveSession_apiError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such checkout session"}}`))
	}))
	defer srv.Close()

	c := NewClient("sk_test_123")
	c.BaseURL = srv.URL

	if _, err := c.RetrieveSession(context.Background(), "nope"); err == nil {
		t.Error("expected an error for a 404 response")
	}
}
