package razorpay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/trezcool/kozi/core/payment"
)

func TestClient_CreateOrder(t *testing.T) {
	var gotAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, pwd, ok := r.BasicAuth()
		gotAuth = ok && user == "rzp_test_key" && pwd == "rzp_test_secret"

		var params payment.OrderParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			t.Fatalf("decoding body failed, %v", err)
		}
		_ = json.NewEncoder(w).Encode(payment.Order{
			ID:       "order_abc",
			Amount:   params.Amount,
			Currency: params.Currency,
			Receipt:  params.Receipt,
			Status:   "created",
			Notes:    params.Notes,
		})
	}))
	defer srv.Close()

	c := NewClient("rzp_test_key", "rzp_test_secret")
	c.BaseURL = srv.URL

	order, err := c.CreateOrder(context.Background(), payment.OrderParams{
		Amount:   999900,
		Currency: "INR",
		Receipt:  "rcpt_1",
		Notes:    map[string]string{"cohort_id": "cohort_1"},
	})
	if err != nil {
		t.Fatalf("CreateOrder() failed, %v", err)
	}
	if !gotAuth {
		t.Error("expected basic auth with the api keys")
	}
	if order.ID != "order_abc" || order.Amount != 999900 || order.Notes["cohort_id"] != "cohort_1" {
		t.Errorf("order = %+v", order)
	}
}

func TestClient_FetchOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/orders/order_abc" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(payment.Order{ID: "order_abc", Status: "paid"})
	}))
	defer srv.Close()

	c := NewClient("k", "s")
	c.BaseURL = srv.URL

	order, err := c.FetchOrder(context.Background(), "order_abc")
	if err != nil {
		t.Fatalf("FetchOrder() failed, %v", err)
	}
	if order.Status != "paid" {
		t.Errorf("Status = %q; expected paid", order.Status)
	}
}

func TestClient_FetchOrder_apiError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"order does not exist"}}`))
	}))
	defer srv.Close()

	c := NewClient("k", "s")
	c.BaseURL = srv.URL

	if _, err := c.FetchOrder(context.Background(), "nope"); err == nil {
		t.Error("expected an error for a 400 response")
	}
}

func TestClient_VerifySignature(t *testing.T) {
	c := NewClient("k", "s3cr3t")

	sig := c.Sign("order_abc", "pay_xyz")
	if len(sig) != 64 {
		t.Errorf("Sign() = %q; expected a 64-char hex digest", sig)
	}
	if !c.VerifySignature("order_abc", "pay_xyz", sig) {
		t.Error("expected a matching signature to verify")
	}
	if c.VerifySignature("order_abc", "pay_xyz", "deadbeef") {
		t.Error("expected a tampered signature to fail")
	}
	if c.VerifySignature("order_other", "pay_xyz", sig) {
		t.Error("expected a signature for another order to fail")
	}
}
