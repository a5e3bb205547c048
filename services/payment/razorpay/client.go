package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kozi/core"
	"github.com/trezcool/kozi/core/payment"
)

const defaultBaseURL = "https://api.razorpay.com"

// Client is a thin razorpay Orders API client. Only the order endpoints the
// checkout flow needs are covered.
type Client struct {
	keyID     string
	keySecret string

	// overridable in tests
	BaseURL string

	hc *http.Client
}

var _ payment.RazorpayClient = (*Client)(nil)

func NewClient(keyID, keySecret string) *Client {
	return &Client{
		keyID:     keyID,
		keySecret: keySecret,
		BaseURL:   defaultBaseURL,
		hc:        &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientFromConfig returns a ready client, or (nil, false) when the keys
// are missing or still carrying sample-file placeholders.
func NewClientFromConfig(conf *core.Config) (*Client, bool) {
	if !conf.RazorpayConfigured() {
		return nil, false
	}
	return NewClient(conf.Razorpay.KeyID, conf.Razorpay.KeySecret), true
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshalling request body")
		}
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return errors.Wrap(err, "calling razorpay")
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		var apiErr apiError
		_ = json.NewDecoder(res.Body).Decode(&apiErr)
		return errors.Errorf("razorpay: %s %s: %d %s", method, path, res.StatusCode, apiErr.Error.Description)
	}
	if out != nil {
		if err = json.NewDecoder(res.Body).Decode(out); err != nil {
			return errors.Wrap(err, "decoding response body")
		}
	}
	return nil
}

func (c *Client) CreateOrder(ctx context.Context, params payment.OrderParams) (payment.Order, error) {
	var order payment.Order
	err := c.do(ctx, http.MethodPost, "/v1/orders", params, &order)
	return order, err
}

func (c *Client) FetchOrder(ctx context.Context, orderID string) (payment.Order, error) {
	var order payment.Order
	err := c.do(ctx, http.MethodGet, "/v1/orders/"+orderID, nil, &order)
	return order, err
}

// Sign computes the checkout callback signature: a hex HMAC-SHA256 of
// "<order_id>|<payment_id>" keyed with the secret.
func (c *Client) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the checkout callback signature in constant time.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	return hmac.Equal([]byte(c.Sign(orderID, paymentID)), []byte(signature))
}
