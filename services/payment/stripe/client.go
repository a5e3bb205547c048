package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kozi/core"
	"github.com/trezcool/kozi/core/payment"
)

const defaultBaseURL = "https://api.stripe.com"

// Client is a thin stripe Checkout Sessions API client. Stripe takes
// form-encoded requests and answers JSON.
type Client struct {
	secretKey string

	// overridable in tests
	BaseURL string

	hc *http.Client
}

var _ payment.StripeClient = (*Client)(nil)

func NewClient(secretKey string) *Client {
	return &Client{
		secretKey: secretKey,
		BaseURL:   defaultBaseURL,
		hc:        &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientFromConfig returns a ready client, or (nil, false) when the secret
// key is missing or still carrying a sample-file placeholder.
func NewClientFromConfig(conf *core.Config) (*Client, bool) {
	if !conf.StripeConfigured() {
		return nil, false
	}
	return NewClient(conf.Stripe.SecretKey), true
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// session is the wire shape of a checkout session.
type session struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

func (s session) toSession() payment.CheckoutSession {
	return payment.CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: s.PaymentStatus,
		AmountTotal:   s.AmountTotal,
		Currency:      s.Currency,
		Metadata:      s.Metadata,
	}
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return errors.Wrap(err, "calling stripe")
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		var apiErr apiError
		_ = json.NewDecoder(res.Body).Decode(&apiErr)
		return errors.Errorf("stripe: %s %s: %d %s", method, path, res.StatusCode, apiErr.Error.Message)
	}
	if out != nil {
		if err = json.NewDecoder(res.Body).Decode(out); err != nil {
			return errors.Wrap(err, "decoding response body")
		}
	}
	return nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, params payment.SessionParams) (payment.CheckoutSession, error) {
	form := url.Values{
		"mode":        {"payment"},
		"success_url": {params.SuccessURL},
		"cancel_url":  {params.CancelURL},

		"line_items[0][quantity]":                       {"1"},
		"line_items[0][price_data][currency]":           {params.Currency},
		"line_items[0][price_data][unit_amount]":        {strconv.FormatInt(params.Amount, 10)},
		"line_items[0][price_data][product_data][name]": {params.ProductName},
	}
	for k, v := range params.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	var sess session
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &sess); err != nil {
		return payment.CheckoutSession{}, err
	}
	return sess.toSession(), nil
}

func (c *Client) RetrieveSession(ctx context.Context, sessionID string) (payment.CheckoutSession, error) {
	var sess session
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil, &sess); err != nil {
		return payment.CheckoutSession{}, err
	}
	return sess.toSession(), nil
}
