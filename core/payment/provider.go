package payment

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrUnauthenticated     = errors.New("sign in to continue")
	ErrProviderUnavailable = errors.New("payment provider not configured")
	ErrProviderError       = errors.New("payment provider error")
	ErrInvalidCallback     = errors.New("invalid payment callback")
)

// Provider names a payment gateway.
type Provider string

const (
	ProviderRazorpay Provider = "razorpay"
	ProviderStripe   Provider = "stripe"
)

// Fallback returns the other gateway, offered to the client when this one is
// not configured.
func (p Provider) Fallback() Provider {
	if p == ProviderRazorpay {
		return ProviderStripe
	}
	return ProviderRazorpay
}

type (
	// Order is a razorpay order as held by the provider. Amounts are in minor
	// units (paise).
	Order struct {
		ID       string            `json:"id"`
		Amount   int64             `json:"amount"`
		Currency string            `json:"currency"`
		Receipt  string            `json:"receipt"`
		Status   string            `json:"status"`
		Notes    map[string]string `json:"notes"`
	}

	OrderParams struct {
		Amount   int64             `json:"amount"`
		Currency string            `json:"currency"`
		Receipt  string            `json:"receipt"`
		Notes    map[string]string `json:"notes"`
	}

	// CheckoutSession is a stripe checkout session as held by the provider.
	// Amounts are in minor units (cents/paise per Currency).
	CheckoutSession struct {
		ID            string            `json:"id"`
		URL           string            `json:"url"`
		PaymentStatus string            `json:"payment_status"`
		AmountTotal   int64             `json:"amount_total"`
		Currency      string            `json:"currency"`
		Metadata      map[string]string `json:"metadata"`
	}

	SessionParams struct {
		Amount      int64             `json:"amount"`
		Currency    string            `json:"currency"`
		ProductName string            `json:"product_name"`
		SuccessURL  string            `json:"success_url"`
		CancelURL   string            `json:"cancel_url"`
		Metadata    map[string]string `json:"metadata"`
	}

	RazorpayClient interface {
		CreateOrder(ctx context.Context, params OrderParams) (Order, error)
		FetchOrder(ctx context.Context, orderID string) (Order, error)
		// VerifySignature checks the checkout callback HMAC.
		VerifySignature(orderID, paymentID, signature string) bool
	}

	StripeClient interface {
		CreateCheckoutSession(ctx context.Context, params SessionParams) (CheckoutSession, error)
		RetrieveSession(ctx context.Context, sessionID string) (CheckoutSession, error)
	}

	// Metrics counts payment traffic. A nil-safe noop is used when no
	// collector is wired.
	Metrics interface {
		OrderCreated(provider Provider)
		Verification(provider Provider, verified bool)
	}
)

type noopMetrics struct{}

func (noopMetrics) OrderCreated(Provider)       {}
func (noopMetrics) Verification(Provider, bool) {}
