package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/kozi/core"
	"github.com/trezcool/kozi/core/course"
	"github.com/trezcool/kozi/core/user"
)

const (
	defaultCurrency = "INR"

	// provider-held metadata keys; these, not client input, decide what a
	// verified payment enrolls into.
	noteUserID   = "user_id"
	noteCohortID = "cohort_id"
)

type (
	// Enroller records a verified payment as a paid enrollment.
	Enroller interface {
		EnrollPaid(ctx context.Context, userID, cohortID, paymentRef string) (course.Enrollment, error)
	}

	// Service orchestrates checkout across gateways. Either client may be nil
	// when its credentials are not configured; the matching operations then
	// fail with ErrProviderUnavailable and name the fallback gateway.
	Service struct {
		razorpay RazorpayClient
		stripe   StripeClient
		enroller Enroller
		metrics  Metrics
		logger   core.Logger
	}
)

func NewService(rzp RazorpayClient, stp StripeClient, enroller Enroller, metrics Metrics, logger core.Logger) *Service {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Service{
		razorpay: rzp,
		stripe:   stp,
		enroller: enroller,
		metrics:  metrics,
		logger:   logger,
	}
}

func (svc *Service) RazorpayAvailable() bool { return svc.razorpay != nil }
func (svc *Service) StripeAvailable() bool   { return svc.stripe != nil }

type (
	CreateOrderInput struct {
		CohortID string `json:"cohort_id" validate:"required"`
		Amount   int64  `json:"amount" validate:"required,gt=0"` // minor units
		Currency string `json:"currency"`
	}

	// CreatedOrder is the payload the client needs to open razorpay checkout.
	CreatedOrder struct {
		OrderID  string `json:"order_id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		KeyID    string `json:"key_id"`
	}
)

func (oi *CreateOrderInput) Validate() error {
	oi.CohortID = core.CleanString(oi.CohortID)
	oi.Currency = core.CleanString(oi.Currency)
	if oi.Currency == "" {
		oi.Currency = defaultCurrency
	}
	return core.Validate.Struct(oi)
}

// CreateOrder opens a razorpay order for the signed-in user. The user and
// cohort are stamped into the order notes so that verification can read them
// back from the provider instead of trusting the callback.
func (svc *Service) CreateOrder(ctx context.Context, usr user.User, oi CreateOrderInput) (CreatedOrder, error) {
	if usr.ID == "" {
		return CreatedOrder{}, ErrUnauthenticated
	}
	if svc.razorpay == nil {
		return CreatedOrder{}, ErrProviderUnavailable
	}

	order, err := svc.razorpay.CreateOrder(ctx, OrderParams{
		Amount:   oi.Amount,
		Currency: oi.Currency,
		Receipt:  "rcpt_" + uuid.NewString(),
		Notes: map[string]string{
			noteUserID:   usr.ID,
			noteCohortID: oi.CohortID,
		},
	})
	if err != nil {
		return CreatedOrder{}, errors.Wrap(ErrProviderError, err.Error())
	}
	svc.metrics.OrderCreated(ProviderRazorpay)

	return CreatedOrder{
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		KeyID:    core.Conf.Razorpay.KeyID,
	}, nil
}

type (
	VerifyRazorpayInput struct {
		OrderID   string `json:"razorpay_order_id" validate:"required"`
		PaymentID string `json:"razorpay_payment_id" validate:"required"`
		Signature string `json:"razorpay_signature" validate:"required"`
	}

	// VerifyResult reports a verification outcome. Verified=false is a valid
	// business answer (tampered or unpaid), not a transport error.
	VerifyResult struct {
		Verified   bool               `json:"verified"`
		Enrollment *course.Enrollment `json:"enrollment,omitempty"`
	}
)

func (vi *VerifyRazorpayInput) Validate() error {
	vi.OrderID = core.CleanString(vi.OrderID)
	vi.PaymentID = core.CleanString(vi.PaymentID)
	vi.Signature = core.CleanString(vi.Signature)
	return core.Validate.Struct(vi)
}

// VerifyRazorpay checks the checkout callback signature server-side and, on a
// match, enrolls the user recorded in the provider-held order notes. The
// enrollment write is an idempotent upsert so replaying a valid callback is
// harmless.
func (svc *Service) VerifyRazorpay(ctx context.Context, usr user.User, vi VerifyRazorpayInput) (VerifyResult, error) {
	if usr.ID == "" {
		return VerifyResult{}, ErrUnauthenticated
	}
	if svc.razorpay == nil {
		return VerifyResult{}, ErrProviderUnavailable
	}

	if !svc.razorpay.VerifySignature(vi.OrderID, vi.PaymentID, vi.Signature) {
		svc.metrics.Verification(ProviderRazorpay, false)
		return VerifyResult{Verified: false}, nil
	}

	order, err := svc.razorpay.FetchOrder(ctx, vi.OrderID)
	if err != nil {
		return VerifyResult{}, errors.Wrap(ErrProviderError, err.Error())
	}
	cohortID := order.Notes[noteCohortID]
	if cohortID == "" || order.Notes[noteUserID] != usr.ID {
		svc.metrics.Verification(ProviderRazorpay, false)
		return VerifyResult{Verified: false}, nil
	}

	enr, err := svc.enroller.EnrollPaid(ctx, usr.ID, cohortID, vi.PaymentID)
	if err != nil {
		return VerifyResult{}, errors.Wrap(err, "enrolling user")
	}
	svc.metrics.Verification(ProviderRazorpay, true)
	return VerifyResult{Verified: true, Enrollment: &enr}, nil
}

type (
	CreateSessionInput struct {
		CohortID   string `json:"cohort_id" validate:"required"`
		Amount     int64  `json:"amount" validate:"required,gt=0"` // minor units
		Currency   string `json:"currency"`
		CohortName string `json:"cohort_name"`
	}

	CreatedSession struct {
		SessionID string `json:"session_id"`
		URL       string `json:"url"`
	}
)

func (si *CreateSessionInput) Validate() error {
	si.CohortID = core.CleanString(si.CohortID)
	si.Currency = core.CleanString(si.Currency, true /* lower */)
	if si.Currency == "" {
		si.Currency = "inr"
	}
	si.CohortName = core.CleanString(si.CohortName)
	return core.Validate.Struct(si)
}

// CreateCheckoutSession opens a stripe checkout session for the signed-in
// user, stamping the user and cohort into the session metadata.
func (svc *Service) CreateCheckoutSession(ctx context.Context, usr user.User, si CreateSessionInput) (CreatedSession, error) {
	if usr.ID == "" {
		return CreatedSession{}, ErrUnauthenticated
	}
	if svc.stripe == nil {
		return CreatedSession{}, ErrProviderUnavailable
	}

	name := si.CohortName
	if name == "" {
		name = fmt.Sprintf("%s enrollment", core.Conf.AppName)
	}
	base := core.Conf.FrontendBaseURL
	sess, err := svc.stripe.CreateCheckoutSession(ctx, SessionParams{
		Amount:      si.Amount,
		Currency:    si.Currency,
		ProductName: name,
		SuccessURL:  base + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   base + "/payment/cancelled",
		Metadata: map[string]string{
			noteUserID:   usr.ID,
			noteCohortID: si.CohortID,
		},
	})
	if err != nil {
		return CreatedSession{}, errors.Wrap(ErrProviderError, err.Error())
	}
	svc.metrics.OrderCreated(ProviderStripe)
	return CreatedSession{SessionID: sess.ID, URL: sess.URL}, nil
}

type VerifySessionInput struct {
	SessionID string `json:"session_id" validate:"required"`
}

func (vi *VerifySessionInput) Validate() error {
	vi.SessionID = core.CleanString(vi.SessionID)
	return core.Validate.Struct(vi)
}

// VerifyCheckoutSession retrieves the session from stripe and enrolls only if
// the provider reports payment_status "paid". The metadata held by the
// provider, not client input, names the cohort and user.
func (svc *Service) VerifyCheckoutSession(ctx context.Context, usr user.User, vi VerifySessionInput) (VerifyResult, error) {
	if usr.ID == "" {
		return VerifyResult{}, ErrUnauthenticated
	}
	if svc.stripe == nil {
		return VerifyResult{}, ErrProviderUnavailable
	}

	sess, err := svc.stripe.RetrieveSession(ctx, vi.SessionID)
	if err != nil {
		return VerifyResult{}, errors.Wrap(ErrProviderError, err.Error())
	}
	if sess.PaymentStatus != "paid" {
		svc.metrics.Verification(ProviderStripe, false)
		return VerifyResult{Verified: false}, nil
	}
	cohortID := sess.Metadata[noteCohortID]
	if cohortID == "" || sess.Metadata[noteUserID] != usr.ID {
		svc.metrics.Verification(ProviderStripe, false)
		return VerifyResult{Verified: false}, nil
	}

	enr, err := svc.enroller.EnrollPaid(ctx, usr.ID, cohortID, sess.ID)
	if err != nil {
		return VerifyResult{}, errors.Wrap(err, "enrolling user")
	}
	svc.metrics.Verification(ProviderStripe, true)
	return VerifyResult{Verified: true, Enrollment: &enr}, nil
}
