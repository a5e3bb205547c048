package user

import (
	"context"
	"time"

	"github.com/trezcool/kozi/core"
)

// FlowState is the position of a visitor in the auth flow.
type FlowState string

const (
	StateAnonymous           FlowState = "anonymous"
	StatePendingVerification FlowState = "pending-verification" // email sent, awaiting click-through
	StateAuthenticated       FlowState = "authenticated"
	StateInvalidSession      FlowState = "invalid-session" // update-password reached without a live session
)

// Flow drives one visitor's sign-in/sign-up/reset journey. It wraps the
// Service calls of each page and keeps the resend cooldown, which is not
// persisted and resets on every successful send.
type Flow struct {
	svc *Service

	state    FlowState
	usr      User
	email    string
	next     string
	lastSent time.Time
	cooldown time.Duration
}

func NewFlow(svc *Service) *Flow {
	return &Flow{
		svc:      svc,
		state:    StateAnonymous,
		cooldown: core.Conf.ResendCooldown,
	}
}

func (f *Flow) State() FlowState { return f.state }
func (f *Flow) User() User       { return f.usr }

// CooldownRemaining reports how long until a resend is allowed again.
func (f *Flow) CooldownRemaining() time.Duration {
	if f.lastSent.IsZero() {
		return 0
	}
	if rem := f.cooldown - NowFunc().Sub(f.lastSent); rem > 0 {
		return rem
	}
	return 0
}

// SubmitPassword attempts a password sign-in. On failure the flow stays
// anonymous and the error is surfaced inline.
func (f *Flow) SubmitPassword(ctx context.Context, li LoginInput) error {
	if err := li.Validate(); err != nil {
		return err
	}
	usr, err := f.svc.Authenticate(ctx, li.Email, li.Password)
	if err != nil {
		return err
	}
	f.usr = usr
	f.state = StateAuthenticated
	return nil
}

// SubmitEmail sends a magic link (or reset email via the service) and moves
// to pending-verification, arming the cooldown.
func (f *Flow) SubmitEmail(ctx context.Context, mi MagicLinkInput) error {
	if err := mi.Validate(); err != nil {
		return err
	}
	if err := f.svc.RequestMagicLink(ctx, mi); err != nil {
		return err
	}
	f.email = mi.Email
	f.next = mi.Next
	f.lastSent = NowFunc()
	f.state = StatePendingVerification
	return nil
}

// Resend re-sends the pending email. Within the cooldown window it is a
// no-op: no call is made and (false, nil) is returned. A successful resend
// resets the countdown.
func (f *Flow) Resend(ctx context.Context) (bool, error) {
	if f.state != StatePendingVerification {
		return false, nil
	}
	if f.CooldownRemaining() > 0 {
		return false, nil
	}
	if err := f.svc.RequestMagicLink(ctx, MagicLinkInput{Email: f.email, Next: f.next}); err != nil {
		return false, err
	}
	f.lastSent = NowFunc()
	return true, nil
}

// CompleteExchange consumes the callback code and authenticates the flow.
func (f *Flow) CompleteExchange(ctx context.Context, code string) error {
	usr, err := f.svc.ExchangeCode(ctx, code)
	if err != nil {
		return err
	}
	f.usr = usr
	f.state = StateAuthenticated
	return nil
}

// BeginUpdatePassword gates the update-password page: without a live session
// the flow lands on the terminal invalid-session state (the page then
// redirects back to the reset request flow after a delay).
func (f *Flow) BeginUpdatePassword() FlowState {
	if f.state != StateAuthenticated {
		f.state = StateInvalidSession
	}
	return f.state
}

// SignOut resets the flow back to anonymous.
func (f *Flow) SignOut() {
	*f = Flow{svc: f.svc, state: StateAnonymous, cooldown: f.cooldown}
}
