package user

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/trezcool/kozi/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account deactivated")
	ErrInvalidCode        = errors.New("invalid or expired code")
	ErrSendThrottled      = errors.New("an email was sent recently, retry later")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		FilterUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		UpdateUser(ctx context.Context, usr User, isActive *bool) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	// ExternalIdentity carries the provider-supplied metadata of an OAuth
	// sign-in used to provision a missing Profile.
	ExternalIdentity struct {
		Email     string
		Name      string
		AvatarURL string
	}

	Service struct {
		repo   Repository
		mail   core.EmailService
		logger core.Logger

		// per-email resend throttle, ResendCooldown apart
		mu      sync.Mutex
		senders map[string]*rate.Limiter
	}
)

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		mail:    mailSvc,
		logger:  logger,
		senders: make(map[string]*rate.Limiter),
	}
}

func (svc *Service) CheckUniqueness(email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, exclUsers...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Register creates an active student profile from password sign-up data.
func (svc *Service) Register(ctx context.Context, si SignupInput) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:        uuid.NewString(),
		Name:      si.Name,
		Email:     si.Email,
		Role:      RoleStudent,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(si.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// Authenticate checks password credentials and bumps the last login on success.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	return svc.SetLastLogin(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]User, error) {
	return svc.repo.FilterUsers(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, orig User, uu UpdateUser) (User, error) {
	usr := User{
		ID:        orig.ID,
		Name:      uu.Name,
		Email:     uu.Email,
		Role:      uu.Role,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	return svc.repo.UpdateUser(ctx, usr, uu.IsActive)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	usr.UpdatedAt = usr.LastLogin
	return svc.repo.UpdateUser(ctx, usr, nil)
}

// allowSend enforces the per-email resend cooldown server-side; the auth Flow
// enforces the same window client-side so hitting this is the exception.
func (svc *Service) allowSend(email string) bool {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	lim, ok := svc.senders[email]
	if !ok {
		lim = rate.NewLimiter(rate.Every(core.Conf.ResendCooldown), 1)
		svc.senders[email] = lim
	}
	return lim.Allow()
}

// RequestMagicLink emails a one-shot sign-in link. Unknown emails get a
// pending student profile provisioned first so that the link can complete
// sign-up; the response is indistinguishable either way.
func (svc *Service) RequestMagicLink(ctx context.Context, mi MagicLinkInput) error {
	if !svc.allowSend(mi.Email) {
		return ErrSendThrottled
	}

	usr, err := svc.GetByEmail(ctx, mi.Email)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return errors.Wrap(err, "finding user by email")
		}
		now := time.Now().UTC()
		usr = User{
			ID:        uuid.NewString(),
			Name:      EmailLocalPart(mi.Email),
			Email:     mi.Email,
			Role:      RoleStudent,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if usr, err = svc.repo.CreateUser(ctx, usr); err != nil {
			return errors.Wrap(err, "provisioning user")
		}
	}

	code, err := MakeLoginCode(usr)
	if err != nil {
		return errors.Wrap(err, "making login code")
	}

	q := url.Values{"code": {code}}
	if mi.Next != "" {
		q.Set("next", mi.Next)
	}
	link := core.Conf.FrontendBaseURL + "/auth/callback?" + q.Encode()

	svc.mail.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Your sign-in link",
		BodyStr: fmt.Sprintf(
			"Hi %s,\n\nClick the link below to sign in to your account. "+
				"The link expires in %s and can only be used once.\n\n%s\n",
			usr.Name, core.Conf.MagicLinkTimeoutDelta, link,
		),
	})
	return nil
}

// ExchangeCode trades a callback code for the matching User.
// The code is one-shot: consuming it bumps LastLogin which invalidates it.
func (svc *Service) ExchangeCode(ctx context.Context, code string) (User, error) {
	id, token, err := splitLoginCode(code)
	if err != nil {
		return User{}, ErrInvalidCode
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCode
		}
		return User{}, errors.Wrap(err, "finding user by id")
	}
	if err = verifyToken(usr, token, core.Conf.MagicLinkTimeoutDelta); err != nil {
		return User{}, ErrInvalidCode
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	return svc.SetLastLogin(ctx, usr)
}

// GetOrCreateByIdentity resolves an OAuth sign-in to a profile, provisioning
// one (role student, name falling back to the email local-part) when the
// external identity is new. Exactly one profile row exists per identity.
func (svc *Service) GetOrCreateByIdentity(ctx context.Context, ident ExternalIdentity) (User, error) {
	email := core.CleanString(ident.Email, true /* lower */)
	usr, err := svc.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return svc.SetLastLogin(ctx, usr)
	}
	if errors.Cause(err) != ErrNotFound {
		return User{}, errors.Wrap(err, "finding user by email")
	}

	name := core.CleanString(ident.Name)
	if name == "" {
		name = EmailLocalPart(email)
	}
	now := time.Now().UTC()
	usr = User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      RoleStudent,
		AvatarURL: ident.AvatarURL,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	return svc.repo.CreateUser(ctx, usr)
}

// RequestPasswordReset emails a reset link. ErrNotFound is returned to the
// caller which must not reveal it to the requester.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	if !svc.allowSend(email) {
		return ErrSendThrottled
	}

	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	token, err := MakeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making token")
	}

	q := url.Values{"uid": {EncodeUID(usr)}, "token": {token}}
	link := core.Conf.FrontendBaseURL + "/reset-password/update?" + q.Encode()

	svc.mail.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Reset your password",
		BodyStr: fmt.Sprintf(
			"Hi %s,\n\nYou requested a password reset. Click the link below to choose "+
				"a new password. The link expires in %s.\n\n%s\n\n"+
				"If you did not request this, you can safely ignore this email.\n",
			usr.Name, core.Conf.PasswordResetTimeoutDelta, link,
		),
	})
	return nil
}

// ResetPassword consumes a reset token and swaps in the new password.
func (svc *Service) ResetPassword(ctx context.Context, ri ResetPasswordInput) error {
	id, err := decodeUID(ri.UID)
	if err != nil {
		return ErrInvalidCode
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return ErrInvalidCode
		}
		return errors.Wrap(err, "finding user by id")
	}
	if err = verifyToken(usr, ri.Token, core.Conf.PasswordResetTimeoutDelta); err != nil {
		return ErrInvalidCode
	}
	return svc.setNewPassword(ctx, usr, ri.Password)
}

// UpdatePassword changes the password of an authenticated user (the
// update-password flow reached via a reset-email session).
func (svc *Service) UpdatePassword(ctx context.Context, usr User, ui UpdatePasswordInput) error {
	return svc.setNewPassword(ctx, usr, ui.Password)
}

func (svc *Service) setNewPassword(ctx context.Context, usr User, pwd string) error {
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err := svc.repo.UpdateUser(ctx, usr, nil); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return nil
}
