package user

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/kozi/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

var AllRoles = []string{RoleStudent, RoleAdmin}

// User is a platform profile. It is provisioned on first sign-up, magic-link
// send or OAuth callback, mutated by admin tools and never deleted by the
// auth/payment flows themselves.
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	Role         string    `json:"role" db:"role"`
	AvatarURL    string    `json:"avatar_url,omitempty" db:"avatar_url"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	PasswordHash []byte    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login" db:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

// EmailLocalPart returns the part of an email address before the '@'.
// It is the fallback display name for provisioned profiles.
func EmailLocalPart(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}

// SignupInput contains information needed to register a new User with a password.
type SignupInput struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (si *SignupInput) Validate(svc *Service) error {
	si.Name = core.CleanString(si.Name)
	si.Email = core.CleanString(si.Email, true /* lower */)

	if err := core.Validate.Struct(si); err != nil {
		return err
	}
	return svc.CheckUniqueness(si.Email)
}

// LoginInput contains password sign-in credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (li *LoginInput) Validate() error {
	li.Email = core.CleanString(li.Email, true /* lower */)
	return core.Validate.Struct(li)
}

// MagicLinkInput requests a one-shot sign-in link by email.
type MagicLinkInput struct {
	Email string `json:"email" validate:"required,email"`
	Next  string `json:"next,omitempty"`
}

func (mi *MagicLinkInput) Validate() error {
	mi.Email = core.CleanString(mi.Email, true /* lower */)
	return core.Validate.Struct(mi)
}

// PasswordResetInput requests a password reset link by email.
type PasswordResetInput struct {
	Email string `json:"email" validate:"required,email"`
}

func (pi *PasswordResetInput) Validate() error {
	pi.Email = core.CleanString(pi.Email, true /* lower */)
	return core.Validate.Struct(pi)
}

// ResetPasswordInput confirms a password reset with the emailed token.
type ResetPasswordInput struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (ri ResetPasswordInput) Validate() error { return core.Validate.Struct(ri) }

// UpdatePasswordInput changes the password of a live (reset-originated) session.
type UpdatePasswordInput struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (ui UpdatePasswordInput) Validate() error { return core.Validate.Struct(ui) }

// UpdateUser defines what information may be provided by admins to modify an
// existing User.
type UpdateUser struct {
	Name            string `json:"name"`
	Email           string `json:"email" validate:"omitempty,email"`
	Role            string `json:"role" validate:"omitempty,oneof=student admin"`
	IsActive        *bool  `json:"is_active"`
	Password        string `json:"password" validate:"omitempty,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(origUsr User, svc *Service) error {
	uu.Name = core.CleanString(uu.Name)
	if uu.Name == "" {
		uu.Name = origUsr.Name
	}
	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}
	if uu.Role == "" {
		uu.Role = origUsr.Role
	}

	if err := core.Validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(uu.Email, origUsr)
}

// QueryFilter applies an AND operation on its fields.
// Search does a case-insensitive match on one of User.Name or User.Email.
type QueryFilter struct {
	Search      string    `query:"search"`
	Role        string    `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Role == "" && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
}
