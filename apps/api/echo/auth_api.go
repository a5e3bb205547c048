package echoapi

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kozi/core"
	"github.com/trezcool/kozi/core/user"
)

var errOAuthNotConfigured = echo.NewHTTPError(http.StatusServiceUnavailable, "google sign-in not configured")

type authAPI struct {
	opts *Options
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := authAPI{opts}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/signup", api.signup)
	ag.POST("/login", api.login)
	ag.POST("/magic-link", api.requestMagicLink)
	ag.POST("/password-reset", api.requestPasswordReset)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)
	ag.GET("/google", api.googleLogin)
	ag.GET("/password-strength", api.passwordStrength)

	// authed endpoints
	ag.POST("/update-password", api.updatePassword, jwt)
	ag.POST("/token-refresh", api.refreshToken, jwt)
}

type (
	LoginResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (api authAPI) loginSucceeded() {
	if api.opts.Metrics != nil {
		api.opts.Metrics.LoginSucceeded()
	}
}

func (api authAPI) signup(ctx echo.Context) error {
	var data user.SignupInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SignupInput")
	}
	if err := data.Validate(api.opts.UserSvc); err != nil {
		return err
	}

	usr, err := api.opts.UserSvc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	api.loginSucceeded()
	return ctx.JSON(http.StatusCreated, LoginResponse{Token: token, User: usr})
}

func (api authAPI) login(ctx echo.Context) error {
	var data user.LoginInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginInput")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := api.opts.UserSvc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return err
	}
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	api.loginSucceeded()
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: usr})
}

func (api authAPI) requestMagicLink(ctx echo.Context) error {
	var data user.MagicLinkInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MagicLinkInput")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if err := api.opts.UserSvc.RequestMagicLink(ctx.Request().Context(), data); err != nil {
		return err
	}
	if api.opts.Metrics != nil {
		api.opts.Metrics.MagicLinkSent()
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Check your email for a sign-in link."})
}

func (api authAPI) requestPasswordReset(ctx echo.Context) error {
	var data user.PasswordResetInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetInput")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	err := api.opts.UserSvc.RequestPasswordReset(ctx.Request().Context(), data.Email)
	if errors.Cause(err) == user.ErrSendThrottled {
		return err
	}
	if !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api authAPI) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetPasswordInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetPasswordInput")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if err := api.opts.UserSvc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api authAPI) updatePassword(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.opts.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.UpdatePasswordInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePasswordInput")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	if err = api.opts.UserSvc.UpdatePassword(ctx.Request().Context(), usr, data); err != nil {
		return errors.Wrap(err, "updating password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password updated."})
}

func (api authAPI) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.opts.UserSvc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

// passwordStrength scores a candidate password for the sign-up form meter.
// Advisory only; it never blocks a submission.
func (api authAPI) passwordStrength(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.PasswordStrength(ctx.QueryParam("password")))
}

// googleLogin sends the visitor to the Google consent screen; `next`
// round-trips through the OAuth state.
func (api authAPI) googleLogin(ctx echo.Context) error {
	if api.opts.OAuth == nil {
		return errOAuthNotConfigured
	}
	return ctx.Redirect(http.StatusFound, api.opts.OAuth.LoginURL(cleanNext(ctx.QueryParam("next"))))
}

// callback lands both the emailed magic links and the OAuth consent screen.
// Magic link codes carry a "." separator; anything else is an authorization
// code for the OAuth provider. On success the browser is redirected to the
// frontend with the JWT in the URL fragment.
func (api authAPI) callback(ctx echo.Context) error {
	next := cleanNext(ctx.QueryParam("next"))
	if next == "" {
		next = cleanNext(ctx.QueryParam("state"))
	}
	if next == "" {
		next = "/dashboard"
	}

	if errParam := ctx.QueryParam("error"); errParam != "" {
		return api.redirectError(ctx, errParam)
	}
	code := ctx.QueryParam("code")
	if code == "" {
		return api.redirectError(ctx, "missing code")
	}

	var (
		usr user.User
		err error
	)
	if strings.Contains(code, ".") {
		usr, err = api.opts.UserSvc.ExchangeCode(ctx.Request().Context(), code)
		if err != nil {
			return api.redirectError(ctx, errors.Cause(err).Error())
		}
	} else {
		if api.opts.OAuth == nil {
			return api.redirectError(ctx, errOAuthNotConfigured.Message.(string))
		}
		ident, oErr := api.opts.OAuth.ExchangeCode(ctx.Request().Context(), code)
		if oErr != nil {
			ctx.Logger().Errorf("%+v", errors.Wrap(oErr, "exchanging oauth code"))
			return api.redirectError(ctx, "sign-in failed")
		}
		usr, err = api.opts.UserSvc.GetOrCreateByIdentity(ctx.Request().Context(), ident)
		if err != nil {
			return errors.Wrap(err, "resolving identity")
		}
	}

	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	api.loginSucceeded()
	return ctx.Redirect(http.StatusFound, core.Conf.FrontendBaseURL+next+"#token="+token)
}

func (api authAPI) redirectError(ctx echo.Context, msg string) error {
	q := url.Values{"auth_error": {msg}}
	return ctx.Redirect(http.StatusFound, core.Conf.FrontendBaseURL+"/login?"+q.Encode())
}

// cleanNext keeps redirects on our own frontend.
func cleanNext(next string) string {
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") {
		return next
	}
	return ""
}
