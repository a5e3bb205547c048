package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kozi/core/payment"
	"github.com/trezcool/kozi/core/user"
)

type paymentAPI struct {
	svc    *payment.Service
	usrSvc *user.Service
}

func registerPaymentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *payment.Service, usrSvc *user.Service) {
	api := paymentAPI{svc: svc, usrSvc: usrSvc}

	pg := g.Group("/payments", jwt)
	pg.POST("/razorpay/create-order", api.createOrder)
	pg.POST("/razorpay/verify", api.verifyRazorpay)
	pg.POST("/stripe/create-checkout-session", api.createCheckoutSession)
	pg.POST("/stripe/verify-session", api.verifyCheckoutSession)
}

// providerUnavailable names the other gateway so the client can offer it.
func providerUnavailable(p payment.Provider) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusServiceUnavailable, echo.Map{
		"error":    payment.ErrProviderUnavailable.Error(),
		"provider": string(p),
		"fallback": string(p.Fallback()),
	})
}

func (api *paymentAPI) createOrder(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data payment.CreateOrderInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CreateOrderInput")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	order, err := api.svc.CreateOrder(ctx.Request().Context(), usr, data)
	if err != nil {
		if errors.Cause(err) == payment.ErrProviderUnavailable {
			return providerUnavailable(payment.ProviderRazorpay)
		}
		return err
	}
	return ctx.JSON(http.StatusCreated, order)
}

func (api *paymentAPI) verifyRazorpay(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data payment.VerifyRazorpayInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyRazorpayInput")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	res, err := api.svc.VerifyRazorpay(ctx.Request().Context(), usr, data)
	if err != nil {
		if errors.Cause(err) == payment.ErrProviderUnavailable {
			return providerUnavailable(payment.ProviderRazorpay)
		}
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *paymentAPI) createCheckoutSession(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data payment.CreateSessionInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CreateSessionInput")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	sess, err := api.svc.CreateCheckoutSession(ctx.Request().Context(), usr, data)
	if err != nil {
		if errors.Cause(err) == payment.ErrProviderUnavailable {
			return providerUnavailable(payment.ProviderStripe)
		}
		return err
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *paymentAPI) verifyCheckoutSession(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data payment.VerifySessionInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifySessionInput")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	res, err := api.svc.VerifyCheckoutSession(ctx.Request().Context(), usr, data)
	if err != nil {
		if errors.Cause(err) == payment.ErrProviderUnavailable {
			return providerUnavailable(payment.ProviderStripe)
		}
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}
