package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kozi/core/course"
	"github.com/trezcool/kozi/core/user"
)

type courseAPI struct {
	svc    *course.Service
	usrSvc *user.Service
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *course.Service, usrSvc *user.Service) {
	api := courseAPI{svc: svc, usrSvc: usrSvc}

	g.POST("/leads", api.captureLead)
	g.GET("/dashboard", api.dashboard, jwt)
	g.GET("/admin/overview", api.adminOverview, jwt, adminMiddleware())
}

// Handlers

func (api *courseAPI) captureLead(ctx echo.Context) error {
	var data course.LeadInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LeadInput")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	lead, err := api.svc.CaptureLead(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "capturing lead")
	}
	return ctx.JSON(http.StatusCreated, lead)
}

func (api *courseAPI) dashboard(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	dash, err := api.svc.Dashboard(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "aggregating dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *courseAPI) adminOverview(ctx echo.Context) error {
	ov, err := api.svc.AdminOverview(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "aggregating admin overview")
	}
	return ctx.JSON(http.StatusOK, ov)
}
