package echoapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/feeledger/core/fee"
	"github.com/trezcool/feeledger/core/user"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ReportService interface {
	Collection(ctx context.Context, from, to time.Time) (fee.CollectionReport, error)
	Defaulters(ctx context.Context, filter fee.DefaulterFilter) ([]fee.Defaulter, error)
	ExportDefaulters(ctx context.Context, filter fee.DefaulterFilter, w io.Writer) error
	Dashboard(ctx context.Context, academicYearID string) (fee.Dashboard, error)
}

type reportApi struct {
	svc ReportService
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := reportApi{svc: deps.Reports}

	rg := g.Group("/fees/reports", jwt, adminMiddleware())
	rg.GET("/collection", api.collection)
	rg.GET("/defaulters", api.defaulters, adminMiddleware(user.RoleAdmin, user.RoleAdminOwner, user.RoleAdminAccounts))
	rg.GET("/dashboard", api.dashboard)
}

// Handlers

func (api *reportApi) collection(ctx echo.Context) error {
	var dr DateRange
	dr.Bind(ctx)

	report, err := api.svc.Collection(ctx.Request().Context(), dr.From, dr.To)
	if err != nil {
		return errors.Wrap(err, "reporting collection")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *reportApi) defaulters(ctx echo.Context) error {
	var filter fee.DefaulterFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to DefaulterFilter")
	}
	var ord Ordering
	ord.Bind(ctx)
	filter.Orderings = ord.Orderings

	rctx := ctx.Request().Context()
	if ctx.QueryParam("format") == "xlsx" {
		var buf bytes.Buffer
		if err := api.svc.ExportDefaulters(rctx, filter, &buf); err != nil {
			return errors.Wrap(err, "exporting defaulters")
		}
		ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="defaulters.xlsx"`)
		return ctx.Blob(http.StatusOK, xlsxMIME, buf.Bytes())
	}

	defaulters, err := api.svc.Defaulters(rctx, filter)
	if err != nil {
		return errors.Wrap(err, "listing defaulters")
	}
	return ctx.JSON(http.StatusOK, defaulters)
}

func (api *reportApi) dashboard(ctx echo.Context) error {
	dash, err := api.svc.Dashboard(ctx.Request().Context(), ctx.QueryParam("year_id"))
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}
