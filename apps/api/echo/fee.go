package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/feeledger/core/fee"
	"github.com/trezcool/feeledger/core/school"
	"github.com/trezcool/feeledger/core/user"
)

const idempotencyKeyHeader = "Idempotency-Key"

type (
	FeeService interface {
		CreateTemplate(ctx context.Context, nt fee.NewTemplate) (fee.Template, error)
		QueryTemplates(ctx context.Context, filter fee.TemplateFilter) ([]fee.Template, error)
		CollectPayment(ctx context.Context, np fee.NewPayment, collectedBy user.User) (fee.Receipt, error)
		ApplyConcession(ctx context.Context, ledgerID string, nc fee.NewConcession, appliedBy user.User) (fee.Ledger, error)
		GetLedger(ctx context.Context, studentID, academicYearID string) (fee.Ledger, error)
		GetReceipt(ctx context.Context, receiptNo string) (fee.Receipt, error)
		PaymentHistory(ctx context.Context, studentID, academicYearID string) ([]fee.Receipt, error)
	}

	SchoolService interface {
		GetCurrentAcademicYear(ctx context.Context) (school.AcademicYear, error)
	}
)

type feeApi struct {
	svc      FeeService
	schools  SchoolService
	validate *validator.Validate
}

func registerFeeAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := feeApi{
		svc:      deps.FeeSvc,
		schools:  deps.SchoolSvc,
		validate: deps.Validate,
	}

	fg := g.Group("/fees", jwt)
	fg.POST("/structures", api.createTemplate, adminMiddleware())
	fg.GET("/structures", api.queryTemplates, staffMiddleware())
	fg.POST("/pay", api.pay, staffMiddleware())
	fg.GET("/receipts/:receiptNo", api.receipt, staffMiddleware())
	fg.GET("/history/:studentId", api.history, staffMiddleware())
	fg.GET("/ledger/:studentId", api.ledger, staffMiddleware())
	fg.POST("/ledger/concession/:ledgerId", api.concession, adminMiddleware())
}

// Handlers

func (api *feeApi) createTemplate(ctx echo.Context) error {
	var data fee.NewTemplate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTemplate")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	tmpl, err := api.svc.CreateTemplate(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating template")
	}
	return ctx.JSON(http.StatusCreated, tmpl)
}

func (api *feeApi) queryTemplates(ctx echo.Context) error {
	var filter fee.TemplateFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to TemplateFilter")
	}

	templates, err := api.svc.QueryTemplates(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying templates")
	}
	return ctx.JSON(http.StatusOK, templates)
}

func (api *feeApi) pay(ctx echo.Context) error {
	var data fee.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	data.IdempotencyKey = ctx.Request().Header.Get(idempotencyKeyHeader)
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	receipt, err := api.svc.CollectPayment(ctx.Request().Context(), data, contextUser(ctx))
	if err != nil {
		return errors.Wrap(err, "collecting payment")
	}
	return ctx.JSON(http.StatusCreated, receipt)
}

func (api *feeApi) receipt(ctx echo.Context) error {
	receipt, err := api.svc.GetReceipt(ctx.Request().Context(), ctx.Param("receiptNo"))
	if err != nil {
		return errors.Wrap(err, "getting receipt")
	}
	return ctx.JSON(http.StatusOK, receipt)
}

func (api *feeApi) history(ctx echo.Context) error {
	receipts, err := api.svc.PaymentHistory(ctx.Request().Context(), ctx.Param("studentId"), ctx.QueryParam("year_id"))
	if err != nil {
		return errors.Wrap(err, "getting payment history")
	}
	if receipts == nil {
		receipts = []fee.Receipt{}
	}
	return ctx.JSON(http.StatusOK, receipts)
}

// ledger defaults to the current academic year when `year_id` is not given.
func (api *feeApi) ledger(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	yearID := ctx.QueryParam("year_id")
	if yearID == "" {
		year, err := api.schools.GetCurrentAcademicYear(rctx)
		if err != nil {
			return errors.Wrap(err, "getting current academic year")
		}
		yearID = year.ID
	}

	ledger, err := api.svc.GetLedger(rctx, ctx.Param("studentId"), yearID)
	if err != nil {
		return errors.Wrap(err, "getting ledger")
	}
	return ctx.JSON(http.StatusOK, ledger)
}

func (api *feeApi) concession(ctx echo.Context) error {
	var data fee.NewConcession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewConcession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ledger, err := api.svc.ApplyConcession(ctx.Request().Context(), ctx.Param("ledgerId"), data, contextUser(ctx))
	if err != nil {
		return errors.Wrap(err, "applying concession")
	}
	return ctx.JSON(http.StatusOK, ledger)
}
