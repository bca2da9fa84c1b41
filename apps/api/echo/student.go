package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/feeledger/core/student"
)

type StudentService interface {
	Admit(ctx context.Context, ns student.NewStudent) (student.Admission, error)
	Get(ctx context.Context, id string) (student.Student, error)
	GetParent(ctx context.Context, id string) (student.ParentDetail, error)
}

type studentApi struct {
	svc      StudentService
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := studentApi{
		svc:      deps.StudentSvc,
		validate: deps.Validate,
	}

	sg := g.Group("/students", jwt)
	sg.POST("/admit", api.admit, adminMiddleware())
	sg.GET("/:id", api.retrieve, staffMiddleware())

	pg := g.Group("/parents", jwt)
	pg.GET("/:id", api.retrieveParent, staffMiddleware())
}

// Handlers

func (api *studentApi) admit(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	admission, err := api.svc.Admit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "admitting student")
	}
	return ctx.JSON(http.StatusCreated, admission)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	s, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) retrieveParent(ctx echo.Context) error {
	p, err := api.svc.GetParent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting parent")
	}
	return ctx.JSON(http.StatusOK, p)
}
