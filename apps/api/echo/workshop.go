package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/workshop"
)

type workshopApi struct {
	svc *workshop.Service
}

func registerWorkshopAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *workshop.Service) {
	api := workshopApi{svc: svc}

	wg := g.Group("/workshops", jwt)
	wg.POST("", api.create, adminMiddleware())
	wg.GET("", api.query)
	wg.DELETE("", api.destroyMultiple, adminMiddleware())

	dg := wg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.POST("/enrollments", api.enroll)
	dg.DELETE("/enrollments/:studentID", api.unenroll)
}

// Handlers

func (api *workshopApi) create(ctx echo.Context) error {
	var data workshop.NewWorkshop
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewWorkshop")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ws, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating workshop")
	}
	return ctx.JSON(http.StatusCreated, ws)
}

func (api *workshopApi) query(ctx echo.Context) error {
	filter := new(workshop.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []workshop.Workshop{})
	}

	workshops, err := api.svc.Filter(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying workshops")
	}
	if workshops == nil {
		workshops = []workshop.Workshop{}
	}
	return ctx.JSON(http.StatusOK, workshops)
}

func (api *workshopApi) retrieve(ctx echo.Context) error {
	ws, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ws)
}

func (api *workshopApi) update(ctx echo.Context) error {
	var data workshop.UpdateWorkshop
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateWorkshop")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ws, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ws)
}

func (api *workshopApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting workshop")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *workshopApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting workshops")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *workshopApi) enroll(ctx echo.Context) error {
	var data EnrollmentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollmentRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	if err := api.svc.Enroll(ctx.Request().Context(), prin, ctx.Param("id"), data.StudentID); err != nil {
		return err
	}
	ws, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ws)
}

func (api *workshopApi) unenroll(ctx echo.Context) error {
	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	if err := api.svc.Unenroll(ctx.Request().Context(), prin, ctx.Param("id"), ctx.Param("studentID")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
