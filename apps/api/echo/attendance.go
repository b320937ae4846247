package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/user"
)

type attendanceApi struct {
	svc    *attendance.Service
	usrSvc *user.Service
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *attendance.Service, usrSvc *user.Service) {
	api := attendanceApi{svc: svc, usrSvc: usrSvc}

	ag := g.Group("/attendance", jwt)
	ag.POST("", api.record, staffMiddleware())
	ag.GET("", api.query, staffMiddleware())
	ag.GET("/entry", api.retrieveEntry, staffMiddleware())

	sg := g.Group("/students/:id/attendance", jwt)
	sg.GET("", api.studentHistory)
	sg.GET("/stats", api.studentStats)
}

// Handlers

func (api *attendanceApi) record(ctx echo.Context) error {
	var data attendance.NewEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEntry")
	}

	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	entry, err := api.svc.Record(ctx.Request().Context(), prin, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	filter := new(attendance.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []attendance.Entry{})
	}
	filter.Context = attendance.Context{
		GradeSection: ctx.QueryParam("grade_section"),
		WorkshopID:   ctx.QueryParam("workshop_id"),
	}

	entries, err := api.svc.Filter(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "filtering attendance entries")
	}
	if entries == nil {
		entries = []attendance.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *attendanceApi) retrieveEntry(ctx echo.Context) error {
	date, err := time.Parse("2006-01-02", ctx.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date; expected YYYY-MM-DD")
	}
	actx := attendance.Context{
		GradeSection: ctx.QueryParam("grade_section"),
		WorkshopID:   ctx.QueryParam("workshop_id"),
	}

	entry, err := api.svc.GetEntry(ctx.Request().Context(), date, actx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *attendanceApi) studentHistory(ctx echo.Context) error {
	prin, err := api.scopeToStudent(ctx)
	if err != nil {
		return err
	}

	items, err := api.svc.StudentHistory(ctx.Request().Context(), prin, ctx.Param("id"))
	if err != nil {
		return err
	}
	if items == nil {
		items = []attendance.HistoryItem{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *attendanceApi) studentStats(ctx echo.Context) error {
	if _, err := api.scopeToStudent(ctx); err != nil {
		return err
	}

	stats, err := api.svc.Aggregate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}

// scopeToStudent enforces who may consult the student named in the URL:
// staff see anyone, students only themselves, parents only a linked child.
func (api *attendanceApi) scopeToStudent(ctx echo.Context) (user.Principal, error) {
	prin, err := getContextPrincipal(ctx)
	if err != nil {
		return user.Principal{}, err
	}

	studentID := ctx.Param("id")
	switch {
	case prin.IsAdmin() || prin.IsTeacher():
		return prin, nil
	case prin.IsStudent():
		if prin.ID != studentID {
			return user.Principal{}, attendance.ErrNotAllowed
		}
		return prin, nil
	case prin.IsParent():
		parent, err := getContextUser(ctx, api.usrSvc)
		if err != nil {
			return user.Principal{}, errors.Wrap(err, "getting context user")
		}
		if !parent.HasChild(studentID) {
			return user.Principal{}, attendance.ErrNotAllowed
		}
		return prin, nil
	}
	return user.Principal{}, errHttpForbidden
}
