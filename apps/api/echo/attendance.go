package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/attendance"
)

type attendanceApi struct {
	svc *attendance.Service
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *attendance.Service) {
	api := attendanceApi{svc: svc}

	ag := g.Group("/attendance", jwt)
	ag.POST("/mark", api.mark)
	ag.POST("/mark-bulk", api.markBulk)
	ag.GET("/date/:date", api.byDate)
	ag.GET("/student/:studentId", api.forStudent)
	ag.GET("/report", api.report)
	ag.DELETE("/delete/:id", api.destroy)
}

// Handlers

func (api *attendanceApi) mark(ctx echo.Context) error {
	var data attendance.MarkAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkAttendance")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	rec, created, err := api.svc.Mark(ctx.Request().Context(), data, contextActor(ctx))
	if err != nil {
		return errors.Wrap(mapDomainErr(err), "marking attendance")
	}

	code := http.StatusOK
	msg := "attendance updated"
	if created {
		code = http.StatusCreated
		msg = "attendance marked"
	}
	return respond(ctx, code, msg, echo.Map{"attendance": rec})
}

func (api *attendanceApi) markBulk(ctx echo.Context) error {
	var data attendance.BulkAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkAttendance")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	res, err := api.svc.MarkBulk(ctx.Request().Context(), data, contextActor(ctx))
	if err != nil {
		return errors.Wrap(err, "marking bulk attendance")
	}
	return respond(ctx, http.StatusOK, "bulk attendance processed", echo.Map{"results": res})
}

func (api *attendanceApi) byDate(ctx echo.Context) error {
	date, err := parseDateParam("date", ctx.Param("date"))
	if err != nil {
		return err
	}

	recs, err := api.svc.ByDate(ctx.Request().Context(), date)
	if err != nil {
		return errors.Wrap(err, "querying attendance by date")
	}
	return respond(ctx, http.StatusOK, "", echo.Map{"count": len(recs), "records": recs})
}

func (api *attendanceApi) forStudent(ctx echo.Context) error {
	sa, err := api.svc.ForStudent(ctx.Request().Context(), ctx.Param("studentId"))
	if err != nil {
		return errors.Wrap(mapDomainErr(err), "querying student attendance")
	}
	return respond(ctx, http.StatusOK, "", echo.Map{"statistics": sa.Statistics, "records": sa.Records})
}

func (api *attendanceApi) report(ctx echo.Context) error {
	var data DateRangeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DateRangeRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	start, err := parseDateParam("startDate", data.StartDate)
	if err != nil {
		return err
	}
	end, err := parseDateParam("endDate", data.EndDate)
	if err != nil {
		return err
	}

	report, err := api.svc.Report(ctx.Request().Context(), start, end)
	if err != nil {
		return errors.Wrap(err, "building attendance report")
	}
	return respond(ctx, http.StatusOK, "", echo.Map{"report": report})
}

func (api *attendanceApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(mapDomainErr(err), "deleting attendance record")
	}
	return ok(ctx, "attendance record deleted")
}
