package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/student"
)

type studentApi struct {
	svc *student.Service
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *student.Service) {
	api := studentApi{svc: svc}

	sg := g.Group("/students", jwt)
	sg.GET("", api.query)
	sg.GET("/search", api.search)
	sg.POST("/add", api.create)
	sg.GET("/:id", api.retrieve)
	sg.PUT("/update/:id", api.update)
	sg.DELETE("/delete/:id", api.destroy)
	sg.PATCH("/payment/:id", api.setPaymentStatus)
	sg.PATCH("/attendance/:id", api.setAttendanceCount)
}

// Handlers

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.svc); err != nil {
		return err
	}

	std, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(mapDomainErr(err), "creating student")
	}
	return respond(ctx, http.StatusCreated, "student registered successfully", echo.Map{"student": std})
}

func (api *studentApi) query(ctx echo.Context) error {
	students, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return respond(ctx, http.StatusOK, "", echo.Map{"count": len(students), "students": students})
}

func (api *studentApi) search(ctx echo.Context) error {
	var filter student.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	students, err := api.svc.Filter(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "searching students")
	}
	return respond(ctx, http.StatusOK, "", echo.Map{"count": len(students), "students": students})
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	std, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(mapDomainErr(err), "finding student")
	}
	return respond(ctx, http.StatusOK, "", echo.Map{"student": std})
}

func (api *studentApi) update(ctx echo.Context) error {
	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	std, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(mapDomainErr(err), "updating student")
	}
	return respond(ctx, http.StatusOK, "student updated successfully", echo.Map{"student": std})
}

func (api *studentApi) destroy(ctx echo.Context) error {
	std, err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(mapDomainErr(err), "deleting student")
	}
	return respond(ctx, http.StatusOK, "student deleted successfully", echo.Map{"deletedStudent": std})
}

func (api *studentApi) setPaymentStatus(ctx echo.Context) error {
	var data PaymentStatusRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PaymentStatusRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	std, err := api.svc.SetPaymentStatus(ctx.Request().Context(), ctx.Param("id"), data.PaymentStatus)
	if err != nil {
		return errors.Wrap(mapDomainErr(err), "setting payment status")
	}
	return respond(ctx, http.StatusOK, "payment status updated", echo.Map{"student": std})
}

func (api *studentApi) setAttendanceCount(ctx echo.Context) error {
	var data AttendanceCountRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AttendanceCountRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	std, err := api.svc.SetAttendanceCount(ctx.Request().Context(), ctx.Param("id"), *data.AttendanceCount)
	if err != nil {
		return errors.Wrap(mapDomainErr(err), "setting attendance count")
	}
	return respond(ctx, http.StatusOK, "attendance count updated", echo.Map{"student": std})
}
