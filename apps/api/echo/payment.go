package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/payment"
	"github.com/trezcool/shule/core/student"
)

type paymentApi struct {
	svc      *payment.Service
	students *student.Service
}

func registerPaymentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *payment.Service, students *student.Service) {
	api := paymentApi{svc: svc, students: students}

	pg := g.Group("/payments", jwt)
	pg.POST("/add", api.create)
	pg.GET("/all", api.query)
	pg.GET("/pending", api.pending)
	pg.GET("/stats", api.stats)
	pg.GET("/student/:studentId", api.forStudent)
	pg.GET("/receipt/:receiptNumber", api.byReceipt)
	pg.GET("/month/:month", api.byMonth)
	pg.PUT("/update/:id", api.update)
	pg.DELETE("/delete/:id", api.destroy)
}

// Handlers

func (api *paymentApi) create(ctx echo.Context) error {
	var data payment.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	pmt, err := api.svc.Add(ctx.Request().Context(), data, contextActor(ctx))
	if err != nil {
		return errors.Wrap(mapDomainErr(err), "adding payment")
	}
	return respond(ctx, http.StatusCreated, "payment recorded successfully", echo.Map{"payment": pmt})
}

func (api *paymentApi) query(ctx echo.Context) error {
	pmts, err := api.svc.All(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	return respond(ctx, http.StatusOK, "", echo.Map{
		"count":       len(pmts),
		"totalAmount": payment.TotalAmount(pmts),
		"payments":    pmts,
	})
}

// pending lists students whose cached payment status is still pending.
func (api *paymentApi) pending(ctx echo.Context) error {
	students, err := api.students.PendingPayments(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying pending payments")
	}
	return respond(ctx, http.StatusOK, "", echo.Map{"count": len(students), "students": students})
}

func (api *paymentApi) stats(ctx echo.Context) error {
	var data StatsRangeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatsRangeRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	var start, end time.Time
	if data.StartDate != "" && data.EndDate != "" {
		var err error
		if start, err = parseDateParam("startDate", data.StartDate); err != nil {
			return err
		}
		if end, err = parseDateParam("endDate", data.EndDate); err != nil {
			return err
		}
		// make the end bound inclusive of the whole day
		end = end.Add(24*time.Hour - time.Nanosecond)
	}

	stats, err := api.svc.Stats(ctx.Request().Context(), start, end)
	if err != nil {
		return errors.Wrap(err, "computing payment stats")
	}
	return respond(ctx, http.StatusOK, "", echo.Map{"statistics": stats})
}

func (api *paymentApi) forStudent(ctx echo.Context) error {
	pmts, err := api.svc.ForStudent(ctx.Request().Context(), ctx.Param("studentId"))
	if err != nil {
		return errors.Wrap(err, "querying student payments")
	}
	return respond(ctx, http.StatusOK, "", echo.Map{
		"count":     len(pmts),
		"totalPaid": payment.TotalPaid(pmts),
		"payments":  pmts,
	})
}

func (api *paymentApi) byReceipt(ctx echo.Context) error {
	pmt, err := api.svc.ByReceipt(ctx.Request().Context(), ctx.Param("receiptNumber"))
	if err != nil {
		return errors.Wrap(mapDomainErr(err), "finding payment by receipt")
	}
	return respond(ctx, http.StatusOK, "", echo.Map{"payment": pmt})
}

func (api *paymentApi) byMonth(ctx echo.Context) error {
	month := core.CleanString(ctx.Param("month"))
	if err := core.Validate.Var(month, "required,yearmonth"); err != nil {
		return core.NewValidationError(err, core.FieldError{
			Field: "month", Error: "must be a valid month in YYYY-MM format",
		})
	}

	pmts, err := api.svc.ByMonth(ctx.Request().Context(), month)
	if err != nil {
		return errors.Wrap(err, "querying payments by month")
	}
	return respond(ctx, http.StatusOK, "", echo.Map{
		"count":    len(pmts),
		"total":    payment.TotalAmount(pmts),
		"payments": pmts,
	})
}

func (api *paymentApi) update(ctx echo.Context) error {
	var data payment.UpdatePayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePayment")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	pmt, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(mapDomainErr(err), "updating payment")
	}
	return respond(ctx, http.StatusOK, "payment updated successfully", echo.Map{"payment": pmt})
}

func (api *paymentApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(mapDomainErr(err), "deleting payment")
	}
	return ok(ctx, "payment deleted successfully")
}
