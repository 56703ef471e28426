package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/shule/core"
)

// respond wraps payload data in the API's JSON envelope.
func respond(ctx echo.Context, code int, message string, data echo.Map) error {
	body := echo.Map{"success": true}
	if message != "" {
		body["message"] = message
	}
	for k, v := range data {
		body[k] = v
	}
	return ctx.JSON(code, body)
}

// parseDateParam parses a YYYY-MM-DD path or query value.
func parseDateParam(name, val string) (time.Time, error) {
	t, err := time.Parse(core.DateFormat, val)
	if err != nil {
		return time.Time{}, core.NewValidationError(err, core.FieldError{
			Field: name, Error: "must be a valid date in YYYY-MM-DD format",
		})
	}
	return t, nil
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	DateRangeRequest struct {
		StartDate string `query:"startDate" validate:"required,dateonly"`
		EndDate   string `query:"endDate" validate:"required,dateonly"`
	}

	StatsRangeRequest struct {
		StartDate string `query:"startDate" validate:"omitempty,dateonly"`
		EndDate   string `query:"endDate" validate:"omitempty,dateonly"`
	}

	PaymentStatusRequest struct {
		PaymentStatus string `json:"payment_status" validate:"required,oneof=pending completed"`
	}

	AttendanceCountRequest struct {
		AttendanceCount *int `json:"attendance_count" validate:"required,gte=0"`
	}
)

func (lr *LoginRequest) Validate() error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return core.Validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate() error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return core.Validate.Struct(pr)
}

func (dr *DateRangeRequest) Validate() error { return core.Validate.Struct(dr) }

func (sr *StatsRangeRequest) Validate() error { return core.Validate.Struct(sr) }

func (ps *PaymentStatusRequest) Validate() error { return core.Validate.Struct(ps) }

func (ac *AttendanceCountRequest) Validate() error { return core.Validate.Struct(ac) }

// ok is a minimal success envelope for responses with no payload.
func ok(ctx echo.Context, message string) error {
	return respond(ctx, http.StatusOK, message, nil)
}
