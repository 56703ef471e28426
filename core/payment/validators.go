package payment

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

var (
	monthRequiredTag  = "monthrequired"
	monthRequiredText = "month is required for monthly fee payments"
)

func init() {
	core.Validate.RegisterStructValidation(newPaymentStructValidation, NewPayment{})
	core.RegisterCustomTranslation(monthRequiredTag, monthRequiredText)
}

// newPaymentStructValidation enforces that monthly_fee payments carry the
// month they pay for; the (student, month) uniqueness check is keyed on it.
func newPaymentStructValidation(sl validator.StructLevel) {
	np := sl.Current().Interface().(NewPayment)
	if np.Type == TypeMonthlyFee && np.Month == "" {
		sl.ReportError(np.Month, "month", "Month", monthRequiredTag, "")
	}
}
