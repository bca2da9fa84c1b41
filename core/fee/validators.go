package fee

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/feeledger/core"
)

var (
	frequencyTag  = "frequency"
	frequencyText = "must be one of MONTHLY, QUARTERLY, YEARLY, ONE_TIME"

	paymentModeTag = "paymentmode"
)

// InitValidators registers the fee validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(frequencyTag, func(fl validator.FieldLevel) bool {
		return Frequency(fl.Field().String()).IsValid()
	})
	core.RegisterCustomTranslation(validate, translator, frequencyTag, frequencyText)

	_ = validate.RegisterValidation(paymentModeTag, func(fl validator.FieldLevel) bool {
		return PaymentMode(fl.Field().String()).IsValid()
	})
	core.RegisterCustomTranslation(validate, translator, paymentModeTag, errInvalidMode)
}
