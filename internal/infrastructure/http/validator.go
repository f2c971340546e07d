package http

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
)

// RequestValidator implements echo.Validator. Decimal fields are validated as
// their string form with the money tags.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	// money: positive with at most two decimal places
	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		d, ok := moneyValue(fl)
		return ok && d.IsPositive()
	})
	// nonzero_money: signed, non-zero, at most two decimal places
	_ = v.RegisterValidation("nonzero_money", func(fl validator.FieldLevel) bool {
		d, ok := moneyValue(fl)
		return ok && !d.IsZero()
	})

	return &RequestValidator{validate: v}
}

func moneyValue(fl validator.FieldLevel) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil || !d.Equal(d.Round(2)) {
		return decimal.Decimal{}, false
	}
	return d, true
}

// Validate returns the first failed rule as a validation error.
func (v *RequestValidator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := fe.Namespace()
		if idx := strings.IndexByte(field, '.'); idx >= 0 {
			field = field[idx+1:]
		}
		return domainErrors.NewValidationError(field, "%s", describe(fe))
	}
	return domainErrors.NewValidationError("body", "%s", err.Error())
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "money":
		return "must be a positive amount with at most two decimal places"
	case "nonzero_money":
		return "must be a non-zero amount with at most two decimal places"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must have at least " + fe.Param() + " items"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a valid URL"
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "failed the " + fe.Tag() + " rule"
	}
}
