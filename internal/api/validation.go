package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"translink/internal/domain"
	"translink/internal/models"

	"github.com/go-playground/validator/v10"
)

// requestValidator checks request DTOs. Besides the stock tags it knows
// hhmm (a HH:mm clock time) and notpast (a YYYY-MM-DD date that is today or
// later in the business time zone).
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator(today func() string) *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Ошибки регистрации возможны только при пустом имени тега
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return validClock(fl.Field().String())
	})
	_ = v.RegisterValidation("notpast", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if _, err := time.Parse(models.DateLayout, s); err != nil {
			return false
		}
		return s >= today()
	})

	return &requestValidator{v: v}
}

func validClock(s string) bool {
	if len(s) != len(models.ClockLayout) {
		return false
	}
	_, err := time.Parse(models.ClockLayout, s)
	return err == nil
}

func (rv *requestValidator) check(dst any) error {
	err := rv.v.Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.Validation("invalid request")
	}
	return domain.Validation("%s", describe(verrs[0]))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "hhmm":
		return fmt.Sprintf("%s must be in HH:mm format", field)
	case "notpast":
		return fmt.Sprintf("%s must be a date today or later", field)
	case "datetime":
		return fmt.Sprintf("%s must be YYYY-MM-DD", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	case "min", "gte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at least %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
