package booking

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/skindd/doclogs/internal/platform/apperr"
)

var (
	personNameRe = regexp.MustCompile(`^[\p{L}\s]+$`)
	phoneRe      = regexp.MustCompile(`^[0-9]{10}$`)
)

// fieldMessages maps "Field.tag" onto the message returned to the client.
var fieldMessages = map[string]string{
	"PatientName.required":    "patient name is required",
	"PatientName.personname":  "patient name must contain only letters and spaces",
	"PhoneNumber.required":    "phone number is required",
	"PhoneNumber.phone10":     "phone number must be exactly 10 digits",
	"Address.max":             "address is too long",
	"ObservedStatus.eq":       "selected slot is not available",
	"DoctorID.required":       "doctorId is required",
	"DoctorID.max":            "doctorId is too long",
	"Username.required":       "username is required",
	"Username.max":            "username is too long",
	"Password.required":       "password is required",
	"NewPassword.required":    "newPassword is required",
	"Date.required":           "date is required",
	"Time.required":           "time is required",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personNameRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})
	return v
}

// check runs struct validation and turns the first failure into a
// KindValidation error.
func (g *Gateway) check(req any) error {
	err := g.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Wrap(apperr.KindInternal, "validation failed", err)
	}
	fe := verrs[0]
	if msg, ok := fieldMessages[fe.StructField()+"."+fe.Tag()]; ok {
		return apperr.Validation(msg)
	}
	return apperr.Validation(strings.ToLower(fe.StructField()) + " is invalid")
}
