package api

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/koustreak/bucketlens/internal/errs"
	"github.com/koustreak/bucketlens/internal/filestore"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator, reporting fields by json name.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		// Registration only fails for an empty tag or a nil func.
		_ = validate.RegisterValidation("endpoint", validEndpoint)
	})
	return validate
}

// validateRequest checks req's struct tags. Failures are invalid input.
// When requiredMsg is set, a failed "required" rule reports it verbatim.
func validateRequest(req any, requiredMsg string) error {
	err := getValidator().Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid request", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" && requiredMsg != "" {
			return errs.New(errs.ErrKindInvalidInput, requiredMsg)
		}
		msgs = append(msgs, fe.Field()+": "+describe(fe))
	}
	return errs.New(errs.ErrKindInvalidInput, strings.Join(msgs, "; "))
}

// validEndpoint accepts exactly what the storage driver can connect to.
func validEndpoint(fl validator.FieldLevel) bool {
	_, _, err := filestore.ParseEndpoint(fl.Field().String())
	return err == nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "endpoint":
		return "must be an http(s) URL or a host[:port]"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag()
	}
}
