package nbi

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/signalsfoundry/sdh-provisioner/internal/sdh"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRequest checks the struct tags of an inbound message. Failures
// wrap sdh.ErrInvalidRequest and name the first offending field.
func ValidateRequest(req any) error {
	if req == nil {
		return fmt.Errorf("%w: empty request", sdh.ErrInvalidRequest)
	}
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", sdh.ErrInvalidRequest, err)
	}
	e := verrs[0]
	switch e.Tag() {
	case "required":
		return fmt.Errorf("%w: %s is required", sdh.ErrInvalidRequest, e.Namespace())
	case "oneof":
		return fmt.Errorf("%w: %s must be one of [%s]", sdh.ErrInvalidRequest, e.Namespace(), e.Param())
	case "min":
		return fmt.Errorf("%w: %s must be at least %s", sdh.ErrInvalidRequest, e.Namespace(), e.Param())
	default:
		return fmt.Errorf("%w: %s failed %s", sdh.ErrInvalidRequest, e.Namespace(), e.Tag())
	}
}
