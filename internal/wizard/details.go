package wizard

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var storageNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("storagename", func(fl validator.FieldLevel) bool {
		return storageNamePattern.MatchString(fl.Field().String())
	})
}

// FinalDetails are the fields collected on the last step.
type FinalDetails struct {
	Name            string `validate:"required,storagename"`
	TargetPath      string `validate:"required"`
	SourcePath      string
	Readonly        bool
	SaveCredentials bool
}

// ValidateFinalDetails checks the name and mount point before submission.
func ValidateFinalDetails(fd FinalDetails) error {
	if err := validate.Struct(fd); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError converts validator errors into user-facing messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return err
	}
	e := validationErrs[0]
	switch {
	case e.Field() == "Name" && e.Tag() == "required":
		return fmt.Errorf("%w: a name is required", ErrInvalidDetails)
	case e.Field() == "Name":
		return fmt.Errorf("%w: name %q may only contain letters, digits, '_' and '-'", ErrInvalidDetails, e.Value())
	case e.Field() == "TargetPath":
		return fmt.Errorf("%w: a mount point is required", ErrInvalidDetails)
	default:
		return fmt.Errorf("%w: %s failed on '%s'", ErrInvalidDetails, e.Namespace(), e.Tag())
	}
}
