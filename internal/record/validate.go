package record

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared struct validator with the record-specific
// tags registered. It is safe for concurrent use.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("meeting_type", func(fl validator.FieldLevel) bool {
			return MeetingType(fl.Field().String()).IsValid()
		})
	})
	return validate
}

// ValidateMeta checks caller-supplied meeting metadata.
func ValidateMeta(meta MeetingMeta) error {
	meta.Name = strings.TrimSpace(meta.Name)
	if err := Validator().Struct(meta); err != nil {
		return describe(err)
	}
	return nil
}

// ValidateMember checks a roster entry before it is stored.
func ValidateMember(m Member) error {
	var errs []error
	if strings.TrimSpace(m.Name) == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if m.Email != "" {
		if err := Validator().Var(m.Email, "email"); err != nil {
			errs = append(errs, fmt.Errorf("email %q is not a valid address", m.Email))
		}
	}
	return errors.Join(errs...)
}

// describe flattens validator errors into one joined error with readable
// field names.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			errs = append(errs, fmt.Errorf("%s is required", field))
		case "meeting_type":
			errs = append(errs, fmt.Errorf("%s %q is not a recognised meeting type", field, fe.Value()))
		default:
			errs = append(errs, fmt.Errorf("%s fails %q", field, fe.Tag()))
		}
	}
	return errors.Join(errs...)
}
