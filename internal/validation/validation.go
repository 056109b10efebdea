// Package validation checks contact forms before they are written.
//
// Uniqueness checks made here are advisory: they give the user early feedback, but two requests
// can pass them at the same time. The unique constraints of the contacts table have the final
// word, and a *store.ConstraintError returned by a write can be turned into the same field
// messages with FromConstraint.
package validation

import (
	"context"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/model"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/store"
	pkgmodel "gitlab.com/dirk.krummacker/contacts-hypermedia/pkg/model"
)

// Checker looks up whether a value is already used by a contact other than excludeID.
type Checker interface {
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	PhoneTaken(ctx context.Context, phone string, excludeID int64) (bool, error)
}

// FieldErrors maps form field names to a message for the user.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e[field])
	}
	return "invalid contact: " + strings.Join(parts, "; ")
}

var labels = map[string]string{
	pkgmodel.FieldFirstName:   "First name",
	pkgmodel.FieldLastName:    "Last name",
	pkgmodel.FieldPhoneNumber: "Phone number",
	pkgmodel.FieldEmail:       "Email",
}

const (
	msgEmailTaken   = "This email already exists in your contacts"
	msgPhoneTaken   = "This phone number already exists in your contacts"
	msgInvalidEmail = "Please enter a valid email address"
)

// Message returns the text shown next to field for a store constraint reason.
func Message(field, reason string) string {
	if reason == store.ReasonTaken {
		switch field {
		case pkgmodel.FieldEmail:
			return msgEmailTaken
		case pkgmodel.FieldPhoneNumber:
			return msgPhoneTaken
		}
		return labels[field] + " is already in use"
	}
	return labels[field] + " is required"
}

// FromConstraint converts a constraint violation reported by the store into field errors.
func FromConstraint(err error) (FieldErrors, bool) {
	var constraintErr *store.ConstraintError
	if !errors.As(err, &constraintErr) {
		return nil, false
	}
	return FieldErrors{constraintErr.Field: Message(constraintErr.Field, constraintErr.Reason)}, true
}

// Service validates contact forms.
type Service struct {
	checker  Checker
	validate *validator.Validate
}

// New returns a Service that uses checker for uniqueness lookups.
func New(checker Checker) *Service {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		return field.Tag.Get("form")
	})
	return &Service{checker: checker, validate: validate}
}

// IsEmailAvailable reports whether no contact other than excludeID uses email. An empty email
// conflicts with nobody.
func (s *Service) IsEmailAvailable(ctx context.Context, email string, excludeID int64) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return true, nil
	}
	taken, err := s.checker.EmailTaken(ctx, email, excludeID)
	return !taken, err
}

// IsPhoneAvailable reports whether no contact other than excludeID uses phone.
func (s *Service) IsPhoneAvailable(ctx context.Context, phone string, excludeID int64) (bool, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return true, nil
	}
	taken, err := s.checker.PhoneTaken(ctx, phone, excludeID)
	return !taken, err
}

// CheckForm validates all fields of form. Uniqueness is only checked for fields that are
// otherwise valid. It returns nil if the form can be saved; the returned error is reserved for
// failed lookups.
func (s *Service) CheckForm(ctx context.Context, form model.ContactForm, excludeID int64) (FieldErrors, error) {
	form = form.Normalize()
	fieldErrors := FieldErrors{}

	var validationErrs validator.ValidationErrors
	if err := s.validate.Struct(form); err != nil {
		if !errors.As(err, &validationErrs) {
			return nil, errors.Wrap(err, "validate contact form")
		}
	}
	for _, fe := range validationErrs {
		switch fe.Tag() {
		case "email":
			fieldErrors[fe.Field()] = msgInvalidEmail
		default:
			fieldErrors[fe.Field()] = Message(fe.Field(), store.ReasonRequired)
		}
	}

	if _, invalid := fieldErrors[pkgmodel.FieldEmail]; !invalid {
		ok, err := s.IsEmailAvailable(ctx, form.Email, excludeID)
		if err != nil {
			return nil, err
		}
		if !ok {
			fieldErrors[pkgmodel.FieldEmail] = msgEmailTaken
		}
	}
	if _, invalid := fieldErrors[pkgmodel.FieldPhoneNumber]; !invalid {
		ok, err := s.IsPhoneAvailable(ctx, form.PhoneNumber, excludeID)
		if err != nil {
			return nil, err
		}
		if !ok {
			fieldErrors[pkgmodel.FieldPhoneNumber] = msgPhoneTaken
		}
	}

	if len(fieldErrors) == 0 {
		return nil, nil
	}
	return fieldErrors, nil
}
