package validation

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/model"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/store"
)

// fakeChecker knows which contact id holds which email and phone number.
type fakeChecker struct {
	emails map[string]int64
	phones map[string]int64
	err    error
}

func (f *fakeChecker) EmailTaken(_ context.Context, email string, excludeID int64) (bool, error) {
	id, ok := f.emails[email]
	return ok && id != excludeID, f.err
}

func (f *fakeChecker) PhoneTaken(_ context.Context, phone string, excludeID int64) (bool, error) {
	id, ok := f.phones[phone]
	return ok && id != excludeID, f.err
}

func newService() *Service {
	return New(&fakeChecker{
		emails: map[string]int64{"used@example.com": 5},
		phones: map[string]int64{"+1 555": 5},
	})
}

// TestIsEmailAvailableSelfExclusion expects a contact not to collide with itself.
func TestIsEmailAvailableSelfExclusion(t *testing.T) {
	s := newService()
	ctx := context.Background()

	ok, err := s.IsEmailAvailable(ctx, "used@example.com", 5)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsEmailAvailable(ctx, "used@example.com", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.IsEmailAvailable(ctx, " used@example.com ", 7)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.IsEmailAvailable(ctx, "", 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestIsPhoneAvailable checks the phone lookup symmetric to email.
func TestIsPhoneAvailable(t *testing.T) {
	s := newService()
	ctx := context.Background()

	ok, err := s.IsPhoneAvailable(ctx, "+1 555", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.IsPhoneAvailable(ctx, "+1 555", 5)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsPhoneAvailable(ctx, "+1 777", 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestCheckForm runs forms with different defects through the validation.
func TestCheckForm(t *testing.T) {
	tests := []struct {
		name      string
		form      model.ContactForm
		excludeID int64
		want      FieldErrors
	}{
		{
			name: "valid",
			form: model.ContactForm{FirstName: "Erika", LastName: "Mustermann", PhoneNumber: "+49 0815", Email: "erika@example.com"},
		},
		{
			name: "empty",
			form: model.ContactForm{FirstName: " ", LastName: "", PhoneNumber: "", Email: ""},
			want: FieldErrors{
				"first_name":   "First name is required",
				"last_name":    "Last name is required",
				"phone_number": "Phone number is required",
				"email":        "Email is required",
			},
		},
		{
			name: "malformed email",
			form: model.ContactForm{FirstName: "Erika", LastName: "Mustermann", PhoneNumber: "+49 0815", Email: "erika"},
			want: FieldErrors{"email": "Please enter a valid email address"},
		},
		{
			name: "taken",
			form: model.ContactForm{FirstName: "Erika", LastName: "Mustermann", PhoneNumber: "+1 555", Email: "used@example.com"},
			want: FieldErrors{
				"phone_number": "This phone number already exists in your contacts",
				"email":        "This email already exists in your contacts",
			},
		},
		{
			name:      "own values",
			form:      model.ContactForm{FirstName: "Erika", LastName: "Mustermann", PhoneNumber: "+1 555", Email: "used@example.com"},
			excludeID: 5,
		},
	}
	s := newService()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.CheckForm(context.Background(), tc.form, tc.excludeID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// TestCheckFormLookupFailure expects a failing lookup to be returned as error.
func TestCheckFormLookupFailure(t *testing.T) {
	s := New(&fakeChecker{err: errors.New("connection refused")})
	_, err := s.CheckForm(context.Background(), model.ContactForm{
		FirstName: "Erika", LastName: "Mustermann", PhoneNumber: "+49 0815", Email: "erika@example.com",
	}, 0)
	assert.Error(t, err)
}

// TestFromConstraint converts store errors into field messages.
func TestFromConstraint(t *testing.T) {
	fieldErrors, ok := FromConstraint(errors.WithStack(&store.ConstraintError{Field: "email", Reason: store.ReasonTaken}))
	require.True(t, ok)
	assert.Equal(t, FieldErrors{"email": "This email already exists in your contacts"}, fieldErrors)

	fieldErrors, ok = FromConstraint(&store.ConstraintError{Field: "last_name", Reason: store.ReasonRequired})
	require.True(t, ok)
	assert.Equal(t, FieldErrors{"last_name": "Last name is required"}, fieldErrors)

	_, ok = FromConstraint(store.ErrNotFound)
	assert.False(t, ok)
}

// TestFieldErrorsError expects a stable error text.
func TestFieldErrorsError(t *testing.T) {
	err := FieldErrors{"last_name": "b", "email": "a"}
	assert.Equal(t, "invalid contact: email: a; last_name: b", err.Error())
}
