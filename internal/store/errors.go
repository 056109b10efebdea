package store

import (
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when an operation addresses a contact id that does not exist.
	ErrNotFound = errors.New("contact not found")

	// ErrConstraintViolation is matched by every ConstraintError.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrInvalidPage is returned for page numbers below 1 or negative page sizes.
	ErrInvalidPage = errors.New("invalid page")
)

// Reasons reported by a ConstraintError.
const (
	ReasonRequired = "required"
	ReasonTaken    = "taken"
)

// ConstraintError reports which column rejected a write and why.
type ConstraintError struct {
	Field  string
	Reason string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint violation: %s %s", e.Field, e.Reason)
}

func (e *ConstraintError) Is(target error) bool {
	return target == ErrConstraintViolation
}

// mysqlDuplicateEntry is the MySQL server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// mysqlKeyPhrase precedes the key name in a duplicate entry message.
const mysqlKeyPhrase = "for key"

// uniqueViolation inspects a driver error and returns the column whose unique constraint was
// violated.
func uniqueViolation(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var detail string
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		if mysqlErr.Number != mysqlDuplicateEntry {
			return "", false
		}
		// Duplicate entry 'x' for key 'contacts.uq_contacts_email'
		detail = mysqlErr.Message
		if i := strings.LastIndex(detail, mysqlKeyPhrase); i >= 0 {
			detail = detail[i+len(mysqlKeyPhrase):]
		}
	} else {
		// constraint failed: UNIQUE constraint failed: contacts.email (2067)
		msg := err.Error()
		i := strings.Index(msg, "UNIQUE constraint failed")
		if i < 0 {
			return "", false
		}
		detail = msg[i:]
	}
	switch {
	case strings.Contains(detail, "phone_number"):
		return "phone_number", true
	case strings.Contains(detail, "email"):
		return "email", true
	}
	return "", false
}
