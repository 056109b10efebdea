package store

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/model"
)

const (
	// DefaultPageSize is used when a caller passes a page size of 0.
	DefaultPageSize = 10
	// MaxPageSize caps the number of contacts returned by a single page.
	MaxPageSize = 100
)

// TimeLayout is the format of the created_at column.
const TimeLayout = "2006-01-02 15:04:05"

// maxInt is the largest possible int value
const maxInt = int(^uint(0) >> 1)

// columns lists the contacts columns in the order of the model.Contact fields.
const columns = "id, first_name, last_name, phone_number, email, created_at"

// Store provides access to the contacts table. All methods are safe for concurrent use; every
// write is a single auto-committed statement.
type Store struct {
	db  *sqlx.DB
	now func() time.Time

	// insert is a prepared statement for creating a contact on the database.
	insert *sqlx.NamedStmt

	// selectWhereId is a prepared statement for selecting contacts with a given id.
	selectWhereId *sqlx.Stmt

	// updateWhereId is a prepared statement for overwriting the editable fields of a contact.
	updateWhereId *sqlx.Stmt

	// deleteWhereId is a prepared statement for deleting a contact with a given id.
	deleteWhereId *sqlx.Stmt
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the clock used to stamp created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New prepares all statements on db and returns a ready to use Store. The database argument can
// be a real database for production use or a mock database within unit tests.
func New(db *sqlx.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	s.insert, err = db.PrepareNamed(`
		INSERT INTO contacts (first_name, last_name, phone_number, email, created_at)
		VALUES (:first_name, :last_name, :phone_number, :email, :created_at)
	`)
	if err != nil {
		return nil, errors.Wrap(err, "prepare insert")
	}
	s.selectWhereId, err = db.Preparex(`
		SELECT ` + columns + ` FROM contacts WHERE id = ?
	`)
	if err != nil {
		return nil, errors.Wrap(err, "prepare select")
	}
	s.updateWhereId, err = db.Preparex(`
		UPDATE contacts SET first_name = ?, last_name = ?, phone_number = ?, email = ? WHERE id = ?
	`)
	if err != nil {
		return nil, errors.Wrap(err, "prepare update")
	}
	s.deleteWhereId, err = db.Preparex(`
		DELETE FROM contacts WHERE id = ?
	`)
	if err != nil {
		return nil, errors.Wrap(err, "prepare delete")
	}
	return s, nil
}

// Close releases the prepared statements. The underlying database handle stays open.
func (s *Store) Close() error {
	var first error
	for _, closer := range []interface{ Close() error }{s.insert, s.selectWhereId, s.updateWhereId, s.deleteWhereId} {
		if err := closer.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// GetPage returns the contacts of the given page, ordered by id. Pages are numbered from 1. A
// page beyond the last contact is empty.
func (s *Store) GetPage(ctx context.Context, page, size int) ([]model.Contact, error) {
	return s.selectPage(ctx, "", page, size)
}

// Search works like GetPage but only returns contacts whose first or last name contains q,
// ignoring case. Surrounding whitespace in q is ignored and a blank q matches every contact.
func (s *Store) Search(ctx context.Context, q string, page, size int) ([]model.Contact, error) {
	return s.selectPage(ctx, q, page, size)
}

// Count returns the number of contacts matched by Search for q.
func (s *Store) Count(ctx context.Context, q string) (int, error) {
	where, args := nameFilter(q)
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM contacts"+where, args...); err != nil {
		return 0, errors.Wrap(err, "count contacts")
	}
	return n, nil
}

func (s *Store) selectPage(ctx context.Context, q string, page, size int) ([]model.Contact, error) {
	limit, offset, err := window(page, size)
	if err != nil {
		return nil, err
	}
	contacts := []model.Contact{}
	if offset < 0 {
		return contacts, nil
	}
	where, args := nameFilter(q)
	args = append(args, limit, offset)
	query := "SELECT " + columns + " FROM contacts" + where + " ORDER BY id ASC LIMIT ? OFFSET ?"
	if err := s.db.SelectContext(ctx, &contacts, query, args...); err != nil {
		return nil, errors.Wrap(err, "select contacts")
	}
	return contacts, nil
}

// window turns a page number and size into LIMIT and OFFSET. A negative offset means the page
// lies beyond anything the table could hold.
func window(page, size int) (limit int, offset int, err error) {
	if page < 1 {
		return 0, 0, errors.Wrapf(ErrInvalidPage, "page number %d", page)
	}
	switch {
	case size < 0:
		return 0, 0, errors.Wrapf(ErrInvalidPage, "page size %d", size)
	case size == 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	if page-1 > maxInt/size {
		return size, -1, nil
	}
	return size, (page - 1) * size, nil
}

// nameFilter builds the WHERE clause matching q against first and last name.
func nameFilter(q string) (string, []interface{}) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", nil
	}
	pattern := "%" + escapeLike(asciiLower(q)) + "%"
	return " WHERE (LOWER(first_name) LIKE ? ESCAPE '!' OR LOWER(last_name) LIKE ? ESCAPE '!')",
		[]interface{}{pattern, pattern}
}

// asciiLower folds only A-Z, the same letters SQLite's LOWER() folds, so a fragment keeps
// matching the text it was copied from.
func asciiLower(s string) string {
	return strings.Map(func(r rune) rune {
		if 'A' <= r && r <= 'Z' {
			return r + 'a' - 'A'
		}
		return r
	}, s)
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// FindByID returns the contact with the given id. found is false if there is none.
func (s *Store) FindByID(ctx context.Context, id int64) (contact model.Contact, found bool, err error) {
	var contacts []model.Contact
	if err := s.selectWhereId.SelectContext(ctx, &contacts, id); err != nil {
		return model.Contact{}, false, errors.Wrapf(err, "select contact %d", id)
	}
	if len(contacts) == 0 {
		return model.Contact{}, false, nil
	}
	return contacts[0], true, nil
}

// Create inserts a new contact and returns it with its assigned id and creation time. Empty
// fields and an email or phone number already in use are reported as *ConstraintError.
func (s *Store) Create(ctx context.Context, form model.ContactForm) (model.Contact, error) {
	form = form.Normalize()
	if err := checkRequired(form); err != nil {
		return model.Contact{}, err
	}
	createdAt := s.now().UTC().Format(TimeLayout)
	result, err := s.insert.ExecContext(ctx, map[string]interface{}{
		"first_name":   form.FirstName,
		"last_name":    form.LastName,
		"phone_number": form.PhoneNumber,
		"email":        form.Email,
		"created_at":   createdAt,
	})
	if err != nil {
		return model.Contact{}, writeError(err, "insert contact")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return model.Contact{}, errors.Wrap(err, "read inserted id")
	}
	return model.Contact{
		Id:          id,
		FirstName:   form.FirstName,
		LastName:    form.LastName,
		PhoneNumber: form.PhoneNumber,
		Email:       form.Email,
		CreatedAt:   createdAt,
	}, nil
}

// Update overwrites the editable fields of an existing contact and returns the stored result.
// It returns ErrNotFound if there is no contact with the id.
func (s *Store) Update(ctx context.Context, id int64, form model.ContactForm) (model.Contact, error) {
	form = form.Normalize()
	if err := checkRequired(form); err != nil {
		return model.Contact{}, err
	}
	result, err := s.updateWhereId.ExecContext(ctx,
		form.FirstName, form.LastName, form.PhoneNumber, form.Email, id)
	if err != nil {
		return model.Contact{}, writeError(err, "update contact")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return model.Contact{}, errors.Wrap(err, "read affected rows")
	}
	if rowsAffected == 0 {
		return model.Contact{}, errors.Wrapf(ErrNotFound, "update contact %d", id)
	}

	// Return the full contact after the update.
	contact, found, err := s.FindByID(ctx, id)
	if err != nil {
		return model.Contact{}, err
	}
	if !found {
		return model.Contact{}, errors.Wrapf(ErrNotFound, "update contact %d", id)
	}
	return contact, nil
}

// Delete removes the contact with the given id. Deleting a contact that does not exist is not an
// error; removed tells the two cases apart.
func (s *Store) Delete(ctx context.Context, id int64) (removed bool, err error) {
	result, err := s.deleteWhereId.ExecContext(ctx, id)
	if err != nil {
		return false, errors.Wrapf(err, "delete contact %d", id)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "read affected rows")
	}
	return rowsAffected > 0, nil
}

// EmailTaken reports whether a contact other than excludeID has the email. An excludeID of 0
// excludes nobody.
func (s *Store) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	return s.taken(ctx, "email", email, excludeID)
}

// PhoneTaken reports whether a contact other than excludeID has the phone number.
func (s *Store) PhoneTaken(ctx context.Context, phone string, excludeID int64) (bool, error) {
	return s.taken(ctx, "phone_number", phone, excludeID)
}

// taken counts rows holding value in column. column is never user input.
func (s *Store) taken(ctx context.Context, column, value string, excludeID int64) (bool, error) {
	var n int
	query := "SELECT COUNT(*) FROM contacts WHERE " + column + " = ? AND id <> ?"
	if err := s.db.GetContext(ctx, &n, query, strings.TrimSpace(value), excludeID); err != nil {
		return false, errors.Wrapf(err, "check %s", column)
	}
	return n > 0, nil
}

func checkRequired(form model.ContactForm) error {
	for _, f := range []struct{ name, value string }{
		{"first_name", form.FirstName},
		{"last_name", form.LastName},
		{"phone_number", form.PhoneNumber},
		{"email", form.Email},
	} {
		if f.value == "" {
			return &ConstraintError{Field: f.name, Reason: ReasonRequired}
		}
	}
	return nil
}

func writeError(err error, op string) error {
	if field, ok := uniqueViolation(err); ok {
		return &ConstraintError{Field: field, Reason: ReasonTaken}
	}
	return errors.Wrap(err, op)
}
