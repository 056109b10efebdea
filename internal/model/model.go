package model

import "strings"

// Contact is the data structure for a person that we know. Id and CreatedAt are assigned by the
// database when the contact is created and never change afterwards.
type Contact struct {
	Id          int64  `db:"id"`
	FirstName   string `db:"first_name"`
	LastName    string `db:"last_name"`
	PhoneNumber string `db:"phone_number"`
	Email       string `db:"email"`
	CreatedAt   string `db:"created_at"`
}

// FullName joins first and last name for display.
func (c Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Form returns the editable fields of the contact, e.g. for pre-filling the edit form.
func (c Contact) Form() ContactForm {
	return ContactForm{
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		PhoneNumber: c.PhoneNumber,
		Email:       c.Email,
	}
}

// ContactForm holds the user supplied fields of a contact, as submitted by the create and edit
// forms.
type ContactForm struct {
	FirstName   string `form:"first_name"   db:"first_name"   validate:"required"`
	LastName    string `form:"last_name"    db:"last_name"    validate:"required"`
	PhoneNumber string `form:"phone_number" db:"phone_number" validate:"required"`
	Email       string `form:"email"        db:"email"        validate:"required,email"`
}

// Normalize trims surrounding whitespace from all fields.
func (f ContactForm) Normalize() ContactForm {
	return ContactForm{
		FirstName:   strings.TrimSpace(f.FirstName),
		LastName:    strings.TrimSpace(f.LastName),
		PhoneNumber: strings.TrimSpace(f.PhoneNumber),
		Email:       strings.TrimSpace(f.Email),
	}
}

// Paging describes where a page of contacts sits in the full result set.
type Paging struct {
	Page     int
	PageSize int
	Total    int
	Pages    int
}

// NewPaging computes the number of pages for total rows. There is always at least one page, even
// if it is empty.
func NewPaging(page, pageSize, total int) Paging {
	if page < 1 {
		page = 1
	}
	pages := 1
	if pageSize > 0 && total > 0 {
		pages = (total + pageSize - 1) / pageSize
	}
	return Paging{Page: page, PageSize: pageSize, Total: total, Pages: pages}
}

func (p Paging) HasNext() bool { return p.Page < p.Pages }
func (p Paging) HasPrev() bool { return p.Page > 1 }
func (p Paging) Next() int     { return p.Page + 1 }
func (p Paging) Prev() int     { return p.Page - 1 }
