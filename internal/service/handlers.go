package service

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/model"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/store"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/validation"
	pkgmodel "gitlab.com/dirk.krummacker/contacts-hypermedia/pkg/model"
)

const (
	hxTrigger  = "HX-Trigger"
	hxRedirect = "HX-Redirect"

	triggerSearch = "search"
	triggerDelete = "delete-btn"

	flashCreated        = "Created New Contact!"
	flashUpdated        = "Updated Contact!"
	flashDeleted        = "Deleted Contact!"
	flashAlreadyDeleted = "Contact was already deleted."
)

// contactID parses the id path parameter. Ids that cannot belong to any contact are reported as
// not ok.
func contactID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// pageParam returns the requested page; anything that is not a positive number means the first
// page.
func pageParam(c *gin.Context) int {
	page, err := strconv.Atoi(c.Query(pkgmodel.ParamPage))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func index(c *gin.Context) {
	c.Redirect(http.StatusMovedPermanently, "/contacts")
}

// listContacts renders one page of contacts, optionally filtered by the q parameter. Requests
// triggered by the search field only get the table and its page navigation back.
//
// Example call:
// > curl 'http://localhost:8080/contacts?q=ada&page=2'
func (s *Server) listContacts(c *gin.Context) {
	ctx := c.Request.Context()
	number := pageParam(c)
	query := c.Query(pkgmodel.ParamQuery)

	var contacts []model.Contact
	var err error
	if strings.TrimSpace(query) == "" {
		contacts, err = s.contacts.GetPage(ctx, number, s.opts.PageSize)
	} else {
		contacts, err = s.contacts.Search(ctx, query, number, s.opts.PageSize)
	}
	if err != nil {
		s.fail(c, "list contacts", 0, err)
		return
	}
	total, err := s.contacts.Count(ctx, query)
	if err != nil {
		s.fail(c, "count contacts", 0, err)
		return
	}

	view := listView{
		Query:    query,
		Contacts: contacts,
		Paging:   model.NewPaging(number, s.opts.PageSize, total),
	}
	if c.GetHeader(hxTrigger) == triggerSearch {
		c.HTML(http.StatusOK, "results", view)
		return
	}
	view.Flashes = s.flashes(c)
	c.HTML(http.StatusOK, "index.html", view)
}

func (s *Server) newContactForm(c *gin.Context) {
	c.HTML(http.StatusOK, "new.html", formView{page: page{Flashes: s.flashes(c)}})
}

// createContact stores a new contact and redirects to the list. Invalid input is shown again
// together with the messages for the offending fields.
//
// Example call:
// > curl -d 'first_name=Ada&last_name=Lovelace&phone_number=555-0100&email=ada@example.com' http://localhost:8080/contacts/new
func (s *Server) createContact(c *gin.Context) {
	form, ok := s.bindForm(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	fieldErrors, err := s.validation.CheckForm(ctx, form, 0)
	if err != nil {
		s.fail(c, "validate new contact", 0, err)
		return
	}
	if fieldErrors != nil {
		c.HTML(http.StatusOK, "new.html", formView{Form: form, Errors: fieldErrors})
		return
	}

	created, err := s.contacts.Create(ctx, form)
	if fieldErrors, isConstraint := validation.FromConstraint(err); isConstraint {
		c.HTML(http.StatusOK, "new.html", formView{Form: form, Errors: fieldErrors})
		return
	}
	if err != nil {
		s.fail(c, "create contact", 0, err)
		return
	}
	s.log.Info("contact created", zap.Int64("id", created.Id), zap.String("request_id", c.GetString(requestIDKey)))
	s.flash(c, flashCreated)
	c.Redirect(http.StatusSeeOther, "/contacts")
}

// showContact renders the details of a single contact.
//
// Example call:
// > curl http://localhost:8080/contacts/42
func (s *Server) showContact(c *gin.Context) {
	contact, ok := s.loadContact(c, "show contact")
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "show.html", showView{page: page{Flashes: s.flashes(c)}, Contact: contact})
}

func (s *Server) editContactForm(c *gin.Context) {
	contact, ok := s.loadContact(c, "edit contact")
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "edit.html", formView{
		page: page{Flashes: s.flashes(c)},
		ID:   contact.Id,
		Form: contact.Form(),
	})
}

// updateContact replaces the fields of an existing contact. The contact's own email and phone
// number do not count as taken.
//
// Example call:
// > curl -d 'first_name=Ada&last_name=King&phone_number=555-0100&email=ada@example.com' http://localhost:8080/contacts/42/edit
func (s *Server) updateContact(c *gin.Context) {
	contact, ok := s.loadContact(c, "update contact")
	if !ok {
		return
	}
	form, ok := s.bindForm(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	fieldErrors, err := s.validation.CheckForm(ctx, form, contact.Id)
	if err != nil {
		s.fail(c, "validate contact", contact.Id, err)
		return
	}
	if fieldErrors != nil {
		c.HTML(http.StatusOK, "edit.html", formView{ID: contact.Id, Form: form, Errors: fieldErrors})
		return
	}

	_, err = s.contacts.Update(ctx, contact.Id, form)
	if fieldErrors, isConstraint := validation.FromConstraint(err); isConstraint {
		c.HTML(http.StatusOK, "edit.html", formView{ID: contact.Id, Form: form, Errors: fieldErrors})
		return
	}
	if err != nil {
		s.fail(c, "update contact", contact.Id, err)
		return
	}
	s.flash(c, flashUpdated)
	c.Redirect(http.StatusSeeOther, fmt.Sprintf("/contacts/%d", contact.Id))
}

// deleteContact removes a contact. Deleting is idempotent: a contact that is already gone is
// answered the same way as one that was just removed. A request from the delete button of the
// edit page is sent back to the list, a request from a table row gets an empty body that
// replaces the row.
//
// Example call:
// > curl -X DELETE http://localhost:8080/contacts/42
func (s *Server) deleteContact(c *gin.Context) {
	removed := false
	id, ok := contactID(c)
	if ok {
		var err error
		removed, err = s.contacts.Delete(c.Request.Context(), id)
		if err != nil {
			s.fail(c, "delete contact", id, err)
			return
		}
	}

	if c.GetHeader(hxTrigger) == triggerDelete {
		if removed {
			s.flash(c, flashDeleted)
		} else {
			s.flash(c, flashAlreadyDeleted)
		}
		c.Header(hxRedirect, "/contacts")
	}
	c.String(http.StatusOK, "")
}

// validateField answers whether an email address or phone number is still available. It is
// called while the user types and renders the message shown next to the input, together with the
// form's submit button, which stays disabled while the value is taken.
//
// Example call:
// > curl 'http://localhost:8080/contacts/validate?field=email&value=ada@example.com&id=42'
func (s *Server) validateField(c *gin.Context) {
	var input string
	switch c.Query(pkgmodel.ParamField) {
	case pkgmodel.ValidateEmail:
		input = pkgmodel.FieldEmail
	case pkgmodel.ValidatePhone, pkgmodel.FieldPhoneNumber:
		input = pkgmodel.FieldPhoneNumber
	default:
		c.HTML(http.StatusBadRequest, "validation", validationView{Message: "Unknown field"})
		return
	}

	value, present := c.GetQuery(pkgmodel.ParamValue)
	if !present {
		value = c.Query(input)
	}
	excludeID, err := strconv.ParseInt(c.Query(pkgmodel.ParamExcludeID), 10, 64)
	if err != nil || excludeID < 0 {
		excludeID = 0
	}

	ctx := c.Request.Context()
	var available bool
	if input == pkgmodel.FieldEmail {
		available, err = s.validation.IsEmailAvailable(ctx, value, excludeID)
	} else {
		available, err = s.validation.IsPhoneAvailable(ctx, value, excludeID)
	}
	if err != nil {
		s.fail(c, "validate "+input, excludeID, err)
		return
	}

	view := validationView{Field: input, Available: available}
	if !available {
		view.Message = validation.Message(input, store.ReasonTaken)
	}
	c.HTML(http.StatusOK, "validation", view)
}

// loadContact looks up the contact named by the id path parameter. It renders the not found
// page and returns false if there is none.
func (s *Server) loadContact(c *gin.Context, op string) (model.Contact, bool) {
	id, ok := contactID(c)
	if !ok {
		s.notFound(c)
		return model.Contact{}, false
	}
	contact, found, err := s.contacts.FindByID(c.Request.Context(), id)
	if err != nil {
		s.fail(c, op, id, err)
		return model.Contact{}, false
	}
	if !found {
		s.notFound(c)
		return model.Contact{}, false
	}
	return contact, true
}

// bindForm reads the submitted contact fields. A body that cannot be parsed is rejected.
func (s *Server) bindForm(c *gin.Context) (model.ContactForm, bool) {
	var form model.ContactForm
	if err := c.ShouldBind(&form); err != nil {
		s.log.Debug("could not bind contact form", zap.Error(err))
		s.renderError(c, http.StatusBadRequest, "The submitted form could not be read.")
		return form, false
	}
	return form.Normalize(), true
}
