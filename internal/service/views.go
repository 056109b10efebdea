package service

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/model"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/store"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/validation"
	pkgmodel "gitlab.com/dirk.krummacker/contacts-hypermedia/pkg/model"
)

//go:embed templates/*.html
var templateFS embed.FS

func loadTemplates() *template.Template {
	return template.Must(template.New("contacts").ParseFS(templateFS, "templates/*.html"))
}

const (
	msgInternal = "Something went wrong. Please try again later."
	msgNotFound = "Contact not found"
)

// page carries what every full page renders in its header.
type page struct {
	Flashes []string
}

type listView struct {
	page
	Query    string
	Contacts []model.Contact
	Paging   model.Paging
}

type showView struct {
	page
	Contact model.Contact
}

type formView struct {
	page
	ID     int64
	Form   model.ContactForm
	Errors validation.FieldErrors
}

// Action is the URL the form posts to.
func (v formView) Action() string {
	if v.ID == 0 {
		return "/contacts/new"
	}
	return fmt.Sprintf("/contacts/%d/edit", v.ID)
}

// ValidateURL is the live validation endpoint for field, excluding the edited contact.
func (v formView) ValidateURL(field string) string {
	url := "/contacts/validate?" + pkgmodel.ParamField + "=" + field
	if v.ID != 0 {
		url += fmt.Sprintf("&%s=%d", pkgmodel.ParamExcludeID, v.ID)
	}
	return url
}

type errorView struct {
	page
	Status  int
	Title   string
	Message string
}

type validationView struct {
	Field     string
	Available bool
	Message   string
}

func (s *Server) renderError(c *gin.Context, status int, message string) {
	c.HTML(status, "error.html", errorView{Status: status, Title: http.StatusText(status), Message: message})
}

func (s *Server) notFound(c *gin.Context) {
	s.renderError(c, http.StatusNotFound, msgNotFound)
}

// fail logs err with the operation and contact id and answers with a page that does not reveal
// any internals.
func (s *Server) fail(c *gin.Context, op string, id int64, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.notFound(c)
		return
	}
	fields := []zap.Field{
		zap.String("op", op),
		zap.Int64("id", id),
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.Error(err),
	}
	if errors.Is(err, context.Canceled) {
		s.log.Warn("request canceled", fields...)
	} else {
		s.log.Error("request failed", fields...)
	}
	s.renderError(c, http.StatusInternalServerError, msgInternal)
}

// flash stores a message that is shown once on the next rendered page.
func (s *Server) flash(c *gin.Context, message string) {
	session := sessions.Default(c)
	session.AddFlash(message)
	if err := session.Save(); err != nil {
		s.log.Warn("could not save flash message", zap.Error(err))
	}
}

// flashes consumes the pending flash messages.
func (s *Server) flashes(c *gin.Context) []string {
	session := sessions.Default(c)
	pending := session.Flashes()
	if len(pending) == 0 {
		return nil
	}
	if err := session.Save(); err != nil {
		s.log.Warn("could not clear flash messages", zap.Error(err))
	}
	messages := make([]string, 0, len(pending))
	for _, f := range pending {
		if message, ok := f.(string); ok {
			messages = append(messages, message)
		}
	}
	return messages
}
