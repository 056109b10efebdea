package service

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/model"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/validation"
)

// sessionName is the name of the cookie that carries flash messages.
const sessionName = "contacts_session"

// Contacts is the record store behind the handlers.
type Contacts interface {
	GetPage(ctx context.Context, page, size int) ([]model.Contact, error)
	Search(ctx context.Context, q string, page, size int) ([]model.Contact, error)
	Count(ctx context.Context, q string) (int, error)
	FindByID(ctx context.Context, id int64) (model.Contact, bool, error)
	Create(ctx context.Context, form model.ContactForm) (model.Contact, error)
	Update(ctx context.Context, id int64, form model.ContactForm) (model.Contact, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// Options tune the HTTP side of the service.
type Options struct {
	PageSize       int
	SessionSecret  string
	SessionSecure  bool
	RequestLogging bool
	Metrics        bool
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	contacts   Contacts
	validation *validation.Service
	log        *zap.Logger
	opts       Options
}

// New returns a Server. A page size of 0 falls back to ten contacts per page.
func New(contacts Contacts, validator *validation.Service, log *zap.Logger, opts Options) *Server {
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	return &Server{contacts: contacts, validation: validator, log: log, opts: opts}
}

// SetupHttpRouter initializes the router and registers all endpoints.
func (s *Server) SetupHttpRouter() *gin.Engine {
	router := gin.New()
	router.SetHTMLTemplate(loadTemplates())
	router.Use(requestID())
	if s.opts.RequestLogging {
		router.Use(requestLogger(s.log))
	}
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.log.Error("panic while handling request",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString(requestIDKey)))
		s.renderError(c, http.StatusInternalServerError, msgInternal)
	}))
	if s.opts.Metrics {
		ginprometheus.NewPrometheus("contacts").Use(router)
	}
	sessionStore := cookie.NewStore([]byte(s.opts.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		Secure:   s.opts.SessionSecure,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(sessionName, sessionStore))

	router.GET("/", index)
	router.GET("/contacts", s.listContacts)
	router.GET("/contacts/new", s.newContactForm)
	router.POST("/contacts/new", s.createContact)
	router.GET("/contacts/validate", s.validateField)
	router.GET("/contacts/:id", s.showContact)
	router.DELETE("/contacts/:id", s.deleteContact)
	router.GET("/contacts/:id/edit", s.editContactForm)
	router.POST("/contacts/:id/edit", s.updateContact)
	router.NoRoute(func(c *gin.Context) {
		s.renderError(c, http.StatusNotFound, "Page not found.")
	})
	return router
}
