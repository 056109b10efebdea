package integrationtest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/config"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/service"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/store"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/validation"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/pkg/model"
)

var rowID = regexp.MustCompile(`id="contact-(\d+)"`)

// startService runs the whole service behind a real HTTP listener. The database comes from the
// environment like in cmd/service; without CONTACTS_DATABASE_URL or DATABASE_URL a SQLite file in
// a temporary directory is used.
func startService(t *testing.T) *httptest.Server {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	if cfg.DBDriver == store.DriverSQLite && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = filepath.Join(t.TempDir(), "contacts.db")
	}

	ctx := context.Background()
	db, err := store.Open(ctx, cfg.DBDriver, cfg.DSN())
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx, db))
	contacts, err := store.New(db)
	require.NoError(t, err)

	gin.SetMode(gin.ReleaseMode)
	server := service.New(contacts, validation.New(contacts), zap.NewNop(), service.Options{
		PageSize:      cfg.PageSize,
		SessionSecret: cfg.SessionSecret,
	})
	httpServer := httptest.NewServer(server.SetupHttpRouter())
	t.Cleanup(func() {
		httpServer.Close()
		contacts.Close()
		db.Close()
	})
	return httpServer
}

// browser keeps cookies between requests and does not follow redirects.
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func newBrowser(t *testing.T, server *httptest.Server) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, base: server.URL, client: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

func (b *browser) do(method, path string, form url.Values, header http.Header) (*http.Response, string) {
	b.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	request, err := http.NewRequest(method, b.base+path, body)
	require.NoError(b.t, err)
	if form != nil {
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for key, values := range header {
		request.Header[key] = values
	}
	response, err := b.client.Do(request)
	require.NoError(b.t, err)
	defer response.Body.Close()
	content, err := io.ReadAll(response.Body)
	require.NoError(b.t, err)
	return response, string(content)
}

func contactForm(first, last, phone, email string) url.Values {
	return url.Values{
		model.FieldFirstName:   {first},
		model.FieldLastName:    {last},
		model.FieldPhoneNumber: {phone},
		model.FieldEmail:       {email},
	}
}

// unique returns a suffix that keeps tests apart when they share a MySQL database.
func unique() string {
	return strings.ReplaceAll(uuid.NewString()[:8], "-", "")
}

// findID searches the list for name and returns the id of the only matching contact.
func findID(t *testing.T, b *browser, name string) int64 {
	t.Helper()
	response, body := b.do("GET", "/contacts?"+url.Values{model.ParamQuery: {name}}.Encode(), nil, nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	matches := rowID.FindAllStringSubmatch(body, -1)
	require.Len(t, matches, 1, "contacts named %s", name)
	id, err := strconv.ParseInt(matches[0][1], 10, 64)
	require.NoError(t, err)
	return id
}

// TestContactHappyPath creates, shows, edits, and deletes a contact the way a browser does.
func TestContactHappyPath(t *testing.T) {
	b := newBrowser(t, startService(t))
	suffix := unique()
	first := "Erika" + suffix
	email := "erika." + suffix + "@example.com"
	phone := "+49 0815 " + suffix

	// create
	response, _ := b.do("POST", "/contacts/new", contactForm(first, "Mustermann", phone, email), nil)
	assert.Equal(t, http.StatusSeeOther, response.StatusCode)
	assert.Equal(t, "/contacts", response.Header.Get("Location"))
	_, body := b.do("GET", "/contacts", nil, nil)
	assert.Contains(t, body, "Created New Contact!")
	id := findID(t, b, first)
	path := fmt.Sprintf("/contacts/%d", id)

	// show
	response, body = b.do("GET", path, nil, nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, body, first+" Mustermann")
	assert.Contains(t, body, email)

	// the contact's own email is available to it while editing, but not to anybody else
	validate := url.Values{model.ParamField: {model.ValidateEmail}, model.ParamValue: {email}}
	_, body = b.do("GET", "/contacts/validate?"+validate.Encode(), nil, nil)
	assert.Contains(t, body, `data-available="false"`)
	validate.Set(model.ParamExcludeID, strconv.FormatInt(id, 10))
	_, body = b.do("GET", "/contacts/validate?"+validate.Encode(), nil, nil)
	assert.Contains(t, body, `data-available="true"`)

	// edit
	response, _ = b.do("POST", path+"/edit", contactForm("Rudi"+suffix, "Völler", phone, email), nil)
	assert.Equal(t, http.StatusSeeOther, response.StatusCode)
	assert.Equal(t, path, response.Header.Get("Location"))
	response, body = b.do("GET", path, nil, nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, body, "Updated Contact!")
	assert.Contains(t, body, "Völler")

	// delete from the edit page
	response, _ = b.do("DELETE", path, nil, http.Header{"HX-Trigger": {"delete-btn"}})
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "/contacts", response.Header.Get("HX-Redirect"))
	_, body = b.do("GET", "/contacts", nil, nil)
	assert.Contains(t, body, "Deleted Contact!")

	// gone
	response, _ = b.do("GET", path, nil, nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)
	response, _ = b.do("DELETE", path, nil, nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)
}

// TestSearchAcrossPages creates more contacts than fit on a page and walks through the search
// result page by page.
func TestSearchAcrossPages(t *testing.T) {
	b := newBrowser(t, startService(t))
	suffix := unique()
	for i := 0; i < 13; i++ {
		response, _ := b.do("POST", "/contacts/new", contactForm(
			fmt.Sprintf("Pager%s", suffix), fmt.Sprintf("Number%02d", i),
			fmt.Sprintf("+1 %s %02d", suffix, i), fmt.Sprintf("pager%02d.%s@example.com", i, suffix)), nil)
		require.Equal(t, http.StatusSeeOther, response.StatusCode)
	}

	seen := map[string]bool{}
	for page := 1; page <= 2; page++ {
		query := url.Values{model.ParamQuery: {"PAGER" + strings.ToUpper(suffix)}, model.ParamPage: {strconv.Itoa(page)}}
		_, body := b.do("GET", "/contacts?"+query.Encode(), nil, http.Header{"HX-Trigger": {"search"}})
		assert.NotContains(t, body, "<html")
		for _, match := range rowID.FindAllStringSubmatch(body, -1) {
			assert.False(t, seen[match[1]], "contact %s on two pages", match[1])
			seen[match[1]] = true
		}
	}
	assert.Len(t, seen, 13)
}

// TestConcurrentDuplicateEmail submits the same email from several browsers at once. Exactly one
// contact may be created.
func TestConcurrentDuplicateEmail(t *testing.T) {
	server := startService(t)
	suffix := unique()
	email := "race." + suffix + "@example.com"

	const browsers = 8
	codes := make([]int, browsers)
	var wg sync.WaitGroup
	for i := 0; i < browsers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			}}
			response, err := client.PostForm(server.URL+"/contacts/new", contactForm(
				"Racer"+suffix, strconv.Itoa(i), fmt.Sprintf("+1 %s %d", suffix, i), email))
			if err != nil {
				return
			}
			response.Body.Close()
			codes[i] = response.StatusCode
		}(i)
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		if code == http.StatusSeeOther {
			created++
		} else {
			assert.Equal(t, http.StatusOK, code)
		}
	}
	assert.Equal(t, 1, created)
	findID(t, newBrowser(t, server), "Racer"+suffix)
}
