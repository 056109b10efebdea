package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/pkg/model"
)

var rowID = regexp.MustCompile(`id="contact-(\d+)"`)

// client drives the contacts service with the same form posts a browser sends.
type client struct {
	server string
	http   *http.Client
	run    string
}

// Usage example on the command line:
// > go run main.go --server=http://localhost:8080 --sizes=100,500,1000
func main() {
	var server string
	var sizes []int
	cmd := &cobra.Command{
		Use:          "client",
		Short:        "Measure the average latency of the contacts service endpoints",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &client{
				server: strings.TrimSuffix(server, "/"),
				http: &http.Client{
					Timeout: 30 * time.Second,
					CheckRedirect: func(*http.Request, []*http.Request) error {
						return http.ErrUseLastResponse
					},
				},
				run: uuid.NewString()[:8],
			}
			return c.benchmark(cmd.Context(), sizes)
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "base URL of the contacts service")
	cmd.Flags().IntSliceVar(&sizes, "sizes", []int{100, 500, 1000, 5000}, "number of contacts per round")
	cobra.CheckErr(cmd.ExecuteContext(context.Background()))
}

func (c *client) benchmark(ctx context.Context, sizes []int) error {
	fmt.Println()
	fmt.Println("  Elements    CREATE      EDIT      SHOW  VALIDATE    DELETE")
	fmt.Println("-------------------------------------------------------------")
	for round, loops := range sizes {
		firstID, err := c.createMarker(ctx, round)
		if err != nil {
			return err
		}
		fmt.Printf("%10d", loops)

		var duration time.Duration
		for i := 0; i < loops; i++ {
			d, err := c.send(ctx, http.MethodPost, "/contacts/new", c.form(round, i, "Antonius"))
			if err != nil {
				return err
			}
			duration += d
		}
		fmt.Printf("%10d", duration.Microseconds()/int64(loops))

		steps := []func(id int64, i int) (time.Duration, error){
			func(id int64, i int) (time.Duration, error) {
				return c.send(ctx, http.MethodPost, fmt.Sprintf("/contacts/%d/edit", id), c.form(round, i, "Marcus"))
			},
			func(id int64, i int) (time.Duration, error) {
				return c.send(ctx, http.MethodGet, fmt.Sprintf("/contacts/%d", id), nil)
			},
			func(id int64, i int) (time.Duration, error) {
				query := url.Values{
					model.ParamField:     {model.ValidateEmail},
					model.ParamValue:     {c.email(round, i)},
					model.ParamExcludeID: {strconv.FormatInt(id, 10)},
				}
				return c.send(ctx, http.MethodGet, "/contacts/validate?"+query.Encode(), nil)
			},
			func(id int64, i int) (time.Duration, error) {
				return c.send(ctx, http.MethodDelete, fmt.Sprintf("/contacts/%d", id), nil)
			},
		}
		for _, step := range steps {
			if err := callInLoop(firstID, loops, step); err != nil {
				return err
			}
		}
		if _, err := c.send(ctx, http.MethodDelete, fmt.Sprintf("/contacts/%d", firstID), nil); err != nil {
			return err
		}
		fmt.Println()
	}
	return nil
}

// createMarker creates a contact in front of the round's contacts and looks up its id. The
// contacts of the round are assumed to get the ids that follow.
func (c *client) createMarker(ctx context.Context, round int) (int64, error) {
	marker := fmt.Sprintf("Marker%s%d", c.run, round)
	form := url.Values{
		model.FieldFirstName:   {marker},
		model.FieldLastName:    {"Benchmark"},
		model.FieldPhoneNumber: {fmt.Sprintf("+39 %s %d 000000", c.run, round)},
		model.FieldEmail:       {strings.ToLower(marker) + "@example.com"},
	}
	if _, err := c.send(ctx, http.MethodPost, "/contacts/new", form); err != nil {
		return 0, err
	}
	body, _, err := c.request(ctx, http.MethodGet, "/contacts?"+url.Values{model.ParamQuery: {marker}}.Encode(), nil)
	if err != nil {
		return 0, err
	}
	match := rowID.FindSubmatch(body)
	if match == nil {
		return 0, errors.Errorf("marker contact %s was not created", marker)
	}
	return strconv.ParseInt(string(match[1]), 10, 64)
}

func (c *client) email(round, i int) string {
	return fmt.Sprintf("marcus.%s.%d.%d@example.com", c.run, round, i)
}

func (c *client) form(round, i int, lastName string) url.Values {
	return url.Values{
		model.FieldFirstName:   {"Marcus"},
		model.FieldLastName:    {lastName},
		model.FieldPhoneNumber: {fmt.Sprintf("+39 %s %d %06d", c.run, round, i+1)},
		model.FieldEmail:       {c.email(round, i)},
	}
}

func callInLoop(firstID int64, loops int, f func(id int64, i int) (time.Duration, error)) error {
	order := rand.Perm(loops)
	var duration time.Duration
	for _, i := range order {
		d, err := f(firstID+1+int64(i), i)
		if err != nil {
			return err
		}
		duration += d
	}
	fmt.Printf("%10d", duration.Microseconds()/int64(loops))
	return nil
}

func (c *client) send(ctx context.Context, method, path string, form url.Values) (time.Duration, error) {
	_, duration, err := c.request(ctx, method, path, form)
	return duration, err
}

func (c *client) request(ctx context.Context, method, path string, form url.Values) ([]byte, time.Duration, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.server+path, body)
	if err != nil {
		return nil, 0, errors.Wrap(err, "could not create request")
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	before := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, "error making http request")
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, 0, errors.Wrap(err, "could not read response body")
	}
	duration := time.Since(before)
	if res.StatusCode >= http.StatusBadRequest {
		return resBody, duration, errors.Errorf("%s %s answered %s", method, path, res.Status)
	}
	return resBody, duration, nil
}
