package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Usage example on the command line:
// > go run main.go --url=http://localhost:8080/contacts --timeout=2m
func main() {
	var url string
	var interval, timeout time.Duration
	cmd := &cobra.Command{
		Use:          "wait-until-available",
		Short:        "Poll the contacts service until it answers with 200 OK",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			return waitFor(ctx, url, interval)
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:8080/contacts", "the URL to poll")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "time between two attempts")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this time, 0 waits forever")
	cobra.CheckErr(cmd.ExecuteContext(context.Background()))
}

func waitFor(ctx context.Context, url string, interval time.Duration) error {
	var totalWaitTime time.Duration
	for {
		status, err := probe(ctx, url)
		if err == nil && status == http.StatusOK {
			fmt.Println(url, "is available")
			return nil
		}
		if err != nil {
			fmt.Println(err)
		} else {
			fmt.Println(url, "answered", status)
		}

		totalWaitTime += interval
		fmt.Printf("Waiting %s\n", totalWaitTime)
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "%s did not become available", url)
		case <-time.After(interval):
		}
	}
}

func probe(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	return res.StatusCode, nil
}
