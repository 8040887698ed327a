package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const usage = `Usage: ratesctl [flags] <command> [args]

Commands:
  health              show engine health
  refresh             run a refresh cycle now
  breakers            list circuit breakers
  reset <provider>    reset one provider's circuit breaker
  fallback            list fallback cache entries
  providers           list provider health
  load                run a load test against the rates endpoint

Flags:
`

// client issues admin requests against one service instance
type client struct {
	baseURL string
	http    *http.Client
	out     io.Writer
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "ratesctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("ratesctl", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		flags.PrintDefaults()
	}

	addr := flags.String("addr", "http://localhost:8081", "Service base URL")
	timeout := flags.Duration("timeout", 2*time.Minute, "Request timeout")
	var load loadConfig
	flags.IntVar(&load.ConcurrentUsers, "users", 10, "load: number of concurrent users")
	flags.IntVar(&load.RequestsPerUser, "requests", 100, "load: requests per user")
	flags.DurationVar(&load.ThinkTime, "think", 100*time.Millisecond, "load: pause between requests")
	flags.StringVar(&load.Path, "path", "/api/v1/rates", "load: path to request")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return errors.New("missing command")
	}

	c := &client{
		baseURL: strings.TrimRight(*addr, "/"),
		http:    &http.Client{Timeout: *timeout},
		out:     stdout,
	}

	switch command := flags.Arg(0); command {
	case "health":
		return c.call(ctx, http.MethodGet, "/health")
	case "refresh":
		return c.call(ctx, http.MethodPost, "/api/v1/admin/refresh")
	case "breakers":
		return c.call(ctx, http.MethodGet, "/api/v1/admin/circuit-breakers")
	case "reset":
		if flags.NArg() < 2 {
			return errors.New("reset requires a provider name")
		}
		return c.call(ctx, http.MethodPost, "/api/v1/admin/circuit-breakers/"+url.PathEscape(flags.Arg(1))+"/reset")
	case "fallback":
		return c.call(ctx, http.MethodGet, "/api/v1/admin/fallback-rates")
	case "providers":
		return c.call(ctx, http.MethodGet, "/api/v1/admin/providers")
	case "load":
		load.URL = c.baseURL + load.Path
		load.Timeout = *timeout
		summary := runLoadTest(ctx, load)
		printSummary(stdout, summary)
		return nil
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// call performs one request and pretty-prints the JSON response.
// Non-2xx responses are printed and returned as an error, except a 503 health report.
func (c *client) call(ctx context.Context, method, path string) error {
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	request.Header.Set("Accept", "application/json")

	response, err := c.http.Do(request)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var payload interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		fmt.Fprintln(c.out, string(bytes.TrimSpace(body)))
	} else {
		pretty, _ := json.MarshalIndent(payload, "", "  ")
		fmt.Fprintln(c.out, string(pretty))
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return nil
	}
	if path == "/health" && response.StatusCode == http.StatusServiceUnavailable {
		return errors.New("service unhealthy")
	}
	return fmt.Errorf("%s %s returned %s", method, path, response.Status)
}
