// Package httpcheck probes HTTP endpoints and classifies their responses.
package httpcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsvigil/vigil/internal/monitor"
)

// Executor runs HTTP health checks. The injected client carries no global
// timeout: the per-check deadline arrives on the context.
type Executor struct {
	client *http.Client
	logger zerolog.Logger
}

// NewExecutor creates an HTTP check executor. A nil client falls back to the
// default client.
func NewExecutor(client *http.Client, logger zerolog.Logger) *Executor {
	if client == nil {
		client = &http.Client{}
	}
	return &Executor{
		client: client,
		logger: logger.With().Str("component", "httpcheck").Logger(),
	}
}

// Execute probes the check's URL and classifies the response. It always
// returns a result; transport problems surface as StatusError.
func (e *Executor) Execute(ctx context.Context, def monitor.CheckDefinition) monitor.CheckResult {
	start := time.Now()

	target := def.HTTP
	if target == nil {
		return monitor.NewCheckResult(def.Name, monitor.StatusError, "check has no http block", 0)
	}

	method := target.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, target.URL, nil)
	if err != nil {
		return monitor.NewCheckResult(def.Name, monitor.StatusError,
			fmt.Sprintf("invalid request: %v", err), time.Since(start).Milliseconds())
	}
	for key, value := range target.Headers {
		req.Header.Set(key, value)
	}

	resp, err := e.client.Do(req)
	durationMs := time.Since(start).Milliseconds()
	if err != nil {
		result := monitor.NewCheckResult(def.Name, monitor.StatusError, transportError(err, durationMs), durationMs)
		return result.WithDetail("url", target.URL).WithDetail("method", method)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	result := classifyResponse(def.Name, target.ExpectedStatusCodes, resp.StatusCode, durationMs)
	e.logger.Debug().
		Str("check", def.Name).
		Str("url", target.URL).
		Int("status_code", resp.StatusCode).
		Int64("duration_ms", durationMs).
		Msg("http check complete")

	return result.
		WithDetail("url", target.URL).
		WithDetail("method", method).
		WithDetail("status_code", strconv.Itoa(resp.StatusCode))
}

// transportError renders a request failure so a timeout reads differently
// from a generic transport problem.
func transportError(err error, durationMs int64) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("request timed out after %dms", durationMs)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Sprintf("request timed out after %dms", durationMs)
	case errors.Is(err, context.Canceled):
		return "check cancelled"
	default:
		return fmt.Sprintf("http request failed: %v", err)
	}
}

// classifyResponse maps a response code onto a status. An empty expected set
// means any 2xx is healthy.
func classifyResponse(name string, expected []int, code int, durationMs int64) monitor.CheckResult {
	var ok bool
	if len(expected) == 0 {
		ok = code >= 200 && code < 300
	} else {
		ok = slices.Contains(expected, code)
	}

	if ok {
		return monitor.NewCheckResult(name, monitor.StatusHealthy,
			fmt.Sprintf("endpoint returned %d", code), durationMs)
	}
	return monitor.NewCheckResult(name, monitor.StatusUnhealthy,
		fmt.Sprintf("unexpected status %d (want %s)", code, describeExpected(expected)), durationMs)
}

func describeExpected(expected []int) string {
	if len(expected) == 0 {
		return "2xx"
	}
	parts := make([]string, len(expected))
	for i, code := range expected {
		parts[i] = strconv.Itoa(code)
	}
	return strings.Join(parts, ", ")
}
