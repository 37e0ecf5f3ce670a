// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/search-agent/pkg/types"
)

// maxErrorBody bounds how much of a failed response body is kept in a
// StatusError.
const maxErrorBody = 512

// StatusError reports a non-success HTTP status from an upstream service.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned HTTP %d", e.Service, e.Code)
	}
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Service, e.Code, e.Body)
}

// CheckStatus returns a *StatusError when resp is not 2xx. The body is read
// (up to a small limit) but not closed; callers keep their own defer.
func CheckStatus(service string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Service: service,
		Code:    resp.StatusCode,
		Body:    strings.TrimSpace(string(body)),
	}
}

// NewClient returns an *http.Client with the configured timeout.
func NewClient(cfg types.HTTPConfig) *http.Client {
	cfg = cfg.WithDefaults()
	return &http.Client{Timeout: cfg.Timeout}
}
