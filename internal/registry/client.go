// Package registry implements typed HTTP clients for the two external
// registries the orchestrator depends on: the spot registry (get-by-id and
// set-status) and the vehicle registry (get-by-id).  Every outbound call
// forwards the inbound caller's bearer token taken from the request
// context (see the auth package), so downstream services authorize the
// original caller rather than a service identity.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/iliyamo/parking-reservation/internal/auth"
	"github.com/iliyamo/parking-reservation/internal/model"
)

// client is the shared plumbing for both registries.  Calls are bounded by
// the configured timeout; a timeout or transport failure surfaces as a
// model.RemoteUnavailableError and no local write follows it.
type client struct {
	service string // human-readable service name used in errors
	base    string // base URL without trailing slash
	http    *http.Client
}

func newClient(service, base string, timeout time.Duration) client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return client{
		service: service,
		base:    strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// do issues the request, relaying the caller's bearer token when present,
// and decodes a 2xx JSON body into out.  Non-2xx statuses map onto the
// shared error taxonomy: 404 -> NotFoundError, 401/403 -> UnauthorizedError,
// anything else -> RemoteUnavailableError.
func (c client) do(ctx context.Context, method, path string, entity string, id uint64, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return &model.RemoteUnavailableError{Service: c.service, Cause: err}
	}
	if tok := auth.TokenFrom(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &model.RemoteUnavailableError{Service: c.service, Cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &model.RemoteUnavailableError{Service: c.service, Cause: err}
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return &model.NotFoundError{Entity: entity, ID: id}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &model.UnauthorizedError{Service: c.service}
	default:
		return &model.RemoteUnavailableError{
			Service: c.service,
			Cause:   fmt.Errorf("unexpected status %s", resp.Status),
		}
	}
}
