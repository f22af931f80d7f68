package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPLookup queries a remote reference-data service (e.g. the supervisory
// entity registry). Non-2xx responses other than 404 are errors, so the
// engine reports "lookup unavailable" instead of guessing.
type HTTPLookup struct {
	base   string
	client *http.Client
}

func NewHTTP(base string, timeout time.Duration) *HTTPLookup {
	return &HTTPLookup{
		base:   base,
		client: &http.Client{Timeout: timeout},
	}
}

func (l *HTTPLookup) endpoint(catalogName, code string) string {
	return fmt.Sprintf("%s/catalogs/%s/codes/%s",
		l.base, url.PathEscape(catalogName), url.PathEscape(code))
}

func (l *HTTPLookup) Exists(ctx context.Context, catalogName, code string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint(catalogName, code), nil)
	if err != nil {
		return false, fmt.Errorf("build lookup request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("lookup %s/%s: %w", catalogName, code, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("lookup %s/%s: unexpected status %d", catalogName, code, resp.StatusCode)
	}
}

func (l *HTTPLookup) Metadata(ctx context.Context, catalogName, code string) (Fields, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint(catalogName, code), nil)
	if err != nil {
		return nil, fmt.Errorf("build lookup request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup %s/%s: %w", catalogName, code, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var f Fields
		if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
			return nil, fmt.Errorf("decode lookup response: %w", err)
		}
		return f, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("lookup %s/%s: unexpected status %d", catalogName, code, resp.StatusCode)
	}
}
