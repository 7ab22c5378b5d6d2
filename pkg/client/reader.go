package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agentstation/statuspage/pkg/errors"
	"github.com/agentstation/statuspage/pkg/status"
)

const defaultHTTPTimeout = 10 * time.Second

// StatusReader reads the public status endpoint.
type StatusReader struct {
	baseURL string
	http    *http.Client
}

// NewStatusReader creates a reader for the server at baseURL. A nil
// httpClient uses a client with a 10s timeout.
func NewStatusReader(baseURL string, httpClient *http.Client) *StatusReader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &StatusReader{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *apiError       `json:"error"`
}

// PublicStatus fetches GET /api/public/status?org=<slug>. An unknown
// organization is a NotFoundError.
func (s *StatusReader) PublicStatus(ctx context.Context, slug string) (*status.PublicStatus, error) {
	endpoint := s.baseURL + "/api/public/status?org=" + url.QueryEscape(slug)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.WrapResource("build", "request", endpoint, err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, errors.WrapResource("get", "public status", slug, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, errors.WrapParse("json", endpoint, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.NewNotFoundError("organization", slug)
	case resp.StatusCode != http.StatusOK:
		msg := resp.Status
		if env.Error != nil {
			msg = env.Error.Message
		}
		return nil, errors.NewResourceError("get", "public status", slug, fmt.Errorf("%s", msg))
	}

	var ps status.PublicStatus
	if err := json.Unmarshal(env.Data, &ps); err != nil {
		return nil, errors.WrapParse("json", endpoint, err)
	}
	return &ps, nil
}
