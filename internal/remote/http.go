package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPRemote talks to a REST datastore exposing one resource per table:
//
//	POST   {base}/{table}          insert
//	PUT    {base}/{table}/{id}     update
//	DELETE {base}/{table}/{id}     delete
//	GET    {base}/{table}          fetch all rows
//
// Failures are classified structurally from the HTTP status:
// 409 → duplicate, 422 → foreign key violation, 5xx and transport-level
// errors (including context deadline) → transient, anything else unknown.
type HTTPRemote struct {
	baseURL string
	apiKey  string
	client  *http.Client
	timeout time.Duration
}

// HTTPConfig configures an HTTPRemote.
type HTTPConfig struct {
	// BaseURL is the datastore root, e.g. "https://api.example.com/v1".
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Timeout bounds every remote call. Zero means 10 seconds.
	Timeout time.Duration
}

// NewHTTP creates an HTTP transport to the remote datastore.
func NewHTTP(cfg HTTPConfig) (*HTTPRemote, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &HTTPRemote{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}, nil
}

// Insert implements Remote.Insert.
func (r *HTTPRemote) Insert(ctx context.Context, table string, rec Record) error {
	return r.send(ctx, http.MethodPost, r.baseURL+"/"+table, table, "insert", rec)
}

// Update implements Remote.Update.
func (r *HTTPRemote) Update(ctx context.Context, table, id string, rec Record) error {
	return r.send(ctx, http.MethodPut, r.baseURL+"/"+table+"/"+url.PathEscape(id), table, "update", rec)
}

// Delete implements Remote.Delete.
func (r *HTTPRemote) Delete(ctx context.Context, table, id string) error {
	return r.send(ctx, http.MethodDelete, r.baseURL+"/"+table+"/"+url.PathEscape(id), table, "delete", nil)
}

// FetchAll implements Remote.FetchAll.
func (r *HTTPRemote) FetchAll(ctx context.Context, table string) ([]json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/"+table, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch request for %s: %w", table, err)
	}
	r.setHeaders(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Table: table, Op: "fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, r.classify(resp, table, "fetch")
	}

	var rows []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode %s rows: %w", table, err)
	}

	return rows, nil
}

// send performs one mutating call and classifies the outcome.
func (r *HTTPRemote) send(ctx context.Context, method, endpoint, table, op string, rec Record) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var body io.Reader
	if rec != nil {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", table, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build %s request for %s: %w", op, table, err)
	}
	r.setHeaders(req)
	if rec != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		// Transport-level failures (DNS, refused, timeout) are all
		// retryable from the queue's point of view.
		return &Error{Kind: KindTransient, Table: table, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	// Deleting an absent row is already the desired end state.
	if op == "delete" && resp.StatusCode == http.StatusNotFound {
		return nil
	}

	return r.classify(resp, table, op)
}

func (r *HTTPRemote) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
}

// classify maps an HTTP error response onto the closed ErrorKind set.
func (r *HTTPRemote) classify(resp *http.Response, table, op string) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	base := fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))

	kind := KindUnknown
	switch {
	case resp.StatusCode == http.StatusConflict:
		kind = KindDuplicate
	case resp.StatusCode == http.StatusUnprocessableEntity:
		kind = KindForeignKeyViolation
	case resp.StatusCode >= 500,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusRequestTimeout:
		kind = KindTransient
	}

	return &Error{Kind: kind, Table: table, Op: op, Err: base}
}

// HTTPOracle probes remote reachability with a cheap HEAD request.
type HTTPOracle struct {
	url    string
	client *http.Client
}

// NewHTTPOracle creates an online oracle probing the given URL.
func NewHTTPOracle(probeURL string, timeout time.Duration) *HTTPOracle {
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	return &HTTPOracle{
		url:    probeURL,
		client: &http.Client{Timeout: timeout},
	}
}

// Online implements Oracle. Any response at all counts as online; only
// transport-level failures count as offline.
func (o *HTTPOracle) Online(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, o.url, nil)
	if err != nil {
		return false
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}
