package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pankbase/functional/internal/domain/association"
	"github.com/pankbase/functional/internal/platform/metrics"
)

// DefaultFetchTimeout bounds a single call to an external source.
const DefaultFetchTimeout = 30 * time.Second

const maxFetchBody = 32 << 20

// FetchRequest is the body posted to a source's api_url.
type FetchRequest struct {
	DonorIDs  []string `json:"donor_ids"`
	Variables []string `json:"variables"`
	IDField   string   `json:"id_field"`
}

// FetchError reports a failed call to an external source.
type FetchError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("external source %q returned status %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("external source %q: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves donor variables from a registered source.
type Fetcher interface {
	Fetch(ctx context.Context, src *Source, req FetchRequest) (association.ExternalData, error)
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient overrides the client used for source calls.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// HTTPFetcher posts a FetchRequest as JSON and expects a body of the form
// {donor_id: {variable: number|null}}. Nulls are treated as absent.
type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
}

func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{client: &http.Client{}, timeout: DefaultFetchTimeout}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, src *Source, req FetchRequest) (data association.ExternalData, err error) {
	defer func() { metrics.ObserveFetch(src.Name, err) }()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &FetchError{Source: src.Name, Err: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, src.APIURL, bytes.NewReader(payload))
	if err != nil {
		return nil, &FetchError{Source: src.Name, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, &FetchError{Source: src.Name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, &FetchError{Source: src.Name, StatusCode: resp.StatusCode}
	}

	var raw map[string]map[string]*float64
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFetchBody)).Decode(&raw); err != nil {
		return nil, &FetchError{Source: src.Name, Err: fmt.Errorf("decode response: %w", err)}
	}

	data = make(association.ExternalData, len(raw))
	for id, vars := range raw {
		row := make(map[string]float64, len(vars))
		for name, v := range vars {
			if v != nil {
				row[name] = *v
			}
		}
		data[id] = row
	}
	return data, nil
}
