package datastore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"nodegraph_poc/pkg"
	"nodegraph_poc/src/model"

	"github.com/bytedance/sonic"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected response status")
	ErrDecode           = errors.New("response body is not a JSON array")
)

// Fetcher retrieves the current list of a resource
type Fetcher interface {
	FetchList(ctx context.Context, resource pkg.Resource) ([]pkg.Record, error)
}

// HTTPFetcher GETs resource lists from the backend
type HTTPFetcher struct {
	client *http.Client
	config model.FetchConfig
}

// NewHTTPFetcher creates a fetcher for the given endpoints.
// No headers, query parameters or credentials are ever sent.
func NewHTTPFetcher(config model.FetchConfig) *HTTPFetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 100
	transport.MaxIdleConnsPerHost = 10
	transport.IdleConnTimeout = 90 * time.Second

	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		config: config,
	}
}

// URL returns the endpoint used for a resource
func (f *HTTPFetcher) URL(resource pkg.Resource) string {
	return f.config.URL(resource)
}

// FetchList performs the GET and decodes the body as a JSON array
func (f *HTTPFetcher) FetchList(ctx context.Context, resource pkg.Resource) ([]pkg.Record, error) {
	url := f.config.URL(resource)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: GET %s returned %s", ErrUnexpectedStatus, url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	records, err := DecodeList(body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	return records, nil
}

// CloseIdleConnections releases pooled connections
func (f *HTTPFetcher) CloseIdleConnections() {
	f.client.CloseIdleConnections()
}

// DecodeList parses a JSON array into opaque records. A null body is an
// empty list; anything that is not an array is ErrDecode.
func DecodeList(body []byte) ([]pkg.Record, error) {
	var records []pkg.Record
	if err := sonic.ConfigStd.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if records == nil {
		records = []pkg.Record{}
	}
	return records, nil
}

// EncodeList is the inverse of DecodeList
func EncodeList(records []pkg.Record) ([]byte, error) {
	if records == nil {
		records = []pkg.Record{}
	}
	data, err := sonic.ConfigStd.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal records: %w", err)
	}
	return data, nil
}
