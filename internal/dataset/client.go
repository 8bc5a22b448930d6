// Package dataset fetches the marker document served next to the host page.
package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/markermap/markermap/pkg/core"
	"github.com/rs/zerolog"
)

// DefaultPath is the dataset location relative to the host page.
const DefaultPath = "../markers_data.json"

// ErrNoNetworkBase is the cause when the host page was not loaded over HTTP,
// so there is nothing to resolve the dataset path against.
var ErrNoNetworkBase = errors.New("page is not served over http(s)")

// ErrNotArray is returned when the dataset document is not a JSON array.
var ErrNotArray = errors.New("dataset is not a JSON array")

// LoadError is returned for any failure to fetch or decode the dataset.
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// UserMessage explains the failure and the usual remedy to the person
// looking at the page.
func (e *LoadError) UserMessage() string {
	return fmt.Sprintf("Failed to load %s. Please ensure the file exists and is accessible. "+
		"This may happen if you are opening the HTML file directly (file://). "+
		"Try serving the files through a local web server (e.g. \"markermap serve --dir .\"). Error: %v",
		e.URL, e.Err)
}

// Client loads marker datasets over HTTP.
type Client struct {
	path       string
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a dataset client. An empty path uses DefaultPath.
func New(path string, timeout time.Duration, logger zerolog.Logger) *Client {
	if path == "" {
		path = DefaultPath
	}
	return &Client{
		path:       path,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// ResolveURL resolves the dataset path against the page URL.
func ResolveURL(pageURL, path string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return "", ErrNoNetworkBase
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid dataset path: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Fetch downloads and decodes the dataset belonging to the page at pageURL.
//
// Records are decoded optimistically: a field of the wrong JSON type is left
// at its zero value and logged, the remaining records and fields are kept. A
// document that is not an array is a LoadError.
func (c *Client) Fetch(ctx context.Context, pageURL string) ([]core.Marker, error) {
	target, err := ResolveURL(pageURL, c.path)
	if err != nil {
		return nil, &LoadError{URL: c.path, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &LoadError{URL: target, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &LoadError{URL: target, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &LoadError{URL: target, Err: fmt.Errorf("network response was not ok: %s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &LoadError{URL: target, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	markers, err := c.decode(target, body)
	if err != nil {
		return nil, &LoadError{URL: target, Err: err}
	}

	c.logger.Debug().Str("url", target).Int("markers", len(markers)).Msg("Dataset loaded")
	return markers, nil
}

// decode reads the dataset document. The top level must be an array; a
// record field of the wrong type keeps its zero value and is logged.
func (c *Client) decode(target string, body []byte) ([]core.Marker, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] != '[' {
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("invalid JSON: %w", json.Unmarshal(trimmed, new(any)))
		}
		return nil, ErrNotArray
	}

	var records []record
	if err := json.Unmarshal(trimmed, &records); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) || typeErr.Field == "" {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		c.logger.Warn().Err(err).Str("url", target).Msg("Dataset has fields of unexpected type, using zero values")
	}

	markers := make([]core.Marker, len(records))
	for i, r := range records {
		markers[i] = r.marker()
	}
	return markers, nil
}
