// Package api talks to the HOTOSM raw-data extraction API: it submits a
// compiled snapshot request, polls the resulting task to completion and
// downloads the exported archive.
package api

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"

	"github.com/guspan-tanadi/osm-rawdatabyhotosm/logging"
	"github.com/guspan-tanadi/osm-rawdatabyhotosm/query"
)

var log = logging.NewLogger("RawDataAPI")

const (
	// EnvBaseURL overrides the API endpoint.
	EnvBaseURL     = "UNDERPASS_API_URL"
	DefaultBaseURL = "https://api-prod.raw-data.hotosm.org/v1"

	// exportEntry is the fixed name of the GeoJSON entry inside the
	// downloaded archive.
	exportEntry = "Export.geojson"
)

// APIError is a non-2xx response whose JSON body could be decoded. It is
// returned through the error channel so batch callers can inspect the
// status code and detail and continue.
type APIError struct {
	StatusCode int
	Body       map[string]interface{}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("raw data API request failed with status %d: %v", e.StatusCode, e.Body)
}

// ErrPollTimeout is returned when a task does not reach SUCCESS within the
// polling budget.
var ErrPollTimeout = errors.New("extraction task did not finish within the polling budget")

// Client is the remote extraction backend. It owns its HTTP session; run
// one Client per goroutine for parallel extractions. A poll can block the
// caller for up to ten minutes.
type Client struct {
	baseURL    string
	httpClient *http.Client
	config     *query.Config
	extra      map[string]interface{}

	// injectable for tests; the poll loop never reads the wall clock
	// directly
	sleep func(time.Duration)
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSleep replaces the poll loop's sleep function.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithExtraParams merges additional request options (fileName, outputType,
// bind_zip, ...) into every snapshot request body.
func WithExtraParams(extra map[string]interface{}) Option {
	return func(c *Client) { c.extra = extra }
}

// New builds a client for the given endpoint. An empty baseURL falls back
// to $UNDERPASS_API_URL, then to the production endpoint.
func New(baseURL string, qc *query.Config, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = os.Getenv(EnvBaseURL)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		config:     qc,
		sleep:      time.Sleep,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Extract compiles the configuration into a snapshot request and runs it
// to completion. customSQL has no meaning against the remote API and is
// ignored.
func (c *Client) Extract(boundary orb.Geometry, customSQL string, allGeom bool) (*geojson.FeatureCollection, error) {
	body, err := c.config.RemoteRequest(boundary, allGeom, c.extra)
	if err != nil {
		return nil, err
	}
	return c.Run(body)
}

// ExtractURL submits the request in direct-streaming mode (bind_zip off)
// and returns the download URL of the finished export instead of fetching
// it.
func (c *Client) ExtractURL(boundary orb.Geometry, allGeom bool) (string, error) {
	extra := map[string]interface{}{"bind_zip": false}
	for k, v := range c.extra {
		extra[k] = v
	}
	body, err := c.config.RemoteRequest(boundary, allGeom, extra)
	if err != nil {
		return "", err
	}
	taskID, err := c.submit(body)
	if err != nil {
		return "", err
	}
	return c.poll(taskID)
}

// Run drives the submit/poll/download state machine for an already
// compiled request body.
func (c *Client) Run(body []byte) (*geojson.FeatureCollection, error) {
	taskID, err := c.submit(body)
	if err != nil {
		return nil, err
	}
	downloadURL, err := c.poll(taskID)
	if err != nil {
		return nil, err
	}
	return c.download(downloadURL)
}

func (c *Client) submit(body []byte) (string, error) {
	url := c.baseURL + "/snapshot/"
	resp, err := c.post(url, body)
	if err != nil {
		log.Errorf("failed to make request to raw data API: %v", err)
		return "", errors.Wrap(err, "submitting snapshot request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "reading snapshot response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(data, &apiErr.Body) == nil && len(apiErr.Body) > 0 {
			log.Errorf("failed to get extract from raw data API: %v", apiErr)
			return "", apiErr
		}
		return "", errors.Errorf("snapshot request failed with status %d", resp.StatusCode)
	}

	var payload struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", errors.Wrap(err, "decoding snapshot response")
	}
	if payload.TaskID == "" {
		return "", errors.New("snapshot response carries no task_id")
	}
	return payload.TaskID, nil
}

func (c *Client) post(url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

func (c *Client) get(url string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.httpClient.Do(req)
}

// download fetches the finished archive, extracts the export entry to a
// temporary file, parses it and removes the file again.
func (c *Client) download(url string) (*geojson.FeatureCollection, error) {
	resp, err := c.get(url)
	if err != nil {
		return nil, errors.Wrap(err, "downloading export archive")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading export archive")
	}
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(err, "opening export archive")
	}

	entry, err := archive.Open(exportEntry)
	if err != nil {
		return nil, errors.Wrapf(err, "archive entry %s", exportEntry)
	}
	defer entry.Close()

	tmp, err := os.CreateTemp("", "Export-*.geojson")
	if err != nil {
		return nil, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, entry); err != nil {
		tmp.Close()
		return nil, errors.Wrap(err, "extracting export")
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	exported, err := os.ReadFile(tmpName)
	if err != nil {
		return nil, err
	}
	collection, err := geojson.UnmarshalFeatureCollection(exported)
	if err != nil {
		return nil, errors.Wrap(err, "parsing export")
	}
	return collection, nil
}
