// Package geodata fetches the location taxonomy from the external geo-data
// provider.
//
// The provider returns every location it knows in a single response wrapped
// in a task envelope. Calls are metered, so nothing here retries; callers
// decide when to try again.
package geodata

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/rubiojr/vendorscout/pkg/log"
)

// StatusOK is the envelope status code the provider uses for success.
const StatusOK = 20000

// ErrProviderStatus is wrapped by errors caused by a non-success HTTP or
// envelope status.
var ErrProviderStatus = errors.New("provider returned non-success status")

// Entry is one location as the provider describes it.
type Entry struct {
	Code       int    `json:"location_code"`
	Name       string `json:"location_name"`
	Type       string `json:"location_type"`
	ParentCode *int   `json:"location_code_parent,omitempty"`
	CountryISO string `json:"country_iso_code,omitempty"`
	Geo        *Geo   `json:"geo,omitempty"`
}

type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Source lists every location known to the provider.
type Source interface {
	ListLocations(ctx context.Context) ([]Entry, error)
}

type envelope struct {
	StatusCode    int     `json:"status_code"`
	StatusMessage string  `json:"status_message"`
	Cost          float64 `json:"cost"`
	Tasks         []struct {
		StatusCode    int     `json:"status_code"`
		StatusMessage string  `json:"status_message"`
		Result        []Entry `json:"result"`
	} `json:"tasks"`
}

func (e *envelope) entries() ([]Entry, error) {
	if e.StatusCode != StatusOK {
		return nil, fmt.Errorf("%w: %d %s", ErrProviderStatus, e.StatusCode, e.StatusMessage)
	}
	if len(e.Tasks) == 0 {
		return nil, nil
	}
	task := e.Tasks[0]
	if task.StatusCode != 0 && task.StatusCode != StatusOK {
		return nil, fmt.Errorf("%w: task %d %s", ErrProviderStatus, task.StatusCode, task.StatusMessage)
	}
	return task.Result, nil
}

// Client calls the provider's bulk location listing endpoint.
type Client struct {
	endpoint string
	login    string
	password string
	client   *http.Client
	timeout  time.Duration
	logger   *log.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

// WithTimeout sets the request timeout. It is applied to a copy of the HTTP
// client, so a client passed through WithHTTPClient is never modified.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.timeout = d }
}

// NewClient returns a Client authenticating with HTTP Basic credentials.
func NewClient(endpoint, login, password string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		login:    login,
		password: password,
		client:   &http.Client{Timeout: 2 * time.Minute},
		logger:   log.ForService("geodata"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.client
		hc.Timeout = c.timeout
		c.client = &hc
	}
	return c
}

// ListLocations performs one provider call.
func (c *Client) ListLocations(ctx context.Context) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.login != "" || c.password != "" {
		req.SetBasicAuth(c.login, c.password)
	}
	req.Header.Set("Accept", "application/json")
	// Setting Accept-Encoding turns off net/http's transparent
	// decompression; the body is decoded below.
	req.Header.Set("Accept-Encoding", "gzip")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling provider: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrProviderStatus, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("opening gzip body: %w", err)
		}
		defer func() { _ = gz.Close() }()
		body = gz
	}

	var env envelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding provider response: %w", err)
	}
	entries, err := env.entries()
	if err != nil {
		return nil, err
	}

	c.logger.Infof("received %d locations in %s (cost %.4f)", len(entries), time.Since(start).Round(time.Millisecond), env.Cost)
	return entries, nil
}

// FileSource reads a previously downloaded provider response from disk.
// The file holds either the full envelope or a bare array of entries and may
// be gzip-compressed.
type FileSource struct {
	Path string
}

func (f FileSource) ListLocations(ctx context.Context) ([]Entry, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("opening locations file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return DecodeEntries(file)
}

// DecodeEntries reads an envelope or a bare entry array, transparently
// handling gzip input.
func DecodeEntries(r io.Reader) ([]Entry, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		defer func() { _ = gz.Close() }()
		br = bufio.NewReader(gz)
	}

	first, err := firstNonSpace(br)
	if err != nil {
		return nil, fmt.Errorf("reading locations: %w", err)
	}

	if first == '[' {
		var entries []Entry
		if err := json.NewDecoder(br).Decode(&entries); err != nil {
			return nil, fmt.Errorf("decoding location array: %w", err)
		}
		return entries, nil
	}

	var env envelope
	if err := json.NewDecoder(br).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding location envelope: %w", err)
	}
	return env.entries()
}

func firstNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}
