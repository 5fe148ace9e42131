package brandapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/FrenchMajesty/brand-identifier/internal/retry"
	"go.uber.org/zap"
)

// DefaultBaseURL is the hosted brand identifier service
const DefaultBaseURL = "https://clasify-text-from-product-tmb.onrender.com"

// ProcessTextPath is the classification endpoint, relative to the base URL
const ProcessTextPath = "/process-text/"

// DefaultDumpDir is where request/response pairs are written when dumping is enabled
const DefaultDumpDir = "debug_brand_requests"

// Client is a minimal client for the brand identifier API
type Client struct {
	BaseURL      string
	HTTPClient   *http.Client
	RetryConfig  retry.Config
	DumpRequests bool
	DumpDir      string

	logger *zap.Logger
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. A nil client is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

// WithTimeout bounds every request. Zero means wait for as long as the server takes.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		var hc http.Client
		if c.HTTPClient != nil {
			hc = *c.HTTPClient
		}
		hc.Timeout = d
		c.HTTPClient = &hc
	}
}

// WithRetryConfig sets the retry policy
func WithRetryConfig(cfg retry.Config) Option {
	return func(c *Client) { c.RetryConfig = cfg }
}

// WithDumpRequests writes every request/response pair under dir
func WithDumpRequests(dir string) Option {
	return func(c *Client) {
		c.DumpRequests = true
		if dir != "" {
			c.DumpDir = dir
		}
	}
}

// WithLogger sets the logger used for retries and dump failures
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for the service at baseURL. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		HTTPClient:  &http.Client{},
		RetryConfig: retry.DefaultConfig(),
		DumpDir:     DefaultDumpDir,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Endpoint returns the full classification URL
func (c *Client) Endpoint() string {
	return c.BaseURL + ProcessTextPath
}

// ProcessTextRequest is the request body for the process-text endpoint
type ProcessTextRequest struct {
	Text string `json:"text"`
}

// ProcessTextResponse is the response body from the process-text endpoint
type ProcessTextResponse struct {
	TextRequest string  `json:"text_request,omitempty"`
	TextResult  *string `json:"text_result"`
}

// APIError is returned for non-2xx responses and for bodies that cannot be used
type APIError struct {
	Message    string          `json:"message"`
	StatusCode int             `json:"status_code,omitempty"`
	RawBody    json.RawMessage `json:"raw_body,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// GetRawResponseBody returns the raw response body if available
func (e *APIError) GetRawResponseBody() json.RawMessage {
	return e.RawBody
}
