// Package httpclient provides the HTTP client used to fetch playlists,
// manifests and media. It adds transparent decompression, a response size
// cap, status checking and structured request logging to net/http.
package httpclient

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// Common errors returned by the client.
var (
	ErrResponseTooLarge = errors.New("response body exceeds maximum size limit")
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
)

// Default configuration values.
const (
	DefaultTimeout              = 30 * time.Second
	DefaultMaxResponseSize      = 0 // no limit
	DefaultAcceptEncodingHeader = "gzip, deflate, br"
	DefaultUserAgentHeader      = "tvplay/1.0"
)

// HTTP header constants.
const (
	HeaderAcceptEncoding  = "Accept-Encoding"
	HeaderContentEncoding = "Content-Encoding"
	HeaderUserAgent       = "User-Agent"

	EncodingGzip    = "gzip"
	EncodingDeflate = "deflate"
	EncodingBrotli  = "br"
)

// StatusError is returned by Fetch for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap lets callers match ErrUnexpectedStatus with errors.Is.
func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// Config holds the configuration for the HTTP client.
type Config struct {
	// Timeout is the overall request timeout. Zero disables it, which is what
	// long-running media pulls need.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// Logger is the structured logger for request logging.
	Logger *slog.Logger

	// EnableDecompression enables automatic response decompression.
	EnableDecompression bool

	// MaxResponseSize caps the body size after decompression. 0 means no limit.
	MaxResponseSize int64

	// BaseClient is the underlying http.Client to use. If nil, one is created.
	BaseClient *http.Client
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:             DefaultTimeout,
		UserAgent:           DefaultUserAgentHeader,
		Logger:              slog.Default(),
		EnableDecompression: true,
		MaxResponseSize:     DefaultMaxResponseSize,
	}
}

// Client wraps http.Client with decompression and size limits.
type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new HTTP client with the given configuration.
func New(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgentHeader
	}

	base := cfg.BaseClient
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		config: cfg,
		client: base,
		logger: cfg.Logger,
	}
}

// NewWithDefaults creates a new client with default configuration.
func NewWithDefaults() *Client {
	return New(DefaultConfig())
}

// Do executes an HTTP request. The returned body is decompressed and size
// limited according to the client configuration. Any status code is returned
// as-is; use Fetch for 2xx enforcement.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get(HeaderUserAgent) == "" {
		req.Header.Set(HeaderUserAgent, c.config.UserAgent)
	}
	if c.config.EnableDecompression && req.Header.Get(HeaderAcceptEncoding) == "" {
		req.Header.Set(HeaderAcceptEncoding, DefaultAcceptEncodingHeader)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("http request failed",
			slog.String("method", req.Method),
			slog.String("url", req.URL.String()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	c.logger.Debug("http request completed",
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if c.config.EnableDecompression {
		if body := c.wrapDecompression(resp); body != resp.Body {
			resp.Body = body
			resp.Header.Del(HeaderContentEncoding)
			resp.ContentLength = -1
			resp.Uncompressed = true
		}
	}
	if c.config.MaxResponseSize > 0 {
		resp.Body = newLimitedReader(resp.Body, c.config.MaxResponseSize)
	}
	return resp, nil
}

// Get performs a GET request to the specified URL.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return c.Do(req)
}

// Fetch performs a GET and fails with a *StatusError unless the response is 2xx.
// On success the caller owns the response body.
func (c *Client) Fetch(ctx context.Context, url string) (*http.Response, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// StandardClient returns an *http.Client that routes through this client,
// for libraries that only accept the standard type.
func (c *Client) StandardClient() *http.Client {
	return &http.Client{
		Transport: &clientTransport{client: c},
		Timeout:   c.config.Timeout,
	}
}

type clientTransport struct {
	client *Client
}

// RoundTrip implements http.RoundTripper.
func (t *clientTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.client.Do(req)
}

var _ http.RoundTripper = (*clientTransport)(nil)

func (c *Client) wrapDecompression(resp *http.Response) io.ReadCloser {
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get(HeaderContentEncoding)))
	switch encoding {
	case "":
		return resp.Body
	case EncodingGzip:
		reader, err := gzip.NewReader(resp.Body)
		if err != nil {
			c.logger.Warn("failed to create gzip reader, returning raw body",
				slog.String("error", err.Error()),
			)
			return resp.Body
		}
		return &decompressReader{reader: reader, closer: resp.Body}
	case EncodingDeflate:
		return &decompressReader{reader: flate.NewReader(resp.Body), closer: resp.Body}
	case EncodingBrotli:
		return &decompressReader{reader: brotli.NewReader(resp.Body), closer: resp.Body}
	default:
		c.logger.Debug("unknown content encoding, returning raw body",
			slog.String("encoding", encoding),
		)
		return resp.Body
	}
}

type decompressReader struct {
	reader io.Reader
	closer io.Closer
}

func (d *decompressReader) Read(p []byte) (int, error) {
	return d.reader.Read(p)
}

func (d *decompressReader) Close() error {
	if closer, ok := d.reader.(io.Closer); ok {
		_ = closer.Close()
	}
	return d.closer.Close()
}

// limitedReader returns ErrResponseTooLarge once more than limit bytes are read.
type limitedReader struct {
	rc        io.ReadCloser
	remaining int64
	exceeded  bool
}

func newLimitedReader(rc io.ReadCloser, limit int64) *limitedReader {
	return &limitedReader{rc: rc, remaining: limit}
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.exceeded {
		return 0, ErrResponseTooLarge
	}
	n, err := l.rc.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		l.exceeded = true
		return n, ErrResponseTooLarge
	}
	return n, err
}

func (l *limitedReader) Close() error {
	return l.rc.Close()
}
