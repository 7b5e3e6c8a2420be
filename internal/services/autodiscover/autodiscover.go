// Package autodiscover fetches mail client configuration documents from the
// well-known autoconfig and Autodiscover locations of a domain.
package autodiscover

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"golang.org/x/sync/errgroup"

	"github.com/tbckr/imapdetect/internal/apperr"
	"github.com/tbckr/imapdetect/internal/imapconf"
	"github.com/tbckr/imapdetect/internal/xmlconfig"
)

// DefaultTimeout bounds a single document fetch.
const DefaultTimeout = 5 * time.Second

// DefaultTemplates are the locations probed for every address, in order.
// %USER% and %DOMAIN% are replaced with the parts of the email address.
var DefaultTemplates = []string{
	"http://autoconfig.%DOMAIN%/mail/config-v1.1.xml?emailaddress=%USER%@%DOMAIN%",
	"http://%DOMAIN%/.well-known/autoconfig/mail/config-v1.1.xml",
	"https://autoconfig-live.mozillamessaging.com/autoconfig/v1.1/%DOMAIN%",
	"https://live.mozillamessaging.com/autoconfig/%DOMAIN%",
	"https://%DOMAIN%/autodiscover/autodiscover.xml",
	"http://%DOMAIN%/autodiscover/autodiscover.xml",
	"https://autodiscover.%DOMAIN%/autodiscover/autodiscover.xml",
	"http://autodiscover.%DOMAIN%/autodiscover/autodiscover.xml",
}

// FetchOptions configures a single document fetch.
type FetchOptions struct {
	// Username and Password answer a Basic challenge. Both are required.
	Username string
	Password string
	// Timeout defaults to the client's timeout when zero.
	Timeout time.Duration
	Headers map[string]string
}

// Client fetches and normalizes autodiscovery documents.
type Client struct {
	client      *req.Client
	logger      *slog.Logger
	templates   []string
	extra       []string
	timeout     time.Duration
	concurrency int
}

// Option configures a Client.
type Option func(*Client)

// WithTemplates appends caller templates after DefaultTemplates.
func WithTemplates(templates ...string) Option {
	return func(c *Client) { c.extra = append(c.extra, templates...) }
}

// WithTimeout sets the per-fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithConcurrency bounds the number of documents fetched at once. By default
// every service URL is fetched at the same time.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// New creates a Client. Caller templates must be non-empty and expand to an
// absolute http or https URL.
func New(client *req.Client, logger *slog.Logger, opts ...Option) (*Client, error) {
	c := &Client{
		client:  client,
		logger:  logger,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, tpl := range c.extra {
		if err := ValidateTemplate(tpl); err != nil {
			return nil, err
		}
	}
	c.templates = make([]string, 0, len(DefaultTemplates)+len(c.extra))
	c.templates = append(c.templates, DefaultTemplates...)
	c.templates = append(c.templates, c.extra...)
	c.extra = nil
	return c, nil
}

// ValidateTemplate reports whether tpl can be used as a discovery location.
func ValidateTemplate(tpl string) error {
	if strings.TrimSpace(tpl) == "" {
		return fmt.Errorf("%w: autodiscover URL template is empty", apperr.ErrInvalidInput)
	}
	u, err := url.Parse(expand(tpl, "user", "example.com"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: autodiscover URL template must be an absolute http(s) URL: %q", apperr.ErrInvalidInput, tpl)
	}
	return nil
}

// Name implements services.Strategy.
func (c *Client) Name() imapconf.Strategy { return imapconf.StrategyAutodiscover }

// Discover implements services.Strategy.
func (c *Client) Discover(ctx context.Context, email string) ([]imapconf.Candidate, error) {
	return c.Detect(ctx, email)
}

// Templates returns a copy of the template list.
func (c *Client) Templates() []string {
	return append([]string(nil), c.templates...)
}

// ServiceURLs expands every template for email.
func (c *Client) ServiceURLs(email string) ([]string, error) {
	user, domain, err := imapconf.SplitAddress(email)
	if err != nil {
		return nil, err
	}
	urls := make([]string, len(c.templates))
	for i, tpl := range c.templates {
		urls[i] = expand(tpl, user, domain)
	}
	return urls, nil
}

func expand(tpl, user, domain string) string {
	return strings.NewReplacer("%USER%", user, "%DOMAIN%", domain).Replace(tpl)
}

// Detect fetches every service URL for email concurrently and returns the
// candidates found, grouped by template order. A URL that fails contributes
// nothing; nil is returned when no URL yields a candidate.
func (c *Client) Detect(ctx context.Context, email string) ([]imapconf.Candidate, error) {
	urls, err := c.ServiceURLs(email)
	if err != nil {
		return nil, err
	}

	found := make([][]imapconf.Candidate, len(urls))
	// No derived context: one failing URL must not cancel the others.
	var g errgroup.Group
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}
	for i, u := range urls {
		g.Go(func() error {
			candidates, err := c.Fetch(ctx, u, FetchOptions{Username: email})
			if err != nil {
				c.logger.Debug("autodiscover fetch failed", "url", u, "error", err)
				return nil
			}
			found[i] = candidates
			return nil
		})
	}
	_ = g.Wait()

	var out []imapconf.Candidate
	for _, candidates := range found {
		out = append(out, candidates...)
	}
	if len(out) == 0 {
		return nil, nil
	}
	c.logger.Debug("autodiscover found candidates", "email", email, "count", len(out))
	return out, nil
}

// Fetch retrieves one document and normalizes it. Only a 200 response is
// parsed; every other status yields nil. A 401 carrying a Basic challenge is
// retried once with credentials, or reported as apperr.ErrAuthRequired when
// opts lacks them.
func (c *Client) Fetch(ctx context.Context, rawURL string, opts FetchOptions) ([]imapconf.Candidate, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	status, header, body, err := c.get(ctx, rawURL, opts.Headers, timeout)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized && hasBasicChallenge(header) {
		if opts.Username == "" || opts.Password == "" {
			return nil, fmt.Errorf("%w: %s", apperr.ErrAuthRequired, rawURL)
		}
		headers := make(map[string]string, len(opts.Headers)+1)
		for k, v := range opts.Headers {
			headers[k] = v
		}
		headers["Authorization"] = basicAuth(opts.Username, opts.Password)

		status, _, body, err = c.get(ctx, rawURL, headers, timeout)
		if err != nil {
			return nil, err
		}
	}

	if status != http.StatusOK {
		c.logger.Debug("autodiscover document unavailable", "url", rawURL, "status", status)
		return nil, nil
	}
	return xmlconfig.Extract(body), nil
}

// get performs one GET bounded by timeout and returns the fully read body.
func (c *Client) get(ctx context.Context, rawURL string, headers map[string]string, timeout time.Duration) (int, http.Header, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(rawURL)
	if err != nil {
		return 0, nil, "", fmt.Errorf("%w: GET %s: %w", apperr.ErrRequestFailed, rawURL, err)
	}
	body, err := resp.ToString()
	if err != nil {
		return 0, nil, "", fmt.Errorf("%w: reading %s: %w", apperr.ErrRequestFailed, rawURL, err)
	}
	return resp.StatusCode, resp.Header, body, nil
}

func hasBasicChallenge(header http.Header) bool {
	for _, v := range header.Values("WWW-Authenticate") {
		if strings.Contains(strings.ToLower(v), "basic") {
			return true
		}
	}
	return false
}

func basicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}
