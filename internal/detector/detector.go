// Package detector runs the discovery pipeline for an email address:
// autodiscovery documents first, then DNS SRV records, then hostname
// guessing, and finally verifies the candidates one at a time.
package detector

import (
	"context"
	"log/slog"
	"time"

	"github.com/imroc/req/v3"
	"github.com/oklog/ulid/v2"

	"github.com/tbckr/imapdetect/internal/imapconf"
	"github.com/tbckr/imapdetect/internal/services"
	"github.com/tbckr/imapdetect/internal/services/autodiscover"
	"github.com/tbckr/imapdetect/internal/services/guess"
	"github.com/tbckr/imapdetect/internal/services/srv"
	"github.com/tbckr/imapdetect/internal/verify"
)

// DefaultPassword is presented when the caller supplies none. A wrong
// password is enough to confirm settings, so any value will do.
const DefaultPassword = "hello"

// Verifier confirms a single candidate. *verify.Verifier satisfies it.
type Verifier interface {
	Verify(ctx context.Context, creds verify.Credentials, c imapconf.Candidate) *imapconf.Candidate
}

// Detector wires the discovery strategies and the verifier together.
type Detector struct {
	client          *req.Client
	resolver        services.DNSResolverInterface
	verifier        Verifier
	logger          *slog.Logger
	urls            []string
	httpTimeout     time.Duration
	concurrency     int
	defaultPassword string
	table           guess.Table
}

// Option configures a Detector.
type Option func(*Detector)

// WithAutodiscoverURLs adds caller templates after the built-in ones.
func WithAutodiscoverURLs(urls ...string) Option {
	return func(d *Detector) { d.urls = append(d.urls, urls...) }
}

// WithHTTPTimeout bounds each autodiscovery fetch.
func WithHTTPTimeout(t time.Duration) Option {
	return func(d *Detector) { d.httpTimeout = t }
}

// WithConcurrency bounds the number of autodiscovery fetches in flight. Zero
// fetches every template at once.
func WithConcurrency(n int) Option {
	return func(d *Detector) { d.concurrency = n }
}

// WithDefaultPassword replaces DefaultPassword.
func WithDefaultPassword(p string) Option {
	return func(d *Detector) {
		if p != "" {
			d.defaultPassword = p
		}
	}
}

// WithAutorouteTable replaces the embedded exchanger table.
func WithAutorouteTable(t guess.Table) Option {
	return func(d *Detector) { d.table = t }
}

// New creates a Detector. Caller autodiscovery templates are validated here
// so a bad template fails at construction rather than on first use.
func New(client *req.Client, resolver services.DNSResolverInterface, verifier Verifier, logger *slog.Logger, opts ...Option) (*Detector, error) {
	d := &Detector{
		client:          client,
		resolver:        resolver,
		verifier:        verifier,
		logger:          logger,
		httpTimeout:     autodiscover.DefaultTimeout,
		defaultPassword: DefaultPassword,
	}
	for _, opt := range opts {
		opt(d)
	}
	for _, u := range d.urls {
		if err := autodiscover.ValidateTemplate(u); err != nil {
			return nil, err
		}
	}
	if d.table == nil {
		table, err := guess.LoadTable()
		if err != nil {
			return nil, err
		}
		d.table = table
	}
	return d, nil
}

// Candidates returns the candidate list of the first strategy that produces
// one, before any verification. An empty result means no strategy found
// anything. Only a malformed address is reported as an error.
func (d *Detector) Candidates(ctx context.Context, email string) (*imapconf.Result, error) {
	return d.candidates(ctx, d.runLogger(email), email)
}

// Detect returns the first candidate that verifies, trying them in order.
// An empty password is replaced by the default one. It returns nil, nil when
// no candidate verifies.
func (d *Detector) Detect(ctx context.Context, email, password string) (*imapconf.Candidate, error) {
	res, err := d.Run(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return res.Verified, nil
}

// Run performs discovery and verification and returns both the candidate
// list and the verified candidate, if any.
func (d *Detector) Run(ctx context.Context, email, password string) (*imapconf.Result, error) {
	logger := d.runLogger(email)
	res, err := d.candidates(ctx, logger, email)
	if err != nil {
		return nil, err
	}
	if password == "" {
		password = d.defaultPassword
	}
	creds := verify.Credentials{Username: email, Password: password}

	for _, c := range res.Candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if got := d.verifier.Verify(ctx, creds, c); got != nil {
			logger.Info("imap settings verified", "host", got.Host, "port", got.Port, "secure", got.Secure)
			res.Verified = got
			return res, nil
		}
	}
	logger.Info("no candidate verified", "tried", len(res.Candidates))
	return res, nil
}

func (d *Detector) runLogger(email string) *slog.Logger {
	return d.logger.With("run", ulid.Make().String(), "email", email)
}

func (d *Detector) candidates(ctx context.Context, logger *slog.Logger, email string) (*imapconf.Result, error) {
	_, domain, err := imapconf.SplitAddress(email)
	if err != nil {
		return nil, err
	}

	srvService := srv.NewService(d.resolver, logger)
	templates := append([]string(nil), d.urls...)
	for _, u := range srvService.DiscoverAutoconfigEndpoints(ctx, domain) {
		if err := autodiscover.ValidateTemplate(u); err != nil {
			logger.Debug("skipping autodiscover SRV endpoint", "url", u, "error", err)
			continue
		}
		templates = append(templates, u)
	}

	ad, err := autodiscover.New(d.client, logger,
		autodiscover.WithTemplates(templates...),
		autodiscover.WithTimeout(d.httpTimeout),
		autodiscover.WithConcurrency(d.concurrency),
	)
	if err != nil {
		return nil, err
	}
	logger.Debug("autodiscover templates", "count", len(ad.Templates()), "templates", ad.Templates())

	strategies := []services.Strategy{
		ad,
		srvService,
		guess.NewService(d.resolver, logger, d.table),
	}
	for _, s := range strategies {
		found, err := s.Discover(ctx, email)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			logger.Debug("strategy produced candidates", "strategy", s.Name(), "count", len(found))
			return &imapconf.Result{Input: email, Strategy: s.Name(), Candidates: found}, nil
		}
		logger.Debug("strategy found nothing", "strategy", s.Name())
	}
	return &imapconf.Result{Input: email}, nil
}
