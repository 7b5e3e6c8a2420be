package cli

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/imroc/req/v3"
	"github.com/spf13/cobra"

	"github.com/tbckr/imapdetect/internal/appdir"
	"github.com/tbckr/imapdetect/internal/config"
	"github.com/tbckr/imapdetect/internal/credential"
	"github.com/tbckr/imapdetect/internal/detector"
	"github.com/tbckr/imapdetect/internal/httpclient"
	"github.com/tbckr/imapdetect/internal/output"
	"github.com/tbckr/imapdetect/internal/ratelimit"
	"github.com/tbckr/imapdetect/internal/resolver"
	"github.com/tbckr/imapdetect/internal/services"
	"github.com/tbckr/imapdetect/internal/services/guess"
	"github.com/tbckr/imapdetect/internal/verify"
)

// deps holds fully-resolved runtime dependencies for a subcommand. The
// network-facing fields are built lazily; tests set them up front.
type deps struct {
	logger *slog.Logger
	cfg    *config.Config
	format output.Format

	client   *req.Client
	resolver services.DNSResolverInterface
	verifier detector.Verifier
	store    *credential.Store
}

// buildDeps resolves config, logger and output format.
func buildDeps(cmd *cobra.Command, stderr io.Writer) (*deps, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	return &deps{cfg: cfg, logger: logger, format: output.Format(cfg.Output)}, nil
}

// httpClient returns the autodiscovery client, configured with the proxy,
// user-agent, verbosity and rate limit from the resolved config.
func (d *deps) httpClient() (*req.Client, error) {
	if d.client != nil {
		return d.client, nil
	}
	client, err := httpclient.New(d.cfg.Proxy, d.cfg.UserAgent, d.logger, d.cfg.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP client: %w", err)
	}
	burst := int(math.Ceil(d.cfg.RateLimit))
	httpclient.AttachRateLimit(client, ratelimit.New(d.cfg.RateLimit, burst))
	d.client = client
	return client, nil
}

// dnsResolver queries the configured nameservers directly when any are set,
// a DNS-over-HTTPS endpoint when --doh is given, and otherwise the system
// resolver, tunnelled through a SOCKS5 proxy when one is configured.
func (d *deps) dnsResolver() (services.DNSResolverInterface, error) {
	if d.resolver != nil {
		return d.resolver, nil
	}
	if d.cfg.DoH {
		client, err := d.httpClient()
		if err != nil {
			return nil, err
		}
		d.logger.Debug("resolving over DNS-over-HTTPS", "url", d.cfg.DoHURL)
		d.resolver = resolver.NewDoHResolver(client, d.cfg.DoHURL)
		return d.resolver, nil
	}
	if len(d.cfg.Nameservers) > 0 {
		r := resolver.NewDNSResolver(resolver.Config{
			Nameservers: d.cfg.Nameservers,
			Timeout:     d.cfg.DNSTimeout,
		})
		d.logger.Debug("using explicit nameservers", "servers", r.Nameservers())
		d.resolver = r
		return r, nil
	}
	r, err := resolver.NewResolver(d.cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("creating DNS resolver: %w", err)
	}
	d.resolver = r
	return r, nil
}

func (d *deps) imapVerifier() detector.Verifier {
	if d.verifier == nil {
		d.verifier = verify.New(d.logger, verify.WithTimeout(d.cfg.VerifyTimeout))
	}
	return d.verifier
}

// loadAutorouteTable loads the exchanger table. An explicit --autoroute-file
// must exist; the default override path is optional.
func (d *deps) loadAutorouteTable() (guess.Table, error) {
	var paths []string
	if d.cfg.AutorouteFile != "" {
		if _, err := os.Stat(d.cfg.AutorouteFile); err != nil {
			return nil, fmt.Errorf("autoroute file: %w", err)
		}
		paths = append(paths, d.cfg.AutorouteFile)
	} else if p, err := guess.DefaultTablePath(); err == nil {
		paths = append(paths, p)
	}
	table, err := guess.LoadTable(paths...)
	if err != nil {
		return nil, fmt.Errorf("loading autoroute table: %w", err)
	}
	return table, nil
}

// newDetector wires the discovery pipeline from the resolved config.
func (d *deps) newDetector() (*detector.Detector, error) {
	client, err := d.httpClient()
	if err != nil {
		return nil, err
	}
	r, err := d.dnsResolver()
	if err != nil {
		return nil, err
	}
	table, err := d.loadAutorouteTable()
	if err != nil {
		return nil, err
	}
	return detector.New(client, r, d.imapVerifier(), d.logger,
		detector.WithAutodiscoverURLs(d.cfg.AutodiscoverURLs...),
		detector.WithHTTPTimeout(d.cfg.HTTPTimeout),
		detector.WithDefaultPassword(d.cfg.DefaultPassword),
		detector.WithAutorouteTable(table),
	)
}

// credentialStore opens the keyring, falling back to an encrypted file below
// the config directory.
func (d *deps) credentialStore() (*credential.Store, error) {
	if d.store != nil {
		return d.store, nil
	}
	dir, err := appdir.KeyringDir()
	if err != nil {
		return nil, err
	}
	store, err := credential.Open(dir)
	if err != nil {
		return nil, err
	}
	d.store = store
	return store, nil
}
