// Package guess builds IMAP candidates from common hostname conventions and
// the domain's mail exchanger when no published configuration exists.
package guess

import (
	"context"
	"log/slog"
	"net"
	"slices"
	"strings"

	"github.com/tbckr/imapdetect/internal/imapconf"
	"github.com/tbckr/imapdetect/internal/output"
	"github.com/tbckr/imapdetect/internal/services"
)

// Patterns are the hostname conventions probed for every domain, in order.
var Patterns = []string{"imap.%DOMAIN%", "mail.%DOMAIN%", "%DOMAIN%"}

// Ports are probed in this order; only the first implies implicit TLS.
var Ports = []int{imapconf.PortIMAPS, imapconf.PortIMAP}

// Service guesses candidates using the injected resolver for MX lookups.
type Service struct {
	resolver services.DNSResolverInterface
	logger   *slog.Logger
	table    Table
}

// NewService creates a guesser. A nil table disables the autoroute shortcut.
func NewService(resolver services.DNSResolverInterface, logger *slog.Logger, table Table) *Service {
	return &Service{resolver: resolver, logger: logger, table: table}
}

// Name implements services.Strategy.
func (s *Service) Name() imapconf.Strategy { return imapconf.StrategyGuess }

// Discover implements services.Strategy.
func (s *Service) Discover(ctx context.Context, email string) ([]imapconf.Candidate, error) {
	return s.Guess(ctx, email)
}

// Guess returns the candidate matrix for email. When the preferred mail
// exchanger has a known endpoint only that endpoint is returned; otherwise the
// exchanger joins the pattern hosts if it is not already among them.
func (s *Service) Guess(ctx context.Context, email string) ([]imapconf.Candidate, error) {
	user, domain, err := imapconf.SplitAddress(email)
	if err != nil {
		return nil, err
	}

	replacer := strings.NewReplacer("%USER%", user, "%DOMAIN%", domain)
	hosts := make([]string, 0, len(Patterns)+1)
	for _, p := range Patterns {
		if h := replacer.Replace(p); !slices.Contains(hosts, h) {
			hosts = append(hosts, h)
		}
	}

	if mx := s.preferredExchanger(ctx, domain); mx != "" {
		if c, ok := s.table.Lookup(mx); ok {
			s.logger.Debug("autoroute match", "domain", domain, "mx", mx, "host", c.Host)
			return []imapconf.Candidate{c}, nil
		}
		if !slices.Contains(hosts, mx) {
			hosts = append(hosts, mx)
		}
	}
	return Matrix(hosts), nil
}

// preferredExchanger returns the lowest-preference MX host of domain,
// lowercased and without the trailing dot, or "" when none is published.
func (s *Service) preferredExchanger(ctx context.Context, domain string) string {
	mxs, err := s.resolver.LookupMX(ctx, domain)
	if err != nil {
		s.logger.Debug("MX lookup failed", "domain", domain, "error", err)
		return ""
	}
	if len(mxs) == 0 {
		return ""
	}
	best := slices.MinFunc(mxs, func(a, b *net.MX) int { return int(a.Pref) - int(b.Pref) })
	return strings.ToLower(output.CleanHost(best.Host))
}

// Matrix crosses Ports with hosts, ports outermost, so every host is tried on
// 993 before any host is tried on 143.
func Matrix(hosts []string) []imapconf.Candidate {
	out := make([]imapconf.Candidate, 0, len(Ports)*len(hosts))
	for _, port := range Ports {
		for _, host := range hosts {
			out = append(out, imapconf.Candidate{Host: host, Port: port, Secure: port == imapconf.PortIMAPS})
		}
	}
	return out
}
