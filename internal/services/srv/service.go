// Package srv discovers IMAP servers and Autodiscover endpoints through DNS
// SRV records (RFC 6186).
package srv

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/tbckr/imapdetect/internal/imapconf"
	"github.com/tbckr/imapdetect/internal/output"
	"github.com/tbckr/imapdetect/internal/services"
)

// protocol maps an SRV service label to the transport security it implies.
type protocol struct {
	service string
	secure  bool
}

// protocols are queried concurrently but reported in this order.
var protocols = []protocol{
	{service: "imap", secure: false},
	{service: "imaps", secure: true},
}

// Service performs SRV lookups using the injected resolver.
type Service struct {
	resolver services.DNSResolverInterface
	logger   *slog.Logger
}

// NewService creates a new SRV service with the given resolver and logger.
func NewService(resolver services.DNSResolverInterface, logger *slog.Logger) *Service {
	return &Service{resolver: resolver, logger: logger}
}

// Name implements services.Strategy.
func (s *Service) Name() imapconf.Strategy { return imapconf.StrategySRV }

// Discover implements services.Strategy.
func (s *Service) Discover(ctx context.Context, email string) ([]imapconf.Candidate, error) {
	return s.DetectByServiceRecords(ctx, email)
}

// DetectByServiceRecords resolves _imap._tcp and _imaps._tcp for the domain
// of email. Each protocol contributes at most its first record; a lookup
// failure or a "." target contributes nothing. The imap candidate, when
// present, precedes the imaps one.
func (s *Service) DetectByServiceRecords(ctx context.Context, email string) ([]imapconf.Candidate, error) {
	_, domain, err := imapconf.SplitAddress(email)
	if err != nil {
		return nil, err
	}

	found := make([]*imapconf.Candidate, len(protocols))
	var wg sync.WaitGroup
	for i, p := range protocols {
		wg.Add(1)
		go func() {
			defer wg.Done()
			found[i] = s.lookupProtocol(ctx, p, domain)
		}()
	}
	wg.Wait()

	var out []imapconf.Candidate
	for _, c := range found {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *Service) lookupProtocol(ctx context.Context, p protocol, domain string) *imapconf.Candidate {
	_, records, err := s.resolver.LookupSRV(ctx, p.service, "tcp", domain)
	if err != nil {
		s.logger.Debug("SRV lookup failed", "service", p.service, "domain", domain, "error", err)
		return nil
	}
	if len(records) == 0 {
		return nil
	}
	host := output.CleanHost(records[0].Target)
	if host == "" {
		s.logger.Debug("SRV service not offered", "service", p.service, "domain", domain)
		return nil
	}
	return &imapconf.Candidate{Host: host, Port: int(records[0].Port), Secure: p.secure}
}

// DiscoverAutoconfigEndpoints resolves _autodiscover._tcp for domain and
// returns one Autodiscover URL per usable record, https for port 443 and http
// otherwise. A failed lookup yields nil.
func (s *Service) DiscoverAutoconfigEndpoints(ctx context.Context, domain string) []string {
	_, records, err := s.resolver.LookupSRV(ctx, "autodiscover", "tcp", domain)
	if err != nil {
		s.logger.Debug("autodiscover SRV lookup failed", "domain", domain, "error", err)
		return nil
	}
	var urls []string
	for _, rec := range records {
		host := output.CleanHost(rec.Target)
		if host == "" {
			continue
		}
		urls = append(urls, endpointURL(host, rec.Port))
	}
	return urls
}

func endpointURL(host string, port uint16) string {
	scheme := "http"
	if port == 443 {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/autodiscover/autodiscover.xml", scheme, net.JoinHostPort(host, strconv.Itoa(int(port))))
}
