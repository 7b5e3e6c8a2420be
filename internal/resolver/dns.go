package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	mdns "github.com/miekg/dns"

	"github.com/tbckr/imapdetect/internal/services"
)

// Defaults applied by NewDNSResolver.
const (
	DefaultTimeout = 5 * time.Second
	DefaultRetries = 2
)

// Errors reported by DNSResolver when every nameserver failed.
var (
	ErrServFail = errors.New("dns: server failure")
	ErrRefused  = errors.New("dns: query refused")
)

// Config configures a DNSResolver.
type Config struct {
	// Nameservers to query, as host or host:port. Port 53 is assumed when
	// omitted. Empty means the servers from /etc/resolv.conf.
	Nameservers []string
	// Timeout bounds each individual query. Default 5s.
	Timeout time.Duration
	// Retries is the number of extra rounds over all nameservers. Default 2.
	Retries int
	// Net is "udp" (default) or "tcp".
	Net string
}

// DNSResolver answers SRV and MX lookups by querying explicit nameservers
// with github.com/miekg/dns.
type DNSResolver struct {
	config Config
	client *mdns.Client
}

var _ services.DNSResolverInterface = (*DNSResolver)(nil)

// NewDNSResolver creates a resolver for the given configuration.
func NewDNSResolver(config Config) *DNSResolver {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Retries <= 0 {
		config.Retries = DefaultRetries
	}
	if len(config.Nameservers) == 0 {
		config.Nameservers = systemNameservers()
	}
	servers := make([]string, 0, len(config.Nameservers))
	for _, s := range config.Nameservers {
		servers = append(servers, withPort(s))
	}
	config.Nameservers = servers

	return &DNSResolver{
		config: config,
		client: &mdns.Client{Net: config.Net, Timeout: config.Timeout},
	}
}

// Nameservers returns the host:port list the resolver queries.
func (r *DNSResolver) Nameservers() []string {
	return append([]string(nil), r.config.Nameservers...)
}

func systemNameservers() []string {
	cc, err := mdns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cc.Servers) == 0 {
		return []string{"8.8.8.8:53", "1.1.1.1:53"}
	}
	return cc.Servers
}

func withPort(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(strings.Trim(server, "[]"), "53")
}

// LookupSRV resolves _service._proto.name, or name directly when service and
// proto are both empty, mirroring net.Resolver.LookupSRV. Records are sorted
// by priority, then by descending weight.
func (r *DNSResolver) LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error) {
	return lookupSRV(ctx, r.query, service, proto, name)
}

// LookupMX returns the MX records for name in answer order.
func (r *DNSResolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	return lookupMX(ctx, r.query, name)
}

// queryFunc sends one question and returns the successful reply.
type queryFunc func(ctx context.Context, name string, qtype uint16) (*mdns.Msg, error)

func lookupSRV(ctx context.Context, query queryFunc, service, proto, name string) (string, []*net.SRV, error) {
	target := name
	if service != "" || proto != "" {
		target = "_" + service + "._" + proto + "." + name
	}
	target = mdns.Fqdn(target)

	resp, err := query(ctx, target, mdns.TypeSRV)
	if err != nil {
		return "", nil, err
	}
	var records []*net.SRV
	for _, rr := range resp.Answer {
		if srv, ok := rr.(*mdns.SRV); ok {
			records = append(records, &net.SRV{
				Target:   srv.Target,
				Port:     srv.Port,
				Priority: srv.Priority,
				Weight:   srv.Weight,
			})
		}
	}
	if len(records) == 0 {
		return target, nil, notFound(target)
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Priority != records[j].Priority {
			return records[i].Priority < records[j].Priority
		}
		return records[i].Weight > records[j].Weight
	})
	return target, records, nil
}

func lookupMX(ctx context.Context, query queryFunc, name string) ([]*net.MX, error) {
	target := mdns.Fqdn(name)
	resp, err := query(ctx, target, mdns.TypeMX)
	if err != nil {
		return nil, err
	}
	var records []*net.MX
	for _, rr := range resp.Answer {
		if mx, ok := rr.(*mdns.MX); ok {
			records = append(records, &net.MX{Host: mx.Mx, Pref: mx.Preference})
		}
	}
	if len(records) == 0 {
		return nil, notFound(target)
	}
	return records, nil
}

// query sends the question to each nameserver in turn, for Retries+1 rounds,
// and returns the first authoritative answer. NXDOMAIN ends the search.
func (r *DNSResolver) query(ctx context.Context, name string, qtype uint16) (*mdns.Msg, error) {
	m := new(mdns.Msg)
	m.SetQuestion(name, qtype)
	m.RecursionDesired = true

	var lastErr error
	for i := 0; i <= r.config.Retries; i++ {
		for _, server := range r.config.Nameservers {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			resp, _, err := r.client.ExchangeContext(ctx, m, server)
			if err != nil {
				lastErr = fmt.Errorf("dns query to %s failed: %w", server, err)
				continue
			}
			err = rcodeError(name, resp)
			if err == nil {
				return resp, nil
			}
			if isNotFound(err) {
				return nil, err
			}
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = ErrServFail
	}
	return nil, lastErr
}

// rcodeError maps a reply's response code to the error net.Resolver would
// report, or nil for NOERROR.
func rcodeError(name string, resp *mdns.Msg) error {
	switch resp.Rcode {
	case mdns.RcodeSuccess:
		return nil
	case mdns.RcodeNameError:
		return notFound(name)
	case mdns.RcodeServerFailure:
		return ErrServFail
	case mdns.RcodeRefused:
		return ErrRefused
	default:
		return fmt.Errorf("dns: unexpected rcode %s", mdns.RcodeToString[resp.Rcode])
	}
}

func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

func notFound(name string) error {
	return &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
}
