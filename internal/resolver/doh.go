package resolver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"

	"github.com/imroc/req/v3"
	mdns "github.com/miekg/dns"

	"github.com/tbckr/imapdetect/internal/services"
)

// DefaultDoHURL is the Quad9 DNS-over-HTTPS endpoint.
const DefaultDoHURL = "https://dns.quad9.net/dns-query"

// DoHResolver answers SRV and MX lookups with RFC 8484 DNS-over-HTTPS GET
// requests. Queries travel through the req client, so an HTTP proxy applies
// to DNS as well.
type DoHResolver struct {
	client *req.Client
	url    string
}

var _ services.DNSResolverInterface = (*DoHResolver)(nil)

// NewDoHResolver creates a resolver querying url, or DefaultDoHURL when url
// is empty.
func NewDoHResolver(client *req.Client, url string) *DoHResolver {
	if url == "" {
		url = DefaultDoHURL
	}
	return &DoHResolver{client: client, url: url}
}

// LookupSRV implements services.DNSResolverInterface.
func (r *DoHResolver) LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error) {
	return lookupSRV(ctx, r.query, service, proto, name)
}

// LookupMX implements services.DNSResolverInterface.
func (r *DoHResolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	return lookupMX(ctx, r.query, name)
}

// query encodes the question as base64url and sends it as the "dns" query
// parameter.
func (r *DoHResolver) query(ctx context.Context, name string, qtype uint16) (*mdns.Msg, error) {
	m := new(mdns.Msg)
	m.SetQuestion(name, qtype)
	m.RecursionDesired = true
	// RFC 8484 recommends ID 0 for cache friendliness.
	m.Id = 0
	wire, err := m.Pack()
	if err != nil {
		return nil, fmt.Errorf("%w: packing DNS query for %q: %w", services.ErrRequestFailed, name, err)
	}

	httpResp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/dns-message").
		SetQueryParam("dns", base64.RawURLEncoding.EncodeToString(wire)).
		Get(r.url)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: DoH request for %q: %w", services.ErrRequestFailed, name, err)
	}
	if !httpResp.IsSuccessState() {
		body := httpResp.String()
		if len(body) > 200 {
			body = body[:200] + "..."
		}
		return nil, fmt.Errorf("%w: DoH server returned HTTP %d for %q: %q", services.ErrRequestFailed, httpResp.StatusCode, name, body)
	}

	resp := new(mdns.Msg)
	if err := resp.Unpack(httpResp.Bytes()); err != nil {
		return nil, fmt.Errorf("%w: parsing DoH response for %q: %w", services.ErrRequestFailed, name, err)
	}
	if err := rcodeError(name, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
