// Package services defines shared interfaces and types used across the
// discovery strategy implementations.
package services

import (
	"context"
	"net"
)

// DNSResolverInterface abstracts the DNS lookups the discovery strategies need.
// *net.Resolver and *resolver.DNSResolver both satisfy it.
// NOTE: there is no HTTP interface; autodiscovery takes a *req.Client directly.
type DNSResolverInterface interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}
