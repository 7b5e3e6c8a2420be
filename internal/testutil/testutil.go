// Package testutil provides shared test helpers for strategy unit tests.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"net"

	"github.com/tbckr/imapdetect/internal/services"
)

// MockResolver implements services.DNSResolverInterface for testing.
// Each field is a function so tests can set only the methods they need.
// Unset methods report no records.
type MockResolver struct {
	LookupSRVFn func(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
	LookupMXFn  func(ctx context.Context, name string) ([]*net.MX, error)
}

var _ services.DNSResolverInterface = (*MockResolver)(nil)

// LookupSRV implements DNSResolverInterface.
func (m *MockResolver) LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error) {
	if m.LookupSRVFn != nil {
		return m.LookupSRVFn(ctx, service, proto, name)
	}
	return "", nil, nil
}

// LookupMX implements DNSResolverInterface.
func (m *MockResolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	if m.LookupMXFn != nil {
		return m.LookupMXFn(ctx, name)
	}
	return nil, nil
}

// NotFound returns the error a real resolver reports for a missing name.
func NotFound(name string) error {
	return &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
}

// NopLogger returns a logger that discards all output.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
