package resolver_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	mdns "github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbckr/imapdetect/internal/resolver"
)

// startServer runs an in-process DNS server on a random UDP port and returns
// its address.
func startServer(t *testing.T, handler mdns.HandlerFunc) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	srv := &mdns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func header(name string, rrtype uint16) mdns.RR_Header {
	return mdns.RR_Header{Name: name, Rrtype: rrtype, Class: mdns.ClassINET, Ttl: 60}
}

func zone(w mdns.ResponseWriter, r *mdns.Msg) {
	_ = w.WriteMsg(answer(r))
}

// answer serves a tiny example.com zone.
func answer(r *mdns.Msg) *mdns.Msg {
	m := new(mdns.Msg)
	m.SetReply(r)
	q := r.Question[0]
	switch {
	case q.Qtype == mdns.TypeSRV && q.Name == "_imaps._tcp.example.com.":
		m.Answer = append(m.Answer,
			&mdns.SRV{Hdr: header(q.Name, mdns.TypeSRV), Priority: 10, Weight: 5, Port: 993, Target: "backup.example.com."},
			&mdns.SRV{Hdr: header(q.Name, mdns.TypeSRV), Priority: 0, Weight: 1, Port: 993, Target: "imap.example.com."},
		)
	case q.Qtype == mdns.TypeMX && q.Name == "example.com.":
		m.Answer = append(m.Answer,
			&mdns.MX{Hdr: header(q.Name, mdns.TypeMX), Preference: 10, Mx: "mx1.example.com."},
			&mdns.MX{Hdr: header(q.Name, mdns.TypeMX), Preference: 20, Mx: "mx2.example.com."},
		)
	case q.Name == "empty.example.com.":
	case q.Name == "broken.example.com.":
		m.Rcode = mdns.RcodeServerFailure
	default:
		m.Rcode = mdns.RcodeNameError
	}
	return m
}

func newTestResolver(t *testing.T) *resolver.DNSResolver {
	t.Helper()
	addr := startServer(t, zone)
	return resolver.NewDNSResolver(resolver.Config{
		Nameservers: []string{addr},
		Timeout:     time.Second,
		Retries:     1,
	})
}

func TestDNSResolver_LookupSRV(t *testing.T) {
	r := newTestResolver(t)

	cname, records, err := r.LookupSRV(context.Background(), "imaps", "tcp", "example.com")
	require.NoError(t, err)
	assert.Equal(t, "_imaps._tcp.example.com.", cname)
	require.Len(t, records, 2)
	assert.Equal(t, "imap.example.com.", records[0].Target, "lowest priority first")
	assert.Equal(t, uint16(993), records[0].Port)
	assert.Equal(t, "backup.example.com.", records[1].Target)
}

func TestDNSResolver_LookupSRV_NotFound(t *testing.T) {
	r := newTestResolver(t)

	_, records, err := r.LookupSRV(context.Background(), "imap", "tcp", "example.com")
	require.Error(t, err)
	assert.Empty(t, records)

	var dnsErr *net.DNSError
	require.True(t, errors.As(err, &dnsErr))
	assert.True(t, dnsErr.IsNotFound)
}

func TestDNSResolver_LookupSRV_NoAnswer(t *testing.T) {
	r := newTestResolver(t)

	_, records, err := r.LookupSRV(context.Background(), "", "", "empty.example.com")
	require.Error(t, err)
	assert.Empty(t, records)
}

func TestDNSResolver_LookupMX(t *testing.T) {
	r := newTestResolver(t)

	records, err := r.LookupMX(context.Background(), "example.com")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "mx1.example.com.", records[0].Host)
	assert.Equal(t, uint16(10), records[0].Pref)
}

func TestDNSResolver_ServFail(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.LookupMX(context.Background(), "broken.example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, resolver.ErrServFail)
}

func TestDNSResolver_ContextCanceled(t *testing.T) {
	r := newTestResolver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.LookupMX(ctx, "example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewDNSResolver_DefaultPort(t *testing.T) {
	r := resolver.NewDNSResolver(resolver.Config{Nameservers: []string{"9.9.9.9", "1.1.1.1:5353", "::1"}})
	assert.Equal(t, []string{"9.9.9.9:53", "1.1.1.1:5353", "[::1]:53"}, r.Nameservers())
}
