package srv_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbckr/imapdetect/internal/imapconf"
	"github.com/tbckr/imapdetect/internal/services"
	"github.com/tbckr/imapdetect/internal/services/srv"
	"github.com/tbckr/imapdetect/internal/testutil"
)

func srvResolver(records map[string][]*net.SRV) *testutil.MockResolver {
	return &testutil.MockResolver{
		LookupSRVFn: func(_ context.Context, service, proto, name string) (string, []*net.SRV, error) {
			key := "_" + service + "._" + proto + "." + name
			recs, ok := records[key]
			if !ok {
				return "", nil, testutil.NotFound(key)
			}
			return key + ".", recs, nil
		},
	}
}

func TestDetectByServiceRecords_BothProtocols(t *testing.T) {
	resolver := srvResolver(map[string][]*net.SRV{
		"_imap._tcp.example.com":  {{Target: "imap.example.com.", Port: 143}},
		"_imaps._tcp.example.com": {{Target: "imap.example.com.", Port: 993}, {Target: "backup.example.com.", Port: 993}},
	})
	svc := srv.NewService(resolver, testutil.NopLogger())

	got, err := svc.DetectByServiceRecords(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, []imapconf.Candidate{
		{Host: "imap.example.com", Port: 143, Secure: false},
		{Host: "imap.example.com", Port: 993, Secure: true},
	}, got)
}

func TestDetectByServiceRecords_OrderIndependentOfTiming(t *testing.T) {
	resolver := &testutil.MockResolver{
		LookupSRVFn: func(_ context.Context, service, _, _ string) (string, []*net.SRV, error) {
			if service == "imap" {
				time.Sleep(30 * time.Millisecond)
				return "", []*net.SRV{{Target: "plain.example.com.", Port: 143}}, nil
			}
			return "", []*net.SRV{{Target: "tls.example.com.", Port: 993}}, nil
		},
	}
	svc := srv.NewService(resolver, testutil.NopLogger())

	got, err := svc.DetectByServiceRecords(context.Background(), "user@example.com")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "plain.example.com", got[0].Host)
	assert.Equal(t, "tls.example.com", got[1].Host)
}

func TestDetectByServiceRecords_OnlyImaps(t *testing.T) {
	resolver := srvResolver(map[string][]*net.SRV{
		"_imaps._tcp.example.com": {{Target: "mail.example.com.", Port: 993}},
	})
	svc := srv.NewService(resolver, testutil.NopLogger())

	got, err := svc.DetectByServiceRecords(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, []imapconf.Candidate{{Host: "mail.example.com", Port: 993, Secure: true}}, got)
}

func TestDetectByServiceRecords_ServiceNotOffered(t *testing.T) {
	resolver := srvResolver(map[string][]*net.SRV{
		"_imap._tcp.example.com":  {{Target: ".", Port: 0}},
		"_imaps._tcp.example.com": {},
	})
	svc := srv.NewService(resolver, testutil.NopLogger())

	got, err := svc.DetectByServiceRecords(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDetectByServiceRecords_LookupErrors(t *testing.T) {
	resolver := &testutil.MockResolver{
		LookupSRVFn: func(context.Context, string, string, string) (string, []*net.SRV, error) {
			return "", nil, errors.New("i/o timeout")
		},
	}
	svc := srv.NewService(resolver, testutil.NopLogger())

	got, err := svc.DetectByServiceRecords(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDetectByServiceRecords_InvalidEmail(t *testing.T) {
	svc := srv.NewService(&testutil.MockResolver{}, testutil.NopLogger())

	for _, email := range []string{"", "example.com", "user@", "@example.com"} {
		_, err := svc.DetectByServiceRecords(context.Background(), email)
		require.Error(t, err, "email %q", email)
		assert.ErrorIs(t, err, services.ErrInvalidInput)
	}
}

func TestDiscover_Strategy(t *testing.T) {
	svc := srv.NewService(srvResolver(map[string][]*net.SRV{
		"_imaps._tcp.example.com": {{Target: "mail.example.com.", Port: 993}},
	}), testutil.NopLogger())
	assert.Equal(t, imapconf.StrategySRV, svc.Name())

	got, err := svc.Discover(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDiscoverAutoconfigEndpoints(t *testing.T) {
	resolver := srvResolver(map[string][]*net.SRV{
		"_autodiscover._tcp.example.com": {
			{Target: "autodiscover.example.com.", Port: 443},
			{Target: "legacy.example.com.", Port: 8080},
			{Target: ".", Port: 443},
		},
	})
	svc := srv.NewService(resolver, testutil.NopLogger())

	got := svc.DiscoverAutoconfigEndpoints(context.Background(), "example.com")
	assert.Equal(t, []string{
		"https://autodiscover.example.com:443/autodiscover/autodiscover.xml",
		"http://legacy.example.com:8080/autodiscover/autodiscover.xml",
	}, got)
}

func TestDiscoverAutoconfigEndpoints_NotFound(t *testing.T) {
	svc := srv.NewService(srvResolver(nil), testutil.NopLogger())
	assert.Nil(t, svc.DiscoverAutoconfigEndpoints(context.Background(), "example.com"))
}
