package httpclient_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbckr/imapdetect/internal/httpclient"
	"github.com/tbckr/imapdetect/internal/version"
)

func TestNew_NoProxy(t *testing.T) {
	client, err := httpclient.New("", "", nil, false)
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNew_WithHTTPProxy(t *testing.T) {
	client, err := httpclient.New("http://proxy.example.com:8080", "", nil, false)
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNew_WithSocks5Proxy(t *testing.T) {
	client, err := httpclient.New("socks5://127.0.0.1:9050", "", nil, false)
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNew_InvalidProxyScheme(t *testing.T) {
	_, err := httpclient.New("ftp://proxy.example.com:8080", "", nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proxy scheme")
}

func TestNew_WithEnvProxy(t *testing.T) {
	t.Setenv("HTTP_PROXY", "http://proxy.example.com:8080")
	client, err := httpclient.New("", "", nil, false)
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNew_UserAgent(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		want      string
	}{
		{"default", "", version.UserAgent()},
		{"custom", "MyBot/1.0", "MyBot/1.0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, err := httpclient.New("", tc.userAgent, nil, false)
			require.NoError(t, err)

			httpmock.ActivateNonDefault(client.GetClient())
			t.Cleanup(httpmock.DeactivateAndReset)

			var got string
			httpmock.RegisterResponder(http.MethodGet, "https://example.com/",
				func(r *http.Request) (*http.Response, error) {
					got = r.Header.Get("User-Agent")
					return httpmock.NewStringResponse(http.StatusOK, "ok"), nil
				})

			_, err = client.R().Get("https://example.com/")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNew_DebugHookLogsResponses(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	client, err := httpclient.New("", "", logger, true)
	require.NoError(t, err)

	httpmock.ActivateNonDefault(client.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	httpmock.RegisterResponder(http.MethodGet, "https://example.com/missing",
		httpmock.NewStringResponder(http.StatusNotFound, "no such document"))

	_, err = client.R().Get("https://example.com/missing")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "http response")
	assert.Contains(t, out, "status=404")
	assert.Contains(t, out, "no such document")
}

func TestResolveProxy_ExplicitValue(t *testing.T) {
	got := httpclient.ResolveProxy("http://proxy.example.com:8080")
	assert.Equal(t, "http://proxy.example.com:8080", got)
}

func TestResolveProxy_Env(t *testing.T) {
	for _, env := range []string{"HTTPS_PROXY", "HTTP_PROXY", "ALL_PROXY", "https_proxy"} {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, "http://envproxy.example.com:8080")
			assert.Equal(t, "<from environment>", httpclient.ResolveProxy(""))
		})
	}
}

func TestResolveProxy_ExplicitWinsOverEnv(t *testing.T) {
	t.Setenv("HTTPS_PROXY", "http://envproxy.example.com:8080")
	got := httpclient.ResolveProxy("http://explicit.example.com:8080")
	assert.Equal(t, "http://explicit.example.com:8080", got)
}

func TestResolveProxy_NoProxy(t *testing.T) {
	for _, env := range []string{"HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy", "ALL_PROXY", "all_proxy"} {
		t.Setenv(env, "")
	}
	assert.Equal(t, "", httpclient.ResolveProxy(""))
}
