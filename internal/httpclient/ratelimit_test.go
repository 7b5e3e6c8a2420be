package httpclient_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbckr/imapdetect/internal/httpclient"
	"github.com/tbckr/imapdetect/internal/ratelimit"
)

// TestAttachRateLimit_NoRetry verifies that a transport error is reported
// after a single attempt.
func TestAttachRateLimit_NoRetry(t *testing.T) {
	client, err := httpclient.New("", "", nil, false)
	require.NoError(t, err)

	// High rate/burst so the limiter never blocks during the test.
	httpclient.AttachRateLimit(client, ratelimit.New(1000, 1000))

	httpmock.ActivateNonDefault(client.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	callCount := 0
	httpmock.RegisterResponder(http.MethodGet, "https://example.com/",
		func(*http.Request) (*http.Response, error) {
			callCount++
			return nil, errors.New("connection reset by peer")
		})

	_, err = client.R().Get("https://example.com/")
	assert.Error(t, err)
	assert.Equal(t, 1, callCount)
}

// TestAttachRateLimit_CanceledContext verifies that the limiter gate runs
// before the request is sent.
func TestAttachRateLimit_CanceledContext(t *testing.T) {
	client, err := httpclient.New("", "", nil, false)
	require.NoError(t, err)

	limiter := ratelimit.New(1, 1)
	require.NoError(t, limiter.Wait(context.Background()))
	httpclient.AttachRateLimit(client, limiter)

	httpmock.ActivateNonDefault(client.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	httpmock.RegisterResponder(http.MethodGet, "https://example.com/",
		httpmock.NewStringResponder(http.StatusOK, "ok"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.R().SetContext(ctx).Get("https://example.com/")
	require.Error(t, err)
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestAttachRateLimit_NilLimiter(t *testing.T) {
	client, err := httpclient.New("", "", nil, false)
	require.NoError(t, err)
	httpclient.AttachRateLimit(client, nil)

	httpmock.ActivateNonDefault(client.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	httpmock.RegisterResponder(http.MethodGet, "https://example.com/",
		httpmock.NewStringResponder(http.StatusOK, "ok"))

	resp, err := client.R().Get("https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
