package httpclient

import (
	"github.com/imroc/req/v3"

	"github.com/tbckr/imapdetect/internal/ratelimit"
)

// AttachRateLimit hooks a Limiter onto the client's request pipeline so every
// outbound request waits for a token. A nil limiter leaves the client unchanged.
//
// No retry policy is attached: an autodiscovery URL that fails is treated as
// carrying no data, and the only permitted second request is the
// Basic-auth retry issued by the caller.
func AttachRateLimit(client *req.Client, limiter *ratelimit.Limiter) {
	if limiter == nil {
		return
	}
	client.OnBeforeRequest(func(_ *req.Client, r *req.Request) error {
		return limiter.Wait(r.Context())
	})
}
