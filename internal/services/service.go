package services

import (
	"context"

	"github.com/tbckr/imapdetect/internal/apperr"
	"github.com/tbckr/imapdetect/internal/imapconf"
)

// ErrInvalidInput is re-exported from apperr.
// Use errors.Is(err, services.ErrInvalidInput) to detect validation failures uniformly
// across all strategies.
var ErrInvalidInput = apperr.ErrInvalidInput

// ErrRequestFailed is re-exported from apperr.
var ErrRequestFailed = apperr.ErrRequestFailed

// Strategy is the contract every discovery strategy implements. Discover
// returns nil when the strategy found nothing; an error is reserved for
// precondition failures such as a malformed address.
type Strategy interface {
	Name() imapconf.Strategy
	Discover(ctx context.Context, email string) ([]imapconf.Candidate, error)
}
