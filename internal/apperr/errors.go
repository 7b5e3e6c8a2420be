package apperr

import "errors"

// ErrInvalidInput is returned when an email address, domain or URL template
// fails validation. Use errors.Is(err, apperr.ErrInvalidInput) to detect
// precondition failures uniformly across all discovery strategies.
var ErrInvalidInput = errors.New("invalid input")

// ErrRequestFailed is returned when an autodiscovery request fails at the
// transport level. Discovery strategies swallow it per source; it only
// reaches callers of the low-level fetch functions.
var ErrRequestFailed = errors.New("request failed")

// ErrAuthRequired is returned when an autodiscovery endpoint demands HTTP
// Basic authentication and no username or password was supplied.
var ErrAuthRequired = errors.New("401 authorization required: username or password is missing")
