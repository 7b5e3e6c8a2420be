package imapconf

import (
	"fmt"
	"strings"

	"golang.org/x/net/idna"

	"github.com/tbckr/imapdetect/internal/apperr"
)

// SplitAddress splits email at the first "@" into its local part and domain.
// Both parts must be non-empty. The domain is returned in lowercase ASCII
// (IDNA) form so it can be used directly in DNS queries and URLs.
func SplitAddress(email string) (user, domain string, err error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", "", fmt.Errorf("%w: email address is required", apperr.ErrInvalidInput)
	}
	user, domain, ok := strings.Cut(email, "@")
	if !ok || user == "" || domain == "" {
		return "", "", fmt.Errorf("%w: invalid email address format: %q", apperr.ErrInvalidInput, email)
	}
	ascii, err := NormalizeDomain(domain)
	if err != nil {
		return "", "", err
	}
	return user, ascii, nil
}

// NormalizeDomain converts domain to its lowercase ASCII form.
func NormalizeDomain(domain string) (string, error) {
	ascii, err := idna.Lookup.ToASCII(strings.TrimSuffix(domain, "."))
	if err != nil || ascii == "" {
		return "", fmt.Errorf("%w: invalid domain %q", apperr.ErrInvalidInput, domain)
	}
	return strings.ToLower(ascii), nil
}
