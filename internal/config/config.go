// Package config resolves imapdetect settings from flags, IMAPDETECT_*
// environment variables and the YAML config file, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tbckr/imapdetect/internal/output"
)

// ErrUnknownKey is returned for a key that is not a recognised setting.
var ErrUnknownKey = errors.New("unknown config key")

// Config holds the fully resolved settings.
type Config struct {
	ConfigFile string

	Verbose     bool
	Output      string
	Proxy       string
	UserAgent   string
	Concurrency int

	HTTPTimeout      time.Duration
	VerifyTimeout    time.Duration
	AutodiscoverURLs []string

	Nameservers []string
	DNSTimeout  time.Duration
	DoH         bool
	DoHURL      string

	// RateLimit is requests per second for autodiscovery fetches; 0 disables it.
	RateLimit float64

	AutorouteFile   string
	DefaultPassword string
}

// Validate rejects values no command can run with.
func (c *Config) Validate() error {
	if _, err := output.ParseFormat(c.Output); err != nil {
		return err
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1, got %d", c.Concurrency)
	}
	for name, d := range map[string]time.Duration{
		"http-timeout":   c.HTTPTimeout,
		"verify-timeout": c.VerifyTimeout,
		"dns-timeout":    c.DNSTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("--%s must be positive, got %s", name, d)
		}
	}
	if c.DoH && len(c.Nameservers) > 0 {
		return fmt.Errorf("--doh and --nameserver are mutually exclusive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("--rate-limit must not be negative, got %v", c.RateLimit)
	}
	return nil
}

type kind int

const (
	kindString kind = iota
	kindBool
	kindInt
	kindFloat
	kindDuration
	kindList
	kindOutput
)

var keyKinds = map[string]kind{
	"verbose":           kindBool,
	"output":            kindOutput,
	"proxy":             kindString,
	"user_agent":        kindString,
	"concurrency":       kindInt,
	"http_timeout":      kindDuration,
	"verify_timeout":    kindDuration,
	"autodiscover_urls": kindList,
	"nameservers":       kindList,
	"dns_timeout":       kindDuration,
	"doh":               kindBool,
	"doh_url":           kindString,
	"rate_limit":        kindFloat,
	"autoroute_file":    kindString,
	"default_password":  kindString,
}

// ValidKeys returns every settable key.
func ValidKeys() []string {
	keys := make([]string, 0, len(keyKinds))
	for k := range keyKinds {
		keys = append(keys, k)
	}
	return keys
}

// NormalizeKey maps flag spelling ("user-agent") to key spelling ("user_agent").
func NormalizeKey(key string) string {
	return strings.ReplaceAll(key, "-", "_")
}

// ValidateKey reports ErrUnknownKey for anything ValidKeys does not list.
func ValidateKey(key string) error {
	if _, ok := keyKinds[NormalizeKey(key)]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return nil
}

// ParseValue converts a command-line string into the typed value stored in
// the config file for key.
func ParseValue(key, value string) (any, error) {
	key = NormalizeKey(key)
	k, ok := keyKinds[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	switch k {
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s: expected true or false, got %q", key, value)
		}
		return b, nil
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%s: expected a positive integer, got %q", key, value)
		}
		return n, nil
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("%s: expected a non-negative number, got %q", key, value)
		}
		return f, nil
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%s: expected a positive duration such as 5s, got %q", key, value)
		}
		return d.String(), nil
	case kindList:
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items, nil
	case kindOutput:
		f, err := output.ParseFormat(value)
		if err != nil {
			return nil, err
		}
		return string(f), nil
	default:
		return value, nil
	}
}

// KeyCompletions returns value suggestions for key, or nil for free-form keys.
func KeyCompletions(key string) []string {
	switch keyKinds[NormalizeKey(key)] {
	case kindBool:
		return []string{"true", "false"}
	case kindOutput:
		return formatNames()
	default:
		return nil
	}
}

func formatNames() []string {
	names := make([]string, len(output.Formats))
	for i, f := range output.Formats {
		names[i] = string(f)
	}
	return names
}
