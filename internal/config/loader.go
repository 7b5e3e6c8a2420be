package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tbckr/imapdetect/internal/appdir"
	"github.com/tbckr/imapdetect/internal/detector"
	"github.com/tbckr/imapdetect/internal/output"
	"github.com/tbckr/imapdetect/internal/resolver"
	"github.com/tbckr/imapdetect/internal/services/autodiscover"
	"github.com/tbckr/imapdetect/internal/verify"
)

// EnvPrefix prefixes every environment override, e.g. IMAPDETECT_PROXY.
const EnvPrefix = "IMAPDETECT"

// DefaultConcurrency is the number of addresses processed in parallel.
const DefaultConcurrency = 10

// RegisterFlags adds the persistent flags every command shares.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "config file (default: "+filepath.Join("$XDG_CONFIG_HOME", appdir.Name, "config.yaml")+")")
	flags.Bool("verbose", false, "enable debug logging")
	flags.StringP("output", "o", string(output.FormatTable), "output format: table, json or plain")
	flags.String("proxy", "", "proxy URL for HTTP and DNS (http, https, socks5)")
	flags.String("user-agent", "", "override the User-Agent of autodiscovery requests")
	flags.IntP("concurrency", "c", DefaultConcurrency, "addresses processed in parallel")
	flags.Duration("http-timeout", autodiscover.DefaultTimeout, "timeout of each autodiscovery request")
	flags.Duration("verify-timeout", verify.DefaultTimeout, "timeout of each IMAP verification attempt")
	flags.StringSlice("autodiscover-url", nil, "extra autodiscovery URL template (%USER%, %DOMAIN%), repeatable")
	flags.StringSlice("nameserver", nil, "DNS server to query instead of the system resolver, repeatable")
	flags.Duration("dns-timeout", resolver.DefaultTimeout, "timeout of each DNS query against --nameserver")
	flags.Bool("doh", false, "resolve SRV and MX records over DNS-over-HTTPS")
	flags.String("doh-url", resolver.DefaultDoHURL, "DNS-over-HTTPS endpoint used with --doh")
	flags.Float64("rate-limit", 0, "max autodiscovery requests per second, 0 for unlimited")
	flags.String("autoroute-file", "", "YAML file overriding the built-in mail exchanger table")
	flags.String("default-password", detector.DefaultPassword, "password presented when none is given")
}

// flagKeys maps viper keys to the flag that overrides them.
var flagKeys = map[string]string{
	"verbose":           "verbose",
	"output":            "output",
	"proxy":             "proxy",
	"user_agent":        "user-agent",
	"concurrency":       "concurrency",
	"http_timeout":      "http-timeout",
	"verify_timeout":    "verify-timeout",
	"autodiscover_urls": "autodiscover-url",
	"nameservers":       "nameserver",
	"dns_timeout":       "dns-timeout",
	"doh":               "doh",
	"doh_url":           "doh-url",
	"rate_limit":        "rate-limit",
	"autoroute_file":    "autoroute-file",
	"default_password":  "default-password",
}

// DefaultConfigPath returns the OS-specific config file location.
func DefaultConfigPath() (string, error) {
	dir, err := appdir.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load resolves the configuration for flags. The config file is created
// (0600) when missing so that "config set" always has a file to write to.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	cfgFile, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	if cfgFile == "" {
		if cfgFile, err = DefaultConfigPath(); err != nil {
			return nil, err
		}
	}
	if err := appdir.EnsureFile(cfgFile); err != nil {
		return nil, err
	}

	v.SetConfigFile(cfgFile)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, flag := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("binding flag %q: %w", flag, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return &Config{
		ConfigFile:       cfgFile,
		Verbose:          v.GetBool("verbose"),
		Output:           v.GetString("output"),
		Proxy:            v.GetString("proxy"),
		UserAgent:        v.GetString("user_agent"),
		Concurrency:      v.GetInt("concurrency"),
		HTTPTimeout:      v.GetDuration("http_timeout"),
		VerifyTimeout:    v.GetDuration("verify_timeout"),
		AutodiscoverURLs: v.GetStringSlice("autodiscover_urls"),
		Nameservers:      v.GetStringSlice("nameservers"),
		DNSTimeout:       v.GetDuration("dns_timeout"),
		DoH:              v.GetBool("doh"),
		DoHURL:           v.GetString("doh_url"),
		RateLimit:        v.GetFloat64("rate_limit"),
		AutorouteFile:    v.GetString("autoroute_file"),
		DefaultPassword:  v.GetString("default_password"),
	}, nil
}
