package guess

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tbckr/imapdetect/internal/appdir"
	"github.com/tbckr/imapdetect/internal/imapconf"
)

//go:embed autoroute.yaml
var embeddedTable []byte

// Table maps a lowercase mail exchanger host to its known IMAP endpoint.
type Table map[string]imapconf.Candidate

// Lookup returns the endpoint for exchanger, if any.
func (t Table) Lookup(exchanger string) (imapconf.Candidate, bool) {
	c, ok := t[strings.ToLower(strings.TrimSuffix(exchanger, "."))]
	return c, ok
}

type route struct {
	Exchangers []string `yaml:"exchangers"`
	IMAP       struct {
		Host   string `yaml:"host"`
		Port   int    `yaml:"port"`
		Secure bool   `yaml:"secure"`
	} `yaml:"imap"`
}

type tableFile struct {
	Routes []route `yaml:"routes"`
}

// ParseTable decodes a YAML autoroute document.
func ParseTable(data []byte) (Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	t := make(Table)
	for i, r := range f.Routes {
		c := imapconf.Candidate{Host: r.IMAP.Host, Port: r.IMAP.Port, Secure: r.IMAP.Secure}
		if !c.Valid() {
			return nil, fmt.Errorf("route %d: invalid imap endpoint %s:%d", i, c.Host, c.Port)
		}
		for _, ex := range r.Exchangers {
			t[strings.ToLower(strings.TrimSuffix(strings.TrimSpace(ex), "."))] = c
		}
	}
	return t, nil
}

// LoadTable tries each path in order; the first file that exists is used.
// Falls back to the embedded autoroute.yaml when no override file is found.
func LoadTable(paths ...string) (Table, error) {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading autoroute file %q: %w", path, err)
		}
		t, err := ParseTable(data)
		if err != nil {
			return nil, fmt.Errorf("parsing autoroute file %q: %w", path, err)
		}
		return t, nil
	}
	t, err := ParseTable(embeddedTable)
	if err != nil {
		return nil, fmt.Errorf("parsing embedded autoroute table: %w", err)
	}
	return t, nil
}

// DefaultTablePath returns the user override location inside the config dir.
func DefaultTablePath() (string, error) {
	dir, err := appdir.ConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config dir: %w", err)
	}
	return filepath.Join(dir, "autoroute.yaml"), nil
}

// ResolveTableFile returns the table source that LoadTable would use:
// explicit wins, then the default override path if it exists, else "<embedded>".
func ResolveTableFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if path, err := DefaultTablePath(); err == nil {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return "<embedded>"
}
