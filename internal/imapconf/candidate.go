package imapconf

import (
	"net"
	"strconv"
)

// Well-known IMAP ports.
const (
	PortIMAPS = 993
	PortIMAP  = 143
)

// Candidate is one hypothesis about where and how to open an IMAP session.
// Candidates are plain values; two candidates are the same when all fields match.
type Candidate struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	Secure bool   `json:"secure"`
}

// Valid reports whether c has a host and a port in 1–65535.
func (c Candidate) Valid() bool {
	return c.Host != "" && c.Port >= 1 && c.Port <= 65535
}

// Addr returns the dialable host:port form of c.
func (c Candidate) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Security returns "tls" for implicit TLS and "plain" otherwise.
func (c Candidate) Security() string {
	if c.Secure {
		return "tls"
	}
	return "plain"
}

// Strategy names the discovery strategy that produced a candidate list.
type Strategy string

// Strategies in fallback order.
const (
	StrategyAutodiscover Strategy = "autodiscover"
	StrategySRV          Strategy = "srv"
	StrategyGuess        Strategy = "guess"
)
