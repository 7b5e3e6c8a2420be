// Package verify confirms IMAP candidates with a live LOGIN handshake.
package verify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/tbckr/imapdetect/internal/imapconf"
)

// DefaultTimeout bounds connecting, the greeting and LOGIN together.
const DefaultTimeout = 10 * time.Second

// Credentials are presented with LOGIN.
type Credentials struct {
	Username string
	Password string
}

// session is the part of an IMAP client a probe needs.
type session interface {
	LoginDisabled() bool
	Login(username, password string) error
	Logout() error
	Close() error
}

type dialFunc func(ctx context.Context, c imapconf.Candidate) (session, error)

// Verifier probes candidates one at a time.
type Verifier struct {
	logger  *slog.Logger
	timeout time.Duration
	dial    dialFunc
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithTimeout sets the per-probe timeout.
func WithTimeout(d time.Duration) Option {
	return func(v *Verifier) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithTLSConfig overrides the TLS configuration used for secure candidates.
// ServerName is filled in from the candidate host when empty.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(v *Verifier) { v.dial = dialIMAP(cfg) }
}

// New creates a Verifier.
func New(logger *slog.Logger, opts ...Option) *Verifier {
	v := &Verifier{logger: logger, timeout: DefaultTimeout, dial: dialIMAP(nil)}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify returns c when the server at c accepts the credentials, or rejects
// them in a way that proves an IMAP service is there. It returns nil otherwise.
func (v *Verifier) Verify(ctx context.Context, creds Credentials, c imapconf.Candidate) *imapconf.Candidate {
	err := v.Probe(ctx, creds, c)
	if err == nil {
		v.logger.Debug("imap login succeeded", "host", c.Host, "port", c.Port, "secure", c.Secure)
		return &c
	}
	var f *Failure
	if errors.As(err, &f) && f.ConfirmsSettings() {
		v.logger.Debug("imap login rejected, settings confirmed", "host", c.Host, "port", c.Port, "secure", c.Secure, "error", err)
		return &c
	}
	v.logger.Debug("imap probe failed", "host", c.Host, "port", c.Port, "secure", c.Secure, "error", err)
	return nil
}

// Probe connects to c and issues LOGIN. It returns nil on success and a
// *Failure otherwise. Only LOGIN and LOGOUT are sent; no mailbox is opened.
// The connection is closed on every path.
func (v *Verifier) Probe(ctx context.Context, creds Credentials, c imapconf.Candidate) error {
	if !c.Valid() {
		return &Failure{Kind: KindOther, Err: fmt.Errorf("invalid candidate %s:%d", c.Host, c.Port)}
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	sess, err := v.dial(ctx, c)
	if err != nil {
		return classify(ctx, stageConnect, err)
	}
	defer func() { _ = sess.Close() }()
	// Unblock a pending LOGIN when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = sess.Close() })
	defer stop()

	if sess.LoginDisabled() {
		return classify(ctx, stageLogin, ErrLoginDisabled)
	}
	if err := sess.Login(creds.Username, creds.Password); err != nil {
		return classify(ctx, stageLogin, err)
	}
	_ = sess.Logout()
	return nil
}

// dialIMAP returns a dialFunc that opens plain TCP or implicit TLS depending
// on the candidate and waits for the server greeting.
func dialIMAP(tlsConfig *tls.Config) dialFunc {
	return func(ctx context.Context, c imapconf.Candidate) (session, error) {
		deadline, ok := ctx.Deadline()
		if !ok {
			deadline = time.Now().Add(DefaultTimeout)
		}
		netDialer := &net.Dialer{Deadline: deadline}

		var (
			conn net.Conn
			err  error
		)
		if c.Secure {
			cfg := &tls.Config{MinVersion: tls.VersionTLS12}
			if tlsConfig != nil {
				cfg = tlsConfig.Clone()
			}
			if cfg.ServerName == "" {
				cfg.ServerName = c.Host
			}
			conn, err = (&tls.Dialer{NetDialer: netDialer, Config: cfg}).DialContext(ctx, "tcp", c.Addr())
		} else {
			conn, err = netDialer.DialContext(ctx, "tcp", c.Addr())
		}
		if err != nil {
			return nil, err
		}
		// imapclient replaces read deadlines with its own, so the greeting wait
		// is bounded by closing the connection when ctx ends.
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

		client := imapclient.New(conn, nil)
		err = client.WaitGreeting()
		if !stop() || err != nil {
			_ = client.Close()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("waiting for greeting: %w", ctxErr)
			}
			return nil, err
		}
		return &imapSession{client: client}, nil
	}
}

type imapSession struct {
	client *imapclient.Client
}

func (s *imapSession) LoginDisabled() bool {
	return s.client.Caps().Has(imap.CapLoginDisabled)
}

func (s *imapSession) Login(username, password string) error {
	return s.client.Login(username, password).Wait()
}

func (s *imapSession) Logout() error {
	return s.client.Logout().Wait()
}

func (s *imapSession) Close() error {
	return s.client.Close()
}
