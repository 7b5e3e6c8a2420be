package verify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/emersion/go-imap/v2"
)

// ErrLoginDisabled is reported when the server advertises LOGINDISABLED.
var ErrLoginDisabled = errors.New("logging in is disabled on this server")

// Kind classifies why a probe failed.
type Kind int

// Failure kinds.
const (
	KindOther Kind = iota
	KindConnectionRefused
	KindTLS
	KindTimeout
	KindAuthRejected
)

func (k Kind) String() string {
	switch k {
	case KindConnectionRefused:
		return "connection refused"
	case KindTLS:
		return "tls"
	case KindTimeout:
		return "timeout"
	case KindAuthRejected:
		return "auth rejected"
	default:
		return "other"
	}
}

// Failure describes a probe that did not log in.
type Failure struct {
	Kind Kind
	// AccountDisabled is set when an authentication rejection states the
	// account or login method is disabled.
	AccountDisabled bool
	Err             error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Kind.String()
	}
	return f.Kind.String() + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error { return f.Err }

// ConfirmsSettings reports whether the failure still proves that an IMAP
// server is listening at the candidate: the server reached the
// authentication step and rejected the credentials for a reason other than
// a disabled account.
func (f *Failure) ConfirmsSettings() bool {
	return f.Kind == KindAuthRejected && !f.AccountDisabled
}

type stage int

const (
	stageConnect stage = iota
	stageLogin
)

func classify(ctx context.Context, st stage, err error) *Failure {
	f := &Failure{Kind: KindOther, Err: err}

	var imapErr *imap.Error
	var netErr net.Error
	switch {
	case st == stageLogin && errors.As(err, &imapErr):
		f.Kind = KindAuthRejected
		f.AccountDisabled = mentionsDisabled(imapErr.Text)
	case st == stageLogin && errors.Is(err, ErrLoginDisabled):
		f.Kind = KindAuthRejected
		f.AccountDisabled = true
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout(),
		errors.Is(ctx.Err(), context.DeadlineExceeded),
		deadlinePassed(ctx):
		f.Kind = KindTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		f.Kind = KindConnectionRefused
	case isTLSError(err):
		f.Kind = KindTLS
	}
	return f
}

// deadlinePassed catches connection deadlines that fire just before ctx
// observes its own.
func deadlinePassed(ctx context.Context) bool {
	d, ok := ctx.Deadline()
	return ok && !time.Now().Before(d)
}

func mentionsDisabled(text string) bool {
	return strings.Contains(strings.ToLower(text), "disabled")
}

func isTLSError(err error) bool {
	var (
		recordErr   tls.RecordHeaderError
		alertErr    tls.AlertError
		verifyErr   *tls.CertificateVerificationError
		authority   x509.UnknownAuthorityError
		hostname    x509.HostnameError
		invalidCert x509.CertificateInvalidError
	)
	return errors.As(err, &recordErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &verifyErr) ||
		errors.As(err, &authority) ||
		errors.As(err, &hostname) ||
		errors.As(err, &invalidCert)
}
