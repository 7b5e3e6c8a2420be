package cli

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/imroc/req/v3"
	"github.com/jarcoal/httpmock"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbckr/imapdetect/internal/config"
	"github.com/tbckr/imapdetect/internal/credential"
	"github.com/tbckr/imapdetect/internal/imapconf"
	"github.com/tbckr/imapdetect/internal/output"
	"github.com/tbckr/imapdetect/internal/testutil"
	"github.com/tbckr/imapdetect/internal/verify"
)

const exampleDoc = `<clientConfig><emailProvider id="example.com">
  <incomingServer type="imap"><hostname>imap.example.com</hostname><port>993</port><socketType>SSL</socketType></incomingServer>
</emailProvider></clientConfig>`

type recordingVerifier struct {
	mu        sync.Mutex
	passwords map[string]string
}

func (v *recordingVerifier) Verify(_ context.Context, creds verify.Credentials, c imapconf.Candidate) *imapconf.Candidate {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.passwords == nil {
		v.passwords = map[string]string{}
	}
	v.passwords[creds.Username] = creds.Password
	if c.Host == "imap.example.com" && c.Port == imapconf.PortIMAPS {
		return &c
	}
	return nil
}

func newTestDeps(t *testing.T, format output.Format) (*deps, *recordingVerifier) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	client := req.NewClient()
	httpmock.ActivateNonDefault(client.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	httpmock.RegisterNoResponder(httpmock.NewStringResponder(http.StatusNotFound, ""))
	httpmock.RegisterResponder(http.MethodGet, "http://example.com/.well-known/autoconfig/mail/config-v1.1.xml",
		httpmock.NewStringResponder(http.StatusOK, exampleDoc))

	v := &recordingVerifier{}
	return &deps{
		logger: testutil.NopLogger(),
		cfg: &config.Config{
			Output:          string(format),
			Concurrency:     2,
			HTTPTimeout:     time.Second,
			VerifyTimeout:   time.Second,
			DNSTimeout:      time.Second,
			DefaultPassword: "hello",
		},
		format: format,
		client: client,
		resolver: &testutil.MockResolver{
			LookupSRVFn: func(_ context.Context, _, _, name string) (string, []*net.SRV, error) {
				return "", nil, testutil.NotFound(name)
			},
			LookupMXFn: func(_ context.Context, name string) ([]*net.MX, error) {
				return nil, testutil.NotFound(name)
			},
		},
		verifier: v,
	}, v
}

func execute(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestDetectCmd_Verified(t *testing.T) {
	d, v := newTestDeps(t, output.FormatPlain)

	out, err := execute(t, newDetectCmd(d), "", "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "imap.example.com 993 tls\n", out)
	assert.Equal(t, "hello", v.passwords["user@example.com"])
}

func TestDetectCmd_PasswordFlag(t *testing.T) {
	d, v := newTestDeps(t, output.FormatPlain)

	_, err := execute(t, newDetectCmd(d), "", "--password=s3cret", "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v.passwords["user@example.com"])
}

func TestDetectCmd_NothingVerifiedWritesNothing(t *testing.T) {
	d, _ := newTestDeps(t, output.FormatPlain)

	out, err := execute(t, newDetectCmd(d), "", "user@example.org")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDetectCmd_Keyring(t *testing.T) {
	d, v := newTestDeps(t, output.FormatPlain)
	store, err := credential.OpenWith(keyring.Config{
		ServiceName:      "imapdetect-test",
		AllowedBackends:  []keyring.BackendType{keyring.FileBackend},
		FileDir:          t.TempDir(),
		FilePasswordFunc: keyring.FixedStringPrompt("test-key"),
	})
	require.NoError(t, err)
	d.store = store

	_, err = execute(t, newCredentialsSetCmd(d), "fromkeyring\n", "user@example.com")
	require.NoError(t, err)

	_, err = execute(t, newDetectCmd(d), "", "--keyring", "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "fromkeyring", v.passwords["user@example.com"])
}

func TestDetectCmd_PasswordAndKeyringConflict(t *testing.T) {
	d, _ := newTestDeps(t, output.FormatPlain)

	_, err := execute(t, newDetectCmd(d), "", "--keyring", "--password=x", "user@example.com")
	require.Error(t, err)
}

func TestCandidatesCmd_StdinMultipleInputs(t *testing.T) {
	d, v := newTestDeps(t, output.FormatPlain)

	out, err := execute(t, newCandidatesCmd(d), "user@example.com\nuser@example.org\n")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "user@example.com imap.example.com 993 tls", lines[0])
	assert.Equal(t, "user@example.org imap.example.org 993 tls", lines[1])
	assert.Equal(t, "user@example.org example.org 143 plain", lines[6])
	assert.Empty(t, v.passwords, "candidates must not verify")
}

func TestCandidatesCmd_InvalidInputSkipped(t *testing.T) {
	d, _ := newTestDeps(t, output.FormatPlain)

	out, err := execute(t, newCandidatesCmd(d), "", "not-an-address", "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "imap.example.com 993 tls\n", out)
}

func TestCandidatesCmd_InvalidAutodiscoverURL(t *testing.T) {
	d, _ := newTestDeps(t, output.FormatPlain)
	d.cfg.AutodiscoverURLs = []string{"ftp://nope/%DOMAIN%"}

	_, err := execute(t, newCandidatesCmd(d), "", "user@example.com")
	require.Error(t, err)
}

func TestCredentialsSetCmd_InvalidEmail(t *testing.T) {
	d, _ := newTestDeps(t, output.FormatPlain)

	_, err := execute(t, newCredentialsSetCmd(d), "pw\n", "no-at-sign")
	require.Error(t, err)
}
