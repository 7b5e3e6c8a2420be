package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbckr/imapdetect/internal/credential"
	"github.com/tbckr/imapdetect/internal/imapconf"
	"github.com/tbckr/imapdetect/internal/worker"
)

func newDetectCmd(d *deps) *cobra.Command {
	var (
		password   string
		useKeyring bool
	)
	cmd := &cobra.Command{
		Use:   "detect <email...>",
		Short: "Discover and verify the IMAP settings of email addresses",
		Long: `Discover candidate IMAP settings and confirm them by logging in.

Candidates are tried one at a time in discovery order. Any reply that proves an
IMAP server is listening confirms the settings, including a rejected password,
so a password is only needed for servers that drop bad logins silently.

Addresses can be piped on stdin, one per line.`,
		GroupID: "discovery",
		Example: `  imapdetect detect user@example.com
  imapdetect detect --keyring user@example.com
  cat addresses.txt | imapdetect detect -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password != "" && useKeyring {
				return fmt.Errorf("--password and --keyring are mutually exclusive")
			}
			inputs, err := resolveInputs(cmd, args)
			if err != nil {
				return err
			}
			det, err := d.newDetector()
			if err != nil {
				return err
			}
			var store *credential.Store
			if useKeyring {
				if store, err = d.credentialStore(); err != nil {
					return err
				}
			}

			results := worker.Run(cmd.Context(), inputs, d.cfg.Concurrency, func(ctx context.Context, email string) (*imapconf.Result, error) {
				pw := password
				if store != nil {
					stored, err := store.Password(email)
					if err != nil {
						return nil, err
					}
					pw = stored
				}
				return det.Run(ctx, email, pw)
			})
			return writeResults(cmd.OutOrStdout(), d, results,
				func(r *imapconf.Result) bool { return r.Verified != nil },
				"no IMAP settings verified")
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password to log in with (default: the configured placeholder)")
	cmd.Flags().BoolVar(&useKeyring, "keyring", false, "read each address's password from the keyring")
	return cmd
}

func newCandidatesCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "candidates <email...>",
		Short: "List candidate IMAP settings without verifying them",
		Long: `List the candidates of the first discovery strategy that produces any:
autodiscovery documents, then DNS SRV records, then well-known host names.
No connection to an IMAP server is made.`,
		GroupID: "discovery",
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := resolveInputs(cmd, args)
			if err != nil {
				return err
			}
			det, err := d.newDetector()
			if err != nil {
				return err
			}
			results := worker.Run(cmd.Context(), inputs, d.cfg.Concurrency, det.Candidates)
			return writeResults(cmd.OutOrStdout(), d, results,
				func(r *imapconf.Result) bool { return !r.IsEmpty() },
				"no IMAP candidates found")
		},
	}
}
