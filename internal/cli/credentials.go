package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tbckr/imapdetect/internal/imapconf"
)

func newCredentialsCmd(d *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "credentials",
		Short:   "Manage IMAP passwords stored in the keyring",
		GroupID: "utility",
	}
	cmd.AddCommand(
		newCredentialsSetCmd(d),
		newCredentialsDeleteCmd(d),
	)
	return cmd
}

func newCredentialsSetCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "set <email>",
		Short: "Store the password for an address, read from stdin",
		Long: `Store the password for an address in the keyring. The password is read
from stdin: prompted for without echo on a terminal, otherwise the first line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := args[0]
			if _, _, err := imapconf.SplitAddress(email); err != nil {
				return err
			}
			password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if password == "" {
				return fmt.Errorf("empty password")
			}
			store, err := d.credentialStore()
			if err != nil {
				return err
			}
			if err := store.SetPassword(email, password); err != nil {
				return err
			}
			d.logger.Info("password stored", "email", email)
			return nil
		},
	}
}

func newCredentialsDeleteCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <email>",
		Aliases: []string{"rm"},
		Short:   "Remove the stored password for an address",
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			store, err := d.credentialStore()
			if err != nil {
				return err
			}
			return store.Delete(args[0])
		},
	}
}

// readPassword prompts without echo when r is a terminal and otherwise reads
// the first line of r.
func readPassword(r io.Reader, prompt io.Writer) (string, error) {
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec // file descriptors fit in int
		if _, err := fmt.Fprint(prompt, "Password: "); err != nil {
			return "", err
		}
		b, err := term.ReadPassword(int(f.Fd())) //nolint:gosec // file descriptors fit in int
		_, _ = fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
