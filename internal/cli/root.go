// Package cli provides the Cobra command tree and output wiring for imapdetect.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tbckr/imapdetect/internal/config"
	"github.com/tbckr/imapdetect/internal/imapconf"
	"github.com/tbckr/imapdetect/internal/output"
	"github.com/tbckr/imapdetect/internal/version"
	"github.com/tbckr/imapdetect/internal/worker"
)

// newRootCmd builds the top-level Cobra command for imapdetect.
// Callers must set stdout/stderr via cmd.SetOut / cmd.SetErr before Execute.
func newRootCmd() *cobra.Command {
	// d is populated by PersistentPreRunE before any subcommand's RunE runs.
	// INVARIANT: Cobra only executes the innermost PersistentPreRunE in the
	// command chain. If a future subcommand defines its own PersistentPreRunE,
	// the root hook will NOT run and d will be zero-valued. Do not add
	// PersistentPreRunE to any subcommand without also re-calling buildDeps.
	var d deps

	cmd := &cobra.Command{
		Use:   "imapdetect",
		Short: "Discover the IMAP server settings of an email address",
		Long: `imapdetect finds the IMAP host, port and security mode for an email address.

It tries autodiscovery documents first (Mozilla autoconfig and Microsoft
Autodiscover), then DNS SRV records, then well-known host names, and confirms
a candidate by logging in. A rejected password still confirms the settings.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Completion must not touch the filesystem: buildDeps creates the
			// config dir and file.
			if isCompletionCmd(cmd) {
				return nil
			}
			resolved, err := buildDeps(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			d = *resolved
			return nil
		},
	}

	config.RegisterFlags(cmd.PersistentFlags())
	config.RegisterFlagCompletions(cmd)

	cmd.Version = version.Get().Version
	cmd.SetVersionTemplate("imapdetect version {{.Version}}\n")

	cmd.AddGroup(
		&cobra.Group{ID: "discovery", Title: "Discovery Commands:"},
		&cobra.Group{ID: "utility", Title: "Utility Commands:"},
	)

	cmd.AddCommand(
		newDetectCmd(&d),
		newCandidatesCmd(&d),
		newCredentialsCmd(&d),
		newConfigCmd(&d),
		newVersionCmd(&d),
	)
	cmd.SetCompletionCommandGroupID("utility")

	return cmd
}

// isCompletionCmd reports whether cmd is cobra's completion command, one of
// its shell subcommands, or the hidden request handler behind tab-completion.
func isCompletionCmd(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return true
		}
	}
	return false
}

// Execute builds the root command and runs it with os.Args.
func Execute(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := newRootCmd()
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}

// resolveInputs returns positional args, or reads non-empty lines from stdin when
// no args are provided. Returns an error if stdin is an interactive terminal with
// no args (i.e. the user forgot to pass an argument or pipe input).
func resolveInputs(cmd *cobra.Command, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	r := cmd.InOrStdin()
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec // uintptr→int is safe for file descriptors; they fit in int on all supported platforms
		return nil, fmt.Errorf("no input: pass an email address or pipe stdin")
	}
	inputs, err := worker.ReadInputs(r)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no input: stdin contained no email addresses")
	}
	return inputs, nil
}

// writeResult formats and writes a result to stdout.
func writeResult(stdout io.Writer, d *deps, result any) error {
	if err := output.Write(stdout, d.format, result); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// writeResults logs failed and skipped inputs and writes the rest, as a
// single result when only one remains.
func writeResults(stdout io.Writer, d *deps, results []worker.Result[*imapconf.Result], keep func(*imapconf.Result) bool, skipMsg string) error {
	var valid []*imapconf.Result
	for _, r := range results {
		if r.Err != nil {
			d.logger.Error("detection failed", "input", r.Input, "error", r.Err)
			continue
		}
		if r.Output == nil || !keep(r.Output) {
			d.logger.Info(skipMsg, "input", r.Input)
			continue
		}
		valid = append(valid, r.Output)
	}
	switch len(valid) {
	case 0:
		return nil
	case 1:
		return writeResult(stdout, d, valid[0])
	default:
		return writeResult(stdout, d, &imapconf.MultiResult{Results: valid})
	}
}
