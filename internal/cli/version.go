package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbckr/imapdetect/internal/output"
	"github.com/tbckr/imapdetect/internal/version"
)

func newVersionCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Print the imapdetect version",
		Args:    cobra.NoArgs,
		GroupID: "utility",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			if d.format == output.FormatJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(),
				"imapdetect version %s (commit: %s, built: %s)\n",
				info.Version, info.Commit, info.Date)
			return err
		},
	}
}
