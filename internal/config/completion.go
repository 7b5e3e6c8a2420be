package config

import "github.com/spf13/cobra"

// CompleteOutputFormat provides shell completion candidates for the --output flag.
func CompleteOutputFormat(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return formatNames(), cobra.ShellCompDirectiveNoFileComp
}

// CompleteConfigKey completes the first argument of "config get" and
// "config set", and the value of "config set".
func CompleteConfigKey(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	switch len(args) {
	case 0:
		return ValidKeys(), cobra.ShellCompDirectiveNoFileComp
	case 1:
		return KeyCompletions(args[0]), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// RegisterFlagCompletions wires completion functions for the persistent flags.
func RegisterFlagCompletions(cmd *cobra.Command) {
	_ = cmd.RegisterFlagCompletionFunc("output", CompleteOutputFormat)
	_ = cmd.RegisterFlagCompletionFunc("autoroute-file", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
	})
}
