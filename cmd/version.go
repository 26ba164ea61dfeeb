// File: cmd/version.go
package cmd

import "github.com/spf13/cobra"

// Version is the application version, set at build time:
// go build -ldflags "-X github.com/xkilldash9x/pagechain/cmd.Version=1.0.0"
var Version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints the pagechain version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(Version)
		},
	}
}
