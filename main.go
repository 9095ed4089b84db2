// Package main provides the entry point of the like-goal campaign registry service
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const programName = "likebounty"

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Sponsored like-goal campaigns with escrowed rewards",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCommand(),
		migrateCommand(),
		issueTokenCommand(),
		fallbackCommand(),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		os.Exit(1)
	}
}
