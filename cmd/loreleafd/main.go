package main

import (
	"fmt"
	"os"

	"github.com/loreleaf-app/loreleaf/internal/cli"
	"github.com/loreleaf-app/loreleaf/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "loreleafd",
		Short: "Loreleaf retrieval daemon",
		Long:  "Loreleaf daemon for running the retrieval API server and inspecting query decisions",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.ExplainCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
