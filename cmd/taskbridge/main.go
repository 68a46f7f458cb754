package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "taskbridge",
	Short: "Asana bridge: CLI and MCP tool server",
	Long: `taskbridge talks to the Asana API from the command line and serves the
same operations to MCP clients. Task notes and comments are exchanged as
markdown and converted to Asana rich text on the way up.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the taskbridge version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("taskbridge version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(sectionsCmd)
	rootCmd.AddCommand(workspacesCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
