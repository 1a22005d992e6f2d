package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	configPath string
	workdir    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "blog-keywords",
		Short: "Extract SEO keywords from a blog and its articles",
		Long: `Fetches a blog's main page and up to ten linked articles, saves each page as a
PDF document and asks a generative AI model for SEO and paid media keywords.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file (default configs/blog-keywords.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&workdir, "workdir", "", "directory for generated documents (overrides config workdir)")

	rootCmd.AddCommand(
		createRunCmd(),
		createFetchCmd(),
		createServeCmd(),
		createVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func createVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "blog-keywords", version)
		},
	}
}
