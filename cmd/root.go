package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"examai/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "examai",
	Short: "Exam paper ingestion service",
	Long: `examai ingests scanned exam documents: uploads land in Google Cloud
Storage, text is extracted with Cloud Vision OCR, a generative model turns
the text into a structured exam paper, and the result is stored in MongoDB.

Run "examai serve" to start the HTTP API and its background worker pool.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().Err(err).Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
