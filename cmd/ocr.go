package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"examai/internal/logger"
	"examai/internal/ocr"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr [image-file]",
	Short: "Extract text from an image using Cloud Vision OCR",
	Long: `Run a local image file through the synchronous OCR path and print the
extracted text. Useful for verifying Google Cloud credentials and the
Vision API setup without starting the server.

Required environment variables:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string`,
	Example: `  # Extract text from a scanned page
  examai ocr scan.png

  # Output the full structured result as JSON
  examai ocr scan.png --json`,
	Args: cobra.ExactArgs(1),
	RunE: runOCR,
}

func init() {
	rootCmd.AddCommand(ocrCmd)

	ocrCmd.Flags().Bool("json", false, "Output the structured result as JSON")
	ocrCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
}

func runOCR(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ocr-cmd")

	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	imagePath := args[0]

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to read image file: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("image file is empty: %s", imagePath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)
	defer cancel()

	// The async PDF path needs a storage gateway; the sync path used here
	// does not.
	service, err := ocr.NewGoogleVisionService(ctx, nil, 0)
	if err != nil {
		return fmt.Errorf("failed to create OCR service: %w", err)
	}
	defer func() {
		if closeErr := service.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close Vision client")
		}
	}()

	result, err := service.DetectDocumentText(ctx, data)
	if err != nil {
		return fmt.Errorf("OCR processing failed: %w", err)
	}
	if result.Error != "" {
		return fmt.Errorf("OCR processing failed: %s", result.Error)
	}

	log.Info().
		Str("file", imagePath).
		Int("text_length", len(result.FullText)).
		Int("pages", len(result.StructuredData)).
		Msg("OCR processing completed")

	if jsonOutput {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println(result.FullText)
	return nil
}
