package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/insider-filings-crawler/internal/extract"
)

// newExtractCmd creates the 'extract' subcommand, which runs the extractor over a
// document on disk and prints the transactions as JSON.
func newExtractCmd() *cobra.Command {
	var docURL string
	cmd := &cobra.Command{
		Use:   "extract FILE",
		Short: "Extracts transactions from a downloaded filing",
		Long: `Runs the transaction extractor over a filing saved on disk. The accession
number is read from --url, or from the file name when --url is omitted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			path := args[0]
			// #nosec G304 -- operator-supplied path.
			body, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			if docURL == "" {
				docURL = filepath.ToSlash(path)
			}

			txs, err := extract.New(e.cfg.EDGAR.BaseURL).Extract(docURL, body)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(txs); err != nil {
				return fmt.Errorf("encode transactions: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&docURL, "url", "", "document URL the file was downloaded from")
	return cmd
}
