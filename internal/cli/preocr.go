package cli

import (
	"github.com/spf13/cobra"

	"document-qa/internal/helper"
	"document-qa/internal/preocr"
)

var preocrCmd = &cobra.Command{
	Use:   "preocr [file]",
	Short: "Check whether a file needs OCR",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		decision, err := preocr.Classify(args[0])
		if err != nil {
			return err
		}
		helper.PrettyPrint(decision)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(preocrCmd)
}
