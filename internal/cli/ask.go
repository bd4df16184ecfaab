package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"document-qa/internal/models"
)

var askShowMatches bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the active document",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askShowMatches, "matches", false, "print the retrieved chunks")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return models.ErrEmptyQuestion
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.Answerer.Answer(cmd.Context(), question)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	cmd.Println(resp.Content)
	if askShowMatches {
		cmd.Println()
		for i, m := range resp.Matches {
			cmd.Printf("  [%d] %s (%.2f)\n", i+1, m.DocumentName, m.Score)
		}
	}
	return nil
}
