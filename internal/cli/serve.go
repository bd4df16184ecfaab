package cli

import (
	"github.com/spf13/cobra"

	"document-qa/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the HTTP API:
  POST /ingest   multipart upload (field "file"), replaces the active document
  POST /query    {"question": "..."}
  GET  /health`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	return server.NewServer(addr, cfg.RAG.UploadDir, a.Ingestor, a.Answerer).Start(cmd.Context())
}
