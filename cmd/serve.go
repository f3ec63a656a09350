package cmd

import (
	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/mlpierce22/triplechat/internal/config"
	"github.com/mlpierce22/triplechat/internal/relay"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the streaming relay server",
	Long: `Run the relay that fronts the upstream model providers. Each endpoint
accepts a JSON message history and streams the reply back as server-sent
events (data: {"text": ...} frames closed by [DONE]).`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log.SetLevel(log.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Serve.Port = servePort
	}

	log.WithField("openai_key", cfg.OpenAIAPIKey != "").
		WithField("anthropic_key", cfg.AnthropicAPIKey != "").
		WithField("gemini_key", cfg.GeminiAPIKey != "").
		Info("relay: starting")

	return relay.New(cfg).Run()
}
