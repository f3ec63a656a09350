package cmd

import (
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "triplechat",
	Short: "Chat with three language models side by side",
	Long: `triplechat lets you converse with several model backends at once and
broadcast one message to all of them, watching each reply stream in.

Examples:
  triplechat chat            # open the triple-pane TUI
  triplechat serve           # run the streaming relay the TUI talks to`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cobra.OnInitialize(func() {
		log.SetHandler(text.New(os.Stderr))
		if verbose {
			log.SetLevel(log.DebugLevel)
		} else {
			log.SetLevel(log.WarnLevel)
		}
	})
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
