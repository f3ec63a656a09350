package cmd

import (
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/apex/log/handlers/text"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mlpierce22/triplechat/internal/config"
	"github.com/mlpierce22/triplechat/internal/tui"
)

var chatLogFile string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the triple-pane chat TUI",
	Long: `Open a terminal UI with three model conversations side by side.

Keyboard shortcuts:
  Enter   - Send message
  Tab     - Cycle send target (all models / single pane)
  Ctrl+R  - Reset all conversations
  Esc     - Stop in-flight streams
  Ctrl+C  - Quit`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatLogFile, "log-file", "", "Write diagnostics to a file instead of discarding them")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	// Stderr belongs to the TUI; diagnostics go to a file or nowhere.
	if chatLogFile != "" {
		f, err := os.OpenFile(chatLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		log.SetHandler(text.New(f))
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetHandler(discard.New())
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	p := tea.NewProgram(tui.New(cfg), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
