// areafans-config is the terminal front-end for choosing which fans are
// left out of the area aggregates.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/nerrad567/area-fans/internal/tui"
)

func main() {
	url := pflag.StringP("url", "u", envOr("AREAFANS_URL", "http://localhost:8099"), "base URL of the Area Fans API")
	token := pflag.StringP("token", "t", os.Getenv("AREAFANS_TOKEN"), "API bearer token (see areafans --print-token)")
	pflag.Parse()

	model := tui.NewModel(tui.NewClient(*url, *token))
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running app: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
