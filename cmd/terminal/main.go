package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	themeFlag := flag.String("theme", "", "UI theme (cyan, amber, dracula)")
	listThemes := flag.Bool("list-themes", false, "List all available themes")
	flag.Parse()

	if *listThemes {
		fmt.Println("Available themes:")
		for _, theme := range ListThemes() {
			fmt.Printf("  - %s\n", theme)
		}
		os.Exit(0)
	}

	selectedTheme := *themeFlag
	if selectedTheme == "" {
		selectedTheme = os.Getenv("METROID_THEME")
	}
	if selectedTheme == "" {
		selectedTheme = string(ThemeCyan)
	}

	theme := ThemeName(selectedTheme)
	if !isKnownTheme(theme) {
		fmt.Printf("Invalid theme '%s'. Use --list-themes to see available options.\n", theme)
		os.Exit(1)
	}

	m := initialModel(theme)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	m.shutdown()
	if err != nil {
		slog.Error("error running program", "error", err)
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}
