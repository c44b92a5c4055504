package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds the picker styles. The zero Theme renders plain text.
type Theme struct {
	Header   lipgloss.Style
	Group    lipgloss.Style
	Selected lipgloss.Style
	Dim      lipgloss.Style
	Help     lipgloss.Style
}

// LoadTheme resolves the theme from a name (the SSH_LAUNCHER_THEME value):
// none | plain | dark | catppuccin. NO_COLOR disables styling regardless.
func LoadTheme(name string) Theme {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return PlainTheme()
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none", "off", "plain":
		return PlainTheme()
	case "catppuccin", "catppuccin-mocha", "mocha":
		return CatppuccinMochaTheme()
	default:
		return DarkTheme()
	}
}

// PlainTheme disables styling.
func PlainTheme() Theme {
	s := lipgloss.NewStyle()
	return Theme{Header: s, Group: s, Selected: s, Dim: s, Help: s}
}

// DarkTheme is the default palette for dark terminals.
func DarkTheme() Theme {
	return Theme{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		Group:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		Dim:      lipgloss.NewStyle().Faint(true),
		Help:     lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	}
}

// CatppuccinMochaTheme uses the Catppuccin Mocha palette.
func CatppuccinMochaTheme() Theme {
	return Theme{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#cba6f7")),
		Group:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#b4befe")),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#fab387")),
		Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7086")),
		Help:     lipgloss.NewStyle().Foreground(lipgloss.Color("#94e2d5")),
	}
}
