package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#1A2A6C") // deep blue
	accentColor  = lipgloss.Color("#FDBB2D") // amber
	warnColor    = lipgloss.Color("#B21F1F") // red
	mutedColor   = lipgloss.Color("#888888") // gray
	textColor    = lipgloss.Color("#FFFFFF") // white
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			Background(primaryColor).
			Padding(0, 1).
			MarginBottom(1)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(warnColor)

	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)
)

// PrintVersion prints version information
func PrintVersion(version string) {
	fmt.Println(TitleStyle.Render("earshot"))
	fmt.Printf("%s %s\n", KeyStyle.Render("Version:"), ValueStyle.Render(version))
	fmt.Println()
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

// Field is one key/value line of the startup banner.
type Field struct {
	Key   string
	Value string
}

// Banner renders the startup summary.
func Banner(version string, fields ...Field) string {
	var sb strings.Builder
	sb.WriteString(TitleStyle.Render("earshot " + version))
	sb.WriteString("\n")

	width := 0
	for _, f := range fields {
		width = max(width, len(f.Key))
	}
	for _, f := range fields {
		key := fmt.Sprintf("%-*s", width+1, f.Key+":")
		sb.WriteString("  ")
		sb.WriteString(KeyStyle.Render(key))
		sb.WriteString(" ")
		sb.WriteString(ValueStyle.Render(f.Value))
		sb.WriteString("\n")
	}
	return sb.String()
}
