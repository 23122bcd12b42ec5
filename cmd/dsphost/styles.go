package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#2F7FD8")
	accentColor  = lipgloss.Color("#FFA500")
	mutedColor   = lipgloss.Color("#888888")
	warnColor    = lipgloss.Color("#D8A02F")
	errorColor   = lipgloss.Color("#A40000")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			MarginTop(1)

	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	ValueStyle = lipgloss.NewStyle().
			Bold(true)

	WarnStyle = lipgloss.NewStyle().
			Foreground(warnColor)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			PaddingRight(2)

	cellStyle = lipgloss.NewStyle().
			PaddingRight(2)
)

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

// renderTable lays rows out in padded columns under a styled header.
func renderTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i, c := range r {
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}

	var sb strings.Builder
	line := func(style lipgloss.Style, cells []string) {
		parts := make([]string, len(cells))
		for i, c := range cells {
			parts[i] = style.Width(widths[i] + 2).Render(c)
		}
		sb.WriteString(strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, parts...), " "))
		sb.WriteString("\n")
	}
	line(headerStyle, header)
	for _, r := range rows {
		line(cellStyle, r)
	}
	return sb.String()
}

// StyledHelpPrinter creates a help printer with Lipgloss styling
func StyledHelpPrinter(options kong.HelpOptions) func(options kong.HelpOptions, ctx *kong.Context) error {
	return func(options kong.HelpOptions, ctx *kong.Context) error {
		var sb strings.Builder
		sb.WriteString(TitleStyle.Render("dsphost"))
		sb.WriteString("  ")
		sb.WriteString(KeyStyle.Render(ctx.Model.Help))
		sb.WriteString("\n")

		node := ctx.Selected()
		if node == nil {
			node = ctx.Model.Node
		}

		sb.WriteString(SectionStyle.Render("Usage:"))
		sb.WriteString("\n  ")
		sb.WriteString(node.Summary())
		sb.WriteString("\n")

		if cmds := node.Leaves(true); node == ctx.Model.Node && len(cmds) > 0 {
			sb.WriteString(SectionStyle.Render("Commands:"))
			sb.WriteString("\n")
			rows := make([][]string, 0, len(cmds))
			for _, c := range cmds {
				rows = append(rows, []string{c.Name, c.Help})
			}
			sb.WriteString(indent(renderTable([]string{"", ""}, rows)))
		}

		if len(node.Positional) > 0 {
			sb.WriteString(SectionStyle.Render("Arguments:"))
			sb.WriteString("\n")
			rows := make([][]string, 0, len(node.Positional))
			for _, p := range node.Positional {
				rows = append(rows, []string{"<" + p.Name + ">", p.Help})
			}
			sb.WriteString(indent(renderTable([]string{"", ""}, rows)))
		}

		var rows [][]string
		for _, group := range node.AllFlags(true) {
			for _, f := range group {
				if f.Hidden {
					continue
				}
				name := "--" + f.Name
				if f.Short != 0 {
					name = fmt.Sprintf("-%c, %s", f.Short, name)
				}
				help := f.Help
				if f.Default != "" {
					help += KeyStyle.Render(fmt.Sprintf(" (default: %s)", f.Default))
				}
				rows = append(rows, []string{name, help})
			}
		}
		if len(rows) > 0 {
			sb.WriteString(SectionStyle.Render("Flags:"))
			sb.WriteString("\n")
			sb.WriteString(indent(renderTable([]string{"", ""}, rows)))
		}

		fmt.Fprint(ctx.Stdout, sb.String())
		return nil
	}
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	var sb strings.Builder
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		sb.WriteString("  ")
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	return sb.String()
}
