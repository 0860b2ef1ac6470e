package main

import (
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Styled output helpers, matching the green/yellow/red/cyan status-line
// convention used across the rest of the coordination tooling.
var (
	colorGreen  = color.New(color.FgGreen).SprintFunc()
	colorYellow = color.New(color.FgYellow).SprintFunc()
	colorRed    = color.New(color.FgRed).SprintFunc()
	colorCyan   = color.New(color.FgCyan).SprintFunc()
	colorGray   = color.New(color.FgHiBlack).SprintFunc()
	colorBold   = color.New(color.Bold).SprintFunc()
)

func init() {
	color.NoColor = !isTTY()
}

// isTTY reports whether both stdin and stdout are attached to a terminal.
// Piped output (logs redirected to a file, a CI runner) disables color.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func statusLine(msg string) string { return colorCyan(msg) }
func actionLine(msg string) string { return colorGreen(msg) }
func warnLine(msg string) string   { return colorYellow(msg) }
func errorLine(msg string) string  { return colorRed(msg) }
func detailLine(msg string) string { return colorGray(msg) }
