// Package ui styles terminal output for the CLI with lipgloss.
//
// [Palette] is a small stylesheet of named styles. [Styles] is the palette the commands use.
// Colors degrade to plain text when the output is not a terminal.
package ui
