// Package ui provides theme and color support for the command-line output.
// It defines color schemes, ANSI escape helpers and lipgloss styles so the
// presentation layer stays consistent and honors NO_COLOR.
package ui
