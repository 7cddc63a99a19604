package main

import (
	"fmt"
	"os"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printMarked(color, mark, format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(color, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { printMarked(colorGreen, "✓", format, args...) }
func printError(format string, args ...any)   { printMarked(colorRed, "✗", format, args...) }
func printWarning(format string, args ...any) { printMarked(colorYellow, "⚠", format, args...) }
func printStep(format string, args ...any)    { printMarked(colorCyan, "→", format, args...) }

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

// statusColor maps the tender/run/checklist status vocabulary to one display
// color so every listing renders statuses the same way.
func statusColor(status string) string {
	switch status {
	case "approved", "completed", "ok", "not_applicable":
		return colorGreen
	case "ready_for_review", "pending", "cancelled":
		return colorYellow
	case "rejected", "failed", "missing":
		return colorRed
	default:
		return colorCyan
	}
}

// statusCell pads status to width before coloring; ANSI escapes would
// otherwise count against the column width.
func statusCell(status string, width int) string {
	return colorize(statusColor(status), fmt.Sprintf("%-*s", width, status))
}

// printRunLog renders one persisted run log line with level styling.
func printRunLog(level, stepID, message string) {
	switch level {
	case "error":
		printError("[%s] %s", stepID, message)
	case "warn":
		printWarning("[%s] %s", stepID, message)
	default:
		printStep("[%s] %s", stepID, message)
	}
}

// checklistMark picks the review mark and color for a checklist item status.
func checklistMark(status string) (mark, color string) {
	switch status {
	case "ok", "not_applicable":
		return "✓", colorGreen
	case "pending":
		return "?", colorYellow
	default:
		return "✗", colorRed
	}
}

// shortID renders the 8-char id prefix used across listings.
func shortID(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return colorize(colorCyan, id)
}
