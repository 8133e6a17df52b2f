package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/DukeRupert/turnover/internal/domain"
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

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// statusLabel renders the overall verdict. A degraded summary is never shown
// as a clean result.
func statusLabel(s domain.FinalSummary) string {
	label := strings.ToUpper(strings.ReplaceAll(s.OverallStatus.String(), "_", " "))
	switch {
	case s.Degraded:
		return colorize(colorYellow, label+" (UNCERTAIN)")
	case s.OverallStatus == domain.OverallStatusAllClear:
		return colorize(colorGreen, label)
	case s.OverallStatus == domain.OverallStatusMajorConcerns:
		return colorize(colorRed, label)
	default:
		return colorize(colorYellow, label)
	}
}

// printResult writes a human readable report of an inspection.
func printResult(w io.Writer, result domain.InspectionResult) error {
	s := result.Summary
	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Status:"), statusLabel(s))
	fmt.Fprintf(w, "%s %d\n", colorize(colorBold, "Issues:"), s.TotalIssuesFound)
	if s.Summary != "" {
		fmt.Fprintf(w, "\n%s\n", s.Summary)
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROOM\tRESULT\tITEM\tCONDITION\tSEVERITY")
	for _, a := range result.RoomAssessments {
		verdict := "clear"
		switch {
		case a.Degraded:
			verdict = "UNCERTAIN"
		case a.DamageDetected:
			verdict = "damage"
		}
		if len(a.Items) == 0 {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\n", a.Room, verdict)
			continue
		}
		for i, item := range a.Items {
			room, v := a.Room.String(), verdict
			if i > 0 {
				room, v = "", ""
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", room, v, item.ItemName, item.Condition, item.Severity)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, a := range result.RoomAssessments {
		if a.Degraded && a.Notes != "" {
			fmt.Fprintf(w, "\n%s %s: %s\n", colorize(colorYellow, "note"), a.Room, a.Notes)
		}
	}

	if len(s.ItemsToCheck) > 0 {
		fmt.Fprintf(w, "\n%s\n", colorize(colorBold, "Check before the next guest:"))
		for _, item := range s.ItemsToCheck {
			fmt.Fprintf(w, "  - %s: %s\n", item.Room, item.Item)
		}
	}
	return nil
}
