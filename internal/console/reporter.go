// Package console renders user-facing status for the supervisor.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	ruleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true)
)

const ruleWidth = 60

// Reporter writes startup banners and diagnostics.
type Reporter struct {
	out io.Writer
	err io.Writer
}

func NewReporter() *Reporter {
	return &Reporter{out: os.Stdout, err: os.Stderr}
}

// NewReporterTo writes both streams to w.
func NewReporterTo(w io.Writer) *Reporter {
	return &Reporter{out: w, err: w}
}

// ServingStarted prints the banner shown once the worker is ready.
func (r *Reporter) ServingStarted() {
	fmt.Fprintln(r.out, r.rule("Serving started"))
	fmt.Fprintln(r.out)
}

// StartupFailed prints the worker exit code and the likely causes.
func (r *Reporter) StartupFailed(exitCode int, causes []string) {
	fmt.Fprintln(r.err, errorStyle.Render(fmt.Sprintf("✗ Recognizer worker failed to start (exit code: %d)", exitCode)))
	if len(causes) == 0 {
		return
	}
	fmt.Fprintln(r.err, warningStyle.Render("Check the following possible causes:"))
	for i, cause := range causes {
		fmt.Fprintln(r.err, warningStyle.Render(fmt.Sprintf("  %d. %s", i+1, cause)))
	}
}

// StartupCancelled notes that shutdown was requested while the model loaded.
func (r *Reporter) StartupCancelled() {
	fmt.Fprintln(r.out, warningStyle.Render("⚠ Shutdown requested while loading the model"))
}

// Success prints a one-line success message.
func (r *Reporter) Success(msg string) {
	fmt.Fprintln(r.out, successStyle.Render("✓ "+msg))
}

// Stopped prints the final line after the worker has been stopped.
func (r *Reporter) Stopped() {
	fmt.Fprintln(r.out, subtleStyle.Render("Recognizer stopped"))
}

func (r *Reporter) rule(title string) string {
	label := " " + title + " "
	pad := ruleWidth - lipgloss.Width(label)
	if pad < 2 {
		pad = 2
	}
	left := pad / 2
	return ruleStyle.Render(strings.Repeat("─", left) + label + strings.Repeat("─", pad-left))
}

// Personal.AI order the ending
