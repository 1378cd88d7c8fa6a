package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Sprint color functions for building styled strings.
var (
	Bold        = color.New(color.Bold).SprintFunc()
	Dim         = color.New(color.Faint).SprintFunc()
	Cyan        = color.New(color.FgCyan).SprintFunc()
	Green       = color.New(color.FgGreen).SprintFunc()
	Red         = color.New(color.FgRed).SprintFunc()
	Yellow      = color.New(color.FgYellow).SprintFunc()
	Magenta     = color.New(color.FgMagenta).SprintFunc()
	BoldCyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen   = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed     = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow  = color.New(color.Bold, color.FgYellow).SprintFunc()
	BoldMagenta = color.New(color.Bold, color.FgMagenta).SprintFunc()
	BoldWhite   = color.New(color.Bold, color.FgWhite).SprintFunc()
)

// PrintLogo renders the colored loomplan logo to stderr.
func PrintLogo() {
	w := os.Stderr
	frame := color.New(color.FgCyan)
	bars := color.New(color.FgYellow)
	sep := color.New(color.FgCyan)
	brand := color.New(color.Bold, color.FgMagenta)
	tag := color.New(color.Faint)

	fmt.Fprintln(w)
	frame.Fprintln(w, "   +--------------------------+")
	bars.Fprintln(w, "   |  ==--      ==----        |")
	bars.Fprintln(w, "   |     ==========           |")
	sep.Fprintln(w, "   |==========================|")
	brand.Fprintln(w, "   |  L  O  O  M  P  L  A  N  |")
	sep.Fprintln(w, "   |==========================|")
	bars.Fprintln(w, "   |        ==------  ==--    |")
	frame.Fprintln(w, "   +--------------------------+")
	tag.Fprintf(w, "   %s Critical-path scheduling\n", Dim("⏱"))
	fmt.Fprintln(w)
}

// CritIcon returns the critical-path marker for a scheduled task.
func CritIcon(isCritical bool) string {
	if isCritical {
		return BoldYellow("⚡")
	}
	return " "
}

// StatusBadge returns a colored badge for a dependency edge status.
func StatusBadge(status string) string {
	switch status {
	case "accepted":
		return Green("accepted")
	case "rejected":
		return Red("rejected")
	case "suggested":
		return Yellow("suggested")
	default:
		return Dim(status)
	}
}

// StaleBadge returns a warning badge when a schedule is flagged stale.
func StaleBadge(stale bool) string {
	if stale {
		return BoldYellow("⚠ stale")
	}
	return Green("fresh")
}
