// Package ui provides terminal output helpers: colors, message printing
// and per-target summary lines.
package ui

import "fmt"

// ASCII logo for the application
const ASCIILogo = `
   ██████╗██╗██╗   ██╗██╗████████╗██████╗ ██╗
  ██╔════╝██║██║   ██║██║╚══██╔══╝██╔══██╗██║
  ██║     ██║██║   ██║██║   ██║   ██║  ██║██║
  ██║     ██║╚██╗ ██╔╝██║   ██║   ██║  ██║██║
  ╚██████╗██║ ╚████╔╝ ██║   ██║   ██████╔╝███████╗
   ╚═════╝╚═╝  ╚═══╝  ╚═╝   ╚═╝   ╚═════╝ ╚══════╝
          CIVITAI MEDIA DOWNLOAD UTILITY
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// quietMode suppresses all non-error output when set
var quietMode bool

// SetQuietMode toggles suppression of informational output
func SetQuietMode(quiet bool) {
	quietMode = quiet
}

// IsQuietMode reports whether informational output is suppressed
func IsQuietMode() bool {
	return quietMode
}

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	if quietMode {
		return
	}
	fmt.Print(Cyan(ASCIILogo))
}

// PrintError prints an error message in red. Errors print even in quiet mode.
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Println(Red(msg + ": " + fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Println(Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	if quietMode {
		return
	}
	fmt.Println(Green(msg))
}

// PrintInfo prints an info message in cyan
func PrintInfo(label string, value string) {
	if quietMode {
		return
	}
	fmt.Printf("%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if quietMode {
		return
	}
	if len(args) > 0 {
		fmt.Println(Yellow(msg + ": " + fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Println(Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	if quietMode {
		return
	}
	fmt.Println(Magenta(msg))
}

// PrintTargetSummary prints the one-line outcome for a processed target.
// Counts are passed individually to keep this package free of domain types.
func PrintTargetSummary(target string, total, downloaded, skippedExisting, skippedDryRun, failed int) {
	if quietMode {
		return
	}

	line := fmt.Sprintf("%s: %d items, %d downloaded, %d skipped",
		target, total, downloaded, skippedExisting+skippedDryRun)
	if failed > 0 {
		line += fmt.Sprintf(", %s", Red(fmt.Sprintf("%d failed", failed)))
		fmt.Println(Yellow(line))
		return
	}
	fmt.Println(Green(line))
}
