package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Banner printed by the watch command
const Banner = `
  _                     _                 _       _
 | |___      _____  ___| |___      ____ _| |_ ___| |__
 | __\ \ /\ / / _ \/ _ \ __\ \ /\ / / _' | __/ __| '_ \
 | |_ \ V  V /  __/  __/ |_ \ V  V / (_| | || (__| | | |
  \__| \_/\_/ \___|\___|\__| \_/\_/ \__,_|\__\___|_| |_|
`

// Out is where the Print helpers write.
var Out io.Writer = os.Stdout

type palette struct {
	cyan, yellow, red, green, magenta, dim string
}

var (
	darkPalette = palette{
		cyan: "\033[96m%s\033[0m", yellow: "\033[93m%s\033[0m", red: "\033[91m%s\033[0m",
		green: "\033[92m%s\033[0m", magenta: "\033[95m%s\033[0m", dim: "\033[2m%s\033[0m",
	}
	lightPalette = palette{
		cyan: "\033[34m%s\033[0m", yellow: "\033[33m%s\033[0m", red: "\033[31m%s\033[0m",
		green: "\033[32m%s\033[0m", magenta: "\033[35m%s\033[0m", dim: "\033[90m%s\033[0m",
	}
	plainPalette = palette{"%s", "%s", "%s", "%s", "%s", "%s"}

	mu     sync.RWMutex
	active = darkPalette
)

// SetTheme picks the palette for the Theme setting. "Dark" uses bright
// colours, "Light" darker ones, "Plain" none.
func SetTheme(theme string) {
	mu.Lock()
	defer mu.Unlock()
	switch theme {
	case "Light":
		active = lightPalette
	case "Plain":
		active = plainPalette
	default:
		active = darkPalette
	}
}

func paint(pick func(palette) string, text string) string {
	mu.RLock()
	format := pick(active)
	mu.RUnlock()
	return fmt.Sprintf(format, text)
}

func Cyan(text string) string    { return paint(func(p palette) string { return p.cyan }, text) }
func Yellow(text string) string  { return paint(func(p palette) string { return p.yellow }, text) }
func Red(text string) string     { return paint(func(p palette) string { return p.red }, text) }
func Green(text string) string   { return paint(func(p palette) string { return p.green }, text) }
func Magenta(text string) string { return paint(func(p palette) string { return p.magenta }, text) }
func Dim(text string) string     { return paint(func(p palette) string { return p.dim }, text) }

// PrintBanner prints the banner
func PrintBanner() {
	fmt.Fprint(Out, Cyan(Banner))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Out, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Out, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(Out, Green(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	fmt.Fprintf(Out, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Out, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Out, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(Out, Magenta(msg))
}
