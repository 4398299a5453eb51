package main

import (
	"fmt"
	"strings"

	"tweetwatch/pkg/config"
	"tweetwatch/pkg/ui"
)

// printFirstRunHints explains the basics the first time watch runs.
func printFirstRunHints(cfg *config.Config) {
	out := ui.Out
	rule := strings.Repeat("=", 72)

	fmt.Fprintln(out, rule)
	ui.PrintHighlight("Welcome to tweetwatch")
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out)

	fmt.Fprintln(out, ui.Cyan("1. Track some accounts"))
	fmt.Fprintln(out, "   tweetwatch accounts add nasa View")
	fmt.Fprintln(out, "   tweetwatch accounts add golang ViewAndSound")
	fmt.Fprintln(out)

	fmt.Fprintln(out, ui.Cyan("2. Give the browser your session (optional)"))
	fmt.Fprintln(out, "   Some timelines only show up when logged in. In a desktop browser:")
	fmt.Fprintln(out, "   - log in to the site")
	fmt.Fprintln(out, "   - export its cookies as JSON with a cookie export extension")
	fmt.Fprintln(out, "   - tweetwatch cookies import main cookies.json --use")
	fmt.Fprintln(out)

	fmt.Fprintln(out, ui.Cyan("3. What to expect"))
	fmt.Fprintf(out, "   The first poll only learns what is already there; you will be told\n")
	fmt.Fprintf(out, "   about posts that appear after it. Polls run every %s.\n", cfg.UpdateInterval())
	fmt.Fprintln(out)

	ui.PrintWarning("Keep your exported cookies private. Anyone holding them is logged in as you.")
	fmt.Fprintln(out, rule)
}
