package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tweetwatch/pkg/extract"
	"tweetwatch/pkg/ui"
)

var extractSelector string

var extractCmd = &cobra.Command{
	Use:   "extract <file.html>",
	Short: "Extract posts from a saved page",
	Long: `Run the post extractor over a saved timeline page and print the posts it
finds as YAML. Useful for checking extraction after the site's markup
changes. The configured Selector is used unless --selector is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVar(&extractSelector, "selector", "", "container class hint")
}

func runExtract(cmd *cobra.Command, args []string) error {
	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read page: %w", err)
	}

	selector := extractSelector
	if selector == "" {
		if cfg, _, err := loadConfig(nil); err == nil {
			selector = cfg.Settings.Selector
		}
	}

	chain := extract.NewChain()
	posts, next, err := chain.Extract(string(content), selector)
	if err != nil {
		return err
	}

	ui.PrintInfo("Strategy", chain.LastStrategy())
	if chain.LastStrategy() == extract.StrategyHeuristic {
		ui.PrintInfo("Selector", next)
	}
	ui.PrintInfo("Posts", fmt.Sprint(len(posts)))

	if len(posts) == 0 {
		return nil
	}
	out, err := yaml.Marshal(posts)
	if err != nil {
		return err
	}
	fmt.Fprint(ui.Out, string(out))
	return nil
}
