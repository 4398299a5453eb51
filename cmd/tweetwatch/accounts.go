package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tweetwatch/pkg/accounts"
	"tweetwatch/pkg/logger"
	"tweetwatch/pkg/settings"
	"tweetwatch/pkg/ui"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage tracked accounts",
	Long: `Manage the accounts tracked for new posts.

Each account has a mode:
  View          show a desktop notification
  Sound         announce the post aloud
  ViewAndSound  both
  Disabled      keep the account but do not poll it

Changes are saved to the config file immediately and picked up by a
running 'tweetwatch watch'.`,
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked accounts",
	Args:  cobra.NoArgs,
	RunE:  runAccountsList,
}

var accountsAddCmd = &cobra.Command{
	Use:   "add <handle> [mode]",
	Short: "Track an account (mode defaults to View)",
	Example: `  tweetwatch accounts add nasa
  tweetwatch accounts add @golang ViewAndSound`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAccountsAdd,
}

var accountsRemoveCmd = &cobra.Command{
	Use:     "remove <handle>",
	Aliases: []string{"rm"},
	Short:   "Stop tracking an account",
	Args:    cobra.ExactArgs(1),
	RunE:    runAccountsRemove,
}

var accountsModeCmd = &cobra.Command{
	Use:   "mode <handle> <mode>",
	Short: "Change how an account notifies",
	Args:  cobra.ExactArgs(2),
	RunE:  runAccountsMode,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsAddCmd)
	accountsCmd.AddCommand(accountsRemoveCmd)
	accountsCmd.AddCommand(accountsModeCmd)
}

// openRegistry returns the account registry backed by the settings store.
func openRegistry() (*accounts.Registry, *settings.Store, error) {
	store, err := openSettings()
	if err != nil {
		return nil, nil, err
	}
	list := accounts.Parse(store.Settings().TwitterAccounts)
	return accounts.NewRegistry(list, store), store, nil
}

func parseModeArg(s string) (accounts.Mode, error) {
	mode := accounts.ParseMode(s)
	if mode == accounts.Disabled && !strings.EqualFold(strings.TrimSpace(s), "Disabled") {
		return 0, fmt.Errorf("unknown mode %q (use View, Sound, ViewAndSound or Disabled)", s)
	}
	return mode, nil
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	registry, store, err := openRegistry()
	if err != nil {
		return err
	}

	list := registry.Snapshot()
	if len(list) == 0 {
		ui.PrintWarning("No accounts tracked")
		return nil
	}

	tw := tabwriter.NewWriter(ui.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, ui.Cyan("HANDLE")+"\t"+ui.Cyan("MODE"))
	for _, a := range list {
		mode := a.Mode.String()
		if a.Mode == accounts.Disabled {
			mode = ui.Dim(mode)
		}
		fmt.Fprintf(tw, "%s\t%s\n", a.Handle, mode)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	ui.PrintInfo("Saved in", store.Path())
	return nil
}

func runAccountsAdd(cmd *cobra.Command, args []string) error {
	mode := accounts.View
	if len(args) == 2 {
		var err error
		if mode, err = parseModeArg(args[1]); err != nil {
			return err
		}
	}

	registry, _, err := openRegistry()
	if err != nil {
		return err
	}
	if err := registry.Add(args[0], mode); err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{"account": args[0], "mode": mode.String()}).Info("Account added")
	ui.PrintSuccess(fmt.Sprintf("Tracking %s (%s)", accounts.NormalizeHandle(args[0]), mode))
	return nil
}

func runAccountsRemove(cmd *cobra.Command, args []string) error {
	registry, _, err := openRegistry()
	if err != nil {
		return err
	}
	if err := registry.Remove(args[0]); err != nil {
		return err
	}
	ui.PrintSuccess("Stopped tracking " + accounts.NormalizeHandle(args[0]))
	return nil
}

func runAccountsMode(cmd *cobra.Command, args []string) error {
	mode, err := parseModeArg(args[1])
	if err != nil {
		return err
	}
	registry, _, err := openRegistry()
	if err != nil {
		return err
	}
	if err := registry.SetMode(args[0], mode); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("%s is now %s", accounts.NormalizeHandle(args[0]), mode))
	return nil
}
