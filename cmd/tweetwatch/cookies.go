package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tweetwatch/pkg/cookies"
	"tweetwatch/pkg/settings"
	"tweetwatch/pkg/ui"
	"tweetwatch/pkg/vault"
)

var cookiesCmd = &cobra.Command{
	Use:   "cookies",
	Short: "Inspect and store browser cookies",
	Long: `Manage the cookies the headless browser presents.

Export the cookies of a logged-in session with a browser extension as a
JSON array, then either point CookiesFileName at the file or import it into
the vault and set CookiesFileName to vault:<name>. Vault entries live in
the system keychain, or in a passphrase-encrypted file when no keychain is
available.`,
}

var cookiesCheckCmd = &cobra.Command{
	Use:   "check [file|vault:name]",
	Short: "Parse cookies and summarise them (default: configured source)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCookiesCheck,
}

var cookiesImportCmd = &cobra.Command{
	Use:   "import <name> <file|->",
	Short: "Store a cookie export in the vault",
	Example: `  tweetwatch cookies import main ~/Downloads/x.com.cookies.json
  pbpaste | tweetwatch cookies import main -`,
	Args: cobra.ExactArgs(2),
	RunE: runCookiesImport,
}

var cookiesForgetCmd = &cobra.Command{
	Use:   "forget <name>",
	Short: "Remove a cookie export from the vault",
	Args:  cobra.ExactArgs(1),
	RunE:  runCookiesForget,
}

var cookiesUse bool

func init() {
	rootCmd.AddCommand(cookiesCmd)
	cookiesCmd.AddCommand(cookiesCheckCmd)
	cookiesCmd.AddCommand(cookiesImportCmd)
	cookiesCmd.AddCommand(cookiesForgetCmd)

	cookiesImportCmd.Flags().BoolVar(&cookiesUse, "use", false, "also set CookiesFileName to the imported entry")
}

func openVault() (*vault.Manager, error) {
	return vault.NewManager("", vault.EnvPassphrase(func() (string, error) {
		return readSecret("Vault passphrase: ")
	}))
}

func runCookiesCheck(cmd *cobra.Command, args []string) error {
	var source string
	if len(args) == 1 {
		source = args[0]
	} else {
		store, err := openSettings()
		if err != nil {
			return err
		}
		source = store.Settings().CookiesFileName
	}
	if source == "" {
		ui.PrintWarning("No cookie source configured")
		return nil
	}

	loader := &cookies.Loader{}
	if strings.HasPrefix(source, cookies.VaultPrefix) {
		v, err := openVault()
		if err != nil {
			return err
		}
		loader.Vault = v
	}

	records, err := loader.Load(source)
	if err != nil {
		return err
	}
	ui.PrintInfo("Source", source)
	if len(records) == 0 {
		ui.PrintWarning("No cookies found")
		return nil
	}
	printCookies(records)
	return nil
}

func printCookies(records []cookies.Record) {
	now := time.Now()
	tw := tabwriter.NewWriter(ui.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, ui.Cyan("NAME")+"\t"+ui.Cyan("DOMAIN")+"\t"+ui.Cyan("VALUE")+"\t"+ui.Cyan("SAMESITE")+"\t"+ui.Cyan("EXPIRES"))
	for _, r := range records {
		expires := "session"
		if r.Expires != nil {
			t := time.Unix(int64(*r.Expires), 0)
			expires = t.Format(time.DateOnly)
			if t.Before(now) {
				expires = ui.Red(expires + " (expired)")
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Name, r.Domain, vault.Mask(r.Value), r.SameSite, expires)
	}
	tw.Flush()
}

func runCookiesImport(cmd *cobra.Command, args []string) error {
	name, file := args[0], args[1]

	var data []byte
	var err error
	if file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return fmt.Errorf("failed to read cookies: %w", err)
	}

	// Refuse to store something the watcher could not use.
	records, err := cookies.Parse(data, file)
	if err != nil {
		return err
	}

	v, err := openVault()
	if err != nil {
		return err
	}
	where, err := v.Put(name, data)
	if err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Stored %d cookies as %s%s (%s)", len(records), cookies.VaultPrefix, name, where))

	if cookiesUse {
		store, err := openSettings()
		if err != nil {
			return err
		}
		if err := store.Set(settings.KeyCookiesFileName, cookies.VaultPrefix+name); err != nil {
			return err
		}
		ui.PrintInfo("CookiesFileName", cookies.VaultPrefix+name)
	}
	return nil
}

func runCookiesForget(cmd *cobra.Command, args []string) error {
	v, err := openVault()
	if err != nil {
		return err
	}
	if err := v.Delete(args[0]); err != nil {
		return err
	}
	ui.PrintSuccess("Removed " + cookies.VaultPrefix + args[0])
	return nil
}
