package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"civitdl/pkg/auth"
	"civitdl/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage CivitAI API keys",
	Long: `Manage stored CivitAI API keys securely.

Keys are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (CIVITDL_API_KEY, read-only)

Never share your API key or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [account]",
	Short: "Store a CivitAI API key securely",
	Long: `Store a CivitAI API key securely in the system keychain or encrypted file.

You will be prompted for:
  - An account name (if not provided; defaults to 'default')
  - The API key

To create a key:
1. Log in at https://civitai.com
2. Open Account settings
3. Go to the 'API Keys' section and add a key`,
	Example: `  # Interactive login
  civitdl auth login

  # Store under a named profile
  civitdl auth login work`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [account]",
	Short: "Remove a stored API key",
	Long: `Remove a stored CivitAI API key.

If no account name is provided, you will be shown a list of stored
accounts to choose from. You can also remove all accounts at once.`,
	Example: `  # Interactive logout
  civitdl auth logout

  # Remove a specific account
  civitdl auth logout work`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

// authListCmd represents the auth list command
var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored accounts with masked API keys.`,
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(authListCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	name := auth.DefaultAccountName
	if len(args) > 0 {
		name = args[0]
	}

	reader := bufio.NewReader(os.Stdin)

	// Show key creation guide first
	auth.ShowAPIKeyGuide()

	// Ask if ready to continue
	fmt.Print("Ready to enter your API key? (Y/n): ")
	ready, _ := reader.ReadString('\n')
	if strings.ToLower(strings.TrimSpace(ready)) == "n" {
		fmt.Println("\nRun 'civitdl auth login' when you're ready.")
		return
	}

	// Check if account already exists
	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("\n⚠️  Account '%s' already exists. Update the key? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Println("\n🔐 Enter your API key (it will be hidden as you type):")
	fmt.Println()

	var apiKey string
	for {
		fmt.Print("API key: ")
		apiKey, err = readPassword()
		if err != nil {
			ui.PrintError("Failed to read API key", err.Error())
			os.Exit(1)
		}

		// Basic validation
		if len(apiKey) < 16 {
			fmt.Println("\n❌ That doesn't look like a valid API key.")
			fmt.Println("   CivitAI API keys are long hexadecimal strings.")
			fmt.Print("\nTry again? (Y/n): ")
			retry, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(retry)) == "n" {
				os.Exit(1)
			}
			continue
		}
		break
	}

	// Create account
	account := &auth.Account{
		Name:         name,
		APIKey:       apiKey,
		LastModified: time.Now(),
	}

	// Store credentials
	fmt.Println("\n💾 Storing API key securely...")
	if err := manager.Store(account); err != nil {
		ui.PrintError("Failed to store API key", err.Error())
		os.Exit(1)
	}

	fmt.Println("\n🎉 API key stored successfully!")
	ui.PrintSuccess(fmt.Sprintf("Account saved: %s", name))

	// Show where credentials are stored
	fmt.Println("\n🔒 Security Information:")
	fmt.Println("   Your API key is encrypted and stored in:")
	if auth.IsKeyringAvailable() {
		fmt.Println("   • System keychain (primary)")
	}
	fmt.Println("   • Encrypted file (backup)")

	// Show how to use
	fmt.Println("\n📖 Quick Start Guide:")
	fmt.Println("   Download a collection:")
	fmt.Printf("   $ civitdl run --collection <id>\n")
	fmt.Println("\n   Download a post:")
	fmt.Printf("   $ civitdl run --post <id>\n")
	if name != auth.DefaultAccountName {
		fmt.Println("\n   Use this account:")
		fmt.Printf("   $ civitdl run --collection <id> --account %s\n", name)
	}
	fmt.Println("\n⚠️  Never share your API key or config files!")
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	if len(args) == 0 {
		// List accounts and ask which to remove
		accounts, err := manager.List()
		if err != nil || len(accounts) == 0 {
			ui.PrintError("No stored accounts found", "")
			return
		}

		if len(accounts) == 1 {
			// Only one account, confirm deletion
			account := accounts[0]
			reader := bufio.NewReader(os.Stdin)
			fmt.Printf("Remove account '%s'? (y/N): ", account.Name)
			input, _ := reader.ReadString('\n')
			if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
				return
			}

			if err := manager.Delete(account.Name); err != nil {
				ui.PrintError("Failed to remove account", err.Error())
				os.Exit(1)
			}
			ui.PrintSuccess("Account removed: " + account.Name)
			return
		}

		// Multiple accounts, show menu
		fmt.Println("Select account to remove:")
		for i, account := range accounts {
			fmt.Printf("  %d. %s\n", i+1, account.Name)
		}
		fmt.Printf("  %d. Remove all accounts\n", len(accounts)+1)
		fmt.Printf("  0. Cancel\n\n")

		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Choice: ")
		input, _ := reader.ReadString('\n')

		var choice int
		fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)

		if choice == 0 {
			return
		} else if choice == len(accounts)+1 {
			// Remove all
			fmt.Print("Remove ALL accounts? This cannot be undone! (yes/N): ")
			confirm, _ := reader.ReadString('\n')
			if strings.TrimSpace(confirm) != "yes" {
				return
			}

			if err := manager.DeleteAll(); err != nil {
				ui.PrintError("Failed to remove all accounts", err.Error())
				os.Exit(1)
			}
			ui.PrintSuccess("All accounts removed")
			return
		} else if choice > 0 && choice <= len(accounts) {
			account := accounts[choice-1]
			if err := manager.Delete(account.Name); err != nil {
				ui.PrintError("Failed to remove account", err.Error())
				os.Exit(1)
			}
			ui.PrintSuccess("Account removed: " + account.Name)
			return
		} else {
			ui.PrintError("Invalid choice", "")
			os.Exit(1)
		}
	}

	// Account name provided as argument
	name := args[0]
	if err := manager.Delete(name); err != nil {
		ui.PrintError("Failed to remove account", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Account removed: " + name)
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	accounts, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list accounts", err.Error())
		os.Exit(1)
	}

	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'civitdl auth login' to add an account")
		return
	}

	ui.PrintHighlight("Stored Accounts")
	fmt.Println()

	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. Account: %s\n", i+1, sanitized.Name)
		fmt.Printf("   API Key: %s\n", sanitized.APIKey)
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

// readPassword reads a secret from stdin without echoing
func readPassword() (string, error) {
	// Try to read without echo
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // New line after input
		if err == nil {
			return string(password), nil
		}
	}

	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
