package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"redgrab/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored Reddit credentials",
	Long: `Manage Reddit script-app credentials. Stored sets go to the system
keychain when available, falling back to an encrypted file.

Create a script app at https://www.reddit.com/prefs/apps to get a
client ID and secret.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a credential set",
	RunE:  runAuthLogin,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	RunE:  runAuthList,
}

var authRemoveCmd = &cobra.Command{
	Use:   "remove <username>",
	Short: "Remove a stored account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthRemove,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authListCmd)
	authCmd.AddCommand(authRemoveCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	username, err := promptLine(reader, "Reddit username: ")
	if err != nil {
		return err
	}
	clientID, err := promptLine(reader, "Client ID: ")
	if err != nil {
		return err
	}
	clientSecret, err := auth.PromptPassword("Client secret: ")
	if err != nil {
		return err
	}
	password, err := auth.PromptPassword("Account password (optional, for the script-app grant): ")
	if err != nil {
		return err
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	account := &auth.Account{
		Username:     username,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Password:     password,
	}
	if err := manager.Store(account); err != nil {
		return err
	}

	fmt.Printf("Stored credentials for %s\n", username)
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Println("No stored accounts. Run 'redgrab auth login' to add one.")
		return nil
	}

	for _, account := range accounts {
		clean := auth.SanitizeAccount(account)
		fmt.Printf("%s  client_id=%s  secret=%s  modified=%s\n",
			clean.Username, clean.ClientID, clean.ClientSecret,
			clean.LastModified.Format("2006-01-02 15:04"))
	}
	return nil
}

func runAuthRemove(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	username := strings.TrimSpace(args[0])
	if err := manager.Delete(username); err != nil {
		return err
	}

	fmt.Printf("Removed credentials for %s\n", username)
	return nil
}

func promptLine(reader *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("value must not be empty")
	}
	return line, nil
}
