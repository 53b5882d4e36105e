package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// NeedsSetup reports whether the first-run setup should be offered: no API
// key resolvable and no user config file yet.
func NeedsSetup(c *Config) bool {
	if c.APIKey != "" {
		return false
	}
	_, err := os.Stat(UserConfigPath())
	return os.IsNotExist(err)
}

// RunSetup interactively prompts for the API key and download directory and
// writes the per-user config file. The key is read without echo when stdin
// is a terminal.
func RunSetup(c *Config) error {
	fmt.Println("First-run setup. Settings are saved to", UserConfigPath())
	fmt.Println()

	key, err := promptAPIKey()
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("an API key is required")
	}
	c.APIKey = key

	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("Download directory [%s]: ", c.DownloadDir)
	dir, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read download directory: %w", err)
	}
	if dir = strings.TrimSpace(dir); dir != "" {
		c.DownloadDir = dir
	}

	if err := c.SaveUserConfig(""); err != nil {
		return err
	}
	fmt.Println("Configuration saved.")
	return nil
}

func promptAPIKey() (string, error) {
	fmt.Print("CivitAI API key: ")

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		key, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read API key: %w", err)
		}
		return strings.TrimSpace(string(key)), nil
	}

	reader := bufio.NewReader(os.Stdin)
	key, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read API key: %w", err)
	}
	return strings.TrimSpace(key), nil
}
