// Package bot – keyring.go stores the Discord token in the operating
// system's keyring (Secret Service, Keychain or Credential Manager).
//
// Priority for resolving the token:
//  1. OS keyring
//  2. DISCORD_TOKEN environment variable (including .env files)
//  3. discord.token in config.yaml
package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const (
	// keyringService is the service name used in the OS keyring.
	keyringService = "autoresponder"

	// keyringToken is the key name for the Discord bot token.
	keyringToken = "discord_token"
)

// ErrNoToken is returned when no token source yields a value.
var ErrNoToken = errors.New("no Discord token configured")

// StoreToken saves the bot token to the OS keyring.
func StoreToken(token string) error {
	if err := keyring.Set(keyringService, keyringToken, token); err != nil {
		return fmt.Errorf("storing token in keyring: %w", err)
	}
	return nil
}

// GetToken returns the token stored in the OS keyring, or "" if absent or
// the keyring is unavailable.
func GetToken() string {
	val, err := keyring.Get(keyringService, keyringToken)
	if err != nil {
		return ""
	}
	return val
}

// DeleteToken removes the token from the OS keyring. Deleting a token that
// is not stored is not an error.
func DeleteToken() error {
	err := keyring.Delete(keyringService, keyringToken)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting token from keyring: %w", err)
	}
	return nil
}

// ResolveToken fills cfg.Discord.Token from the first source that has a
// value and reports which source that was.
func ResolveToken(cfg *Config, logger *slog.Logger) (string, error) {
	if val := GetToken(); val != "" {
		cfg.Discord.Token = val
		logger.Debug("discord token loaded from OS keyring")
		return "keyring", nil
	}
	if val := strings.TrimSpace(os.Getenv(tokenEnvVar)); val != "" {
		cfg.Discord.Token = val
		logger.Debug("discord token loaded from environment")
		return "env", nil
	}
	if cfg.Discord.Token != "" && !IsEnvReference(cfg.Discord.Token) {
		logger.Warn("discord token is stored in plain text in the config file",
			"hint", "run 'autoresponder token set' to move it to the OS keyring")
		return "config", nil
	}
	cfg.Discord.Token = ""
	return "", ErrNoToken
}

// ReadPassword prompts on stdout and reads a line without echo. Falls back to
// a plain read when stdin is not a terminal.
func ReadPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	defer fmt.Println()

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	var buf [1024]byte
	n, err := os.Stdin.Read(buf[:])
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimSpace(string(buf[:n])), nil
}
