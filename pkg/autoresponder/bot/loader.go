// Package bot – loader.go loads the YAML configuration with .env support and
// environment variable expansion.
package bot

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches environment variable references in config values:
//   - ${VAR_NAME}          - simple variable
//   - ${VAR_NAME:-default} - default value if not set
//   - ${VAR_NAME:?error}   - error message if not set
//   - $VAR_NAME            - bare variable, upper case only
//
// Groups: 1=name for ${}, 2=modifier ("-" or "?"), 3=value, 4=bare name.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::(-|\?)([^}]*))?\}|\$([A-Z_][A-Z0-9_]*)`)

// tokenEnvVar is the environment variable holding the Discord bot token.
const tokenEnvVar = "DISCORD_TOKEN"

// LoadConfig loads the configuration at path. An empty path searches the
// standard locations; when no file is found the defaults are returned with
// an empty path.
func LoadConfig(path string) (*Config, string, error) {
	if path == "" {
		path = FindConfigFile()
	}
	if path == "" {
		loadEnvFiles()
		return DefaultConfig(), "", nil
	}
	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// LoadConfigFromFile reads and parses a YAML configuration file.
// Loads .env files first and expands environment variables. Returns an
// error if a ${VAR:?error} reference has its variable unset.
func LoadConfigFromFile(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded, err := expandEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("expanding environment variables: %w", err)
	}

	cfg, err := ParseConfig([]byte(expanded))
	if err != nil {
		return nil, err
	}

	resolveRelativePaths(cfg, path)
	return cfg, nil
}

// ParseConfig parses YAML bytes into a Config, overlaying DefaultConfig.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("mapping config: %w", err)
	}

	// A triggers section without a watch key keeps watching enabled.
	if section, ok := raw["triggers"].(map[string]any); ok {
		if _, set := section["watch"]; !set {
			cfg.Triggers.Watch = DefaultConfig().Triggers.Watch
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveConfigToFile writes cfg as YAML. A literal token is replaced with a
// ${DISCORD_TOKEN} reference so secrets never land in the file.
func SaveConfigToFile(cfg *Config, path string) error {
	sanitized := *cfg
	if sanitized.Discord.Token != "" && !IsEnvReference(sanitized.Discord.Token) {
		sanitized.Discord.Token = "${" + tokenEnvVar + "}"
	}

	data, err := yaml.Marshal(&sanitized)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}

	if existing, err := os.ReadFile(path); err == nil {
		_ = os.WriteFile(path+".bak", existing, 0o600)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// FindConfigFile searches for config files in standard locations.
func FindConfigFile() string {
	candidates := []string{
		"config.yaml",
		"config.yml",
		"autoresponder.yaml",
		"autoresponder.yml",
		"configs/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// IsEnvReference reports whether s is an unexpanded variable reference.
func IsEnvReference(s string) bool {
	return strings.HasPrefix(s, "$")
}

// ---------- Internal ----------

// loadEnvFiles loads .env files from the working directory. godotenv does
// not overwrite variables that are already set.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// expandEnvVars replaces variable references with their values. Unset
// ${VAR} and $VAR references are kept as-is; an unset ${VAR:?msg} is an
// error.
func expandEnvVars(input string) (string, error) {
	var firstErr error
	out := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		name, modifier, value, bare := sub[1], sub[2], sub[3], sub[4]

		if bare != "" {
			if val, ok := os.LookupEnv(bare); ok {
				return val
			}
			return match
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		switch modifier {
		case "-":
			return value
		case "?":
			if value == "" {
				value = "required environment variable not set"
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("config error: %s - %s", name, value)
			}
		}
		return match
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// resolveRelativePaths resolves data paths against the config file's
// directory so the bot works regardless of the working directory.
func resolveRelativePaths(cfg *Config, configPath string) {
	dir := filepath.Dir(configPath)
	cfg.Triggers.Path = resolvePathFromConfig(cfg.Triggers.Path, dir)
	cfg.Triggers.Database = resolvePathFromConfig(cfg.Triggers.Database, dir)
	cfg.Logging.File = resolvePathFromConfig(cfg.Logging.File, dir)
}

// resolvePathFromConfig makes path absolute relative to configDir and
// expands a leading ~.
func resolvePathFromConfig(path, configDir string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		path = filepath.Join(home, path[2:])
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(configDir, path)
}
