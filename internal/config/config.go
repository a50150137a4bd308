package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the file-backed configuration shared by the mailrake binaries.
// Command-line flags override anything set here.
type Config struct {
	// CredentialsDir holds the OAuth client secret and cached token
	// (gmailctl-compatible layout).
	CredentialsDir string `mapstructure:"credentials_dir" yaml:"credentials_dir"`

	// DBPath is the SQLite database file.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// RulesFile is the JSON rules document evaluated by mailrake-apply.
	RulesFile string `mapstructure:"rules_file" yaml:"rules_file"`

	// MaxFetch caps how many messages one fetch run pulls.
	MaxFetch int `mapstructure:"max_fetch" yaml:"max_fetch"`

	// PageSize is the Gmail list page size (<=500).
	PageSize int `mapstructure:"page_size" yaml:"page_size"`

	// RPS is the outbound API request budget per second.
	RPS int `mapstructure:"rps" yaml:"rps"`

	// DryRun makes apply runs log intended actions without performing them.
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`
}

// DefaultPath returns the default configuration file location,
// ~/.config/mailrake/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailrake", "config.yaml")
}

func defaults() Config {
	return Config{
		CredentialsDir: os.ExpandEnv("$HOME/.gmailctl"),
		DBPath:         "emails.db",
		RulesFile:      "rules.json",
		MaxFetch:       20,
		PageSize:       500,
		RPS:            4,
	}
}

// Load reads configuration from path via viper. A missing file yields the
// defaults; a malformed one is an error.
func Load(path string) (Config, error) {
	cfg := defaults()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("credentials_dir", cfg.CredentialsDir)
	v.SetDefault("db_path", cfg.DBPath)
	v.SetDefault("rules_file", cfg.RulesFile)
	v.SetDefault("max_fetch", cfg.MaxFetch)
	v.SetDefault("page_size", cfg.PageSize)
	v.SetDefault("rps", cfg.RPS)
	v.SetDefault("dry_run", cfg.DryRun)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
