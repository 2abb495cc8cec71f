package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the top-level application configuration.
// It is loaded from ~/.config/orgsweep/config.yaml, ORGSWEEP_* environment
// variables and command-line flags, in increasing order of precedence.
type Config struct {
	// RoleName is the IAM role assumed in every member account.
	RoleName string `mapstructure:"role_name" yaml:"role_name" json:"role_name"`

	// SessionName is the RoleSessionName sent with AssumeRole.
	SessionName string `mapstructure:"session_name" yaml:"session_name" json:"session_name"`

	// OrgRegion is the region used for the base session, Organizations and
	// the region catalog.
	OrgRegion string `mapstructure:"org_region" yaml:"org_region" json:"org_region"`

	// Profile is the shared-config profile for the base credentials.
	Profile string `mapstructure:"profile" yaml:"profile" json:"profile"`

	// Concurrency caps the number of cells in flight.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency" json:"concurrency"`

	// TaskTimeout bounds one cell (assume role plus callback). Zero disables.
	TaskTimeout time.Duration `mapstructure:"task_timeout" yaml:"task_timeout" json:"task_timeout"`

	// MaxOUDepth bounds OU expansion below each start node.
	MaxOUDepth int `mapstructure:"max_ou_depth" yaml:"max_ou_depth" json:"max_ou_depth"`

	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	// Format is one of csv, table, json, yaml.
	Format string `mapstructure:"format" yaml:"format" json:"format"`

	// File is the report destination; empty means stdout.
	File string `mapstructure:"file" yaml:"file" json:"file"`

	NoColor bool `mapstructure:"no_color" yaml:"no_color" json:"no_color"`
}

// Defaults.
const (
	DefaultSessionName = "CrossAccountRole"
	DefaultOrgRegion   = "us-east-1"
	DefaultConcurrency = 10
	DefaultTaskTimeout = 5 * time.Minute
	DefaultMaxOUDepth  = 32
	DefaultFormat      = "csv"
)

// Formats lists the accepted output formats.
var Formats = []string{"csv", "table", "json", "yaml"}

const (
	defaultConfigDir  = ".config/orgsweep"
	defaultConfigName = "config"
	envPrefix         = "ORGSWEEP"
)

// keys are the settings viper resolves from env and flags.
var keys = []string{
	"role_name", "session_name", "org_region", "profile",
	"concurrency", "task_timeout", "max_ou_depth",
	"output.format", "output.file", "output.no_color",
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"role-name":    "role_name",
	"session-name": "session_name",
	"org-region":   "org_region",
	"profile":      "profile",
	"concurrency":  "concurrency",
	"timeout":      "task_timeout",
	"max-ou-depth": "max_ou_depth",
	"format":       "output.format",
	"output":       "output.file",
	"no-color":     "output.no_color",
}

// Manager loads Config.
type Manager struct {
	configPath string
	config     *Config
	viper      *viper.Viper
}

// NewManager creates a manager. An empty configPath searches
// ~/.config/orgsweep/config.yaml.
func NewManager(configPath string) *Manager {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
	// Zero is a valid task_timeout (no bound), so it is defaulted here
	// rather than in applyDefaults.
	v.SetDefault("task_timeout", DefaultTaskTimeout)
	return &Manager{
		configPath: configPath,
		viper:      v,
		config:     &Config{},
	}
}

// BindFlags binds every known flag present in fs. Flags not in fs are
// skipped so subcommands can bind only what they define.
func (m *Manager) BindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := m.viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// Load reads the config file (a missing file is not an error), overlays env
// and flags, and applies defaults.
func (m *Manager) Load() (*Config, error) {
	if m.configPath != "" {
		m.viper.SetConfigFile(m.configPath)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		m.viper.AddConfigPath(filepath.Join(home, defaultConfigDir))
		m.viper.SetConfigName(defaultConfigName)
		m.viper.SetConfigType("yaml")
	}

	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	m.config = &Config{}
	if err := m.viper.Unmarshal(m.config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	m.applyDefaults()
	return m.config, nil
}

// ConfigPath returns the file viper read, or "" when none was found.
func (m *Manager) ConfigPath() string {
	return m.viper.ConfigFileUsed()
}

func (m *Manager) applyDefaults() {
	c := m.config
	if c.SessionName == "" {
		c.SessionName = DefaultSessionName
	}
	if c.OrgRegion == "" {
		c.OrgRegion = DefaultOrgRegion
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxOUDepth == 0 {
		c.MaxOUDepth = DefaultMaxOUDepth
	}
	if c.Output.Format == "" {
		c.Output.Format = DefaultFormat
	}
	c.Output.Format = strings.ToLower(c.Output.Format)
}

// Validate returns every problem in c. An empty slice means c is usable.
// RoleName is not checked here; only commands that assume roles need it.
func (c *Config) Validate() []error {
	var errs []error
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency: must be at least 1, got %d", c.Concurrency))
	}
	if c.TaskTimeout < 0 {
		errs = append(errs, fmt.Errorf("task_timeout: must not be negative, got %s", c.TaskTimeout))
	}
	if c.MaxOUDepth < 1 {
		errs = append(errs, fmt.Errorf("max_ou_depth: must be at least 1, got %d", c.MaxOUDepth))
	}
	if !validFormat(c.Output.Format) {
		errs = append(errs, fmt.Errorf("output.format: invalid value %q; valid values: %s", c.Output.Format, strings.Join(Formats, ", ")))
	}
	return errs
}

func validFormat(f string) bool {
	for _, v := range Formats {
		if f == v {
			return true
		}
	}
	return false
}
