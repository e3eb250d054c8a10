// Package config handles all the store configuration. The fields here
// are all in PascalCase but in your actual config.yml they'll be in
// camelCase. You can view the current default config with
// `blobstore --config`. The config is read from a single YAML file under
// the store's config directory, and unknown keys in it are rejected at
// load time rather than silently ignored.
package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/OpenPeeDeeP/xdg"
	yaml "github.com/jesseduffield/yaml"
)

// UserConfig holds every store-configurable option. Unknown keys
// (yaml.UnmarshalStrict) are a Configuration error at load time, not a
// silently-ignored field.
type UserConfig struct {
	// URL is the SQLite database path that pkg/app hands to store.Open.
	// User, Password and Driver are parsed but not passed to the
	// connection pool or read anywhere else.
	URL      string `yaml:"url,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	Driver   string `yaml:"driver,omitempty"`

	// DataSourceName is used as the SQLite database path when URL is
	// blank. It is not resolved to a pre-configured pool.
	DataSourceName string `yaml:"dataSourceName,omitempty"`

	// DatabaseType names the SQL dialect. Validation rejects a blank
	// value; it is never derived from URL, and a non-blank value is not
	// checked against a list of dialects. The store always uses the
	// SQLite gateway with the generic templates, whatever it says.
	DatabaseType string `yaml:"databaseType,omitempty"`

	// MinRecordLength is the smallest payload size Put accepts.
	MinRecordLength int64 `yaml:"minRecordLength,omitempty"`

	// MaxConnections is accepted and parsed but never consulted: pool
	// sizing is the connection pool's concern, not the store's. Kept for
	// backward compatibility with existing config files.
	MaxConnections int `yaml:"maxConnections,omitempty"`

	// CopyWhenReading, true by default, spools a read BLOB to a scratch
	// file before handing a reader back, releasing the result set
	// early.
	CopyWhenReading bool `yaml:"copyWhenReading"`

	// TablePrefix and SchemaObjectPrefix are both prepended to the
	// table name: effective table = TablePrefix + SchemaObjectPrefix +
	// "DATASTORE".
	TablePrefix        string `yaml:"tablePrefix,omitempty"`
	SchemaObjectPrefix string `yaml:"schemaObjectPrefix,omitempty"`

	// SchemaCheckEnabled is parsed but not consulted: store.Open runs
	// schema.Ensure at startup whatever its value.
	SchemaCheckEnabled bool `yaml:"schemaCheckEnabled"`

	// ScratchDir is where spooled writes and copy-on-read reads are
	// buffered. Defaults to a subdirectory of the store's config dir.
	ScratchDir string `yaml:"scratchDir,omitempty"`

	// SpoolStrategy is one of SPOOL, UNKNOWN, MAX; see pkg/spool.
	SpoolStrategy string `yaml:"spoolStrategy,omitempty"`

	// AccessWindow is how recently a row must have been touched before a
	// read is allowed to skip refreshing its LAST_MODIFIED; see
	// store.TouchOnAccessWindow. Zero (the default) disables the
	// touch-on-read behavior.
	AccessWindow time.Duration `yaml:"accessWindow,omitempty"`

	// GC controls the background GC scheduler.
	GC GCConfig `yaml:"gc,omitempty"`
}

// GCConfig controls the periodic background collector.
type GCConfig struct {
	// Interval is how often the scheduler calls gc-older-than.
	Interval time.Duration `yaml:"interval,omitempty"`
	// ThresholdAge is how old a row must be (by LAST_MODIFIED) before
	// it becomes eligible for deletion.
	ThresholdAge time.Duration `yaml:"thresholdAge,omitempty"`
}

// GetDefaultConfig returns the zero-config defaults, merged onto by
// whatever the user's config.yml actually sets.
func GetDefaultConfig() UserConfig {
	return UserConfig{
		DatabaseType:       "sqlite",
		MinRecordLength:    0,
		CopyWhenReading:    true,
		TablePrefix:        "",
		SchemaObjectPrefix: "",
		SchemaCheckEnabled: true,
		SpoolStrategy:      "SPOOL",
		GC: GCConfig{
			Interval:     time.Hour,
			ThresholdAge: 24 * time.Hour,
		},
	}
}

// AppConfig bundles the user config with runtime-only fields that are
// never persisted to config.yml.
type AppConfig struct {
	Debug       bool   `long:"debug" env:"DEBUG" default:"false"`
	Version     string `long:"version" env:"VERSION" default:"unversioned"`
	Commit      string `long:"commit" env:"COMMIT"`
	BuildDate   string `long:"build-date" env:"BUILD_DATE"`
	Name        string `long:"name" env:"NAME" default:"blobstore"`
	BuildSource string `long:"build-source" env:"BUILD_SOURCE" default:""`
	UserConfig  *UserConfig
	ConfigDir   string
}

// NewAppConfig makes a new app config, loading config.yml from the
// store's config directory (creating an empty one on first run) and
// merging it onto the defaults.
func NewAppConfig(name, version, commit, date, buildSource string, debuggingFlag bool) (*AppConfig, error) {
	configDir, err := findOrCreateConfigDir(name)
	if err != nil {
		return nil, err
	}

	userConfig, err := loadUserConfigWithDefaults(configDir)
	if err != nil {
		return nil, err
	}

	if err := validate(userConfig); err != nil {
		return nil, err
	}

	appConfig := &AppConfig{
		Name:        name,
		Version:     version,
		Commit:      commit,
		BuildDate:   date,
		Debug:       debuggingFlag || os.Getenv("DEBUG") == "TRUE",
		BuildSource: buildSource,
		UserConfig:  userConfig,
		ConfigDir:   configDir,
	}

	return appConfig, nil
}

// validate rejects configurations that are fatal at init: a blank
// databaseType, or URL/DataSourceName both blank.
func validate(c *UserConfig) error {
	if c.URL == "" && c.DataSourceName == "" {
		return fmt.Errorf("config: one of url or dataSourceName must be set")
	}
	if c.DatabaseType == "" {
		return fmt.Errorf("config: databaseType must be set explicitly; it is never inferred from a blank url")
	}
	return nil
}

func configDirForVendor(vendor string, projectName string) string {
	if envConfigDir := os.Getenv("CONFIG_DIR"); envConfigDir != "" {
		return envConfigDir
	}
	configDirs := xdg.New(vendor, projectName)
	return configDirs.ConfigHome()
}

func findOrCreateConfigDir(projectName string) (string, error) {
	folder := configDirForVendor("", projectName)

	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", err
	}

	return folder, nil
}

func loadUserConfigWithDefaults(configDir string) (*UserConfig, error) {
	config := GetDefaultConfig()
	return loadUserConfig(configDir, &config)
}

func loadUserConfig(configDir string, base *UserConfig) (*UserConfig, error) {
	fileName := filepath.Join(configDir, "config.yml")

	if _, err := os.Stat(fileName); err != nil {
		if os.IsNotExist(err) {
			file, err := os.Create(fileName)
			if err != nil {
				return nil, err
			}
			file.Close()
		} else {
			return nil, err
		}
	}

	content, err := ioutil.ReadFile(fileName)
	if err != nil {
		return nil, err
	}

	if err := yaml.UnmarshalStrict(content, base); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return base, nil
}

// WriteToUserConfig allows you to set a value on the user config to be
// saved. Note that if you set a zero-value, it may be ignored, e.g. a
// false or 0 or empty string, because of the omitempty yaml directive
// on most fields.
func (c *AppConfig) WriteToUserConfig(updateConfig func(*UserConfig) error) error {
	userConfig, err := loadUserConfig(c.ConfigDir, &UserConfig{})
	if err != nil {
		return err
	}

	if err := updateConfig(userConfig); err != nil {
		return err
	}

	file, err := os.OpenFile(c.ConfigFilename(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
	if err != nil {
		return err
	}
	defer file.Close()

	return yaml.NewEncoder(file).Encode(userConfig)
}

// ConfigFilename returns the filename of the current config file.
func (c *AppConfig) ConfigFilename() string {
	return filepath.Join(c.ConfigDir, "config.yml")
}

// EffectiveScratchDir returns ScratchDir if set, otherwise a "scratch"
// subdirectory of the config dir.
func (c *AppConfig) EffectiveScratchDir() string {
	if c.UserConfig.ScratchDir != "" {
		return c.UserConfig.ScratchDir
	}
	return filepath.Join(c.ConfigDir, "scratch")
}
