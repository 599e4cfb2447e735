// Package config provides configuration structures and loading for GoFresh.
package config

// Config represents the complete application configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database" mapstructure:"database"`
	Heuristics HeuristicsConfig `yaml:"heuristics" mapstructure:"heuristics"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Backup     BackupConfig     `yaml:"backup" mapstructure:"backup"`
	Scheduler  SchedulerConfig  `yaml:"scheduler" mapstructure:"scheduler"`
	Notify     NotifyConfig     `yaml:"notify" mapstructure:"notify"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Theme      string           `yaml:"theme" mapstructure:"theme"` // default, dark, minimal
	Production bool             `yaml:"production" mapstructure:"production"`
}

// DatabaseConfig represents the target database connection configuration.
// Vendor selects the adapter: postgres, mysql, or sqlite.
// Path is only used by the sqlite vendor and points at the database file.
type DatabaseConfig struct {
	Vendor             string `yaml:"vendor" mapstructure:"vendor"`
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	Path               string `yaml:"path" mapstructure:"path"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// HeuristicsConfig holds the planner thresholds. All values are configuration
// defaults, never constants baked into the planner itself.
type HeuristicsConfig struct {
	ParallelThreshold   int     `yaml:"parallel_threshold" mapstructure:"parallel_threshold"` // min tables to allow parallelism
	CPUFloorForParallel int     `yaml:"cpu_floor_for_parallel" mapstructure:"cpu_floor_for_parallel"`
	MemoryFloorBytes    int64   `yaml:"memory_floor_bytes" mapstructure:"memory_floor_bytes"`
	MaxParallel         int     `yaml:"max_parallel" mapstructure:"max_parallel"`
	BatchMin            int     `yaml:"batch_min" mapstructure:"batch_min"`
	BatchMax            int     `yaml:"batch_max" mapstructure:"batch_max"`
	SimpleBandMax       int     `yaml:"simple_band_max" mapstructure:"simple_band_max"`   // table count below this is Simple
	ComplexBandMax      int     `yaml:"complex_band_max" mapstructure:"complex_band_max"` // above this is Enterprise
	PerTableBaseSeconds float64 `yaml:"per_table_base_seconds" mapstructure:"per_table_base_seconds"`
	NNMaxDistance       float64 `yaml:"nn_max_distance" mapstructure:"nn_max_distance"`
}

// CacheConfig represents the pattern cache settings.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"` // resolved to ~/.gofresh/history.jsonl when empty
}

// BackupConfig represents backup settings.
type BackupConfig struct {
	DefaultDir          string `yaml:"default_dir" mapstructure:"default_dir"`
	NegligibleSizeBytes int64  `yaml:"negligible_size_bytes" mapstructure:"negligible_size_bytes"`
	Passphrase          string `yaml:"passphrase" mapstructure:"passphrase"`
}

// SchedulerConfig represents execution scheduler settings.
type SchedulerConfig struct {
	PerOperationTimeoutSeconds int `yaml:"per_operation_timeout_seconds" mapstructure:"per_operation_timeout_seconds"`
	LockTimeoutSeconds         int `yaml:"lock_timeout_seconds" mapstructure:"lock_timeout_seconds"`
}

// NotifyConfig represents the Slack notification sink settings.
type NotifyConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url" mapstructure:"slack_webhook_url"`
	Channel         string `yaml:"channel" mapstructure:"channel"`
	Username        string `yaml:"username" mapstructure:"username"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Vendor:             "postgres",
			Port:               5432,
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Heuristics: HeuristicsConfig{
			ParallelThreshold:   4,
			CPUFloorForParallel: 4,
			MemoryFloorBytes:    2 * 1024 * 1024 * 1024,
			MaxParallel:         8,
			BatchMin:            1,
			BatchMax:            50,
			SimpleBandMax:       10,
			ComplexBandMax:      50,
			PerTableBaseSeconds: 2,
			NNMaxDistance:       0.35,
		},
		Cache: CacheConfig{
			Enabled: true,
		},
		Backup: BackupConfig{
			DefaultDir:          ".",
			NegligibleSizeBytes: 10 * 1024 * 1024,
		},
		Scheduler: SchedulerConfig{
			PerOperationTimeoutSeconds: 30,
			LockTimeoutSeconds:         1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Theme: "default",
	}
}

// ApplyOverrides applies CLI flag values over the loaded configuration.
// Zero values mean "not set" and leave the config untouched.
func (c *Config) ApplyOverrides(logLevel, logFormat string, maxParallel int, noCache bool) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if maxParallel > 0 {
		c.Heuristics.MaxParallel = maxParallel
	}
	if noCache {
		c.Cache.Enabled = false
	}
}
