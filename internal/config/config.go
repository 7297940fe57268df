package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Instance is an allow-listed EC2 instance the manager is permitted to touch.
type Instance struct {
	ID      string `toml:"id"`
	Name    string `toml:"name"`
	Country string `toml:"country"`
}

// Config holds all configuration settings for the application
type Config struct {
	// Host is the address the web server binds to
	Host string `toml:"host"`

	// Port is the TCP port the web server listens on
	Port int `toml:"port"`

	// AWSRegion is the region used for all EC2 API calls
	AWSRegion string `toml:"aws_region"`

	// DatabasePath is the path to the SQLite database file
	DatabasePath string `toml:"database_path"`

	// StaticDir is the directory containing index.html, ec2.html and icons/
	StaticDir string `toml:"static_dir"`

	// SchedulePath is the path to the YAML schedule policy file
	SchedulePath string `toml:"schedule_path"`

	// SchedulerEnabled turns the background stop sweep on or off
	SchedulerEnabled bool `toml:"scheduler_enabled"`

	// SchedulerSpec is the cron spec for the stop sweep
	SchedulerSpec string `toml:"scheduler_spec"`

	// AdminPasswordHash is a bcrypt hash. When set, mutating API calls
	// require a logged-in session. Empty means the service runs open.
	AdminPasswordHash string `toml:"admin_password_hash"`

	// SessionKey signs session cookies. Generated per process when empty.
	SessionKey string `toml:"session_key"`

	// Instances is the allow-list of managed instances, in display order
	Instances []Instance `toml:"instances"`
}

// defaultConfig returns the default configuration
func defaultConfig() *Config {
	return &Config{
		Host:             DefaultHost,
		Port:             DefaultPort,
		AWSRegion:        DefaultAWSRegion,
		DatabasePath:     "ec2manager.db",
		StaticDir:        "web",
		SchedulePath:     "schedules.yaml",
		SchedulerEnabled: false,
		SchedulerSpec:    DefaultSchedulerSpec,
	}
}

// Load loads the configuration from file and environment variables
func Load() (*Config, error) {
	// Start with default configuration
	config := defaultConfig()

	// Try to load from config.toml if it exists
	configPath := "config.toml"
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		configPath = path
	}
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	// Override with environment variables if set
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT value %q: %w", port, err)
		}
		config.Port = p
	}

	if region := os.Getenv("AWS_REGION"); region != "" {
		config.AWSRegion = region
	}

	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		config.DatabasePath = dbPath
	}

	if staticDir := os.Getenv("STATIC_DIR"); staticDir != "" {
		config.StaticDir = staticDir
	}

	if schedulePath := os.Getenv("SCHEDULE_PATH"); schedulePath != "" {
		config.SchedulePath = schedulePath
	}

	if enabled := os.Getenv("SCHEDULER_ENABLED"); enabled != "" {
		config.SchedulerEnabled = enabled == "true" || enabled == "1"
	}

	if hash := os.Getenv("ADMIN_PASSWORD_HASH"); hash != "" {
		config.AdminPasswordHash = hash
	}

	if key := os.Getenv("SESSION_KEY"); key != "" {
		config.SessionKey = key
	}

	// Ensure StaticDir is absolute
	if !filepath.IsAbs(config.StaticDir) {
		absPath, err := filepath.Abs(config.StaticDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for static_dir: %w", err)
		}
		config.StaticDir = absPath
	}

	return config, nil
}

// ListenAddr returns the host:port address the server binds to
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// InstanceByID looks up an allow-listed instance. The second return value
// reports whether the instance is managed at all.
func (c *Config) InstanceByID(id string) (Instance, bool) {
	for _, inst := range c.Instances {
		if inst.ID == id {
			return inst, true
		}
	}
	return Instance{}, false
}
