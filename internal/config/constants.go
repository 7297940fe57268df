package config

// Server configuration constants
const (
	// DefaultHost is the default bind address
	DefaultHost = "0.0.0.0"

	// DefaultPort is the default port for the manager
	DefaultPort = 5000

	// DefaultAWSRegion is the region used when none is configured
	DefaultAWSRegion = "eu-central-1"

	// DefaultSchedulerSpec runs the stop sweep every five minutes
	DefaultSchedulerSpec = "@every 5m"
)
