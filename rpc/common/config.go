package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters for the cKV server.
// All values are startup-time constants.
type ServerConfig struct {
	// HTTP api settings
	Endpoint string

	// Store parameters
	StoreCapacity int
	LogFile       string

	// Background task parameters (intervals in seconds)
	CompactionIntervalSec int
	MaxLogSize            int
	CleanupIntervalSec    int

	// Logging configuration
	LogLevel string
}

// Validate checks the configuration for values the store cannot run with.
func (c *ServerConfig) Validate() error {
	if c.StoreCapacity < 1 {
		return fmt.Errorf("store capacity must be a positive integer, got %d", c.StoreCapacity)
	}
	if c.LogFile == "" {
		return fmt.Errorf("log file path must not be empty")
	}
	if c.CompactionIntervalSec < 1 {
		return fmt.Errorf("compaction interval must be a positive number of seconds, got %d", c.CompactionIntervalSec)
	}
	if c.CleanupIntervalSec < 1 {
		return fmt.Errorf("cleanup interval must be a positive number of seconds, got %d", c.CleanupIntervalSec)
	}
	if c.MaxLogSize < 1 {
		return fmt.Errorf("max log size must be a positive record count, got %d", c.MaxLogSize)
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// HTTP settings
	addSection("HTTP Server")
	addField("Endpoint", c.Endpoint)

	// Store settings
	addSection("Store")
	addField("Capacity", strconv.Itoa(c.StoreCapacity))
	addField("Log File", c.LogFile)

	// Background tasks
	addSection("Background Tasks")
	addField("Compaction Interval", fmt.Sprintf("%d sec", c.CompactionIntervalSec))
	addField("Max Log Size", fmt.Sprintf("%d records", c.MaxLogSize))
	addField("Cleanup Interval", fmt.Sprintf("%d sec", c.CleanupIntervalSec))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoint      string
	TimeoutSecond int
	RetryCount    int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))

	return sb.String()
}
