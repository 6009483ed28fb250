package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of a server.
type ServerConfig struct {
	// Storage
	Engine              string
	DataDir             string
	CompactionThreshold int64
	SyncWrites          bool
	StrictRecovery      bool

	// Thread pool
	PoolKind string
	PoolSize int

	// RPC settings
	Endpoint        string
	TimeoutSecond   int64
	MetricsEndpoint string // empty = no metrics endpoint

	// Logging configuration
	LogLevel string
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

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	}

	// Thread pool
	addSection("Thread Pool")
	addField("Kind", c.PoolKind)
	addField("Size", strconv.Itoa(c.PoolSize))

	// Storage
	addSection("Storage")
	addField("Engine", c.Engine)
	addField("Data Directory", c.DataDir)
	addField("Compaction Threshold", fmt.Sprintf("%d bytes", c.CompactionThreshold))
	addField("Sync Writes", strconv.FormatBool(c.SyncWrites))
	addField("Strict Recovery", strconv.FormatBool(c.StrictRecovery))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoint      string
	TimeoutSecond int
	RetryCount    int // how often a failed connect is retried, a sent request is never repeated
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
