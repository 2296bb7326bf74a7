// Package config defines default configuration and the YAML match
// policy file format.
package config

import "time"

// SyncConfig holds the settings every command needs to reach the record
// store and mint identifiers.
type SyncConfig struct {
	// Region is the AWS region for DynamoDB, S3, and EventBridge.
	Region string `mapstructure:"region"`
	// Table is the DynamoDB table holding records and versions.
	Table string `mapstructure:"table"`
	// Shoulder is the DOI shoulder new identifiers are minted under.
	Shoulder string `mapstructure:"shoulder"`
	// EventBus is the EventBridge bus name. Empty disables events.
	EventBus string `mapstructure:"event_bus"`
	// Debounce is the minimum gap between same-owner version snapshots.
	Debounce time.Duration `mapstructure:"debounce"`
	// ArchiveBucket mirrors version snapshots to S3 when set.
	ArchiveBucket string `mapstructure:"archive_bucket"`
}

// Defaults.
const (
	DefaultRegion   = "us-east-1"
	DefaultTable    = "dmpsync-records"
	DefaultShoulder = "10.48321"
	DefaultDebounce = 1 * time.Hour
)

// DefaultSyncConfig returns default sync settings.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Region:   DefaultRegion,
		Table:    DefaultTable,
		Shoulder: DefaultShoulder,
		Debounce: DefaultDebounce,
	}
}
