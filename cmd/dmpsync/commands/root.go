package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dmphub/dmpsync/pkg/config"
	"github.com/dmphub/dmpsync/pkg/engine"
	"github.com/dmphub/dmpsync/pkg/engine/notifier"
	"github.com/dmphub/dmpsync/pkg/storage"
	"github.com/dmphub/dmpsync/pkg/version"
)

var (
	cfgFile    string
	syncCfg    config.SyncConfig
	localDir   string
	provenance string
	jsonLogs   bool
)

var rootCmd = &cobra.Command{
	Use:   "dmpsync",
	Short: "Provenance-aware DMP record synchronization",
	Long: `dmpsync - Data Management Plan record synchronization

Merge external updates into DMP records without losing anyone's
contributions, keep a version trail, and track harvested related works.`,
	Version: version.Current,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent Flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $HOME/.dmpsync.yaml)")
	rootCmd.PersistentFlags().StringVar(&syncCfg.Region, "region", config.DefaultRegion, "AWS Region")
	rootCmd.PersistentFlags().StringVar(&syncCfg.Table, "table", config.DefaultTable, "DynamoDB table for records")
	rootCmd.PersistentFlags().StringVar(&syncCfg.Shoulder, "shoulder", config.DefaultShoulder, "DOI shoulder for minted identifiers")
	rootCmd.PersistentFlags().StringVar(&syncCfg.EventBus, "event-bus", "", "EventBridge bus name (empty disables events)")
	rootCmd.PersistentFlags().DurationVar(&syncCfg.Debounce, "debounce", config.DefaultDebounce, "Same-owner snapshot debounce window")
	rootCmd.PersistentFlags().StringVar(&syncCfg.ArchiveBucket, "archive-bucket", "", "S3 bucket mirroring version snapshots")
	rootCmd.PersistentFlags().StringVar(&localDir, "local-dir", "", "Use a local directory store instead of DynamoDB")
	rootCmd.PersistentFlags().StringVarP(&provenance, "provenance", "p", "", "Writer provenance identity")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit JSON logs to stdout")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.SetConfigFile(filepath.Join(home, ".dmpsync.yaml"))
			viper.SetConfigType("yaml")
		}
	}
	viper.SetEnvPrefix("DMPSYNC")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		if v := viper.GetString("table"); v != "" && !rootCmd.PersistentFlags().Changed("table") {
			syncCfg.Table = v
		}
		if v := viper.GetString("region"); v != "" && !rootCmd.PersistentFlags().Changed("region") {
			syncCfg.Region = v
		}
		if v := viper.GetString("shoulder"); v != "" && !rootCmd.PersistentFlags().Changed("shoulder") {
			syncCfg.Shoulder = v
		}
		if v := viper.GetString("event_bus"); v != "" && !rootCmd.PersistentFlags().Changed("event-bus") {
			syncCfg.EventBus = v
		}
	}
}

// buildEngine assembles the engine against DynamoDB, or against a local
// directory store when --local-dir is set.
func buildEngine(ctx context.Context) (*engine.Engine, storage.RecordStore, error) {
	var store storage.RecordStore
	opts := []engine.Option{
		engine.WithConfig(engine.Config{
			Shoulder: syncCfg.Shoulder,
			EventBus: syncCfg.EventBus,
			Debounce: syncCfg.Debounce,
			JsonLogs: jsonLogs,
		}),
	}

	if localDir != "" {
		store = storage.NewFileStore(localDir)
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(syncCfg.Region))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		store = storage.NewDynamoStore(awsCfg, syncCfg.Table)

		if syncCfg.EventBus != "" {
			opts = append(opts, engine.WithPublisher(notifier.NewEventBridgeClient(awsCfg, syncCfg.EventBus)))
		}
		if syncCfg.ArchiveBucket != "" {
			opts = append(opts, engine.WithArchive(storage.NewS3Archive(awsCfg, syncCfg.ArchiveBucket, "versions")))
		}
	}

	eng, err := engine.New(ctx, store, opts...)
	if err != nil {
		return nil, nil, err
	}
	return eng, store, nil
}

func requireProvenance() error {
	if provenance == "" {
		return fmt.Errorf("--provenance is required for writes")
	}
	return nil
}
