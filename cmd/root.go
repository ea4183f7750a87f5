package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/imishinist/coldbench/internal/config"
	"github.com/imishinist/coldbench/internal/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "coldbench",
	Short: "Cold start benchmark for serverless functions",
	Long: `A command line tool measuring cold and warm start latency of AWS Lambda
functions across memory sizes. Latencies are taken from X-Ray traces and can be
published to an MLflow tracking server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Setup(viper.GetString("log_level"), viper.GetString("log_format"), os.Stderr)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (YAML)")
	flags.String("log-level", "info", "Log level (debug/info/warn/error)")
	flags.String("log-format", "text", "Log format (text/json)")
	flags.String("store-driver", "file", "Trace store (file/sqlite)")
	flags.String("store-path", "traces", "Trace store directory or database file")
	flags.String("run-id", "", "Benchmark run ID (default: timestamp-based)")
	flags.String("tracking-uri", "", "MLflow tracking URI (overrides COLDBENCH_TRACKING_URI)")
	flags.String("experiment-id", "", "Experiment ID (overrides COLDBENCH_EXPERIMENT_ID)")

	for _, name := range []string{"log-level", "log-format", "store-driver", "store-path", "run-id", "tracking-uri", "experiment-id"} {
		viper.BindPFlag(flagKey(name), flags.Lookup(name))
	}
}

func initConfig() {
	// A missing .env is fine
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	// Environment variables
	viper.SetEnvPrefix("COLDBENCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// Also bind Databricks environment variables
	viper.BindEnv("databricks_host", "DATABRICKS_HOST")
	viper.BindEnv("databricks_token", "DATABRICKS_TOKEN")
	viper.BindEnv("aws_region", "COLDBENCH_AWS_REGION", "AWS_REGION")
	viper.BindEnv("aws_profile", "COLDBENCH_AWS_PROFILE", "AWS_PROFILE")

	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			checkError(fmt.Errorf("failed to read config file: %w", err))
		}
	}
}

// bindFlags binds every local flag of cmd to the viper key of the same name.
// Binding happens right before the command runs, since several commands
// share keys.
func bindFlags(cmd *cobra.Command, args []string) error {
	var err error
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if err == nil {
			err = viper.BindPFlag(flagKey(f.Name), f)
		}
	})
	return err
}

func flagKey(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

func checkError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
