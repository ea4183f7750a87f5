package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/imishinist/coldbench/internal/models"
)

// Databricks domain suffixes for URL detection
var databricksDomains = []string{
	".cloud.databricks.com",
	".azuredatabricks.net",
	".gcp.databricks.com",
}

// Valid configuration values
var (
	validStoreDrivers = map[string]bool{
		"file": true, "sqlite": true,
	}
	validLogFormats = map[string]bool{
		"text": true, "json": true,
	}
	validLogLevels = map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
)

// Lambda memory limits in MB.
const (
	minMemorySize = 128
	maxMemorySize = 10240
)

// maxBatchSize is the hard limit of the batch trace detail API.
const maxBatchSize = 5

type Config struct {
	Functions []string
	Tiers     []models.Tier

	ColdStarts      int
	WarmStarts      int
	InvokeDelay     time.Duration
	MutationBackoff time.Duration
	SettleDelay     time.Duration
	PayloadFile     string

	SummaryPollInterval     time.Duration
	SummaryMaxAttempts      int
	CompletenessRatio       float64
	BatchSize               int
	UnprocessedPollInterval time.Duration
	UnprocessedMaxRetries   int
	XRayRateLimit           float64

	RunID       string
	ReportFile  string
	DryRun      bool
	FailFast    bool
	Concurrency int

	StoreDriver string
	StorePath   string

	AWSRegion  string
	AWSProfile string

	LogLevel    string
	LogFormat   string
	OTelEnabled bool

	Publish         bool
	TrackingURI     string
	ExperimentID    string
	DatabricksHost  string
	DatabricksToken string
}

func New() *Config {
	return &Config{
		Functions:               splitList(viper.GetStringSlice("functions")),
		Tiers:                   parseTiers(viper.GetStringSlice("tiers")),
		ColdStarts:              viper.GetInt("cold_starts"),
		WarmStarts:              viper.GetInt("warm_starts"),
		InvokeDelay:             viper.GetDuration("invoke_delay"),
		MutationBackoff:         viper.GetDuration("mutation_backoff"),
		SettleDelay:             viper.GetDuration("settle_delay"),
		PayloadFile:             viper.GetString("payload_file"),
		SummaryPollInterval:     viper.GetDuration("summary_poll_interval"),
		SummaryMaxAttempts:      viper.GetInt("summary_max_attempts"),
		CompletenessRatio:       viper.GetFloat64("completeness_ratio"),
		BatchSize:               viper.GetInt("batch_size"),
		UnprocessedPollInterval: viper.GetDuration("unprocessed_poll_interval"),
		UnprocessedMaxRetries:   viper.GetInt("unprocessed_max_retries"),
		XRayRateLimit:           viper.GetFloat64("xray_rate_limit"),
		RunID:                   viper.GetString("run_id"),
		ReportFile:              viper.GetString("report_file"),
		DryRun:                  viper.GetBool("dry_run"),
		FailFast:                viper.GetBool("fail_fast"),
		Concurrency:             viper.GetInt("concurrency"),
		StoreDriver:             viper.GetString("store_driver"),
		StorePath:               viper.GetString("store_path"),
		AWSRegion:               viper.GetString("aws_region"),
		AWSProfile:              viper.GetString("aws_profile"),
		LogLevel:                viper.GetString("log_level"),
		LogFormat:               viper.GetString("log_format"),
		OTelEnabled:             viper.GetBool("otel_enabled"),
		Publish:                 viper.GetBool("publish"),
		TrackingURI:             viper.GetString("tracking_uri"),
		ExperimentID:            viper.GetString("experiment_id"),
		DatabricksHost:          viper.GetString("databricks_host"),
		DatabricksToken:         viper.GetString("databricks_token"),
	}
}

// SetDefaults registers the default value of every benchmark key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("tiers", []string{"512", "1024", "2048"})
	v.SetDefault("cold_starts", 10)
	v.SetDefault("warm_starts", 10)
	v.SetDefault("invoke_delay", 500*time.Millisecond)
	v.SetDefault("mutation_backoff", 1500*time.Millisecond)
	v.SetDefault("settle_delay", 5*time.Second)
	v.SetDefault("summary_poll_interval", time.Second)
	v.SetDefault("summary_max_attempts", 40)
	v.SetDefault("completeness_ratio", 0.8)
	v.SetDefault("batch_size", maxBatchSize)
	v.SetDefault("unprocessed_poll_interval", time.Second)
	v.SetDefault("unprocessed_max_retries", 30)
	v.SetDefault("xray_rate_limit", 5.0)
	v.SetDefault("concurrency", 1)
	v.SetDefault("store_driver", "file")
	v.SetDefault("store_path", "traces")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("tracking_uri", "http://localhost:5000")
}

// Validate checks the benchmark settings. MLflow settings are only checked
// when publishing is enabled, see ValidatePublish.
func (c *Config) Validate() error {
	if len(c.Functions) == 0 {
		return fmt.Errorf("at least one function name is required")
	}

	if len(c.Tiers) == 0 {
		return fmt.Errorf("at least one memory tier is required")
	}
	for _, tier := range c.Tiers {
		if tier.MemorySize < minMemorySize || tier.MemorySize > maxMemorySize {
			return fmt.Errorf("invalid memory tier: %d (valid: %d-%d MB)", tier.MemorySize, minMemorySize, maxMemorySize)
		}
	}

	if c.ColdStarts < 0 || c.WarmStarts < 0 || c.ColdStarts+c.WarmStarts == 0 {
		return fmt.Errorf("cold and warm start counts must be non-negative and not both zero (got %d/%d)", c.ColdStarts, c.WarmStarts)
	}

	if c.CompletenessRatio <= 0 || c.CompletenessRatio > 1 {
		return fmt.Errorf("invalid completeness ratio: %v (valid: (0, 1])", c.CompletenessRatio)
	}

	if c.BatchSize < 1 || c.BatchSize > maxBatchSize {
		return fmt.Errorf("invalid batch size: %d (valid: 1-%d)", c.BatchSize, maxBatchSize)
	}

	if c.SummaryMaxAttempts < 1 {
		return fmt.Errorf("summary max attempts must be at least 1")
	}

	if c.UnprocessedMaxRetries < 0 {
		return fmt.Errorf("unprocessed max retries must not be negative")
	}

	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}

	if !validStoreDrivers[c.StoreDriver] {
		return fmt.Errorf("invalid store driver: %s (valid: file, sqlite)", c.StoreDriver)
	}

	if c.DryRun && c.RunID == "" {
		return fmt.Errorf("a run ID is required for a dry run")
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.LogLevel)
	}

	if !validLogFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.LogFormat)
	}

	if c.Publish {
		return c.ValidatePublish()
	}

	return nil
}

// ValidatePublish checks the MLflow settings.
func (c *Config) ValidatePublish() error {
	if c.TrackingURI == "" {
		return fmt.Errorf("tracking URI is required")
	}
	if c.ExperimentID == "" {
		return fmt.Errorf("experiment ID must be specified via --experiment-id flag or COLDBENCH_EXPERIMENT_ID environment variable")
	}
	return nil
}

// ExpectedInvocations is the number of traces a tier should produce.
func (c *Config) ExpectedInvocations() int {
	return c.ColdStarts + c.WarmStarts
}

// IsDatabricks checks if the tracking URI points to Databricks
func (c *Config) IsDatabricks() bool {
	if c.TrackingURI == "databricks" {
		return true
	}

	if strings.HasPrefix(c.TrackingURI, "databricks://") {
		return true
	}

	if strings.HasPrefix(c.TrackingURI, "https://") {
		host := extractHostFromURL(c.TrackingURI)
		return isDatabricksHost(host)
	}

	return false
}

// GetDatabricksProfile extracts the profile name from databricks://{profile} URI
func (c *Config) GetDatabricksProfile() string {
	if !strings.HasPrefix(c.TrackingURI, "databricks://") {
		return ""
	}

	profile := strings.TrimPrefix(c.TrackingURI, "databricks://")
	if idx := strings.Index(profile, "/"); idx != -1 {
		profile = profile[:idx]
	}
	return profile
}

func extractHostFromURL(url string) string {
	host := strings.TrimPrefix(url, "https://")
	if idx := strings.Index(host, "/"); idx != -1 {
		host = host[:idx]
	}
	return host
}

func isDatabricksHost(host string) bool {
	for _, domain := range databricksDomains {
		if strings.HasSuffix(host, domain) {
			return true
		}
	}
	return false
}

// splitList flattens comma separated entries, e.g. from an environment
// variable, and drops empty names.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// parseTiers converts memory sizes to tiers. Unparseable sizes become a zero
// tier so Validate reports them.
func parseTiers(values []string) []models.Tier {
	var tiers []models.Tier
	for _, v := range splitList(values) {
		size, err := strconv.ParseInt(strings.TrimSuffix(strings.ToUpper(v), "MB"), 10, 32)
		if err != nil {
			size = 0
		}
		tiers = append(tiers, models.Tier{MemorySize: int32(size)})
	}
	return tiers
}
