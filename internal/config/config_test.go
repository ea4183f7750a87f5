package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imishinist/coldbench/internal/models"
)

func newTestConfig(t *testing.T, values map[string]any) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	SetDefaults(viper.GetViper())
	for k, v := range values {
		viper.Set(k, v)
	}
	return New()
}

func TestNewAppliesDefaults(t *testing.T) {
	cfg := newTestConfig(t, map[string]any{"functions": []string{"fn-a"}})

	require.NoError(t, cfg.Validate())
	assert.Equal(t, []models.Tier{{MemorySize: 512}, {MemorySize: 1024}, {MemorySize: 2048}}, cfg.Tiers)
	assert.Equal(t, 10, cfg.ColdStarts)
	assert.Equal(t, 10, cfg.WarmStarts)
	assert.Equal(t, 20, cfg.ExpectedInvocations())
	assert.Equal(t, 500*time.Millisecond, cfg.InvokeDelay)
	assert.Equal(t, 40, cfg.SummaryMaxAttempts)
	assert.Equal(t, 0.8, cfg.CompletenessRatio)
	assert.Equal(t, 5, cfg.BatchSize)
	assert.Equal(t, "file", cfg.StoreDriver)
}

func TestNewSplitsCommaSeparatedLists(t *testing.T) {
	cfg := newTestConfig(t, map[string]any{
		"functions": []string{"fn-a, fn-b", ""},
		"tiers":     []string{"128,256MB"},
	})

	assert.Equal(t, []string{"fn-a", "fn-b"}, cfg.Functions)
	assert.Equal(t, []models.Tier{{MemorySize: 128}, {MemorySize: 256}}, cfg.Tiers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		wantErr string
	}{
		{
			name:    "missing function",
			values:  map[string]any{},
			wantErr: "function name",
		},
		{
			name:    "tier out of range",
			values:  map[string]any{"functions": "fn", "tiers": []string{"64"}},
			wantErr: "invalid memory tier",
		},
		{
			name:    "unparseable tier",
			values:  map[string]any{"functions": "fn", "tiers": []string{"big"}},
			wantErr: "invalid memory tier",
		},
		{
			name:    "no invocations",
			values:  map[string]any{"functions": "fn", "cold_starts": 0, "warm_starts": 0},
			wantErr: "not both zero",
		},
		{
			name:    "ratio too large",
			values:  map[string]any{"functions": "fn", "completeness_ratio": 1.5},
			wantErr: "completeness ratio",
		},
		{
			name:    "batch size over limit",
			values:  map[string]any{"functions": "fn", "batch_size": 6},
			wantErr: "batch size",
		},
		{
			name:    "unknown store",
			values:  map[string]any{"functions": "fn", "store_driver": "s3"},
			wantErr: "store driver",
		},
		{
			name:    "dry run without run id",
			values:  map[string]any{"functions": "fn", "dry_run": true},
			wantErr: "run ID",
		},
		{
			name:    "bad log format",
			values:  map[string]any{"functions": "fn", "log_format": "xml"},
			wantErr: "log format",
		},
		{
			name:    "publish without experiment",
			values:  map[string]any{"functions": "fn", "publish": true},
			wantErr: "experiment ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t, tt.values)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsDatabricks(t *testing.T) {
	tests := []struct {
		uri  string
		want bool
	}{
		{"databricks", true},
		{"databricks://dev", true},
		{"https://adb-123.azuredatabricks.net/path", true},
		{"https://example.com", false},
		{"http://localhost:5000", false},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			cfg := &Config{TrackingURI: tt.uri}
			assert.Equal(t, tt.want, cfg.IsDatabricks())
		})
	}
}

func TestGetDatabricksProfile(t *testing.T) {
	assert.Equal(t, "dev", (&Config{TrackingURI: "databricks://dev/extra"}).GetDatabricksProfile())
	assert.Empty(t, (&Config{TrackingURI: "databricks"}).GetDatabricksProfile())
}
