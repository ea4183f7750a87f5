package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imishinist/coldbench/internal/models"
)

func sampleTraces(ids ...string) []models.MinimalTrace {
	var out []models.MinimalTrace
	for _, id := range ids {
		out = append(out, models.MinimalTrace{
			ID: id,
			Segments: []models.SegmentDocument{{
				Origin:    models.OriginFunctionRuntime,
				StartTime: 1700000000.1,
				EndTime:   1700000000.4,
				Subsegments: []models.SubSegment{
					{Name: models.PhaseInvocation, StartTime: 1700000000.2, EndTime: 1700000000.3},
				},
			}},
		})
	}
	return out
}

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	file, err := New("file", filepath.Join(dir, "traces"))
	require.NoError(t, err)
	sqlite, err := New("sqlite", filepath.Join(dir, "db", "traces.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = file.Close()
		_ = sqlite.Close()
	})
	return map[string]Store{"file": file, "sqlite": sqlite}
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			small := models.Tier{MemorySize: 512}
			large := models.Tier{MemorySize: 2048}

			require.NoError(t, s.Save(ctx, "fn", "run-1", small, sampleTraces("a", "b")))
			require.NoError(t, s.Save(ctx, "fn", "run-1", large, sampleTraces("c")))

			got, err := s.Load(ctx, "fn", "run-1", small)
			require.NoError(t, err)
			assert.Equal(t, sampleTraces("a", "b"), got)

			got, err = s.Load(ctx, "fn", "run-1", large)
			require.NoError(t, err)
			assert.Equal(t, sampleTraces("c"), got)
		})
	}
}

func TestStore_SaveReplacesTier(t *testing.T) {
	ctx := context.Background()
	tier := models.Tier{MemorySize: 1024}

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, "fn", "run-1", tier, sampleTraces("a", "b", "c")))
			require.NoError(t, s.Save(ctx, "fn", "run-1", tier, sampleTraces("d")))

			got, err := s.Load(ctx, "fn", "run-1", tier)
			require.NoError(t, err)
			assert.Equal(t, sampleTraces("d"), got)
		})
	}
}

func TestStore_EmptyTier(t *testing.T) {
	ctx := context.Background()
	tier := models.Tier{MemorySize: 128}

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, "fn", "run-1", tier, nil))

			got, err := s.Load(ctx, "fn", "run-1", tier)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load(ctx, "fn", "missing", models.Tier{MemorySize: 512})
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Save(ctx, "fn", "run-1", models.Tier{MemorySize: 512}, sampleTraces("a")))
			_, err = s.Load(ctx, "fn", "run-1", models.Tier{MemorySize: 1024})
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.Load(ctx, "other", "run-1", models.Tier{MemorySize: 512})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFileStore_DumpFormat(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), "arn:aws:lambda:fn", "run/1", models.Tier{MemorySize: 512}, sampleTraces("a")))

	path := s.Path("arn:aws:lambda:fn", "run/1")
	assert.Equal(t, "arn_aws_lambda_fn-run_1.json", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"memorySize": 512`)
	assert.Contains(t, string(data), `"Id": "a"`)
	assert.Contains(t, string(data), `"start_time"`)
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New("redis", t.TempDir())
	assert.Error(t, err)
}
