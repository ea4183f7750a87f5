package mlflow

import (
	"context"
	"fmt"

	"github.com/databricks/databricks-sdk-go/service/ml"

	"github.com/imishinist/coldbench/internal/models"
)

func (c *Client) LogMetric(ctx context.Context, runID string, metric models.Metric) error {
	err := c.experiments.LogMetric(ctx, ml.LogMetric{
		RunId:     runID,
		Key:       metric.Key,
		Value:     metric.Value,
		Timestamp: metric.Timestamp.UnixMilli(),
		Step:      metric.Step,
	})
	if err != nil {
		return fmt.Errorf("failed to log metric %s: %w", metric.Key, err)
	}

	return nil
}

func (c *Client) LogBatchMetrics(ctx context.Context, runID string, metrics []models.Metric) error {
	// For now, log metrics one by one to avoid batch API issues
	for _, metric := range metrics {
		if err := c.LogMetric(ctx, runID, metric); err != nil {
			return err
		}
	}
	return nil
}
