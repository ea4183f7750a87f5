package mlflow

import (
	"context"
	"fmt"
	"time"

	"github.com/databricks/databricks-sdk-go/service/ml"

	"github.com/imishinist/coldbench/internal/models"
)

func (c *Client) CreateRun(ctx context.Context, config models.RunConfig) (*models.RunInfo, error) {
	if config.ExperimentID == "" {
		return nil, fmt.Errorf("experiment ID must be provided")
	}

	// Generate run name if not provided
	runName := config.RunName
	if runName == "" {
		runName = "run-" + time.Now().Format("2006-01-02-15-04-05")
	}

	tags := make([]ml.RunTag, 0, len(config.Tags)+1)
	for key, value := range config.Tags {
		tags = append(tags, ml.RunTag{
			Key:   key,
			Value: value,
		})
	}
	tags = append(tags, ml.RunTag{
		Key:   "mlflow.runName",
		Value: runName,
	})

	startTime := time.Now()
	resp, err := c.experiments.CreateRun(ctx, ml.CreateRun{
		ExperimentId: config.ExperimentID,
		RunName:      runName,
		StartTime:    startTime.UnixMilli(),
		Tags:         tags,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return &models.RunInfo{
		RunID:        resp.Run.Info.RunId,
		ExperimentID: config.ExperimentID,
		RunName:      runName,
		Status:       models.RunStatusRunning,
		StartTime:    startTime,
	}, nil
}

func (c *Client) UpdateRun(ctx context.Context, runID string, status models.RunStatus) error {
	var mlStatus ml.UpdateRunStatus
	switch status {
	case models.RunStatusRunning:
		mlStatus = ml.UpdateRunStatusRunning
	case models.RunStatusFailed:
		mlStatus = ml.UpdateRunStatusFailed
	default:
		mlStatus = ml.UpdateRunStatusFinished
	}

	updateRun := ml.UpdateRun{
		RunId:  runID,
		Status: mlStatus,
	}

	// Set end time for terminal statuses
	if status != models.RunStatusRunning {
		updateRun.EndTime = time.Now().UnixMilli()
	}

	if _, err := c.experiments.UpdateRun(ctx, updateRun); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}
