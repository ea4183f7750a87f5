package mlflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/databricks/databricks-sdk-go/service/ml"
)

func (c *Client) LogParam(ctx context.Context, runID string, key string, value string) error {
	err := c.experiments.LogParam(ctx, ml.LogParam{
		RunId: runID,
		Key:   key,
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to log parameter %s: %w", key, err)
	}

	return nil
}

// LogParamsFromMap logs params in key order.
func (c *Client) LogParamsFromMap(ctx context.Context, runID string, params map[string]string) error {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := c.LogParam(ctx, runID, key, params[key]); err != nil {
			return err
		}
	}

	return nil
}
