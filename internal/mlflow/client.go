package mlflow

import (
	"context"
	"fmt"
	"net/http"

	"github.com/databricks/databricks-sdk-go"
	"github.com/databricks/databricks-sdk-go/httpclient"
	"github.com/databricks/databricks-sdk-go/service/ml"

	"github.com/imishinist/coldbench/internal/config"
)

// experimentsAPI is the part of the MLflow experiments service the sink uses.
type experimentsAPI interface {
	CreateRun(ctx context.Context, request ml.CreateRun) (*ml.CreateRunResponse, error)
	UpdateRun(ctx context.Context, request ml.UpdateRun) (*ml.UpdateRunResponse, error)
	GetRun(ctx context.Context, request ml.GetRunRequest) (*ml.GetRunResponse, error)
	LogParam(ctx context.Context, request ml.LogParam) error
	LogMetric(ctx context.Context, request ml.LogMetric) error
}

type Client struct {
	experiments experimentsAPI
	workspace   *databricks.WorkspaceClient
	apiClient   *httpclient.ApiClient
	httpClient  *http.Client
	config      *config.Config

	// tags are added to every run the client creates
	tags map[string]string
}

func NewClient(cfg *config.Config) (*Client, error) {
	if err := cfg.ValidatePublish(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var databricksConfig *databricks.Config

	if cfg.IsDatabricks() {
		databricksConfig = &databricks.Config{}

		if cfg.TrackingURI == "databricks" {
			// Use DATABRICKS_HOST if available, the default profile otherwise
			if cfg.DatabricksHost != "" {
				databricksConfig.Host = cfg.DatabricksHost
			}
		} else if profile := cfg.GetDatabricksProfile(); profile != "" {
			databricksConfig.Profile = profile
		} else {
			// Use the tracking URI as Databricks host (direct URL)
			databricksConfig.Host = cfg.TrackingURI
		}

		// Token overrides the profile
		if cfg.DatabricksToken != "" {
			databricksConfig.Token = cfg.DatabricksToken
		}
	} else {
		databricksConfig = &databricks.Config{
			Host: cfg.TrackingURI,
			// For regular MLflow server, use a dummy token to bypass authentication
			Token: "dummy-token-for-regular-mlflow",
		}
	}

	workspace, err := databricks.NewWorkspaceClient(databricksConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create MLflow client: %w", err)
	}

	c := newClient(workspace.Experiments, cfg)
	c.workspace = workspace

	if cfg.IsDatabricks() {
		apiClient, err := workspace.Config.NewApiClient()
		if err != nil {
			return nil, fmt.Errorf("failed to create Databricks API client: %w", err)
		}
		c.apiClient = apiClient
	}

	return c, nil
}

func newClient(experiments experimentsAPI, cfg *config.Config) *Client {
	return &Client{
		experiments: experiments,
		httpClient:  &http.Client{},
		config:      cfg,
	}
}

// WithTags adds tags to every run created by PublishReport.
func (c *Client) WithTags(tags map[string]string) *Client {
	c.tags = tags
	return c
}
