package mlflow

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/databricks/databricks-sdk-go/httpclient"
	"github.com/databricks/databricks-sdk-go/service/ml"
)

type credentialsForWriteRequest struct {
	RunID string   `json:"run_id"`
	Path  []string `json:"path"`
}

type credentialsForWriteResponse struct {
	CredentialInfos []artifactCredentialInfo `json:"credential_infos"`
}

type artifactCredentialInfo struct {
	RunID     string       `json:"run_id"`
	Path      string       `json:"path"`
	SignedURI string       `json:"signed_uri"`
	Headers   []httpHeader `json:"headers"`
	Type      string       `json:"type"`
}

type httpHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// UploadArtifact uploads a file as an artifact to the specified run
func (c *Client) UploadArtifact(ctx context.Context, runID, filePath, artifactPath string) error {
	artifactURI, err := c.getArtifactURI(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get artifact URI: %w", err)
	}

	// Use filename if artifact path is not specified
	if artifactPath == "" {
		artifactPath = filepath.Base(filePath)
	}

	switch {
	case strings.HasPrefix(artifactURI, "mlflow-artifacts:/"):
		return c.uploadToMLflowArtifacts(ctx, artifactURI, filePath, artifactPath)
	case strings.HasPrefix(artifactURI, "dbfs:/"):
		return c.uploadToDBFS(ctx, artifactURI, filePath, artifactPath)
	case strings.HasPrefix(artifactURI, "file://"), strings.HasPrefix(artifactURI, "/"):
		return uploadToLocalFS(artifactURI, filePath, artifactPath)
	default:
		return fmt.Errorf("unsupported artifact URI scheme: %s", artifactURI)
	}
}

func (c *Client) getArtifactURI(ctx context.Context, runID string) (string, error) {
	resp, err := c.experiments.GetRun(ctx, ml.GetRunRequest{
		RunId: runID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get run: %w", err)
	}

	if resp.Run == nil || resp.Run.Info == nil || resp.Run.Info.ArtifactUri == "" {
		return "", fmt.Errorf("artifact URI not found for run %s", runID)
	}
	return resp.Run.Info.ArtifactUri, nil
}

// uploadToMLflowArtifacts uploads using MLflow Artifacts Service
func (c *Client) uploadToMLflowArtifacts(ctx context.Context, artifactURI, filePath, artifactPath string) error {
	experimentID, runID, err := extractIDsFromArtifactURI(artifactURI)
	if err != nil {
		return fmt.Errorf("failed to extract IDs from artifact URI: %w", err)
	}

	file, fileInfo, err := openFileWithInfo(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	// /api/2.0/mlflow-artifacts/artifacts/{experiment_id}/{run_id}/artifacts/{artifact_path}
	baseURL := strings.TrimSuffix(c.config.TrackingURI, "/")
	url := fmt.Sprintf("%s/api/2.0/mlflow-artifacts/artifacts/%s/%s/artifacts/%s", baseURL, experimentID, runID, artifactPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, file)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = fileInfo.Size()
	req.Header.Set("Content-Type", "application/octet-stream")
	c.addAuthHeaders(req)

	if err := c.send(req); err != nil {
		return fmt.Errorf("MLflow Artifacts Service upload failed: %w", err)
	}
	return nil
}

func uploadToLocalFS(artifactURI, filePath, artifactPath string) error {
	localPath := filepath.Join(strings.TrimPrefix(artifactURI, "file://"), artifactPath)

	dir := filepath.Dir(localPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	sourceFile, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	destFile, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer destFile.Close()

	if _, err := destFile.ReadFrom(sourceFile); err != nil {
		return fmt.Errorf("failed to copy file content: %w", err)
	}
	return nil
}

// uploadToDBFS uploads through a signed URI handed out by the Databricks
// artifacts API.
func (c *Client) uploadToDBFS(ctx context.Context, artifactURI, filePath, artifactPath string) error {
	runID, err := extractRunIDFromDBFSURI(artifactURI)
	if err != nil {
		return fmt.Errorf("failed to extract run ID from DBFS URI: %w", err)
	}

	if c.apiClient == nil {
		return fmt.Errorf("non-Databricks MLflow servers not supported for DBFS artifacts")
	}

	var response credentialsForWriteResponse
	err = c.apiClient.Do(ctx, http.MethodPost, "/api/2.0/mlflow/artifacts/credentials-for-write",
		httpclient.WithRequestData(credentialsForWriteRequest{RunID: runID, Path: []string{artifactPath}}),
		httpclient.WithResponseUnmarshal(&response),
	)
	if err != nil {
		return fmt.Errorf("credentials-for-write request failed: %w", err)
	}
	if len(response.CredentialInfos) == 0 {
		return fmt.Errorf("no credentials returned for path: %s", artifactPath)
	}
	credential := response.CredentialInfos[0]

	file, fileInfo, err := openFileWithInfo(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, credential.SignedURI, file)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = fileInfo.Size()
	req.Header.Set("Content-Type", "application/octet-stream")
	if credential.Type == "AZURE_SAS_URI" {
		req.Header.Set("x-ms-blob-type", "BlockBlob")
	}
	for _, header := range credential.Headers {
		req.Header.Set(header.Name, header.Value)
	}

	if err := c.send(req); err != nil {
		return fmt.Errorf("failed to upload to %s signed URI: %w", credential.Type, err)
	}
	return nil
}

func (c *Client) send(req *http.Request) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(bodyBytes))
	}
	return nil
}

func (c *Client) addAuthHeaders(req *http.Request) {
	if !c.config.IsDatabricks() {
		return
	}
	if c.workspace != nil && c.workspace.Config != nil && c.workspace.Config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.workspace.Config.Token)
	} else if c.config.DatabricksToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.DatabricksToken)
	}
}

func openFileWithInfo(filePath string) (*os.File, os.FileInfo, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}

	fileInfo, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("failed to get file info: %w", err)
	}
	return file, fileInfo, nil
}

// extractIDsFromArtifactURI parses mlflow-artifacts:/{experiment_id}/{run_id}/artifacts
func extractIDsFromArtifactURI(artifactURI string) (string, string, error) {
	path := strings.TrimPrefix(strings.TrimPrefix(artifactURI, "mlflow-artifacts:"), "/")
	parts := strings.Split(path, "/")
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid mlflow-artifacts URI format: %s", artifactURI)
	}
	return parts[0], parts[1], nil
}

// extractRunIDFromDBFSURI parses dbfs:/databricks/mlflow-tracking/{experiment_id}/{run_id}/artifacts
func extractRunIDFromDBFSURI(artifactURI string) (string, error) {
	const prefix = "dbfs:/databricks/mlflow-tracking/"
	if !strings.HasPrefix(artifactURI, prefix) {
		return "", fmt.Errorf("invalid DBFS artifact URI format: %s", artifactURI)
	}

	parts := strings.Split(strings.TrimPrefix(artifactURI, prefix), "/")
	if len(parts) < 2 || parts[1] == "" {
		return "", fmt.Errorf("run ID not found in DBFS URI: %s", artifactURI)
	}
	return parts[1], nil
}
