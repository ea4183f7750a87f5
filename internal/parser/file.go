package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/imishinist/coldbench/internal/models"
)

// DefaultPayload is sent when no payload file is configured.
const DefaultPayload = `{"query":"query { __typename }"}`

// ParsePayloadFile loads a request body template, choosing the decoder by
// file extension. An empty path yields DefaultPayload.
func ParsePayloadFile(path string) (string, error) {
	if path == "" {
		return DefaultPayload, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return ParseJSONPayload(file)
	case ".yaml", ".yml":
		return ParseYAMLPayload(file)
	default:
		return "", fmt.Errorf("unsupported file format: %s (supported: .json, .yaml, .yml)", ext)
	}
}

func ParseReportFile(path string) (*models.RunReport, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return ParseJSONReport(file)
	case ".yaml", ".yml":
		return ParseYAMLReport(file)
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .json, .yaml, .yml)", ext)
	}
}

// WriteReportFile writes report to path, creating parent directories.
func WriteReportFile(path string, report *models.RunReport) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported file format: %s (supported: .json, .yaml, .yml)", ext)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer file.Close()

	if ext == ".json" {
		return WriteJSONReport(file, report)
	}
	return WriteYAMLReport(file, report)
}
