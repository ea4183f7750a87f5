package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/imishinist/coldbench/internal/models"
)

// ParseJSONPayload reads a JSON request body template and returns it in
// compact form, placeholders untouched.
func ParseJSONPayload(reader io.Reader) (string, error) {
	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read JSON payload: %w", err)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", fmt.Errorf("failed to parse JSON payload: %w", err)
	}

	return buf.String(), nil
}

func ParseJSONReport(reader io.Reader) (*models.RunReport, error) {
	var data models.RunReport
	decoder := json.NewDecoder(reader)

	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON report: %w", err)
	}

	return &data, nil
}

func WriteJSONReport(writer io.Writer, report *models.RunReport) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	return nil
}
