package parser

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/imishinist/coldbench/internal/models"
)

// ParseYAMLPayload reads a YAML request body template and converts it to the
// JSON string sent to the function.
func ParseYAMLPayload(reader io.Reader) (string, error) {
	var data any
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(&data); err != nil {
		return "", fmt.Errorf("failed to parse YAML payload: %w", err)
	}

	body, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to convert YAML payload to JSON: %w", err)
	}

	return string(body), nil
}

func ParseYAMLReport(reader io.Reader) (*models.RunReport, error) {
	var data models.RunReport
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse YAML report: %w", err)
	}

	return &data, nil
}

func WriteYAMLReport(writer io.Writer, report *models.RunReport) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)

	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("failed to write YAML report: %w", err)
	}

	return encoder.Close()
}
