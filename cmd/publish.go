package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imishinist/coldbench/internal/config"
	"github.com/imishinist/coldbench/internal/logger"
	"github.com/imishinist/coldbench/internal/mlflow"
	"github.com/imishinist/coldbench/internal/models"
	"github.com/imishinist/coldbench/internal/parser"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a saved report to MLflow",
	Long: `Publish a report written by 'coldbench run --report-file' to an MLflow
tracking server. One MLflow run is created per function; metrics are stepped by
memory size. The report file itself is uploaded as an artifact.`,
	Example: `  # Publish to a local MLflow server
  coldbench publish --from-file report.json --experiment-id 1

  # Publish to Databricks with extra tags
  coldbench publish --from-file report.yaml --tracking-uri databricks://prod --experiment-id 123 --tag team=perf`,
	PreRunE: bindFlags,
	RunE:    publishReport,
}

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().String("from-file", "", "Report file (.json/.yaml) (required)")
	publishCmd.Flags().StringArray("tag", []string{}, "Tags in key=value format")
	publishCmd.Flags().Bool("skip-artifact", false, "Do not upload the report file as an artifact")
	publishCmd.MarkFlagRequired("from-file")
}

func publishReport(cmd *cobra.Command, args []string) error {
	cfg := config.New()
	if err := cfg.ValidatePublish(); err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("from-file")
	tagFlags, _ := cmd.Flags().GetStringArray("tag")
	skipArtifact, _ := cmd.Flags().GetBool("skip-artifact")

	tags, err := parseTags(tagFlags)
	if err != nil {
		return err
	}

	report, err := parser.ParseReportFile(path)
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}

	artifact := path
	if skipArtifact {
		artifact = ""
	}
	return publish(cmd.Context(), cfg, report, artifact, tags)
}

// publish sends the report to MLflow and attaches the report file, if any,
// to every created run.
func publish(ctx context.Context, cfg *config.Config, report *models.RunReport, artifact string, tags map[string]string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := mlflow.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create MLflow client: %w", err)
	}

	runs, err := client.WithTags(tags).PublishReport(ctx, report, cfg.ExperimentID)
	if err != nil {
		return err
	}

	for _, run := range runs {
		fmt.Fprintf(os.Stderr, "Published %s (MLflow run %s, %s)\n", run.RunName, run.RunID, run.Status)
		if artifact == "" {
			continue
		}
		if err := client.UploadArtifact(ctx, run.RunID, artifact, ""); err != nil {
			logger.Warn("Failed to upload report artifact", "mlflow_run_id", run.RunID, "error", err)
		}
	}
	return nil
}

// parseTags parses tag strings in key=value format
func parseTags(tags []string) (map[string]string, error) {
	tagMap := make(map[string]string)
	for _, tag := range tags {
		parts := strings.SplitN(tag, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid tag format: %s (expected key=value)", tag)
		}
		tagMap[parts[0]] = parts[1]
	}
	return tagMap, nil
}
