// Package awsclient adapts the AWS SDK to the benchmark ports: X-Ray is the
// tracing backend and Lambda the function control.
package awsclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/xray"

	"github.com/imishinist/coldbench/internal/config"
)

// LoadConfig resolves AWS credentials and region the standard way, with the
// region and profile from cfg taking precedence when set.
func LoadConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	if cfg.AWSProfile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

// New builds both adapters from one AWS config.
func New(ctx context.Context, cfg *config.Config) (*XRayBackend, *LambdaControl, error) {
	awsCfg, err := LoadConfig(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	backend := NewXRayBackend(xray.NewFromConfig(awsCfg), cfg.XRayRateLimit)
	control := NewLambdaControl(lambda.NewFromConfig(awsCfg))
	return backend, control, nil
}
