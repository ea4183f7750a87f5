package awsclient

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/imishinist/coldbench/internal/invoke"
	"github.com/imishinist/coldbench/internal/models"
)

// LambdaAPI is the subset of the Lambda client the control uses.
type LambdaAPI interface {
	GetFunctionConfiguration(ctx context.Context, in *lambda.GetFunctionConfigurationInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionConfigurationOutput, error)
	GetFunctionUrlConfig(ctx context.Context, in *lambda.GetFunctionUrlConfigInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionUrlConfigOutput, error)
	UpdateFunctionConfiguration(ctx context.Context, in *lambda.UpdateFunctionConfigurationInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionConfigurationOutput, error)
}

// LambdaControl implements invoke.FunctionControl on AWS Lambda.
type LambdaControl struct {
	api LambdaAPI
}

var _ invoke.FunctionControl = (*LambdaControl)(nil)

func NewLambdaControl(api LambdaAPI) *LambdaControl {
	return &LambdaControl{api: api}
}

// Resolve reads the function's environment and its URL.
func (c *LambdaControl) Resolve(ctx context.Context, name string) (invoke.Function, error) {
	conf, err := c.api.GetFunctionConfiguration(ctx, &lambda.GetFunctionConfigurationInput{
		FunctionName: aws.String(name),
	})
	if err != nil {
		return invoke.Function{}, fmt.Errorf("failed to get configuration of %s: %w", name, err)
	}

	urlConf, err := c.api.GetFunctionUrlConfig(ctx, &lambda.GetFunctionUrlConfigInput{
		FunctionName: aws.String(name),
	})
	if err != nil {
		return invoke.Function{}, fmt.Errorf("failed to get URL of %s: %w", name, err)
	}

	fn := invoke.Function{
		Name:    name,
		URL:     aws.ToString(urlConf.FunctionUrl),
		BaseEnv: map[string]string{},
	}
	if conf.Environment != nil {
		maps.Copy(fn.BaseEnv, conf.Environment.Variables)
	}
	if fn.URL == "" {
		return invoke.Function{}, fmt.Errorf("function %s has no URL", name)
	}
	return fn, nil
}

// ApplyTier updates memory size and environment. A concurrent update in
// progress is reported as invoke.ErrConflict.
func (c *LambdaControl) ApplyTier(ctx context.Context, fn invoke.Function, tier models.Tier, marker string) error {
	env := make(map[string]string, len(fn.BaseEnv)+1)
	maps.Copy(env, fn.BaseEnv)
	env[invoke.MarkerVariable] = marker

	_, err := c.api.UpdateFunctionConfiguration(ctx, &lambda.UpdateFunctionConfigurationInput{
		FunctionName: aws.String(fn.Name),
		MemorySize:   aws.Int32(tier.MemorySize),
		Environment:  &types.Environment{Variables: env},
	})
	if err != nil {
		var conflict *types.ResourceConflictException
		if errors.As(err, &conflict) {
			return fmt.Errorf("%w: %s", invoke.ErrConflict, conflict.ErrorMessage())
		}
		return fmt.Errorf("failed to update %s: %w", fn.Name, err)
	}
	return nil
}
