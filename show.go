package bucketnotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/arn"
	lambdaapi "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/goccy/go-yaml"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/sync/errgroup"
)

// LambdaClient is the interface for the AWS Lambda operations used by show.
// This is satisfied by *lambda.Client.
type LambdaClient interface {
	GetFunctionConfiguration(ctx context.Context, params *lambdaapi.GetFunctionConfigurationInput, optFns ...func(*lambdaapi.Options)) (*lambdaapi.GetFunctionConfigurationOutput, error)
}

// ShowOption contains options for the show command.
type ShowOption struct {
	Bucket string    `arg:"" help:"notification bucket name"`
	Output string    `help:"output format" default:"table" enum:"table,json,yaml"`
	Writer io.Writer `kong:"-"`
}

const (
	FunctionStateNotFound = "NotFound"
	FunctionStateUnknown  = "Unknown"
)

// TargetStatus describes one Lambda function target currently configured on a bucket.
type TargetStatus struct {
	Bucket       string   `json:"bucket" yaml:"bucket"`
	ID           string   `json:"id,omitempty" yaml:"id,omitempty"`
	FunctionARN  string   `json:"functionArn" yaml:"functionArn"`
	FunctionName string   `json:"functionName" yaml:"functionName"`
	State        string   `json:"state" yaml:"state"`
	Events       []string `json:"events" yaml:"events"`
}

// Describe reads the bucket's current Lambda notification targets and looks
// up the state of each target function.
func (app *App) Describe(ctx context.Context, bucket string) ([]*TargetStatus, error) {
	output, err := app.s3Client.GetBucketNotificationConfiguration(ctx, &s3.GetBucketNotificationConfigurationInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("get bucket notification configuration: %w", err)
	}
	statuses := make([]*TargetStatus, 0, len(output.LambdaFunctionConfigurations))
	for _, c := range output.LambdaFunctionConfigurations {
		functionARN := aws.ToString(c.LambdaFunctionArn)
		statuses = append(statuses, &TargetStatus{
			Bucket:       bucket,
			ID:           aws.ToString(c.Id),
			FunctionARN:  functionARN,
			FunctionName: functionName(functionARN),
			State:        FunctionStateUnknown,
			Events: Map(c.Events, func(e s3types.Event) string {
				return string(e)
			}),
		})
	}
	if app.lambdaClient == nil {
		return statuses, nil
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(4)
	for _, status := range statuses {
		status := status
		eg.Go(func() error {
			status.State = app.functionState(egCtx, status.FunctionARN)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return statuses, nil
}

func (app *App) functionState(ctx context.Context, functionARN string) string {
	out, err := app.lambdaClient.GetFunctionConfiguration(ctx, &lambdaapi.GetFunctionConfigurationInput{
		FunctionName: aws.String(functionARN),
	})
	if err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) && ae.ErrorCode() == "ResourceNotFoundException" {
			return FunctionStateNotFound
		}
		slog.WarnContext(ctx, "GetFunctionConfiguration failed", "function_arn", functionARN, "error", err)
		return FunctionStateUnknown
	}
	if out.State == "" {
		return FunctionStateUnknown
	}
	return string(out.State)
}

// functionName returns the function name (with qualifier) of a Lambda ARN,
// or the input unchanged if it is not an ARN.
func functionName(functionARN string) string {
	arnObj, err := arn.Parse(functionARN)
	if err != nil {
		return functionARN
	}
	return strings.TrimPrefix(arnObj.Resource, "function:")
}

// Show prints the bucket's Lambda notification targets.
func (app *App) Show(ctx context.Context, opt ShowOption) error {
	statuses, err := app.Describe(ctx, opt.Bucket)
	if err != nil {
		return err
	}
	w := opt.Writer
	if w == nil {
		w = os.Stdout
	}
	switch opt.Output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	case "yaml":
		bs, err := yaml.Marshal(statuses)
		if err != nil {
			return err
		}
		_, err = w.Write(bs)
		return err
	default:
		return renderTargetTable(w, statuses)
	}
}

func renderTargetTable(w io.Writer, statuses []*TargetStatus) error {
	table := tablewriter.NewWriter(w)
	table.Header("Bucket", "ID", "Function Name", "State", "Events")
	for _, s := range statuses {
		if err := table.Append([]string{
			s.Bucket,
			coalesce(s.ID, "-"),
			s.FunctionName,
			s.State,
			strings.Join(s.Events, ","),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func coalesce(strs ...string) string {
	for _, str := range strs {
		if str != "" {
			return str
		}
	}
	return ""
}
